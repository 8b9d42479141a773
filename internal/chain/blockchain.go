package chain

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmerrifield20/starregistry/internal/ownership"
	"go.uber.org/zap"
)

// DefaultMaxMessageAge is how long an ownership verification message stays
// usable after it was issued.
const DefaultMaxMessageAge = 5 * time.Minute

// SignatureVerifier checks that signature was produced over message by the
// wallet behind address. *ownership.BitcoinVerifier satisfies this interface.
type SignatureVerifier interface {
	Verify(message, address, signature string) (bool, error)
}

// Option configures a Blockchain.
type Option func(*Blockchain)

// WithClock replaces the wall clock used for block timestamps and the
// message expiry window.
func WithClock(now func() time.Time) Option {
	return func(bc *Blockchain) {
		bc.now = now
	}
}

// WithLogger attaches a logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(bc *Blockchain) {
		bc.logger = logger
	}
}

// WithMaxMessageAge overrides DefaultMaxMessageAge.
func WithMaxMessageAge(d time.Duration) Option {
	return func(bc *Blockchain) {
		bc.maxMessageAge = d
	}
}

// Blockchain is the in-memory star registry ledger. It is safe for concurrent
// use: appends are serialised under a write lock and readers work on a
// snapshot of the chain taken when they start.
type Blockchain struct {
	mu     sync.RWMutex
	blocks []*Block
	id     string

	verifier      SignatureVerifier
	now           func() time.Time
	maxMessageAge time.Duration
	logger        *zap.Logger
}

// New creates a Blockchain initialised with its genesis block.
// verifier may be nil, in which case every submission fails with
// ErrVerifierBackend.
func New(verifier SignatureVerifier, opts ...Option) *Blockchain {
	bc := &Blockchain{
		id:            uuid.NewString(),
		verifier:      verifier,
		now:           time.Now,
		maxMessageAge: DefaultMaxMessageAge,
		logger:        zap.NewNop(),
	}
	for _, o := range opts {
		o(bc)
	}

	if _, err := bc.append(genesisPayload); err != nil {
		panic(fmt.Sprintf("chain: create genesis block: %v", err))
	}
	return bc
}

// Height returns the height of the last block. A new chain has height 0.
func (bc *Blockchain) Height() int {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return len(bc.blocks) - 1
}

// ID returns the random identifier assigned to this chain when it was
// created. Chains whose genesis blocks are identical still get distinct IDs.
func (bc *Blockchain) ID() string {
	return bc.id
}

// Tip returns the most recently appended block.
func (bc *Blockchain) Tip() *Block {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.blocks[len(bc.blocks)-1]
}

// Blocks returns the chain in height order as of the call.
func (bc *Blockchain) Blocks() []*Block {
	snap := bc.snapshot()
	out := make([]*Block, len(snap))
	copy(out, snap)
	return out
}

// MaxMessageAge returns how long an issued ownership message stays usable.
func (bc *Blockchain) MaxMessageAge() time.Duration {
	return bc.maxMessageAge
}

// RequestOwnershipMessage returns a freshly issued message for address to sign.
func (bc *Blockchain) RequestOwnershipMessage(address string) string {
	return ownership.Issue(address, bc.now()).String()
}

// SubmitStar appends a block claiming star for address.
//
// The message must parse and the record must be valid UTF-8. The message must
// not be older than the expiry window and must carry a valid signature by
// address. Any failure leaves the chain unchanged.
func (bc *Blockchain) SubmitStar(address, message, signature string, star Star) (*Block, error) {
	msg, err := ownership.Parse(message)
	if err != nil {
		return nil, err
	}
	rec := StarRecord{Star: star, Address: address}
	if err := rec.validate(); err != nil {
		return nil, err
	}

	now := bc.now()
	if msg.IsOlderThan(bc.maxMessageAge, now) {
		return nil, fmt.Errorf("%w: issued %s ago, limit is %s",
			ErrVerificationExpired, msg.Age(now), bc.maxMessageAge)
	}

	if bc.verifier == nil {
		return nil, fmt.Errorf("%w: no verifier configured", ErrVerifierBackend)
	}
	ok, err := bc.verifier.Verify(message, address, signature)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrVerifierBackend, err)
	}
	if !ok {
		return nil, ErrInvalidSignature
	}

	return bc.append(rec)
}

// append seals payload into a new block linked to the current tip and pushes
// it. It is the only code path that grows the chain.
func (bc *Blockchain) append(payload any) (*Block, error) {
	bc.mu.Lock()
	defer bc.mu.Unlock()

	height := len(bc.blocks)
	var prevHash string
	if height > 0 {
		prevHash = bc.blocks[height-1].Hash
	}

	block, err := NewBlock(payload, height, prevHash, bc.now().Unix())
	if err != nil {
		return nil, fmt.Errorf("create block #%d: %w", height, err)
	}
	bc.blocks = append(bc.blocks, block)

	bc.logger.Debug("block appended",
		zap.Int("height", block.Height),
		zap.String("hash", block.Hash),
	)
	return block, nil
}

// GetBlockByHash returns the block with the given digest.
func (bc *Blockchain) GetBlockByHash(hash string) (*Block, bool) {
	for _, b := range bc.snapshot() {
		if b.Hash == hash {
			return b, true
		}
	}
	return nil, false
}

// GetBlockByHeight returns the block at height h.
func (bc *Blockchain) GetBlockByHeight(h int) (*Block, bool) {
	snap := bc.snapshot()
	if h < 0 || h >= len(snap) {
		return nil, false
	}
	return snap[h], true
}

// GetStarsByWalletAddress returns every star claimed by address in chain
// order. A block whose body no longer decodes fails the whole call with
// ErrDecode; run ValidateChain first when that matters.
func (bc *Blockchain) GetStarsByWalletAddress(address string) ([]OwnedStar, error) {
	stars := []OwnedStar{}
	for _, b := range bc.snapshot() {
		var rec StarRecord
		ok, err := b.DecodePayload(&rec)
		if err != nil {
			return nil, err
		}
		if ok && rec.Address == address {
			stars = append(stars, OwnedStar{Star: rec.Star, Owner: rec.Address})
		}
	}
	return stars, nil
}

// ValidateChain checks every block of the current chain and returns one
// message per problem found. An empty result means the chain is intact.
func (bc *Blockchain) ValidateChain() []string {
	return Validate(bc.snapshot())
}

// snapshot returns the blocks as of now. The capped slice never observes
// later appends.
func (bc *Blockchain) snapshot() []*Block {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	n := len(bc.blocks)
	return bc.blocks[:n:n]
}
