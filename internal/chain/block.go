package chain

import "fmt"

// genesisPayload is the fixed marker recorded in every genesis block.
var genesisPayload = map[string]string{"data": "Genesis Block"}

// Block is a single sealed record in the ledger.
//
// Hash is written once when the block is sealed. The other fields are never
// changed by this package; if they are changed from outside, Hash no longer
// matches RecomputeHash and ValidateChain reports it.
type Block struct {
	Hash              string `json:"hash"`
	Height            int    `json:"height"`
	Body              string `json:"body"`
	Time              int64  `json:"time"`
	PreviousBlockHash string `json:"previousBlockHash"` // empty for the genesis block
}

// NewGenesisBlock returns the sealed genesis block created at the given unix time.
func NewGenesisBlock(time int64) *Block {
	b, err := NewBlock(genesisPayload, 0, "", time)
	if err != nil {
		panic(fmt.Sprintf("chain: encode genesis payload: %v", err))
	}
	return b
}

// NewBlock encodes payload and returns a sealed block linked to previousHash.
func NewBlock(payload any, height int, previousHash string, time int64) (*Block, error) {
	body, err := EncodePayload(payload)
	if err != nil {
		return nil, err
	}
	b := &Block{
		Height:            height,
		Body:              body,
		Time:              time,
		PreviousBlockHash: previousHash,
	}
	b.seal()
	return b, nil
}

// seal stores the block digest. Sealing twice is a programming error.
func (b *Block) seal() {
	if b.Hash != "" {
		panic(fmt.Sprintf("chain: block #%d sealed twice", b.Height))
	}
	b.Hash = b.RecomputeHash()
}

// RecomputeHash returns the digest of the block's current fields. It never
// reads the stored Hash.
func (b *Block) RecomputeHash() string {
	return computeDigest(b.Height, b.Body, b.Time, b.PreviousBlockHash)
}

// IsValid reports whether the stored digest matches the block's fields.
func (b *Block) IsValid() bool {
	return b.Hash == b.RecomputeHash()
}

// IsGenesis reports whether b is the genesis block.
func (b *Block) IsGenesis() bool {
	return b.Height == 0
}

// DecodePayload decodes the block body into v. It returns false without
// touching v for the genesis block, which carries no user data.
func (b *Block) DecodePayload(v any) (bool, error) {
	if b.IsGenesis() {
		return false, nil
	}
	if err := decodeBody(b.Body, v); err != nil {
		return false, fmt.Errorf("block #%d: %w", b.Height, err)
	}
	return true, nil
}
