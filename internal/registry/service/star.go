package service

import (
	"context"
	"errors"
	"time"

	"github.com/jmerrifield20/starregistry/internal/archive"
	"github.com/jmerrifield20/starregistry/internal/chain"
	"github.com/jmerrifield20/starregistry/internal/ownership"
	"go.uber.org/zap"
)

// Rejection reasons reported to RejectRecordFunc.
const (
	ReasonMalformed = "malformed"
	ReasonExpired   = "expired"
	ReasonSignature = "signature"
	ReasonVerifier  = "verifier"
	ReasonInternal  = "internal"
)

// SubmitRequest is a claim on a star by the wallet at Address.
type SubmitRequest struct {
	Address   string
	Message   string
	Signature string
	Star      chain.Star
}

// Overview summarises the ledger.
type Overview struct {
	ChainID string `json:"chain_id"`
	Height  int    `json:"height"`
	TipHash string `json:"tip_hash"`
}

// AppendRecordFunc is an optional callback invoked after every successful append.
type AppendRecordFunc func(height int)

// RejectRecordFunc is an optional callback invoked for every rejected submission.
type RejectRecordFunc func(reason string)

// ArchiveFailureFunc is an optional callback invoked when a block could not be archived.
type ArchiveFailureFunc func()

// StarService registers stars on the ledger and mirrors every sealed block
// into the archive.
type StarService struct {
	ledger    *chain.Blockchain
	archive   archive.Archive // nil = no archiving
	onAppend  AppendRecordFunc
	onReject  RejectRecordFunc
	onArchive ArchiveFailureFunc
	logger    *zap.Logger
}

// NewStarService creates a StarService. store may be nil to disable archiving.
func NewStarService(ledger *chain.Blockchain, store archive.Archive, logger *zap.Logger) *StarService {
	return &StarService{ledger: ledger, archive: store, logger: logger}
}

// SetAppendRecord configures the append callback.
func (s *StarService) SetAppendRecord(fn AppendRecordFunc) {
	s.onAppend = fn
}

// SetRejectRecord configures the rejection callback.
func (s *StarService) SetRejectRecord(fn RejectRecordFunc) {
	s.onReject = fn
}

// SetArchiveFailure configures the archive failure callback.
func (s *StarService) SetArchiveFailure(fn ArchiveFailureFunc) {
	s.onArchive = fn
}

// RequestValidation returns the message the wallet at address must sign.
func (s *StarService) RequestValidation(address string) string {
	msg := s.ledger.RequestOwnershipMessage(address)
	s.logger.Debug("ownership message issued", zap.String("address", address))
	return msg
}

// ValidityWindow returns how long a message from RequestValidation stays usable.
func (s *StarService) ValidityWindow() time.Duration {
	return s.ledger.MaxMessageAge()
}

// SubmitStar verifies the ownership proof in req and appends the star.
// The returned error matches the sentinels of the chain and ownership
// packages. Archive failures are logged but never fail the submission.
func (s *StarService) SubmitStar(ctx context.Context, req SubmitRequest) (*chain.Block, error) {
	block, err := s.ledger.SubmitStar(req.Address, req.Message, req.Signature, req.Star)
	if err != nil {
		reason := RejectionReason(err)
		s.logger.Info("star submission rejected",
			zap.String("address", req.Address),
			zap.String("reason", reason),
			zap.Error(err),
		)
		if s.onReject != nil {
			s.onReject(reason)
		}
		return nil, err
	}

	s.logger.Info("star registered",
		zap.String("address", req.Address),
		zap.Int("height", block.Height),
		zap.String("hash", block.Hash),
	)
	if s.onAppend != nil {
		s.onAppend(block.Height)
	}
	s.archiveBlock(ctx, block)
	return block, nil
}

// Sync copies every ledger block into the archive. Blocks already archived
// are left untouched, so Sync also backfills earlier archive failures.
func (s *StarService) Sync(ctx context.Context) error {
	if s.archive == nil {
		return nil
	}
	id := s.ledger.ID()
	for _, b := range s.ledger.Blocks() {
		if err := s.archive.Put(ctx, id, b); err != nil {
			if s.onArchive != nil {
				s.onArchive()
			}
			return err
		}
	}
	return nil
}

func (s *StarService) archiveBlock(ctx context.Context, b *chain.Block) {
	if s.archive == nil {
		return
	}
	if err := s.archive.Put(ctx, s.ledger.ID(), b); err != nil {
		s.logger.Error("archive block",
			zap.Int("height", b.Height),
			zap.String("hash", b.Hash),
			zap.Error(err),
		)
		if s.onArchive != nil {
			s.onArchive()
		}
	}
}

// BlockByHash returns the block with the given hash.
func (s *StarService) BlockByHash(hash string) (*chain.Block, bool) {
	return s.ledger.GetBlockByHash(hash)
}

// BlockByHeight returns the block at height h.
func (s *StarService) BlockByHeight(h int) (*chain.Block, bool) {
	return s.ledger.GetBlockByHeight(h)
}

// StarsByOwner returns every star claimed by address in chain order.
func (s *StarService) StarsByOwner(address string) ([]chain.OwnedStar, error) {
	stars, err := s.ledger.GetStarsByWalletAddress(address)
	if err != nil {
		s.logger.Error("list stars", zap.String("address", address), zap.Error(err))
		return nil, err
	}
	return stars, nil
}

// Validate runs a full integrity check and returns the problems found.
func (s *StarService) Validate() []string {
	errs := s.ledger.ValidateChain()
	if len(errs) > 0 {
		s.logger.Warn("ledger integrity check failed", zap.Strings("errors", errs))
	}
	return errs
}

// Overview returns the chain ID, height and tip hash.
func (s *StarService) Overview() Overview {
	tip := s.ledger.Tip()
	return Overview{
		ChainID: s.ledger.ID(),
		Height:  tip.Height,
		TipHash: tip.Hash,
	}
}

// RejectionReason classifies a SubmitStar error.
func RejectionReason(err error) string {
	switch {
	case errors.Is(err, ownership.ErrMalformedMessage), errors.Is(err, chain.ErrInvalidStar):
		return ReasonMalformed
	case errors.Is(err, chain.ErrVerificationExpired):
		return ReasonExpired
	case errors.Is(err, chain.ErrInvalidSignature):
		return ReasonSignature
	case errors.Is(err, chain.ErrVerifierBackend):
		return ReasonVerifier
	default:
		return ReasonInternal
	}
}
