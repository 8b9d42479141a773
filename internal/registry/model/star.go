package model

import "github.com/jmerrifield20/starregistry/internal/chain"

// ValidationRequest asks for an ownership message for a wallet.
type ValidationRequest struct {
	Address string `json:"address" binding:"required"`
}

// ValidationResponse carries the message the wallet must sign.
type ValidationResponse struct {
	Address string `json:"address"`
	Message string `json:"message"`
	// ValidityWindow is how long the message stays usable, in seconds.
	ValidityWindow int `json:"validity_window"`
}

// StarInput is the star data of a submission.
type StarInput struct {
	Dec   string `json:"dec"   binding:"required"`
	RA    string `json:"ra"    binding:"required"`
	Mag   string `json:"mag"`
	Cen   string `json:"cen"`
	Story string `json:"story" binding:"required"`
}

// Star converts the input to the ledger representation.
func (s StarInput) Star() chain.Star {
	return chain.Star{Dec: s.Dec, RA: s.RA, Mag: s.Mag, Cen: s.Cen, Story: s.Story}
}

// SubmitStarRequest claims a star with a signed ownership message.
type SubmitStarRequest struct {
	Address   string    `json:"address"   binding:"required"`
	Message   string    `json:"message"   binding:"required"`
	Signature string    `json:"signature" binding:"required"`
	Star      StarInput `json:"star"      binding:"required"`
}

// BlockView is a block together with its decoded star, when it carries one.
type BlockView struct {
	*chain.Block
	Star *chain.OwnedStar `json:"star,omitempty"`
}

// NewBlockView decodes b's payload. A body that no longer decodes is left
// out of the view; the block itself is always returned.
func NewBlockView(b *chain.Block) BlockView {
	v := BlockView{Block: b}
	var rec chain.StarRecord
	if ok, err := b.DecodePayload(&rec); err == nil && ok {
		v.Star = &chain.OwnedStar{Star: rec.Star, Owner: rec.Address}
	}
	return v
}

// ValidationReport is the result of a full chain integrity check.
type ValidationReport struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}
