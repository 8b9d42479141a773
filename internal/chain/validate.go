package chain

import "fmt"

// Validate checks blocks, which must be in height order starting at the
// genesis block, and returns one message per problem:
//
//   - "Invalid hash for block #h" when a block's stored digest differs from
//     the digest of its current fields;
//   - "Invalid previous block hash for block #h" when a block's previous hash
//     differs from the stored digest of the block before it.
//
// Both checks run for every block. Overwriting a block's stored digest
// therefore yields two messages: its own hash and the next block's link.
func Validate(blocks []*Block) []string {
	errs := []string{}
	for h, b := range blocks {
		if !b.IsValid() {
			errs = append(errs, fmt.Sprintf("Invalid hash for block #%d", h))
		}
		if h > 0 && b.PreviousBlockHash != blocks[h-1].Hash {
			errs = append(errs, fmt.Sprintf("Invalid previous block hash for block #%d", h))
		}
	}
	return errs
}
