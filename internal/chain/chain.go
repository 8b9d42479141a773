// Package chain implements the star registry ledger: an append-only sequence
// of blocks in which every block records the SHA-256 digest of its predecessor.
//
// The chain always starts with a genesis block at height 0 that has no
// predecessor. Every later block carries a star ownership claim that was
// admitted by SubmitStar only after its ownership verification message passed
// the expiry window and the signature check.
//
// Tampering with any stored block field is detected by ValidateChain, which
// recomputes each digest and re-checks every link against the stored digest
// of the preceding block.
package chain
