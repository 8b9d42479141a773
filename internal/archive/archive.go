// Package archive mirrors sealed ledger blocks into durable storage so they
// can be audited offline.
//
// The live ledger is volatile and is never rebuilt from an archive. Every
// process run starts a new chain, so archived blocks are grouped by chain ID,
// a random identifier assigned when the run's ledger was created.
//
// Two implementations of the Archive interface are provided:
//   - PebbleArchive: embedded key-value store, for single-host deployments.
//   - PostgresArchive: shared database, for production use.
package archive

import (
	"context"
	"errors"

	"github.com/jmerrifield20/starregistry/internal/chain"
)

// ErrChainNotFound is returned by Blocks for an unknown chain ID.
var ErrChainNotFound = errors.New("chain not found in archive")

// Archive stores copies of sealed blocks.
type Archive interface {
	// Put stores b under chainID. Storing the same height twice keeps the
	// first copy.
	Put(ctx context.Context, chainID string, b *chain.Block) error

	// Blocks returns every block archived under chainID in height order.
	Blocks(ctx context.Context, chainID string) ([]*chain.Block, error)

	// Chains returns the IDs of all archived chains, oldest first.
	Chains(ctx context.Context) ([]string, error)

	// Close releases the underlying storage.
	Close() error
}
