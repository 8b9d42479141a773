package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/jmerrifield20/starregistry/internal/chain"
)

// Key prefixes
const (
	prefixBlocks = "blk:" // blk:<chain id>:<height> → block JSON
	prefixChains = "gen:" // gen:<chain id> → genesis time
)

// PebbleArchive stores blocks in a Pebble database.
type PebbleArchive struct {
	db *pebble.DB
	mu sync.Mutex // serialises Put's check-and-set
}

// OpenPebble opens (or creates) a Pebble archive at path.
func OpenPebble(path string) (*PebbleArchive, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create archive directory: %w", err)
	}

	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open pebble archive: %w", err)
	}
	return &PebbleArchive{db: db}, nil
}

func blockKey(chainID string, height int) []byte {
	return []byte(fmt.Sprintf("%s%s:%012d", prefixBlocks, chainID, height))
}

func chainKey(chainID string) []byte {
	return []byte(prefixChains + chainID)
}

// Put implements Archive.
func (a *PebbleArchive) Put(_ context.Context, chainID string, b *chain.Block) error {
	key := blockKey(chainID, b.Height)

	a.mu.Lock()
	defer a.mu.Unlock()

	_, closer, err := a.db.Get(key)
	if err == nil {
		closer.Close()
		return nil
	}
	if !errors.Is(err, pebble.ErrNotFound) {
		return fmt.Errorf("check block #%d: %w", b.Height, err)
	}

	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("marshal block #%d: %w", b.Height, err)
	}

	batch := a.db.NewBatch()
	defer batch.Close()

	if err := batch.Set(key, data, nil); err != nil {
		return err
	}
	if b.IsGenesis() {
		if err := batch.Set(chainKey(chainID), []byte(fmt.Sprintf("%012d", b.Time)), nil); err != nil {
			return err
		}
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("write block #%d: %w", b.Height, err)
	}
	return nil
}

// Blocks implements Archive.
func (a *PebbleArchive) Blocks(_ context.Context, chainID string) ([]*chain.Block, error) {
	prefix := []byte(prefixBlocks + chainID + ":")
	iter, err := a.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixUpperBound(prefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var blocks []*chain.Block
	for iter.First(); iter.Valid(); iter.Next() {
		b := &chain.Block{}
		if err := json.Unmarshal(iter.Value(), b); err != nil {
			return nil, fmt.Errorf("unmarshal %s: %w", iter.Key(), err)
		}
		blocks = append(blocks, b)
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}
	if len(blocks) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrChainNotFound, chainID)
	}
	return blocks, nil
}

// Chains implements Archive.
func (a *PebbleArchive) Chains(_ context.Context) ([]string, error) {
	prefix := []byte(prefixChains)
	iter, err := a.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixUpperBound(prefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	type entry struct{ id, started string }
	var entries []entry
	for iter.First(); iter.Valid(); iter.Next() {
		entries = append(entries, entry{
			id:      string(iter.Key()[len(prefix):]),
			started: string(iter.Value()),
		})
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}

	sort.SliceStable(entries, func(i, j int) bool { return entries[i].started < entries[j].started })
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.id
	}
	return ids, nil
}

// Close implements Archive.
func (a *PebbleArchive) Close() error {
	return a.db.Close()
}

// prefixUpperBound returns the smallest key greater than every key with prefix.
func prefixUpperBound(prefix []byte) []byte {
	upper := make([]byte, len(prefix))
	copy(upper, prefix)
	for i := len(upper) - 1; i >= 0; i-- {
		if upper[i] < 0xff {
			upper[i]++
			return upper[:i+1]
		}
	}
	return nil
}
