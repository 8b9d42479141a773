package archive

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmerrifield20/starregistry/internal/chain"
	"go.uber.org/zap"
)

// PostgresArchive stores blocks in the star_blocks table created by
// cmd/migrate.
type PostgresArchive struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresArchive creates a PostgresArchive backed by the given connection pool.
func NewPostgresArchive(pool *pgxpool.Pool, logger *zap.Logger) *PostgresArchive {
	return &PostgresArchive{pool: pool, logger: logger}
}

// Put implements Archive.
func (a *PostgresArchive) Put(ctx context.Context, chainID string, b *chain.Block) error {
	tag, err := a.pool.Exec(ctx,
		`INSERT INTO star_blocks (chain_id, height, hash, body, time, previous_hash)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (chain_id, height) DO NOTHING`,
		chainID, b.Height, b.Hash, b.Body, b.Time, b.PreviousBlockHash,
	)
	if err != nil {
		return fmt.Errorf("insert block #%d: %w", b.Height, err)
	}

	a.logger.Debug("block archived",
		zap.String("chain_id", chainID),
		zap.Int("height", b.Height),
		zap.Bool("inserted", tag.RowsAffected() == 1),
	)
	return nil
}

// Blocks implements Archive.
func (a *PostgresArchive) Blocks(ctx context.Context, chainID string) ([]*chain.Block, error) {
	rows, err := a.pool.Query(ctx,
		`SELECT height, hash, body, time, previous_hash
		 FROM star_blocks WHERE chain_id = $1 ORDER BY height ASC`, chainID,
	)
	if err != nil {
		return nil, fmt.Errorf("query archive: %w", err)
	}
	defer rows.Close()

	var blocks []*chain.Block
	for rows.Next() {
		b := &chain.Block{}
		if err := rows.Scan(&b.Height, &b.Hash, &b.Body, &b.Time, &b.PreviousBlockHash); err != nil {
			return nil, fmt.Errorf("scan archive row: %w", err)
		}
		blocks = append(blocks, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(blocks) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrChainNotFound, chainID)
	}
	return blocks, nil
}

// Chains implements Archive.
func (a *PostgresArchive) Chains(ctx context.Context) ([]string, error) {
	rows, err := a.pool.Query(ctx,
		`SELECT chain_id FROM star_blocks WHERE height = 0 ORDER BY time ASC, chain_id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("query archived chains: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan chain id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Close implements Archive. The pool is owned by the caller and left open.
func (a *PostgresArchive) Close() error {
	return nil
}
