package archive

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// ErrSchemaOutdated is returned by Migrator.Check when the star_blocks schema
// has pending or half-applied migrations.
var ErrSchemaOutdated = errors.New("archive schema is not up to date")

// migrationsTable records which archive migrations have run. A row with
// dirty = true marks a migration that failed part-way.
const migrationsTable = "archive_schema_migrations"

// Migration is one numbered schema change, read from a pair of files named
// NNN_name.up.sql and NNN_name.down.sql.
type Migration struct {
	Version int64
	Name    string
	up      string
	down    string
}

// MigrationState is a migration together with what the database recorded for it.
type MigrationState struct {
	Migration
	Applied bool
	Dirty   bool
}

// Migrator applies the embedded archive migrations to Postgres.
type Migrator struct {
	pool       *pgxpool.Pool
	fsys       fs.FS
	migrations []Migration
	logger     *zap.Logger
}

// NewMigrator creates a Migrator for the migrations embedded in this package.
func NewMigrator(pool *pgxpool.Pool, logger *zap.Logger) (*Migrator, error) {
	ms, err := loadMigrations(Migrations)
	if err != nil {
		return nil, err
	}
	return &Migrator{pool: pool, fsys: Migrations, migrations: ms, logger: logger}, nil
}

// Migrations returns the known migrations in version order.
func (m *Migrator) Migrations() []Migration {
	out := make([]Migration, len(m.migrations))
	copy(out, m.migrations)
	return out
}

// Up applies every pending migration in version order and returns how many ran.
func (m *Migrator) Up(ctx context.Context) (int, error) {
	states, err := m.Status(ctx)
	if err != nil {
		return 0, err
	}

	applied := 0
	for _, st := range states {
		if st.Applied {
			continue
		}
		if err := m.apply(ctx, st.Migration, st.up, true); err != nil {
			return applied, err
		}
		m.logger.Info("archive migration applied",
			zap.Int64("version", st.Version),
			zap.String("name", st.Name),
		)
		applied++
	}
	return applied, nil
}

// Down reverts the newest applied migration and returns its version. It
// returns 0 when nothing is applied.
func (m *Migrator) Down(ctx context.Context) (int64, error) {
	states, err := m.Status(ctx)
	if err != nil {
		return 0, err
	}

	for i := len(states) - 1; i >= 0; i-- {
		st := states[i]
		if !st.Applied {
			continue
		}
		if st.down == "" {
			return 0, fmt.Errorf("migration %03d_%s has no down file", st.Version, st.Name)
		}
		if err := m.apply(ctx, st.Migration, st.down, false); err != nil {
			return 0, err
		}
		m.logger.Info("archive migration reverted",
			zap.Int64("version", st.Version),
			zap.String("name", st.Name),
		)
		return st.Version, nil
	}
	return 0, nil
}

// Status reports every known migration and whether it has been applied.
func (m *Migrator) Status(ctx context.Context) ([]MigrationState, error) {
	if err := m.ensureTable(ctx); err != nil {
		return nil, err
	}

	rows, err := m.pool.Query(ctx, `SELECT version, dirty FROM `+migrationsTable)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", migrationsTable, err)
	}
	defer rows.Close()

	recorded := make(map[int64]bool)
	for rows.Next() {
		var (
			version int64
			dirty   bool
		)
		if err := rows.Scan(&version, &dirty); err != nil {
			return nil, fmt.Errorf("scan %s: %w", migrationsTable, err)
		}
		recorded[version] = dirty
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return mergeStates(m.migrations, recorded), nil
}

// Check returns ErrSchemaOutdated unless every migration is cleanly applied.
func (m *Migrator) Check(ctx context.Context) error {
	states, err := m.Status(ctx)
	if err != nil {
		return err
	}
	return checkStates(states)
}

func (m *Migrator) ensureTable(ctx context.Context) error {
	_, err := m.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS `+migrationsTable+` (
			version    BIGINT      NOT NULL PRIMARY KEY,
			dirty      BOOLEAN     NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("create %s: %w", migrationsTable, err)
	}
	return nil
}

// apply runs one migration file. The version is marked dirty first, so a
// failure is visible to Check; the file and the bookkeeping that clears the
// mark then run in a single transaction.
func (m *Migrator) apply(ctx context.Context, mig Migration, file string, up bool) error {
	sql, err := fs.ReadFile(m.fsys, file)
	if err != nil {
		return fmt.Errorf("read %s: %w", file, err)
	}

	if _, err := m.pool.Exec(ctx,
		`INSERT INTO `+migrationsTable+` (version, dirty) VALUES ($1, true)
		 ON CONFLICT (version) DO UPDATE SET dirty = true`, mig.Version,
	); err != nil {
		return fmt.Errorf("mark %03d dirty: %w", mig.Version, err)
	}

	return pgx.BeginFunc(ctx, m.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, string(sql)); err != nil {
			return fmt.Errorf("apply %s: %w", path.Base(file), err)
		}
		var err error
		if up {
			_, err = tx.Exec(ctx,
				`UPDATE `+migrationsTable+` SET dirty = false, applied_at = now() WHERE version = $1`, mig.Version)
		} else {
			_, err = tx.Exec(ctx, `DELETE FROM `+migrationsTable+` WHERE version = $1`, mig.Version)
		}
		if err != nil {
			return fmt.Errorf("record %03d: %w", mig.Version, err)
		}
		return nil
	})
}

// loadMigrations pairs the NNN_name.up.sql and NNN_name.down.sql files under
// migrations/ and returns them in version order. Other files are ignored.
func loadMigrations(fsys fs.FS) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, "migrations")
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}

	byVersion := make(map[int64]*Migration)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		var up bool
		var stem string
		switch name := e.Name(); {
		case strings.HasSuffix(name, ".up.sql"):
			up, stem = true, strings.TrimSuffix(name, ".up.sql")
		case strings.HasSuffix(name, ".down.sql"):
			stem = strings.TrimSuffix(name, ".down.sql")
		default:
			continue
		}

		version, label, err := parseMigrationName(stem)
		if err != nil {
			return nil, fmt.Errorf("migration %s: %w", e.Name(), err)
		}
		mig, ok := byVersion[version]
		if !ok {
			mig = &Migration{Version: version, Name: label}
			byVersion[version] = mig
		}
		if mig.Name != label {
			return nil, fmt.Errorf("migration %03d has two names: %s and %s", version, mig.Name, label)
		}

		file := "migrations/" + e.Name()
		if up {
			mig.up = file
		} else {
			mig.down = file
		}
	}

	out := make([]Migration, 0, len(byVersion))
	for _, mig := range byVersion {
		if mig.up == "" {
			return nil, fmt.Errorf("migration %03d_%s has no up file", mig.Version, mig.Name)
		}
		out = append(out, *mig)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// parseMigrationName splits "001_star_blocks" into 1 and "star_blocks".
func parseMigrationName(stem string) (int64, string, error) {
	num, label, ok := strings.Cut(stem, "_")
	if !ok || label == "" {
		return 0, "", errors.New("want NNN_name")
	}
	version, err := strconv.ParseInt(num, 10, 64)
	if err != nil || version <= 0 {
		return 0, "", fmt.Errorf("version %q is not a positive integer", num)
	}
	return version, label, nil
}

func mergeStates(ms []Migration, recorded map[int64]bool) []MigrationState {
	states := make([]MigrationState, len(ms))
	for i, mig := range ms {
		dirty, ok := recorded[mig.Version]
		states[i] = MigrationState{Migration: mig, Applied: ok && !dirty, Dirty: dirty}
	}
	return states
}

func checkStates(states []MigrationState) error {
	for _, st := range states {
		switch {
		case st.Dirty:
			return fmt.Errorf("%w: migration %03d_%s failed part-way", ErrSchemaOutdated, st.Version, st.Name)
		case !st.Applied:
			return fmt.Errorf("%w: migration %03d_%s is pending", ErrSchemaOutdated, st.Version, st.Name)
		}
	}
	return nil
}
