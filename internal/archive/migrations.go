package archive

import "embed"

// Migrations holds the SQL schema for PostgresArchive. Migrator applies it.
//
//go:embed migrations/*.sql
var Migrations embed.FS
