package migrations

import "embed"

// Postgres contém as migrações do Store em Postgres.
//
//go:embed postgres/*.sql
var Postgres embed.FS

// SQLite contém as migrações do Store em SQLite.
//
//go:embed sqlite/*.sql
var SQLite embed.FS
