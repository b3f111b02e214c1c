package ingest

import (
	"embed"
	"io/fs"
)

// migrationsFS holds the postgres schema plus the sqlite variants under
// data/sql/migrations/sqlite.
//
//go:embed data/sql/migrations/*.sql data/sql/migrations/sqlite/*.sql
var migrationsFS embed.FS

// GetMigrationsFS returns the full embedded migration tree.
func GetMigrationsFS() fs.FS {
	return migrationsFS
}

// GetCoreMigrationsFS returns the ingest schema migration tree.
func GetCoreMigrationsFS() fs.FS {
	return migrationsFS
}
