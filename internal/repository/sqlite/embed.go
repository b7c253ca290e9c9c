package sqlite

import "embed"

// MigrationFS embeds the goose SQL migrations into the compiled binary, so
// a `ragts process` build carries its own schema and never depends on
// migration files existing on disk next to the database.
//
//go:embed migrations/*.sql
var MigrationFS embed.FS
