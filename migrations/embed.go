// Package migrations embeds the SQLite schema.
package migrations

import "embed"

// FS holds the numbered migration files.
//
//go:embed *.sql
var FS embed.FS

// Initial is the name of the first migration.
const Initial = "001_initial_schema.up.sql"
