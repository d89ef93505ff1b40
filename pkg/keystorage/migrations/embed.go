package migrations

import "embed"

// FS contains embedded SQLite migrations for key storage.
//
//go:embed *.sql
var FS embed.FS
