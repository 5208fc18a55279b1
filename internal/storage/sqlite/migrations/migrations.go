// Package migrations embeds the ledger schema migrations.
package migrations

import "embed"

// FS holds the SQL migration files applied on open.
//
//go:embed *.sql
var FS embed.FS
