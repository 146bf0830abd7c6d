// Package migrations embeds the SQL schema migrations of the products table.
package migrations

import "embed"

// FS holds the *.up.sql / *.down.sql files in golang-migrate naming.
//
//go:embed *.sql
var FS embed.FS
