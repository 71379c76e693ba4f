// Package migrations embeds the SQL schema migrations (golang-migrate, iofs).
package migrations

import "embed"

// Files: NNN_name.up.sql / NNN_name.down.sql.
//
//go:embed *.sql
var Files embed.FS
