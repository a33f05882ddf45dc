// Package migrations embeds the SQL schema of the project database.
package migrations

import "embed"

// FS holds the NNN_name.up.sql files applied in version order.
//
//go:embed *.sql
var FS embed.FS
