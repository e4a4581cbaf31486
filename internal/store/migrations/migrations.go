// Package migrations embeds the run history schema.
package migrations

import "embed"

// FS holds the ordered SQL migration files.
//
//go:embed *.sql
var FS embed.FS
