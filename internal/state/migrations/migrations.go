// Package migrations embeds the state database schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
