// Package migrations embeds the session schema migrations.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
