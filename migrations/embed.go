// Package migrations embeds the SQL schema of the project library.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
