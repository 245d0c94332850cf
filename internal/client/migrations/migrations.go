// Package migrations embeds the schema of the local alarm book.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
