// Package migrations embeds the audit store schema so the binary is
// self-contained and never depends on the working directory.
package migrations

import "embed"

// FS contains all *.sql migration files embedded at compile time.
//
//go:embed *.sql
var FS embed.FS
