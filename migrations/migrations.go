// Package migrations embeds the versioned schema so that the migrate
// command and the test harness always run the same SQL.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
