// Package migrations embeds the schema for both store drivers.
package migrations

import "embed"

// Postgres holds migrations under postgres/.
//
//go:embed postgres/*.sql
var Postgres embed.FS

// SQLite holds migrations under sqlite/.
//
//go:embed sqlite/*.sql
var SQLite embed.FS
