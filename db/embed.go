// Package db embeds the goose migrations so binaries carry their own schema.
package db

import "embed"

// Migrations holds the SQL migrations under migrations/.
//
//go:embed migrations/*.sql
var Migrations embed.FS
