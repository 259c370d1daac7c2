// Package migrations holds the versioned Postgres schema.
package migrations

import "embed"

//go:embed postgres/*.sql
var Postgres embed.FS

// PostgresDir is the directory of Postgres inside the embedded filesystem.
const PostgresDir = "postgres"
