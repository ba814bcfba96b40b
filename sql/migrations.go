// Package migrations embeds the goose migrations of every supported credential
// store. Each database has its own directory.
package migrations

import "embed"

const (
	DirPostgres = "postgres"
	DirSQLite   = "sqlite"
)

//go:embed postgres/*.sql sqlite/*.sql
var FS embed.FS
