// Package migrations SQL-схема для PostgreSQL и SQLite, встроенная в бинарник.
package migrations

import "embed"

// FS содержит каталоги postgres/ и sqlite/.
//
//go:embed postgres/*.sql sqlite/*.sql
var FS embed.FS

const (
	PostgresDir = "postgres"
	SQLiteDir   = "sqlite"
)
