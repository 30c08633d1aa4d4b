// Package migrations embeds the schema migrations for each supported dialect.
package migrations

import "embed"

// FS holds sqlite/ and postgres/ migration directories.
//
//go:embed sqlite/*.sql postgres/*.sql
var FS embed.FS

// Dir returns the migration directory for a database driver name.
func Dir(driver string) string {
	switch driver {
	case "pgx", "postgres":
		return "postgres"
	default:
		return "sqlite"
	}
}
