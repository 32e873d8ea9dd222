package migrations

import "embed"

// MigrationsFS holds the SQL migration files applied by goose at startup.
//
//go:embed *.sql
var MigrationsFS embed.FS
