package db

import "embed"

// MigrationFS embeds the users and sessions schema applied by internal/db/migrate.
//
//go:embed migrations/*.sql
var MigrationFS embed.FS
