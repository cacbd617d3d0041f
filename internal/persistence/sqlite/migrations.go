// Package sqlite persists structuring results and job records in the
// service's SQLite database.
package sqlite

import "embed"

// MigrationsDir is the directory inside Migrations holding the schema files.
const MigrationsDir = "migrations"

// Migrations holds the numbered schema files applied by database.Migrator.
//
//go:embed migrations/*.sql
var Migrations embed.FS
