package database

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

const migrationsTableDDL = `CREATE TABLE IF NOT EXISTS schema_migrations (
	version    INTEGER PRIMARY KEY,
	name       TEXT NOT NULL,
	applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
)`

// Migration is one numbered schema file.
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// Migrator applies numbered SQL files (e.g. "001_initial_schema.sql") once
// each, recording them in schema_migrations.
type Migrator struct {
	db     *DB
	logger *zap.Logger
}

// NewMigrator creates a new migrator
func NewMigrator(db *DB, logger *zap.Logger) *Migrator {
	return &Migrator{db: db, logger: logger}
}

// Pending returns the migrations under dir in fsys that have not been
// applied yet, in version order.
func (m *Migrator) Pending(ctx context.Context, fsys fs.FS, dir string) ([]Migration, error) {
	if _, err := m.db.ExecContext(ctx, migrationsTableDDL); err != nil {
		return nil, fmt.Errorf("create migrations table: %w", err)
	}

	all, err := LoadMigrations(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("load migrations: %w", err)
	}

	rows, err := m.db.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("read applied migrations: %w", err)
	}
	defer rows.Close()

	done := make(map[int]struct{})
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		done[v] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return slices.DeleteFunc(all, func(mg Migration) bool {
		_, ok := done[mg.Version]
		return ok
	}), nil
}

// Run applies every pending migration and returns how many succeeded. It
// stops at the first failure; earlier migrations stay committed.
func (m *Migrator) Run(ctx context.Context, fsys fs.FS, dir string) (int, error) {
	pending, err := m.Pending(ctx, fsys, dir)
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		m.logger.Debug("Schema up to date", zap.String("dir", dir))
		return 0, nil
	}

	for i, mg := range pending {
		m.logger.Info("Applying migration",
			zap.Int("version", mg.Version),
			zap.String("name", mg.Name))
		if err := m.apply(ctx, mg); err != nil {
			return i, fmt.Errorf("migration %d (%s): %w", mg.Version, mg.Name, err)
		}
	}

	m.logger.Info("Database migrations completed", zap.Int("applied", len(pending)))
	return len(pending), nil
}

func (m *Migrator) apply(ctx context.Context, mg Migration) error {
	return m.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, mg.SQL); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			"INSERT INTO schema_migrations (version, name) VALUES (?, ?)", mg.Version, mg.Name)
		return err
	})
}

// LoadMigrations reads the .sql files directly under dir, ordered by version.
func LoadMigrations(fsys fs.FS, dir string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, err
	}

	var out []Migration
	byVersion := make(map[int]string)
	for _, e := range entries {
		if e.IsDir() || path.Ext(e.Name()) != ".sql" {
			continue
		}

		version, name, err := parseMigrationName(e.Name())
		if err != nil {
			return nil, err
		}
		if prev, dup := byVersion[version]; dup {
			return nil, fmt.Errorf("duplicate migration version %d: %s and %s", version, prev, e.Name())
		}
		byVersion[version] = e.Name()

		body, err := fs.ReadFile(fsys, path.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", e.Name(), err)
		}
		out = append(out, Migration{Version: version, Name: name, SQL: string(body)})
	}

	slices.SortFunc(out, func(a, b Migration) int { return a.Version - b.Version })
	return out, nil
}

// parseMigrationName splits "007_add_index.sql" into 7 and "add_index".
func parseMigrationName(filename string) (int, string, error) {
	stem := strings.TrimSuffix(filename, ".sql")
	num, name, _ := strings.Cut(stem, "_")
	version, err := strconv.Atoi(num)
	if err != nil || version <= 0 {
		return 0, "", fmt.Errorf("invalid migration filename %q: want NNN_name.sql", filename)
	}
	return version, name, nil
}
