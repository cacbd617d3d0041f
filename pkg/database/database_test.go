package database

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(context.Background(), Config{Path: filepath.Join(t.TempDir(), "data", "test.db")}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

var testMigrations = fstest.MapFS{
	"migrations/002_add_notes.sql":      {Data: []byte(`ALTER TABLE items ADD COLUMN notes TEXT;`)},
	"migrations/001_initial_schema.sql": {Data: []byte(`CREATE TABLE items (id INTEGER PRIMARY KEY, name TEXT NOT NULL);`)},
	"migrations/README.md":              {Data: []byte(`ignored`)},
}

func TestMigrator_RunsPendingOnce(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	m := NewMigrator(db, zap.NewNop())

	applied, err := m.Run(ctx, testMigrations, "migrations")
	require.NoError(t, err)
	assert.Equal(t, 2, applied)

	_, err = db.ExecContext(ctx, `INSERT INTO items (name, notes) VALUES ('a', 'b')`)
	require.NoError(t, err)

	applied, err = m.Run(ctx, testMigrations, "migrations")
	require.NoError(t, err)
	assert.Zero(t, applied)

	var name string
	require.NoError(t, db.QueryRowContext(ctx, `SELECT name FROM schema_migrations WHERE version = 1`).Scan(&name))
	assert.Equal(t, "initial_schema", name)
}

func TestMigrator_Pending(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	m := NewMigrator(db, zap.NewNop())

	pending, err := m.Pending(ctx, testMigrations, "migrations")
	require.NoError(t, err)
	require.Len(t, pending, 2)

	_, err = m.Run(ctx, testMigrations, "migrations")
	require.NoError(t, err)

	pending, err = m.Pending(ctx, testMigrations, "migrations")
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestLoadMigrations(t *testing.T) {
	migrations, err := LoadMigrations(testMigrations, "migrations")
	require.NoError(t, err)
	require.Len(t, migrations, 2)
	assert.Equal(t, 1, migrations[0].Version)
	assert.Equal(t, "add_notes", migrations[1].Name)

	_, err = LoadMigrations(fstest.MapFS{"m/x_bad.sql": {Data: []byte("")}}, "m")
	assert.Error(t, err)

	_, err = LoadMigrations(fstest.MapFS{
		"m/001_a.sql": {Data: []byte("")},
		"m/1_b.sql":   {Data: []byte("")},
	}, "m")
	assert.ErrorContains(t, err, "duplicate migration version")
}

func TestMigrator_FailedMigrationRollsBack(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	m := NewMigrator(db, zap.NewNop())

	broken := fstest.MapFS{
		"m/001_ok.sql":     {Data: []byte(`CREATE TABLE ok (id INTEGER);`)},
		"m/002_broken.sql": {Data: []byte(`CREATE TABLE nope (;`)},
	}
	applied, err := m.Run(ctx, broken, "m")
	require.Error(t, err)
	assert.Equal(t, 1, applied)

	var count int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations`).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestWithTransaction(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	_, err := db.ExecContext(ctx, `CREATE TABLE kv (k TEXT PRIMARY KEY, v TEXT)`)
	require.NoError(t, err)

	t.Run("commits on success", func(t *testing.T) {
		err := db.WithTransaction(ctx, func(tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx, `INSERT INTO kv VALUES ('a', '1')`)
			return err
		})
		require.NoError(t, err)

		var v string
		require.NoError(t, db.QueryRowContext(ctx, `SELECT v FROM kv WHERE k = 'a'`).Scan(&v))
		assert.Equal(t, "1", v)
	})

	t.Run("rolls back on error", func(t *testing.T) {
		boom := errors.New("boom")
		err := db.WithTransaction(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, `INSERT INTO kv VALUES ('b', '2')`); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)

		var count int
		require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM kv WHERE k = 'b'`).Scan(&count))
		assert.Zero(t, count)
	})

	t.Run("rolls back and repanics", func(t *testing.T) {
		assert.Panics(t, func() {
			_ = db.WithTransaction(ctx, func(tx *sql.Tx) error {
				_, _ = tx.ExecContext(ctx, `INSERT INTO kv VALUES ('c', '3')`)
				panic("bad")
			})
		})

		var count int
		require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM kv WHERE k = 'c'`).Scan(&count))
		assert.Zero(t, count)
	})
}
