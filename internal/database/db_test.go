package database

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := New(Config{
		Path:    filepath.Join(t.TempDir(), "test.db"),
		Profile: ProfileStandard,
		Name:    "test",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return db
}

func TestNewAppliesSchema(t *testing.T) {
	db := openTestDB(t)

	for _, table := range []string{"daily_prices", "cache"} {
		var name string
		err := db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
		assert.Equal(t, table, name)
	}
}

func TestNewCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deeper", "test.db")

	db, err := New(Config{Path: path, Name: "nested"})
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, ProfileStandard, db.Profile(), "empty profile defaults to standard")
	assert.True(t, filepath.IsAbs(db.Path()))
}

func TestNewIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	first, err := New(Config{Path: path, Name: "first"})
	require.NoError(t, err)
	require.NoError(t, first.Close())

	// Re-opening re-applies the schema without error
	second, err := New(Config{Path: path, Name: "second"})
	require.NoError(t, err)
	defer second.Close()

	require.NoError(t, second.QuickCheck(context.Background()))
}

func TestBuildConnectionString(t *testing.T) {
	tests := []struct {
		profile  Profile
		contains []string
	}{
		{ProfileStandard, []string{"journal_mode(WAL)", "synchronous(NORMAL)", "auto_vacuum(INCREMENTAL)"}},
		{ProfileLedger, []string{"journal_mode(WAL)", "synchronous(FULL)", "auto_vacuum(NONE)"}},
		{ProfileCache, []string{"journal_mode(WAL)", "synchronous(OFF)", "auto_vacuum(FULL)"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.profile), func(t *testing.T) {
			connStr := buildConnectionString("/tmp/x.db", tt.profile)
			for _, fragment := range tt.contains {
				assert.Contains(t, connStr, fragment)
			}
			assert.Contains(t, connStr, "foreign_keys(1)")
		})
	}
}

func TestBuildConnectionStringWithURIPath(t *testing.T) {
	connStr := buildConnectionString("file::memory:?cache=shared", ProfileCache)
	assert.Equal(t, 1, strings.Count(connStr, "?"), "existing query string must not be broken")
}

func TestWithTransaction(t *testing.T) {
	db := openTestDB(t)

	t.Run("commit on success", func(t *testing.T) {
		err := WithTransaction(db.Conn(), func(tx *sql.Tx) error {
			_, err := tx.Exec("INSERT INTO cache (key, value, expires_at) VALUES (?, ?, ?)", "k1", []byte("v"), 0)
			return err
		})
		require.NoError(t, err)

		var count int
		require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM cache WHERE key = 'k1'").Scan(&count))
		assert.Equal(t, 1, count)
	})

	t.Run("rollback on error", func(t *testing.T) {
		boom := errors.New("boom")
		err := WithTransaction(db.Conn(), func(tx *sql.Tx) error {
			if _, err := tx.Exec("INSERT INTO cache (key, value, expires_at) VALUES (?, ?, ?)", "k2", []byte("v"), 0); err != nil {
				return err
			}
			return boom
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, boom)

		var count int
		require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM cache WHERE key = 'k2'").Scan(&count))
		assert.Equal(t, 0, count, "insert should be rolled back")
	})

	t.Run("rollback on panic", func(t *testing.T) {
		var err error
		require.NotPanics(t, func() {
			err = WithTransaction(db.Conn(), func(tx *sql.Tx) error {
				if _, execErr := tx.Exec("INSERT INTO cache (key, value, expires_at) VALUES (?, ?, ?)", "k3", []byte("v"), 0); execErr != nil {
					return execErr
				}
				panic("unexpected")
			})
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "panic in transaction")

		var count int
		require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM cache WHERE key = 'k3'").Scan(&count))
		assert.Equal(t, 0, count)
	})

	t.Run("nil database", func(t *testing.T) {
		err := WithTransaction(nil, func(tx *sql.Tx) error { return nil })
		require.Error(t, err)
	})
}

func TestHealthCheck(t *testing.T) {
	db := openTestDB(t)
	assert.NoError(t, db.HealthCheck(context.Background()))
}

func TestMaintenance(t *testing.T) {
	db := openTestDB(t)

	_, err := db.Exec("INSERT INTO cache (key, value, expires_at) VALUES (?, ?, ?)", "k", []byte("v"), 0)
	require.NoError(t, err)

	assert.NoError(t, db.WALCheckpoint(""))
	assert.NoError(t, db.WALCheckpoint("PASSIVE"))
	assert.NoError(t, db.Vacuum())
}

func TestGetStats(t *testing.T) {
	db := openTestDB(t)

	stats, err := db.GetStats()
	require.NoError(t, err)

	assert.Greater(t, stats.PageCount, int64(0))
	assert.Greater(t, stats.PageSize, int64(0))
	assert.GreaterOrEqual(t, stats.SizeBytes, int64(0))
}
