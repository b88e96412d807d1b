// Package storage provides a key/value cache over SQLite with
// msgpack-encoded values and per-entry expiration.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Cache stores msgpack-encoded values in the cache table.
type Cache struct {
	db *sql.DB
}

// NewCache creates a new cache instance.
func NewCache(db *sql.DB) *Cache {
	return &Cache{db: db}
}

// Set stores a value under key with the given TTL.
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := msgpack.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode cache value for %s: %w", key, err)
	}

	expiresAt := time.Now().Add(ttl).Unix()
	_, err = c.db.ExecContext(ctx, `
		INSERT INTO cache (key, value, expires_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			expires_at = excluded.expires_at
	`, key, data, expiresAt)
	return err
}

// Get retrieves the value stored under key into dest. Missing, expired
// and undecodable entries all report sql.ErrNoRows so callers treat
// them uniformly as a miss.
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) error {
	var value []byte
	var expiresAt int64
	err := c.db.QueryRowContext(ctx,
		"SELECT value, expires_at FROM cache WHERE key = ?", key,
	).Scan(&value, &expiresAt)
	if err != nil {
		return err
	}

	if time.Now().Unix() >= expiresAt {
		return sql.ErrNoRows
	}

	if err := msgpack.Unmarshal(value, dest); err != nil {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a cache entry.
func (c *Cache) Delete(ctx context.Context, key string) error {
	_, err := c.db.ExecContext(ctx, "DELETE FROM cache WHERE key = ?", key)
	return err
}

// DeleteByPrefix removes all cache entries matching a prefix.
func (c *Cache) DeleteByPrefix(ctx context.Context, prefix string) error {
	_, err := c.db.ExecContext(ctx, "DELETE FROM cache WHERE key LIKE ?", prefix+"%")
	return err
}

// PurgeExpired deletes entries whose expiration has passed and returns
// how many were removed.
func (c *Cache) PurgeExpired(ctx context.Context) (int64, error) {
	result, err := c.db.ExecContext(ctx,
		"DELETE FROM cache WHERE expires_at <= ?", time.Now().Unix())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
