package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/pe-report-extractor/internal/record"
	"github.com/garyjia/pe-report-extractor/pkg/database"
)

// CacheStore is a structuring cache kept in the structuring_cache table.
// Entries written with a positive TTL stop being served once expires_at
// passes; PurgeExpired deletes them for good.
type CacheStore struct {
	db     *database.DB
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time
}

// NewCacheStore creates a cache store. A non-positive ttl keeps entries until
// they are cleared.
func NewCacheStore(db *database.DB, ttl time.Duration, logger *zap.Logger) *CacheStore {
	return &CacheStore{
		db:     db,
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
	}
}

func (s *CacheStore) Get(ctx context.Context, key string) (record.Value, bool, error) {
	var payload []byte
	var expiresAt sql.NullTime

	err := s.db.QueryRowContext(ctx,
		`SELECT payload, expires_at FROM structuring_cache WHERE fingerprint = ?`, key,
	).Scan(&payload, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return record.Value{}, false, nil
	}
	if err != nil {
		return record.Value{}, false, fmt.Errorf("failed to read cache entry: %w", err)
	}

	if expiresAt.Valid && !s.now().UTC().Before(expiresAt.Time) {
		if err := s.Delete(ctx, key); err != nil {
			s.logger.Warn("Failed to drop expired cache entry", zap.String("fingerprint", key), zap.Error(err))
		}
		return record.Value{}, false, nil
	}

	rec, err := decodeRecord(payload)
	if err != nil {
		// A payload this build cannot read is treated as a miss and replaced
		// on the next Set.
		s.logger.Warn("Discarding unreadable cache entry", zap.String("fingerprint", key), zap.Error(err))
		return record.Value{}, false, nil
	}
	return rec, true, nil
}

func (s *CacheStore) Set(ctx context.Context, key string, rec record.Value) error {
	payload, err := encodeRecord(rec)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}

	now := s.now().UTC()
	var expiresAt sql.NullTime
	if s.ttl > 0 {
		expiresAt = sql.NullTime{Time: now.Add(s.ttl), Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO structuring_cache (fingerprint, payload, created_at, expires_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(fingerprint) DO UPDATE SET
			payload = excluded.payload,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at
	`, key, payload, now, expiresAt)
	if err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	return nil
}

func (s *CacheStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM structuring_cache WHERE fingerprint = ?`, key); err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}

func (s *CacheStore) Clear(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM structuring_cache`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear cache: %w", err)
	}
	n, _ := res.RowsAffected()
	s.logger.Info("Structuring cache cleared", zap.Int64("entries", n))
	return int(n), nil
}

// Len counts entries that have not expired.
func (s *CacheStore) Len(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM structuring_cache WHERE expires_at IS NULL OR expires_at > ?`,
		s.now().UTC(),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count cache entries: %w", err)
	}
	return n, nil
}

// PurgeExpired deletes every entry whose expiry has passed.
func (s *CacheStore) PurgeExpired(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM structuring_cache WHERE expires_at IS NOT NULL AND expires_at <= ?`,
		s.now().UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired cache entries: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
