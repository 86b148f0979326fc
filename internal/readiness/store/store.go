// Package store loads scored readiness rubrics from Postgres behind a Redis
// read-through cache.
package store

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"readiness-workers/internal/common/logger"
	"readiness-workers/internal/common/metrics"
	"readiness-workers/internal/readiness"
)

const snapshotQuery = `SELECT scored_rubric FROM startup_readiness_results WHERE org_id = $1`

var ErrNotFound = stderrors.New("readiness snapshot not found")

// RubricStore returns the raw scored rubric document for an org.
type RubricStore interface {
	Load(ctx context.Context, orgID string) ([]byte, error)
	Invalidate(ctx context.Context, orgID string) error
}

type Store struct {
	db     *sql.DB
	redis  *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

// New builds a store. A nil redis client disables caching.
func New(db *sql.DB, rdb *redis.Client, ttl time.Duration, log logger.Logger) *Store {
	return &Store{
		db:     db,
		redis:  rdb,
		ttl:    ttl,
		logger: log.WithFields(map[string]interface{}{"component": "readiness-store"}),
	}
}

func CacheKey(orgID string) string {
	return "readiness:snapshot:" + orgID
}

func (s *Store) Load(ctx context.Context, orgID string) ([]byte, error) {
	cacheKey := CacheKey(orgID)

	if s.redis != nil {
		val, err := s.redis.Get(ctx, cacheKey).Bytes()
		switch {
		case err == nil:
			metrics.ReadinessCacheLookups.WithLabelValues("hit").Inc()
			return val, nil
		case stderrors.Is(err, redis.Nil):
			metrics.ReadinessCacheLookups.WithLabelValues("miss").Inc()
		default:
			metrics.ReadinessCacheLookups.WithLabelValues("error").Inc()
			s.logger.Warn("readiness cache read failed", map[string]interface{}{
				"orgId": orgID,
				"error": err.Error(),
			})
		}
	}

	var raw []byte
	err := s.db.QueryRowContext(ctx, snapshotQuery, orgID).Scan(&raw)
	if stderrors.Is(err, sql.ErrNoRows) || (err == nil && len(raw) == 0) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query readiness snapshot: %w", err)
	}

	if s.redis != nil {
		if err := s.redis.Set(ctx, cacheKey, string(raw), s.ttl).Err(); err != nil {
			s.logger.Warn("readiness cache write failed", map[string]interface{}{
				"orgId": orgID,
				"error": err.Error(),
			})
		}
	}
	return raw, nil
}

// Invalidate drops the cached snapshot so the next Load reads Postgres.
func (s *Store) Invalidate(ctx context.Context, orgID string) error {
	if s.redis == nil {
		return nil
	}
	return s.redis.Del(ctx, CacheKey(orgID)).Err()
}

// LoadReport decodes the stored rubric and builds its report.
func (s *Store) LoadReport(ctx context.Context, orgID string, maxGaps int) (*readiness.Report, error) {
	raw, err := s.Load(ctx, orgID)
	if err != nil {
		return nil, err
	}
	tree, err := readiness.DecodeTree(raw)
	if err != nil {
		return nil, fmt.Errorf("decode readiness snapshot for %s: %w", orgID, err)
	}
	report := readiness.BuildReport(tree, maxGaps)
	return &report, nil
}
