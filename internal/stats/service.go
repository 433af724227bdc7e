package stats

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const cacheKey = "stats:usage"

// DefaultCacheTTL bounds snapshot staleness when no TTL is configured.
const DefaultCacheTTL = 5 * time.Minute

// Service serves usage snapshots from Redis and rebuilds them on demand.
// Concurrent cache misses collapse into a single database pass.
type Service struct {
	repo   Repository
	cache  *redis.Client
	ttl    time.Duration
	group  singleflight.Group
	logger *slog.Logger
}

// NewService constructs a Service. cache may be nil; every Get then hits
// the database directly.
func NewService(repo Repository, cache *redis.Client, ttl time.Duration, logger *slog.Logger) *Service {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, ttl: ttl, logger: logger}
}

// Get returns the cached snapshot, rebuilding it on a miss.
func (s *Service) Get(ctx context.Context) (Usage, error) {
	if s.cache != nil {
		payload, err := s.cache.Get(ctx, cacheKey).Bytes()
		switch {
		case err == nil:
			var usage Usage
			if jsonErr := json.Unmarshal(payload, &usage); jsonErr == nil {
				return usage, nil
			}
			// A corrupt entry falls through to a rebuild.
		case !errors.Is(err, redis.Nil):
			s.logger.Warn("stats cache read failed", "error", err)
		}
	}
	return s.rebuild(ctx)
}

// Rebuild recomputes the snapshot and refreshes the cache unconditionally.
// The worker's warmup cron calls this so interactive requests rarely miss.
func (s *Service) Rebuild(ctx context.Context) (Usage, error) {
	return s.rebuild(ctx)
}

func (s *Service) rebuild(ctx context.Context) (Usage, error) {
	result, err, _ := s.group.Do(cacheKey, func() (any, error) {
		usage, err := s.repo.Collect(ctx)
		if err != nil {
			return Usage{}, err
		}
		s.store(ctx, usage)
		return usage, nil
	})
	if err != nil {
		return Usage{}, err
	}
	return result.(Usage), nil
}

func (s *Service) store(ctx context.Context, usage Usage) {
	if s.cache == nil {
		return
	}
	payload, err := json.Marshal(usage)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, cacheKey, payload, s.ttl).Err(); err != nil {
		s.logger.Warn("stats cache write failed", "error", err)
	}
}
