package stats

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type countingRepo struct {
	calls int64
	delay time.Duration
	usage Usage
}

func (r *countingRepo) Collect(ctx context.Context) (Usage, error) {
	atomic.AddInt64(&r.calls, 1)
	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	return r.usage, nil
}

func newTestCache(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestGetCachesSnapshot(t *testing.T) {
	repo := &countingRepo{usage: Usage{Totals: Totals{Users: 3, Files: 7, SizeBytes: 1024}}}
	svc := NewService(repo, newTestCache(t), time.Minute, nil)
	ctx := context.Background()

	first, err := svc.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(3), first.Totals.Users)
	require.Equal(t, int64(1), atomic.LoadInt64(&repo.calls))

	// Second read is served from Redis.
	second, err := svc.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, first.Totals, second.Totals)
	require.Equal(t, int64(1), atomic.LoadInt64(&repo.calls))
}

func TestRebuildBypassesCache(t *testing.T) {
	repo := &countingRepo{usage: Usage{Totals: Totals{Files: 1}}}
	svc := NewService(repo, newTestCache(t), time.Minute, nil)
	ctx := context.Background()

	_, err := svc.Get(ctx)
	require.NoError(t, err)

	repo.usage.Totals.Files = 2
	rebuilt, err := svc.Rebuild(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), rebuilt.Totals.Files)

	// The refreshed snapshot is what later reads see.
	cached, err := svc.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), cached.Totals.Files)
	require.Equal(t, int64(2), atomic.LoadInt64(&repo.calls))
}

func TestConcurrentMissesCollapse(t *testing.T) {
	repo := &countingRepo{delay: 50 * time.Millisecond, usage: Usage{Totals: Totals{Users: 1}}}
	svc := NewService(repo, newTestCache(t), time.Minute, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Get(ctx)
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	require.Equal(t, int64(1), atomic.LoadInt64(&repo.calls))
}

func TestGetWithoutCacheHitsDatabase(t *testing.T) {
	repo := &countingRepo{usage: Usage{Totals: Totals{Users: 1}}}
	svc := NewService(repo, nil, time.Minute, nil)
	ctx := context.Background()

	_, err := svc.Get(ctx)
	require.NoError(t, err)
	_, err = svc.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), atomic.LoadInt64(&repo.calls))
}
