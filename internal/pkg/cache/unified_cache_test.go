package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/FACorreiaa/churninsight-dashboard/internal/app/api"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time          { return f.t }
func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func newTestCache(t *testing.T, ttl time.Duration) (*UnifiedCache[string], *fakeClock) {
	t.Helper()
	c := NewUnifiedCache[string](ttl, "test", zap.NewNop())
	t.Cleanup(c.Close)
	clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	c.now = clock.now
	return c, clock
}

func TestUnifiedCacheGetSet(t *testing.T) {
	c, clock := newTestCache(t, time.Minute)

	_, ok := c.Get("a")
	assert.False(t, ok)

	c.Set("a", "alpha")
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, "alpha", v)

	clock.advance(61 * time.Second)
	_, ok = c.Get("a")
	assert.False(t, ok, "entry must expire after ttl")
	assert.Equal(t, 0, c.Size())

	assert.Equal(t, CacheMetrics{Hits: 1, Misses: 2, Sets: 1}, c.GetMetrics())
}

func TestUnifiedCacheSweepAndClear(t *testing.T) {
	c, clock := newTestCache(t, time.Minute)

	c.Set("old", "1")
	clock.advance(45 * time.Second)
	c.Set("new", "2")
	clock.advance(30 * time.Second)

	assert.Equal(t, 1, c.sweep())
	assert.Equal(t, 1, c.Size())

	c.Delete("new")
	assert.Equal(t, 0, c.Size())

	c.Set("x", "y")
	c.Clear()
	assert.Equal(t, 0, c.Size())
}

func TestCloseIsIdempotent(t *testing.T) {
	c := NewUnifiedCache[int](time.Second, "close", nil)
	c.Close()
	c.Close()
}

func TestCacheKeyBuilder(t *testing.T) {
	from := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC)

	k1, err := NewCacheKeyBuilder().AddViewer("admin").Add("user", "ana").AddDateRange(from, to).Build()
	require.NoError(t, err)
	k2, err := NewCacheKeyBuilder().AddViewer("admin").Add("user", "ana").AddDateRange(from, to).Build()
	require.NoError(t, err)
	k3, err := NewCacheKeyBuilder().AddViewer("other").Add("user", "ana").AddDateRange(from, to).Build()
	require.NoError(t, err)

	assert.Equal(t, k1, k2)
	assert.NotEqual(t, k1, k3)
	assert.Len(t, k1, 64)
}

func TestCacheManager(t *testing.T) {
	cm := NewCacheManager(nil)
	defer cm.Close()

	cm.Users.Set("k", []api.User{{Usuario: "ana"}})
	cm.Filtered.Set("k", []api.LogEntry{{Usuario: "ana"}})

	_, ok := cm.Users.Get("k")
	assert.True(t, ok)
	assert.Equal(t, int64(1), cm.GetAllMetrics()["users"].Hits)

	cm.ClearAll()
	assert.Equal(t, 0, cm.Users.Size())
	assert.Equal(t, 0, cm.Filtered.Size())
}

func TestUnifiedCacheGetOrLoad(t *testing.T) {
	c, _ := newTestCache(t, time.Minute)
	ctx := context.Background()

	var calls atomic.Int32
	release := make(chan struct{})
	load := func(context.Context) (string, error) {
		calls.Add(1)
		<-release
		return "loaded", nil
	}

	var wg sync.WaitGroup
	results := make([]string, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, _, err := c.GetOrLoad(ctx, "k", load)
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, v := range results {
		assert.Equal(t, "loaded", v)
	}

	v, hit, err := c.GetOrLoad(ctx, "k", load)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "loaded", v)
	assert.Equal(t, int32(1), calls.Load())
}

func TestUnifiedCacheGetOrLoadDoesNotCacheErrors(t *testing.T) {
	c, _ := newTestCache(t, time.Minute)
	ctx := context.Background()
	boom := errors.New("backend down")

	_, _, err := c.GetOrLoad(ctx, "k", func(context.Context) (string, error) { return "", boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, c.Size())

	v, hit, err := c.GetOrLoad(ctx, "k", func(context.Context) (string, error) { return "ok", nil })
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "ok", v)
}
