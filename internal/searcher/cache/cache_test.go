package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/filerank/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/filerank/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/filerank/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/filerank/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/filerank/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/filerank/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/filerank/pkg/resilience"
	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*ResultCache, *miniredis.Miniredis, *metrics.Metrics) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := pkgredis.NewClient(config.RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	m := metrics.New(prometheus.NewRegistry())
	return New(client, time.Hour, executor.DefaultOptions(), m), mr, m
}

func queryContext(id string) ingestion.QueryContext {
	return ingestion.QueryContext{
		InstanceID: id,
		Query:      "parser bug",
		Corpus: []index.Document{
			{ID: "a.py", Content: "fix bug in parser"},
			{ID: "b.py", Content: "add parser test"},
		},
	}
}

func computeOnce(calls *atomic.Int32) func() (*ingestion.Record, error) {
	return func() (*ingestion.Record, error) {
		calls.Add(1)
		return &ingestion.Record{InstanceID: "computed", Hits: []ingestion.Hit{{DocID: "a.py", Score: 1.5}}}, nil
	}
}

func TestGetOrComputeCachesAcrossInstances(t *testing.T) {
	c, mr, m := newTestCache(t)
	ctx := context.Background()
	var calls atomic.Int32

	rec, cached, err := c.GetOrCompute(ctx, queryContext("MONAI_1"), computeOnce(&calls))
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, "MONAI_1", rec.InstanceID)

	rec, cached, err = c.GetOrCompute(ctx, queryContext("MONAI_2"), computeOnce(&calls))
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, "MONAI_2", rec.InstanceID)
	assert.Equal(t, []ingestion.Hit{{DocID: "a.py", Score: 1.5}}, rec.Hits)

	assert.Equal(t, int32(1), calls.Load())
	hits, misses := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(2), misses)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheHitsTotal))

	ttl := mr.TTL(c.Key(queryContext("x")))
	assert.Equal(t, time.Hour, ttl)
}

func TestKeyCoversRankingInputs(t *testing.T) {
	c, _, _ := newTestCache(t)
	base := c.Key(queryContext("a"))
	assert.Equal(t, base, c.Key(queryContext("b")))

	changed := queryContext("a")
	changed.Corpus[1].Content = "add parser tests"
	assert.NotEqual(t, base, c.Key(changed))

	reordered := queryContext("a")
	reordered.Corpus[0], reordered.Corpus[1] = reordered.Corpus[1], reordered.Corpus[0]
	assert.NotEqual(t, base, c.Key(reordered))

	// Field boundaries are length-prefixed.
	split := queryContext("a")
	split.Corpus[0] = index.Document{ID: "a.pyfix", Content: " bug in parser"}
	assert.NotEqual(t, base, c.Key(split))

	opts := executor.DefaultOptions()
	opts.Params.K1 = 1.2
	other := New(nil, time.Hour, opts, nil)
	assert.NotEqual(t, base, other.Key(queryContext("a")))
}

func TestGetOrComputeDeduplicatesConcurrentCallers(t *testing.T) {
	c, _, _ := newTestCache(t)
	var calls atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := c.GetOrCompute(context.Background(), queryContext("x"), computeOnce(&calls))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), calls.Load())
}

func TestComputeErrorIsReturnedAndNotCached(t *testing.T) {
	c, mr, _ := newTestCache(t)
	boom := errors.New("boom")
	_, _, err := c.GetOrCompute(context.Background(), queryContext("x"), func() (*ingestion.Record, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, mr.Keys())
}

func TestRedisOutageOpensBreaker(t *testing.T) {
	c, mr, m := newTestCache(t)
	mr.Close()
	var calls atomic.Int32
	for i := 0; i < 6; i++ {
		rec, cached, err := c.GetOrCompute(context.Background(), queryContext("x"), computeOnce(&calls))
		require.NoError(t, err)
		assert.False(t, cached)
		assert.Equal(t, "x", rec.InstanceID)
	}
	assert.Equal(t, int32(6), calls.Load())
	assert.Equal(t, resilience.StateOpen, c.breaker.GetState())
	assert.Equal(t, float64(resilience.StateOpen), testutil.ToFloat64(m.CircuitBreakerState.WithLabelValues("result-cache")))
}

func TestInvalidate(t *testing.T) {
	c, mr, _ := newTestCache(t)
	var calls atomic.Int32
	_, _, err := c.GetOrCompute(context.Background(), queryContext("x"), computeOnce(&calls))
	require.NoError(t, err)
	require.NoError(t, mr.Set("unrelated", "1"))

	require.NoError(t, c.Invalidate(context.Background()))
	assert.Equal(t, []string{"unrelated"}, mr.Keys())
}
