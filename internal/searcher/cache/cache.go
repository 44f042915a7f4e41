// Package cache memoises ranked records in Redis. A record is addressed by
// a digest of everything that decides the ranking: the parameters, the
// query and every document of the corpus. Cache failures never fail a
// query context; a circuit breaker stops talking to Redis after repeated
// errors.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/filerank/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/filerank/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/filerank/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/filerank/pkg/resilience"
	"golang.org/x/sync/singleflight"
)

const keyPrefix = "filerank:v1:"

// Store is the subset of the Redis client the cache uses.
type Store interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

type ResultCache struct {
	store   Store
	ttl     time.Duration
	opts    executor.Options
	breaker *resilience.CircuitBreaker
	metrics *metrics.Metrics
	group   singleflight.Group
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

// New builds a cache for records ranked with opts. m may be nil.
func New(store Store, ttl time.Duration, opts executor.Options, m *metrics.Metrics) *ResultCache {
	cbCfg := resilience.CircuitBreakerConfig{
		FailureThreshold: 5,
		ResetTimeout:     30 * time.Second,
	}
	if m != nil {
		cbCfg.OnStateChange = func(name string, to resilience.State) {
			m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		}
	}
	return &ResultCache{
		store:   store,
		ttl:     ttl,
		opts:    opts,
		breaker: resilience.NewCircuitBreaker("result-cache", cbCfg),
		metrics: m,
		logger:  slog.Default().With("component", "result-cache"),
	}
}

// Key returns the cache key of qc. The instance id is not part of it.
func (c *ResultCache) Key(qc ingestion.QueryContext) string {
	h := sha256.New()
	p := c.opts
	fmt.Fprintf(h, "k1=%g|b=%g|wide=%d|narrow=%d|boost=%g|penalty=%g|markers=%s\x00",
		p.Params.K1, p.Params.B, p.WideK, p.NarrowK,
		p.Reweighter.Boost, p.Reweighter.Penalty, strings.Join(p.Reweighter.Markers, ","))
	writeField(h, strings.TrimSpace(qc.Query))
	for _, doc := range qc.Corpus {
		writeField(h, doc.ID)
		writeField(h, doc.Content)
	}
	return fmt.Sprintf("%s%x", keyPrefix, h.Sum(nil))
}

func writeField(h hash.Hash, s string) {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(s)))
	h.Write(n[:])
	h.Write([]byte(s))
}

// Get looks up key. Any failure counts as a miss.
func (c *ResultCache) Get(ctx context.Context, key string) (*ingestion.Record, bool) {
	var (
		data  []byte
		found bool
	)
	err := c.breaker.Execute(func() error {
		var err error
		data, found, err = c.store.Get(ctx, key)
		return err
	})
	if err != nil {
		c.logger.Warn("cache get failed", "key", key, "error", err)
		c.miss()
		return nil, false
	}
	if !found {
		c.miss()
		return nil, false
	}
	var rec ingestion.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.miss()
		return nil, false
	}
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
	c.logger.Debug("cache hit", "key", key)
	return &rec, true
}

// Set stores rec under key. Failures are logged only.
func (c *ResultCache) Set(ctx context.Context, key string, rec *ingestion.Record) {
	data, err := json.Marshal(rec)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	err = c.breaker.Execute(func() error {
		return c.store.Set(ctx, key, data, c.ttl)
	})
	if err != nil {
		c.logger.Warn("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached record for qc or runs compute once for
// all concurrent callers sharing the same key. The returned record always
// carries qc's instance id. cached reports whether the record came from
// Redis.
func (c *ResultCache) GetOrCompute(
	ctx context.Context,
	qc ingestion.QueryContext,
	compute func() (*ingestion.Record, error),
) (rec *ingestion.Record, cached bool, err error) {
	key := c.Key(qc)
	if hit, ok := c.Get(ctx, key); ok {
		return withInstance(hit, qc.InstanceID), true, nil
	}
	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		if hit, ok := c.Get(ctx, key); ok {
			return hit, nil
		}
		computed, err := compute()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, key, computed)
		return computed, nil
	})
	if err != nil {
		return nil, false, err
	}
	return withInstance(val.(*ingestion.Record), qc.InstanceID), false, nil
}

// Invalidate drops every cached record.
func (c *ResultCache) Invalidate(ctx context.Context) error {
	deleted, err := c.store.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidate", "keys_deleted", deleted)
	return nil
}

func (c *ResultCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *ResultCache) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

func withInstance(rec *ingestion.Record, instanceID string) *ingestion.Record {
	hits := make([]ingestion.Hit, len(rec.Hits))
	copy(hits, rec.Hits)
	return &ingestion.Record{InstanceID: instanceID, Hits: hits}
}
