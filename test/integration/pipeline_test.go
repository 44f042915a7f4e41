// Package integration contains tests that drive the batch pipeline through
// its real sources, sinks and result cache. Redis is replaced by an
// in-process miniredis server so the tests need no external services.
//
// Run with:
//
//	go test -v ./test/integration/...
package integration

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/filerank/internal/batch"
	"github.com/Adithya-Monish-Kumar-K/filerank/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/filerank/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/filerank/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/filerank/internal/sink"
	"github.com/Adithya-Monish-Kumar-K/filerank/internal/source"
	"github.com/Adithya-Monish-Kumar-K/filerank/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/filerank/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/filerank/pkg/redis"
	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

var parserSnapshot = map[string]string{
	"a.py": "fix bug in parser",
	"b.py": "add parser test",
	"c.py": "unrelated utility",
}

func writeJSON(t *testing.T, path string, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func readRecords(t *testing.T, path string) map[string]ingestion.Record {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := make(map[string]ingestion.Record)
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if line == "" {
			continue
		}
		var rec ingestion.Record
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		out[rec.InstanceID] = rec
	}
	return out
}

func newCache(t *testing.T, m *metrics.Metrics) *cache.ResultCache {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := pkgredis.NewClient(config.RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return cache.New(client, time.Hour, executor.DefaultOptions(), m)
}

func runBatch(t *testing.T, runner *batch.Runner, src source.Source, output string) batch.Summary {
	t.Helper()
	out, err := sink.OpenJSONL(output)
	require.NoError(t, err)
	summary, err := runner.Run(context.Background(), src, out)
	require.NoError(t, err)
	return summary
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

// TestManifestPipeline ranks a pull-request manifest whose entries cover a
// normal snapshot, a missing snapshot, an empty snapshot and an empty query.
func TestManifestPipeline(t *testing.T) {
	dir := t.TempDir()
	snapshots := filepath.Join(dir, "snapshots")
	require.NoError(t, os.MkdirAll(snapshots, 0o755))
	writeJSON(t, filepath.Join(snapshots, "pr_1_code.json"), parserSnapshot)
	writeJSON(t, filepath.Join(snapshots, "pr_3_code.json"), map[string]string{})
	writeJSON(t, filepath.Join(snapshots, "pr_4_code.json"), parserSnapshot)
	manifest := filepath.Join(dir, "prs.json")
	writeJSON(t, manifest, []ingestion.PullRequest{
		{Number: 1, Title: "parser bug", Body: ""},
		{Number: 2, Title: "missing snapshot"},
		{Number: 3, Title: "empty tree"},
		{Number: 4},
	})

	src, err := source.OpenManifest(manifest, snapshots, source.DefaultInstancePrefix)
	require.NoError(t, err)
	runner := batch.New(executor.New(executor.DefaultOptions()), config.BatchConfig{
		Workers:         3,
		ContextTimeout:  10 * time.Second,
		EmitEmptyCorpus: true,
	})
	output := filepath.Join(dir, "results.jsonl")
	summary := runBatch(t, runner, src, output)

	assert.Equal(t, 2, summary.Processed)
	assert.Equal(t, 1, summary.EmptyCorpus)
	assert.Equal(t, 2, summary.Skipped)
	assert.Equal(t, 0, summary.Failed)
	assert.Equal(t, 1, summary.Reasons["corpus_unavailable"])
	assert.Equal(t, 1, summary.Reasons["empty_query"])

	records := readRecords(t, output)
	require.Len(t, records, 2)
	ranked := records["MONAI_1"]
	require.NotEmpty(t, ranked.Hits)
	assert.Equal(t, "a.py", ranked.Hits[0].DocID)
	empty, ok := records["MONAI_3"]
	require.True(t, ok)
	assert.NotNil(t, empty.Hits)
	assert.Empty(t, empty.Hits)
}

// TestJSONLPipelineWithCache runs the same input twice against one result
// cache; the second run is served entirely from Redis.
func TestJSONLPipelineWithCache(t *testing.T) {
	dir := t.TempDir()
	writeJSON(t, filepath.Join(dir, "snap.json"), parserSnapshot)
	input := filepath.Join(dir, "contexts.jsonl")
	lines := []string{
		`{"instance_id":"MONAI_1","query":"parser bug","snapshot":"snap.json"}`,
		`{"instance_id":"MONAI_2","title":"parser","body":"bug","snapshot":"snap.json"}`,
		`{"instance_id":"MONAI_3","query":"parser bug","corpus":{"test_parser.py":"parser bug parser bug","parser.py":"parser bug","u1.py":"alpha","u2.py":"beta","u3.py":"gamma"}}`,
		`not json`,
	}
	require.NoError(t, os.WriteFile(input, []byte(strings.Join(lines, "\n")+"\n"), 0o644))

	m := metrics.New(prometheus.NewRegistry())
	rc := newCache(t, m)
	runner := batch.New(executor.New(executor.DefaultOptions()), config.BatchConfig{
		Workers:         2,
		EmitEmptyCorpus: true,
	}, batch.WithCache(rc), batch.WithMetrics(m))

	first := filepath.Join(dir, "first.jsonl")
	src, err := source.OpenJSONL(input)
	require.NoError(t, err)
	s1 := runBatch(t, runner, src, first)
	require.NoError(t, src.Close())

	assert.Equal(t, 3, s1.Processed)
	assert.Equal(t, 1, s1.Reasons["malformed_record"])

	second := filepath.Join(dir, "second.jsonl")
	src, err = source.OpenJSONL(input)
	require.NoError(t, err)
	s2 := runBatch(t, runner, src, second)
	require.NoError(t, src.Close())

	assert.Equal(t, 3, s2.Processed)
	assert.Equal(t, 3, s2.Cached)
	assert.Equal(t, float64(s1.Cached+s2.Cached), testutil.ToFloat64(m.ContextsTotal.WithLabelValues("cached")))

	// Cached records carry their own instance id and the same ranking.
	assert.Equal(t, readRecords(t, first), readRecords(t, second))

	// The penalty on test_parser.py lets parser.py overtake it.
	assert.Equal(t, "parser.py", readRecords(t, first)["MONAI_3"].Hits[0].DocID)
}
