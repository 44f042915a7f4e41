package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/filerank/pkg/health"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistersOnGivenRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.ContextsTotal.WithLabelValues("ranked").Add(2)
	m.ContextsTotal.WithLabelValues("empty_query").Inc()
	m.CacheHitsTotal.Inc()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ContextsTotal.WithLabelValues("ranked")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheHitsTotal))

	// A second registry must accept a fresh set of collectors.
	assert.NotPanics(t, func() { New(prometheus.NewRegistry()) })
}

func TestMuxServesMetricsAndHealth(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.SinkWritesTotal.WithLabelValues("ok").Inc()
	srv := httptest.NewServer(NewMux(reg, health.NewChecker()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), `filerank_sink_writes_total{status="ok"} 1`)

	resp, err = http.Get(srv.URL + "/health/ready")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
