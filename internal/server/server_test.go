package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"traffic-harvester/internal/config"
	"traffic-harvester/internal/ingest"
	"traffic-harvester/internal/metrics"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.CorpusSize.Set(42)
	progress := func() ingest.Progress {
		return ingest.Progress{State: ingest.Waiting, Collected: 42, Target: 100, Cycles: 3}
	}
	return New(config.Default().Server, reg, progress, "run-abc", zerolog.Nop())
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthz(t *testing.T) {
	rec := get(t, newTestServer(t).Handler(), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestStatus(t *testing.T) {
	rec := get(t, newTestServer(t).Handler(), "/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "run-abc", body["run_id"])
	assert.Equal(t, "waiting", body["state"])
	assert.EqualValues(t, 42, body["collected"])
	assert.EqualValues(t, 100, body["target"])
	assert.EqualValues(t, 3, body["cycles"])
}

func TestMetrics(t *testing.T) {
	rec := get(t, newTestServer(t).Handler(), "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "harvester_corpus_size 42")
}
