package sink

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"traffic-harvester/internal/config"
	"traffic-harvester/internal/model"
)

type captured struct {
	header http.Header
	body   []byte
}

func capture(t *testing.T, status int) (*httptest.Server, <-chan captured) {
	t.Helper()
	ch := make(chan captured, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		ch <- captured{header: r.Header.Clone(), body: b}
		w.WriteHeader(status)
		_, _ = w.Write([]byte("nope"))
	}))
	t.Cleanup(srv.Close)
	return srv, ch
}

func fp(v float64) *float64 { return &v }

func sampleEvents() []model.Event {
	return []model.Event{
		{ID: "a1", Timestamp: 1700000000000, Latitude: fp(-33.45), Longitude: fp(-70.66), Type: "ACCIDENT", City: "Ñuñoa"},
		{Timestamp: 1700000001000, Latitude: fp(-33.4), Longitude: fp(-70.6), Type: model.TypeJam, City: "Santiago"},
	}
}

func TestStorage_Push(t *testing.T) {
	srv, ch := capture(t, http.StatusCreated)
	s := NewStorage(config.StorageConfig{URL: srv.URL + "/events", UserAgent: "harvester-test"}, "run-1")
	assert.Equal(t, "storage", s.Name())

	require.NoError(t, s.Push(context.Background(), sampleEvents()))
	got := <-ch
	assert.Equal(t, "application/json", got.header.Get("Content-Type"))
	assert.Equal(t, "run-1", got.header.Get(RunHeader))
	assert.Equal(t, "harvester-test", got.header.Get("User-Agent"))

	var decoded []model.Event
	require.NoError(t, json.Unmarshal(got.body, &decoded))
	assert.Equal(t, sampleEvents(), decoded)
}

func TestStorage_EmptyCorpusIsArray(t *testing.T) {
	srv, ch := capture(t, http.StatusOK)
	s := NewStorage(config.StorageConfig{URL: srv.URL}, "")
	require.NoError(t, s.Push(context.Background(), nil))
	assert.JSONEq(t, `[]`, string((<-ch).body))
}

func TestStorage_Non2xx(t *testing.T) {
	srv, _ := capture(t, http.StatusServiceUnavailable)
	err := NewStorage(config.StorageConfig{URL: srv.URL}, "").Push(context.Background(), sampleEvents())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "http 503")
	assert.Contains(t, err.Error(), "nope")
}
