package source

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"traffic-harvester/internal/config"
)

func unmarshal(s string, v any) error { return json.Unmarshal([]byte(s), v) }

func feedConfig(url string) config.FeedConfig {
	c := config.Default().Feed
	c.URL = url
	c.HTTP.Timeout = 2 * time.Second
	return c
}

func TestGeoRSS_Fetch(t *testing.T) {
	reqs := make(chan *http.Request, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqs <- r.Clone(context.Background())
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(feedBody))
	}))
	defer srv.Close()

	g := NewGeoRSS(feedConfig(srv.URL+"/live-map/api/georss"), zerolog.Nop())
	events, err := g.Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, events, 3)

	got := <-reqs
	assert.Equal(t, "/live-map/api/georss", got.URL.Path)
	q := got.URL.Query()
	assert.Equal(t, "-33.3", q.Get("top"))
	assert.Equal(t, "-33.6", q.Get("bottom"))
	assert.Equal(t, "-70.85", q.Get("left"))
	assert.Equal(t, "-70.5", q.Get("right"))
	assert.Equal(t, "row", q.Get("env"))
	assert.Equal(t, "alerts,traffic", q.Get("types"))
	assert.Equal(t, config.DefaultUserAgent, got.Header.Get("User-Agent"))
	assert.Equal(t, config.DefaultReferer, got.Header.Get("Referer"))
	assert.Equal(t, "application/json", got.Header.Get("Accept"))
}

func TestGeoRSS_EmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	events, err := NewGeoRSS(feedConfig(srv.URL), zerolog.Nop()).Fetch(context.Background())
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestGeoRSS_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"forbidden", http.StatusForbidden, "blocked"},
		{"server error", http.StatusBadGateway, ""},
		{"not json", http.StatusOK, "<html></html>"},
		{"jam without path", http.StatusOK, `{"jams":[{"uuid":1}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			events, err := NewGeoRSS(feedConfig(srv.URL), zerolog.Nop()).Fetch(context.Background())
			assert.Nil(t, events)
			var fe *FetchError
			require.True(t, errors.As(err, &fe), "got %v", err)
			assert.Equal(t, "georss", fe.Source)
			if tt.status != http.StatusOK {
				assert.Equal(t, tt.status, fe.Status)
			}
		})
	}
}

func TestGeoRSS_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewGeoRSS(feedConfig(url), zerolog.Nop()).Fetch(context.Background())
	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Zero(t, fe.Status)
}

func TestNewFromConfig(t *testing.T) {
	s, err := NewFromConfig(config.Default().Feed, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, "georss", s.Name())

	c := config.Default().Feed
	c.Type = "rss"
	_, err = NewFromConfig(c, zerolog.Nop())
	assert.True(t, errors.Is(err, ErrUnknownSource))
}
