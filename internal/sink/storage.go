package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"traffic-harvester/internal/config"
	"traffic-harvester/internal/model"
	"traffic-harvester/internal/util"
)

// RunHeader carries the harvest run id so the storage service can correlate
// retried deliveries of the same corpus.
const RunHeader = "X-Harvest-Run"

type storageSink struct {
	cfg    config.StorageConfig
	runID  string
	client *http.Client
}

// NewStorage posts the whole corpus as one JSON array to the storage service.
func NewStorage(cfg config.StorageConfig, runID string) Sink {
	to := cfg.Timeout
	if to == 0 {
		to = 30 * time.Second
	}
	return &storageSink{cfg: cfg, runID: runID, client: util.NewHTTPClient(to)}
}

func (s *storageSink) Name() string { return "storage" }

func (s *storageSink) Push(ctx context.Context, events []model.Event) error {
	if events == nil {
		events = []model.Event{}
	}
	body, err := json.Marshal(events)
	if err != nil {
		return fmt.Errorf("encode corpus: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.runID != "" {
		req.Header.Set(RunHeader, s.runID)
	}
	if ua := s.cfg.UserAgent; ua != "" {
		req.Header.Set("User-Agent", ua)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("storage push failed http %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	return nil
}
