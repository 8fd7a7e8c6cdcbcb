package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"traffic-harvester/internal/config"
	"traffic-harvester/internal/model"
	"traffic-harvester/internal/util"
)

type lokiSink struct {
	cfg    config.LokiConfig
	client *http.Client
}

func NewLoki(cfg config.LokiConfig) Sink {
	to := cfg.Timeout
	if to == 0 {
		to = 10 * time.Second
	}
	return &lokiSink{cfg: cfg, client: util.NewHTTPClient(to)}
}

func (l *lokiSink) Name() string { return "loki" }

type lokiStream struct {
	Stream map[string]string `json:"stream"`
	Values [][2]string       `json:"values"`
}

type lokiPayload struct {
	Streams []lokiStream `json:"streams"`
}

func (l *lokiSink) Push(ctx context.Context, events []model.Event) error {
	if len(events) == 0 {
		return nil
	}
	payload, err := buildLokiPayload(l.cfg.Job, events, time.Now())
	if err != nil {
		return err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	endpoint := strings.TrimRight(l.cfg.URL, "/") + "/loki/api/v1/push"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if l.cfg.TenantID != "" {
		req.Header.Set("X-Scope-OrgID", l.cfg.TenantID)
	}
	if ua := l.cfg.UserAgent; ua != "" {
		req.Header.Set("User-Agent", ua)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("loki push failed http %d", resp.StatusCode)
	}
	return nil
}

type lokiEntry struct {
	ns   int64
	line string
}

type lokiGroup struct {
	labels  map[string]string
	entries []lokiEntry
}

// buildLokiPayload groups events into one stream per (type, city). Entries
// inside a stream are ordered by timestamp as Loki requires.
func buildLokiPayload(job string, events []model.Event, now time.Time) (lokiPayload, error) {
	if job == "" {
		job = "traffic-harvester"
	}
	byStream := map[string]*lokiGroup{}
	var order []string

	for _, e := range events {
		line, err := json.Marshal(e)
		if err != nil {
			return lokiPayload{}, err
		}
		lbls := map[string]string{
			"job":  job,
			"type": labelValue(e.Type),
		}
		if c := labelValue(e.City); c != "" {
			lbls["city"] = c
		}
		key := lbls["type"] + "|" + lbls["city"]
		st, ok := byStream[key]
		if !ok {
			st = &lokiGroup{labels: lbls}
			byStream[key] = st
			order = append(order, key)
		}
		// Loki expects ns timestamp as a decimal string
		ns := e.Timestamp * int64(time.Millisecond)
		if e.Timestamp <= 0 {
			ns = now.UnixNano()
		}
		st.entries = append(st.entries, lokiEntry{ns: ns, line: string(line)})
	}

	out := lokiPayload{Streams: make([]lokiStream, 0, len(order))}
	for _, key := range order {
		st := byStream[key]
		sort.SliceStable(st.entries, func(i, j int) bool { return st.entries[i].ns < st.entries[j].ns })
		values := make([][2]string, 0, len(st.entries))
		for _, en := range st.entries {
			values = append(values, [2]string{strconv.FormatInt(en.ns, 10), en.line})
		}
		out.Streams = append(out.Streams, lokiStream{Stream: st.labels, Values: values})
	}
	return out, nil
}

// labelValue folds accents and case so "Ñuñoa" and "nunoa" share a stream.
func labelValue(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	res, _, err := transform.String(t, strings.TrimSpace(s))
	if err != nil {
		res = s
	}
	return strings.ToLower(res)
}
