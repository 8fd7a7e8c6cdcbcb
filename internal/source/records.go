package source

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"traffic-harvester/internal/model"
)

// ErrEmptyPath is returned for a jam whose line has no points; its
// representative coordinates cannot be derived.
var ErrEmptyPath = errors.New("jam without path")

// feedResponse is the georss payload. Either list may be missing.
type feedResponse struct {
	Alerts []alertRecord `json:"alerts"`
	Jams   []jamRecord   `json:"jams"`
}

// record is one upstream shape; normalize turns it into the unified Event.
type record interface {
	normalize() (model.Event, error)
}

// upstreamID accepts the uuid as a JSON string or number (jams use numbers).
type upstreamID string

func (u *upstreamID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*u = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*u = upstreamID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("uuid: %w", err)
	}
	*u = upstreamID(n.String())
	return nil
}

type location struct {
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
}

type alertRecord struct {
	UUID         upstreamID `json:"uuid"`
	PubMillis    int64      `json:"pubMillis"`
	Location     *location  `json:"location"`
	Type         string     `json:"type"`
	Subtype      string     `json:"subtype"`
	Street       string     `json:"street"`
	City         string     `json:"city"`
	Country      string     `json:"country"`
	Reliability  *int       `json:"reliability"`
	ReportRating *int       `json:"reportRating"`
	Confidence   *int       `json:"confidence"`
	Magvar       *int       `json:"magvar"`
}

func (a alertRecord) normalize() (model.Event, error) {
	e := model.Event{
		ID:           string(a.UUID),
		Timestamp:    a.PubMillis,
		Type:         a.Type,
		Subtype:      a.Subtype,
		Street:       a.Street,
		City:         a.City,
		Country:      a.Country,
		Reliability:  a.Reliability,
		ReportRating: a.ReportRating,
		Confidence:   a.Confidence,
		Magvar:       a.Magvar,
	}
	if a.Location != nil {
		e.Latitude = a.Location.Y
		e.Longitude = a.Location.X
	}
	return e, nil
}

type jamRecord struct {
	UUID      upstreamID      `json:"uuid"`
	PubMillis int64           `json:"pubMillis"`
	Line      []model.Point   `json:"line"`
	Street    string          `json:"street"`
	City      string          `json:"city"`
	Country   string          `json:"country"`
	SpeedKMH  *float64        `json:"speedKMH"`
	Length    *int            `json:"length"`
	Delay     *int            `json:"delay"`
	Level     *int            `json:"level"`
	Segments  []model.Segment `json:"segments"`
}

func (j jamRecord) normalize() (model.Event, error) {
	if len(j.Line) == 0 {
		return model.Event{}, fmt.Errorf("%w: uuid=%q", ErrEmptyPath, string(j.UUID))
	}
	lat, lon := j.Line[0].Y, j.Line[0].X
	return model.Event{
		ID:        string(j.UUID),
		Timestamp: j.PubMillis,
		Latitude:  &lat,
		Longitude: &lon,
		Type:      model.TypeJam,
		Street:    j.Street,
		City:      j.City,
		Country:   j.Country,
		SpeedKMH:  j.SpeedKMH,
		Length:    j.Length,
		Delay:     j.Delay,
		Level:     j.Level,
		Line:      j.Line,
		Segments:  j.Segments,
	}, nil
}

func (r feedResponse) records() []record {
	out := make([]record, 0, len(r.Alerts)+len(r.Jams))
	for _, a := range r.Alerts {
		out = append(out, a)
	}
	for _, j := range r.Jams {
		out = append(out, j)
	}
	return out
}

// Normalize decodes a georss body into events, alerts first then jams.
// A body with neither list is an empty batch.
func Normalize(body []byte) ([]model.Event, error) {
	var resp feedResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode feed: %w", err)
	}
	recs := resp.records()
	events := make([]model.Event, 0, len(recs))
	for _, r := range recs {
		e, err := r.normalize()
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, nil
}

// formatCoord renders a bounding box edge for the query string.
func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
