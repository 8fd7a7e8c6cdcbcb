package model

import (
	"strconv"
)

// TypeJam is the category reserved for congestion events.
const TypeJam = "jam"

// Point is one coordinate pair of a jam path (x = longitude, y = latitude).
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Segment is a road segment reference attached to a jam.
type Segment struct {
	FromNode  int64 `json:"fromNode"`
	ID        int64 `json:"ID"`
	ToNode    int64 `json:"toNode"`
	IsForward bool  `json:"isForward"`
}

// Event is the normalized representation of an alert or a jam.
// Optional upstream fields are pointers so that absent and zero stay distinct
// in the persisted snapshot.
type Event struct {
	ID        string   `json:"id,omitempty"` // upstream uuid; empty when upstream has none
	Timestamp int64    `json:"timestamp"`    // pubMillis
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	Type      string   `json:"type"`

	// alert-only
	Subtype      string `json:"subtype,omitempty"`
	Reliability  *int   `json:"reliability,omitempty"`
	ReportRating *int   `json:"reportRating,omitempty"`
	Confidence   *int   `json:"confidence,omitempty"`
	Magvar       *int   `json:"magvar,omitempty"`

	// jam-only
	SpeedKMH *float64  `json:"speedKMH,omitempty"`
	Length   *int      `json:"length,omitempty"`
	Delay    *int      `json:"delay,omitempty"`
	Level    *int      `json:"level,omitempty"`
	Line     []Point   `json:"line,omitempty"`
	Segments []Segment `json:"segments,omitempty"`

	Street  string `json:"street,omitempty"`
	City    string `json:"city,omitempty"`
	Country string `json:"country,omitempty"`
}

// Collection is the ordered corpus of events collected so far.
type Collection []Event

// IsJam reports whether the event was sourced from a congestion record.
func (e Event) IsJam() bool { return e.Type == TypeJam }

// Key is the identity string of the event: the upstream id when present,
// otherwise the (latitude, longitude, type) tuple.
func (e Event) Key() string {
	if e.ID != "" {
		return "id:" + e.ID
	}
	return GeoKey(e)
}

// GeoKey renders the (latitude, longitude, type) tuple. Absent coordinates
// render as "-" so that two events without coordinates share a key.
func GeoKey(e Event) string {
	return "geo:" + coord(e.Latitude) + "," + coord(e.Longitude) + "," + e.Type
}

func coord(v *float64) string {
	if v == nil {
		return "-"
	}
	if *v == 0 {
		return "0"
	}
	return strconv.FormatFloat(*v, 'g', -1, 64)
}
