package repository

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"traffic-harvester/internal/model"
)

type EventRepository struct {
	db *gorm.DB
}

func NewEventRepository(db *gorm.DB) *EventRepository {
	return &EventRepository{db: db}
}

type TrafficEvent struct {
	EventKey     string         `gorm:"column:event_key;primaryKey"`
	UpstreamID   *string        `gorm:"column:upstream_id"`
	PubMillis    int64          `gorm:"column:pub_millis;not null"`
	Latitude     *float64       `gorm:"column:latitude"`
	Longitude    *float64       `gorm:"column:longitude"`
	Type         string         `gorm:"column:type;not null"`
	Subtype      *string        `gorm:"column:subtype"`
	Street       *string        `gorm:"column:street"`
	City         *string        `gorm:"column:city"`
	Country      *string        `gorm:"column:country"`
	Reliability  *int           `gorm:"column:reliability"`
	ReportRating *int           `gorm:"column:report_rating"`
	Confidence   *int           `gorm:"column:confidence"`
	Magvar       *int           `gorm:"column:magvar"`
	SpeedKMH     *float64       `gorm:"column:speed_kmh"`
	Length       *int           `gorm:"column:length"`
	Delay        *int           `gorm:"column:delay"`
	Level        *int           `gorm:"column:level"`
	Line         datatypes.JSON `gorm:"column:line;type:jsonb"`
	Segments     datatypes.JSON `gorm:"column:segments;type:jsonb"`
	CreatedAt    time.Time
}

func (TrafficEvent) TableName() string { return "traffic_events" }

// InsertEvents writes events in batches, skipping keys already stored.
// It returns the number of rows actually inserted.
func (r *EventRepository) InsertEvents(ctx context.Context, events []model.Event, batchSize int) (int64, error) {
	if len(events) == 0 {
		return 0, nil
	}
	rows := make([]TrafficEvent, 0, len(events))
	now := time.Now()
	for _, e := range events {
		row, err := ToRow(e)
		if err != nil {
			return 0, err
		}
		row.CreatedAt = now
		rows = append(rows, row)
	}
	if batchSize <= 0 {
		batchSize = 500
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(&rows, batchSize)
	return res.RowsAffected, res.Error
}

// ToRow maps an event to its table row. Empty strings become NULL.
func ToRow(e model.Event) (TrafficEvent, error) {
	row := TrafficEvent{
		EventKey:     e.Key(),
		UpstreamID:   optional(e.ID),
		PubMillis:    e.Timestamp,
		Latitude:     e.Latitude,
		Longitude:    e.Longitude,
		Type:         e.Type,
		Subtype:      optional(e.Subtype),
		Street:       optional(e.Street),
		City:         optional(e.City),
		Country:      optional(e.Country),
		Reliability:  e.Reliability,
		ReportRating: e.ReportRating,
		Confidence:   e.Confidence,
		Magvar:       e.Magvar,
		SpeedKMH:     e.SpeedKMH,
		Length:       e.Length,
		Delay:        e.Delay,
		Level:        e.Level,
	}
	if len(e.Line) > 0 {
		b, err := json.Marshal(e.Line)
		if err != nil {
			return TrafficEvent{}, err
		}
		row.Line = datatypes.JSON(b)
	}
	if len(e.Segments) > 0 {
		b, err := json.Marshal(e.Segments)
		if err != nil {
			return TrafficEvent{}, err
		}
		row.Segments = datatypes.JSON(b)
	}
	return row, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
