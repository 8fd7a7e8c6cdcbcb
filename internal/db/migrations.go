package db

import (
	"fmt"

	"gorm.io/gorm"
)

var migrationStatements = []string{
	`CREATE TABLE IF NOT EXISTS traffic_events (
		event_key       TEXT PRIMARY KEY,
		upstream_id     TEXT,
		pub_millis      BIGINT NOT NULL,
		latitude        DOUBLE PRECISION,
		longitude       DOUBLE PRECISION,
		type            TEXT NOT NULL,
		subtype         TEXT,
		street          TEXT,
		city            TEXT,
		country         TEXT,
		reliability     INT,
		report_rating   INT,
		confidence      INT,
		magvar          INT,
		speed_kmh       DOUBLE PRECISION,
		length          INT,
		delay           INT,
		level           INT,
		line            JSONB,
		segments        JSONB,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_traffic_events_type ON traffic_events(type);`,
	`CREATE INDEX IF NOT EXISTS idx_traffic_events_pub_millis ON traffic_events(pub_millis);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_traffic_events_upstream_id ON traffic_events(upstream_id) WHERE upstream_id IS NOT NULL;`,
}

func runMigrations(db *gorm.DB) error {
	for i, stmt := range migrationStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
