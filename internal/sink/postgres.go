package sink

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"traffic-harvester/internal/config"
	"traffic-harvester/internal/db"
	"traffic-harvester/internal/model"
	"traffic-harvester/internal/repository"
)

type postgresSink struct {
	gdb       *gorm.DB
	repo      *repository.EventRepository
	batchSize int
}

// NewPostgres opens the database and migrates the schema. Re-sending the
// corpus is harmless: rows are keyed by event identity.
func NewPostgres(cfg config.PostgresConfig) (Sink, error) {
	gdb, err := db.Open(cfg.DSN)
	if err != nil {
		return nil, err
	}
	return &postgresSink{
		gdb:       gdb,
		repo:      repository.NewEventRepository(gdb),
		batchSize: cfg.BatchSize,
	}, nil
}

func (p *postgresSink) Name() string { return "postgres" }

func (p *postgresSink) Push(ctx context.Context, events []model.Event) error {
	if _, err := p.repo.InsertEvents(ctx, events, p.batchSize); err != nil {
		return fmt.Errorf("insert events: %w", err)
	}
	return nil
}

func (p *postgresSink) Close() error {
	sqlDB, err := p.gdb.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
