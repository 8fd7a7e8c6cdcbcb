package sink

import (
	"context"
	"io"

	"traffic-harvester/internal/model"
)

// Sink is the minimal interface all sinks must implement.
type Sink interface {
	Name() string
	Push(ctx context.Context, events []model.Event) error
}

// Close releases sinks that hold connections (kafka, postgres).
func Close(sinks []Sink) error {
	var first error
	for _, s := range sinks {
		if c, ok := s.(io.Closer); ok {
			if err := c.Close(); err != nil && first == nil {
				first = err
			}
		}
	}
	return first
}
