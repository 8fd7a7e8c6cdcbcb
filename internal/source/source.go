package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"traffic-harvester/internal/config"
	"traffic-harvester/internal/model"
)

type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]model.Event, error)
}

var ErrUnknownSource = errors.New("unknown source type")

// FetchError wraps a transport, status or parse failure talking to the feed.
// Status is the HTTP status when one was received.
type FetchError struct {
	Source string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: http %d: %v", e.Source, e.Status, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func NewFromConfig(c config.FeedConfig, log zerolog.Logger) (Source, error) {
	switch c.Type {
	case "georss", "":
		return NewGeoRSS(c, log), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownSource, c.Type)
	}
}
