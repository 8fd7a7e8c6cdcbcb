package upload

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"traffic-harvester/internal/metrics"
	"traffic-harvester/internal/model"
	"traffic-harvester/internal/sink"
	"traffic-harvester/internal/util"
)

// UploadError reports a sink that rejected every attempt.
type UploadError struct {
	Sink     string
	Attempts int
	Err      error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload to %s failed after %d attempts: %v", e.Sink, e.Attempts, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

type Options struct {
	Attempts     int
	Delay        time.Duration
	InitialDelay time.Duration
}

type Uploader struct {
	sinks   []sink.Sink
	opts    Options
	log     zerolog.Logger
	metrics *metrics.Metrics
}

func New(sinks []sink.Sink, opts Options, log zerolog.Logger, m *metrics.Metrics) *Uploader {
	if opts.Attempts <= 0 {
		opts.Attempts = 10
	}
	if m == nil {
		m = metrics.Discard()
	}
	return &Uploader{
		sinks:   sinks,
		opts:    opts,
		log:     log.With().Str("stage", "upload").Logger(),
		metrics: m,
	}
}

// Upload sends the full collection to every sink. Sinks run concurrently and
// each is retried on its own with a fixed delay, re-sending the whole corpus.
// The result joins one *UploadError per sink that never succeeded.
func (u *Uploader) Upload(ctx context.Context, c model.Collection) error {
	if u.opts.InitialDelay > 0 {
		u.log.Info().Dur("wait", u.opts.InitialDelay).Msg("waiting before upload")
		if err := util.Sleep(ctx, u.opts.InitialDelay); err != nil {
			return err
		}
	}

	var wg sync.WaitGroup
	errCh := make(chan error, len(u.sinks))
	for _, sk := range u.sinks {
		wg.Add(1)
		go func(sk sink.Sink) {
			defer wg.Done()
			if err := u.push(ctx, sk, c); err != nil {
				errCh <- err
			}
		}(sk)
	}
	wg.Wait()
	close(errCh)

	var errs []error
	for err := range errCh {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (u *Uploader) push(ctx context.Context, sk sink.Sink, c model.Collection) error {
	log := u.log.With().Str("sink", sk.Name()).Logger()
	attempts := 0
	err := util.Retry(ctx, u.opts.Attempts, util.Fixed(u.opts.Delay), func(attempt int) error {
		attempts = attempt
		err := sk.Push(ctx, c)
		if err != nil {
			u.metrics.UploadAttempts.WithLabelValues(sk.Name(), "error").Inc()
			log.Warn().Err(err).Int("attempt", attempt).Int("max_attempts", u.opts.Attempts).Msg("upload attempt failed")
			return err
		}
		u.metrics.UploadAttempts.WithLabelValues(sk.Name(), "ok").Inc()
		return nil
	})
	if err != nil {
		return &UploadError{Sink: sk.Name(), Attempts: attempts, Err: err}
	}
	u.metrics.LastUploadTS.WithLabelValues(sk.Name()).SetToCurrentTime()
	log.Info().Int("events", len(c)).Int("attempt", attempts).Msg("corpus delivered")
	return nil
}
