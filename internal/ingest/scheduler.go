package ingest

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"traffic-harvester/internal/metrics"
	"traffic-harvester/internal/model"
	"traffic-harvester/internal/source"
	"traffic-harvester/internal/store"
	"traffic-harvester/internal/util"
)

type State int

const (
	Polling State = iota
	Waiting
	Done
)

func (s State) String() string {
	switch s {
	case Polling:
		return "polling"
	case Waiting:
		return "waiting"
	case Done:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Store persists the committed collection. *store.EventStore implements it.
type Store interface {
	Save(c model.Collection) error
}

type Options struct {
	Target   int
	Interval time.Duration
	Once     bool // stop after one polling cycle
}

// Progress is a point-in-time view of the loop, safe to read from any goroutine.
type Progress struct {
	State     State `json:"-"`
	Collected int   `json:"collected"`
	Target    int   `json:"target"`
	Cycles    int   `json:"cycles"`
}

type Scheduler struct {
	src      source.Source
	store    Store
	opts     Options
	log      zerolog.Logger
	metrics  *metrics.Metrics
	progress atomic.Pointer[Progress]
}

func New(src source.Source, st Store, opts Options, log zerolog.Logger, m *metrics.Metrics) *Scheduler {
	if m == nil {
		m = metrics.Discard()
	}
	s := &Scheduler{
		src:     src,
		store:   st,
		opts:    opts,
		log:     log.With().Str("component", "scheduler").Logger(),
		metrics: m,
	}
	s.progress.Store(&Progress{State: Polling, Target: opts.Target})
	return s
}

func (s *Scheduler) Progress() Progress { return *s.progress.Load() }

func (s *Scheduler) setProgress(st State, collected, cycles int) {
	s.progress.Store(&Progress{State: st, Collected: collected, Target: s.opts.Target, Cycles: cycles})
}

// Run polls the source until the collection reaches the target, then returns
// it. Cancelling ctx returns what has been committed so far with ctx.Err().
func (s *Scheduler) Run(ctx context.Context, initial model.Collection) (model.Collection, error) {
	c := initial
	if c == nil {
		c = model.Collection{}
	}
	idx := store.NewIndex(c)
	cycles := 0

	s.metrics.Target.Set(float64(s.opts.Target))
	s.metrics.CorpusSize.Set(float64(len(c)))

	if len(c) >= s.opts.Target {
		s.setProgress(Done, len(c), cycles)
		s.log.Info().Int("collected", len(c)).Int("target", s.opts.Target).Msg("target already reached")
		return c, nil
	}

	s.log.Info().
		Int("collected", len(c)).
		Int("target", s.opts.Target).
		Dur("interval", s.opts.Interval).
		Msg("harvest started")

	for {
		s.setProgress(Polling, len(c), cycles)
		c = s.poll(ctx, c, idx)
		cycles++

		if err := ctx.Err(); err != nil {
			s.setProgress(Done, len(c), cycles)
			return c, err
		}
		if len(c) >= s.opts.Target || s.opts.Once {
			s.setProgress(Done, len(c), cycles)
			s.log.Info().
				Int("collected", len(c)).
				Int("target", s.opts.Target).
				Int("cycles", cycles).
				Bool("target_met", len(c) >= s.opts.Target).
				Msg("harvest finished")
			return c, nil
		}

		s.setProgress(Waiting, len(c), cycles)
		if err := util.Sleep(ctx, s.opts.Interval); err != nil {
			s.setProgress(Done, len(c), cycles)
			s.log.Info().Int("collected", len(c)).Msg("harvest interrupted")
			return c, err
		}
	}
}

// poll runs one fetch/filter/persist cycle and returns the committed
// collection. The input is returned unchanged on any failure.
func (s *Scheduler) poll(ctx context.Context, c model.Collection, idx *store.Index) model.Collection {
	start := time.Now()
	defer func() { s.metrics.CycleDuration.Observe(time.Since(start).Seconds()) }()

	batch, err := s.src.Fetch(ctx)
	if err != nil {
		s.metrics.FetchTotal.WithLabelValues("error").Inc()
		s.log.Error().Err(err).
			Str("stage", "fetch").
			Int("collected", len(c)).
			Int("target", s.opts.Target).
			Msg("fetch failed, retrying next cycle")
		return c
	}
	s.metrics.FetchTotal.WithLabelValues("ok").Inc()
	for _, e := range batch {
		kind := "alert"
		if e.IsJam() {
			kind = "jam"
		}
		s.metrics.EventsFetched.WithLabelValues(kind).Inc()
	}

	fresh := store.Filter(batch, idx)
	dups := len(batch) - len(fresh)
	s.metrics.Duplicates.Add(float64(dups))
	if len(fresh) == 0 {
		s.log.Info().
			Str("stage", "dedup").
			Int("fetched", len(batch)).
			Str("progress", fmt.Sprintf("%d/%d", len(c), s.opts.Target)).
			Msg("no new events")
		return c
	}

	// full slice expression forces a copy so c stays intact if Save fails
	next := append(c[:len(c):len(c)], fresh...)
	if err := s.store.Save(next); err != nil {
		s.metrics.PersistErrors.Inc()
		s.log.Error().Err(err).
			Str("stage", "persist").
			Int("discarded", len(fresh)).
			Int("collected", len(c)).
			Msg("snapshot write failed, batch not committed")
		return c
	}
	for _, e := range fresh {
		idx.Add(e)
	}

	s.metrics.EventsNew.Add(float64(len(fresh)))
	s.metrics.CorpusSize.Set(float64(len(next)))
	s.metrics.LastPersistTS.SetToCurrentTime()
	s.log.Info().
		Str("stage", "persist").
		Int("new", len(fresh)).
		Int("duplicates", dups).
		Int("collected", len(next)).
		Int("target", s.opts.Target).
		Msgf("%d/%d events collected", len(next), s.opts.Target)
	return next
}
