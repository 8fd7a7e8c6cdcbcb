package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"traffic-harvester/internal/config"
	"traffic-harvester/internal/export"
	"traffic-harvester/internal/ingest"
	"traffic-harvester/internal/logger"
	"traffic-harvester/internal/metrics"
	"traffic-harvester/internal/model"
	"traffic-harvester/internal/server"
	"traffic-harvester/internal/sink"
	"traffic-harvester/internal/source"
	"traffic-harvester/internal/store"
	"traffic-harvester/internal/upload"
)

// Version is set at build time via -ldflags "-X main.Version=..."
var Version = "dev"

func main() {
	var (
		cfgPath   = flag.String("config", "", "path to YAML config (defaults only when empty)")
		once      = flag.Bool("once", false, "run a single polling cycle then exit")
		exportCSV = flag.String("export-csv", "", "write the stored corpus as CSV to this path and exit")
		logLevel  = flag.String("log-level", "", "override log.level (debug|info|warn|error)")
	)
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	log := logger.New(cfg.Log)
	log.Info().Str("version", Version).Msg("traffic-harvester starting")

	st := store.NewEventStore(cfg.Harvest.StatePath)
	initial, err := st.Load()
	var corrupt *store.CorruptStateError
	switch {
	case errors.As(err, &corrupt):
		log.Error().Err(err).Str("stage", "load").Msg("state file unreadable, starting empty")
	case err != nil:
		log.Fatal().Err(err).Str("stage", "load").Msg("cannot read state")
	}
	log.Info().Str("path", st.Path()).Int("events", len(initial)).Msg("state loaded")

	if *exportCSV != "" {
		if err := writeCSV(*exportCSV, initial); err != nil {
			log.Fatal().Err(err).Str("stage", "export").Msg("csv export failed")
		}
		log.Info().Str("path", *exportCSV).Int("events", len(initial)).Msg("csv written")
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := uuid.NewString()
	log = log.With().Str("run_id", runID).Logger()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	src, err := source.NewFromConfig(cfg.Feed, log)
	if err != nil {
		log.Fatal().Err(err).Msg("build source")
	}

	sched := ingest.New(src, st, ingest.Options{
		Target:   cfg.Harvest.Target,
		Interval: cfg.Harvest.Interval,
		Once:     *once,
	}, log, m)

	if cfg.Server.Enable {
		srv := server.New(cfg.Server, reg, sched.Progress, runID, log)
		srv.Start()
		defer func() {
			shCtx, shCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shCancel()
			if err := srv.Shutdown(shCtx); err != nil {
				log.Warn().Err(err).Msg("ops server shutdown")
			}
		}()
	}

	corpus, err := sched.Run(ctx, initial)
	if err != nil {
		log.Warn().Err(err).Int("collected", len(corpus)).Msg("harvest stopped before target, corpus kept on disk")
		return
	}
	if len(corpus) < cfg.Harvest.Target {
		log.Info().
			Int("collected", len(corpus)).
			Int("target", cfg.Harvest.Target).
			Msg("target not reached, skipping upload")
		return
	}

	sinks := buildSinks(cfg, runID, log)
	defer func() {
		if err := sink.Close(sinks); err != nil {
			log.Warn().Err(err).Msg("close sinks")
		}
	}()

	up := upload.New(sinks, upload.Options{
		Attempts:     cfg.Upload.Attempts,
		Delay:        cfg.Upload.Delay,
		InitialDelay: cfg.Upload.InitialDelay,
	}, log, m)
	if err := up.Upload(ctx, corpus); err != nil {
		log.Error().Err(err).Str("stage", "upload").Int("events", len(corpus)).Msg("corpus not delivered")
		return
	}
	log.Info().Int("events", len(corpus)).Int("sinks", len(sinks)).Msg("harvest complete")
}

// buildSinks always includes the storage service. Optional sinks that cannot
// be initialized are skipped.
func buildSinks(cfg *config.Config, runID string, log zerolog.Logger) []sink.Sink {
	sinks := []sink.Sink{sink.NewStorage(cfg.Storage, runID)}
	if len(cfg.Kafka.Brokers) > 0 {
		sinks = append(sinks, sink.NewKafka(cfg.Kafka))
	}
	if strings.TrimSpace(cfg.Postgres.DSN) != "" {
		s, err := sink.NewPostgres(cfg.Postgres)
		if err != nil {
			log.Error().Err(err).Str("sink", "postgres").Msg("init sink, skipping")
		} else {
			sinks = append(sinks, s)
		}
	}
	if strings.TrimSpace(cfg.Loki.URL) != "" {
		sinks = append(sinks, sink.NewLoki(cfg.Loki))
	}
	for _, s := range sinks {
		log.Info().Str("sink", s.Name()).Msg("configured sink")
	}
	return sinks
}

func writeCSV(path string, c model.Collection) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := export.WriteCSV(f, c); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
