package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"traffic-harvester/internal/config"
	"traffic-harvester/internal/ingest"
)

// ProgressFunc returns the current loop snapshot.
type ProgressFunc func() ingest.Progress

// Server exposes /healthz, /status and /metrics while the harvester runs.
type Server struct {
	srv      *http.Server
	progress ProgressFunc
	runID    string
	log      zerolog.Logger
}

func New(cfg config.ServerConfig, gatherer prometheus.Gatherer, progress ProgressFunc, runID string, log zerolog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	s := &Server{
		progress: progress,
		runID:    runID,
		log:      log.With().Str("component", "server").Logger(),
	}
	s.Register(r, gatherer)

	s.srv = &http.Server{
		Addr:         cfg.ListenAddress,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

func (s *Server) Register(r *gin.Engine, gatherer prometheus.Gatherer) {
	r.GET("/healthz", s.healthz)
	r.GET("/status", s.status)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
}

func (s *Server) Handler() http.Handler { return s.srv.Handler }

// Start serves in the background. ErrServerClosed after Shutdown is not logged.
func (s *Server) Start() {
	go func() {
		s.log.Info().Str("addr", s.srv.Addr).Msg("ops server listening")
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error().Err(err).Msg("ops server stopped")
		}
	}()
}

func (s *Server) Shutdown(ctx context.Context) error { return s.srv.Shutdown(ctx) }

func (s *Server) healthz(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

func (s *Server) status(c *gin.Context) {
	p := s.progress()
	c.JSON(http.StatusOK, gin.H{
		"run_id":    s.runID,
		"state":     p.State.String(),
		"collected": p.Collected,
		"target":    p.Target,
		"cycles":    p.Cycles,
	})
}
