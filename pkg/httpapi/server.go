// Package httpapi implements the daemon's read-only HTTP surface (spec §1's
// external-collaborator HTTP endpoint, concretized by SPEC_FULL.md §12 from
// original_source/src/web/http_server.c and api.c): /api/status,
// /api/snapshot, /api/health, plus /metrics for Prometheus scraping.
// Adapted from the teacher's pkg/server/server.go idiom (functional-option
// construction, rate limiter, errgroup-coordinated Run/Shutdown) with the
// JSON/HTML asset-serving and recommendation routes stripped -- this
// daemon's HTTP surface is read-only passthrough of an already-built
// document, not a request-driven computation.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/qscuio/qmemd/pkg/document"
	"github.com/qscuio/qmemd/pkg/logging"
)

// SnapshotSource is the narrow read surface the HTTP server needs from the
// Tick Scheduler.
type SnapshotSource interface {
	Current() []byte
	Tick() uint64
}

// Config holds the HTTP server's own settings, read by cmd/qmemd from
// pkg/config.Daemon.
type Config struct {
	ListenAddr      string
	RateLimit       rate.Limit
	RateLimitBurst  int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// DefaultConfig mirrors the teacher's parseConfig defaults, scaled down to
// this read-only surface's needs.
func DefaultConfig(listenAddr string) Config {
	return Config{
		ListenAddr:      listenAddr,
		RateLimit:       50,
		RateLimitBurst:  100,
		ReadTimeout:     5 * time.Second,
		WriteTimeout:    5 * time.Second,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 5 * time.Second,
	}
}

// Server is the read-only HTTP surface over the daemon's published
// snapshot.
type Server struct {
	cfg        Config
	snapshots  SnapshotSource
	httpServer *http.Server

	rateLimiter *rate.Limiter

	mu    sync.RWMutex
	ready bool
}

// New builds a Server serving cfg.ListenAddr, answering from snapshots.
func New(cfg Config, snapshots SnapshotSource) *Server {
	s := &Server{
		cfg:         cfg,
		snapshots:   snapshots,
		rateLimiter: rate.NewLimiter(cfg.RateLimit, cfg.RateLimitBurst),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", s.withRateLimit(s.handleHealth))
	mux.HandleFunc("/api/status", s.withRateLimit(s.handleStatus))
	mux.HandleFunc("/api/snapshot", s.withRateLimit(s.handleSnapshot))
	mux.Handle("/metrics", promhttp.Handler())

	s.httpServer = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    1 << 16,
		ReadHeaderTimeout: 5 * time.Second,
		ErrorLog:          logging.NewLogLogger(0, false),
	}
	return s
}

func (s *Server) withRateLimit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.rateLimiter.Allow() {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		next(w, r)
	}
}

func (s *Server) setReady(ready bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = ready
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	ready := s.ready
	s.mu.RUnlock()

	doc := document.NewWriter(0)
	doc.BeginObject()
	doc.Key("status")
	if ready {
		doc.String("ok")
	} else {
		doc.String("starting")
	}
	doc.EndObject()

	if !ready {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	writeDoc(w, doc)
}

// handleStatus and handleSnapshot are the same handler under two routes,
// matching original_source/src/web/api.c's api_init registering both
// /api/status and /api/snapshot to handle_api_status: both return the
// identical cached snapshot document (spec §4.8).
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeSnapshot(w)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	s.writeSnapshot(w)
}

func (s *Server) writeSnapshot(w http.ResponseWriter) {
	cur := s.snapshots.Current()
	if cur == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error":"no snapshot available yet"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(cur)
}

func writeDoc(w http.ResponseWriter, doc *document.Writer) {
	w.Header().Set("Content-Type", "application/json")
	w.Write(doc.Bytes())
}

// Run starts the HTTP server and blocks until ctx is canceled, then shuts
// down gracefully within cfg.ShutdownTimeout. Mirrors the teacher's
// Start/Run split in pkg/server/server.go, minus the signal-handling
// (cmd/qmemd owns that once, for every subsystem together).
func (s *Server) Run(ctx context.Context) error {
	s.setReady(true)
	slog.Info("http api listening", slog.String("addr", s.cfg.ListenAddr))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		return s.shutdown()
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("http api: %w", err)
	}
	return nil
}

func (s *Server) shutdown() error {
	s.setReady(false)
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}
