// Package web serves the health, status, metrics and manual sync endpoints
// of apicsync.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/dnswlt/apicsync/internal/provider"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Syncer runs ingestion for a single provider.
type Syncer interface {
	ID() string
	Read(ctx context.Context) error
	Status() *provider.Status
}

type ServerOptions struct {
	Addr string // E.g., "localhost:8080"
	// Gatherer exposed on /metrics. Defaults to prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer
	// Maximum duration of a sync triggered via POST /sync/{provider}.
	SyncTimeout time.Duration
}

type Server struct {
	opts    ServerOptions
	syncers map[string]Syncer
	log     *zap.SugaredLogger

	// Context of syncs triggered via HTTP. Cancelled on shutdown.
	baseCtx context.Context
	cancel  context.CancelFunc

	mu      sync.Mutex
	running map[string]bool
	wg      sync.WaitGroup
}

func NewServer(opts ServerOptions, syncers []Syncer, log *zap.SugaredLogger) *Server {
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		opts:    opts,
		syncers: make(map[string]Syncer, len(syncers)),
		log:     log,
		baseCtx: ctx,
		cancel:  cancel,
		running: make(map[string]bool),
	}
	for _, sy := range syncers {
		s.syncers[sy.ID()] = sy
	}
	return s
}

// startSync runs a sync of sy in the background.
// It returns false if a sync of the same provider is still running.
func (s *Server) startSync(sy Syncer) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running[sy.ID()] {
		return false
	}
	s.running[sy.ID()] = true
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			delete(s.running, sy.ID())
			s.mu.Unlock()
		}()
		ctx := s.baseCtx
		if s.opts.SyncTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.opts.SyncTimeout)
			defer cancel()
		}
		if err := sy.Read(ctx); err != nil {
			s.log.Errorw("Triggered sync failed", "provider", sy.ID(), "error", err)
		}
	}()
	return true
}

func (s *Server) serveSync(w http.ResponseWriter, r *http.Request, providerID string) {
	sy, ok := s.syncers[providerID]
	if !ok {
		http.Error(w, fmt.Sprintf("Unknown provider %q", providerID), http.StatusNotFound)
		return
	}
	if !s.startSync(sy) {
		http.Error(w, "Sync already running", http.StatusConflict)
		return
	}
	s.log.Infow("Sync triggered", "provider", providerID, "remote", r.RemoteAddr)
	w.WriteHeader(http.StatusAccepted)
	fmt.Fprintln(w, "Accepted")
}

type providerStatus struct {
	Running bool             `json:"running"`
	LastRun *provider.Status `json:"lastRun,omitempty"`
}

func (s *Server) serveStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	result := make(map[string]providerStatus, len(s.syncers))
	for id, sy := range s.syncers {
		result[id] = providerStatus{Running: s.running[id], LastRun: sy.Status()}
	}
	s.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(result); err != nil {
		s.log.Errorw("Failed to write status", "error", err)
	}
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /sync/{provider}", func(w http.ResponseWriter, r *http.Request) {
		s.serveSync(w, r, r.PathValue("provider"))
	})
	mux.HandleFunc("GET /status", s.serveStatus)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{}))

	// Health check. Useful for cloud deployments.
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "OK")
	})

	return mux
}

// Providers returns the sorted ids of the providers served by s.
func (s *Server) Providers() []string {
	ids := make([]string, 0, len(s.syncers))
	for id := range s.syncers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Serve listens on s.opts.Addr until ctx is done. Running syncs are
// cancelled and awaited before Serve returns.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errC := make(chan error, 1)
	go func() {
		s.log.Infow("Server listening", "url", "http://"+s.opts.Addr, "providers", s.Providers())
		errC <- srv.ListenAndServe()
	}()
	var err error
	select {
	case err = <-errC:
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err = srv.Shutdown(shutdownCtx)
	}
	s.Close()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Close cancels running syncs and waits for them to return.
func (s *Server) Close() {
	s.cancel()
	s.wg.Wait()
}

func (s *Server) Handler() http.Handler {
	return s.withRequestLogging(s.routes())
}
