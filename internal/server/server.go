// Package server exposes the install pipeline over a local HTTP API with a
// websocket event stream, so deep links dispatched by the OS reach the
// already running instance.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/samhoang/modhub/internal/conflict"
	errs "github.com/samhoang/modhub/internal/errors"
	"github.com/samhoang/modhub/internal/events"
	"github.com/samhoang/modhub/internal/hub"
	"github.com/samhoang/modhub/internal/ingest"
)

const clientBuffer = 100

var upgrader = websocket.Upgrader{
	// the API binds to loopback
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server serves the control API
type Server struct {
	ingest    *ingest.Service
	store     *hub.Store
	detector  *conflict.Detector
	whitelist []string
	logger    *log.Logger

	// background pipeline runs outlive the request that started them
	baseCtx    context.Context
	cancelBase context.CancelFunc
	runs       sync.WaitGroup

	clients     map[*websocket.Conn]chan events.Event
	clientsMu   sync.RWMutex
	unsubscribe func()
	broadcastWG sync.WaitGroup
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the logger
func WithLogger(l *log.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithWhitelist adds configured whitelist patterns to every conflict scan
func WithWhitelist(patterns []string) Option {
	return func(s *Server) { s.whitelist = patterns }
}

// New creates a server and starts relaying bus events to websocket clients
func New(svc *ingest.Service, store *hub.Store, detector *conflict.Detector, bus *events.Bus, opts ...Option) *Server {
	s := &Server{
		ingest:   svc,
		store:    store,
		detector: detector,
		logger:   log.Default(),
		clients:  make(map[*websocket.Conn]chan events.Event),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.baseCtx, s.cancelBase = context.WithCancel(context.Background())

	sub, unsubscribe := bus.Subscribe(256)
	s.unsubscribe = unsubscribe
	s.broadcastWG.Add(1)
	go s.broadcast(sub)
	return s
}

// Close stops background installs and the event relay
func (s *Server) Close() {
	s.cancelBase()
	s.runs.Wait()
	s.unsubscribe()
	s.broadcastWG.Wait()
}

// Handler returns the API routes
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("POST /api/v1/links", s.handleSubmitLink)
	mux.HandleFunc("GET /api/v1/installs", s.handleListInstalls)
	mux.HandleFunc("GET /api/v1/installs/{id}", s.handleGetInstall)
	mux.HandleFunc("POST /api/v1/installs/{id}/confirm", s.handleConfirm)
	mux.HandleFunc("POST /api/v1/installs/{id}/cancel", s.handleCancel)
	mux.HandleFunc("GET /api/v1/packages", s.handleListPackages)
	mux.HandleFunc("GET /api/v1/conflicts", s.handleConflicts)
	mux.HandleFunc("GET /api/v1/events", s.handleStream)

	return mux
}

// ListenAndServe serves the API on addr until ctx is cancelled
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return serve(ctx, srv, s.logger, "api")
}

// ServeMetrics serves h at /metrics on addr until ctx is cancelled
func ServeMetrics(ctx context.Context, addr string, h http.Handler, logger *log.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", h)
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return serve(ctx, srv, logger, "metrics")
}

func serve(ctx context.Context, srv *http.Server, logger *log.Logger, name string) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info(name+" listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("%s shutdown: %w", name, err)
		}
		return <-errCh
	}
}

type linkRequest struct {
	Link string `json:"link"`
}

type linkResponse struct {
	Duplicate bool                   `json:"duplicate,omitempty"`
	Install   *ingest.PendingInstall `json:"install,omitempty"`
}

func (s *Server) handleSubmitLink(w http.ResponseWriter, r *http.Request) {
	var req linkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	pending, err := s.ingest.HandleLink(r.Context(), req.Link)
	if err != nil {
		if errors.Is(err, errs.ErrInvalidLinkFormat) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if pending == nil {
		writeJSON(w, http.StatusOK, linkResponse{Duplicate: true})
		return
	}
	writeJSON(w, http.StatusAccepted, linkResponse{Install: pending})
}

func (s *Server) handleListInstalls(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ingest.List())
}

func (s *Server) handleGetInstall(w http.ResponseWriter, r *http.Request) {
	pending, err := s.ingest.Get(r.PathValue("id"))
	if err != nil {
		http.Error(w, "install not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, pending)
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	pending, run, err := s.ingest.Start(s.baseCtx, r.PathValue("id"))
	switch {
	case errors.Is(err, errs.ErrInstallNotFound):
		http.Error(w, "install not found", http.StatusNotFound)
		return
	case errors.Is(err, errs.ErrInvalidState):
		http.Error(w, err.Error(), http.StatusConflict)
		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.runs.Add(1)
	go func() {
		defer s.runs.Done()
		// outcome reaches clients as events; errors are logged by the pipeline
		_, _ = run()
	}()
	writeJSON(w, http.StatusAccepted, pending)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	res := s.ingest.Cancel(r.PathValue("id"))
	status := http.StatusOK
	if !res.Success {
		status = http.StatusNotFound
	}
	writeJSON(w, status, res)
}

func (s *Server) handleListPackages(w http.ResponseWriter, r *http.Request) {
	pkgs, err := s.store.List()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if pkgs == nil {
		pkgs = []hub.Package{}
	}
	writeJSON(w, http.StatusOK, pkgs)
}

func (s *Server) handleConflicts(w http.ResponseWriter, r *http.Request) {
	enabled, err := s.store.Enabled()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	extra := append(append([]string{}, s.whitelist...), r.URL.Query()["whitelist"]...)
	conflicts, err := s.detector.Detect(r.Context(), enabled, extra)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if conflicts == nil {
		conflicts = []conflict.Conflict{}
	}
	writeJSON(w, http.StatusOK, conflicts)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
