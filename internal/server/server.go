// Package server provides the status HTTP server for jdemotion.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ayusman/jdemotion/internal/app"
	"github.com/ayusman/jdemotion/internal/store"
)

// StatusSource provides the current session snapshot. *app.Session implements it.
type StatusSource interface {
	Status() app.Status
}

// Config holds the server configuration.
type Config struct {
	Status  StatusSource
	Store   *store.Store
	Metrics http.Handler
	Events  *EventHub
	// Trigger requests a one-shot sample. It reports false when a request
	// is already pending.
	Trigger func() bool
}

// Server represents the HTTP server for the jdemotion status surface.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if s.config.Status != nil {
		s.mux.HandleFunc("/api/status", s.handleStatus)
	}

	if s.config.Store != nil {
		s.mux.HandleFunc("/api/dispatches", s.handleDispatches)
	}

	if s.config.Trigger != nil {
		s.mux.HandleFunc("/api/sample", s.handleSample)
	}

	if s.config.Events != nil {
		s.mux.Handle("/api/events", s.config.Events)
	}

	if s.config.Metrics != nil {
		s.mux.Handle("/metrics", s.config.Metrics)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	})
}

// handleStatus handles GET requests to /api/status.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, s.config.Status.Status())
}

type dispatchResponse struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Mode      string    `json:"mode"`
	Label     string    `json:"label"`
	Top       float64   `json:"top"`
	Second    float64   `json:"second"`
	Commands  []string  `json:"commands"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type labelCountResponse struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// handleDispatches handles GET requests to /api/dispatches?limit=N.
func (s *Server) handleDispatches(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := store.DefaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 1000 {
			http.Error(w, "limit must be between 1 and 1000", http.StatusBadRequest)
			return
		}
		limit = n
	}

	dispatches, err := s.config.Store.Dispatches().List(limit)
	if err != nil {
		slog.Error("server: failed to list dispatches", "error", err)
		http.Error(w, "Failed to list dispatches", http.StatusInternalServerError)
		return
	}
	counts, err := s.config.Store.Dispatches().CountByLabel()
	if err != nil {
		slog.Error("server: failed to count dispatches", "error", err)
		http.Error(w, "Failed to count dispatches", http.StatusInternalServerError)
		return
	}

	resp := struct {
		Dispatches []dispatchResponse   `json:"dispatches"`
		Totals     []labelCountResponse `json:"totals"`
	}{
		Dispatches: make([]dispatchResponse, 0, len(dispatches)),
		Totals:     make([]labelCountResponse, 0, len(counts)),
	}
	for _, d := range dispatches {
		resp.Dispatches = append(resp.Dispatches, dispatchResponse{
			ID:        d.ID,
			SessionID: d.SessionID,
			Mode:      d.Mode,
			Label:     d.Label,
			Top:       d.Top,
			Second:    d.Second,
			Commands:  d.Commands,
			Success:   d.Success,
			Error:     d.Error,
			CreatedAt: d.CreatedAt,
		})
	}
	for _, c := range counts {
		resp.Totals = append(resp.Totals, labelCountResponse{Label: c.Label, Count: c.Count})
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleSample handles POST requests to /api/sample.
func (s *Server) handleSample(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if !s.config.Trigger() {
		writeJSON(w, http.StatusConflict, map[string]string{"status": "pending"})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "triggered"})
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("server: failed to encode response", "error", err)
	}
}
