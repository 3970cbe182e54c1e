// Package http exposes the ledger over a small JSON API. Authentication
// lives in front of this service; handlers only thread the caller's user
// id (X-User-ID) through to the services.
package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"
	"time"

	"tally/internal/analytics"
	"tally/internal/services"
)

// queryTimeout bounds aggregation queries so a huge ledger cannot pin a
// handler forever.
const queryTimeout = 15 * time.Second

type Server struct {
	entries    *services.EntryService
	recurring  *services.RecurringService
	aggregator *analytics.Aggregator
	loc        *time.Location
	srv        *http.Server
}

func NewServer(addr string, entries *services.EntryService, recurring *services.RecurringService, aggregator *analytics.Aggregator, loc *time.Location) *Server {
	s := &Server{
		entries:    entries,
		recurring:  recurring,
		aggregator: aggregator,
		loc:        loc,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)

	mux.HandleFunc("POST /api/transactions", s.handleCreateTransaction)
	mux.HandleFunc("GET /api/transactions/{id}", s.handleGetTransaction)
	mux.HandleFunc("DELETE /api/transactions/{id}", s.handleDeleteTransaction)

	mux.HandleFunc("POST /api/recurring", s.handleCreateRecurring)
	mux.HandleFunc("GET /api/recurring/{id}", s.handleGetRecurring)
	mux.HandleFunc("PUT /api/recurring/{id}", s.handleUpdateRecurring)
	mux.HandleFunc("POST /api/recurring/{id}/enable", s.handleEnableRecurring)
	mux.HandleFunc("POST /api/recurring/{id}/disable", s.handleDisableRecurring)

	mux.HandleFunc("GET /api/balance", s.handleBalance)
	mux.HandleFunc("GET /api/balance/history", s.handleBalanceHistory)
	mux.HandleFunc("GET /api/breakdown", s.handleBreakdown)

	s.srv = &http.Server{
		Addr:              addr,
		Handler:           withRequestLog(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) ListenAndServe() error {
	slog.Info("HTTP server listening", "addr", s.srv.Addr)
	return s.srv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// Handler exposes the routed handler for tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// withRequestLog tags every request with a short id and logs its outcome.
func withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := newRequestID()
		rw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rw, r)

		slog.Info("request",
			"request_id", id,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rw.status,
			"duration_ms", time.Since(start).Milliseconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func newRequestID() string {
	b := make([]byte, 6)
	if _, err := rand.Read(b); err != nil {
		return "unknown"
	}
	return hex.EncodeToString(b)
}
