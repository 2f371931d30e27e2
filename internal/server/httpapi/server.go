// Package httpapi exposes the sync engine over the POS client's JSON API.
package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kasirku/sync-server/internal/sync"
)

// maxBodyBytes bounds sync request bodies; change sets are batched
// client-side, anything larger indicates a broken client.
const maxBodyBytes = 10 << 20

// Server wires the sync service into HTTP handlers.
type Server struct {
	svc     sync.Service
	log     *zap.Logger
	signKey []byte
}

// New constructs the HTTP server with an injected sync service and the
// HS256 key shared with the credential issuer.
func New(svc sync.Service, log *zap.Logger, signKey []byte) *Server {
	return &Server{svc: svc, log: log, signKey: signKey}
}

// Router builds the route tree. Everything under /api/sync requires a
// verified identity; /healthz is open for liveness probes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestID, s.recoverer, s.logging)

	r.Get("/healthz", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(s.authenticate)

		r.Post("/api/sync", s.handleSync)
		r.Post("/api/sync/upload", s.handleUploadOnly)
		r.Post("/api/sync/download", s.handleDownloadOnly)
		r.Post("/api/sync/reset", s.handleReset)
		r.Post("/api/sync/resolve-conflicts", s.handleResolveConflicts)
		r.Get("/api/sync/status", s.handleStatus)
		r.Get("/api/sync/summary", s.handleSummary)
		r.Get("/api/sync/backup", s.handleBackup)
		r.Get("/api/sync/metrics", s.handleMetrics)
	})

	return r
}
