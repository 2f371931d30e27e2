package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/kasirku/sync-server/internal/errs"
	"github.com/kasirku/sync-server/internal/model"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// userID extracts the authenticated caller; the auth middleware guarantees
// it is present on every /api/sync route.
func (s *Server) userID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, ok := UserIDFrom(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "unauthorized"})
	}
	return id, ok
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "malformed request body"})
		return false
	}
	return true
}

// failSync maps engine errors to the call-level failure contract: a generic
// message, never internal detail.
func (s *Server) failSync(w http.ResponseWriter, r *http.Request, err error) {
	s.log.Error("sync request failed",
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
	switch {
	case errors.Is(err, errs.ErrBatchTooLarge):
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": "change set too large"})
	case errors.Is(err, errs.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "message": "not found"})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "message": "sync failed"})
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type syncFunc func(ctx context.Context, userID int64, req *model.SyncRequest) (*model.SyncResponse, error)

func (s *Server) serveSync(w http.ResponseWriter, r *http.Request, run syncFunc) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}
	var req model.SyncRequest
	if !s.decode(w, r, &req) {
		return
	}
	resp, err := run(r.Context(), userID, &req)
	if err != nil {
		s.failSync(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	s.serveSync(w, r, s.svc.Sync)
}

func (s *Server) handleUploadOnly(w http.ResponseWriter, r *http.Request) {
	s.serveSync(w, r, s.svc.UploadOnly)
}

func (s *Server) handleDownloadOnly(w http.ResponseWriter, r *http.Request) {
	s.serveSync(w, r, s.svc.DownloadOnly)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}
	info, err := s.svc.Status(r.Context(), userID)
	if err != nil {
		s.failSync(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}
	if err := s.svc.Reset(r.Context(), userID); err != nil {
		s.failSync(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "sync state reset; next sync will download all data",
	})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}
	summary, err := s.svc.Summary(r.Context(), userID)
	if err != nil {
		s.failSync(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleBackup(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}
	backup, err := s.svc.Backup(r.Context(), userID)
	if err != nil {
		s.failSync(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "backup": backup})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}
	days := 0
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid days parameter"})
			return
		}
		days = n
	}
	metrics, err := s.svc.Metrics(r.Context(), userID, days)
	if err != nil {
		s.failSync(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, metrics)
}

func (s *Server) handleResolveConflicts(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}
	var req struct {
		Conflicts []model.ConflictResolution `json:"conflicts"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	result, err := s.svc.ResolveConflicts(r.Context(), userID, req.Conflicts)
	if err != nil {
		s.failSync(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
