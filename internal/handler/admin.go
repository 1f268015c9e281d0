package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/keygate/keygate/internal/clock"
	"github.com/keygate/keygate/internal/server/middleware"
	"github.com/keygate/keygate/internal/service"
	"github.com/keygate/keygate/internal/store"
)

// AdminHandler serves the maintenance endpoints mounted behind admin auth.
type AdminHandler struct {
	backend store.Backend
	sweeper *service.Sweeper
	clock   clock.Clock
	logger  *slog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(backend store.Backend, sw *service.Sweeper, clk clock.Clock, logger *slog.Logger) *AdminHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminHandler{
		backend: backend,
		sweeper: sw,
		clock:   clk,
		logger:  logger,
	}
}

type cleanupResponse struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	DeletedCount int64  `json:"deleted_count"`
}

// Cleanup deletes every expired key.
// POST /api/admin/cleanup
func (h *AdminHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	n, err := h.sweeper.Sweep(r.Context())
	if err != nil {
		h.logger.Error("cleanup failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, "Cleanup failed: key store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, cleanupResponse{
		Success:      true,
		Message:      fmt.Sprintf("Deleted %d expired keys", n),
		DeletedCount: n,
	})
}

// GetKey returns the stored record for a key.
// GET /api/admin/keys/{key}
func (h *AdminHandler) GetKey(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	rec, err := h.backend.GetByKey(r.Context(), key)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// RevokeKey deletes a key ahead of its expiry.
// DELETE /api/admin/keys/{key}
func (h *AdminHandler) RevokeKey(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if err := h.backend.Delete(r.Context(), key); err != nil {
		h.writeStoreError(w, err)
		return
	}
	h.logger.Info("key revoked", "principal", principalName(r))
	w.WriteHeader(http.StatusNoContent)
}

// Stats reports the number of live keys and the storage driver.
// GET /api/admin/stats
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	n, err := h.backend.CountLive(r.Context(), h.clock.Now())
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"live_keys": n,
		"driver":    h.backend.Driver(),
	})
}

func (h *AdminHandler) writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Key not found")
		return
	}
	h.logger.Error("store request failed", "error", err)
	writeError(w, http.StatusServiceUnavailable, "Key store unavailable")
}

func principalName(r *http.Request) string {
	if p := middleware.GetPrincipal(r.Context()); p != nil {
		return p.Subject
	}
	return ""
}
