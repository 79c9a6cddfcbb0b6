package handler

import (
	"net/http"

	"app/internal/config"
	"app/internal/media"
)

// HealthHandler reports process liveness and the availability of external
// tooling.
type HealthHandler struct {
	cfg        *config.Config
	transcoder *media.Transcoder
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(cfg *config.Config, transcoder *media.Transcoder) *HealthHandler {
	return &HealthHandler{cfg: cfg, transcoder: transcoder}
}

// RegisterRoutes registers the health endpoint.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("GET /health", http.HandlerFunc(h.Health))
}

// Health godoc
// @Summary Liveness and dependency status
// @Tags health
// @Produce json
// @Success 200 {object} map[string]any
// @Router /health [get]
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":           "ok",
		"ffmpeg_installed": h.transcoder.CheckInstalled(),
		"issues":           h.cfg.RuntimeIssues(),
	})
}
