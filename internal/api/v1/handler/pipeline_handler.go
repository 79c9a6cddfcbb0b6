package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"app/internal/api/v1/dto"
	"app/internal/cache"
	"app/internal/middleware"
	"app/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// PipelineHandler exposes the recording processing endpoints.
type PipelineHandler struct {
	pipelineSvc   service.PipelineService
	recordingsSvc service.RecordingQueryService
	transcripts   cache.TranscriptCache
	validate      *validator.Validate
	maxUploadMB   int
	logger        zerolog.Logger
}

// NewPipelineHandler creates a new PipelineHandler.
func NewPipelineHandler(pipelineSvc service.PipelineService, recordingsSvc service.RecordingQueryService, transcripts cache.TranscriptCache, validate *validator.Validate, maxUploadMB int, logger zerolog.Logger) *PipelineHandler {
	return &PipelineHandler{
		pipelineSvc:   pipelineSvc,
		recordingsSvc: recordingsSvc,
		transcripts:   transcripts,
		validate:      validate,
		maxUploadMB:   maxUploadMB,
		logger:        logger,
	}
}

// RegisterRoutes registers the recording endpoints.
func (h *PipelineHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware func(http.Handler) http.Handler) {
	mux.Handle("POST /recordings/process", authMiddleware(http.HandlerFunc(h.Process)))
	mux.Handle("POST /recordings/retry-summary", authMiddleware(http.HandlerFunc(h.RetrySummary)))
	mux.Handle("GET /recordings", authMiddleware(http.HandlerFunc(h.List)))
	mux.Handle("GET /recordings/{id}", authMiddleware(http.HandlerFunc(h.Get)))
	mux.Handle("GET /transcripts", authMiddleware(http.HandlerFunc(h.ListTranscripts)))
	mux.Handle("DELETE /transcripts/{fingerprint}", authMiddleware(http.HandlerFunc(h.DeleteTranscript)))
}

// Process godoc
// @Summary Process an uploaded recording into a meeting summary
// @Description Validates, converts, transcribes, and summarizes the uploaded audio/video file.
// @Tags recordings
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Audio or video file"
// @Success 200 {object} service.PipelineResult
// @Failure 400 {object} map[string]string "rejected upload"
// @Failure 402 {object} map[string]string "insufficient credits"
// @Failure 403 {object} map[string]string "tier limit"
// @Router /recordings/process [post]
func (h *PipelineHandler) Process(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(middleware.UserContextKey).(string)
	if !ok || userID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, int64(h.maxUploadMB)<<20)
	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "file field is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "failed to read upload", http.StatusBadRequest)
		return
	}

	result, err := h.pipelineSvc.Process(r.Context(), userID, header.Filename, header.Header.Get("Content-Type"), content)
	if err != nil {
		if !writeDomainError(w, err) {
			h.logger.Error().Err(err).Str("user_id", userID).Msg("failed to process recording")
			http.Error(w, "failed to process recording", http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// RetrySummary godoc
// @Summary Re-run summarization from a cached transcript
// @Tags recordings
// @Accept json
// @Produce json
// @Param request body dto.RetrySummaryRequest true "Retry request"
// @Success 200 {object} service.PipelineResult
// @Failure 404 {object} map[string]string "no cached transcript"
// @Router /recordings/retry-summary [post]
func (h *PipelineHandler) RetrySummary(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(middleware.UserContextKey).(string)
	if !ok || userID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req dto.RetrySummaryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request payload", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		http.Error(w, "invalid fingerprint", http.StatusBadRequest)
		return
	}

	result, err := h.pipelineSvc.RetrySummary(r.Context(), userID, req.Fingerprint)
	if err != nil {
		if !writeDomainError(w, err) {
			h.logger.Error().Err(err).Str("user_id", userID).Msg("failed to retry summary")
			http.Error(w, "failed to retry summary", http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// List godoc
// @Summary List the user's processed recordings
// @Tags recordings
// @Produce json
// @Success 200 {array} model.Recording
// @Router /recordings [get]
func (h *PipelineHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(middleware.UserContextKey).(string)
	if !ok || userID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	recordings, err := h.recordingsSvc.List(r.Context(), userID)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("failed to list recordings")
		http.Error(w, "failed to list recordings", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, recordings)
}

// Get godoc
// @Summary Fetch one recording with its transcript and summary
// @Tags recordings
// @Produce json
// @Param id path string true "Recording ID"
// @Success 200 {object} model.Recording
// @Failure 404 {string} string "not found"
// @Router /recordings/{id} [get]
func (h *PipelineHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(middleware.UserContextKey).(string)
	if !ok || userID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	rec, err := h.recordingsSvc.Get(r.Context(), r.PathValue("id"), userID)
	if err != nil {
		http.Error(w, "recording not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// ListTranscripts godoc
// @Summary List pending cached transcripts available for a retry
// @Tags recordings
// @Produce json
// @Success 200 {array} cache.EntryMeta
// @Router /transcripts [get]
func (h *PipelineHandler) ListTranscripts(w http.ResponseWriter, r *http.Request) {
	metas, err := h.transcripts.ListLive(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list transcripts")
		http.Error(w, "failed to list transcripts", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, metas)
}

// DeleteTranscript godoc
// @Summary Discard a cached transcript instead of retrying it
// @Tags recordings
// @Produce json
// @Param fingerprint path string true "Transcript fingerprint"
// @Success 200 {object} map[string]bool "whether an entry was removed"
// @Router /transcripts/{fingerprint} [delete]
func (h *PipelineHandler) DeleteTranscript(w http.ResponseWriter, r *http.Request) {
	removed, err := h.transcripts.Delete(r.Context(), r.PathValue("fingerprint"))
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to delete transcript")
		http.Error(w, "failed to delete transcript", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"removed": removed})
}
