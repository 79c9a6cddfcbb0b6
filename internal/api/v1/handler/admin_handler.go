package handler

import (
	"encoding/json"
	"net/http"

	"app/internal/api/v1/dto"
	"app/internal/cache"
	"app/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// AdminHandler exposes the operator surface: purchase verification and
// transcript cache maintenance.
type AdminHandler struct {
	creditSvc   service.CreditService
	transcripts cache.TranscriptCache
	validate    *validator.Validate
	logger      zerolog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(creditSvc service.CreditService, transcripts cache.TranscriptCache, validate *validator.Validate, logger zerolog.Logger) *AdminHandler {
	return &AdminHandler{creditSvc: creditSvc, transcripts: transcripts, validate: validate, logger: logger}
}

// RegisterRoutes registers the admin endpoints.
func (h *AdminHandler) RegisterRoutes(mux *http.ServeMux, adminMiddleware func(http.Handler) http.Handler) {
	mux.Handle("GET /admin/purchases/pending", adminMiddleware(http.HandlerFunc(h.PendingPurchases)))
	mux.Handle("POST /admin/purchases/{id}/approve", adminMiddleware(http.HandlerFunc(h.Approve)))
	mux.Handle("POST /admin/purchases/{id}/reject", adminMiddleware(http.HandlerFunc(h.Reject)))
	mux.Handle("GET /admin/purchases/{id}/proof", adminMiddleware(http.HandlerFunc(h.ProofURL)))
	mux.Handle("GET /admin/transcripts", adminMiddleware(http.HandlerFunc(h.ListTranscripts)))
	mux.Handle("DELETE /admin/transcripts/{fingerprint}", adminMiddleware(http.HandlerFunc(h.DeleteTranscript)))
	mux.Handle("POST /admin/transcripts/sweep", adminMiddleware(http.HandlerFunc(h.SweepTranscripts)))
}

// PendingPurchases godoc
// @Summary List purchases awaiting verification
// @Tags admin
// @Produce json
// @Success 200 {array} model.Purchase
// @Router /admin/purchases/pending [get]
func (h *AdminHandler) PendingPurchases(w http.ResponseWriter, r *http.Request) {
	purchases, err := h.creditSvc.PendingPurchases(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list pending purchases")
		http.Error(w, "failed to list pending purchases", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, purchases)
}

func (h *AdminHandler) decideRequest(r *http.Request) (string, error) {
	var req dto.VerifyPurchaseRequest
	if r.Body != nil {
		// Notes are optional; an empty body is fine.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	return req.Notes, h.validate.Struct(req)
}

// Approve godoc
// @Summary Approve a pending purchase and credit the buyer
// @Tags admin
// @Accept json
// @Produce json
// @Param id path string true "Purchase ID"
// @Param request body dto.VerifyPurchaseRequest false "Decision notes"
// @Success 200 {object} model.Purchase
// @Failure 409 {object} map[string]string "already processed"
// @Router /admin/purchases/{id}/approve [post]
func (h *AdminHandler) Approve(w http.ResponseWriter, r *http.Request) {
	notes, err := h.decideRequest(r)
	if err != nil {
		http.Error(w, "notes too long", http.StatusBadRequest)
		return
	}

	purchase, err := h.creditSvc.ApprovePurchase(r.Context(), r.PathValue("id"), notes)
	if err != nil {
		if !writeDomainError(w, err) {
			h.logger.Error().Err(err).Msg("failed to approve purchase")
			http.Error(w, "failed to approve purchase", http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, http.StatusOK, purchase)
}

// Reject godoc
// @Summary Reject a pending purchase
// @Tags admin
// @Accept json
// @Produce json
// @Param id path string true "Purchase ID"
// @Param request body dto.VerifyPurchaseRequest false "Decision notes"
// @Success 200 {object} model.Purchase
// @Failure 409 {object} map[string]string "already processed"
// @Router /admin/purchases/{id}/reject [post]
func (h *AdminHandler) Reject(w http.ResponseWriter, r *http.Request) {
	notes, err := h.decideRequest(r)
	if err != nil {
		http.Error(w, "notes too long", http.StatusBadRequest)
		return
	}

	purchase, err := h.creditSvc.RejectPurchase(r.Context(), r.PathValue("id"), notes)
	if err != nil {
		if !writeDomainError(w, err) {
			h.logger.Error().Err(err).Msg("failed to reject purchase")
			http.Error(w, "failed to reject purchase", http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, http.StatusOK, purchase)
}

// ProofURL godoc
// @Summary Get a short-lived link to a purchase's payment proof
// @Tags admin
// @Produce json
// @Param id path string true "Purchase ID"
// @Success 200 {object} map[string]string "presigned URL"
// @Router /admin/purchases/{id}/proof [get]
func (h *AdminHandler) ProofURL(w http.ResponseWriter, r *http.Request) {
	url, err := h.creditSvc.ProofViewURL(r.Context(), r.PathValue("id"))
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to presign proof")
		http.Error(w, "failed to presign proof", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

// ListTranscripts godoc
// @Summary List live cached transcripts (metadata only)
// @Tags admin
// @Produce json
// @Success 200 {array} cache.EntryMeta
// @Router /admin/transcripts [get]
func (h *AdminHandler) ListTranscripts(w http.ResponseWriter, r *http.Request) {
	metas, err := h.transcripts.ListLive(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list transcripts")
		http.Error(w, "failed to list transcripts", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, metas)
}

// DeleteTranscript godoc
// @Summary Delete a cached transcript
// @Tags admin
// @Produce json
// @Param fingerprint path string true "Transcript fingerprint"
// @Success 200 {object} map[string]bool "whether an entry was removed"
// @Router /admin/transcripts/{fingerprint} [delete]
func (h *AdminHandler) DeleteTranscript(w http.ResponseWriter, r *http.Request) {
	removed, err := h.transcripts.Delete(r.Context(), r.PathValue("fingerprint"))
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to delete transcript")
		http.Error(w, "failed to delete transcript", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"removed": removed})
}

// SweepTranscripts godoc
// @Summary Remove expired cache entries now
// @Tags admin
// @Produce json
// @Success 200 {object} map[string]int "number of removed entries"
// @Router /admin/transcripts/sweep [post]
func (h *AdminHandler) SweepTranscripts(w http.ResponseWriter, r *http.Request) {
	removed, err := h.transcripts.Sweep(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to sweep transcripts")
		http.Error(w, "failed to sweep transcripts", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}
