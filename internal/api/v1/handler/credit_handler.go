package handler

import (
	"encoding/json"
	"net/http"

	"app/internal/api/v1/dto"
	"app/internal/middleware"
	"app/internal/pricing"
	"app/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

const maxProofSizeMB = 10

// CreditHandler exposes balance, usage, and purchase endpoints.
type CreditHandler struct {
	creditSvc service.CreditService
	subSvc    service.SubscriptionService
	validate  *validator.Validate
	logger    zerolog.Logger
}

// NewCreditHandler creates a new CreditHandler.
func NewCreditHandler(creditSvc service.CreditService, subSvc service.SubscriptionService, validate *validator.Validate, logger zerolog.Logger) *CreditHandler {
	return &CreditHandler{creditSvc: creditSvc, subSvc: subSvc, validate: validate, logger: logger}
}

// RegisterRoutes registers the credit endpoints.
func (h *CreditHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware func(http.Handler) http.Handler) {
	mux.Handle("GET /credits/balance", authMiddleware(http.HandlerFunc(h.Balance)))
	mux.Handle("GET /credits/packages", authMiddleware(http.HandlerFunc(h.Packages)))
	mux.Handle("GET /credits/usage", authMiddleware(http.HandlerFunc(h.Usage)))
	mux.Handle("POST /credits/check-upload", authMiddleware(http.HandlerFunc(h.CheckUpload)))
	mux.Handle("POST /credits/purchase", authMiddleware(http.HandlerFunc(h.Purchase)))
	mux.Handle("POST /credits/purchase/{id}/proof", authMiddleware(http.HandlerFunc(h.UploadProof)))
	mux.Handle("GET /credits/purchases", authMiddleware(http.HandlerFunc(h.Purchases)))
}

// Balance godoc
// @Summary Get the user's credit balance
// @Tags credits
// @Produce json
// @Success 200 {object} model.CreditAccount
// @Router /credits/balance [get]
func (h *CreditHandler) Balance(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(middleware.UserContextKey).(string)
	if !ok || userID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	acc, err := h.creditSvc.GetBalance(r.Context(), userID)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("failed to fetch balance")
		http.Error(w, "failed to fetch balance", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, acc)
}

// Packages godoc
// @Summary List purchasable credit packages
// @Tags credits
// @Produce json
// @Success 200 {array} pricing.CreditPackage
// @Router /credits/packages [get]
func (h *CreditHandler) Packages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.creditSvc.Packages())
}

// Usage godoc
// @Summary List recent credit usage entries
// @Tags credits
// @Produce json
// @Success 200 {array} model.CreditUsage
// @Router /credits/usage [get]
func (h *CreditHandler) Usage(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(middleware.UserContextKey).(string)
	if !ok || userID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	usage, err := h.creditSvc.ListUsage(r.Context(), userID)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("failed to list usage")
		http.Error(w, "failed to list usage", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, usage)
}

// CheckUpload godoc
// @Summary Pre-flight check for an upload
// @Description Reports whether a recording of the declared size and duration would pass tier limits and what it would cost.
// @Tags credits
// @Accept json
// @Produce json
// @Param request body dto.CheckUploadRequest true "Planned upload"
// @Success 200 {object} dto.CheckUploadResponse
// @Router /credits/check-upload [post]
func (h *CreditHandler) CheckUpload(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(middleware.UserContextKey).(string)
	if !ok || userID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req dto.CheckUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request payload", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		http.Error(w, "file_size_mb and duration_minutes must be positive", http.StatusBadRequest)
		return
	}

	resp := dto.CheckUploadResponse{CreditsRequired: pricing.CreditsRequired(req.DurationMinutes)}

	if err := h.subSvc.CheckCanUpload(r.Context(), userID, req.FileSizeMB); err != nil {
		resp.Reason = err.Error()
		resp.UpgradeRequired = true
		writeJSON(w, http.StatusOK, resp)
		return
	}
	if err := h.subSvc.CheckDuration(r.Context(), userID, req.DurationMinutes); err != nil {
		resp.Reason = err.Error()
		resp.UpgradeRequired = true
		writeJSON(w, http.StatusOK, resp)
		return
	}

	allowance, err := h.creditSvc.CheckAllowance(r.Context(), userID, req.FileSizeMB, req.DurationMinutes)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("failed to check allowance")
		http.Error(w, "failed to check allowance", http.StatusInternalServerError)
		return
	}
	resp.Allowed = allowance.Allowed
	resp.NeedsPurchase = allowance.NeedsPurchase
	resp.FreeAvailable = allowance.FreeAvailable
	resp.PaidAvailable = allowance.PaidAvailable
	resp.Reason = allowance.Reason
	writeJSON(w, http.StatusOK, resp)
}

// Purchase godoc
// @Summary Open a pending credit purchase
// @Tags credits
// @Accept json
// @Produce json
// @Param request body dto.PurchaseRequest true "Package to buy"
// @Success 201 {object} model.Purchase
// @Router /credits/purchase [post]
func (h *CreditHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(middleware.UserContextKey).(string)
	if !ok || userID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req dto.PurchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request payload", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		http.Error(w, "package_id is required", http.StatusBadRequest)
		return
	}

	purchase, err := h.creditSvc.InitiatePurchase(r.Context(), userID, req.PackageID)
	if err != nil {
		if !writeDomainError(w, err) {
			h.logger.Error().Err(err).Str("user_id", userID).Msg("failed to initiate purchase")
			http.Error(w, "failed to initiate purchase", http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, http.StatusCreated, purchase)
}

// UploadProof godoc
// @Summary Attach a payment proof image to a purchase
// @Tags credits
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Purchase ID"
// @Param file formData file true "Proof image"
// @Success 204 "proof stored"
// @Router /credits/purchase/{id}/proof [post]
func (h *CreditHandler) UploadProof(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(middleware.UserContextKey).(string)
	if !ok || userID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxProofSizeMB<<20)
	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "file field is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	err = h.creditSvc.UploadProof(r.Context(), userID, r.PathValue("id"), header.Filename, header.Header.Get("Content-Type"), file)
	if err != nil {
		if !writeDomainError(w, err) {
			h.logger.Error().Err(err).Str("user_id", userID).Msg("failed to store proof")
			http.Error(w, "failed to store proof", http.StatusInternalServerError)
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Purchases godoc
// @Summary List the user's purchases
// @Tags credits
// @Produce json
// @Success 200 {array} model.Purchase
// @Router /credits/purchases [get]
func (h *CreditHandler) Purchases(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(middleware.UserContextKey).(string)
	if !ok || userID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	purchases, err := h.creditSvc.ListPurchases(r.Context(), userID)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("failed to list purchases")
		http.Error(w, "failed to list purchases", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, purchases)
}
