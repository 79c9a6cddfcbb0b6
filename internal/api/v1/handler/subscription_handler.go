package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"app/internal/api/v1/dto"
	"app/internal/middleware"
	"app/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// SubscriptionHandler exposes tier info, upgrades, and the payment webhook.
type SubscriptionHandler struct {
	subSvc    service.SubscriptionService
	xenditSvc service.XenditService
	validate  *validator.Validate
	logger    zerolog.Logger
}

// NewSubscriptionHandler creates a new SubscriptionHandler.
func NewSubscriptionHandler(subSvc service.SubscriptionService, xenditSvc service.XenditService, validate *validator.Validate, logger zerolog.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{subSvc: subSvc, xenditSvc: xenditSvc, validate: validate, logger: logger}
}

// RegisterRoutes registers the subscription endpoints. The webhook is
// registered without auth; Xendit authenticates with its callback token.
func (h *SubscriptionHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware func(http.Handler) http.Handler) {
	mux.Handle("GET /subscriptions/tiers", http.HandlerFunc(h.Tiers))
	mux.Handle("GET /subscriptions/current", authMiddleware(http.HandlerFunc(h.Current)))
	mux.Handle("POST /subscriptions/upgrade", authMiddleware(http.HandlerFunc(h.Upgrade)))
	mux.Handle("GET /subscriptions/payments", authMiddleware(http.HandlerFunc(h.Payments)))
	mux.Handle("POST /subscriptions/webhook", http.HandlerFunc(h.Webhook))
}

// Tiers godoc
// @Summary List available subscription tiers with their limits
// @Tags subscriptions
// @Produce json
// @Success 200 {array} pricing.TierLimits
// @Router /subscriptions/tiers [get]
func (h *SubscriptionHandler) Tiers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.subSvc.Tiers())
}

// Current godoc
// @Summary Get the user's subscription, limits, and period usage
// @Tags subscriptions
// @Produce json
// @Success 200 {object} service.TierStatus
// @Router /subscriptions/current [get]
func (h *SubscriptionHandler) Current(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(middleware.UserContextKey).(string)
	if !ok || userID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	status, err := h.subSvc.GetCurrent(r.Context(), userID)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("failed to fetch subscription")
		http.Error(w, "failed to fetch subscription", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// Upgrade godoc
// @Summary Create a hosted invoice for a paid-tier upgrade
// @Tags subscriptions
// @Accept json
// @Produce json
// @Param request body dto.UpgradeRequest true "Target tier"
// @Success 201 {object} dto.UpgradeResponse
// @Router /subscriptions/upgrade [post]
func (h *SubscriptionHandler) Upgrade(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(middleware.UserContextKey).(string)
	if !ok || userID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	email, _ := r.Context().Value(middleware.EmailContextKey).(string)

	var req dto.UpgradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request payload", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		http.Error(w, "tier must be basic or pro", http.StatusBadRequest)
		return
	}

	payment, err := h.xenditSvc.CreateUpgradeInvoice(r.Context(), userID, email, req.Tier)
	if err != nil {
		if !writeDomainError(w, err) {
			h.logger.Error().Err(err).Str("user_id", userID).Msg("failed to create upgrade invoice")
			http.Error(w, "failed to create upgrade invoice", http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, http.StatusCreated, dto.UpgradeResponse{
		PaymentID:  payment.ID,
		InvoiceURL: payment.XenditInvoiceURL,
		Amount:     payment.Amount,
	})
}

// Payments godoc
// @Summary List the user's subscription payments
// @Tags subscriptions
// @Produce json
// @Success 200 {array} model.Payment
// @Router /subscriptions/payments [get]
func (h *SubscriptionHandler) Payments(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(middleware.UserContextKey).(string)
	if !ok || userID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	payments, err := h.xenditSvc.ListPayments(r.Context(), userID)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("failed to list payments")
		http.Error(w, "failed to list payments", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, payments)
}

// Webhook godoc
// @Summary Xendit invoice callback
// @Description Settles payments when Xendit reports an invoice as paid or expired.
// @Tags subscriptions
// @Accept json
// @Success 200 {string} string "ok"
// @Failure 401 {string} string "invalid callback token"
// @Router /subscriptions/webhook [post]
func (h *SubscriptionHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		http.Error(w, "failed to read payload", http.StatusBadRequest)
		return
	}

	err = h.xenditSvc.HandleInvoiceCallback(r.Context(), r.Header.Get("X-Callback-Token"), payload)
	if errors.Is(err, service.ErrInvalidWebhookToken) {
		h.logger.Warn().Msg("webhook with invalid callback token")
		http.Error(w, "invalid callback token", http.StatusUnauthorized)
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to handle invoice callback")
		http.Error(w, "failed to handle callback", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}
