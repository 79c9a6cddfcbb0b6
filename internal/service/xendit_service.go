package service

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"app/internal/model"
	"app/internal/pricing"
	"app/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrInvalidWebhookToken is returned when a webhook call carries a missing or
// wrong callback token.
var ErrInvalidWebhookToken = errors.New("invalid_webhook_token")

// ErrUnknownTier is returned for upgrade requests naming a tier that cannot
// be purchased.
var ErrUnknownTier = errors.New("unknown_tier")

// XenditService creates subscription invoices and settles them from webhook
// callbacks.
type XenditService interface {
	// CreateUpgradeInvoice opens a pending payment and returns the hosted
	// invoice the user pays on.
	CreateUpgradeInvoice(ctx context.Context, userID, email, tier string) (*model.Payment, error)
	// HandleInvoiceCallback settles a payment from a webhook delivery. The
	// callback token is checked before anything else.
	HandleInvoiceCallback(ctx context.Context, callbackToken string, payload []byte) error
	ListPayments(ctx context.Context, userID string) ([]model.Payment, error)
}

type xenditService struct {
	client        *http.Client
	baseURL       string
	secretKey     string
	webhookToken  string
	frontendURL   string
	paymentRepo   repository.PaymentRepository
	subscriptions SubscriptionService
	payLogger     zerolog.Logger
}

// NewXenditService creates a new XenditService.
func NewXenditService(
	baseURL, secretKey, webhookToken, frontendURL string,
	paymentRepo repository.PaymentRepository,
	subscriptions SubscriptionService,
	logger zerolog.Logger,
) XenditService {
	return &xenditService{
		client:        &http.Client{Timeout: 30 * time.Second},
		baseURL:       baseURL,
		secretKey:     secretKey,
		webhookToken:  webhookToken,
		frontendURL:   frontendURL,
		paymentRepo:   paymentRepo,
		subscriptions: subscriptions,
		payLogger:     logger.With().Str("service", "XenditService").Logger(),
	}
}

type invoiceRequest struct {
	ExternalID         string `json:"external_id"`
	Amount             int    `json:"amount"`
	PayerEmail         string `json:"payer_email,omitempty"`
	Description        string `json:"description"`
	SuccessRedirectURL string `json:"success_redirect_url,omitempty"`
	FailureRedirectURL string `json:"failure_redirect_url,omitempty"`
}

type invoiceResponse struct {
	ID         string `json:"id"`
	InvoiceURL string `json:"invoice_url"`
	Status     string `json:"status"`
}

func (s *xenditService) CreateUpgradeInvoice(ctx context.Context, userID, email, tier string) (*model.Payment, error) {
	if !pricing.KnownTier(tier) || tier == pricing.TierFree {
		return nil, ErrUnknownTier
	}
	amount := pricing.PriceFor(tier)
	paymentID := uuid.NewString()

	reqBody := invoiceRequest{
		ExternalID:         paymentID,
		Amount:             amount,
		PayerEmail:         email,
		Description:        fmt.Sprintf("Subscription upgrade to %s", pricing.LimitsFor(tier).Name),
		SuccessRedirectURL: s.frontendURL + "/subscription?status=success",
		FailureRedirectURL: s.frontendURL + "/subscription?status=failed",
	}
	invoice, err := s.createInvoice(ctx, reqBody)
	if err != nil {
		return nil, err
	}

	payment := &model.Payment{
		ID:               paymentID,
		UserID:           userID,
		Tier:             tier,
		Amount:           amount,
		Status:           model.PaymentStatusPending,
		XenditInvoiceID:  invoice.ID,
		XenditInvoiceURL: invoice.InvoiceURL,
	}
	if err := s.paymentRepo.Create(ctx, payment); err != nil {
		return nil, err
	}

	s.payLogger.Info().
		Str("user_id", userID).
		Str("payment_id", paymentID).
		Str("tier", tier).
		Msg("Upgrade invoice created")
	return payment, nil
}

func (s *xenditService) createInvoice(ctx context.Context, reqBody invoiceRequest) (*invoiceResponse, error) {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to encode invoice request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v2/invoices", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create invoice request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(s.secretKey, "")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("invoice request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read invoice response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("invoice creation rejected with status %d: %s", resp.StatusCode, respBody)
	}

	var invoice invoiceResponse
	if err := json.Unmarshal(respBody, &invoice); err != nil {
		return nil, fmt.Errorf("failed to decode invoice response: %w", err)
	}
	if invoice.ID == "" || invoice.InvoiceURL == "" {
		return nil, fmt.Errorf("invoice response missing id or url")
	}
	return &invoice, nil
}

type invoiceCallback struct {
	ID         string `json:"id"`
	ExternalID string `json:"external_id"`
	Status     string `json:"status"`
}

func (s *xenditService) HandleInvoiceCallback(ctx context.Context, callbackToken string, payload []byte) error {
	if s.webhookToken == "" {
		return ErrInvalidWebhookToken
	}
	if subtle.ConstantTimeCompare([]byte(callbackToken), []byte(s.webhookToken)) != 1 {
		return ErrInvalidWebhookToken
	}

	var cb invoiceCallback
	if err := json.Unmarshal(payload, &cb); err != nil {
		return fmt.Errorf("failed to decode invoice callback: %w", err)
	}

	switch cb.Status {
	case "PAID":
		payment, err := s.paymentRepo.MarkPaid(ctx, cb.ID)
		if errors.Is(err, repository.ErrPaymentAlreadySettled) {
			// Xendit retries deliveries; a repeat for a settled invoice is
			// acknowledged without re-activating anything.
			s.payLogger.Info().Str("invoice_id", cb.ID).Msg("Duplicate PAID callback ignored")
			return nil
		}
		if err != nil {
			return err
		}
		if _, err := s.subscriptions.Activate(ctx, payment.UserID, payment.Tier); err != nil {
			return fmt.Errorf("activating subscription for payment %s: %w", payment.ID, err)
		}
		s.payLogger.Info().
			Str("user_id", payment.UserID).
			Str("tier", payment.Tier).
			Msg("Payment settled, subscription activated")
		return nil

	case "EXPIRED":
		if err := s.paymentRepo.MarkExpired(ctx, cb.ID); err != nil {
			return err
		}
		s.payLogger.Info().Str("invoice_id", cb.ID).Msg("Invoice expired")
		return nil

	default:
		s.payLogger.Info().Str("invoice_id", cb.ID).Str("status", cb.Status).Msg("Ignoring invoice callback status")
		return nil
	}
}

func (s *xenditService) ListPayments(ctx context.Context, userID string) ([]model.Payment, error) {
	return s.paymentRepo.ListByUser(ctx, userID)
}
