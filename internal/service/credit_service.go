package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"app/internal/model"
	"app/internal/pricing"
	"app/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrInsufficientCredits is returned when a user cannot cover the cost of a
// recording.
var ErrInsufficientCredits = errors.New("insufficient_credits")

// ErrUnknownPackage is returned for purchase requests naming a package that
// does not exist.
var ErrUnknownPackage = errors.New("unknown_package")

// ErrNotPurchaseOwner is returned when a user touches someone else's purchase.
var ErrNotPurchaseOwner = errors.New("not_purchase_owner")

// Allowance reports whether a user can afford a recording of a given length.
// NeedsPurchase distinguishes a denial the user can fix by buying credits from
// the hard file-size ceiling, which has no remedy.
type Allowance struct {
	CreditsRequired int    `json:"credits_required"`
	FreeAvailable   int    `json:"free_available"`
	PaidAvailable   int    `json:"paid_available"`
	Allowed         bool   `json:"allowed"`
	NeedsPurchase   bool   `json:"needs_purchase"`
	Reason          string `json:"reason,omitempty"`
}

// CreditService manages balances, spends, and the manual purchase flow.
type CreditService interface {
	GetBalance(ctx context.Context, userID string) (*model.CreditAccount, error)
	// CheckAllowance reports whether the user can afford a recording of the
	// given size and duration without deducting anything. A zero fileSizeMB
	// skips the size ceiling.
	CheckAllowance(ctx context.Context, userID string, fileSizeMB, durationMinutes float64) (*Allowance, error)
	// Spend deducts the credit cost of a recording, free credits first.
	Spend(ctx context.Context, userID string, durationMinutes float64, recordingID, filename string) (*model.SpendReceipt, error)
	ListUsage(ctx context.Context, userID string) ([]model.CreditUsage, error)
	Packages() []pricing.CreditPackage

	// InitiatePurchase opens a pending purchase for a credit package. It is
	// approved or rejected by an operator after reviewing payment proof.
	InitiatePurchase(ctx context.Context, userID, packageID string) (*model.Purchase, error)
	UploadProof(ctx context.Context, userID, purchaseID, filename, contentType string, body io.Reader) error
	ListPurchases(ctx context.Context, userID string) ([]model.Purchase, error)

	PendingPurchases(ctx context.Context) ([]model.Purchase, error)
	ApprovePurchase(ctx context.Context, purchaseID, adminNotes string) (*model.Purchase, error)
	RejectPurchase(ctx context.Context, purchaseID, adminNotes string) (*model.Purchase, error)
	ProofViewURL(ctx context.Context, purchaseID string) (string, error)
}

type creditService struct {
	creditRepo   repository.CreditRepository
	purchaseRepo repository.PurchaseRepository
	proofs       ProofStorage
	creditLogger zerolog.Logger
}

// NewCreditService creates a new CreditService.
func NewCreditService(
	creditRepo repository.CreditRepository,
	purchaseRepo repository.PurchaseRepository,
	proofs ProofStorage,
	logger zerolog.Logger,
) CreditService {
	return &creditService{
		creditRepo:   creditRepo,
		purchaseRepo: purchaseRepo,
		proofs:       proofs,
		creditLogger: logger.With().Str("service", "CreditService").Logger(),
	}
}

func (s *creditService) GetBalance(ctx context.Context, userID string) (*model.CreditAccount, error) {
	return s.creditRepo.GetOrCreateAccount(ctx, userID)
}

func (s *creditService) CheckAllowance(ctx context.Context, userID string, fileSizeMB, durationMinutes float64) (*Allowance, error) {
	acc, err := s.creditRepo.GetOrCreateAccount(ctx, userID)
	if err != nil {
		return nil, err
	}
	required := pricing.CreditsRequired(durationMinutes)
	allowance := &Allowance{
		CreditsRequired: required,
		FreeAvailable:   acc.FreeCredits,
		PaidAvailable:   acc.Balance,
	}

	if ceiling := pricing.MaxFileSizeMB(durationMinutes); fileSizeMB > float64(ceiling) {
		allowance.Reason = fmt.Sprintf("file is %.0f MB; recordings this long are limited to %d MB", fileSizeMB, ceiling)
		return allowance, nil
	}
	if acc.Available() < required {
		allowance.NeedsPurchase = true
		allowance.Reason = fmt.Sprintf("needs %d credits, %d available", required, acc.Available())
		return allowance, nil
	}

	allowance.Allowed = true
	return allowance, nil
}

func (s *creditService) Spend(ctx context.Context, userID string, durationMinutes float64, recordingID, filename string) (*model.SpendReceipt, error) {
	required := pricing.CreditsRequired(durationMinutes)
	receipt, err := s.creditRepo.Spend(ctx, userID, required, recordingID, filename, durationMinutes)
	if err != nil {
		return nil, err
	}
	if receipt.RemainingPaid < 0 {
		// Concurrent spends can race past the pre-spend allowance check.
		// The overdraft is accepted rather than failing delivered work.
		s.creditLogger.Warn().
			Str("user_id", userID).
			Int("balance", receipt.RemainingPaid).
			Msg("Credit balance went negative")
	}
	return receipt, nil
}

func (s *creditService) ListUsage(ctx context.Context, userID string) ([]model.CreditUsage, error) {
	return s.creditRepo.ListUsage(ctx, userID, 50)
}

func (s *creditService) Packages() []pricing.CreditPackage {
	return pricing.AllPackages()
}

func (s *creditService) InitiatePurchase(ctx context.Context, userID, packageID string) (*model.Purchase, error) {
	pkg, ok := pricing.Package(packageID)
	if !ok {
		return nil, ErrUnknownPackage
	}

	// Ensure the account exists so approval can credit it later.
	if _, err := s.creditRepo.GetOrCreateAccount(ctx, userID); err != nil {
		return nil, err
	}

	purchase := &model.Purchase{
		ID:        uuid.NewString(),
		UserID:    userID,
		PackageID: pkg.ID,
		Credits:   pkg.Credits,
		Amount:    pkg.Price,
		Status:    model.PurchaseStatusPending,
	}
	if err := s.purchaseRepo.Create(ctx, purchase); err != nil {
		return nil, err
	}

	s.creditLogger.Info().
		Str("user_id", userID).
		Str("purchase_id", purchase.ID).
		Str("package", pkg.ID).
		Msg("Purchase initiated")
	return purchase, nil
}

func (s *creditService) UploadProof(ctx context.Context, userID, purchaseID, filename, contentType string, body io.Reader) error {
	purchase, err := s.purchaseRepo.Get(ctx, purchaseID)
	if err != nil {
		return err
	}
	if purchase.UserID != userID {
		return ErrNotPurchaseOwner
	}

	key := fmt.Sprintf("proofs/%s/%s%s", purchase.UserID, purchase.ID, filepath.Ext(filename))
	if err := s.proofs.Store(ctx, key, body, contentType); err != nil {
		return err
	}
	return s.purchaseRepo.AttachProof(ctx, purchaseID, key, filename)
}

func (s *creditService) ListPurchases(ctx context.Context, userID string) ([]model.Purchase, error) {
	return s.purchaseRepo.ListByUser(ctx, userID)
}

func (s *creditService) PendingPurchases(ctx context.Context) ([]model.Purchase, error) {
	return s.purchaseRepo.ListPending(ctx)
}

func (s *creditService) ApprovePurchase(ctx context.Context, purchaseID, adminNotes string) (*model.Purchase, error) {
	purchase, err := s.purchaseRepo.Approve(ctx, purchaseID, adminNotes, s.creditRepo)
	if err != nil {
		return nil, err
	}
	s.creditLogger.Info().
		Str("purchase_id", purchase.ID).
		Str("user_id", purchase.UserID).
		Int("credits", purchase.Credits).
		Msg("Purchase approved")
	return purchase, nil
}

func (s *creditService) RejectPurchase(ctx context.Context, purchaseID, adminNotes string) (*model.Purchase, error) {
	purchase, err := s.purchaseRepo.Reject(ctx, purchaseID, adminNotes)
	if err != nil {
		return nil, err
	}
	s.creditLogger.Info().
		Str("purchase_id", purchase.ID).
		Str("user_id", purchase.UserID).
		Msg("Purchase rejected")
	return purchase, nil
}

func (s *creditService) ProofViewURL(ctx context.Context, purchaseID string) (string, error) {
	purchase, err := s.purchaseRepo.Get(ctx, purchaseID)
	if err != nil {
		return "", err
	}
	if purchase.ProofPath == nil {
		return "", fmt.Errorf("purchase %s has no proof attached", purchaseID)
	}
	return s.proofs.PresignView(ctx, *purchase.ProofPath)
}
