package repository

import (
	"context"
	"errors"
	"os"
	"testing"

	"app/internal/database"
	"app/internal/model"
	"app/internal/pricing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// These tests need a running Postgres. They are skipped unless DATABASE_URL
// is set, e.g. DATABASE_URL=postgres://localhost/app_test go test ./internal/repository/...
func newIntegrationPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	pool, err := database.Open(context.Background(), dsn)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

func TestCreditAccountWeeklyResetIsIdempotent(t *testing.T) {
	pool := newIntegrationPool(t)
	repo := NewCreditRepo(pool)
	ctx := context.Background()
	userID := "it-" + uuid.NewString()

	acc, err := repo.GetOrCreateAccount(ctx, userID)
	if err != nil {
		t.Fatalf("failed to create account: %v", err)
	}
	if acc.FreeCredits != pricing.FreeWeeklyCredits {
		t.Fatalf("new account should start with %d free credits, got %d", pricing.FreeWeeklyCredits, acc.FreeCredits)
	}

	// Drain the allotment and age the reset stamp past a week.
	const age = `
        UPDATE credit_accounts
        SET free_credits = 0, free_credits_reset_at = NOW() - INTERVAL '8 days'
        WHERE user_id = $1
    `
	if _, err := pool.Exec(ctx, age, userID); err != nil {
		t.Fatalf("failed to age account: %v", err)
	}

	acc, err = repo.GetOrCreateAccount(ctx, userID)
	if err != nil {
		t.Fatalf("read after aging failed: %v", err)
	}
	if acc.FreeCredits != pricing.FreeWeeklyCredits {
		t.Fatalf("stale allotment should reset on read, got %d", acc.FreeCredits)
	}

	// A partial spend inside the fresh window must survive further reads;
	// the reset fires once per week, not once per read.
	const drain = `UPDATE credit_accounts SET free_credits = free_credits - 1 WHERE user_id = $1`
	if _, err := pool.Exec(ctx, drain, userID); err != nil {
		t.Fatalf("failed to drain a credit: %v", err)
	}
	acc, err = repo.GetOrCreateAccount(ctx, userID)
	if err != nil {
		t.Fatalf("read inside window failed: %v", err)
	}
	if acc.FreeCredits != pricing.FreeWeeklyCredits-1 {
		t.Errorf("read inside the window must not regrant, got %d free credits", acc.FreeCredits)
	}
}

func TestPurchaseApprovalCreditsExactlyOnce(t *testing.T) {
	pool := newIntegrationPool(t)
	creditRepo := NewCreditRepo(pool)
	purchaseRepo := NewPurchaseRepo(pool)
	ctx := context.Background()
	userID := "it-" + uuid.NewString()

	if _, err := creditRepo.GetOrCreateAccount(ctx, userID); err != nil {
		t.Fatalf("failed to create account: %v", err)
	}

	purchase := &model.Purchase{
		ID:        uuid.NewString(),
		UserID:    userID,
		PackageID: "starter",
		Credits:   10,
		Amount:    99000,
		Status:    model.PurchaseStatusPending,
	}
	if err := purchaseRepo.Create(ctx, purchase); err != nil {
		t.Fatalf("failed to create purchase: %v", err)
	}

	approved, err := purchaseRepo.Approve(ctx, purchase.ID, "bank transfer checked", creditRepo)
	if err != nil {
		t.Fatalf("first approval failed: %v", err)
	}
	if approved.Status != model.PurchaseStatusApproved {
		t.Errorf("expected approved status, got %s", approved.Status)
	}

	acc, err := creditRepo.GetOrCreateAccount(ctx, userID)
	if err != nil {
		t.Fatalf("failed to read account: %v", err)
	}
	if acc.Balance != purchase.Credits {
		t.Fatalf("approval should credit %d, balance is %d", purchase.Credits, acc.Balance)
	}

	if _, err := purchaseRepo.Approve(ctx, purchase.ID, "again", creditRepo); !errors.Is(err, ErrPurchaseAlreadyProcessed) {
		t.Fatalf("second approval must be refused, got %v", err)
	}
	if _, err := purchaseRepo.Reject(ctx, purchase.ID, "changed my mind"); !errors.Is(err, ErrPurchaseAlreadyProcessed) {
		t.Fatalf("rejecting an approved purchase must be refused, got %v", err)
	}

	acc, err = creditRepo.GetOrCreateAccount(ctx, userID)
	if err != nil {
		t.Fatalf("failed to re-read account: %v", err)
	}
	if acc.Balance != purchase.Credits {
		t.Errorf("refused decisions must not touch the balance, got %d", acc.Balance)
	}
}

func TestSubscriptionLazyExpiryDowngrades(t *testing.T) {
	pool := newIntegrationPool(t)
	repo := NewSubscriptionRepo(pool)
	ctx := context.Background()
	userID := "it-" + uuid.NewString()

	sub, err := repo.Upgrade(ctx, userID, pricing.TierBasic)
	if err != nil {
		t.Fatalf("upgrade failed: %v", err)
	}
	if sub.Tier != pricing.TierBasic {
		t.Fatalf("expected basic tier, got %s", sub.Tier)
	}

	const age = `UPDATE subscriptions SET expires_at = NOW() - INTERVAL '1 day' WHERE user_id = $1`
	if _, err := pool.Exec(ctx, age, userID); err != nil {
		t.Fatalf("failed to age subscription: %v", err)
	}

	sub, err = repo.GetOrCreate(ctx, userID)
	if err != nil {
		t.Fatalf("read after expiry failed: %v", err)
	}
	if sub.Tier != pricing.TierFree || sub.Status != model.SubscriptionStatusExpired {
		t.Fatalf("past-expiry read should downgrade to free/expired, got %s/%s", sub.Tier, sub.Status)
	}

	// The downgrade is a one-way settle; further reads see the same row.
	sub, err = repo.GetOrCreate(ctx, userID)
	if err != nil {
		t.Fatalf("second read failed: %v", err)
	}
	if sub.Tier != pricing.TierFree || sub.Status != model.SubscriptionStatusExpired {
		t.Errorf("downgraded row must be stable, got %s/%s", sub.Tier, sub.Status)
	}
}

func TestSpendDrawsFreeCreditsFirst(t *testing.T) {
	pool := newIntegrationPool(t)
	repo := NewCreditRepo(pool)
	ctx := context.Background()
	userID := "it-" + uuid.NewString()

	if _, err := repo.GetOrCreateAccount(ctx, userID); err != nil {
		t.Fatalf("failed to create account: %v", err)
	}
	const fund = `UPDATE credit_accounts SET balance = 5 WHERE user_id = $1`
	if _, err := pool.Exec(ctx, fund, userID); err != nil {
		t.Fatalf("failed to fund account: %v", err)
	}

	receipt, err := repo.Spend(ctx, userID, 3, "", "meeting.mp3", 60)
	if err != nil {
		t.Fatalf("spend failed: %v", err)
	}
	if receipt.FreeUsed != pricing.FreeWeeklyCredits || receipt.PaidUsed != 3-pricing.FreeWeeklyCredits {
		t.Errorf("spend must drain free credits first, got free=%d paid=%d", receipt.FreeUsed, receipt.PaidUsed)
	}
	if receipt.RemainingFree != 0 || receipt.RemainingPaid != 5-receipt.PaidUsed {
		t.Errorf("unexpected remaining balances: free=%d paid=%d", receipt.RemainingFree, receipt.RemainingPaid)
	}

	acc, err := repo.GetOrCreateAccount(ctx, userID)
	if err != nil {
		t.Fatalf("failed to re-read account: %v", err)
	}
	if acc.FreeCredits != 0 || acc.Balance != 5-receipt.PaidUsed {
		t.Errorf("balances not persisted: free=%d paid=%d", acc.FreeCredits, acc.Balance)
	}
	if acc.TotalUsed != 3 {
		t.Errorf("lifetime usage should be 3, got %d", acc.TotalUsed)
	}

	usage, err := repo.ListUsage(ctx, userID, 10)
	if err != nil {
		t.Fatalf("failed to list usage: %v", err)
	}
	if len(usage) != 1 {
		t.Fatalf("expected one usage entry, got %d", len(usage))
	}
	if usage[0].CreditType != model.CreditTypeMixed {
		t.Errorf("a split spend logs as mixed, got %s", usage[0].CreditType)
	}
}
