package service

import (
	"context"
	"fmt"
	"time"

	"app/internal/model"
	"app/internal/pricing"
	"app/internal/repository"

	"github.com/rs/zerolog"
)

// LimitKind names which subscription limit an upload ran into.
type LimitKind string

const (
	LimitUploads  LimitKind = "upload_limit"
	LimitFileSize LimitKind = "file_size_limit"
	LimitDuration LimitKind = "duration_limit"
)

// LimitError is returned when an upload exceeds the user's tier limits.
type LimitError struct {
	Kind    LimitKind
	Message string
}

func (e *LimitError) Error() string {
	return e.Message
}

// TierStatus is the user's subscription with its limits and current period
// consumption.
type TierStatus struct {
	Subscription *model.Subscription `json:"subscription"`
	Limits       pricing.TierLimits  `json:"limits"`
	Usage        *model.UsageWindow  `json:"usage"`
}

// SubscriptionService enforces tier limits and handles upgrades.
type SubscriptionService interface {
	GetCurrent(ctx context.Context, userID string) (*TierStatus, error)
	// CheckCanUpload verifies the upload count and file size against the
	// user's tier. Duration is checked separately once the media has been
	// probed.
	CheckCanUpload(ctx context.Context, userID string, fileSizeMB float64) error
	// CheckDuration verifies a probed recording length against the tier's
	// per-recording ceiling.
	CheckDuration(ctx context.Context, userID string, durationMinutes float64) error
	// RecordUpload counts a processed recording against the current period.
	RecordUpload(ctx context.Context, userID string, durationMinutes float64) error
	// Activate moves a user onto a paid tier after a settled payment.
	Activate(ctx context.Context, userID, tier string) (*model.Subscription, error)
	// RetentionDeadline computes when a recording stored now should be
	// deleted for the user's tier, or nil for unlimited history.
	RetentionDeadline(ctx context.Context, userID string) (*time.Time, error)
	Tiers() []pricing.TierLimits
}

type subscriptionService struct {
	subRepo       repository.SubscriptionRepository
	usageRepo     repository.UsageRepository
	recordingRepo repository.RecordingRepository
	subLogger     zerolog.Logger
}

// NewSubscriptionService creates a new SubscriptionService.
func NewSubscriptionService(
	subRepo repository.SubscriptionRepository,
	usageRepo repository.UsageRepository,
	recordingRepo repository.RecordingRepository,
	logger zerolog.Logger,
) SubscriptionService {
	return &subscriptionService{
		subRepo:       subRepo,
		usageRepo:     usageRepo,
		recordingRepo: recordingRepo,
		subLogger:     logger.With().Str("service", "SubscriptionService").Logger(),
	}
}

func (s *subscriptionService) GetCurrent(ctx context.Context, userID string) (*TierStatus, error) {
	sub, err := s.subRepo.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	limits := pricing.LimitsFor(sub.Tier)
	start, end := pricing.CurrentPeriod(sub.Tier, time.Now())
	usage, err := s.usageRepo.GetWindow(ctx, userID, start, end)
	if err != nil {
		return nil, err
	}
	return &TierStatus{Subscription: sub, Limits: limits, Usage: usage}, nil
}

// CheckCanUpload applies the tier gates in a fixed order so the caller always
// gets the same rejection for the same state: upload count first, then file
// size.
func (s *subscriptionService) CheckCanUpload(ctx context.Context, userID string, fileSizeMB float64) error {
	status, err := s.GetCurrent(ctx, userID)
	if err != nil {
		return err
	}

	if status.Usage.UploadsUsed >= status.Limits.UploadsPerPeriod {
		return &LimitError{
			Kind: LimitUploads,
			Message: fmt.Sprintf("upload limit reached: %d of %d used this period",
				status.Usage.UploadsUsed, status.Limits.UploadsPerPeriod),
		}
	}
	if fileSizeMB > float64(status.Limits.MaxFileMB) {
		return &LimitError{
			Kind: LimitFileSize,
			Message: fmt.Sprintf("file is %.1fMB; the %s tier allows up to %dMB",
				fileSizeMB, status.Limits.Name, status.Limits.MaxFileMB),
		}
	}
	return nil
}

func (s *subscriptionService) CheckDuration(ctx context.Context, userID string, durationMinutes float64) error {
	sub, err := s.subRepo.GetOrCreate(ctx, userID)
	if err != nil {
		return err
	}
	limits := pricing.LimitsFor(sub.Tier)
	if durationMinutes > float64(limits.MaxDurationMinutes) {
		return &LimitError{
			Kind: LimitDuration,
			Message: fmt.Sprintf("recording is %.1f minutes; the %s tier allows up to %d",
				durationMinutes, limits.Name, limits.MaxDurationMinutes),
		}
	}
	return nil
}

func (s *subscriptionService) RecordUpload(ctx context.Context, userID string, durationMinutes float64) error {
	sub, err := s.subRepo.GetOrCreate(ctx, userID)
	if err != nil {
		return err
	}
	start, end := pricing.CurrentPeriod(sub.Tier, time.Now())
	return s.usageRepo.Increment(ctx, userID, start, end, durationMinutes)
}

func (s *subscriptionService) Activate(ctx context.Context, userID, tier string) (*model.Subscription, error) {
	sub, err := s.subRepo.Upgrade(ctx, userID, tier)
	if err != nil {
		return nil, err
	}

	// Unlimited-history tiers drop retention deadlines from everything the
	// user already stored.
	if pricing.LimitsFor(tier).HistoryDays == 0 {
		if err := s.recordingRepo.ClearExpiry(ctx, userID); err != nil {
			s.subLogger.Error().Err(err).Str("user_id", userID).Msg("Failed to clear recording expiry after upgrade")
		}
	}

	s.subLogger.Info().
		Str("user_id", userID).
		Str("tier", tier).
		Msg("Subscription activated")
	return sub, nil
}

func (s *subscriptionService) RetentionDeadline(ctx context.Context, userID string) (*time.Time, error) {
	sub, err := s.subRepo.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	limits := pricing.LimitsFor(sub.Tier)
	if limits.HistoryDays == 0 {
		return nil, nil
	}
	deadline := time.Now().AddDate(0, 0, limits.HistoryDays)
	return &deadline, nil
}

func (s *subscriptionService) Tiers() []pricing.TierLimits {
	return pricing.AllTiers()
}
