package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"app/internal/cache"
	"app/internal/media"
	"app/internal/model"
	"app/internal/repository"
	"app/internal/summarize"
	"app/internal/transcribe"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Pipeline run outcomes.
const (
	RunCompleted     = "completed"
	RunSummaryFailed = "summary_failed"
)

// ErrNoCachedTranscript is returned when a retry references a fingerprint
// with no live cache entry.
var ErrNoCachedTranscript = errors.New("no_cached_transcript")

// PipelineResult is the outcome of a processing run. On RunSummaryFailed the
// transcript and fingerprint are still delivered, no credits are charged, and
// the cached transcript stays available for a retry.
type PipelineResult struct {
	Status          string              `json:"status"`
	RecordingID     string              `json:"recording_id,omitempty"`
	Fingerprint     string              `json:"fingerprint"`
	Filename        string              `json:"filename"`
	DurationMinutes float64             `json:"duration_minutes"`
	FromCache       bool                `json:"from_cache"`
	Transcript      string              `json:"transcript"`
	Summary         *model.Summary      `json:"summary,omitempty"`
	SummaryError    string              `json:"summary_error,omitempty"`
	Receipt         *model.SpendReceipt `json:"receipt,omitempty"`
}

// PipelineService runs uploads through validation, conversion, transcription,
// and summarization, charging credits only after a summary is delivered.
type PipelineService interface {
	Process(ctx context.Context, userID, filename, contentType string, content []byte) (*PipelineResult, error)
	// RetrySummary re-runs only the summarization stage from a cached
	// transcript, then bills as a normal run. Success consumes the entry, so
	// each fingerprint can be billed at most once.
	RetrySummary(ctx context.Context, userID, fingerprint string) (*PipelineResult, error)
}

// audioConverter is the slice of media.Transcoder the pipeline needs; tests
// substitute a fake.
type audioConverter interface {
	Convert(ctx context.Context, content []byte, extension string, isVideo bool) (*media.NormalizedAudio, error)
	Cleanup(path string)
}

type pipelineService struct {
	validator     *media.Validator
	converter     audioConverter
	transcriber   transcribe.Transcriber
	summarizer    summarize.Summarizer
	transcripts   cache.TranscriptCache
	credits       CreditService
	subscriptions SubscriptionService
	recordingRepo repository.RecordingRepository
	runLogger     zerolog.Logger
}

// NewPipelineService creates a new PipelineService.
func NewPipelineService(
	validator *media.Validator,
	converter audioConverter,
	transcriber transcribe.Transcriber,
	summarizer summarize.Summarizer,
	transcripts cache.TranscriptCache,
	credits CreditService,
	subscriptions SubscriptionService,
	recordingRepo repository.RecordingRepository,
	logger zerolog.Logger,
) PipelineService {
	return &pipelineService{
		validator:     validator,
		converter:     converter,
		transcriber:   transcriber,
		summarizer:    summarizer,
		transcripts:   transcripts,
		credits:       credits,
		subscriptions: subscriptions,
		recordingRepo: recordingRepo,
		runLogger:     logger.With().Str("service", "PipelineService").Logger(),
	}
}

func (s *pipelineService) Process(ctx context.Context, userID, filename, contentType string, content []byte) (*PipelineResult, error) {
	info, err := s.validator.Validate(filename, int64(len(content)), contentType)
	if err != nil {
		return nil, err
	}

	if err := s.subscriptions.CheckCanUpload(ctx, userID, info.SizeMB); err != nil {
		return nil, err
	}

	fingerprint := cache.Fingerprint(info.Filename, info.SizeBytes)
	logger := s.runLogger.With().
		Str("user_id", userID).
		Str("fingerprint", fingerprint).
		Str("filename", info.Filename).
		Logger()

	audio, err := s.converter.Convert(ctx, content, info.Extension, info.IsVideo)
	if err != nil {
		return nil, err
	}
	durationMinutes := audio.DurationSeconds / 60

	// Limits that depend on the real duration are checked before the
	// expensive transcription call, and before anything is charged.
	if err := s.gateDuration(ctx, userID, info.SizeMB, durationMinutes); err != nil {
		s.converter.Cleanup(audio.Path)
		return nil, err
	}

	transcript, err := s.transcriber.Transcribe(ctx, audio.Path)
	if err != nil {
		s.converter.Cleanup(audio.Path)
		return nil, err
	}

	// The transcript must be durably cached before summarization is
	// attempted; a failed write here would leave a summary failure with no
	// retry entry behind the fingerprint it advertises.
	if err := s.transcripts.Put(ctx, cache.Entry{
		Fingerprint:     fingerprint,
		Filename:        info.Filename,
		DurationMinutes: durationMinutes,
		Transcript:      transcript,
	}); err != nil {
		s.converter.Cleanup(audio.Path)
		return nil, fmt.Errorf("caching transcript %s: %w", fingerprint, err)
	}
	s.converter.Cleanup(audio.Path)

	return s.summarizeAndBill(ctx, logger, userID, info.Filename, info.SizeMB, fingerprint, transcript, durationMinutes, false)
}

func (s *pipelineService) RetrySummary(ctx context.Context, userID, fingerprint string) (*PipelineResult, error) {
	entry, err := s.transcripts.Get(ctx, fingerprint)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, ErrNoCachedTranscript
	}

	if err := s.gateDuration(ctx, userID, 0, entry.DurationMinutes); err != nil {
		return nil, err
	}

	logger := s.runLogger.With().
		Str("user_id", userID).
		Str("fingerprint", fingerprint).
		Str("filename", entry.Filename).
		Logger()
	logger.Info().Msg("Retrying summarization from cached transcript")

	return s.summarizeAndBill(ctx, logger, userID, entry.Filename, 0, fingerprint, entry.Transcript, entry.DurationMinutes, true)
}

// gateDuration applies the duration-dependent checks: the tier's length
// ceiling and the credit allowance. Nothing is deducted here. A zero
// fileSizeMB skips the size ceiling (retries re-check length and cost only).
func (s *pipelineService) gateDuration(ctx context.Context, userID string, fileSizeMB, durationMinutes float64) error {
	if err := s.subscriptions.CheckDuration(ctx, userID, durationMinutes); err != nil {
		return err
	}
	allowance, err := s.credits.CheckAllowance(ctx, userID, fileSizeMB, durationMinutes)
	if err != nil {
		return err
	}
	if !allowance.Allowed {
		if allowance.NeedsPurchase {
			return fmt.Errorf("%w: need %d credits, have %d",
				ErrInsufficientCredits, allowance.CreditsRequired, allowance.FreeAvailable+allowance.PaidAvailable)
		}
		return &LimitError{Kind: LimitFileSize, Message: allowance.Reason}
	}
	return nil
}

// summarizeAndBill runs the summarization stage and, only if it succeeds,
// charges credits and persists the recording. A summarization failure is a
// partial success: the caller keeps the transcript, pays nothing, and can
// retry from cache.
func (s *pipelineService) summarizeAndBill(ctx context.Context, logger zerolog.Logger, userID, filename string, fileSizeMB float64, fingerprint, transcript string, durationMinutes float64, fromCache bool) (*PipelineResult, error) {
	result := &PipelineResult{
		Fingerprint:     fingerprint,
		Filename:        filename,
		DurationMinutes: durationMinutes,
		FromCache:       fromCache,
		Transcript:      transcript,
	}

	summary, tier, err := s.summarizer.Summarize(ctx, transcript)
	if err != nil {
		logger.Error().Err(err).Msg("Summarization failed, returning transcript only")
		result.Status = RunSummaryFailed
		result.SummaryError = err.Error()
		return result, nil
	}
	if tier == summarize.ParseDegraded {
		logger.Warn().Msg("Summary degraded to raw text")
	}

	result.Status = RunCompleted
	result.Summary = summary
	result.RecordingID = uuid.NewString()

	// The entry has served its purpose once a summary exists; removing it
	// closes the retry window so the same fingerprint cannot be billed again.
	if _, err := s.transcripts.Delete(ctx, fingerprint); err != nil {
		logger.Warn().Err(err).Msg("Failed to delete consumed cache entry")
	}

	// The summary has been produced at this point; billing or persistence
	// failures are logged and absorbed rather than voiding delivered work.
	receipt, err := s.credits.Spend(ctx, userID, durationMinutes, result.RecordingID, filename)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to charge credits for completed run")
	} else {
		result.Receipt = receipt
	}

	if err := s.subscriptions.RecordUpload(ctx, userID, durationMinutes); err != nil {
		logger.Error().Err(err).Msg("Failed to record usage for completed run")
	}

	expiresAt, err := s.subscriptions.RetentionDeadline(ctx, userID)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to compute retention deadline")
		fallback := time.Now().AddDate(0, 0, 30)
		expiresAt = &fallback
	}
	rec := &model.Recording{
		ID:              result.RecordingID,
		UserID:          userID,
		Filename:        filename,
		DurationMinutes: durationMinutes,
		FileSizeMB:      fileSizeMB,
		CreditsUsed:     creditsCharged(result.Receipt),
		Transcript:      transcript,
		Summary:         *summary,
	}
	if err := s.recordingRepo.Create(ctx, rec, expiresAt); err != nil {
		logger.Error().Err(err).Msg("Failed to persist recording")
		result.RecordingID = ""
	}

	logger.Info().
		Float64("duration_minutes", durationMinutes).
		Bool("from_cache", fromCache).
		Int("credits_used", creditsCharged(result.Receipt)).
		Msg("Pipeline run completed")
	return result, nil
}

func creditsCharged(receipt *model.SpendReceipt) int {
	if receipt == nil {
		return 0
	}
	return receipt.CreditsUsed
}
