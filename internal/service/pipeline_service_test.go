package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"app/internal/cache"
	"app/internal/media"
	"app/internal/model"
	"app/internal/pricing"
	"app/internal/summarize"

	"github.com/rs/zerolog"
)

type fakeConverter struct {
	durationSeconds float64
	err             error
	convertCalls    int
	cleanupCalls    int
}

func (f *fakeConverter) Convert(ctx context.Context, content []byte, extension string, isVideo bool) (*media.NormalizedAudio, error) {
	f.convertCalls++
	if f.err != nil {
		return nil, f.err
	}
	return &media.NormalizedAudio{Path: "/tmp/fake.mp3", DurationSeconds: f.durationSeconds}, nil
}

func (f *fakeConverter) Cleanup(path string) {
	f.cleanupCalls++
}

type fakeTranscriber struct {
	transcript string
	err        error
	calls      int
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, audioPath string) (string, error) {
	f.calls++
	return f.transcript, f.err
}

type fakeSummarizer struct {
	summary *model.Summary
	err     error
	calls   int
}

func (f *fakeSummarizer) Summarize(ctx context.Context, transcript string) (*model.Summary, summarize.ParseTier, error) {
	f.calls++
	if f.err != nil {
		return nil, "", f.err
	}
	return f.summary, summarize.ParseStrict, nil
}

type fakeCache struct {
	entries map[string]cache.Entry
	putErr  error
	puts    int
	deletes int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]cache.Entry)}
}

func (f *fakeCache) Put(ctx context.Context, entry cache.Entry) error {
	if f.putErr != nil {
		return f.putErr
	}
	f.puts++
	f.entries[entry.Fingerprint] = entry
	return nil
}

func (f *fakeCache) Get(ctx context.Context, fingerprint string) (*cache.Entry, error) {
	e, ok := f.entries[fingerprint]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (f *fakeCache) Delete(ctx context.Context, fingerprint string) (bool, error) {
	f.deletes++
	_, ok := f.entries[fingerprint]
	delete(f.entries, fingerprint)
	return ok, nil
}

func (f *fakeCache) Sweep(ctx context.Context) (int, error) { return 0, nil }

func (f *fakeCache) ListLive(ctx context.Context) ([]cache.EntryMeta, error) { return nil, nil }

type fakeCredits struct {
	available int
	spends    []float64
	spendErr  error
}

func (f *fakeCredits) GetBalance(ctx context.Context, userID string) (*model.CreditAccount, error) {
	return &model.CreditAccount{UserID: userID, FreeCredits: f.available}, nil
}

func (f *fakeCredits) CheckAllowance(ctx context.Context, userID string, fileSizeMB, durationMinutes float64) (*Allowance, error) {
	required := pricing.CreditsRequired(durationMinutes)
	allowance := &Allowance{
		CreditsRequired: required,
		FreeAvailable:   f.available,
	}
	if f.available < required {
		allowance.NeedsPurchase = true
		return allowance, nil
	}
	allowance.Allowed = true
	return allowance, nil
}

func (f *fakeCredits) Spend(ctx context.Context, userID string, durationMinutes float64, recordingID, filename string) (*model.SpendReceipt, error) {
	if f.spendErr != nil {
		return nil, f.spendErr
	}
	f.spends = append(f.spends, durationMinutes)
	required := pricing.CreditsRequired(durationMinutes)
	return &model.SpendReceipt{CreditsUsed: required, FreeUsed: required}, nil
}

func (f *fakeCredits) ListUsage(ctx context.Context, userID string) ([]model.CreditUsage, error) {
	return nil, nil
}

func (f *fakeCredits) Packages() []pricing.CreditPackage { return nil }

func (f *fakeCredits) InitiatePurchase(ctx context.Context, userID, packageID string) (*model.Purchase, error) {
	return nil, nil
}

func (f *fakeCredits) UploadProof(ctx context.Context, userID, purchaseID, filename, contentType string, body io.Reader) error {
	return nil
}

func (f *fakeCredits) ListPurchases(ctx context.Context, userID string) ([]model.Purchase, error) {
	return nil, nil
}

func (f *fakeCredits) PendingPurchases(ctx context.Context) ([]model.Purchase, error) {
	return nil, nil
}

func (f *fakeCredits) ApprovePurchase(ctx context.Context, purchaseID, adminNotes string) (*model.Purchase, error) {
	return nil, nil
}

func (f *fakeCredits) RejectPurchase(ctx context.Context, purchaseID, adminNotes string) (*model.Purchase, error) {
	return nil, nil
}

func (f *fakeCredits) ProofViewURL(ctx context.Context, purchaseID string) (string, error) {
	return "", nil
}

type fakeSubscriptions struct {
	tier            string
	uploadsUsed     int
	recordedUploads int
}

func (f *fakeSubscriptions) limits() pricing.TierLimits {
	return pricing.LimitsFor(f.tier)
}

func (f *fakeSubscriptions) GetCurrent(ctx context.Context, userID string) (*TierStatus, error) {
	return &TierStatus{
		Subscription: &model.Subscription{UserID: userID, Tier: f.tier},
		Limits:       f.limits(),
		Usage:        &model.UsageWindow{UserID: userID, UploadsUsed: f.uploadsUsed},
	}, nil
}

func (f *fakeSubscriptions) CheckCanUpload(ctx context.Context, userID string, fileSizeMB float64) error {
	if f.uploadsUsed >= f.limits().UploadsPerPeriod {
		return &LimitError{Kind: LimitUploads, Message: "upload limit reached"}
	}
	if fileSizeMB > float64(f.limits().MaxFileMB) {
		return &LimitError{Kind: LimitFileSize, Message: "file too large"}
	}
	return nil
}

func (f *fakeSubscriptions) CheckDuration(ctx context.Context, userID string, durationMinutes float64) error {
	if durationMinutes > float64(f.limits().MaxDurationMinutes) {
		return &LimitError{Kind: LimitDuration, Message: "recording too long"}
	}
	return nil
}

func (f *fakeSubscriptions) RecordUpload(ctx context.Context, userID string, durationMinutes float64) error {
	f.recordedUploads++
	return nil
}

func (f *fakeSubscriptions) Activate(ctx context.Context, userID, tier string) (*model.Subscription, error) {
	f.tier = tier
	return &model.Subscription{UserID: userID, Tier: tier}, nil
}

func (f *fakeSubscriptions) RetentionDeadline(ctx context.Context, userID string) (*time.Time, error) {
	if f.limits().HistoryDays == 0 {
		return nil, nil
	}
	deadline := time.Now().AddDate(0, 0, f.limits().HistoryDays)
	return &deadline, nil
}

func (f *fakeSubscriptions) Tiers() []pricing.TierLimits { return pricing.AllTiers() }

type fakeRecordings struct {
	created []model.Recording
}

func (f *fakeRecordings) Create(ctx context.Context, rec *model.Recording, expiresAt *time.Time) error {
	rec.ExpiresAt = expiresAt
	f.created = append(f.created, *rec)
	return nil
}

func (f *fakeRecordings) Get(ctx context.Context, id, userID string) (*model.Recording, error) {
	return nil, errors.New("not found")
}

func (f *fakeRecordings) ListByUser(ctx context.Context, userID string, limit int) ([]model.Recording, error) {
	return nil, nil
}

func (f *fakeRecordings) ClearExpiry(ctx context.Context, userID string) error { return nil }

func (f *fakeRecordings) DeleteExpired(ctx context.Context) (int, error) { return 0, nil }

type pipelineFixture struct {
	svc           PipelineService
	converter     *fakeConverter
	transcriber   *fakeTranscriber
	summarizer    *fakeSummarizer
	cache         *fakeCache
	credits       *fakeCredits
	subscriptions *fakeSubscriptions
	recordings    *fakeRecordings
}

func newPipelineFixture() *pipelineFixture {
	f := &pipelineFixture{
		converter:     &fakeConverter{durationSeconds: 600}, // 10 minutes
		transcriber:   &fakeTranscriber{transcript: "we agreed to ship on friday"},
		summarizer:    &fakeSummarizer{summary: &model.Summary{ShortSummary: "Shipping agreed.", KeyPoints: []string{"ship friday"}, ActionItems: []string{}}},
		cache:         newFakeCache(),
		credits:       &fakeCredits{available: 5},
		subscriptions: &fakeSubscriptions{tier: pricing.TierBasic},
		recordings:    &fakeRecordings{},
	}
	f.svc = NewPipelineService(
		media.NewValidator(500),
		f.converter,
		f.transcriber,
		f.summarizer,
		f.cache,
		f.credits,
		f.subscriptions,
		f.recordings,
		zerolog.Nop(),
	)
	return f
}

func TestProcessFullRun(t *testing.T) {
	f := newPipelineFixture()

	result, err := f.svc.Process(context.Background(), "user-1", "meeting.mp4", "video/mp4", []byte("fake video bytes"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Status != RunCompleted {
		t.Errorf("expected completed run, got %s", result.Status)
	}
	if result.Summary == nil || result.Summary.ShortSummary != "Shipping agreed." {
		t.Errorf("unexpected summary: %+v", result.Summary)
	}
	if result.FromCache {
		t.Error("first run should not be served from cache")
	}
	if f.cache.puts != 1 {
		t.Errorf("transcript should be cached once, puts=%d", f.cache.puts)
	}
	if _, ok := f.cache.entries[result.Fingerprint]; ok {
		t.Error("cache entry must be deleted once the summary is delivered")
	}
	if len(f.credits.spends) != 1 {
		t.Errorf("exactly one spend expected, got %d", len(f.credits.spends))
	}
	if f.subscriptions.recordedUploads != 1 {
		t.Errorf("usage should be recorded once, got %d", f.subscriptions.recordedUploads)
	}
	if len(f.recordings.created) != 1 {
		t.Fatalf("recording should be persisted, got %d", len(f.recordings.created))
	}
	if f.recordings.created[0].ExpiresAt == nil {
		t.Error("basic tier recordings should carry a retention deadline")
	}
	if f.converter.cleanupCalls == 0 {
		t.Error("scratch audio should be cleaned up")
	}
}

func TestProcessIgnoresForeignCacheEntry(t *testing.T) {
	f := newPipelineFixture()
	content := []byte("fake video bytes")
	fp := cache.Fingerprint("meeting.mp4", int64(len(content)))
	f.cache.entries[fp] = cache.Entry{
		Fingerprint:     fp,
		Filename:        "meeting.mp4",
		DurationMinutes: 12,
		Transcript:      "someone else's transcript",
		ExpiresAt:       time.Now().Add(time.Hour),
	}

	result, err := f.svc.Process(context.Background(), "user-1", "meeting.mp4", "video/mp4", content)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// A colliding (filename, size) pair from another upload must never feed
	// this run; uploads always transcribe their own bytes.
	if result.FromCache {
		t.Error("a fresh upload must not report a cache source")
	}
	if result.Transcript == "someone else's transcript" {
		t.Error("upload must not be served a colliding cached transcript")
	}
	if f.converter.convertCalls != 1 || f.transcriber.calls != 1 {
		t.Errorf("upload must convert and transcribe its own bytes: convert=%d transcribe=%d",
			f.converter.convertCalls, f.transcriber.calls)
	}
}

func TestProcessCacheWriteFailureAborts(t *testing.T) {
	f := newPipelineFixture()
	f.cache.putErr = errors.New("redis down")

	_, err := f.svc.Process(context.Background(), "user-1", "meeting.mp3", "audio/mpeg", []byte("audio"))
	if err == nil {
		t.Fatal("a failed cache write must fail the run; a later partial result would advertise a dead fingerprint")
	}
	if f.summarizer.calls != 0 {
		t.Error("summarization must not run without a backing cache entry")
	}
	if len(f.credits.spends) != 0 {
		t.Error("no credits may be charged when the run is rejected")
	}
	if f.converter.cleanupCalls == 0 {
		t.Error("scratch audio must be cleaned up when the cache write fails")
	}
}

func TestProcessSummaryFailureIsPartialSuccess(t *testing.T) {
	f := newPipelineFixture()
	f.summarizer.err = &summarize.Error{Kind: summarize.FailureRateLimited, Message: "slow down"}

	result, err := f.svc.Process(context.Background(), "user-1", "meeting.mp3", "audio/mpeg", []byte("audio"))
	if err != nil {
		t.Fatalf("summary failure should not fail the run: %v", err)
	}

	if result.Status != RunSummaryFailed {
		t.Errorf("expected summary_failed status, got %s", result.Status)
	}
	if result.Transcript == "" {
		t.Error("transcript must be delivered on partial success")
	}
	if result.Fingerprint == "" {
		t.Error("fingerprint must be delivered for the retry")
	}
	if len(f.credits.spends) != 0 {
		t.Error("no credits may be charged when the summary failed")
	}
	if f.subscriptions.recordedUploads != 0 {
		t.Error("no usage may be recorded when the summary failed")
	}
	if _, ok := f.cache.entries[result.Fingerprint]; !ok {
		t.Error("cached transcript must be retained for the retry")
	}
}

func TestProcessRejectsInvalidUpload(t *testing.T) {
	f := newPipelineFixture()

	_, err := f.svc.Process(context.Background(), "user-1", "notes.pdf", "application/pdf", []byte("pdf"))
	var verr *media.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected a validation error, got %v", err)
	}
	if f.converter.convertCalls != 0 {
		t.Error("rejected uploads must not reach conversion")
	}
}

func TestProcessEnforcesUploadLimitBeforeWork(t *testing.T) {
	f := newPipelineFixture()
	f.subscriptions.uploadsUsed = f.subscriptions.limits().UploadsPerPeriod

	_, err := f.svc.Process(context.Background(), "user-1", "meeting.mp3", "audio/mpeg", []byte("audio"))
	var lerr *LimitError
	if !errors.As(err, &lerr) || lerr.Kind != LimitUploads {
		t.Fatalf("expected upload limit error, got %v", err)
	}
	if f.converter.convertCalls != 0 {
		t.Error("limit rejections must not reach conversion")
	}
}

func TestProcessGatesCreditsAfterProbe(t *testing.T) {
	f := newPipelineFixture()
	f.credits.available = 0

	_, err := f.svc.Process(context.Background(), "user-1", "meeting.mp3", "audio/mpeg", []byte("audio"))
	if !errors.Is(err, ErrInsufficientCredits) {
		t.Fatalf("expected insufficient credits, got %v", err)
	}
	if f.transcriber.calls != 0 {
		t.Error("transcription must not run when the user cannot pay")
	}
	if f.converter.cleanupCalls == 0 {
		t.Error("scratch audio must be cleaned up when the gate rejects")
	}
}

func TestProcessEnforcesDurationLimit(t *testing.T) {
	f := newPipelineFixture()
	f.subscriptions.tier = pricing.TierFree
	f.converter.durationSeconds = 30 * 60 // past the free tier's 20 minutes

	_, err := f.svc.Process(context.Background(), "user-1", "meeting.mp3", "audio/mpeg", []byte("audio"))
	var lerr *LimitError
	if !errors.As(err, &lerr) || lerr.Kind != LimitDuration {
		t.Fatalf("expected duration limit error, got %v", err)
	}
	if f.transcriber.calls != 0 {
		t.Error("transcription must not run past the duration limit")
	}
}

func TestRetrySummaryFromCache(t *testing.T) {
	f := newPipelineFixture()
	f.cache.entries["abcd1234abcd1234"] = cache.Entry{
		Fingerprint:     "abcd1234abcd1234",
		Filename:        "meeting.mp4",
		DurationMinutes: 15,
		Transcript:      "cached transcript",
		ExpiresAt:       time.Now().Add(time.Hour),
	}

	result, err := f.svc.RetrySummary(context.Background(), "user-1", "abcd1234abcd1234")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Status != RunCompleted {
		t.Errorf("expected completed run, got %s", result.Status)
	}
	if !result.FromCache {
		t.Error("retry must report the cache source")
	}
	if f.converter.convertCalls != 0 || f.transcriber.calls != 0 {
		t.Error("retry must only run the summarization stage")
	}
	if len(f.credits.spends) != 1 {
		t.Errorf("successful retry is billed, spends=%d", len(f.credits.spends))
	}
	if _, ok := f.cache.entries["abcd1234abcd1234"]; ok {
		t.Error("cache entry must be deleted after a successful retry")
	}

	// The entry is consumed; a second retry must miss rather than bill again.
	_, err = f.svc.RetrySummary(context.Background(), "user-1", "abcd1234abcd1234")
	if !errors.Is(err, ErrNoCachedTranscript) {
		t.Fatalf("second retry must fail with no cached transcript, got %v", err)
	}
	if len(f.credits.spends) != 1 {
		t.Errorf("same fingerprint must not be billed twice, spends=%v", f.credits.spends)
	}
}

func TestRetrySummaryFailureKeepsEntry(t *testing.T) {
	f := newPipelineFixture()
	f.summarizer.err = &summarize.Error{Kind: summarize.FailureRateLimited, Message: "slow down"}
	f.cache.entries["abcd1234abcd1234"] = cache.Entry{
		Fingerprint:     "abcd1234abcd1234",
		Filename:        "meeting.mp4",
		DurationMinutes: 15,
		Transcript:      "cached transcript",
		ExpiresAt:       time.Now().Add(time.Hour),
	}

	result, err := f.svc.RetrySummary(context.Background(), "user-1", "abcd1234abcd1234")
	if err != nil {
		t.Fatalf("summary failure should not fail the retry: %v", err)
	}
	if result.Status != RunSummaryFailed {
		t.Errorf("expected summary_failed status, got %s", result.Status)
	}
	if _, ok := f.cache.entries["abcd1234abcd1234"]; !ok {
		t.Error("failed retry must leave the entry for another attempt")
	}
	if len(f.credits.spends) != 0 {
		t.Error("failed retry must not be billed")
	}
}

func TestRetrySummaryMiss(t *testing.T) {
	f := newPipelineFixture()

	_, err := f.svc.RetrySummary(context.Background(), "user-1", "ffffffffffffffff")
	if !errors.Is(err, ErrNoCachedTranscript) {
		t.Fatalf("expected ErrNoCachedTranscript, got %v", err)
	}
}

func TestProcessBillingFailureStillDelivers(t *testing.T) {
	f := newPipelineFixture()
	f.credits.spendErr = errors.New("db down")

	result, err := f.svc.Process(context.Background(), "user-1", "meeting.mp3", "audio/mpeg", []byte("audio"))
	if err != nil {
		t.Fatalf("billing failure must not void a delivered summary: %v", err)
	}
	if result.Status != RunCompleted {
		t.Errorf("expected completed run, got %s", result.Status)
	}
	if result.Receipt != nil {
		t.Error("no receipt should be attached when the charge failed")
	}
	if !strings.Contains(result.Transcript, "ship") {
		t.Errorf("transcript should be delivered, got %q", result.Transcript)
	}
}
