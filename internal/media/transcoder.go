package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"app/pkg/executor"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Output audio settings tuned for speech-to-text.
const (
	audioSampleRate = 16000
	audioChannels   = 1
)

// ErrToolMissing indicates ffmpeg/ffprobe is not installed on the host.
var ErrToolMissing = errors.New("ffmpeg is not installed")

// NormalizedAudio is the transcoder's output: a mono 16kHz mp3 scratch file.
type NormalizedAudio struct {
	Path            string
	DurationSeconds float64
}

// Transcoder normalizes uploads into transcription-ready audio using ffmpeg.
// All scratch files live under tempDir and are removed by Cleanup.
type Transcoder struct {
	exec           executor.Executor
	tempDir        string
	convertTimeout time.Duration
	probeTimeout   time.Duration
	logger         zerolog.Logger
}

// NewTranscoder creates a Transcoder writing scratch files to tempDir.
func NewTranscoder(exec executor.Executor, tempDir string, convertTimeout, probeTimeout time.Duration, logger zerolog.Logger) *Transcoder {
	return &Transcoder{
		exec:           exec,
		tempDir:        tempDir,
		convertTimeout: convertTimeout,
		probeTimeout:   probeTimeout,
		logger:         logger.With().Str("service", "Transcoder").Logger(),
	}
}

// CheckInstalled reports whether the external conversion tools are available.
func (t *Transcoder) CheckInstalled() bool {
	return t.exec.LookPath("ffmpeg") == nil && t.exec.LookPath("ffprobe") == nil
}

// Convert writes content to a scratch file, extracts the audio track if the
// input is video, normalizes it, and probes the duration. The returned
// scratch file must be released with Cleanup; every intermediate file is
// removed before returning, on success and on failure alike.
func (t *Transcoder) Convert(ctx context.Context, content []byte, extension string, isVideo bool) (*NormalizedAudio, error) {
	if !t.CheckInstalled() {
		return nil, ErrToolMissing
	}

	if err := os.MkdirAll(t.tempDir, 0o755); err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}

	inputPath := filepath.Join(t.tempDir, uuid.NewString()+extension)
	if err := os.WriteFile(inputPath, content, 0o600); err != nil {
		return nil, fmt.Errorf("write scratch file: %w", err)
	}

	audioPath := inputPath
	if isVideo {
		extracted, err := t.extractAudio(ctx, inputPath)
		t.Cleanup(inputPath)
		if err != nil {
			return nil, err
		}
		audioPath = extracted
	}

	normalized, err := t.normalize(ctx, audioPath)
	t.Cleanup(audioPath)
	if err != nil {
		return nil, err
	}

	duration, err := t.probeDuration(ctx, normalized)
	if err != nil {
		t.Cleanup(normalized)
		return nil, err
	}

	return &NormalizedAudio{Path: normalized, DurationSeconds: duration}, nil
}

// Cleanup removes a scratch file, logging on failure.
func (t *Transcoder) Cleanup(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		t.logger.Warn().Err(err).Str("path", path).Msg("Failed to remove scratch file")
	}
}

// extractAudio strips the video track, producing a temp mp3.
func (t *Transcoder) extractAudio(ctx context.Context, videoPath string) (string, error) {
	outputPath := strings.TrimSuffix(videoPath, filepath.Ext(videoPath)) + ".extracted.mp3"

	ctx, cancel := context.WithTimeout(ctx, t.convertTimeout)
	defer cancel()

	args := []string{
		"-i", videoPath,
		"-vn", // no video
		"-acodec", "libmp3lame",
		"-ar", strconv.Itoa(audioSampleRate),
		"-ac", strconv.Itoa(audioChannels),
		"-y",
		outputPath,
	}
	if _, err := t.exec.Execute(ctx, "ffmpeg", args...); err != nil {
		t.Cleanup(outputPath)
		return "", fmt.Errorf("ffmpeg extract audio: %w", err)
	}
	return outputPath, nil
}

// normalize re-encodes any audio input to mono 16kHz mp3.
func (t *Transcoder) normalize(ctx context.Context, audioPath string) (string, error) {
	outputPath := strings.TrimSuffix(audioPath, filepath.Ext(audioPath)) + ".normalized.mp3"

	ctx, cancel := context.WithTimeout(ctx, t.convertTimeout)
	defer cancel()

	args := []string{
		"-i", audioPath,
		"-acodec", "libmp3lame",
		"-ar", strconv.Itoa(audioSampleRate),
		"-ac", strconv.Itoa(audioChannels),
		"-y",
		outputPath,
	}
	if _, err := t.exec.Execute(ctx, "ffmpeg", args...); err != nil {
		t.Cleanup(outputPath)
		return "", fmt.Errorf("ffmpeg normalize: %w", err)
	}
	return outputPath, nil
}

// probeDuration returns the audio length in seconds via ffprobe.
func (t *Transcoder) probeDuration(ctx context.Context, audioPath string) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, t.probeTimeout)
	defer cancel()

	out, err := t.exec.Execute(ctx, "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		audioPath,
	)
	if err != nil {
		return 0, fmt.Errorf("ffprobe duration: %w", err)
	}
	duration, err := strconv.ParseFloat(strings.TrimSpace(out), 64)
	if err != nil {
		return 0, fmt.Errorf("parse ffprobe output %q: %w", strings.TrimSpace(out), err)
	}
	return duration, nil
}
