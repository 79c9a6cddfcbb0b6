package service

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"app/internal/cache"
	"app/internal/repository"

	"github.com/rs/zerolog"
)

// Scratch files older than this are leftovers from crashed runs.
const staleScratchAge = 24 * time.Hour

// Sweeper periodically removes expired cache entries, recordings past their
// retention deadline, and abandoned scratch files.
type Sweeper struct {
	transcripts cache.TranscriptCache
	recordings  repository.RecordingRepository
	tempDir     string
	interval    time.Duration
	sweepLogger zerolog.Logger
}

// NewSweeper creates a new Sweeper.
func NewSweeper(transcripts cache.TranscriptCache, recordings repository.RecordingRepository, tempDir string, interval time.Duration, logger zerolog.Logger) *Sweeper {
	return &Sweeper{
		transcripts: transcripts,
		recordings:  recordings,
		tempDir:     tempDir,
		interval:    interval,
		sweepLogger: logger.With().Str("service", "Sweeper").Logger(),
	}
}

// Run sweeps on the configured interval until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce runs one pass of every sweep. Each sweep failure is logged and
// skipped; one broken dependency must not stop the others.
func (s *Sweeper) SweepOnce(ctx context.Context) {
	if removed, err := s.transcripts.Sweep(ctx); err != nil {
		s.sweepLogger.Error().Err(err).Msg("Transcript cache sweep failed")
	} else if removed > 0 {
		s.sweepLogger.Info().Int("removed", removed).Msg("Swept expired transcripts")
	}

	if removed, err := s.recordings.DeleteExpired(ctx); err != nil {
		s.sweepLogger.Error().Err(err).Msg("Recording retention sweep failed")
	} else if removed > 0 {
		s.sweepLogger.Info().Int("removed", removed).Msg("Deleted recordings past retention")
	}

	s.sweepScratch()
}

func (s *Sweeper) sweepScratch() {
	entries, err := os.ReadDir(s.tempDir)
	if err != nil {
		if !os.IsNotExist(err) {
			s.sweepLogger.Error().Err(err).Msg("Scratch dir sweep failed")
		}
		return
	}

	cutoff := time.Now().Add(-staleScratchAge)
	removed := 0
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil || info.IsDir() {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(s.tempDir, entry.Name())); err == nil {
				removed++
			}
		}
	}
	if removed > 0 {
		s.sweepLogger.Info().Int("removed", removed).Msg("Removed stale scratch files")
	}
}
