package service

import (
	"context"

	"app/internal/model"
	"app/internal/repository"
)

const recordingListLimit = 100

// RecordingQueryService reads back processed recordings.
type RecordingQueryService interface {
	List(ctx context.Context, userID string) ([]model.Recording, error)
	Get(ctx context.Context, id, userID string) (*model.Recording, error)
}

type recordingQueryService struct {
	repo repository.RecordingRepository
}

// NewRecordingQueryService creates a new RecordingQueryService.
func NewRecordingQueryService(repo repository.RecordingRepository) RecordingQueryService {
	return &recordingQueryService{repo: repo}
}

func (s *recordingQueryService) List(ctx context.Context, userID string) ([]model.Recording, error) {
	return s.repo.ListByUser(ctx, userID, recordingListLimit)
}

func (s *recordingQueryService) Get(ctx context.Context, id, userID string) (*model.Recording, error) {
	return s.repo.Get(ctx, id, userID)
}
