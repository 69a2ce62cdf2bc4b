package results

import (
	"context"

	"github.com/google/uuid"

	"github.com/icumetrics/sofa/internal/sofa"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// SaveRun persists the flattened bookkeeping for a finished run.
func (s *Service) SaveRun(ctx context.Context, summary *sofa.RunSummary) error {
	return s.repo.SaveRun(ctx, NewRunRecord(summary))
}

func (s *Service) ScoresByStay(ctx context.Context, stayID int64, configID string, limit, offset int) ([]sofa.ScoredWindow, int, error) {
	if configID == "" {
		configID = sofa.DefaultProfile().ConfigID
	}
	return s.repo.ListByStay(ctx, stayID, configID, limit, offset)
}

func (s *Service) ListRuns(ctx context.Context, limit, offset int) ([]*RunRecord, int, error) {
	return s.repo.ListRuns(ctx, limit, offset)
}

func (s *Service) GetRun(ctx context.Context, runID uuid.UUID) (*RunRecord, error) {
	return s.repo.GetRun(ctx, runID)
}
