package results

import (
	"context"

	"github.com/google/uuid"

	"github.com/icumetrics/sofa/internal/sofa"
)

// Repository persists scored windows to the gold layer and run records
// alongside them. SaveWindows satisfies the engine's ResultSink and is
// called concurrently by per-stay workers.
type Repository interface {
	SaveWindows(ctx context.Context, windows []sofa.ScoredWindow) error
	SaveRun(ctx context.Context, run *RunRecord) error

	ListByStay(ctx context.Context, stayID int64, configID string, limit, offset int) ([]sofa.ScoredWindow, int, error)
	ListRuns(ctx context.Context, limit, offset int) ([]*RunRecord, int, error)
	GetRun(ctx context.Context, runID uuid.UUID) (*RunRecord, error)
}
