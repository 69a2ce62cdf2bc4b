package cohort

import (
	"context"

	"github.com/icumetrics/sofa/internal/sofa"
)

// Repository reads the standardized (silver) layer: stay metadata, the
// per-stay measurement feed, and the cohort-wide reference statistics.
// It satisfies the scoring engine's StaySource, MeasurementSource and
// ReferenceSource.
type Repository interface {
	ListStays(ctx context.Context) ([]*sofa.Stay, error)
	ListByStay(ctx context.Context, stayID int64) ([]sofa.Measurement, error)
	BuildReference(ctx context.Context, p sofa.Profile) (*sofa.PopulationReference, error)
}
