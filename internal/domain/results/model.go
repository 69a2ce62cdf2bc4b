package results

import (
	"time"

	"github.com/google/uuid"

	"github.com/icumetrics/sofa/internal/sofa"
)

// RunRecord is the persisted bookkeeping for one scoring run: which
// profile ran, when, and the outcome counters. Quality notes and
// per-stay errors are stored alongside so a run can be audited without
// the original logs.
type RunRecord struct {
	RunID         uuid.UUID        `json:"run_id"`
	ConfigID      string           `json:"config_id"`
	StartedAt     time.Time        `json:"started_at"`
	FinishedAt    time.Time        `json:"finished_at"`
	StaysTotal    int              `json:"stays_total"`
	StaysScored   int              `json:"stays_scored"`
	StaysSkipped  int              `json:"stays_skipped"`
	StaysEmpty    int              `json:"stays_empty"`
	WindowsScored int64            `json:"windows_scored"`
	WindowsGated  int64            `json:"windows_gated"`
	OutOfRange    int64            `json:"out_of_range_values"`
	Tiers         sofa.TierCounts  `json:"imputation_tiers"`
	StayErrors    map[int64]string `json:"stay_errors,omitempty"`
	QualityNotes  []string         `json:"quality_notes,omitempty"`
}

// NewRunRecord flattens a run summary into its persisted form.
func NewRunRecord(s *sofa.RunSummary) *RunRecord {
	return &RunRecord{
		RunID:         s.RunID,
		ConfigID:      s.ConfigID,
		StartedAt:     s.StartedAt,
		FinishedAt:    s.FinishedAt,
		StaysTotal:    s.StaysTotal,
		StaysScored:   s.StaysScored,
		StaysSkipped:  s.StaysSkipped,
		StaysEmpty:    s.StaysEmpty,
		WindowsScored: s.WindowsScored,
		WindowsGated:  s.WindowsGated,
		OutOfRange:    s.OutOfRange,
		Tiers:         s.Tiers,
		StayErrors:    s.StayErrors,
		QualityNotes:  s.QualityNotes,
	}
}
