package sofa

import (
	"time"

	"github.com/google/uuid"
)

// ParameterKey identifies one standardized clinical parameter in the
// fixed SOFA vocabulary (e.g. "platelet_count"). The full set lives in
// the registry in params.go.
type ParameterKey string

const (
	ParamPaO2FiO2    ParameterKey = "pao2_fio2_ratio"
	ParamSpO2FiO2    ParameterKey = "spo2_fio2_ratio"
	ParamVentilation ParameterKey = "mechanical_ventilation"
	ParamMAP         ParameterKey = "mean_arterial_pressure"
	ParamDopamine    ParameterKey = "dopamine_dose"
	ParamEpinephrine ParameterKey = "epinephrine_dose"
	ParamNorepi      ParameterKey = "norepinephrine_dose"
	ParamDobutamine  ParameterKey = "dobutamine_dose"
	ParamPlatelets   ParameterKey = "platelet_count"
	ParamBilirubin   ParameterKey = "bilirubin_total"
	ParamGCS         ParameterKey = "gcs_total"
	ParamCreatinine  ParameterKey = "creatinine"
	ParamUrineOutput ParameterKey = "urine_output"
)

// OrganSystem is one of the six SOFA organ systems.
type OrganSystem string

const (
	OrganRespiratory    OrganSystem = "respiratory"
	OrganCardiovascular OrganSystem = "cardiovascular"
	OrganCoagulation    OrganSystem = "coagulation"
	OrganHepatic        OrganSystem = "hepatic"
	OrganRenal          OrganSystem = "renal"
	OrganNeurological   OrganSystem = "neurological"
)

// OrganSystems lists the six systems in canonical (reporting) order.
var OrganSystems = []OrganSystem{
	OrganRespiratory,
	OrganCardiovascular,
	OrganCoagulation,
	OrganHepatic,
	OrganRenal,
	OrganNeurological,
}

// Measurement is one standardized, unit-normalized observation as
// delivered by the upstream standardization collaborator. The engine
// trusts the unit and never converts.
type Measurement struct {
	StayID    int64        `db:"stay_id" json:"stay_id"`
	Parameter ParameterKey `db:"parameter_key" json:"parameter_key"`
	ChartTime time.Time    `db:"chart_time" json:"chart_time"`
	Value     float64      `db:"value" json:"value"`
	Unit      string       `db:"unit" json:"unit"`
}

// Stay anchors window numbering for one ICU stay. AdmissionTime may be
// nil when the source record is unusable; such stays are rejected with
// a MissingAnchorError.
type Stay struct {
	StayID        int64      `db:"stay_id" json:"stay_id"`
	PatientID     int64      `db:"patient_id" json:"patient_id"`
	AdmissionTime *time.Time `db:"admission_time" json:"admission_time"`
	DiseaseType   string     `db:"disease_type" json:"disease_type"`
}

// Window is a single assessment window. Index is 1-based; windows for
// one stay are contiguous, non-overlapping, and never mutated after
// generation.
type Window struct {
	StayID int64     `json:"stay_id"`
	Index  int       `json:"window_index"`
	Start  time.Time `json:"start_time"`
	End    time.Time `json:"end_time"`
}

// Contains reports whether t falls inside the half-open interval
// [Start, End).
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// ValueSource tags how an AggregatedValue was obtained.
type ValueSource string

const (
	SourceObserved   ValueSource = "observed"
	SourceSurrogate  ValueSource = "imputed_surrogate"
	SourceLOCF       ValueSource = "imputed_locf"
	SourcePopulation ValueSource = "imputed_population"
	SourceMissing    ValueSource = "missing"
)

// Imputed reports whether the value came from any imputation tier.
func (s ValueSource) Imputed() bool {
	return s == SourceSurrogate || s == SourceLOCF || s == SourcePopulation
}

// AggregatedValue is the single representative value for one parameter
// in one window. When Source is SourceMissing, Value is meaningless
// and the parameter contributes no score.
type AggregatedValue struct {
	StayID      int64        `json:"stay_id"`
	WindowIndex int          `json:"window_index"`
	Parameter   ParameterKey `json:"parameter_key"`
	Value       float64      `json:"value"`
	Source      ValueSource  `json:"source"`
}

// Missing reports whether the parameter could not be resolved.
func (v AggregatedValue) Missing() bool { return v.Source == SourceMissing }

// OrganSubscore is the scored result for one organ system in one
// window. DataAvailable is false when every input parameter was
// missing; the subscore is then the policy default of 0.
type OrganSubscore struct {
	StayID        int64       `json:"stay_id"`
	WindowIndex   int         `json:"window_index"`
	Organ         OrganSystem `json:"organ_system"`
	Score         int         `json:"subscore"`
	DataAvailable bool        `json:"data_available"`
}

// SeverityCategory is the fixed banding of the total score.
type SeverityCategory string

const (
	SeverityNone     SeverityCategory = "none"
	SeverityMild     SeverityCategory = "mild"
	SeverityModerate SeverityCategory = "moderate"
	SeveritySevere   SeverityCategory = "severe"
	SeverityCritical SeverityCategory = "critical"
)

// ScoredWindow is the terminal output record for one (stay, window)
// pair. Immutable once emitted.
type ScoredWindow struct {
	StayID       int64            `db:"stay_id" json:"stay_id"`
	PatientID    int64            `db:"patient_id" json:"patient_id"`
	WindowIndex  int              `db:"window_index" json:"window_index"`
	WindowStart  time.Time        `db:"window_start" json:"window_start"`
	WindowEnd    time.Time        `db:"window_end" json:"window_end"`
	Subscores    [6]OrganSubscore `json:"subscores"`
	TotalScore   int              `db:"total_score" json:"total_score"`
	Severity     SeverityCategory `db:"severity_category" json:"severity_category"`
	Completeness float64          `db:"completeness_score" json:"completeness_score"`
	DiseaseType  string           `db:"disease_type" json:"disease_type"`
	ConfigID     string           `db:"config_id" json:"config_id"`
}

// Subscore returns the subscore entry for the given organ system.
func (s *ScoredWindow) Subscore(organ OrganSystem) OrganSubscore {
	for _, sub := range s.Subscores {
		if sub.Organ == organ {
			return sub
		}
	}
	return OrganSubscore{Organ: organ}
}

// AggregationRule selects the representative value among the
// observations of one parameter within one window.
type AggregationRule string

const (
	AggMin AggregationRule = "min"
	AggMax AggregationRule = "max"
	AggSum AggregationRule = "sum"
	// AggMedian replaces min/max under the alternate comparison
	// profile; sum parameters keep summing.
	AggMedian AggregationRule = "median"
)

// PopulationStat selects the cohort statistic used for tier-3
// imputation.
type PopulationStat string

const (
	PopMedian PopulationStat = "median"
	PopMean   PopulationStat = "mean"
)

// Profile carries one engine configuration so the pipeline can be run
// twice with different aggregation/imputation policies and the two
// output streams compared downstream.
type Profile struct {
	ConfigID       string         `json:"config_id"`
	WindowDuration time.Duration  `json:"window_duration"`
	MaxWindows     int            `json:"max_windows"`
	LOCFMaxLook    time.Duration  `json:"locf_max_lookback"`
	PopMinSample   int            `json:"population_min_sample_size"`
	PopStat        PopulationStat `json:"population_stat"`
	// MedianAggregation swaps the extremal (min/max) rules for the
	// window median. Sum parameters are unaffected.
	MedianAggregation bool `json:"median_aggregation"`
	// MaxMissingOrgans skips a window when more organ systems than
	// this lack any data. 6 disables the gate.
	MaxMissingOrgans int `json:"max_missing_organs"`
}

// DefaultProfile returns the primary (worst-value) configuration.
func DefaultProfile() Profile {
	return Profile{
		ConfigID:         "config1",
		WindowDuration:   24 * time.Hour,
		MaxWindows:       30,
		LOCFMaxLook:      48 * time.Hour,
		PopMinSample:     10,
		PopStat:          PopMedian,
		MaxMissingOrgans: 5,
	}
}

// MedianProfile returns the alternate comparison configuration:
// median-of-window aggregation with population-mean imputation.
func MedianProfile() Profile {
	p := DefaultProfile()
	p.ConfigID = "config2"
	p.MedianAggregation = true
	p.PopStat = PopMean
	return p
}

// TierCounts tallies how parameter gaps were resolved across a run.
type TierCounts struct {
	Observed   int64 `json:"observed"`
	Surrogate  int64 `json:"imputed_surrogate"`
	LOCF       int64 `json:"imputed_locf"`
	Population int64 `json:"imputed_population"`
	Missing    int64 `json:"missing"`
}

func (t *TierCounts) add(s ValueSource) {
	switch s {
	case SourceObserved:
		t.Observed++
	case SourceSurrogate:
		t.Surrogate++
	case SourceLOCF:
		t.LOCF++
	case SourcePopulation:
		t.Population++
	case SourceMissing:
		t.Missing++
	}
}

// RunSummary is the run-level accounting surfaced after every batch so
// silent data loss cannot occur.
type RunSummary struct {
	RunID           uuid.UUID          `json:"run_id"`
	ConfigID        string             `json:"config_id"`
	StartedAt       time.Time          `json:"started_at"`
	FinishedAt      time.Time          `json:"finished_at"`
	StaysTotal      int                `json:"stays_total"`
	StaysScored     int                `json:"stays_scored"`
	StaysSkipped    int                `json:"stays_skipped"`
	StaysEmpty      int                `json:"stays_empty"`
	WindowsScored   int64              `json:"windows_scored"`
	WindowsGated    int64              `json:"windows_gated"`
	OutOfRange      int64              `json:"out_of_range_values"`
	Tiers           TierCounts         `json:"imputation_tiers"`
	StayErrors      map[int64]string   `json:"stay_errors,omitempty"`
	QualityNotes    []string           `json:"quality_notes,omitempty"`
	PopulationSizes map[ParameterKey]int `json:"population_sizes,omitempty"`
}
