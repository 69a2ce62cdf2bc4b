package sofa

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// StaySource provides the stay metadata the engine scores.
type StaySource interface {
	ListStays(ctx context.Context) ([]*Stay, error)
}

// MeasurementSource provides the standardized measurement feed, one
// stay at a time.
type MeasurementSource interface {
	ListByStay(ctx context.Context, stayID int64) ([]Measurement, error)
}

// ReferenceSource builds the cohort-wide population reference table.
// The engine invokes it exactly once per run, before any scoring.
type ReferenceSource interface {
	BuildReference(ctx context.Context, p Profile) (*PopulationReference, error)
}

// ResultSink receives scored windows. Implementations must tolerate
// concurrent calls from per-stay workers.
type ResultSink interface {
	SaveWindows(ctx context.Context, windows []ScoredWindow) error
}

// Engine runs the SOFA pipeline for one profile: windowing,
// aggregation, imputation, organ scoring, composition. Stays are
// independent of each other, so they are fanned out across workers;
// the only synchronization points are the up-front population
// reference build and the shared run summary.
type Engine struct {
	stays        StaySource
	measurements MeasurementSource
	reference    ReferenceSource
	sink         ResultSink
	profile      Profile
	workers      int
	logger       zerolog.Logger
}

// NewEngine wires an engine. workers < 1 falls back to serial
// execution.
func NewEngine(stays StaySource, measurements MeasurementSource, reference ReferenceSource, sink ResultSink, p Profile, workers int, logger zerolog.Logger) *Engine {
	if workers < 1 {
		workers = 1
	}
	return &Engine{
		stays:        stays,
		measurements: measurements,
		reference:    reference,
		sink:         sink,
		profile:      p,
		workers:      workers,
		logger:       logger.With().Str("config_id", p.ConfigID).Logger(),
	}
}

// stayStats is the per-stay accounting merged into the run summary.
type stayStats struct {
	windowsScored int64
	windowsGated  int64
	outOfRange    int64
	tiers         TierCounts
	notes         []string
}

// Run scores the whole cohort and returns the run summary. Per-stay
// failures never abort the batch: they are collected and surfaced.
func (e *Engine) Run(ctx context.Context) (*RunSummary, error) {
	summary := &RunSummary{
		RunID:      uuid.New(),
		ConfigID:   e.profile.ConfigID,
		StartedAt:  time.Now().UTC(),
		StayErrors: make(map[int64]string),
	}

	stays, err := e.stays.ListStays(ctx)
	if err != nil {
		return nil, fmt.Errorf("list stays: %w", err)
	}
	summary.StaysTotal = len(stays)
	e.logger.Info().Int("stays", len(stays)).Msg("starting scoring run")

	// Tier-3 imputation depends on the full-cohort reference, so its
	// construction is a barrier before any stay is scored.
	popRef, err := e.reference.BuildReference(ctx, e.profile)
	if err != nil {
		return nil, fmt.Errorf("build population reference: %w", err)
	}
	summary.PopulationSizes = popRef.SampleSizes()
	imputer := NewImputer(e.profile, popRef)

	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		jobs = make(chan *Stay)
	)

	for i := 0; i < e.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for stay := range jobs {
				windows, stats, err := e.scoreStay(ctx, stay, imputer)
				mu.Lock()
				e.mergeStay(summary, stay, windows, stats, err)
				mu.Unlock()
				if err == nil && len(windows) > 0 && e.sink != nil {
					if sinkErr := e.sink.SaveWindows(ctx, windows); sinkErr != nil {
						mu.Lock()
						summary.StayErrors[stay.StayID] = fmt.Sprintf("save results: %v", sinkErr)
						mu.Unlock()
					}
				}
			}
		}()
	}

	for _, stay := range stays {
		jobs <- stay
	}
	close(jobs)
	wg.Wait()

	summary.FinishedAt = time.Now().UTC()
	e.logSummary(summary)
	return summary, nil
}

func (e *Engine) mergeStay(summary *RunSummary, stay *Stay, windows []ScoredWindow, stats stayStats, err error) {
	switch {
	case err != nil:
		summary.StaysSkipped++
		summary.StayErrors[stay.StayID] = err.Error()
	case len(windows) == 0 && stats.windowsScored == 0 && stats.windowsGated == 0:
		summary.StaysEmpty++
	default:
		summary.StaysScored++
	}
	summary.WindowsScored += stats.windowsScored
	summary.WindowsGated += stats.windowsGated
	summary.OutOfRange += stats.outOfRange
	summary.Tiers.Observed += stats.tiers.Observed
	summary.Tiers.Surrogate += stats.tiers.Surrogate
	summary.Tiers.LOCF += stats.tiers.LOCF
	summary.Tiers.Population += stats.tiers.Population
	summary.Tiers.Missing += stats.tiers.Missing
	summary.QualityNotes = append(summary.QualityNotes, stats.notes...)
}

// scoreStay runs the full per-stay pipeline. Windows are walked in
// index order, but nothing here depends on it: imputation reads
// observed values only, so window results are order independent.
func (e *Engine) scoreStay(ctx context.Context, stay *Stay, imputer *Imputer) ([]ScoredWindow, stayStats, error) {
	var stats stayStats

	measurements, err := e.measurements.ListByStay(ctx, stay.StayID)
	if err != nil {
		return nil, stats, fmt.Errorf("load measurements for stay %d: %w", stay.StayID, err)
	}

	times := make([]time.Time, len(measurements))
	for i, m := range measurements {
		times[i] = m.ChartTime
	}

	windows, err := GenerateWindows(stay, times, e.profile)
	if err != nil {
		return nil, stats, err
	}
	if len(windows) == 0 {
		e.logger.Debug().Int64("stay_id", stay.StayID).Msg("stay has no measurements, nothing to score")
		return nil, stats, nil
	}

	sc := &StayContext{
		Stay:     stay,
		Windows:  windows,
		Observed: make([]map[ParameterKey]AggregatedValue, len(windows)),
	}
	for i, w := range windows {
		observed := AggregateWindow(w, measurements, e.profile)
		for key, av := range observed {
			spec, _ := ParameterSpecFor(key)
			if !inSanityEnvelope(spec, av.Value) {
				stats.outOfRange++
				stats.notes = append(stats.notes, fmt.Sprintf(
					"stay %d window %d: %s=%g outside plausible range [%g, %g], treated as missing",
					stay.StayID, w.Index, key, av.Value, spec.SanityMin, spec.SanityMax))
				delete(observed, key)
			}
		}
		sc.Observed[i] = observed
	}

	var scored []ScoredWindow
	for i, w := range windows {
		resolved := e.resolveWindow(sc, i, w, imputer, &stats)

		var subscores [6]OrganSubscore
		missingOrgans := 0
		for j, organ := range OrganSystems {
			subscores[j] = ScoreOrgan(organ, w, e.organInputs(organ, resolved))
			if !subscores[j].DataAvailable {
				missingOrgans++
			}
		}

		if missingOrgans > e.profile.MaxMissingOrgans {
			stats.windowsGated++
			continue
		}

		scored = append(scored, ComposeWindow(stay, w, subscores, e.profile.ConfigID))
		stats.windowsScored++
	}

	return scored, stats, nil
}

// resolveWindow produces the full resolved parameter map for one
// window: observed aggregates plus imputed values for the gaps.
// Contextual and surrogate-only parameters are never imputed; they
// appear only when observed.
func (e *Engine) resolveWindow(sc *StayContext, pos int, w Window, imputer *Imputer, stats *stayStats) organValues {
	resolved := make(organValues)

	for key, av := range sc.Observed[pos] {
		resolved[key] = av
		stats.tiers.add(SourceObserved)
	}

	for _, key := range Parameters() {
		if _, ok := resolved[key]; ok {
			continue
		}
		spec, _ := ParameterSpecFor(key)
		if spec.Contextual || spec.SurrogateOnly {
			continue
		}
		av := imputer.Resolve(sc, w, key)
		stats.tiers.add(av.Source)
		if !av.Missing() {
			resolved[key] = av
		}
	}

	return resolved
}

// organInputs projects the resolved map down to the parameters one
// organ table consumes.
func (e *Engine) organInputs(organ OrganSystem, resolved organValues) organValues {
	inputs := make(organValues)
	for _, key := range ParametersForOrgan(organ) {
		if av, ok := resolved[key]; ok {
			inputs[key] = av
		}
	}
	return inputs
}

func (e *Engine) logSummary(s *RunSummary) {
	e.logger.Info().
		Str("run_id", s.RunID.String()).
		Int("stays_total", s.StaysTotal).
		Int("stays_scored", s.StaysScored).
		Int("stays_skipped", s.StaysSkipped).
		Int("stays_empty", s.StaysEmpty).
		Int64("windows_scored", s.WindowsScored).
		Int64("windows_gated", s.WindowsGated).
		Int64("out_of_range_values", s.OutOfRange).
		Int64("resolved_observed", s.Tiers.Observed).
		Int64("resolved_surrogate", s.Tiers.Surrogate).
		Int64("resolved_locf", s.Tiers.LOCF).
		Int64("resolved_population", s.Tiers.Population).
		Int64("unresolved_missing", s.Tiers.Missing).
		Dur("duration", s.FinishedAt.Sub(s.StartedAt)).
		Msg("scoring run complete")
}

// CollectorSink accumulates scored windows in memory. Used by tests
// and dry runs.
type CollectorSink struct {
	mu      sync.Mutex
	Windows []ScoredWindow
}

func (c *CollectorSink) SaveWindows(_ context.Context, windows []ScoredWindow) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Windows = append(c.Windows, windows...)
	return nil
}

// InMemoryReference adapts a measurement slice into a ReferenceSource
// for tests and for sources that cannot push the statistic into SQL.
type InMemoryReference struct {
	Measurements []Measurement
}

func (r *InMemoryReference) BuildReference(_ context.Context, p Profile) (*PopulationReference, error) {
	return BuildPopulationReference(r.Measurements, p), nil
}
