package results

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/icumetrics/sofa/internal/sofa"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const scoreCols = `stay_id, patient_id, config_id, window_index, window_start, window_end,
	respiratory_score, respiratory_available,
	cardiovascular_score, cardiovascular_available,
	coagulation_score, coagulation_available,
	hepatic_score, hepatic_available,
	renal_score, renal_available,
	neurological_score, neurological_available,
	total_score, severity, completeness, disease_type`

// SaveWindows upserts one stay's scored windows in a single batch. The
// key (stay_id, window_index, config_id) makes reruns overwrite their
// previous output instead of duplicating it.
func (r *repoPG) SaveWindows(ctx context.Context, windows []sofa.ScoredWindow) error {
	if len(windows) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, w := range windows {
		args := []interface{}{
			w.StayID, w.PatientID, w.ConfigID, w.WindowIndex, w.WindowStart, w.WindowEnd,
		}
		for _, organ := range sofa.OrganSystems {
			sub := w.Subscore(organ)
			args = append(args, sub.Score, sub.DataAvailable)
		}
		args = append(args, w.TotalScore, w.Severity, w.Completeness, w.DiseaseType)

		batch.Queue(`
			INSERT INTO gold.sofa_scores (`+scoreCols+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22)
			ON CONFLICT (stay_id, window_index, config_id) DO UPDATE SET
				patient_id=EXCLUDED.patient_id,
				window_start=EXCLUDED.window_start, window_end=EXCLUDED.window_end,
				respiratory_score=EXCLUDED.respiratory_score, respiratory_available=EXCLUDED.respiratory_available,
				cardiovascular_score=EXCLUDED.cardiovascular_score, cardiovascular_available=EXCLUDED.cardiovascular_available,
				coagulation_score=EXCLUDED.coagulation_score, coagulation_available=EXCLUDED.coagulation_available,
				hepatic_score=EXCLUDED.hepatic_score, hepatic_available=EXCLUDED.hepatic_available,
				renal_score=EXCLUDED.renal_score, renal_available=EXCLUDED.renal_available,
				neurological_score=EXCLUDED.neurological_score, neurological_available=EXCLUDED.neurological_available,
				total_score=EXCLUDED.total_score, severity=EXCLUDED.severity,
				completeness=EXCLUDED.completeness, disease_type=EXCLUDED.disease_type,
				created_at=NOW()`,
			args...)
	}

	return r.pool.SendBatch(ctx, batch).Close()
}

func (r *repoPG) ListByStay(ctx context.Context, stayID int64, configID string, limit, offset int) ([]sofa.ScoredWindow, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM gold.sofa_scores WHERE stay_id = $1 AND config_id = $2`,
		stayID, configID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+scoreCols+` FROM gold.sofa_scores
		 WHERE stay_id = $1 AND config_id = $2
		 ORDER BY window_index LIMIT $3 OFFSET $4`,
		stayID, configID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []sofa.ScoredWindow
	for rows.Next() {
		w, err := scanScore(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, w)
	}
	return out, total, rows.Err()
}

func scanScore(row pgx.Row) (sofa.ScoredWindow, error) {
	var w sofa.ScoredWindow
	dest := []interface{}{
		&w.StayID, &w.PatientID, &w.ConfigID, &w.WindowIndex, &w.WindowStart, &w.WindowEnd,
	}
	for i := range w.Subscores {
		dest = append(dest, &w.Subscores[i].Score, &w.Subscores[i].DataAvailable)
	}
	dest = append(dest, &w.TotalScore, &w.Severity, &w.Completeness, &w.DiseaseType)

	if err := row.Scan(dest...); err != nil {
		return sofa.ScoredWindow{}, err
	}
	for i, organ := range sofa.OrganSystems {
		w.Subscores[i].Organ = organ
		w.Subscores[i].StayID = w.StayID
		w.Subscores[i].WindowIndex = w.WindowIndex
	}
	return w, nil
}

func (r *repoPG) SaveRun(ctx context.Context, run *RunRecord) error {
	stayErrors, err := json.Marshal(run.StayErrors)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO gold.sofa_runs (
			run_id, config_id, started_at, finished_at,
			stays_total, stays_scored, stays_skipped, stays_empty,
			windows_scored, windows_gated, out_of_range,
			tier_observed, tier_surrogate, tier_locf, tier_population, tier_missing,
			stay_errors, quality_notes
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`,
		run.RunID, run.ConfigID, run.StartedAt, run.FinishedAt,
		run.StaysTotal, run.StaysScored, run.StaysSkipped, run.StaysEmpty,
		run.WindowsScored, run.WindowsGated, run.OutOfRange,
		run.Tiers.Observed, run.Tiers.Surrogate, run.Tiers.LOCF, run.Tiers.Population, run.Tiers.Missing,
		stayErrors, run.QualityNotes,
	)
	return err
}

const runCols = `run_id, config_id, started_at, finished_at,
	stays_total, stays_scored, stays_skipped, stays_empty,
	windows_scored, windows_gated, out_of_range,
	tier_observed, tier_surrogate, tier_locf, tier_population, tier_missing,
	stay_errors, quality_notes`

func (r *repoPG) ListRuns(ctx context.Context, limit, offset int) ([]*RunRecord, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM gold.sofa_runs`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+runCols+` FROM gold.sofa_runs ORDER BY started_at DESC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var runs []*RunRecord
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, 0, err
		}
		runs = append(runs, run)
	}
	return runs, total, rows.Err()
}

func (r *repoPG) GetRun(ctx context.Context, runID uuid.UUID) (*RunRecord, error) {
	return scanRun(r.pool.QueryRow(ctx, `SELECT `+runCols+` FROM gold.sofa_runs WHERE run_id = $1`, runID))
}

func scanRun(row pgx.Row) (*RunRecord, error) {
	var (
		run        RunRecord
		stayErrors []byte
	)
	err := row.Scan(
		&run.RunID, &run.ConfigID, &run.StartedAt, &run.FinishedAt,
		&run.StaysTotal, &run.StaysScored, &run.StaysSkipped, &run.StaysEmpty,
		&run.WindowsScored, &run.WindowsGated, &run.OutOfRange,
		&run.Tiers.Observed, &run.Tiers.Surrogate, &run.Tiers.LOCF, &run.Tiers.Population, &run.Tiers.Missing,
		&stayErrors, &run.QualityNotes,
	)
	if err != nil {
		return nil, err
	}
	if len(stayErrors) > 0 {
		if err := json.Unmarshal(stayErrors, &run.StayErrors); err != nil {
			return nil, err
		}
	}
	return &run, nil
}
