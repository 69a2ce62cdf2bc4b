package cohort

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/icumetrics/sofa/internal/sofa"
)

type repoPG struct {
	pool   *pgxpool.Pool
	filter Filter
}

func NewRepo(pool *pgxpool.Pool, filter Filter) Repository {
	return &repoPG{pool: pool, filter: filter}
}

// ListStays returns the filtered cohort with the disease tag resolved
// from the diagnosis table. Stays missing either boundary timestamp
// are kept so the engine can report them individually.
func (r *repoPG) ListStays(ctx context.Context) ([]*sofa.Stay, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT s.stay_id, s.patient_id, s.intime,
			CASE WHEN EXISTS (
				SELECT 1 FROM silver.diagnoses d
				WHERE d.patient_id = s.patient_id
				  AND d.icd_version = 10
				  AND d.icd_code = ANY($1)
			) THEN 'ARI' ELSE 'OTHER' END AS disease_type
		FROM silver.icu_stays s
		WHERE s.intime IS NULL OR s.outtime IS NULL
		   OR EXTRACT(EPOCH FROM (s.outtime - s.intime))/3600 BETWEEN $2 AND $3
		ORDER BY s.patient_id, s.intime NULLS FIRST`,
		ariICD10Codes, r.filter.MinStayHours, r.filter.MaxStayHours)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stays []*sofa.Stay
	for rows.Next() {
		var s sofa.Stay
		if err := rows.Scan(&s.StayID, &s.PatientID, &s.AdmissionTime, &s.DiseaseType); err != nil {
			return nil, err
		}
		stays = append(stays, &s)
	}
	return stays, rows.Err()
}

// ListByStay returns the stay's standardized measurements in chart
// order. Rows the silver layer flagged as outliers are excluded.
func (r *repoPG) ListByStay(ctx context.Context, stayID int64) ([]sofa.Measurement, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT stay_id, parameter, chart_time, value, unit
		FROM silver.measurements_std
		WHERE stay_id = $1
		  AND is_outlier = FALSE
		  AND value IS NOT NULL
		ORDER BY chart_time`, stayID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []sofa.Measurement
	for rows.Next() {
		var m sofa.Measurement
		if err := rows.Scan(&m.StayID, &m.Parameter, &m.ChartTime, &m.Value, &m.Unit); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// BuildReference pushes the population statistic into SQL, one row per
// parameter over the whole non-outlier cohort. Parameters the scoring
// registry does not know, and contextual ones that are never
// population-imputed, are dropped from the result.
func (r *repoPG) BuildReference(ctx context.Context, p sofa.Profile) (*sofa.PopulationReference, error) {
	stat := `PERCENTILE_CONT(0.5) WITHIN GROUP (ORDER BY value)`
	if p.PopStat == sofa.PopMean {
		stat = `AVG(value)`
	}

	rows, err := r.pool.Query(ctx, `
		SELECT parameter, `+stat+` AS stat, COUNT(*) AS n
		FROM silver.measurements_std
		WHERE is_outlier = FALSE
		  AND value IS NOT NULL
		GROUP BY parameter`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	values := make(map[sofa.ParameterKey]float64)
	samples := make(map[sofa.ParameterKey]int)
	for rows.Next() {
		var (
			param string
			value float64
			n     int
		)
		if err := rows.Scan(&param, &value, &n); err != nil {
			return nil, err
		}
		key := sofa.ParameterKey(param)
		spec, ok := sofa.ParameterSpecFor(key)
		if !ok || spec.Contextual {
			continue
		}
		values[key] = value
		samples[key] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sofa.NewPopulationReference(values, samples), nil
}
