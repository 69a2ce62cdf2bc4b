package reporting

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"

	"github.com/icumetrics/sofa/internal/platform/auth"
)

// MeasureDefinition defines a reporting measure with its SQL query.
type MeasureDefinition struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	SQL         string   `json:"sql"`
	Parameters  []string `json:"parameters"`
}

// MeasureReport holds the results of evaluating a measure.
type MeasureReport struct {
	MeasureID   string                   `json:"measure_id"`
	MeasureName string                   `json:"measure_name"`
	GeneratedAt time.Time                `json:"generated_at"`
	Results     []map[string]interface{} `json:"results"`
	Parameters  map[string]string        `json:"parameters,omitempty"`
}

// PredefinedMeasures is the list of available reporting measures over
// the gold score tables.
var PredefinedMeasures = []MeasureDefinition{
	{
		ID:          "severity-distribution",
		Name:        "Severity Distribution",
		Description: "Scored windows grouped by severity category and configuration",
		SQL: `SELECT config_id, severity, COUNT(*) AS windows
			FROM gold.sofa_scores GROUP BY config_id, severity ORDER BY config_id, windows DESC`,
		Parameters: []string{},
	},
	{
		ID:          "high-risk-share",
		Name:        "High Risk Share",
		Description: "Share of windows with a total score of 10 or more, per configuration",
		SQL: `SELECT config_id,
			COUNT(*) AS windows,
			COUNT(*) FILTER (WHERE total_score >= 10) AS high_risk_windows,
			ROUND(COUNT(*) FILTER (WHERE total_score >= 10)::numeric / COUNT(*), 4) AS high_risk_share
			FROM gold.sofa_scores GROUP BY config_id`,
		Parameters: []string{},
	},
	{
		ID:          "completeness-summary",
		Name:        "Data Completeness Summary",
		Description: "Average organ data completeness and score statistics per configuration",
		SQL: `SELECT config_id,
			ROUND(AVG(completeness)::numeric, 4) AS avg_completeness,
			ROUND(AVG(total_score)::numeric, 2) AS avg_total_score,
			MAX(total_score) AS max_total_score
			FROM gold.sofa_scores GROUP BY config_id`,
		Parameters: []string{},
	},
	{
		ID:          "cohort-split",
		Name:        "Cohort Split",
		Description: "Windows and average scores split by disease tag",
		SQL: `SELECT config_id, disease_type,
			COUNT(*) AS windows,
			COUNT(DISTINCT stay_id) AS stays,
			ROUND(AVG(total_score)::numeric, 2) AS avg_total_score
			FROM gold.sofa_scores GROUP BY config_id, disease_type`,
		Parameters: []string{},
	},
	{
		ID:          "imputation-tiers",
		Name:        "Imputation Tier Totals",
		Description: "Resolution tier counts aggregated over recorded runs",
		SQL: `SELECT config_id,
			SUM(tier_observed) AS observed,
			SUM(tier_surrogate) AS surrogate,
			SUM(tier_locf) AS locf,
			SUM(tier_population) AS population,
			SUM(tier_missing) AS missing
			FROM gold.sofa_runs GROUP BY config_id`,
		Parameters: []string{},
	},
}

// Handler provides HTTP handlers for the reporting API.
type Handler struct {
	pool *pgxpool.Pool
}

func NewHandler(pool *pgxpool.Pool) *Handler {
	return &Handler{pool: pool}
}

// RegisterRoutes registers the reporting API routes.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	reportGroup := api.Group("/reports", auth.RequireRole("admin", "analyst"))
	reportGroup.GET("/measures", h.ListMeasures)
	reportGroup.GET("/measures/:id/evaluate", h.EvaluateMeasure)
}

// ListMeasures returns all available measure definitions.
func (h *Handler) ListMeasures(c echo.Context) error {
	return c.JSON(http.StatusOK, PredefinedMeasures)
}

// EvaluateMeasure executes a measure's SQL and returns the results.
func (h *Handler) EvaluateMeasure(c echo.Context) error {
	measure := FindMeasure(c.Param("id"))
	if measure == nil {
		return echo.NewHTTPError(http.StatusNotFound, "measure not found")
	}

	params := map[string]string{}
	for _, p := range measure.Parameters {
		if v := c.QueryParam(p); v != "" {
			params[p] = v
		}
	}

	results, err := h.executeSQL(c.Request().Context(), measure.SQL)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("query failed: %v", err))
	}

	report := MeasureReport{
		MeasureID:   measure.ID,
		MeasureName: measure.Name,
		GeneratedAt: time.Now(),
		Results:     results,
		Parameters:  params,
	}

	return c.JSON(http.StatusOK, report)
}

// executeSQL runs a SQL query and returns results as a slice of maps.
func (h *Handler) executeSQL(ctx context.Context, sql string) ([]map[string]interface{}, error) {
	rows, err := h.pool.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fieldDescs := rows.FieldDescriptions()
	var results []map[string]interface{}

	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}

		row := make(map[string]interface{}, len(fieldDescs))
		for i, fd := range fieldDescs {
			row[string(fd.Name)] = values[i]
		}
		results = append(results, row)
	}

	if results == nil {
		results = []map[string]interface{}{}
	}

	return results, nil
}

// FindMeasure looks up a measure by ID.
func FindMeasure(id string) *MeasureDefinition {
	for i := range PredefinedMeasures {
		if PredefinedMeasures[i].ID == id {
			return &PredefinedMeasures[i]
		}
	}
	return nil
}
