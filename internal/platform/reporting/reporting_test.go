package reporting

import (
	"strings"
	"testing"
)

func TestPredefinedMeasures(t *testing.T) {
	if len(PredefinedMeasures) != 5 {
		t.Fatalf("expected 5 predefined measures, got %d", len(PredefinedMeasures))
	}

	expectedIDs := []string{
		"severity-distribution",
		"high-risk-share",
		"completeness-summary",
		"cohort-split",
		"imputation-tiers",
	}

	for i, expectedID := range expectedIDs {
		if PredefinedMeasures[i].ID != expectedID {
			t.Errorf("expected measure[%d].ID = %s, got %s", i, expectedID, PredefinedMeasures[i].ID)
		}
	}
}

func TestPredefinedMeasures_HaveSQL(t *testing.T) {
	for _, m := range PredefinedMeasures {
		if m.SQL == "" {
			t.Errorf("measure %s has empty SQL", m.ID)
		}
		if m.Name == "" {
			t.Errorf("measure %s has empty name", m.ID)
		}
		if m.Description == "" {
			t.Errorf("measure %s has empty description", m.ID)
		}
	}
}

func TestPredefinedMeasures_QueryGoldTables(t *testing.T) {
	// All measures read from the gold layer only; nothing here may
	// touch silver source data.
	for _, m := range PredefinedMeasures {
		if !strings.Contains(m.SQL, "gold.") {
			t.Errorf("measure %s does not query the gold layer: %s", m.ID, m.SQL)
		}
		if strings.Contains(m.SQL, "silver.") {
			t.Errorf("measure %s must not read silver tables", m.ID)
		}
	}
}

func TestFindMeasure_Exists(t *testing.T) {
	m := FindMeasure("severity-distribution")
	if m == nil {
		t.Fatal("expected to find severity-distribution measure")
	}
	if m.Name != "Severity Distribution" {
		t.Errorf("expected 'Severity Distribution', got %s", m.Name)
	}
}

func TestFindMeasure_NotFound(t *testing.T) {
	if m := FindMeasure("nonexistent"); m != nil {
		t.Error("expected nil for nonexistent measure")
	}
}

func TestHighRiskMeasure_Threshold(t *testing.T) {
	m := FindMeasure("high-risk-share")
	if m == nil {
		t.Fatal("expected high-risk-share measure")
	}
	if !strings.Contains(m.SQL, "total_score >= 10") {
		t.Errorf("high-risk cut must be a total score of 10: %s", m.SQL)
	}
}
