package results

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/icumetrics/sofa/internal/sofa"
)

// -- Mock Repository --

type mockRepo struct {
	scores map[string][]sofa.ScoredWindow
	runs   map[uuid.UUID]*RunRecord
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		scores: make(map[string][]sofa.ScoredWindow),
		runs:   make(map[uuid.UUID]*RunRecord),
	}
}

func scoreKey(stayID int64, configID string) string {
	return fmt.Sprintf("%d/%s", stayID, configID)
}

func (m *mockRepo) SaveWindows(_ context.Context, windows []sofa.ScoredWindow) error {
	for _, w := range windows {
		key := scoreKey(w.StayID, w.ConfigID)
		m.scores[key] = append(m.scores[key], w)
	}
	return nil
}

func (m *mockRepo) SaveRun(_ context.Context, run *RunRecord) error {
	m.runs[run.RunID] = run
	return nil
}

func (m *mockRepo) ListByStay(_ context.Context, stayID int64, configID string, limit, offset int) ([]sofa.ScoredWindow, int, error) {
	all := m.scores[scoreKey(stayID, configID)]
	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (m *mockRepo) ListRuns(_ context.Context, limit, offset int) ([]*RunRecord, int, error) {
	var runs []*RunRecord
	for _, r := range m.runs {
		runs = append(runs, r)
	}
	return runs, len(runs), nil
}

func (m *mockRepo) GetRun(_ context.Context, runID uuid.UUID) (*RunRecord, error) {
	run, ok := m.runs[runID]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return run, nil
}

// -- Tests --

func sampleWindow(stayID int64, index int, configID string, total int) sofa.ScoredWindow {
	return sofa.ScoredWindow{
		StayID:      stayID,
		PatientID:   stayID,
		WindowIndex: index,
		TotalScore:  total,
		Severity:    sofa.SeverityFor(total),
		ConfigID:    configID,
		DiseaseType: "OTHER",
	}
}

func TestService_ScoresByStayDefaultsConfig(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)

	repo.SaveWindows(context.Background(), []sofa.ScoredWindow{
		sampleWindow(1, 1, "config1", 3),
		sampleWindow(1, 1, "config2", 5),
	})

	scores, total, err := svc.ScoresByStay(context.Background(), 1, "", 20, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 1 || len(scores) != 1 {
		t.Fatalf("expected only the default stream, got %d", total)
	}
	if scores[0].TotalScore != 3 {
		t.Errorf("expected the config1 window, got total %d", scores[0].TotalScore)
	}
}

func TestService_SaveRunFlattensSummary(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)

	summary := &sofa.RunSummary{
		RunID:         uuid.New(),
		ConfigID:      "config1",
		StartedAt:     time.Now().UTC(),
		FinishedAt:    time.Now().UTC(),
		StaysTotal:    10,
		StaysScored:   8,
		StaysSkipped:  1,
		StaysEmpty:    1,
		WindowsScored: 42,
		Tiers:         sofa.TierCounts{Observed: 100, LOCF: 7},
		StayErrors:    map[int64]string{5: "stay 5 has no admission timestamp"},
	}
	if err := svc.SaveRun(context.Background(), summary); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	run, err := svc.GetRun(context.Background(), summary.RunID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if run.StaysScored != 8 || run.WindowsScored != 42 {
		t.Errorf("counters not carried: %+v", run)
	}
	if run.Tiers.LOCF != 7 {
		t.Errorf("tier counts not carried: %+v", run.Tiers)
	}
	if run.StayErrors[5] == "" {
		t.Error("stay errors not carried")
	}
}
