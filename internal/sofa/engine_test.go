package sofa

import (
	"context"
	"reflect"
	"sort"
	"testing"

	"github.com/rs/zerolog"
)

// =========== Fake Sources ===========

type fakeStaySource struct{ stays []*Stay }

func (f *fakeStaySource) ListStays(_ context.Context) ([]*Stay, error) { return f.stays, nil }

type fakeMeasurementSource struct{ byStay map[int64][]Measurement }

func (f *fakeMeasurementSource) ListByStay(_ context.Context, stayID int64) ([]Measurement, error) {
	return f.byStay[stayID], nil
}

func (f *fakeMeasurementSource) all() []Measurement {
	var out []Measurement
	for _, ms := range f.byStay {
		out = append(out, ms...)
	}
	return out
}

func newEngineForTest(t *testing.T, stays []*Stay, byStay map[int64][]Measurement, p Profile, workers int) (*Engine, *CollectorSink) {
	t.Helper()
	measurements := &fakeMeasurementSource{byStay: byStay}
	sink := &CollectorSink{}
	eng := NewEngine(
		&fakeStaySource{stays: stays},
		measurements,
		&InMemoryReference{Measurements: measurements.all()},
		sink,
		p,
		workers,
		zerolog.Nop(),
	)
	return eng, sink
}

func sortScored(windows []ScoredWindow) {
	sort.Slice(windows, func(i, j int) bool {
		if windows[i].StayID != windows[j].StayID {
			return windows[i].StayID < windows[j].StayID
		}
		return windows[i].WindowIndex < windows[j].WindowIndex
	})
}

// =========== End-to-end scenarios ===========

func TestEngineSinglePlateletObservation(t *testing.T) {
	stay := testStay(t, "2180-01-01T00:00:00Z")
	byStay := map[int64][]Measurement{
		stay.StayID: {obs(t, stay.StayID, ParamPlatelets, "2180-01-01T03:00:00Z", 45)},
	}

	eng, sink := newEngineForTest(t, []*Stay{stay}, byStay, DefaultProfile(), 1)
	summary, err := eng.Run(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if summary.WindowsScored != 1 || len(sink.Windows) != 1 {
		t.Fatalf("expected one scored window, got summary=%d sink=%d", summary.WindowsScored, len(sink.Windows))
	}
	sw := sink.Windows[0]
	coag := sw.Subscore(OrganCoagulation)
	if coag.Score != 3 || !coag.DataAvailable {
		t.Errorf("platelets 45 must band to 3 with data available, got %+v", coag)
	}
	if sw.TotalScore != 3 {
		t.Errorf("only coagulation contributes, total should be 3, got %d", sw.TotalScore)
	}
	if sw.Completeness != 1.0/6.0 {
		t.Errorf("completeness 1/6 expected, got %g", sw.Completeness)
	}
}

func TestEngineUrineOutputSum(t *testing.T) {
	stay := testStay(t, "2180-01-01T00:00:00Z")
	byStay := map[int64][]Measurement{
		stay.StayID: {
			obs(t, stay.StayID, ParamUrineOutput, "2180-01-01T06:00:00Z", 150),
			obs(t, stay.StayID, ParamUrineOutput, "2180-01-01T12:00:00Z", 100),
			obs(t, stay.StayID, ParamUrineOutput, "2180-01-01T18:00:00Z", 120),
		},
	}

	eng, sink := newEngineForTest(t, []*Stay{stay}, byStay, DefaultProfile(), 1)
	if _, err := eng.Run(context.Background()); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if len(sink.Windows) != 1 {
		t.Fatalf("expected one window, got %d", len(sink.Windows))
	}
	renal := sink.Windows[0].Subscore(OrganRenal)
	if renal.Score != 3 {
		t.Errorf("370mL over the window bands to 3, got %d", renal.Score)
	}
}

func TestEngineSurrogateOnlyRespiratory(t *testing.T) {
	stay := testStay(t, "2180-01-01T00:00:00Z")
	// Only the SpO2/FiO2 surrogate observed, in the 200-300 band.
	byStay := map[int64][]Measurement{
		stay.StayID: {obs(t, stay.StayID, ParamSpO2FiO2, "2180-01-01T05:00:00Z", 250)},
	}

	eng, sink := newEngineForTest(t, []*Stay{stay}, byStay, DefaultProfile(), 1)
	summary, err := eng.Run(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if len(sink.Windows) != 1 {
		t.Fatalf("expected one window, got %d", len(sink.Windows))
	}
	resp := sink.Windows[0].Subscore(OrganRespiratory)
	if resp.Score != 2 || !resp.DataAvailable {
		t.Errorf("surrogate ratio 250 must band to 2, got %+v", resp)
	}
	if summary.Tiers.Surrogate != 1 {
		t.Errorf("expected one surrogate resolution, got %d", summary.Tiers.Surrogate)
	}
}

func TestEngineMissingAnchorSkipsStayNotBatch(t *testing.T) {
	good := testStay(t, "2180-01-01T00:00:00Z")
	bad := &Stay{StayID: 200, PatientID: 2}
	byStay := map[int64][]Measurement{
		good.StayID: {obs(t, good.StayID, ParamPlatelets, "2180-01-01T03:00:00Z", 45)},
		bad.StayID:  {obs(t, bad.StayID, ParamPlatelets, "2180-01-01T03:00:00Z", 45)},
	}

	eng, sink := newEngineForTest(t, []*Stay{good, bad}, byStay, DefaultProfile(), 1)
	summary, err := eng.Run(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if summary.StaysSkipped != 1 || summary.StaysScored != 1 {
		t.Errorf("expected 1 skipped / 1 scored, got %d / %d", summary.StaysSkipped, summary.StaysScored)
	}
	if _, ok := summary.StayErrors[bad.StayID]; !ok {
		t.Error("skipped stay must appear in the run summary errors")
	}
	if len(sink.Windows) != 1 || sink.Windows[0].StayID != good.StayID {
		t.Errorf("good stay must still be scored, sink=%+v", sink.Windows)
	}
}

func TestEngineEmptyStayIsWarningNotError(t *testing.T) {
	stay := testStay(t, "2180-01-01T00:00:00Z")

	eng, sink := newEngineForTest(t, []*Stay{stay}, map[int64][]Measurement{}, DefaultProfile(), 1)
	summary, err := eng.Run(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if summary.StaysEmpty != 1 {
		t.Errorf("expected empty-stay count 1, got %d", summary.StaysEmpty)
	}
	if len(summary.StayErrors) != 0 {
		t.Errorf("empty stay is not an error: %+v", summary.StayErrors)
	}
	if len(sink.Windows) != 0 {
		t.Errorf("empty stay emits no windows, got %d", len(sink.Windows))
	}
}

func TestEngineOutOfRangeValueDemotedToMissing(t *testing.T) {
	stay := testStay(t, "2180-01-01T00:00:00Z")
	byStay := map[int64][]Measurement{
		stay.StayID: {
			obs(t, stay.StayID, ParamPlatelets, "2180-01-01T03:00:00Z", -20),
			obs(t, stay.StayID, ParamBilirubin, "2180-01-01T04:00:00Z", 2.5),
		},
	}

	eng, sink := newEngineForTest(t, []*Stay{stay}, byStay, DefaultProfile(), 1)
	summary, err := eng.Run(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if summary.OutOfRange != 1 {
		t.Errorf("expected one out-of-range note, got %d", summary.OutOfRange)
	}
	if len(summary.QualityNotes) != 1 {
		t.Errorf("expected a quality note, got %v", summary.QualityNotes)
	}
	if len(sink.Windows) != 1 {
		t.Fatalf("window must still score from the remaining evidence")
	}
	coag := sink.Windows[0].Subscore(OrganCoagulation)
	if coag.DataAvailable {
		t.Error("implausible platelet count must not count as evidence")
	}
	hep := sink.Windows[0].Subscore(OrganHepatic)
	if hep.Score != 2 || !hep.DataAvailable {
		t.Errorf("bilirubin 2.5 must still band to 2, got %+v", hep)
	}
}

func TestEngineTierPrecedenceAcrossWindows(t *testing.T) {
	stay := testStay(t, "2180-01-01T00:00:00Z")
	byStay := map[int64][]Measurement{
		stay.StayID: {
			obs(t, stay.StayID, ParamCreatinine, "2180-01-01T08:00:00Z", 2.5),
			// Second window has a platelet reading but no creatinine,
			// so creatinine must come from LOCF even though a large
			// population sample exists.
			obs(t, stay.StayID, ParamPlatelets, "2180-01-02T08:00:00Z", 180),
		},
	}
	// Pad the cohort so the population tier would be eligible.
	for i := int64(0); i < 20; i++ {
		id := 500 + i
		byStay[id] = append(byStay[id], obs(t, id, ParamCreatinine, "2180-01-01T00:00:00Z", 0.9))
	}

	eng, sink := newEngineForTest(t, []*Stay{stay}, byStay, DefaultProfile(), 1)
	summary, err := eng.Run(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	sortScored(sink.Windows)
	if len(sink.Windows) != 2 {
		t.Fatalf("expected two windows, got %d", len(sink.Windows))
	}
	w2 := sink.Windows[1]
	renal := w2.Subscore(OrganRenal)
	if renal.Score != 2 || !renal.DataAvailable {
		t.Errorf("window 2 renal must carry creatinine 2.5 forward (band 2), got %+v", renal)
	}
	if summary.Tiers.LOCF == 0 {
		t.Error("expected at least one LOCF resolution")
	}
}

func TestEngineIdempotentAndOrderIndependent(t *testing.T) {
	var stays []*Stay
	byStay := map[int64][]Measurement{}
	for i := int64(0); i < 8; i++ {
		id := 100 + i
		at := mustTime(t, "2180-01-01T00:00:00Z")
		stays = append(stays, &Stay{StayID: id, PatientID: id, AdmissionTime: &at, DiseaseType: "OTHER"})
		byStay[id] = []Measurement{
			obs(t, id, ParamPlatelets, "2180-01-01T03:00:00Z", float64(30+10*i)),
			obs(t, id, ParamCreatinine, "2180-01-01T05:00:00Z", 1.0+0.5*float64(i)),
			obs(t, id, ParamGCS, "2180-01-02T05:00:00Z", float64(15-i)),
		}
	}

	runOnce := func(workers int) []ScoredWindow {
		eng, sink := newEngineForTest(t, stays, byStay, DefaultProfile(), workers)
		if _, err := eng.Run(context.Background()); err != nil {
			t.Fatalf("run failed: %v", err)
		}
		sortScored(sink.Windows)
		return sink.Windows
	}

	serial := runOnce(1)
	again := runOnce(1)
	parallel := runOnce(4)

	if !reflect.DeepEqual(serial, again) {
		t.Error("identical configuration must yield identical output")
	}
	if !reflect.DeepEqual(serial, parallel) {
		t.Error("worker count must not change results")
	}
}

func TestEngineProfilesProduceTaggedStreams(t *testing.T) {
	stay := testStay(t, "2180-01-01T00:00:00Z")
	byStay := map[int64][]Measurement{
		stay.StayID: {
			obs(t, stay.StayID, ParamPlatelets, "2180-01-01T02:00:00Z", 40),
			obs(t, stay.StayID, ParamPlatelets, "2180-01-01T10:00:00Z", 100),
			obs(t, stay.StayID, ParamPlatelets, "2180-01-01T20:00:00Z", 160),
		},
	}

	engWorst, sinkWorst := newEngineForTest(t, []*Stay{stay}, byStay, DefaultProfile(), 1)
	if _, err := engWorst.Run(context.Background()); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	engMedian, sinkMedian := newEngineForTest(t, []*Stay{stay}, byStay, MedianProfile(), 1)
	if _, err := engMedian.Run(context.Background()); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	worst := sinkWorst.Windows[0]
	med := sinkMedian.Windows[0]
	if worst.ConfigID != "config1" || med.ConfigID != "config2" {
		t.Errorf("streams must carry their config identifier: %q / %q", worst.ConfigID, med.ConfigID)
	}
	// Worst-value picks platelets 40 (band 3); the median profile
	// picks 100 (band 1).
	if got := worst.Subscore(OrganCoagulation).Score; got != 3 {
		t.Errorf("worst-value coagulation should be 3, got %d", got)
	}
	if got := med.Subscore(OrganCoagulation).Score; got != 1 {
		t.Errorf("median coagulation should be 1, got %d", got)
	}
}

func TestEngineMinimumDataGate(t *testing.T) {
	stay := testStay(t, "2180-01-01T00:00:00Z")
	byStay := map[int64][]Measurement{
		stay.StayID: {obs(t, stay.StayID, ParamPlatelets, "2180-01-01T03:00:00Z", 45)},
	}

	p := DefaultProfile()
	p.MaxMissingOrgans = 4 // one available organ leaves five missing

	eng, sink := newEngineForTest(t, []*Stay{stay}, byStay, p, 1)
	summary, err := eng.Run(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if summary.WindowsGated != 1 {
		t.Errorf("expected the window to be gated, got %d", summary.WindowsGated)
	}
	if len(sink.Windows) != 0 {
		t.Errorf("gated windows must not be emitted, got %d", len(sink.Windows))
	}
}
