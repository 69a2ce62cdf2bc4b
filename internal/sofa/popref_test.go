package sofa

import "testing"

func refMeasurements(t *testing.T, key ParameterKey, values ...float64) []Measurement {
	t.Helper()
	out := make([]Measurement, len(values))
	for i, v := range values {
		out[i] = obs(t, int64(i+1), key, "2180-01-01T00:00:00Z", v)
	}
	return out
}

func TestBuildPopulationReferenceMedian(t *testing.T) {
	ref := BuildPopulationReference(refMeasurements(t, ParamCreatinine, 0.8, 1.1, 2.0, 0.9, 1.0), DefaultProfile())

	v, ok := ref.Lookup(ParamCreatinine, 5)
	if !ok {
		t.Fatal("expected creatinine reference")
	}
	if v != 1.0 {
		t.Errorf("median of {0.8,0.9,1.0,1.1,2.0} = %g, want 1.0", v)
	}
}

func TestBuildPopulationReferenceMean(t *testing.T) {
	p := DefaultProfile()
	p.PopStat = PopMean

	ref := BuildPopulationReference(refMeasurements(t, ParamBilirubin, 1.0, 2.0, 3.0), p)
	v, ok := ref.Lookup(ParamBilirubin, 1)
	if !ok {
		t.Fatal("expected bilirubin reference")
	}
	if v != 2.0 {
		t.Errorf("mean of {1,2,3} = %g, want 2", v)
	}
}

func TestLookupMinSampleGate(t *testing.T) {
	ref := BuildPopulationReference(refMeasurements(t, ParamPlatelets, 150, 160, 170), DefaultProfile())

	if _, ok := ref.Lookup(ParamPlatelets, 10); ok {
		t.Error("sample of 3 must not satisfy a minimum of 10")
	}
	if _, ok := ref.Lookup(ParamPlatelets, 3); !ok {
		t.Error("sample of 3 should satisfy a minimum of 3")
	}
	if _, ok := ref.Lookup(ParamGCS, 0); ok {
		t.Error("parameter with no observations must not resolve")
	}
}

func TestBuildPopulationReferenceSkipsContextualParameters(t *testing.T) {
	ref := BuildPopulationReference(refMeasurements(t, ParamNorepi, 0.05, 0.2, 0.3), DefaultProfile())
	if _, ok := ref.Lookup(ParamNorepi, 1); ok {
		t.Error("vasopressor doses must never be population-imputed")
	}
}
