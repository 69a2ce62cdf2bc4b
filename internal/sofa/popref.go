package sofa

// PopulationReference is the cohort-wide fallback table for tier-3
// imputation. It is built exactly once, before any scoring starts, and
// is immutable afterwards, so it can be shared across per-stay workers
// without locking. Tests inject synthetic tables through
// NewPopulationReference.
type PopulationReference struct {
	values  map[ParameterKey]float64
	samples map[ParameterKey]int
}

// NewPopulationReference builds a reference table from precomputed
// per-parameter statistics and sample counts.
func NewPopulationReference(values map[ParameterKey]float64, samples map[ParameterKey]int) *PopulationReference {
	if values == nil {
		values = map[ParameterKey]float64{}
	}
	if samples == nil {
		samples = map[ParameterKey]int{}
	}
	return &PopulationReference{values: values, samples: samples}
}

// BuildPopulationReference computes the reference statistic per
// parameter over every observed measurement in the cohort. The
// statistic (median or mean) comes from the profile; contextual
// parameters are excluded since they are never population-imputed.
func BuildPopulationReference(measurements []Measurement, p Profile) *PopulationReference {
	grouped := make(map[ParameterKey][]float64)
	for _, m := range measurements {
		spec, ok := ParameterSpecFor(m.Parameter)
		if !ok || spec.Contextual {
			continue
		}
		// Implausible readings must not shift the cohort statistic.
		if !inSanityEnvelope(spec, m.Value) {
			continue
		}
		grouped[spec.Key] = append(grouped[spec.Key], m.Value)
	}

	ref := &PopulationReference{
		values:  make(map[ParameterKey]float64, len(grouped)),
		samples: make(map[ParameterKey]int, len(grouped)),
	}
	for key, values := range grouped {
		ref.samples[key] = len(values)
		if p.PopStat == PopMean {
			var sum float64
			for _, v := range values {
				sum += v
			}
			ref.values[key] = sum / float64(len(values))
		} else {
			ref.values[key] = median(values)
		}
	}
	return ref
}

// Lookup returns the reference value for key if the backing sample is
// at least minSample. An undersized sample is a normal miss
// (InsufficientPopulationSample), not an error.
func (r *PopulationReference) Lookup(key ParameterKey, minSample int) (float64, bool) {
	n, ok := r.samples[key]
	if !ok || n < minSample {
		return 0, false
	}
	return r.values[key], true
}

// SampleSizes returns a copy of the per-parameter sample counts for
// run-summary reporting.
func (r *PopulationReference) SampleSizes() map[ParameterKey]int {
	out := make(map[ParameterKey]int, len(r.samples))
	for k, v := range r.samples {
		out[k] = v
	}
	return out
}
