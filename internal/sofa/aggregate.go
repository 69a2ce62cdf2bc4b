package sofa

import "sort"

// AggregateWindow collapses the measurements falling inside w into at
// most one observed AggregatedValue per parameter. Parameters with no
// observation in the window yield no entry; the imputation chain
// resolves those later. Measurements outside the SOFA vocabulary are
// ignored.
func AggregateWindow(w Window, measurements []Measurement, p Profile) map[ParameterKey]AggregatedValue {
	grouped := make(map[ParameterKey][]float64)
	for _, m := range measurements {
		if m.StayID != w.StayID || !w.Contains(m.ChartTime) {
			continue
		}
		spec, ok := ParameterSpecFor(m.Parameter)
		if !ok {
			continue
		}
		grouped[spec.Key] = append(grouped[spec.Key], m.Value)
	}

	out := make(map[ParameterKey]AggregatedValue, len(grouped))
	for key, values := range grouped {
		spec, _ := ParameterSpecFor(key)
		out[key] = AggregatedValue{
			StayID:      w.StayID,
			WindowIndex: w.Index,
			Parameter:   key,
			Value:       applyRule(effectiveRule(spec, p), values),
			Source:      SourceObserved,
		}
	}
	return out
}

func applyRule(rule AggregationRule, values []float64) float64 {
	switch rule {
	case AggMin:
		min := values[0]
		for _, v := range values[1:] {
			if v < min {
				min = v
			}
		}
		return min
	case AggMax:
		max := values[0]
		for _, v := range values[1:] {
			if v > max {
				max = v
			}
		}
		return max
	case AggSum:
		var sum float64
		for _, v := range values {
			sum += v
		}
		return sum
	case AggMedian:
		return median(values)
	}
	// Unknown rules fall back to the last observation, matching the
	// upstream standardization pipeline's default.
	return values[len(values)-1]
}

func median(values []float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
