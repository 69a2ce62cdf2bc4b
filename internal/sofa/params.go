package sofa

// ParameterSpec describes how one parameter is aggregated and sanity
// checked, and which organ table consumes it. The set is closed: six
// organs, thirteen parameters, changed only when the SOFA definition
// itself changes.
type ParameterSpec struct {
	Key   ParameterKey
	Organ OrganSystem
	Rule  AggregationRule
	// Sanity envelope applied to the aggregated value. Values outside
	// it are demoted to missing and counted as a quality note; real
	// outlier rejection happens upstream during standardization.
	SanityMin float64
	SanityMax float64
	// Surrogate, when set, names the parameter substituted in
	// imputation tier 1 if this one is unavailable.
	Surrogate ParameterKey
	// Contextual parameters (ventilation flag, vasopressor doses) are
	// secondary inputs to a scoring table and are never imputed via
	// LOCF or population reference.
	Contextual bool
	// SurrogateOnly parameters are aggregated when observed so they
	// can stand in for another parameter, but are never scored or
	// imputed themselves.
	SurrogateOnly bool
}

// parameterRegistry is the closed dispatch table mapping each
// parameter to its aggregation rule and organ system. Worst-value
// direction follows the clinical rule: minimum where lower is worse,
// maximum where higher is worse, sum for cumulative urine output.
var parameterRegistry = map[ParameterKey]ParameterSpec{
	ParamPaO2FiO2: {
		Key: ParamPaO2FiO2, Organ: OrganRespiratory, Rule: AggMin,
		SanityMin: 10, SanityMax: 600, Surrogate: ParamSpO2FiO2,
	},
	ParamSpO2FiO2: {
		Key: ParamSpO2FiO2, Organ: OrganRespiratory, Rule: AggMin,
		SanityMin: 10, SanityMax: 600, SurrogateOnly: true,
	},
	ParamVentilation: {
		Key: ParamVentilation, Organ: OrganRespiratory, Rule: AggMax,
		SanityMin: 0, SanityMax: 1, Contextual: true,
	},
	ParamMAP: {
		Key: ParamMAP, Organ: OrganCardiovascular, Rule: AggMin,
		SanityMin: 20, SanityMax: 200,
	},
	ParamDopamine: {
		Key: ParamDopamine, Organ: OrganCardiovascular, Rule: AggMax,
		SanityMin: 0, SanityMax: 100, Contextual: true,
	},
	ParamEpinephrine: {
		Key: ParamEpinephrine, Organ: OrganCardiovascular, Rule: AggMax,
		SanityMin: 0, SanityMax: 10, Contextual: true,
	},
	ParamNorepi: {
		Key: ParamNorepi, Organ: OrganCardiovascular, Rule: AggMax,
		SanityMin: 0, SanityMax: 10, Contextual: true,
	},
	ParamDobutamine: {
		Key: ParamDobutamine, Organ: OrganCardiovascular, Rule: AggMax,
		SanityMin: 0, SanityMax: 100, Contextual: true,
	},
	ParamPlatelets: {
		Key: ParamPlatelets, Organ: OrganCoagulation, Rule: AggMin,
		SanityMin: 1, SanityMax: 1000,
	},
	ParamBilirubin: {
		Key: ParamBilirubin, Organ: OrganHepatic, Rule: AggMax,
		SanityMin: 0.1, SanityMax: 50,
	},
	ParamGCS: {
		Key: ParamGCS, Organ: OrganNeurological, Rule: AggMin,
		SanityMin: 3, SanityMax: 15,
	},
	ParamCreatinine: {
		Key: ParamCreatinine, Organ: OrganRenal, Rule: AggMax,
		SanityMin: 0.1, SanityMax: 15,
	},
	ParamUrineOutput: {
		Key: ParamUrineOutput, Organ: OrganRenal, Rule: AggSum,
		SanityMin: 0, SanityMax: 5000,
	},
}

// ParameterSpecFor returns the registry entry for key. The second
// return is false for parameters outside the SOFA vocabulary, which
// the engine ignores.
func ParameterSpecFor(key ParameterKey) (ParameterSpec, bool) {
	spec, ok := parameterRegistry[key]
	return spec, ok
}

// Parameters returns every registered parameter key. Order is not
// defined; callers needing determinism sort.
func Parameters() []ParameterKey {
	keys := make([]ParameterKey, 0, len(parameterRegistry))
	for k := range parameterRegistry {
		keys = append(keys, k)
	}
	return keys
}

// parametersByOrgan is derived once from the registry.
var parametersByOrgan = func() map[OrganSystem][]ParameterKey {
	m := make(map[OrganSystem][]ParameterKey)
	for _, spec := range parameterRegistry {
		m[spec.Organ] = append(m[spec.Organ], spec.Key)
	}
	return m
}()

// ParametersForOrgan returns the parameters feeding one organ table.
func ParametersForOrgan(organ OrganSystem) []ParameterKey {
	return parametersByOrgan[organ]
}

// effectiveRule resolves the aggregation rule under a profile: the
// alternate comparison profile replaces extremal rules with the window
// median while cumulative (sum) parameters keep summing.
func effectiveRule(spec ParameterSpec, p Profile) AggregationRule {
	if p.MedianAggregation && spec.Rule != AggSum {
		return AggMedian
	}
	return spec.Rule
}

// inSanityEnvelope reports whether an aggregated value is
// physiologically plausible for the parameter.
func inSanityEnvelope(spec ParameterSpec, value float64) bool {
	return value >= spec.SanityMin && value <= spec.SanityMax
}
