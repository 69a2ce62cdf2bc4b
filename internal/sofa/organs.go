package sofa

// organValues is the resolved parameter set handed to one organ table:
// only non-missing AggregatedValue entries appear.
type organValues map[ParameterKey]AggregatedValue

func (v organValues) get(key ParameterKey) (float64, bool) {
	av, ok := v[key]
	if !ok || av.Missing() {
		return 0, false
	}
	return av.Value, true
}

// organScorer maps one organ's resolved values to a subscore. Each is
// a pure lookup against fixed, gapless threshold bands; no scorer ever
// fails. When every input is missing it returns 0 with
// DataAvailable=false (absence of evidence of dysfunction is treated
// as absence of dysfunction, flagged).
type organScorer func(values organValues) (score int, available bool)

// organTables is the static organ -> scoring function dispatch table.
var organTables = map[OrganSystem]organScorer{
	OrganRespiratory:    scoreRespiratory,
	OrganCardiovascular: scoreCardiovascular,
	OrganCoagulation:    scoreCoagulation,
	OrganHepatic:        scoreHepatic,
	OrganRenal:          scoreRenal,
	OrganNeurological:   scoreNeurological,
}

// ScoreOrgan evaluates one organ system for one window.
func ScoreOrgan(organ OrganSystem, w Window, values organValues) OrganSubscore {
	score, available := organTables[organ](values)
	return OrganSubscore{
		StayID:        w.StayID,
		WindowIndex:   w.Index,
		Organ:         organ,
		Score:         clampSubscore(score),
		DataAvailable: available,
	}
}

func clampSubscore(s int) int {
	if s < 0 {
		return 0
	}
	if s > 4 {
		return 4
	}
	return s
}

// scoreRespiratory bands the oxygenation ratio. The two worst bands
// are reached only under mechanical ventilation; without ventilation a
// ratio below 200 (or 100) scores one point lower, per the SOFA
// convention for unsupported patients.
func scoreRespiratory(values organValues) (int, bool) {
	ratio, ok := values.get(ParamPaO2FiO2)
	if !ok {
		return 0, false
	}
	vent := false
	if v, has := values.get(ParamVentilation); has && v > 0 {
		vent = true
	}

	switch {
	case ratio >= 400:
		return 0, true
	case ratio >= 300:
		return 1, true
	case ratio >= 200:
		return 2, true
	case ratio >= 100:
		if vent {
			return 3, true
		}
		return 2, true
	default:
		if vent {
			return 4, true
		}
		return 3, true
	}
}

// scoreCardiovascular applies vasopressor-dose tiers first (support
// therapy dominates the MAP reading), then falls back to MAP banding.
// Doses are in mcg/kg/min.
func scoreCardiovascular(values organValues) (int, bool) {
	dopamine, hasDop := values.get(ParamDopamine)
	epinephrine, hasEpi := values.get(ParamEpinephrine)
	norepinephrine, hasNor := values.get(ParamNorepi)
	dobutamine, hasDob := values.get(ParamDobutamine)
	mapValue, hasMAP := values.get(ParamMAP)

	onVasopressors := (hasDop && dopamine > 0) || (hasEpi && epinephrine > 0) ||
		(hasNor && norepinephrine > 0) || (hasDob && dobutamine > 0)

	if !hasMAP && !onVasopressors {
		return 0, false
	}

	if onVasopressors {
		switch {
		case dopamine > 15 || epinephrine > 0.1 || norepinephrine > 0.1:
			return 4, true
		case dopamine > 5 || epinephrine > 0 || norepinephrine > 0:
			return 3, true
		default:
			// Low-dose dopamine or any dobutamine.
			return 2, true
		}
	}

	if mapValue >= 70 {
		return 0, true
	}
	return 1, true
}

// scoreCoagulation bands the platelet count (x10^3/uL).
func scoreCoagulation(values organValues) (int, bool) {
	platelets, ok := values.get(ParamPlatelets)
	if !ok {
		return 0, false
	}
	switch {
	case platelets >= 150:
		return 0, true
	case platelets >= 100:
		return 1, true
	case platelets >= 50:
		return 2, true
	case platelets >= 20:
		return 3, true
	default:
		return 4, true
	}
}

// scoreHepatic bands total bilirubin (mg/dL).
func scoreHepatic(values organValues) (int, bool) {
	bilirubin, ok := values.get(ParamBilirubin)
	if !ok {
		return 0, false
	}
	switch {
	case bilirubin < 1.2:
		return 0, true
	case bilirubin < 2.0:
		return 1, true
	case bilirubin < 6.0:
		return 2, true
	case bilirubin < 12.0:
		return 3, true
	default:
		return 4, true
	}
}

// scoreRenal bands creatinine (mg/dL) and 24h urine output (mL) and
// takes the worse of the two.
func scoreRenal(values organValues) (int, bool) {
	creatinine, hasCreat := values.get(ParamCreatinine)
	urine, hasUrine := values.get(ParamUrineOutput)
	if !hasCreat && !hasUrine {
		return 0, false
	}

	creatScore := 0
	if hasCreat {
		switch {
		case creatinine < 1.2:
			creatScore = 0
		case creatinine < 2.0:
			creatScore = 1
		case creatinine < 3.5:
			creatScore = 2
		case creatinine < 5.0:
			creatScore = 3
		default:
			creatScore = 4
		}
	}

	urineScore := 0
	if hasUrine {
		switch {
		case urine >= 500:
			urineScore = 0
		case urine >= 200:
			urineScore = 3
		default:
			urineScore = 4
		}
	}

	if urineScore > creatScore {
		return urineScore, true
	}
	return creatScore, true
}

// scoreNeurological bands the Glasgow Coma Scale total (3-15).
func scoreNeurological(values organValues) (int, bool) {
	gcs, ok := values.get(ParamGCS)
	if !ok {
		return 0, false
	}
	switch {
	case gcs >= 15:
		return 0, true
	case gcs >= 13:
		return 1, true
	case gcs >= 10:
		return 2, true
	case gcs >= 6:
		return 3, true
	default:
		return 4, true
	}
}
