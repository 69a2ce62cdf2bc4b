package sofa

// ComposeWindow sums six organ subscores into the terminal record for
// one window. Pure arithmetic: the total is always the exact sum of
// the (already clamped) subscores, severity is a fixed banding, and
// completeness is the fraction of organs with real evidence.
func ComposeWindow(stay *Stay, w Window, subscores [6]OrganSubscore, configID string) ScoredWindow {
	total := 0
	available := 0
	for _, sub := range subscores {
		total += sub.Score
		if sub.DataAvailable {
			available++
		}
	}

	return ScoredWindow{
		StayID:       stay.StayID,
		PatientID:    stay.PatientID,
		WindowIndex:  w.Index,
		WindowStart:  w.Start,
		WindowEnd:    w.End,
		Subscores:    subscores,
		TotalScore:   total,
		Severity:     SeverityFor(total),
		Completeness: float64(available) / float64(len(subscores)),
		DiseaseType:  stay.DiseaseType,
		ConfigID:     configID,
	}
}

// SeverityFor bands a total score. Bands are contiguous and exhaustive
// over non-negative integers: 0, 1-6, 7-9, 10-12, 13+.
func SeverityFor(total int) SeverityCategory {
	switch {
	case total <= 0:
		return SeverityNone
	case total <= 6:
		return SeverityMild
	case total <= 9:
		return SeverityModerate
	case total <= 12:
		return SeveritySevere
	default:
		return SeverityCritical
	}
}
