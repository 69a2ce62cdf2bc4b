package sofa

// StayContext bundles everything the imputation chain may consult for
// one stay: the generated windows and the observed aggregates per
// window. LOCF reads observed values only, never other windows'
// imputed values, so windows remain independently resolvable in any
// order.
type StayContext struct {
	Stay     *Stay
	Windows  []Window
	Observed []map[ParameterKey]AggregatedValue // indexed alongside Windows
}

// windowAt returns the position of the window with the given index, or
// -1.
func (sc *StayContext) windowAt(index int) int {
	for i, w := range sc.Windows {
		if w.Index == index {
			return i
		}
	}
	return -1
}

// resolver is one imputation tier. It either resolves a value for the
// parameter in the given window or passes.
type resolver func(sc *StayContext, w Window, key ParameterKey) (AggregatedValue, bool)

// Imputer resolves parameters absent from a window through the ordered
// fallback chain: surrogate substitution, backward carry within the
// stay, population reference. Tiers are tried strictly in order with
// early exit; "nothing resolved" is a normal outcome tagged
// SourceMissing, never an error.
type Imputer struct {
	profile Profile
	popRef  *PopulationReference
	chain   []resolver
}

// NewImputer builds the resolver chain for one profile against an
// already constructed (immutable) population reference.
func NewImputer(p Profile, popRef *PopulationReference) *Imputer {
	im := &Imputer{profile: p, popRef: popRef}
	im.chain = []resolver{
		im.resolveSurrogate,
		im.resolveLOCF,
		im.resolvePopulation,
	}
	return im
}

// Resolve produces exactly one AggregatedValue for a parameter with no
// observation in window w, tagged with the tier that supplied it, or
// SourceMissing when every tier passes.
func (im *Imputer) Resolve(sc *StayContext, w Window, key ParameterKey) AggregatedValue {
	for _, tier := range im.chain {
		if v, ok := tier(sc, w, key); ok {
			return v
		}
	}
	return AggregatedValue{
		StayID:      w.StayID,
		WindowIndex: w.Index,
		Parameter:   key,
		Source:      SourceMissing,
	}
}

// resolveSurrogate substitutes the registered surrogate parameter's
// observed value for the same window. Only the oxygenation ratio has a
// surrogate (SpO2/FiO2 for PaO2/FiO2).
func (im *Imputer) resolveSurrogate(sc *StayContext, w Window, key ParameterKey) (AggregatedValue, bool) {
	spec, ok := ParameterSpecFor(key)
	if !ok || spec.Surrogate == "" {
		return AggregatedValue{}, false
	}
	pos := sc.windowAt(w.Index)
	if pos < 0 {
		return AggregatedValue{}, false
	}
	sub, ok := sc.Observed[pos][spec.Surrogate]
	if !ok {
		return AggregatedValue{}, false
	}
	return AggregatedValue{
		StayID:      w.StayID,
		WindowIndex: w.Index,
		Parameter:   key,
		Value:       sub.Value,
		Source:      SourceSurrogate,
	}, true
}

// resolveLOCF carries the most recent earlier observed value forward,
// scanning windows of the same stay strictly before w, newest first,
// within the configured lookback horizon.
func (im *Imputer) resolveLOCF(sc *StayContext, w Window, key ParameterKey) (AggregatedValue, bool) {
	for i := len(sc.Windows) - 1; i >= 0; i-- {
		earlier := sc.Windows[i]
		if earlier.Index >= w.Index {
			continue
		}
		if w.Start.Sub(earlier.Start) > im.profile.LOCFMaxLook {
			break
		}
		if prev, ok := sc.Observed[i][key]; ok {
			return AggregatedValue{
				StayID:      w.StayID,
				WindowIndex: w.Index,
				Parameter:   key,
				Value:       prev.Value,
				Source:      SourceLOCF,
			}, true
		}
	}
	return AggregatedValue{}, false
}

// resolvePopulation substitutes the cohort reference value, gated by
// the minimum sample size.
func (im *Imputer) resolvePopulation(sc *StayContext, w Window, key ParameterKey) (AggregatedValue, bool) {
	v, ok := im.popRef.Lookup(key, im.profile.PopMinSample)
	if !ok {
		return AggregatedValue{}, false
	}
	return AggregatedValue{
		StayID:      w.StayID,
		WindowIndex: w.Index,
		Parameter:   key,
		Value:       v,
		Source:      SourcePopulation,
	}, true
}
