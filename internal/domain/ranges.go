package domain

// NormalRange is the reference interval for one differential-count key.
// Leukocyte keys are percentages; platelets and rbcs are counts per microliter.
type NormalRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Contains reports whether a value lies inside the reference interval.
func (r NormalRange) Contains(v int) bool {
	return v >= r.Min && v <= r.Max
}

// defaultNormalRanges is the process-wide reference table. It is shared by
// the pattern engine, the risk scorer and the narrative templates, and is
// never mutated.
var defaultNormalRanges = map[string]NormalRange{
	KeyNeutrophils: {Min: 50, Max: 70},
	KeyLymphocytes: {Min: 20, Max: 40},
	KeyMonocytes:   {Min: 2, Max: 10},
	KeyEosinophils: {Min: 1, Max: 4},
	KeyBasophils:   {Min: 0, Max: 2},
	KeyPlatelets:   {Min: 150000, Max: 450000},
	KeyRBCs:        {Min: 4200000, Max: 5400000},
}

// DefaultNormalRanges returns a copy of the built-in reference table.
func DefaultNormalRanges() map[string]NormalRange {
	out := make(map[string]NormalRange, len(defaultNormalRanges))
	for k, v := range defaultNormalRanges {
		out[k] = v
	}
	return out
}

// Thresholds carries the tuning constants of the analysis pipeline. The
// values are configuration, not derived quantities; they are passed in
// explicitly instead of living in package-level mutable state.
type Thresholds struct {
	// Vote-to-count scale factors for the absolute estimates.
	PlateletScale int
	RBCScale      int

	// ConfidenceWindow is the prediction-sequence window size used for the
	// cell-classification and morphology sub-scores (first N, next N).
	ConfidenceWindow int

	// Degraded-input fallbacks for an empty prediction sequence.
	FallbackConfidence ConfidenceSummary
	FallbackCounts     DifferentialCount

	// NormalRanges is the reference table used by detection and narration.
	NormalRanges map[string]NormalRange
}

// DefaultThresholds returns the standard pipeline configuration.
func DefaultThresholds() Thresholds {
	return Thresholds{
		PlateletScale:    2000,
		RBCScale:         30000,
		ConfidenceWindow: 50,
		FallbackConfidence: ConfidenceSummary{
			Overall:            0.94,
			CellClassification: 0.92,
			Morphology:         0.96,
		},
		FallbackCounts: DifferentialCount{
			Neutrophils: 68,
			Lymphocytes: 22,
			Monocytes:   7,
			Eosinophils: 2,
			Basophils:   1,
			Platelets:   320000,
			RBCs:        4600000,
		},
		NormalRanges: DefaultNormalRanges(),
	}
}

// RangeFor returns the reference interval for a key, falling back to the
// built-in table when the configured map has no entry.
func (t Thresholds) RangeFor(key string) (NormalRange, bool) {
	if t.NormalRanges != nil {
		if r, ok := t.NormalRanges[key]; ok {
			return r, true
		}
	}
	r, ok := defaultNormalRanges[key]
	return r, ok
}
