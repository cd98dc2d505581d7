package domain

import (
	"time"
)

// Core Enums and Types

// CellClass identifies one of the cell classes the classifier scores.
// The order matches the classifier's output vector layout.
type CellClass int

const (
	ClassNeutrophil CellClass = iota
	ClassLymphocyte
	ClassMonocyte
	ClassEosinophil
	ClassBasophil
	ClassPlatelet
	ClassRBC

	NumCellClasses = 7
)

// NumLeukocyteClasses is the count of white-cell classes at the front of the
// prediction vector (neutrophil through basophil).
const NumLeukocyteClasses = 5

// String returns the differential-count key for the cell class.
func (c CellClass) String() string {
	switch c {
	case ClassNeutrophil:
		return KeyNeutrophils
	case ClassLymphocyte:
		return KeyLymphocytes
	case ClassMonocyte:
		return KeyMonocytes
	case ClassEosinophil:
		return KeyEosinophils
	case ClassBasophil:
		return KeyBasophils
	case ClassPlatelet:
		return KeyPlatelets
	case ClassRBC:
		return KeyRBCs
	}
	return "unknown"
}

// Differential-count keys.
const (
	KeyNeutrophils = "neutrophils"
	KeyLymphocytes = "lymphocytes"
	KeyMonocytes   = "monocytes"
	KeyEosinophils = "eosinophils"
	KeyBasophils   = "basophils"
	KeyPlatelets   = "platelets"
	KeyRBCs        = "rbcs"
)

// LeukocyteKeys lists the percentage-valued keys in canonical order.
var LeukocyteKeys = []string{
	KeyNeutrophils, KeyLymphocytes, KeyMonocytes, KeyEosinophils, KeyBasophils,
}

// AbsoluteKeys lists the per-microliter keys in canonical order.
var AbsoluteKeys = []string{KeyPlatelets, KeyRBCs}

// AllCellKeys lists every differential-count key in canonical order.
var AllCellKeys = append(append([]string{}, LeukocyteKeys...), AbsoluteKeys...)

// Prediction is one per-cell score vector produced by the classifier.
// Scores are not required to be normalized; the arg-max is the vote.
type Prediction []float64

// ArgMax returns the index and score of the highest-scoring class.
// An empty vector returns (-1, 0).
func (p Prediction) ArgMax() (int, float64) {
	if len(p) == 0 {
		return -1, 0
	}
	best := 0
	for i := 1; i < len(p); i++ {
		if p[i] > p[best] {
			best = i
		}
	}
	return best, p[best]
}

// DifferentialCount holds the aggregated cell differential: leukocyte
// subtypes as 0-100 percentages and platelets/RBCs as estimated absolute
// counts per microliter. Immutable once produced by the aggregator.
type DifferentialCount struct {
	Neutrophils int `json:"neutrophils"`
	Lymphocytes int `json:"lymphocytes"`
	Monocytes   int `json:"monocytes"`
	Eosinophils int `json:"eosinophils"`
	Basophils   int `json:"basophils"`
	Platelets   int `json:"platelets"`
	RBCs        int `json:"rbcs"`
}

// Value returns the count stored under a differential key.
func (d DifferentialCount) Value(key string) (int, bool) {
	switch key {
	case KeyNeutrophils:
		return d.Neutrophils, true
	case KeyLymphocytes:
		return d.Lymphocytes, true
	case KeyMonocytes:
		return d.Monocytes, true
	case KeyEosinophils:
		return d.Eosinophils, true
	case KeyBasophils:
		return d.Basophils, true
	case KeyPlatelets:
		return d.Platelets, true
	case KeyRBCs:
		return d.RBCs, true
	}
	return 0, false
}

// Severity buckets a hypothesis by the same signal used for its confidence.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// DiseaseHypothesis is a candidate condition emitted by a single detector.
// Confidence is clamped to [0,100]; never mutated after creation.
type DiseaseHypothesis struct {
	Name          string   `json:"name"`
	Confidence    int      `json:"confidence"`
	Severity      Severity `json:"severity"`
	Abnormalities []string `json:"abnormalities,omitempty"`
}

// DetectionResult is the pattern engine's output: hypotheses ranked by
// descending confidence plus the deduplicated abnormality findings.
type DetectionResult struct {
	Diseases      []DiseaseHypothesis `json:"diseases"`
	Abnormalities []string            `json:"abnormalities"`
}

// ConfidenceSummary summarizes classifier certainty across one analysis.
type ConfidenceSummary struct {
	Overall            float64 `json:"overall"`
	CellClassification float64 `json:"cell_classification"`
	Morphology         float64 `json:"morphology"`
}

// Risk score categories.
const (
	RiskBacterialInfection    = "bacterial_infection"
	RiskViralInfection        = "viral_infection"
	RiskHematologicalDisorder = "hematological_disorder"
)

// RiskScores maps a condition category to a 0-100 risk score. Computed
// independently of the disease hypotheses from the same differential.
type RiskScores map[string]int

// AnalysisReport aggregates everything the pipeline produced for one image.
type AnalysisReport struct {
	AnalysisID       string              `json:"analysis_id"`
	CellCounts       DifferentialCount   `json:"cell_counts"`
	Diseases         []DiseaseHypothesis `json:"diseases"`
	Abnormalities    []string            `json:"abnormalities"`
	ConfidenceScores ConfidenceSummary   `json:"confidence_scores"`
	RiskScores       RiskScores          `json:"risk_scores,omitempty"`
	TotalCells       int                 `json:"total_cells_detected"`
	ImagePath        string              `json:"image_path"`
	Timestamp        time.Time           `json:"timestamp"`
	Explanation      string              `json:"explanation,omitempty"`
	CreatedAt        time.Time           `json:"created_at,omitempty"`
}

// TopDisease returns the highest-confidence hypothesis, or nil if none.
func (r *AnalysisReport) TopDisease() *DiseaseHypothesis {
	if len(r.Diseases) == 0 {
		return nil
	}
	return &r.Diseases[0]
}

// FollowUp is one question/answer exchange about a stored report.
type FollowUp struct {
	AnalysisID string    `json:"analysis_id"`
	Question   string    `json:"question"`
	Answer     string    `json:"answer"`
	Timestamp  time.Time `json:"timestamp"`
}

// Analysis progress states.
const (
	StatusUploaded      = "uploaded"
	StatusPreprocessing = "preprocessing"
	StatusAnalyzing     = "analyzing"
	StatusDetecting     = "detecting"
	StatusFinalizing    = "finalizing"
	StatusCompleted     = "completed"
	StatusError         = "error"
)

// Progress describes where a background analysis currently stands.
type Progress struct {
	Status   string `json:"status"`
	Progress int    `json:"progress"`
	Stage    string `json:"stage"`
}

// AnalysisSummary is a lightweight listing entry for recent analyses.
type AnalysisSummary struct {
	AnalysisID string    `json:"analysis_id"`
	Timestamp  time.Time `json:"timestamp"`
	CreatedAt  time.Time `json:"created_at"`
}

// DailyCount is one day's analysis volume for the stats endpoint.
type DailyCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// StoreStats aggregates storage-level statistics.
type StoreStats struct {
	TotalAnalyses  int64        `json:"total_analyses"`
	TotalFollowUps int64        `json:"total_follow_up_questions"`
	DailyAnalyses  []DailyCount `json:"daily_analyses"`
}
