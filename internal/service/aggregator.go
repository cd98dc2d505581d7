package service

import (
	"github.com/sirupsen/logrus"

	"github.com/bloodcell-ai-server/internal/domain"
)

// CellCountAggregator converts raw per-cell predictions into a differential
// count plus a confidence summary. It is a pure function of its input: the
// same prediction sequence always yields the same differential.
type CellCountAggregator struct {
	logger     *logrus.Logger
	thresholds domain.Thresholds
}

// NewCellCountAggregator creates a new aggregator with the given thresholds
func NewCellCountAggregator(logger *logrus.Logger, thresholds domain.Thresholds) *CellCountAggregator {
	return &CellCountAggregator{
		logger:     logger,
		thresholds: thresholds,
	}
}

// Aggregate tallies arg-max votes per cell class and derives the
// differential count and confidence summary. An empty prediction sequence
// is the defined degraded-input case and yields the configured fallbacks
// rather than an error.
func (a *CellCountAggregator) Aggregate(predictions []domain.Prediction) (domain.DifferentialCount, domain.ConfidenceSummary) {
	if len(predictions) == 0 {
		a.logger.Warn("Empty prediction sequence, using fallback differential")
		return a.thresholds.FallbackCounts, a.thresholds.FallbackConfidence
	}

	var votes [domain.NumCellClasses]int
	for _, pred := range predictions {
		class, _ := pred.ArgMax()
		if class >= 0 && class < domain.NumCellClasses {
			votes[class]++
		}
	}

	// Leukocyte percentages are computed against the white-cell vote total
	// only; platelet and RBC votes do not dilute them.
	wbcTotal := 0
	for i := 0; i < domain.NumLeukocyteClasses; i++ {
		wbcTotal += votes[i]
	}

	pct := func(class domain.CellClass) int {
		if wbcTotal == 0 {
			return 0
		}
		return votes[class] * 100 / wbcTotal
	}

	counts := domain.DifferentialCount{
		Neutrophils: pct(domain.ClassNeutrophil),
		Lymphocytes: pct(domain.ClassLymphocyte),
		Monocytes:   pct(domain.ClassMonocyte),
		Eosinophils: pct(domain.ClassEosinophil),
		Basophils:   pct(domain.ClassBasophil),
		Platelets:   votes[domain.ClassPlatelet] * a.thresholds.PlateletScale,
		RBCs:        votes[domain.ClassRBC] * a.thresholds.RBCScale,
	}

	confidence := a.summarizeConfidence(predictions)

	a.logger.WithFields(logrus.Fields{
		"predictions": len(predictions),
		"wbc_votes":   wbcTotal,
		"neutrophils": counts.Neutrophils,
		"lymphocytes": counts.Lymphocytes,
		"overall":     confidence.Overall,
	}).Debug("Aggregated cell predictions")

	return counts, confidence
}

// summarizeConfidence computes the overall mean max-score plus the two
// windowed sub-scores (first N predictions, next N predictions).
func (a *CellCountAggregator) summarizeConfidence(predictions []domain.Prediction) domain.ConfidenceSummary {
	window := a.thresholds.ConfidenceWindow
	if window <= 0 {
		window = len(predictions)
	}

	firstEnd := min(window, len(predictions))
	secondEnd := min(2*window, len(predictions))

	return domain.ConfidenceSummary{
		Overall:            meanMaxScore(predictions),
		CellClassification: meanMaxScore(predictions[:firstEnd]),
		Morphology:         meanMaxScore(predictions[firstEnd:secondEnd]),
	}
}

// meanMaxScore averages each prediction's highest class score.
// An empty slice yields 0.
func meanMaxScore(predictions []domain.Prediction) float64 {
	if len(predictions) == 0 {
		return 0
	}
	var sum float64
	for _, pred := range predictions {
		_, score := pred.ArgMax()
		sum += score
	}
	return sum / float64(len(predictions))
}
