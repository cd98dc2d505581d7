package service

import (
	"github.com/bloodcell-ai-server/internal/domain"
)

// RiskScorer derives auxiliary 0-100 risk scores per condition category
// from a differential count. The formulas are tuned constants independent
// of the pattern engine's confidence math; the scores are persisted as a
// supplementary signal and are not part of the narrative.
type RiskScorer struct {
	thresholds domain.Thresholds
}

// NewRiskScorer creates a new risk scorer
func NewRiskScorer(thresholds domain.Thresholds) *RiskScorer {
	return &RiskScorer{thresholds: thresholds}
}

// Score computes the risk map for one differential count. Pure and total.
func (s *RiskScorer) Score(c domain.DifferentialCount) domain.RiskScores {
	scores := domain.RiskScores{
		domain.RiskBacterialInfection: 0,
		domain.RiskViralInfection:     0,
	}

	if c.Neutrophils > 70 {
		scores[domain.RiskBacterialInfection] = clampScore(float64(c.Neutrophils-50) * 2)
	}
	if c.Lymphocytes > 40 {
		scores[domain.RiskViralInfection] = clampScore(float64(c.Lymphocytes-20) * 2.5)
	}

	// A key counts toward the hematological score when it sits more than
	// 20% outside its reference range.
	outliers := 0
	for _, key := range domain.AllCellKeys {
		value, ok := c.Value(key)
		if !ok {
			continue
		}
		normalRange, ok := s.thresholds.RangeFor(key)
		if !ok {
			continue
		}
		if float64(value) < float64(normalRange.Min)*0.8 || float64(value) > float64(normalRange.Max)*1.2 {
			outliers++
		}
	}
	scores[domain.RiskHematologicalDisorder] = clampScore(float64(outliers) * 15)

	return scores
}

// clampScore bounds a raw score to [0, 100].
func clampScore(raw float64) int {
	score := int(raw)
	if score > 100 {
		return 100
	}
	if score < 0 {
		return 0
	}
	return score
}
