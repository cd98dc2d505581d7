package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bloodcell-ai-server/internal/domain"
)

func newScorer() *RiskScorer {
	return NewRiskScorer(domain.DefaultThresholds())
}

func TestScore_NormalDifferential(t *testing.T) {
	s := newScorer()

	scores := s.Score(normalCounts())

	assert.Equal(t, 0, scores[domain.RiskBacterialInfection])
	assert.Equal(t, 0, scores[domain.RiskViralInfection])
	assert.Equal(t, 0, scores[domain.RiskHematologicalDisorder])
}

func TestScore_BacterialRisk(t *testing.T) {
	s := newScorer()

	counts := normalCounts()
	counts.Neutrophils = 80
	scores := s.Score(counts)
	assert.Equal(t, 60, scores[domain.RiskBacterialInfection])

	// At exactly 70 the score stays zero.
	counts.Neutrophils = 70
	scores = s.Score(counts)
	assert.Equal(t, 0, scores[domain.RiskBacterialInfection])
}

func TestScore_ViralRisk(t *testing.T) {
	s := newScorer()

	counts := normalCounts()
	counts.Neutrophils = 40
	counts.Lymphocytes = 52
	scores := s.Score(counts)
	assert.Equal(t, 80, scores[domain.RiskViralInfection])

	counts.Lymphocytes = 40
	scores = s.Score(counts)
	assert.Equal(t, 0, scores[domain.RiskViralInfection])
}

func TestScore_ClampedAt100(t *testing.T) {
	s := newScorer()

	counts := normalCounts()
	counts.Lymphocytes = 95
	counts.Neutrophils = 3

	scores := s.Score(counts)
	assert.Equal(t, 100, scores[domain.RiskViralInfection])
}

func TestScore_HematologicalCountsFarOutliersOnly(t *testing.T) {
	s := newScorer()

	// Platelets 20% below minimum is still inside the 0.8x band.
	counts := normalCounts()
	counts.Platelets = 120000
	scores := s.Score(counts)
	assert.Equal(t, 0, scores[domain.RiskHematologicalDisorder])

	// Two keys more than 20% outside their ranges score 15 each.
	counts.Platelets = 100000
	counts.RBCs = 3000000
	scores = s.Score(counts)
	assert.Equal(t, 30, scores[domain.RiskHematologicalDisorder])
}
