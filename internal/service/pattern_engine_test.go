package service

import (
	"sort"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bloodcell-ai-server/internal/domain"
)

func newEngine() *DiseasePatternEngine {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return NewDiseasePatternEngine(logger, domain.DefaultThresholds())
}

func normalCounts() domain.DifferentialCount {
	return domain.DifferentialCount{
		Neutrophils: 60, Lymphocytes: 30, Monocytes: 6,
		Eosinophils: 3, Basophils: 1,
		Platelets: 300000, RBCs: 4800000,
	}
}

func findDisease(diseases []domain.DiseaseHypothesis, name string) *domain.DiseaseHypothesis {
	for i := range diseases {
		if diseases[i].Name == name {
			return &diseases[i]
		}
	}
	return nil
}

func TestDetectDiseases_NormalDifferentialHasNoHypotheses(t *testing.T) {
	e := newEngine()

	result := e.DetectDiseases(normalCounts())

	assert.Empty(t, result.Diseases)
	assert.Contains(t, result.Abnormalities, "Normal platelet morphology")
	assert.Contains(t, result.Abnormalities, "Normal red blood cell morphology")
}

func TestDetectDiseases_BacterialBoundaryAt70(t *testing.T) {
	e := newEngine()

	// Neutrophils 68 with lymphocytes 22 sits below the trigger threshold.
	counts := normalCounts()
	counts.Neutrophils = 68
	counts.Lymphocytes = 22

	result := e.DetectDiseases(counts)
	assert.Nil(t, findDisease(result.Diseases, "Bacterial Infection"))
}

func TestDetectDiseases_BacterialInfection(t *testing.T) {
	e := newEngine()

	counts := normalCounts()
	counts.Neutrophils = 80
	counts.Lymphocytes = 15

	result := e.DetectDiseases(counts)

	bacterial := findDisease(result.Diseases, "Bacterial Infection")
	require.NotNil(t, bacterial)
	assert.Equal(t, 85, bacterial.Confidence)
	assert.Equal(t, domain.SeverityHigh, bacterial.Severity)
	assert.Contains(t, bacterial.Abnormalities, "Elevated neutrophil count (80%)")
	assert.Contains(t, bacterial.Abnormalities, "Relative lymphopenia (15%)")
	assert.Contains(t, bacterial.Abnormalities, "Left shift pattern (immature neutrophils)")

	// Viral never fires alongside bacterial; the triggers are disjoint.
	assert.Nil(t, findDisease(result.Diseases, "Viral Infection"))
}

func TestDetectDiseases_BacterialConfidenceCeiling(t *testing.T) {
	e := newEngine()

	counts := normalCounts()
	counts.Neutrophils = 95
	counts.Lymphocytes = 3

	result := e.DetectDiseases(counts)
	bacterial := findDisease(result.Diseases, "Bacterial Infection")
	require.NotNil(t, bacterial)
	assert.Equal(t, 95, bacterial.Confidence)
}

func TestDetectDiseases_ViralInfection(t *testing.T) {
	e := newEngine()

	counts := normalCounts()
	counts.Neutrophils = 40
	counts.Lymphocytes = 50

	result := e.DetectDiseases(counts)

	viral := findDisease(result.Diseases, "Viral Infection")
	require.NotNil(t, viral)
	assert.Equal(t, 75, viral.Confidence)
	assert.Equal(t, domain.SeverityMedium, viral.Severity)
	assert.Contains(t, viral.Abnormalities, "Lymphocytosis (50%)")
	assert.Contains(t, result.Abnormalities, "Reactive lymphocytes present")
}

func TestDetectDiseases_SevereAnemia(t *testing.T) {
	e := newEngine()

	counts := normalCounts()
	counts.RBCs = 2900000

	result := e.DetectDiseases(counts)

	anemia := findDisease(result.Diseases, "Severe Anemia")
	require.NotNil(t, anemia)
	assert.Equal(t, domain.SeverityHigh, anemia.Severity)
	assert.Equal(t, 85, anemia.Confidence)
	assert.Contains(t, anemia.Abnormalities, "Reduced red blood cell count (2,900,000/μL)")
}

func TestDetectDiseases_AnemiaGrades(t *testing.T) {
	e := newEngine()

	cases := []struct {
		rbcs     int
		name     string
		severity domain.Severity
	}{
		{4000000, "Mild Anemia", domain.SeverityLow},
		{3200000, "Moderate Anemia", domain.SeverityMedium},
		{2500000, "Severe Anemia", domain.SeverityHigh},
	}

	for _, tc := range cases {
		counts := normalCounts()
		counts.RBCs = tc.rbcs

		result := e.DetectDiseases(counts)
		hypothesis := findDisease(result.Diseases, tc.name)
		require.NotNil(t, hypothesis, "rbcs=%d", tc.rbcs)
		assert.Equal(t, tc.severity, hypothesis.Severity)
	}
}

func TestDetectDiseases_Thrombocytopenia(t *testing.T) {
	e := newEngine()

	counts := normalCounts()
	counts.Platelets = 40000

	result := e.DetectDiseases(counts)

	thrombo := findDisease(result.Diseases, "Thrombocytopenia")
	require.NotNil(t, thrombo)
	assert.Equal(t, 90, thrombo.Confidence)
	assert.Equal(t, domain.SeverityHigh, thrombo.Severity)
	assert.Contains(t, thrombo.Abnormalities, "Decreased platelet count (40,000/μL)")
}

func TestDetectDiseases_LeukocytosisAccompaniesBacterial(t *testing.T) {
	e := newEngine()

	counts := normalCounts()
	counts.Neutrophils = 80
	counts.Lymphocytes = 15

	result := e.DetectDiseases(counts)

	leuko := findDisease(result.Diseases, "Leukocytosis")
	require.NotNil(t, leuko)
	assert.Equal(t, 55, leuko.Confidence)
	assert.Equal(t, domain.SeverityMedium, leuko.Severity)
}

func TestDetectDiseases_RankedByDescendingConfidence(t *testing.T) {
	e := newEngine()

	counts := normalCounts()
	counts.Neutrophils = 82
	counts.Lymphocytes = 12
	counts.Platelets = 90000
	counts.RBCs = 3300000

	result := e.DetectDiseases(counts)
	require.GreaterOrEqual(t, len(result.Diseases), 3)

	assert.True(t, sort.SliceIsSorted(result.Diseases, func(i, j int) bool {
		return result.Diseases[i].Confidence > result.Diseases[j].Confidence
	}))
}

func TestDetectDiseases_AbnormalitiesDeduplicated(t *testing.T) {
	e := newEngine()

	counts := normalCounts()
	counts.Neutrophils = 80
	counts.Lymphocytes = 15

	result := e.DetectDiseases(counts)

	seen := make(map[string]int)
	for _, finding := range result.Abnormalities {
		seen[finding]++
	}
	for finding, n := range seen {
		assert.Equal(t, 1, n, "duplicated finding: %s", finding)
	}
}

func TestDetectDiseases_MorphologyNotesForHighNeutrophils(t *testing.T) {
	e := newEngine()

	counts := normalCounts()
	counts.Neutrophils = 75
	counts.Lymphocytes = 20

	result := e.DetectDiseases(counts)
	assert.Contains(t, result.Abnormalities, "Toxic granulation in neutrophils")
	assert.Contains(t, result.Abnormalities, "Nuclear hypersegmentation observed")
	assert.Contains(t, result.Abnormalities, "Elevated neutrophils percentage")
}

func TestDetectDiseases_ConfidenceMonotonicInNeutrophils(t *testing.T) {
	e := newEngine()

	last := 0
	for n := 70; n <= 95; n++ {
		counts := normalCounts()
		counts.Neutrophils = n
		counts.Lymphocytes = 20

		result := e.DetectDiseases(counts)
		bacterial := findDisease(result.Diseases, "Bacterial Infection")
		require.NotNil(t, bacterial, "neutrophils=%d", n)
		assert.GreaterOrEqual(t, bacterial.Confidence, last)
		last = bacterial.Confidence
	}
}
