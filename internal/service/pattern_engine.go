package service

import (
	"fmt"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"github.com/bloodcell-ai-server/internal/domain"
)

// DiseasePatternEngine applies a fixed battery of rule-based detectors to
// one differential count. Each detector is stateless and threshold-driven:
// it either emits one hypothesis with confidence, severity and supporting
// findings, or abstains. Detectors are evaluated in a fixed order so that
// equal-confidence hypotheses rank deterministically.
type DiseasePatternEngine struct {
	logger     *logrus.Logger
	thresholds domain.Thresholds
	detectors  []detector
}

// detector evaluates one disease pattern against a differential count.
// A nil result means the pattern did not trigger.
type detector struct {
	name     string
	evaluate func(domain.DifferentialCount) *domain.DiseaseHypothesis
}

// NewDiseasePatternEngine creates a new pattern engine
func NewDiseasePatternEngine(logger *logrus.Logger, thresholds domain.Thresholds) *DiseasePatternEngine {
	e := &DiseasePatternEngine{
		logger:     logger,
		thresholds: thresholds,
	}

	// Evaluation order is the tie-break order for equal confidences.
	e.detectors = []detector{
		{name: "bacterial_infection", evaluate: e.checkBacterialInfection},
		{name: "viral_infection", evaluate: e.checkViralInfection},
		{name: "anemia", evaluate: e.checkAnemia},
		{name: "leukocytosis", evaluate: e.checkLeukocytosis},
		{name: "thrombocytopenia", evaluate: e.checkThrombocytopenia},
	}

	return e
}

// DetectDiseases runs every detector plus the morphology scan and returns
// hypotheses ranked by descending confidence together with the deduplicated
// abnormality findings. It is total: any well-formed differential produces
// a result, possibly with no hypotheses.
func (e *DiseasePatternEngine) DetectDiseases(counts domain.DifferentialCount) domain.DetectionResult {
	diseases := make([]domain.DiseaseHypothesis, 0, len(e.detectors))
	abnormalities := make([]string, 0, 16)

	for _, d := range e.detectors {
		hypothesis := d.evaluate(counts)
		if hypothesis == nil {
			continue
		}
		diseases = append(diseases, *hypothesis)
		abnormalities = append(abnormalities, hypothesis.Abnormalities...)
	}

	abnormalities = append(abnormalities, e.morphologyScan(counts)...)

	// Stable sort keeps detector evaluation order for equal confidences.
	sort.SliceStable(diseases, func(i, j int) bool {
		return diseases[i].Confidence > diseases[j].Confidence
	})

	result := domain.DetectionResult{
		Diseases:      diseases,
		Abnormalities: dedupeStrings(abnormalities),
	}

	e.logger.WithFields(logrus.Fields{
		"conditions":    len(result.Diseases),
		"abnormalities": len(result.Abnormalities),
	}).Info("Disease detection completed")

	return result
}

// checkBacterialInfection triggers on high neutrophils with low lymphocytes
func (e *DiseasePatternEngine) checkBacterialInfection(c domain.DifferentialCount) *domain.DiseaseHypothesis {
	if c.Neutrophils < 70 || c.Lymphocytes > 25 {
		return nil
	}

	confidence := clampConfidence(50+float64(c.Neutrophils-70)*2+float64(25-c.Lymphocytes)*1.5, 95)

	severity := domain.SeverityLow
	switch {
	case c.Neutrophils >= 80:
		severity = domain.SeverityHigh
	case c.Neutrophils >= 75:
		severity = domain.SeverityMedium
	}

	return &domain.DiseaseHypothesis{
		Name:       "Bacterial Infection",
		Confidence: confidence,
		Severity:   severity,
		Abnormalities: []string{
			fmt.Sprintf("Elevated neutrophil count (%d%%)", c.Neutrophils),
			fmt.Sprintf("Relative lymphopenia (%d%%)", c.Lymphocytes),
			"Left shift pattern (immature neutrophils)",
		},
	}
}

// checkViralInfection triggers on low neutrophils with high lymphocytes
func (e *DiseasePatternEngine) checkViralInfection(c domain.DifferentialCount) *domain.DiseaseHypothesis {
	if c.Neutrophils > 50 || c.Lymphocytes < 40 {
		return nil
	}

	confidence := clampConfidence(40+float64(50-c.Neutrophils)*1.5+float64(c.Lymphocytes-40)*2, 90)

	severity := domain.SeverityLow
	switch {
	case c.Lymphocytes >= 60:
		severity = domain.SeverityHigh
	case c.Lymphocytes >= 50:
		severity = domain.SeverityMedium
	}

	return &domain.DiseaseHypothesis{
		Name:       "Viral Infection",
		Confidence: confidence,
		Severity:   severity,
		Abnormalities: []string{
			fmt.Sprintf("Relative neutropenia (%d%%)", c.Neutrophils),
			fmt.Sprintf("Lymphocytosis (%d%%)", c.Lymphocytes),
			"Atypical lymphocytes present",
		},
	}
}

// checkAnemia triggers on an RBC count below the reference minimum.
// The severity tier also selects the Severe/Moderate/Mild name prefix.
func (e *DiseasePatternEngine) checkAnemia(c domain.DifferentialCount) *domain.DiseaseHypothesis {
	normalRange, ok := e.thresholds.RangeFor(domain.KeyRBCs)
	if !ok || c.RBCs >= normalRange.Min {
		return nil
	}

	deficitPct := float64(normalRange.Min-c.RBCs) / float64(normalRange.Min) * 100
	confidence := clampConfidence(30+deficitPct*2, 85)

	severity := domain.SeverityLow
	grade := "Mild"
	switch {
	case c.RBCs < 3000000:
		severity = domain.SeverityHigh
		grade = "Severe"
	case c.RBCs < 3500000:
		severity = domain.SeverityMedium
		grade = "Moderate"
	}

	return &domain.DiseaseHypothesis{
		Name:       grade + " Anemia",
		Confidence: confidence,
		Severity:   severity,
		Abnormalities: []string{
			fmt.Sprintf("Reduced red blood cell count (%s/μL)", humanize.Comma(int64(c.RBCs))),
			"Possible microcytic changes",
			"Hypochromic cells observed",
		},
	}
}

// checkLeukocytosis uses the neutrophil percentage as a proxy for an
// elevated total white-cell count.
func (e *DiseasePatternEngine) checkLeukocytosis(c domain.DifferentialCount) *domain.DiseaseHypothesis {
	if c.Neutrophils < 75 {
		return nil
	}

	confidence := clampConfidence(40+float64(c.Neutrophils-75)*3, 80)

	severity := domain.SeverityLow
	switch {
	case c.Neutrophils >= 85:
		severity = domain.SeverityHigh
	case c.Neutrophils >= 80:
		severity = domain.SeverityMedium
	}

	return &domain.DiseaseHypothesis{
		Name:       "Leukocytosis",
		Confidence: confidence,
		Severity:   severity,
		Abnormalities: []string{
			fmt.Sprintf("Markedly elevated neutrophil percentage (%d%%)", c.Neutrophils),
			"Possible left shift pattern",
			"Increased total white blood cell count",
		},
	}
}

// checkThrombocytopenia triggers on a platelet count below the reference minimum
func (e *DiseasePatternEngine) checkThrombocytopenia(c domain.DifferentialCount) *domain.DiseaseHypothesis {
	normalRange, ok := e.thresholds.RangeFor(domain.KeyPlatelets)
	if !ok || c.Platelets >= normalRange.Min {
		return nil
	}

	deficitPct := float64(normalRange.Min-c.Platelets) / float64(normalRange.Min) * 100
	confidence := clampConfidence(50+deficitPct*1.5, 90)

	severity := domain.SeverityLow
	switch {
	case c.Platelets < 50000:
		severity = domain.SeverityHigh
	case c.Platelets < 100000:
		severity = domain.SeverityMedium
	}

	return &domain.DiseaseHypothesis{
		Name:       "Thrombocytopenia",
		Confidence: confidence,
		Severity:   severity,
		Abnormalities: []string{
			fmt.Sprintf("Decreased platelet count (%s/μL)", humanize.Comma(int64(c.Platelets))),
			"Large platelet forms observed",
			"Possible bleeding tendency",
		},
	}
}

// morphologyScan sweeps every differential key with a configured reference
// range. Each key is judged strictly against its own range; the in-range
// note is emitted only for the two absolute-count keys.
func (e *DiseasePatternEngine) morphologyScan(c domain.DifferentialCount) []string {
	findings := make([]string, 0, 8)

	for _, key := range domain.AllCellKeys {
		value, ok := c.Value(key)
		if !ok {
			continue
		}
		normalRange, ok := e.thresholds.RangeFor(key)
		if !ok {
			continue
		}

		isPercentage := key != domain.KeyPlatelets && key != domain.KeyRBCs

		switch {
		case value < normalRange.Min:
			if isPercentage {
				findings = append(findings, fmt.Sprintf("Reduced %s percentage", key))
			} else {
				findings = append(findings, fmt.Sprintf("Low %s count", key))
			}
		case value > normalRange.Max:
			if isPercentage {
				findings = append(findings, fmt.Sprintf("Elevated %s percentage", key))
			} else {
				findings = append(findings, fmt.Sprintf("High %s count", key))
			}
		default:
			if key == domain.KeyPlatelets {
				findings = append(findings, "Normal platelet morphology")
			} else if key == domain.KeyRBCs {
				findings = append(findings, "Normal red blood cell morphology")
			}
		}
	}

	if c.Neutrophils > 70 {
		findings = append(findings,
			"Toxic granulation in neutrophils",
			"Nuclear hypersegmentation observed",
		)
	}
	if c.Lymphocytes > 40 {
		findings = append(findings, "Reactive lymphocytes present")
	}

	return findings
}

// clampConfidence truncates a raw confidence to an integer bounded by
// [0, ceiling].
func clampConfidence(raw float64, ceiling int) int {
	confidence := int(raw)
	if confidence > ceiling {
		return ceiling
	}
	if confidence < 0 {
		return 0
	}
	return confidence
}

// dedupeStrings removes duplicates while keeping first-seen order.
func dedupeStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
