package explain

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"github.com/bloodcell-ai-server/internal/domain"
)

// TemplateGenerator renders the narrative through a fixed template with
// conditional clauses keyed off the same thresholds the pattern engine
// uses. It is the required fallback strategy and is total over any
// well-formed differential.
type TemplateGenerator struct {
	logger *logrus.Logger
}

// NewTemplateGenerator creates the deterministic narrative generator
func NewTemplateGenerator(logger *logrus.Logger) *TemplateGenerator {
	return &TemplateGenerator{logger: logger}
}

// Explain builds the full structured narrative for one report.
func (g *TemplateGenerator) Explain(report *domain.AnalysisReport) string {
	c := report.CellCounts

	var b strings.Builder
	b.WriteString("**Comprehensive Blood Cell Analysis Report**\n\n")

	g.writeDifferentialSection(&b, c)
	g.writeCountAssessmentSection(&b, c)
	g.writeClinicalInterpretation(&b, report)
	g.writeMorphologySection(&b, report.Abnormalities)
	g.writeRecommendations(&b, c)
	g.writeFooter(&b, report.ConfidenceScores)

	return b.String()
}

// writeDifferentialSection interprets the white-cell differential.
func (g *TemplateGenerator) writeDifferentialSection(b *strings.Builder, c domain.DifferentialCount) {
	b.WriteString("**White Blood Cell Differential Analysis:**\n")

	var neutRange, neutMeaning string
	switch {
	case c.Neutrophils > 70:
		neutRange = "is elevated above normal range (50-70%)"
	case c.Neutrophils >= 50:
		neutRange = "falls within normal range (50-70%)"
	default:
		neutRange = "is below normal range (50-70%)"
	}
	switch {
	case c.Neutrophils > 65:
		neutMeaning = "suggests an active immune response, commonly seen in bacterial infections or inflammatory conditions"
	case c.Neutrophils >= 50:
		neutMeaning = "indicates normal immune system function"
	default:
		neutMeaning = "may indicate viral infection or immune suppression"
	}
	fmt.Fprintf(b, "The neutrophil count of %d%% %s. This %s.\n\n", c.Neutrophils, neutRange, neutMeaning)

	var lymphRange, lymphMeaning string
	switch {
	case c.Lymphocytes >= 20 && c.Lymphocytes <= 40:
		lymphRange = "is within normal range"
	case c.Lymphocytes < 20:
		lymphRange = "is below normal range"
	default:
		lymphRange = "is elevated above normal range"
	}
	switch {
	case c.Lymphocytes < 25 && c.Neutrophils > 65:
		lymphMeaning = "This relative lymphopenia often accompanies acute bacterial infections when neutrophilia is present."
	case c.Lymphocytes >= 20 && c.Lymphocytes <= 40:
		lymphMeaning = "This supports normal adaptive immune function."
	default:
		lymphMeaning = "This lymphocytosis may indicate viral infection or chronic inflammatory conditions."
	}
	fmt.Fprintf(b, "The lymphocyte percentage of %d%% %s. %s\n\n", c.Lymphocytes, lymphRange, lymphMeaning)
}

// writeCountAssessmentSection covers red cells and platelets.
func (g *TemplateGenerator) writeCountAssessmentSection(b *strings.Builder, c domain.DifferentialCount) {
	b.WriteString("**Red Blood Cell and Platelet Assessment:**\n")

	var rbcRange, rbcMeaning string
	switch {
	case c.RBCs >= 4200000 && c.RBCs <= 5400000:
		rbcRange = "falls within normal range (4.2-5.4 million/μL)"
		rbcMeaning = "adequate oxygen-carrying capacity"
	case c.RBCs < 4200000:
		rbcRange = "is below normal range, suggesting possible anemia"
		rbcMeaning = "potentially compromised oxygen transport"
	default:
		rbcRange = "is above normal range, indicating possible polycythemia"
		rbcMeaning = "possible increased blood viscosity"
	}
	fmt.Fprintf(b, "Red blood cell count of %s/μL %s, indicating %s.\n\n",
		humanize.Comma(int64(c.RBCs)), rbcRange, rbcMeaning)

	var pltRange, pltMeaning string
	switch {
	case c.Platelets >= 150000 && c.Platelets <= 450000:
		pltRange = "is within normal range (150,000-450,000/μL)"
		pltMeaning = "ensuring proper hemostatic function"
	case c.Platelets < 150000:
		pltRange = "is below normal range, indicating thrombocytopenia"
		pltMeaning = "which may increase bleeding risk"
	default:
		pltRange = "is above normal range, suggesting thrombocytosis"
		pltMeaning = "which may increase thrombotic risk"
	}
	fmt.Fprintf(b, "Platelet count of %s/μL %s, %s.\n\n",
		humanize.Comma(int64(c.Platelets)), pltRange, pltMeaning)
}

// writeClinicalInterpretation names the top-ranked hypothesis, or states
// that no pathological indicators were found.
func (g *TemplateGenerator) writeClinicalInterpretation(b *strings.Builder, report *domain.AnalysisReport) {
	b.WriteString("**Clinical Interpretation:**\n")

	primary := report.TopDisease()
	if primary == nil {
		b.WriteString("The blood sample demonstrates normal cellular patterns with no significant pathological indicators identified by the AI analysis.\n\n")
		return
	}

	fmt.Fprintf(b, "The AI analysis has identified potential %s with %d%% confidence. ",
		strings.ToLower(primary.Name), primary.Confidence)

	lowerName := strings.ToLower(primary.Name)
	switch {
	case strings.Contains(lowerName, "bacterial infection"):
		b.WriteString("This finding is strongly supported by the neutrophilic leukocytosis pattern observed in the differential count. The elevated neutrophil percentage combined with relative lymphopenia is a classic hallmark of acute bacterial infection.")
	case strings.Contains(lowerName, "anemia"):
		b.WriteString("This is consistent with the observed red blood cell parameters and may require further investigation into underlying causes such as iron deficiency, chronic disease, or blood loss.")
	default:
		b.WriteString("This finding correlates with the observed cellular morphology patterns and differential count abnormalities detected by the classification model.")
	}
	b.WriteString("\n\n")
}

// writeMorphologySection lists the abnormality findings verbatim.
func (g *TemplateGenerator) writeMorphologySection(b *strings.Builder, abnormalities []string) {
	b.WriteString("**Morphological Findings:**\n")
	b.WriteString("Advanced computer vision analysis has identified the following cellular characteristics:\n")
	for _, abnormality := range abnormalities {
		fmt.Fprintf(b, "• %s\n", abnormality)
	}
	b.WriteString("\n")
}

// writeRecommendations emits the numbered follow-up clauses chosen by the
// same threshold ladder as the detectors.
func (g *TemplateGenerator) writeRecommendations(b *strings.Builder, c domain.DifferentialCount) {
	b.WriteString("**Clinical Recommendations:**\n")
	b.WriteString("1. **Clinical Correlation:** These laboratory findings should be interpreted in the context of patient symptoms, medical history, and physical examination findings.\n\n")

	var followUp string
	switch {
	case c.Neutrophils > 70:
		followUp = "Consider additional laboratory studies including blood culture, inflammatory markers (ESR, CRP), and comprehensive metabolic panel if clinical symptoms suggest infection."
	case c.Neutrophils >= 50:
		followUp = "Routine monitoring may be sufficient given normal parameters."
	default:
		followUp = "Consider viral studies and autoimmune markers if clinical presentation warrants."
	}
	fmt.Fprintf(b, "2. **Follow-up Testing:** %s\n\n", followUp)

	countsNormal := c.Platelets >= 150000 && c.Platelets <= 450000 &&
		c.RBCs >= 4200000 && c.RBCs <= 5400000

	var monitoring string
	switch {
	case c.Neutrophils > 70:
		monitoring = "Serial blood counts over 24-48 hours to monitor response to treatment if infection is suspected."
	case countsNormal:
		monitoring = "Repeat complete blood count in 3-6 months as part of routine health maintenance."
	default:
		monitoring = "Follow-up blood work in 2-4 weeks to assess for improvement or progression."
	}
	fmt.Fprintf(b, "3. **Monitoring Protocol:** %s\n\n", monitoring)

	wbcAbnormal := c.Neutrophils < 50 || c.Neutrophils > 70 ||
		c.Lymphocytes < 20 || c.Lymphocytes > 40

	var consultation string
	switch {
	case c.Neutrophils > 75:
		consultation = "Infectious disease consultation may be warranted if fever or signs of systemic infection are present."
	case wbcAbnormal:
		consultation = "Hematology referral recommended if abnormal findings persist on repeat testing."
	default:
		consultation = "No immediate specialist referral required based on current findings."
	}
	fmt.Fprintf(b, "4. **Specialist Consultation:** %s\n\n", consultation)
}

// writeFooter appends the quality notes and the fixed disclaimer.
func (g *TemplateGenerator) writeFooter(b *strings.Builder, confidence domain.ConfidenceSummary) {
	b.WriteString("**Quality Assurance Notes:**\n")
	fmt.Fprintf(b, "This analysis was performed using a deep learning cell-classification model with %.1f%% overall confidence. The medical interpretation was generated from established hematological reference ranges.\n\n",
		confidence.Overall*100)

	b.WriteString("**Important Disclaimer:**\n")
	b.WriteString("This AI-generated analysis serves as a diagnostic aid and should not replace clinical judgment. All findings must be correlated with patient presentation and confirmed through appropriate clinical evaluation by qualified healthcare professionals.")
}
