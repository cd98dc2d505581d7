package explain

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/bloodcell-ai-server/internal/domain"
)

// BuildExplanationPrompt constructs the fixed-structure hematology prompt
// embedding the differential (with units), the abnormality list and the
// ranked hypotheses with confidences.
func BuildExplanationPrompt(report *domain.AnalysisReport) string {
	c := report.CellCounts

	var b strings.Builder
	b.WriteString("As a medical AI assistant specializing in hematology, analyze the following blood cell analysis results and provide a comprehensive medical explanation:\n\n")

	b.WriteString("Blood Cell Differential Count:\n")
	fmt.Fprintf(&b, "- Neutrophils: %d%%\n", c.Neutrophils)
	fmt.Fprintf(&b, "- Lymphocytes: %d%%\n", c.Lymphocytes)
	fmt.Fprintf(&b, "- Monocytes: %d%%\n", c.Monocytes)
	fmt.Fprintf(&b, "- Eosinophils: %d%%\n", c.Eosinophils)
	fmt.Fprintf(&b, "- Basophils: %d%%\n", c.Basophils)

	b.WriteString("\nAbsolute Counts:\n")
	fmt.Fprintf(&b, "- Platelets: %s/μL\n", humanize.Comma(int64(c.Platelets)))
	fmt.Fprintf(&b, "- Red Blood Cells: %s/μL\n", humanize.Comma(int64(c.RBCs)))

	b.WriteString("\nDetected Abnormalities:\n")
	for _, abnormality := range report.Abnormalities {
		fmt.Fprintf(&b, "- %s\n", abnormality)
	}

	b.WriteString("\nPotential Conditions Identified:\n")
	for _, disease := range report.Diseases {
		fmt.Fprintf(&b, "- %s (confidence: %d%%)\n", disease.Name, disease.Confidence)
	}

	b.WriteString("\nPlease provide a detailed medical interpretation including:\n")
	b.WriteString("1. Analysis of the white blood cell differential\n")
	b.WriteString("2. Assessment of red blood cell and platelet counts\n")
	b.WriteString("3. Clinical significance of findings\n")
	b.WriteString("4. Potential underlying conditions\n")
	b.WriteString("5. Recommended follow-up actions\n\n")
	b.WriteString("Medical Interpretation:")

	return b.String()
}

// BuildFollowUpPrompt constructs the short context-prefixed prompt used for
// model-backed follow-up answers.
func BuildFollowUpPrompt(question string, report *domain.AnalysisReport) string {
	c := report.CellCounts

	var b strings.Builder
	b.WriteString("Based on the blood analysis results showing:\n")
	fmt.Fprintf(&b, "- Neutrophils: %d%%\n", c.Neutrophils)
	fmt.Fprintf(&b, "- Lymphocytes: %d%%\n", c.Lymphocytes)
	fmt.Fprintf(&b, "- Other findings: %s\n\n", strings.Join(report.Abnormalities, ", "))
	fmt.Fprintf(&b, "Patient Question: %s\n\n", question)
	b.WriteString("Medical Response:")

	return b.String()
}
