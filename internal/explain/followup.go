package explain

import (
	"strings"
)

// Canned answers for the keyword-matched follow-up categories. Returned
// verbatim when the language-model capability is unavailable.
const (
	answerNeutrophilElevated = "Elevated neutrophil count typically indicates your body is fighting a bacterial infection or responding to inflammation. This is a normal immune response, but the underlying cause should be identified and treated appropriately."

	answerConcern = "While some findings may be outside normal ranges, many variations can be temporary or related to recent illness, stress, or other factors. The most important step is to discuss these results with your healthcare provider who can evaluate them in context of your symptoms and medical history."

	answerFollowUp = "Based on these results, your doctor may recommend repeat blood work in a few weeks, additional tests to investigate specific findings, or treatment if an active condition is identified. The specific follow-up will depend on your symptoms and clinical presentation."

	answerNormalRange = "Normal ranges can vary slightly between laboratories, but generally neutrophils should be 50-70%, lymphocytes 20-40%, and platelets 150,000-450,000/μL. Your results are being compared to these established reference ranges."

	answerGeneric = "That's an excellent question. For specific medical advice about your results, I recommend discussing this directly with your healthcare provider who can provide personalized guidance based on your complete medical picture."

	// answerUnavailable is returned when even the fallback path fails to
	// produce an answer for a question.
	answerUnavailable = "I apologize, but I'm unable to process your question at the moment. Please consult with your healthcare provider for specific medical advice."
)

// CannedAnswer matches a free-text question against the fixed keyword
// categories and returns the corresponding answer. This is a flat
// classify-then-template dispatch: first matching category wins.
func CannedAnswer(question string) string {
	q := strings.ToLower(question)

	switch {
	case strings.Contains(q, "neutrophil") && strings.Contains(q, "elevated"):
		return answerNeutrophilElevated
	case strings.Contains(q, "concerned") || strings.Contains(q, "worry"):
		return answerConcern
	case strings.Contains(q, "follow-up") || strings.Contains(q, "next"):
		return answerFollowUp
	case strings.Contains(q, "normal") && strings.Contains(q, "range"):
		return answerNormalRange
	}

	return answerGeneric
}
