package classify

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/bloodcell-ai-server/internal/domain"
)

// mockVotes is the fixed per-class cell tally the mock emits: a plausible
// healthy smear whose aggregated differential lands inside every reference
// range. RBC votes are chosen so the scaled absolute count stays in range.
var mockVotes = map[domain.CellClass]int{
	domain.ClassNeutrophil: 68,
	domain.ClassLymphocyte: 22,
	domain.ClassMonocyte:   7,
	domain.ClassEosinophil: 2,
	domain.ClassBasophil:   1,
	domain.ClassPlatelet:   160,
	domain.ClassRBC:        153,
}

// MockClassifier produces a deterministic prediction set regardless of
// input. It stands in for the inference endpoint in demos and when no
// endpoint is configured, so the rest of the pipeline always has input.
type MockClassifier struct {
	logger *logrus.Logger
}

// NewMockClassifier creates the deterministic stand-in classifier.
func NewMockClassifier(logger *logrus.Logger) *MockClassifier {
	return &MockClassifier{logger: logger}
}

// Classify returns the fixed prediction set. The image bytes are ignored;
// only their presence is checked by the upload handler.
func (m *MockClassifier) Classify(_ context.Context, _ []byte) ([]domain.Prediction, error) {
	total := 0
	for _, votes := range mockVotes {
		total += votes
	}

	predictions := make([]domain.Prediction, 0, total)
	for class := domain.CellClass(0); class < domain.NumCellClasses; class++ {
		for i := 0; i < mockVotes[class]; i++ {
			predictions = append(predictions, oneHot(class, i))
		}
	}

	m.logger.WithField("cells", len(predictions)).Debug("Produced mock predictions")
	return predictions, nil
}

// oneHot builds a score vector dominated by the given class. The winning
// score cycles through a small deterministic spread so confidence
// summaries are not degenerate, with the remainder split evenly.
func oneHot(class domain.CellClass, seq int) domain.Prediction {
	winning := 0.88 + float64(seq%5)*0.02

	scores := make(domain.Prediction, domain.NumCellClasses)
	rest := (1 - winning) / float64(domain.NumCellClasses-1)
	for i := range scores {
		scores[i] = rest
	}
	scores[class] = winning
	return scores
}
