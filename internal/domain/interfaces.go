package domain

import (
	"context"
)

// CellClassifier is the cell-classification capability: given raw image
// bytes, produce one score vector per detected cell.
type CellClassifier interface {
	Classify(ctx context.Context, image []byte) ([]Prediction, error)
}

// TextGenerator is the language-model capability used for model-backed
// explanations. Available reports whether the capability can be invoked;
// absence is handled by falling back to deterministic narration, never
// treated as fatal.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error)
	Available() bool
}

// Store is the persistence capability for analysis reports and their
// follow-up exchanges.
type Store interface {
	// SaveReport stores a report, replacing any existing record with the
	// same analysis id.
	SaveReport(ctx context.Context, report *AnalysisReport) error

	// GetReport retrieves a report by analysis id. Returns (nil, nil) when
	// no report exists.
	GetReport(ctx context.Context, analysisID string) (*AnalysisReport, error)

	// UpdateExplanation sets or overwrites the narrative text of a report.
	UpdateExplanation(ctx context.Context, analysisID, explanation string) error

	// AppendFollowUp records one question/answer exchange for a report.
	AppendFollowUp(ctx context.Context, analysisID, question, answer string) error

	// ListFollowUps returns all exchanges for a report, oldest first.
	ListFollowUps(ctx context.Context, analysisID string) ([]FollowUp, error)

	// RecentAnalyses lists the most recently created reports.
	RecentAnalyses(ctx context.Context, limit int) ([]AnalysisSummary, error)

	// DeleteAnalysis removes a report and its follow-up exchanges.
	DeleteAnalysis(ctx context.Context, analysisID string) error

	// Stats returns storage-level statistics.
	Stats(ctx context.Context) (*StoreStats, error)

	// Close releases storage resources.
	Close() error
}

// ProgressTracker records per-analysis progress so clients can poll or
// stream it while the background pipeline runs.
type ProgressTracker interface {
	Set(ctx context.Context, analysisID string, p Progress) error
	Get(ctx context.Context, analysisID string) (Progress, bool, error)
}
