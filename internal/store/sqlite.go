// Package store persists analysis reports and their follow-up exchanges.
// Structured report fields are stored as JSON-serialized columns; two
// backends implement the same interface, selected by configuration.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/bloodcell-ai-server/internal/domain"
)

// SQLiteStore implements the Store interface using SQLite. This is the
// default backend for single-instance deployments.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore creates a new SQLite report store.
// It creates the database file and schema if they don't exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := createSQLiteSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// createSQLiteSchema creates the database tables and indexes.
func createSQLiteSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS analysis_results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		analysis_id TEXT UNIQUE NOT NULL,
		cell_counts TEXT NOT NULL,
		diseases TEXT NOT NULL,
		abnormalities TEXT NOT NULL,
		confidence_scores TEXT NOT NULL,
		risk_scores TEXT NOT NULL DEFAULT '{}',
		total_cells INTEGER NOT NULL DEFAULT 0,
		image_path TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		explanation TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS follow_up_questions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		analysis_id TEXT NOT NULL,
		question TEXT NOT NULL,
		answer TEXT NOT NULL,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (analysis_id) REFERENCES analysis_results (analysis_id)
	);

	CREATE INDEX IF NOT EXISTS idx_results_created_at ON analysis_results(created_at);
	CREATE INDEX IF NOT EXISTS idx_followups_analysis_id ON follow_up_questions(analysis_id);
	`

	_, err := db.Exec(schema)
	return err
}

// SaveReport stores a report, replacing any existing record with the same
// analysis id.
func (s *SQLiteStore) SaveReport(ctx context.Context, report *domain.AnalysisReport) error {
	columns, err := encodeReportColumns(report)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO analysis_results
		(analysis_id, cell_counts, diseases, abnormalities, confidence_scores, risk_scores, total_cells, image_path, timestamp, explanation)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		report.AnalysisID,
		columns.cellCounts,
		columns.diseases,
		columns.abnormalities,
		columns.confidenceScores,
		columns.riskScores,
		report.TotalCells,
		report.ImagePath,
		report.Timestamp.Format(time.RFC3339),
		nullableString(report.Explanation),
	)
	if err != nil {
		return fmt.Errorf("failed to save analysis result: %w", err)
	}
	return nil
}

// GetReport retrieves a report by analysis id. Returns (nil, nil) when no
// report exists.
func (s *SQLiteStore) GetReport(ctx context.Context, analysisID string) (*domain.AnalysisReport, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT analysis_id, cell_counts, diseases, abnormalities, confidence_scores, risk_scores, total_cells, image_path, timestamp, explanation, created_at
		FROM analysis_results
		WHERE analysis_id = ?
	`, analysisID)

	report, err := scanReport(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan analysis result: %w", err)
	}
	return report, nil
}

// UpdateExplanation sets or overwrites the narrative text of a report.
func (s *SQLiteStore) UpdateExplanation(ctx context.Context, analysisID, explanation string) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE analysis_results SET explanation = ? WHERE analysis_id = ?",
		explanation, analysisID,
	)
	if err != nil {
		return fmt.Errorf("failed to update explanation: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("analysis %s not found", analysisID)
	}
	return nil
}

// AppendFollowUp records one question/answer exchange for a report.
func (s *SQLiteStore) AppendFollowUp(ctx context.Context, analysisID, question, answer string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO follow_up_questions (analysis_id, question, answer, timestamp)
		VALUES (?, ?, ?, ?)
	`, analysisID, question, answer, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save follow-up question: %w", err)
	}
	return nil
}

// ListFollowUps returns all exchanges for a report, oldest first.
func (s *SQLiteStore) ListFollowUps(ctx context.Context, analysisID string) ([]domain.FollowUp, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT question, answer, timestamp FROM follow_up_questions
		WHERE analysis_id = ? ORDER BY timestamp ASC, id ASC
	`, analysisID)
	if err != nil {
		return nil, fmt.Errorf("failed to query follow-up questions: %w", err)
	}
	defer rows.Close()

	var result []domain.FollowUp
	for rows.Next() {
		fu := domain.FollowUp{AnalysisID: analysisID}
		if err := rows.Scan(&fu.Question, &fu.Answer, &fu.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan follow-up question: %w", err)
		}
		result = append(result, fu)
	}
	return result, rows.Err()
}

// RecentAnalyses lists the most recently created reports.
func (s *SQLiteStore) RecentAnalyses(ctx context.Context, limit int) ([]domain.AnalysisSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT analysis_id, timestamp, created_at FROM analysis_results
		ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent analyses: %w", err)
	}
	defer rows.Close()

	var result []domain.AnalysisSummary
	for rows.Next() {
		var summary domain.AnalysisSummary
		var timestamp string
		if err := rows.Scan(&summary.AnalysisID, &timestamp, &summary.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan analysis summary: %w", err)
		}
		summary.Timestamp, _ = time.Parse(time.RFC3339, timestamp)
		result = append(result, summary)
	}
	return result, rows.Err()
}

// DeleteAnalysis removes a report and its follow-up exchanges. The
// follow-ups go first so the foreign key never dangles.
func (s *SQLiteStore) DeleteAnalysis(ctx context.Context, analysisID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM follow_up_questions WHERE analysis_id = ?", analysisID); err != nil {
		return fmt.Errorf("failed to delete follow-up questions: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM analysis_results WHERE analysis_id = ?", analysisID); err != nil {
		return fmt.Errorf("failed to delete analysis result: %w", err)
	}

	return tx.Commit()
}

// Stats returns totals plus per-day analysis counts for the last 7 days
// with data.
func (s *SQLiteStore) Stats(ctx context.Context) (*domain.StoreStats, error) {
	stats := &domain.StoreStats{DailyAnalyses: []domain.DailyCount{}}

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM analysis_results").Scan(&stats.TotalAnalyses); err != nil {
		return nil, fmt.Errorf("failed to count analyses: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM follow_up_questions").Scan(&stats.TotalFollowUps); err != nil {
		return nil, fmt.Errorf("failed to count follow-up questions: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT DATE(created_at) as date, COUNT(*) as count
		FROM analysis_results
		GROUP BY DATE(created_at)
		ORDER BY date DESC
		LIMIT 7
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily counts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var dc domain.DailyCount
		if err := rows.Scan(&dc.Date, &dc.Count); err != nil {
			return nil, fmt.Errorf("failed to scan daily count: %w", err)
		}
		stats.DailyAnalyses = append(stats.DailyAnalyses, dc)
	}
	return stats, rows.Err()
}

// Close closes the store and releases resources.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// reportColumns holds the JSON-serialized structured columns of one row.
type reportColumns struct {
	cellCounts       string
	diseases         string
	abnormalities    string
	confidenceScores string
	riskScores       string
}

// encodeReportColumns serializes the structured report fields. Nil slices
// and maps are stored as empty JSON containers so decoding round-trips.
func encodeReportColumns(report *domain.AnalysisReport) (reportColumns, error) {
	var columns reportColumns

	diseases := report.Diseases
	if diseases == nil {
		diseases = []domain.DiseaseHypothesis{}
	}
	abnormalities := report.Abnormalities
	if abnormalities == nil {
		abnormalities = []string{}
	}
	risks := report.RiskScores
	if risks == nil {
		risks = domain.RiskScores{}
	}

	encoded := []struct {
		value interface{}
		dest  *string
	}{
		{report.CellCounts, &columns.cellCounts},
		{diseases, &columns.diseases},
		{abnormalities, &columns.abnormalities},
		{report.ConfidenceScores, &columns.confidenceScores},
		{risks, &columns.riskScores},
	}
	for _, field := range encoded {
		payload, err := json.Marshal(field.value)
		if err != nil {
			return columns, fmt.Errorf("failed to encode report field: %w", err)
		}
		*field.dest = string(payload)
	}
	return columns, nil
}

// scanner is an interface for sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanReport scans a row into an AnalysisReport, decoding the JSON columns.
func scanReport(s scanner) (*domain.AnalysisReport, error) {
	report := &domain.AnalysisReport{}
	var cellCounts, diseases, abnormalities, confidenceScores, riskScores, timestamp string
	var explanation sql.NullString

	err := s.Scan(
		&report.AnalysisID, &cellCounts, &diseases, &abnormalities,
		&confidenceScores, &riskScores, &report.TotalCells,
		&report.ImagePath, &timestamp, &explanation, &report.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	decoded := []struct {
		payload string
		dest    interface{}
	}{
		{cellCounts, &report.CellCounts},
		{diseases, &report.Diseases},
		{abnormalities, &report.Abnormalities},
		{confidenceScores, &report.ConfidenceScores},
		{riskScores, &report.RiskScores},
	}
	for _, field := range decoded {
		if err := json.Unmarshal([]byte(field.payload), field.dest); err != nil {
			return nil, fmt.Errorf("failed to decode report field: %w", err)
		}
	}

	report.Timestamp, _ = time.Parse(time.RFC3339, timestamp)
	report.Explanation = explanation.String
	return report, nil
}

// nullableString maps an empty string to SQL NULL.
func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
