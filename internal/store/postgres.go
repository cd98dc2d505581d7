package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/bloodcell-ai-server/internal/domain"
)

// PostgresStore implements the Store interface using PostgreSQL for
// deployments where multiple server instances share one database.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL report store over an existing
// connection and ensures the schema exists.
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	// Verify connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := createPostgresSchema(db); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreFromURL creates a new PostgreSQL report store from a
// connection URL.
func NewPostgresStoreFromURL(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	store, err := NewPostgresStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// createPostgresSchema creates the database tables and indexes.
func createPostgresSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS analysis_results (
		id BIGSERIAL PRIMARY KEY,
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
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS follow_up_questions (
		id BIGSERIAL PRIMARY KEY,
		analysis_id TEXT NOT NULL REFERENCES analysis_results (analysis_id),
		question TEXT NOT NULL,
		answer TEXT NOT NULL,
		timestamp TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_results_created_at ON analysis_results(created_at);
	CREATE INDEX IF NOT EXISTS idx_followups_analysis_id ON follow_up_questions(analysis_id);
	`

	_, err := db.Exec(schema)
	return err
}

// SaveReport stores a report, replacing any existing record with the same
// analysis id.
func (s *PostgresStore) SaveReport(ctx context.Context, report *domain.AnalysisReport) error {
	columns, err := encodeReportColumns(report)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO analysis_results (
			analysis_id, cell_counts, diseases, abnormalities,
			confidence_scores, risk_scores, total_cells, image_path, timestamp, explanation
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (analysis_id) DO UPDATE SET
			cell_counts = EXCLUDED.cell_counts,
			diseases = EXCLUDED.diseases,
			abnormalities = EXCLUDED.abnormalities,
			confidence_scores = EXCLUDED.confidence_scores,
			risk_scores = EXCLUDED.risk_scores,
			total_cells = EXCLUDED.total_cells,
			image_path = EXCLUDED.image_path,
			timestamp = EXCLUDED.timestamp,
			explanation = EXCLUDED.explanation
	`

	_, err = s.db.ExecContext(ctx, query,
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
func (s *PostgresStore) GetReport(ctx context.Context, analysisID string) (*domain.AnalysisReport, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT analysis_id, cell_counts, diseases, abnormalities, confidence_scores, risk_scores, total_cells, image_path, timestamp, explanation, created_at
		FROM analysis_results
		WHERE analysis_id = $1
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
func (s *PostgresStore) UpdateExplanation(ctx context.Context, analysisID, explanation string) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE analysis_results SET explanation = $1 WHERE analysis_id = $2",
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
func (s *PostgresStore) AppendFollowUp(ctx context.Context, analysisID, question, answer string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO follow_up_questions (analysis_id, question, answer, timestamp)
		VALUES ($1, $2, $3, $4)
	`, analysisID, question, answer, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save follow-up question: %w", err)
	}
	return nil
}

// ListFollowUps returns all exchanges for a report, oldest first.
func (s *PostgresStore) ListFollowUps(ctx context.Context, analysisID string) ([]domain.FollowUp, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT question, answer, timestamp FROM follow_up_questions
		WHERE analysis_id = $1 ORDER BY timestamp ASC, id ASC
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
func (s *PostgresStore) RecentAnalyses(ctx context.Context, limit int) ([]domain.AnalysisSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT analysis_id, timestamp, created_at FROM analysis_results
		ORDER BY created_at DESC LIMIT $1
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

// DeleteAnalysis removes a report and its follow-up exchanges.
func (s *PostgresStore) DeleteAnalysis(ctx context.Context, analysisID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM follow_up_questions WHERE analysis_id = $1", analysisID); err != nil {
		return fmt.Errorf("failed to delete follow-up questions: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM analysis_results WHERE analysis_id = $1", analysisID); err != nil {
		return fmt.Errorf("failed to delete analysis result: %w", err)
	}

	return tx.Commit()
}

// Stats returns totals plus per-day analysis counts for the last 7 days
// with data.
func (s *PostgresStore) Stats(ctx context.Context) (*domain.StoreStats, error) {
	stats := &domain.StoreStats{DailyAnalyses: []domain.DailyCount{}}

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM analysis_results").Scan(&stats.TotalAnalyses); err != nil {
		return nil, fmt.Errorf("failed to count analyses: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM follow_up_questions").Scan(&stats.TotalFollowUps); err != nil {
		return nil, fmt.Errorf("failed to count follow-up questions: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT TO_CHAR(created_at, 'YYYY-MM-DD') as date, COUNT(*) as count
		FROM analysis_results
		GROUP BY TO_CHAR(created_at, 'YYYY-MM-DD')
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
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
