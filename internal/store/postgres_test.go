package store

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Postgres tests require a live database, selected by TEST_DATABASE_URL.
func newPostgresTestStore(t *testing.T) *PostgresStore {
	t.Helper()
	databaseURL := os.Getenv("TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping PostgreSQL store tests")
	}

	s, err := NewPostgresStoreFromURL(databaseURL)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPostgresStore_SaveGetRoundTrip(t *testing.T) {
	s := newPostgresTestStore(t)
	ctx := context.Background()

	id := uuid.New().String()
	want := sampleReport(id)
	require.NoError(t, s.SaveReport(ctx, want))
	defer s.DeleteAnalysis(ctx, id)

	got, err := s.GetReport(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want.CellCounts, got.CellCounts)
	assert.Equal(t, want.Diseases, got.Diseases)
	assert.Equal(t, want.RiskScores, got.RiskScores)
	assert.True(t, want.Timestamp.Equal(got.Timestamp))
}

func TestPostgresStore_UpsertReplaces(t *testing.T) {
	s := newPostgresTestStore(t)
	ctx := context.Background()

	id := uuid.New().String()
	require.NoError(t, s.SaveReport(ctx, sampleReport(id)))
	defer s.DeleteAnalysis(ctx, id)

	updated := sampleReport(id)
	updated.CellCounts.Lymphocytes = 45
	require.NoError(t, s.SaveReport(ctx, updated))

	got, err := s.GetReport(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 45, got.CellCounts.Lymphocytes)
}

func TestPostgresStore_FollowUpsAndDelete(t *testing.T) {
	s := newPostgresTestStore(t)
	ctx := context.Background()

	id := uuid.New().String()
	require.NoError(t, s.SaveReport(ctx, sampleReport(id)))
	require.NoError(t, s.AppendFollowUp(ctx, id, "first", "answer one"))
	require.NoError(t, s.AppendFollowUp(ctx, id, "second", "answer two"))

	followUps, err := s.ListFollowUps(ctx, id)
	require.NoError(t, err)
	require.Len(t, followUps, 2)
	assert.Equal(t, "first", followUps[0].Question)

	require.NoError(t, s.DeleteAnalysis(ctx, id))
	got, err := s.GetReport(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, got)
}
