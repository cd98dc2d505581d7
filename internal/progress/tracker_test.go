package progress

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bloodcell-ai-server/internal/domain"
)

func TestMemoryTracker_SetGet(t *testing.T) {
	tracker := NewMemoryTracker()
	ctx := context.Background()

	_, found, err := tracker.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)

	want := domain.Progress{Status: domain.StatusAnalyzing, Progress: 40, Stage: "Classifying blood cells"}
	require.NoError(t, tracker.Set(ctx, "analysis-1", want))

	got, found, err := tracker.Get(ctx, "analysis-1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, want, got)

	require.NoError(t, tracker.Set(ctx, "analysis-1", domain.Progress{Status: domain.StatusCompleted, Progress: 100, Stage: "Analysis complete"}))
	got, _, err = tracker.Get(ctx, "analysis-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, got.Status)
	assert.Equal(t, 100, got.Progress)
}

func TestMemoryTracker_Delete(t *testing.T) {
	tracker := NewMemoryTracker()
	ctx := context.Background()

	require.NoError(t, tracker.Set(ctx, "analysis-1", domain.Progress{Status: domain.StatusUploaded, Progress: 10}))
	require.NoError(t, tracker.Delete(ctx, "analysis-1"))

	_, found, err := tracker.Get(ctx, "analysis-1")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemoryTracker_ConcurrentAccess(t *testing.T) {
	tracker := NewMemoryTracker()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("analysis-%d", i%5)
			_ = tracker.Set(ctx, id, domain.Progress{Status: domain.StatusAnalyzing, Progress: i})
			_, _, _ = tracker.Get(ctx, id)
		}(i)
	}
	wg.Wait()
}

// Redis tests require a live instance, selected by TEST_REDIS_URL.
func TestRedisTracker_SetGet(t *testing.T) {
	redisURL := os.Getenv("TEST_REDIS_URL")
	if redisURL == "" {
		t.Skip("TEST_REDIS_URL not set, skipping Redis tracker test")
	}

	ctx := context.Background()
	tracker, err := NewRedisTracker(ctx, redisURL, time.Minute)
	require.NoError(t, err)
	defer tracker.Close()

	want := domain.Progress{Status: domain.StatusDetecting, Progress: 70, Stage: "Detecting disease patterns"}
	require.NoError(t, tracker.Set(ctx, "redis-test-analysis", want))
	defer tracker.Delete(ctx, "redis-test-analysis")

	got, found, err := tracker.Get(ctx, "redis-test-analysis")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, want, got)

	_, found, err = tracker.Get(ctx, "redis-test-unknown")
	require.NoError(t, err)
	assert.False(t, found)
}
