// Package progress tracks per-analysis pipeline progress so clients can
// poll or stream it while the background pipeline runs. Trackers are
// explicit dependencies handed to the services that need them.
package progress

import (
	"context"
	"sync"

	"github.com/bloodcell-ai-server/internal/domain"
)

// MemoryTracker keeps progress in process memory. Suitable for a single
// server instance; multi-instance deployments use the Redis tracker.
type MemoryTracker struct {
	mu      sync.RWMutex
	entries map[string]domain.Progress
}

// NewMemoryTracker creates an in-process progress tracker.
func NewMemoryTracker() *MemoryTracker {
	return &MemoryTracker{
		entries: make(map[string]domain.Progress),
	}
}

// Set records the current progress for an analysis.
func (t *MemoryTracker) Set(_ context.Context, analysisID string, p domain.Progress) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[analysisID] = p
	return nil
}

// Get returns the recorded progress and whether the analysis is known.
func (t *MemoryTracker) Get(_ context.Context, analysisID string) (domain.Progress, bool, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.entries[analysisID]
	return p, ok, nil
}

// Delete removes the entry for a finished or purged analysis.
func (t *MemoryTracker) Delete(_ context.Context, analysisID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, analysisID)
	return nil
}
