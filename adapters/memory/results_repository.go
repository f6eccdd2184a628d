package memory

import (
	"context"
	"sync"
	"time"

	"github.com/rahulvarma2468/ai-voice-agent/domain/repositories"
)

const (
	maxRecentResults = 10
	resultTTL        = time.Hour
)

// RecentResultRepository keeps the newest transcription results in process
// memory. Used as the default store when no database is configured, and as the
// backing store for the fallback recovery endpoint.
type RecentResultRepository struct {
	mu      sync.RWMutex
	results []repositories.RecentResult
	now     func() time.Time
}

var _ repositories.RecentResultRepository = (*RecentResultRepository)(nil)

// NewRecentResultRepository creates an empty in-memory store.
func NewRecentResultRepository() *RecentResultRepository {
	return &RecentResultRepository{now: time.Now}
}

// Put records a result, evicting the oldest entry past the cap.
func (r *RecentResultRepository) Put(ctx context.Context, result repositories.RecentResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.prune()
	r.results = append(r.results, result)
	if len(r.results) > maxRecentResults {
		r.results = r.results[len(r.results)-maxRecentResults:]
	}
	return nil
}

// FindBySession returns the newest result for a session, or nil if none.
func (r *RecentResultRepository) FindBySession(ctx context.Context, sessionID string) (*repositories.RecentResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cutoff := r.now().Add(-resultTTL)
	for i := len(r.results) - 1; i >= 0; i-- {
		if r.results[i].SessionID == sessionID && r.results[i].CreatedAt.After(cutoff) {
			result := r.results[i]
			return &result, nil
		}
	}
	return nil, nil
}

// List returns up to limit retained results, newest first.
func (r *RecentResultRepository) List(ctx context.Context, limit int) ([]repositories.RecentResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if limit <= 0 || limit > maxRecentResults {
		limit = maxRecentResults
	}

	cutoff := r.now().Add(-resultTTL)
	out := make([]repositories.RecentResult, 0, limit)
	for i := len(r.results) - 1; i >= 0 && len(out) < limit; i-- {
		if r.results[i].CreatedAt.After(cutoff) {
			out = append(out, r.results[i])
		}
	}
	return out, nil
}

// prune drops expired entries. Caller holds the write lock.
func (r *RecentResultRepository) prune() {
	cutoff := r.now().Add(-resultTTL)
	kept := r.results[:0]
	for _, result := range r.results {
		if result.CreatedAt.After(cutoff) {
			kept = append(kept, result)
		}
	}
	r.results = kept
}
