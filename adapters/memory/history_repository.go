package memory

import (
	"context"
	"sync"

	"github.com/rahulvarma2468/ai-voice-agent/domain/entities"
	"github.com/rahulvarma2468/ai-voice-agent/domain/repositories"
)

// HistoryRepository stores per-session conversation history in process memory.
type HistoryRepository struct {
	mu       sync.RWMutex
	sessions map[string][]entities.Message
}

var _ repositories.HistoryRepository = (*HistoryRepository)(nil)

// NewHistoryRepository creates an empty in-memory history store.
func NewHistoryRepository() *HistoryRepository {
	return &HistoryRepository{sessions: make(map[string][]entities.Message)}
}

// Append adds messages to a session's history.
func (r *HistoryRepository) Append(ctx context.Context, sessionID string, msgs ...entities.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sessionID] = append(r.sessions[sessionID], msgs...)
	return nil
}

// Get returns a copy of the session's history, oldest first.
func (r *HistoryRepository) Get(ctx context.Context, sessionID string) ([]entities.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	msgs := r.sessions[sessionID]
	return append([]entities.Message(nil), msgs...), nil
}

// Clear removes the session's history.
func (r *HistoryRepository) Clear(ctx context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sessionID)
	return nil
}
