package repositories

import (
	"context"
	"time"

	"github.com/rahulvarma2468/ai-voice-agent/domain/entities"
)

// RecentResult is one completed transcription kept in the side-channel store
// so a client whose streaming channel dropped can recover the turn by polling.
type RecentResult struct {
	SessionID     string    `json:"session_id" bson:"session_id"`
	Transcription string    `json:"transcription" bson:"transcription"`
	Reply         string    `json:"reply,omitempty" bson:"reply,omitempty"`
	CreatedAt     time.Time `json:"created_at" bson:"created_at"`
}

// RecentResultRepository is the fallback polling source. Implementations keep
// only a small recency window; entries expire on their own.
type RecentResultRepository interface {
	Put(ctx context.Context, result RecentResult) error
	FindBySession(ctx context.Context, sessionID string) (*RecentResult, error)
	List(ctx context.Context, limit int) ([]RecentResult, error)
}

// HistoryRepository stores per-session conversation history.
type HistoryRepository interface {
	Append(ctx context.Context, sessionID string, msgs ...entities.Message) error
	Get(ctx context.Context, sessionID string) ([]entities.Message, error)
	Clear(ctx context.Context, sessionID string) error
}
