package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/rahulvarma2468/ai-voice-agent/domain/entities"
	"github.com/rahulvarma2468/ai-voice-agent/domain/repositories"
)

const historyCollection = "chat_history"

type historyDocument struct {
	SessionID string             `bson:"session_id"`
	Messages  []entities.Message `bson:"messages"`
	UpdatedAt time.Time          `bson:"updated_at"`
}

// HistoryRepository stores per-session conversation history in MongoDB, one
// document per session.
type HistoryRepository struct {
	collection *mongo.Collection
}

var _ repositories.HistoryRepository = (*HistoryRepository)(nil)

// NewHistoryRepository creates a MongoDB-backed history store.
func NewHistoryRepository(db *mongo.Database) *HistoryRepository {
	return &HistoryRepository{
		collection: db.Collection(historyCollection),
	}
}

// Append adds messages to a session's history, creating the document on first
// use.
func (r *HistoryRepository) Append(ctx context.Context, sessionID string, msgs ...entities.Message) error {
	if sessionID == "" {
		return errors.New("session ID cannot be empty")
	}
	if len(msgs) == 0 {
		return nil
	}

	update := bson.M{
		"$push": bson.M{"messages": bson.M{"$each": msgs}},
		"$set":  bson.M{"updated_at": time.Now()},
	}
	opts := options.Update().SetUpsert(true)

	if _, err := r.collection.UpdateOne(ctx, bson.M{"session_id": sessionID}, update, opts); err != nil {
		return fmt.Errorf("failed to append history for session %s: %w", sessionID, err)
	}
	return nil
}

// Get returns the session's history, oldest first.
func (r *HistoryRepository) Get(ctx context.Context, sessionID string) ([]entities.Message, error) {
	if sessionID == "" {
		return nil, errors.New("session ID cannot be empty")
	}

	var doc historyDocument
	err := r.collection.FindOne(ctx, bson.M{"session_id": sessionID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get history for session %s: %w", sessionID, err)
	}

	return doc.Messages, nil
}

// Clear removes the session's history.
func (r *HistoryRepository) Clear(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return errors.New("session ID cannot be empty")
	}

	if _, err := r.collection.DeleteOne(ctx, bson.M{"session_id": sessionID}); err != nil {
		return fmt.Errorf("failed to clear history for session %s: %w", sessionID, err)
	}
	return nil
}
