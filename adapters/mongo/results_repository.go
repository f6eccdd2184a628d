package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/rahulvarma2468/ai-voice-agent/domain/repositories"
)

const (
	resultsCollection = "recent_results"
	resultTTL         = time.Hour
	maxListedResults  = 10
)

// RecentResultRepository stores completed transcriptions in MongoDB with a TTL
// index so entries expire on their own.
type RecentResultRepository struct {
	collection *mongo.Collection
	logger     *zap.Logger
}

// NewRecentResultRepository creates a MongoDB-backed recent result store and
// ensures the TTL index exists.
func NewRecentResultRepository(db *mongo.Database, logger *zap.Logger) (repositories.RecentResultRepository, error) {
	collection := db.Collection(resultsCollection)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "created_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(resultTTL.Seconds())),
		},
		{
			Keys: bson.D{{Key: "session_id", Value: 1}, {Key: "created_at", Value: -1}},
		},
	}
	if _, err := collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return nil, fmt.Errorf("failed to create recent result indexes: %w", err)
	}

	return &RecentResultRepository{
		collection: collection,
		logger:     logger,
	}, nil
}

// Put records a completed transcription result.
func (r *RecentResultRepository) Put(ctx context.Context, result repositories.RecentResult) error {
	if result.SessionID == "" {
		return errors.New("session ID cannot be empty")
	}
	if result.CreatedAt.IsZero() {
		result.CreatedAt = time.Now()
	}

	if _, err := r.collection.InsertOne(ctx, result); err != nil {
		return fmt.Errorf("failed to store recent result: %w", err)
	}

	r.logger.Debug("Stored recent result",
		zap.String("session_id", result.SessionID),
		zap.Int("transcription_length", len(result.Transcription)))
	return nil
}

// FindBySession returns the newest result for a session, or nil if none.
func (r *RecentResultRepository) FindBySession(ctx context.Context, sessionID string) (*repositories.RecentResult, error) {
	if sessionID == "" {
		return nil, errors.New("session ID cannot be empty")
	}

	filter := bson.M{"session_id": sessionID}
	opts := options.FindOne().SetSort(bson.M{"created_at": -1})

	var result repositories.RecentResult
	err := r.collection.FindOne(ctx, filter, opts).Decode(&result)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find result for session %s: %w", sessionID, err)
	}

	return &result, nil
}

// List returns up to limit results, newest first.
func (r *RecentResultRepository) List(ctx context.Context, limit int) ([]repositories.RecentResult, error) {
	if limit <= 0 || limit > maxListedResults {
		limit = maxListedResults
	}

	opts := options.Find().
		SetSort(bson.M{"created_at": -1}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent results: %w", err)
	}
	defer cursor.Close(ctx)

	var results []repositories.RecentResult
	if err := cursor.All(ctx, &results); err != nil {
		return nil, fmt.Errorf("failed to decode recent results: %w", err)
	}

	return results, nil
}
