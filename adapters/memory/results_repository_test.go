package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rahulvarma2468/ai-voice-agent/domain/entities"
	"github.com/rahulvarma2468/ai-voice-agent/domain/repositories"
)

func userMsg(content string) entities.Message {
	return entities.Message{Timestamp: time.Now(), Role: entities.MessageRoleUser, Content: content}
}

func assistantMsg(content string) entities.Message {
	return entities.Message{Timestamp: time.Now(), Role: entities.MessageRoleAssistant, Content: content}
}

func TestRecentResultsCapAndOrder(t *testing.T) {
	repo := NewRecentResultRepository()
	ctx := context.Background()

	for i := 0; i < 15; i++ {
		err := repo.Put(ctx, repositories.RecentResult{
			SessionID:     fmt.Sprintf("sess-%d", i),
			Transcription: fmt.Sprintf("turn %d", i),
			CreatedAt:     time.Now(),
		})
		if err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}

	results, err := repo.List(ctx, 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(results) != maxRecentResults {
		t.Fatalf("retained %d results, want %d", len(results), maxRecentResults)
	}

	// Newest first; the oldest five were evicted.
	if results[0].SessionID != "sess-14" {
		t.Errorf("newest = %s, want sess-14", results[0].SessionID)
	}
	if results[len(results)-1].SessionID != "sess-5" {
		t.Errorf("oldest retained = %s, want sess-5", results[len(results)-1].SessionID)
	}
}

func TestRecentResultsFindBySession(t *testing.T) {
	repo := NewRecentResultRepository()
	ctx := context.Background()

	repo.Put(ctx, repositories.RecentResult{SessionID: "a", Transcription: "first", CreatedAt: time.Now()})
	repo.Put(ctx, repositories.RecentResult{SessionID: "a", Transcription: "second", CreatedAt: time.Now()})
	repo.Put(ctx, repositories.RecentResult{SessionID: "b", Transcription: "other", CreatedAt: time.Now()})

	got, err := repo.FindBySession(ctx, "a")
	if err != nil {
		t.Fatalf("FindBySession failed: %v", err)
	}
	if got == nil || got.Transcription != "second" {
		t.Errorf("got %+v, want the newest result for session a", got)
	}

	missing, err := repo.FindBySession(ctx, "nope")
	if err != nil {
		t.Fatalf("FindBySession failed: %v", err)
	}
	if missing != nil {
		t.Errorf("got %+v for unknown session, want nil", missing)
	}
}

func TestRecentResultsExpire(t *testing.T) {
	repo := NewRecentResultRepository()
	ctx := context.Background()

	repo.Put(ctx, repositories.RecentResult{SessionID: "old", Transcription: "stale", CreatedAt: time.Now().Add(-2 * resultTTL)})
	repo.Put(ctx, repositories.RecentResult{SessionID: "new", Transcription: "fresh", CreatedAt: time.Now()})

	results, err := repo.List(ctx, 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(results) != 1 || results[0].SessionID != "new" {
		t.Errorf("results = %+v, want only the fresh entry", results)
	}

	stale, err := repo.FindBySession(ctx, "old")
	if err != nil {
		t.Fatalf("FindBySession failed: %v", err)
	}
	if stale != nil {
		t.Errorf("expired entry still findable: %+v", stale)
	}
}

func TestHistoryRepository(t *testing.T) {
	repo := NewHistoryRepository()
	ctx := context.Background()

	msgs, err := repo.Get(ctx, "empty")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("fresh session has %d messages", len(msgs))
	}

	if err := repo.Append(ctx, "s1", userMsg("hello"), assistantMsg("greetings")); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := repo.Append(ctx, "s1", userMsg("more")); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	msgs, err = repo.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(msgs) != 3 || msgs[0].Content != "hello" || msgs[2].Content != "more" {
		t.Errorf("history = %+v", msgs)
	}

	if err := repo.Clear(ctx, "s1"); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	msgs, _ = repo.Get(ctx, "s1")
	if len(msgs) != 0 {
		t.Errorf("history not cleared: %+v", msgs)
	}
}
