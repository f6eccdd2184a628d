package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/rahulvarma2468/ai-voice-agent/adapters/memory"
	"github.com/rahulvarma2468/ai-voice-agent/domain/entities"
	"github.com/rahulvarma2468/ai-voice-agent/domain/repositories"
)

// capturingLLM records what the reply service actually sends to the model.
type capturingLLM struct {
	reply string
	err   error

	mu          sync.Mutex
	lastPrompt  string
	historyLens []int
}

func (c *capturingLLM) GenerateChat(ctx context.Context, history []repositories.ChatMessage) (repositories.ChatSession, error) {
	c.mu.Lock()
	c.historyLens = append(c.historyLens, len(history))
	c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	return &capturingSession{parent: c}, nil
}

type capturingSession struct {
	parent *capturingLLM
}

func (s *capturingSession) SendMessage(ctx context.Context, msg repositories.ChatMessage) (repositories.ChatMessage, error) {
	s.parent.mu.Lock()
	s.parent.lastPrompt = msg.Content
	s.parent.mu.Unlock()
	return repositories.ChatMessage{Role: repositories.AssistantRole, Content: s.parent.reply}, nil
}

func (s *capturingSession) History() ([]repositories.ChatMessage, error) {
	return nil, nil
}

type fakeSearch struct {
	results []repositories.SearchResult
	err     error

	mu      sync.Mutex
	queries []string
}

func (f *fakeSearch) Search(ctx context.Context, query string, numResults int) ([]repositories.SearchResult, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

func TestReplyUsesLore(t *testing.T) {
	llm := &capturingLLM{reply: "Ah, the wyrms..."}
	svc := NewReplyService(llm, &fakeSearch{}, memory.NewHistoryRepository(), zap.NewNop())

	reply, err := svc.Reply(context.Background(), "s1", "speak to me of dragons")
	if err != nil {
		t.Fatalf("Reply failed: %v", err)
	}
	if reply != "Ah, the wyrms..." {
		t.Errorf("reply = %q", reply)
	}
	if !strings.Contains(llm.lastPrompt, "ANCIENT LORE") {
		t.Errorf("prompt missing lore context: %q", llm.lastPrompt)
	}
	if !strings.Contains(llm.lastPrompt, "speak to me of dragons") {
		t.Errorf("prompt missing original question: %q", llm.lastPrompt)
	}
}

func TestReplyUsesSearchForCurrentEvents(t *testing.T) {
	llm := &capturingLLM{reply: "The crystal shows..."}
	search := &fakeSearch{results: []repositories.SearchResult{
		{Title: "Eclipse", Snippet: "Visible tonight", Link: "https://x"},
	}}
	history := memory.NewHistoryRepository()
	svc := NewReplyService(llm, search, history, zap.NewNop())

	_, err := svc.Reply(context.Background(), "s1", "what's the latest news about the eclipse")
	if err != nil {
		t.Fatalf("Reply failed: %v", err)
	}
	if len(search.queries) != 1 {
		t.Fatalf("search called %d times, want 1", len(search.queries))
	}
	if !strings.Contains(llm.lastPrompt, "Web Search Results") {
		t.Errorf("prompt missing search context: %q", llm.lastPrompt)
	}

	// The assistant message records that scrying was used.
	msgs, _ := history.Get(context.Background(), "s1")
	if len(msgs) != 2 {
		t.Fatalf("history has %d messages, want 2", len(msgs))
	}
	if !msgs[1].SearchUsed {
		t.Error("assistant message not flagged as search-assisted")
	}
}

func TestReplySearchFailureDegrades(t *testing.T) {
	llm := &capturingLLM{reply: "Still wise."}
	search := &fakeSearch{err: errors.New("scrying crystal offline")}
	svc := NewReplyService(llm, search, memory.NewHistoryRepository(), zap.NewNop())

	reply, err := svc.Reply(context.Background(), "s1", "what's the latest news about mars")
	if err != nil {
		t.Fatalf("Reply failed on search error: %v", err)
	}
	if reply != "Still wise." {
		t.Errorf("reply = %q", reply)
	}
	if llm.lastPrompt != "what's the latest news about mars" {
		t.Errorf("prompt not degraded to plain question: %q", llm.lastPrompt)
	}
}

func TestReplyWithoutSearchBackend(t *testing.T) {
	llm := &capturingLLM{reply: "ok"}
	svc := NewReplyService(llm, nil, memory.NewHistoryRepository(), zap.NewNop())

	if _, err := svc.Reply(context.Background(), "s1", "what's the latest news"); err != nil {
		t.Fatalf("Reply failed without search backend: %v", err)
	}
}

func TestReplyLoadsHistory(t *testing.T) {
	history := memory.NewHistoryRepository()
	history.Append(context.Background(), "s1",
		entities.Message{Role: entities.MessageRoleUser, Content: "earlier question"},
		entities.Message{Role: entities.MessageRoleAssistant, Content: "earlier answer"},
	)

	llm := &capturingLLM{reply: "ok"}
	svc := NewReplyService(llm, nil, history, zap.NewNop())

	if _, err := svc.Reply(context.Background(), "s1", "follow up"); err != nil {
		t.Fatalf("Reply failed: %v", err)
	}
	if len(llm.historyLens) != 1 || llm.historyLens[0] != 2 {
		t.Errorf("chat seeded with history lengths %v, want [2]", llm.historyLens)
	}
}

func TestReplyPropagatesLLMFailure(t *testing.T) {
	llm := &capturingLLM{err: errors.New("model offline")}
	svc := NewReplyService(llm, nil, memory.NewHistoryRepository(), zap.NewNop())

	if _, err := svc.Reply(context.Background(), "s1", "hello"); err == nil {
		t.Fatal("expected error when the model cannot start")
	}
}
