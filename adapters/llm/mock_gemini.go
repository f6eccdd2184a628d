package llm

import (
	"context"
	"sync"

	"github.com/rahulvarma2468/ai-voice-agent/domain/repositories"
)

// MockLLM is a scripted chat provider for tests and local development.
type MockLLM struct {
	// Reply is returned for every message; Err, when set, fails the session.
	Reply string
	Err   error
}

// NewMockLLM creates a scripted chat provider returning the given reply.
func NewMockLLM(reply string) *MockLLM {
	return &MockLLM{Reply: reply}
}

var _ repositories.LargeLanguageModel = (*MockLLM)(nil)

func (m *MockLLM) GenerateChat(ctx context.Context, history []repositories.ChatMessage) (repositories.ChatSession, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return &mockChatSession{parent: m, history: append([]repositories.ChatMessage(nil), history...)}, nil
}

type mockChatSession struct {
	parent  *MockLLM
	mu      sync.Mutex
	history []repositories.ChatMessage
}

func (s *mockChatSession) SendMessage(ctx context.Context, message repositories.ChatMessage) (repositories.ChatMessage, error) {
	if s.parent.Err != nil {
		return repositories.ChatMessage{}, s.parent.Err
	}

	reply := repositories.ChatMessage{
		Role:    repositories.AssistantRole,
		Content: s.parent.Reply,
	}

	s.mu.Lock()
	s.history = append(s.history, message, reply)
	s.mu.Unlock()

	return reply, nil
}

func (s *mockChatSession) History() ([]repositories.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]repositories.ChatMessage(nil), s.history...), nil
}
