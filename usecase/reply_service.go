package usecase

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rahulvarma2468/ai-voice-agent/domain/entities"
	"github.com/rahulvarma2468/ai-voice-agent/domain/repositories"
	"github.com/rahulvarma2468/ai-voice-agent/internal/persona"
)

// ReplyService turns a finalized transcript into the assistant's reply. It
// decides between the built-in lore base and a live web search, runs the chat
// model with the session's history, and records both sides of the exchange.
type ReplyService struct {
	llm     repositories.LargeLanguageModel
	search  repositories.WebSearch
	history repositories.HistoryRepository
	logger  *zap.Logger
}

// NewReplyService creates a reply service. search may be nil; the service then
// answers from lore and the model alone.
func NewReplyService(
	llm repositories.LargeLanguageModel,
	search repositories.WebSearch,
	history repositories.HistoryRepository,
	logger *zap.Logger,
) *ReplyService {
	return &ReplyService{
		llm:     llm,
		search:  search,
		history: history,
		logger:  logger,
	}
}

// Reply generates the assistant's reply for the user's text.
func (s *ReplyService) Reply(ctx context.Context, sessionID, text string) (string, error) {
	start := time.Now()

	chatHistory := s.loadHistory(ctx, sessionID)

	prompt, searchUsed := s.buildPrompt(ctx, text)

	chatSession, err := s.llm.GenerateChat(ctx, chatHistory)
	if err != nil {
		return "", fmt.Errorf("failed to create chat session: %w", err)
	}

	response, err := chatSession.SendMessage(ctx, repositories.ChatMessage{
		Role:    repositories.UserRole,
		Content: prompt,
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate reply: %w", err)
	}

	s.recordExchange(ctx, sessionID, text, response.Content, searchUsed, time.Since(start))

	s.logger.Info("Reply generated",
		zap.String("sessionID", sessionID),
		zap.Bool("searchUsed", searchUsed),
		zap.Duration("duration", time.Since(start)))

	return response.Content, nil
}

// buildPrompt augments the user's text with lore or search context. Search
// failures degrade to the plain question; the turn never fails on a bad
// lookup.
func (s *ReplyService) buildPrompt(ctx context.Context, text string) (string, bool) {
	if entry, ok := persona.FindLore(text); ok {
		return fmt.Sprintf("ANCIENT LORE - %s:\n%s\n\nSeeker's question: %s", entry.Title, entry.Content, text), false
	}

	if s.search == nil || !persona.ShouldSearch(text) {
		return text, false
	}

	query := persona.ExtractSearchQuery(text)
	if query == "" {
		return text, false
	}

	results, err := s.search.Search(ctx, query, 5)
	if err != nil {
		s.logger.Warn("Web search failed, answering without it",
			zap.String("query", query),
			zap.Error(err))
		return text, false
	}
	if len(results) == 0 {
		return text, false
	}

	formatted := persona.FormatSearchResults(query, results)
	return fmt.Sprintf("%s\n\nSeeker's question: %s", formatted, text), true
}

// loadHistory fetches the session's past exchanges for chat context. A store
// failure means starting the chat fresh, not failing the turn.
func (s *ReplyService) loadHistory(ctx context.Context, sessionID string) []repositories.ChatMessage {
	if s.history == nil {
		return nil
	}

	msgs, err := s.history.Get(ctx, sessionID)
	if err != nil {
		s.logger.Warn("Failed to load chat history",
			zap.String("sessionID", sessionID),
			zap.Error(err))
		return nil
	}

	chatHistory := make([]repositories.ChatMessage, 0, len(msgs))
	for _, msg := range msgs {
		role := repositories.UserRole
		if msg.Role == entities.MessageRoleAssistant {
			role = repositories.AssistantRole
		}
		chatHistory = append(chatHistory, repositories.ChatMessage{
			Role:    role,
			Content: msg.Content,
		})
	}
	return chatHistory
}

// recordExchange persists both sides of the turn. Best effort.
func (s *ReplyService) recordExchange(ctx context.Context, sessionID, userText, replyText string, searchUsed bool, elapsed time.Duration) {
	if s.history == nil {
		return
	}

	now := time.Now()
	err := s.history.Append(ctx, sessionID,
		entities.Message{
			Timestamp: now,
			Role:      entities.MessageRoleUser,
			Content:   userText,
		},
		entities.Message{
			Timestamp:  now,
			Role:       entities.MessageRoleAssistant,
			Content:    replyText,
			DurationMs: elapsed.Milliseconds(),
			SearchUsed: searchUsed,
		},
	)
	if err != nil {
		s.logger.Warn("Failed to record exchange",
			zap.String("sessionID", sessionID),
			zap.Error(err))
	}
}
