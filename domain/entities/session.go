package entities

import (
	"errors"
	"time"
)

// SessionStatus represents the status of a session
type SessionStatus string

const (
	SessionStatusActive     SessionStatus = "active"
	SessionStatusExpired    SessionStatus = "expired"
	SessionStatusTerminated SessionStatus = "terminated"
)

// MessageRole represents the role of a message sender
type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
)

// Message is one exchange entry within a session: what the user said, or what
// the assistant replied.
type Message struct {
	Timestamp  time.Time   `json:"timestamp" bson:"timestamp"`
	Role       MessageRole `json:"role" bson:"role"`
	Content    string      `json:"content" bson:"content"`
	DurationMs int64       `json:"duration_ms" bson:"duration_ms"`
	SearchUsed bool        `json:"search_used,omitempty" bson:"search_used,omitempty"`
}

// Session is one conversational turn-taking context. The ID is server-assigned
// and opaque; any client-side placeholder is superseded on handshake.
type Session struct {
	ID            string        `json:"id" bson:"_id,omitempty"`
	CreatedAt     time.Time     `json:"created_at" bson:"created_at"`
	LastActiveAt  time.Time     `json:"last_active_at" bson:"last_active_at"`
	LastMessageAt *time.Time    `json:"last_message_at" bson:"last_message_at"`
	ExpiresAt     time.Time     `json:"expires_at" bson:"expires_at"`
	Status        SessionStatus `json:"status" bson:"status"`
	Messages      []Message     `json:"messages" bson:"messages"`
}

// NewSession creates a new active session with the given server-assigned ID.
func NewSession(id string) *Session {
	now := time.Now()
	return &Session{
		ID:           id,
		CreatedAt:    now,
		LastActiveAt: now,
		ExpiresAt:    now.Add(24 * time.Hour),
		Status:       SessionStatusActive,
		Messages:     make([]Message, 0),
	}
}

// AddMessage appends a message to the session and refreshes activity timestamps.
func (s *Session) AddMessage(msg Message) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	s.Messages = append(s.Messages, msg)
	now := time.Now()
	s.LastMessageAt = &now
	s.UpdateLastActive()
}

// UpdateLastActive updates the last active timestamp and extends expiration.
func (s *Session) UpdateLastActive() {
	s.LastActiveAt = time.Now()
	s.ExpiresAt = s.LastActiveAt.Add(24 * time.Hour)
}

// IsExpired checks if the session has expired.
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt) || s.Status != SessionStatusActive
}

// Terminate marks the session as terminated.
func (s *Session) Terminate() {
	s.Status = SessionStatusTerminated
	s.UpdateLastActive()
}

// History returns the conversation messages for LLM context.
func (s *Session) History() []Message {
	return s.Messages
}

// Validate validates the session data.
func (s *Session) Validate() error {
	if s.ID == "" {
		return errors.New("session id is required")
	}
	switch s.Status {
	case SessionStatusActive, SessionStatusExpired, SessionStatusTerminated:
		return nil
	default:
		return errors.New("invalid session status")
	}
}
