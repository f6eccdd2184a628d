package stt

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/rahulvarma2468/ai-voice-agent/domain/entities"
	"github.com/rahulvarma2468/ai-voice-agent/domain/repositories"
)

// MockSpeechToText is a scripted recognizer for tests and local development.
// It records every frame it receives, in order, and on Finish emits the
// configured partials followed by the final transcript (or the configured
// error).
type MockSpeechToText struct {
	logger *zap.Logger

	// Partials are emitted in order before the final result.
	Partials []string
	// FinalText is the final transcript; ignored when Err is set.
	FinalText string
	// Err, when set, makes the stream fail instead of finalizing.
	Err error

	mu      sync.Mutex
	streams []*MockStream
}

// NewMockSpeechToText creates a scripted recognizer returning the given final
// transcript.
func NewMockSpeechToText(finalText string, logger *zap.Logger) *MockSpeechToText {
	return &MockSpeechToText{
		logger:    logger,
		FinalText: finalText,
	}
}

var _ repositories.SpeechToText = (*MockSpeechToText)(nil)

// Streams returns every stream this recognizer has opened, in creation order.
func (m *MockSpeechToText) Streams() []*MockStream {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*MockStream(nil), m.streams...)
}

func (m *MockSpeechToText) InitTranscribeStreaming(ctx context.Context, config repositories.AudioConfig) (repositories.SpeechToTextStreaming, error) {
	s := &MockStream{
		parent: m,
		events: make(chan entities.TranscriptEvent, 16),
	}
	m.mu.Lock()
	m.streams = append(m.streams, s)
	m.mu.Unlock()
	return s, nil
}

func (m *MockSpeechToText) TranscribeAudio(ctx context.Context, audioData []byte, config repositories.AudioConfig) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	if len(audioData) == 0 {
		return "", fmt.Errorf("no audio data received")
	}
	return m.FinalText, nil
}

// MockStream is one scripted transcription stream.
type MockStream struct {
	parent *MockSpeechToText
	events chan entities.TranscriptEvent

	mu       sync.Mutex
	frames   [][]byte
	finished bool
}

// Frames returns the audio frames received so far, in arrival order.
func (s *MockStream) Frames() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.frames...)
}

func (s *MockStream) Stream(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return fmt.Errorf("stream already finished")
	}
	frame := make([]byte, len(data))
	copy(frame, data)
	s.frames = append(s.frames, frame)
	return nil
}

func (s *MockStream) Finish() error {
	s.mu.Lock()
	if s.finished {
		s.mu.Unlock()
		return nil
	}
	s.finished = true
	s.mu.Unlock()

	go func() {
		defer close(s.events)
		for _, p := range s.parent.Partials {
			s.events <- entities.PartialTranscript{Text: p}
		}
		if s.parent.Err != nil {
			s.events <- entities.TranscriptError{Err: s.parent.Err}
			return
		}
		s.events <- entities.FinalTranscript{Text: s.parent.FinalText}
	}()
	return nil
}

func (s *MockStream) Events() <-chan entities.TranscriptEvent {
	return s.events
}
