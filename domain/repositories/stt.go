package repositories

import (
	"context"

	"github.com/rahulvarma2468/ai-voice-agent/domain/entities"
)

// SpeechToText abstracts speech recognition services
type SpeechToText interface {
	// TranscribeAudio converts a complete recording to text in one call
	TranscribeAudio(ctx context.Context, audioData []byte, config AudioConfig) (string, error)
	// InitTranscribeStreaming initializes a streaming transcription session
	InitTranscribeStreaming(ctx context.Context, config AudioConfig) (SpeechToTextStreaming, error)
}

// AudioConfig represents audio configuration for speech recognition
type AudioConfig struct {
	SampleRate int    `json:"sample_rate"`
	Encoding   string `json:"encoding"`
	Language   string `json:"language"`
}

// SpeechToTextStreaming is one live transcription stream. Audio must be fed in
// capture order; the backend has no reorder buffer. Events delivers any number
// of partials followed by exactly one final or one error, then closes.
type SpeechToTextStreaming interface {
	// Stream forwards one audio frame to the recognizer.
	Stream(data []byte) error
	// Finish signals end of input. The final result (or error) arrives on Events.
	Finish() error
	// Events returns the ordered transcript event stream for this session.
	Events() <-chan entities.TranscriptEvent
}
