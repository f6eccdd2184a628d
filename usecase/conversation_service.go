package usecase

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rahulvarma2468/ai-voice-agent/domain/entities"
	"github.com/rahulvarma2468/ai-voice-agent/domain/repositories"
)

// VoiceTurnResult is the outcome of a one-shot voice turn: the recognized
// text, the assistant's reply, and the rendered speech.
type VoiceTurnResult struct {
	SessionID     string `json:"session_id"`
	Transcription string `json:"transcription"`
	Reply         string `json:"reply"`
	AudioBase64   string `json:"audio_base64,omitempty"`
}

// ConversationService runs the full voice pipeline in one call for clients
// that upload a complete recording instead of streaming: transcribe, reply,
// synthesize. It backs the fallback path a client takes when its streaming
// channel drops.
type ConversationService struct {
	speechToText repositories.SpeechToText
	textToSpeech repositories.TextToSpeech
	replyService *ReplyService
	results      repositories.RecentResultRepository
	logger       *zap.Logger
}

// NewConversationService creates a new conversation service.
func NewConversationService(
	stt repositories.SpeechToText,
	tts repositories.TextToSpeech,
	replyService *ReplyService,
	results repositories.RecentResultRepository,
	logger *zap.Logger,
) *ConversationService {
	return &ConversationService{
		speechToText: stt,
		textToSpeech: tts,
		replyService: replyService,
		results:      results,
		logger:       logger,
	}
}

// ProcessVoiceTurn transcribes a complete recording, generates the reply, and
// synthesizes it. TTS failure is non-fatal; the text reply still comes back.
func (s *ConversationService) ProcessVoiceTurn(ctx context.Context, sessionID string, audioData []byte) (*VoiceTurnResult, error) {
	s.logger.Info("Processing voice turn",
		zap.String("sessionID", sessionID),
		zap.Int("audioBytes", len(audioData)))

	transcription, err := s.Transcribe(ctx, audioData)
	if err != nil {
		return nil, fmt.Errorf("transcription failed: %w", err)
	}

	reply, err := s.replyService.Reply(ctx, sessionID, transcription)
	if err != nil {
		return nil, fmt.Errorf("reply generation failed: %w", err)
	}

	result := &VoiceTurnResult{
		SessionID:     sessionID,
		Transcription: transcription,
		Reply:         reply,
	}

	audio, err := s.Synthesize(ctx, reply)
	if err != nil {
		s.logger.Warn("Speech synthesis failed, returning text only",
			zap.String("sessionID", sessionID),
			zap.Error(err))
	} else {
		result.AudioBase64 = base64.StdEncoding.EncodeToString(audio)
	}

	s.recordResult(ctx, sessionID, transcription, reply)

	return result, nil
}

// Transcribe converts a complete recording to text.
func (s *ConversationService) Transcribe(ctx context.Context, audioData []byte) (string, error) {
	if len(audioData) == 0 {
		return "", fmt.Errorf("audio data cannot be empty")
	}

	transcription, err := s.speechToText.TranscribeAudio(ctx, audioData, repositories.AudioConfig{
		SampleRate: entities.SampleRate,
		Encoding:   "LINEAR16",
		Language:   "en-US",
	})
	if err != nil {
		return "", err
	}

	s.logger.Info("Transcription completed", zap.String("text", transcription))
	return transcription, nil
}

// Synthesize renders text to speech and returns the complete audio.
func (s *ConversationService) Synthesize(ctx context.Context, text string) ([]byte, error) {
	audioChan, err := s.textToSpeech.ConvertTextToSpeech(ctx, text)
	if err != nil {
		return nil, err
	}

	var audio []byte
	for chunk := range audioChan {
		audio = append(audio, chunk...)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("synthesis produced no audio")
	}
	return audio, nil
}

// recordResult stores the turn for fallback polling. Best effort.
func (s *ConversationService) recordResult(ctx context.Context, sessionID, transcription, reply string) {
	if s.results == nil {
		return
	}

	err := s.results.Put(ctx, repositories.RecentResult{
		SessionID:     sessionID,
		Transcription: transcription,
		Reply:         reply,
		CreatedAt:     time.Now(),
	})
	if err != nil {
		s.logger.Warn("Failed to record voice turn result",
			zap.String("sessionID", sessionID),
			zap.Error(err))
	}
}
