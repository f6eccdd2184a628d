package usecase

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/rahulvarma2468/ai-voice-agent/adapters/memory"
	"github.com/rahulvarma2468/ai-voice-agent/adapters/stt"
)

type fakeSynth struct {
	chunks [][]byte
	err    error
}

func (f *fakeSynth) ConvertTextToSpeech(ctx context.Context, text string) (<-chan []byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	ch := make(chan []byte, len(f.chunks))
	for _, c := range f.chunks {
		ch <- c
	}
	close(ch)
	return ch, nil
}

func newConversationService(t *testing.T, synth *fakeSynth) (*ConversationService, *memory.RecentResultRepository) {
	t.Helper()
	recognizer := stt.NewMockSpeechToText("tell me about the stars", zap.NewNop())
	llm := &capturingLLM{reply: "The celestial tapestry unfolds..."}
	results := memory.NewRecentResultRepository()
	replySvc := NewReplyService(llm, nil, memory.NewHistoryRepository(), zap.NewNop())
	return NewConversationService(recognizer, synth, replySvc, results, zap.NewNop()), results
}

func TestProcessVoiceTurn(t *testing.T) {
	synth := &fakeSynth{chunks: [][]byte{{1, 2}, {3, 4}}}
	svc, results := newConversationService(t, synth)

	result, err := svc.ProcessVoiceTurn(context.Background(), "sess-1", []byte{9, 9, 9})
	if err != nil {
		t.Fatalf("ProcessVoiceTurn failed: %v", err)
	}

	if result.Transcription != "tell me about the stars" {
		t.Errorf("transcription = %q", result.Transcription)
	}
	if result.Reply != "The celestial tapestry unfolds..." {
		t.Errorf("reply = %q", result.Reply)
	}

	audio, err := base64.StdEncoding.DecodeString(result.AudioBase64)
	if err != nil {
		t.Fatalf("audio not valid base64: %v", err)
	}
	if len(audio) != 4 {
		t.Errorf("audio = %v, want 4 bytes", audio)
	}

	// The turn is recoverable through the fallback store.
	stored, err := results.FindBySession(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("FindBySession failed: %v", err)
	}
	if stored == nil || stored.Reply != result.Reply {
		t.Errorf("stored = %+v", stored)
	}
}

func TestProcessVoiceTurnSynthesisFailureNonFatal(t *testing.T) {
	synth := &fakeSynth{err: errors.New("tts offline")}
	svc, _ := newConversationService(t, synth)

	result, err := svc.ProcessVoiceTurn(context.Background(), "sess-2", []byte{1})
	if err != nil {
		t.Fatalf("ProcessVoiceTurn failed on TTS error: %v", err)
	}
	if result.AudioBase64 != "" {
		t.Error("audio present despite synthesis failure")
	}
	if result.Reply == "" {
		t.Error("text reply lost on synthesis failure")
	}
}

func TestProcessVoiceTurnEmptyAudio(t *testing.T) {
	svc, _ := newConversationService(t, &fakeSynth{})

	if _, err := svc.ProcessVoiceTurn(context.Background(), "sess-3", nil); err == nil {
		t.Fatal("expected error for empty recording")
	}
}

func TestSynthesizeEmptyOutput(t *testing.T) {
	svc, _ := newConversationService(t, &fakeSynth{})

	if _, err := svc.Synthesize(context.Background(), "text"); err == nil {
		t.Fatal("expected error when synthesis produces no audio")
	}
}
