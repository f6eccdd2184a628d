package stream

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/rahulvarma2468/ai-voice-agent/adapters/memory"
	"github.com/rahulvarma2468/ai-voice-agent/adapters/stt"
	"github.com/rahulvarma2468/ai-voice-agent/domain/entities"
)

type eventRecorder struct {
	mu     sync.Mutex
	events []ServerEvent
	done   chan struct{}
}

func newEventRecorder() *eventRecorder {
	return &eventRecorder{done: make(chan struct{})}
}

func (r *eventRecorder) send(ev ServerEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *eventRecorder) finish() {
	close(r.done)
}

func (r *eventRecorder) wait(t *testing.T) []ServerEvent {
	t.Helper()
	select {
	case <-r.done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for turn to finish")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ServerEvent(nil), r.events...)
}

type fakeTTS struct {
	chunks [][]byte
	err    error
}

func (f *fakeTTS) ConvertTextToSpeech(ctx context.Context, text string) (<-chan []byte, error) {
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

type fakeReplyer struct {
	reply string
	err   error

	mu   sync.Mutex
	seen []string
}

func (f *fakeReplyer) Reply(ctx context.Context, sessionID, text string) (string, error) {
	f.mu.Lock()
	f.seen = append(f.seen, text)
	f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func TestTurnHappyPath(t *testing.T) {
	recognizer := stt.NewMockSpeechToText("tell me about dragons", zap.NewNop())
	recognizer.Partials = []string{"tell", "tell me about"}
	replyer := &fakeReplyer{reply: "Ah, the ancient wyrms..."}
	synth := &fakeTTS{chunks: [][]byte{{1, 2, 3, 4}, {5, 6}, {7, 8, 9}}}
	results := memory.NewRecentResultRepository()
	rec := newEventRecorder()

	turn := NewTurnSession(entities.NewSession("sess-1"), recognizer, replyer, synth, results, rec.send, rec.finish, zap.NewNop())
	turn.Begin(context.Background())

	frames := [][]byte{{10, 11}, {12, 13}, {14, 15}}
	for _, f := range frames {
		turn.PushFrame(f)
	}
	turn.Stop()

	events := rec.wait(t)

	// First event is the transcribing notice, last is turn_end.
	if _, ok := events[0].(Transcribing); !ok {
		t.Errorf("first event = %T, want Transcribing", events[0])
	}
	if _, ok := events[len(events)-1].(TurnEnd); !ok {
		t.Errorf("last event = %T, want TurnEnd", events[len(events)-1])
	}

	var acks, finals, errs, chunks int
	var partials []string
	var streamEndIdx, turnEndIdx, lastChunkIdx int
	var finalText string
	for i, ev := range events {
		switch e := ev.(type) {
		case AudioReceived:
			acks++
		case PartialTranscript:
			partials = append(partials, e.Text)
		case FinalTranscript:
			finals++
			finalText = e.Text
		case TranscriptionError:
			errs++
		case AudioChunk:
			chunks++
			lastChunkIdx = i
		case AudioStreamEnd:
			streamEndIdx = i
		case TurnEnd:
			turnEndIdx = i
		}
	}

	if acks != len(frames) {
		t.Errorf("audio_received count = %d, want %d", acks, len(frames))
	}
	if finals != 1 {
		t.Errorf("final_transcript count = %d, want exactly 1", finals)
	}
	if errs != 0 {
		t.Errorf("transcription_error count = %d, want 0", errs)
	}
	if finalText != "tell me about dragons" {
		t.Errorf("final transcript = %q", finalText)
	}
	if len(partials) != 2 || partials[0] != "tell" {
		t.Errorf("partials = %v", partials)
	}
	if chunks != len(synth.chunks) {
		t.Errorf("audio_chunk count = %d, want %d", chunks, len(synth.chunks))
	}
	if !(lastChunkIdx < streamEndIdx && streamEndIdx < turnEndIdx) {
		t.Errorf("event order wrong: last chunk %d, stream end %d, turn end %d",
			lastChunkIdx, streamEndIdx, turnEndIdx)
	}

	// Chunks carry the synthesized audio, base64 encoded, in order.
	chunkIdx := 0
	for _, ev := range events {
		if c, ok := ev.(AudioChunk); ok {
			decoded, err := base64.StdEncoding.DecodeString(c.Data)
			if err != nil {
				t.Fatalf("chunk %d not valid base64: %v", chunkIdx, err)
			}
			if !bytes.Equal(decoded, synth.chunks[chunkIdx]) {
				t.Errorf("chunk %d payload mismatch", chunkIdx)
			}
			chunkIdx++
		}
	}

	if turn.State() != TurnDone {
		t.Errorf("turn state = %s, want done", turn.State())
	}

	// The session entity carries the exchange.
	history := turn.Session().History()
	if len(history) != 2 {
		t.Fatalf("session history = %d messages, want 2", len(history))
	}
	if history[0].Role != entities.MessageRoleUser || history[0].Content != "tell me about dragons" {
		t.Errorf("user message = %+v", history[0])
	}
	if history[1].Role != entities.MessageRoleAssistant || history[1].Content != replyer.reply {
		t.Errorf("assistant message = %+v", history[1])
	}
}

func TestTurnPreservesFrameOrder(t *testing.T) {
	recognizer := stt.NewMockSpeechToText("ok", zap.NewNop())
	rec := newEventRecorder()

	turn := NewTurnSession(entities.NewSession("sess-order"), recognizer, &fakeReplyer{reply: "r"}, &fakeTTS{}, nil, rec.send, rec.finish, zap.NewNop())
	turn.Begin(context.Background())

	frames := [][]byte{{0}, {1}, {2}, {3}, {4}, {5}, {6}, {7}}
	for _, f := range frames {
		turn.PushFrame(f)
	}
	turn.Stop()
	rec.wait(t)

	got := recognizer.Streams()[0].Frames()
	if len(got) != len(frames) {
		t.Fatalf("backend received %d frames, want %d", len(got), len(frames))
	}
	for i := range frames {
		if !bytes.Equal(got[i], frames[i]) {
			t.Errorf("frame %d out of order: got %v, want %v", i, got[i], frames[i])
		}
	}
}

func TestTurnTranscriptionError(t *testing.T) {
	recognizer := stt.NewMockSpeechToText("", zap.NewNop())
	recognizer.Err = errors.New("backend exploded")
	rec := newEventRecorder()

	turn := NewTurnSession(entities.NewSession("sess-err"), recognizer, &fakeReplyer{reply: "r"}, &fakeTTS{}, nil, rec.send, rec.finish, zap.NewNop())
	turn.Begin(context.Background())
	turn.PushFrame([]byte{1, 2})
	turn.Stop()

	events := rec.wait(t)

	var finals, errs int
	for _, ev := range events {
		switch ev.(type) {
		case FinalTranscript:
			finals++
		case TranscriptionError:
			errs++
		}
	}
	if finals != 0 {
		t.Errorf("final_transcript count = %d, want 0 on error", finals)
	}
	if errs != 1 {
		t.Errorf("transcription_error count = %d, want exactly 1", errs)
	}
	if _, ok := events[len(events)-1].(TurnEnd); !ok {
		t.Errorf("last event = %T, want TurnEnd", events[len(events)-1])
	}
	if turn.State() != TurnErrored {
		t.Errorf("turn state = %s, want errored", turn.State())
	}
}

func TestTurnReplyFailureStillEndsTurn(t *testing.T) {
	recognizer := stt.NewMockSpeechToText("hello", zap.NewNop())
	rec := newEventRecorder()

	turn := NewTurnSession(entities.NewSession("sess-reply-err"), recognizer, &fakeReplyer{err: errors.New("llm down")}, &fakeTTS{}, nil, rec.send, rec.finish, zap.NewNop())
	turn.Begin(context.Background())
	turn.PushFrame([]byte{1})
	turn.Stop()

	events := rec.wait(t)

	var finals, genErrs int
	for _, ev := range events {
		switch ev.(type) {
		case FinalTranscript:
			finals++
		case ErrorEvent:
			genErrs++
		}
	}
	if finals != 1 {
		t.Errorf("final_transcript count = %d, want 1", finals)
	}
	if genErrs != 1 {
		t.Errorf("error event count = %d, want 1", genErrs)
	}
	if _, ok := events[len(events)-1].(TurnEnd); !ok {
		t.Errorf("last event = %T, want TurnEnd", events[len(events)-1])
	}
}

func TestTurnDropsFramesAfterStop(t *testing.T) {
	recognizer := stt.NewMockSpeechToText("ok", zap.NewNop())
	rec := newEventRecorder()

	turn := NewTurnSession(entities.NewSession("sess-late"), recognizer, &fakeReplyer{reply: "r"}, &fakeTTS{}, nil, rec.send, rec.finish, zap.NewNop())
	turn.Begin(context.Background())
	turn.PushFrame([]byte{1})
	turn.Stop()

	// A frame racing the stop is dropped, not an error.
	turn.PushFrame([]byte{2})

	rec.wait(t)

	if got := len(recognizer.Streams()[0].Frames()); got != 1 {
		t.Errorf("backend received %d frames, want 1", got)
	}
}

func TestTurnRecordsRecentResult(t *testing.T) {
	recognizer := stt.NewMockSpeechToText("what is the weather", zap.NewNop())
	results := memory.NewRecentResultRepository()
	rec := newEventRecorder()

	turn := NewTurnSession(entities.NewSession("sess-store"), recognizer, &fakeReplyer{reply: "Sunny, seeker."}, &fakeTTS{chunks: [][]byte{{1}}}, results, rec.send, rec.finish, zap.NewNop())
	turn.Begin(context.Background())
	turn.PushFrame([]byte{1})
	turn.Stop()
	rec.wait(t)

	stored, err := results.FindBySession(context.Background(), "sess-store")
	if err != nil {
		t.Fatalf("FindBySession failed: %v", err)
	}
	if stored == nil {
		t.Fatal("expected a stored recent result")
	}
	if stored.Transcription != "what is the weather" {
		t.Errorf("stored transcription = %q", stored.Transcription)
	}
	if stored.Reply != "Sunny, seeker." {
		t.Errorf("stored reply = %q", stored.Reply)
	}
}

func TestTurnAbortEmitsNothingFurther(t *testing.T) {
	recognizer := stt.NewMockSpeechToText("ok", zap.NewNop())
	rec := newEventRecorder()

	turn := NewTurnSession(entities.NewSession("sess-abort"), recognizer, &fakeReplyer{reply: "r"}, &fakeTTS{}, nil, rec.send, rec.finish, zap.NewNop())
	turn.Begin(context.Background())
	turn.PushFrame([]byte{1})

	turn.Abort()

	rec.mu.Lock()
	before := len(rec.events)
	rec.mu.Unlock()

	// The backend finishing late must not produce events after abort.
	recognizer.Streams()[0].Finish()
	time.Sleep(100 * time.Millisecond)

	rec.mu.Lock()
	after := len(rec.events)
	rec.mu.Unlock()

	if after != before {
		t.Errorf("events emitted after abort: before=%d after=%d", before, after)
	}
	if !turn.Session().IsExpired() {
		t.Error("session still active after abort")
	}
}
