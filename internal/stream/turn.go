package stream

import (
	"context"
	"encoding/base64"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rahulvarma2468/ai-voice-agent/domain/entities"
	"github.com/rahulvarma2468/ai-voice-agent/domain/repositories"
	"github.com/rahulvarma2468/ai-voice-agent/internal/persona"
)

// TurnState tracks where a turn is in its lifecycle. Transitions only move
// forward; TurnErrored is reachable from any non-terminal state.
type TurnState int

const (
	TurnAwaitingAudio TurnState = iota
	TurnTranscribing
	TurnAwaitingSynthesis
	TurnStreamingAudio
	TurnDone
	TurnErrored
)

func (s TurnState) String() string {
	switch s {
	case TurnAwaitingAudio:
		return "awaiting_audio"
	case TurnTranscribing:
		return "transcribing"
	case TurnAwaitingSynthesis:
		return "awaiting_synthesis"
	case TurnStreamingAudio:
		return "streaming_audio"
	case TurnDone:
		return "done"
	case TurnErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// ReplyGenerator produces the assistant's reply text for a finalized
// transcript. It may perform a web-lookup sub-step and records history.
type ReplyGenerator interface {
	Reply(ctx context.Context, sessionID, text string) (string, error)
}

// TurnSession is the server-side state machine for one turn on one channel.
// It accepts audio frames in arrival order, forwards them to the transcription
// backend, emits transcript events, and streams the synthesized reply back as
// ordered chunks. Exactly one final_transcript or one transcription_error is
// emitted per turn.
type TurnSession struct {
	session *entities.Session
	stt     repositories.SpeechToText
	replyer ReplyGenerator
	tts     repositories.TextToSpeech
	results repositories.RecentResultRepository
	send    func(ServerEvent)
	done    func()
	logger  *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	state      TurnState
	sttStream  repositories.SpeechToTextStreaming
	frameCount int
	finished   bool
}

// NewTurnSession wires a turn to its collaborators. The session entity records
// the exchange and tracks liveness; send delivers events to the channel's
// write pump; done tells the owner the server side is finished and may
// initiate close.
func NewTurnSession(
	session *entities.Session,
	stt repositories.SpeechToText,
	replyer ReplyGenerator,
	tts repositories.TextToSpeech,
	results repositories.RecentResultRepository,
	send func(ServerEvent),
	done func(),
	logger *zap.Logger,
) *TurnSession {
	return &TurnSession{
		session: session,
		stt:     stt,
		replyer: replyer,
		tts:     tts,
		results: results,
		send:    send,
		done:    done,
		logger:  logger,
		state:   TurnAwaitingAudio,
	}
}

// State returns the current turn state.
func (t *TurnSession) State() TurnState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Session returns the entity this turn records into. The turn mutates it only
// under its own mutex.
func (t *TurnSession) Session() *entities.Session {
	return t.session
}

// Begin initializes the streaming transcription backend and starts consuming
// its events. A backend that cannot start fails the turn immediately.
func (t *TurnSession) Begin(ctx context.Context) {
	t.ctx, t.cancel = context.WithCancel(ctx)

	sttStream, err := t.stt.InitTranscribeStreaming(t.ctx, repositories.AudioConfig{
		SampleRate: entities.SampleRate,
		Encoding:   "LINEAR16",
		Language:   "en-US",
	})
	if err != nil {
		t.logger.Error("Failed to initialize streaming transcription",
			zap.String("sessionID", t.session.ID),
			zap.Error(err))
		t.fail(err)
		return
	}

	t.mu.Lock()
	t.sttStream = sttStream
	t.mu.Unlock()

	go t.consumeTranscripts(sttStream)
}

// PushFrame forwards one raw PCM frame to the transcription backend. Frames
// arriving outside AwaitingAudio are dropped, not an error; a stop racing an
// in-flight frame is a valid interleaving.
func (t *TurnSession) PushFrame(data []byte) {
	t.mu.Lock()
	if t.state != TurnAwaitingAudio || t.sttStream == nil {
		state := t.state
		t.mu.Unlock()
		t.logger.Debug("Dropping audio frame outside awaiting_audio",
			zap.String("sessionID", t.session.ID),
			zap.String("state", state.String()))
		return
	}
	t.frameCount++
	first := t.frameCount == 1
	sttStream := t.sttStream
	t.mu.Unlock()

	if first {
		t.send(Transcribing{Message: "The mists part... I am listening."})
	}

	if err := sttStream.Stream(data); err != nil {
		t.logger.Error("Failed to stream audio frame to backend",
			zap.String("sessionID", t.session.ID),
			zap.Error(err))
		return
	}

	t.send(AudioReceived{Bytes: len(data)})
}

// Stop handles the client's stop_streaming control message: end of input. The
// backend finishes in-flight transcription and delivers the final result on
// its event stream.
func (t *TurnSession) Stop() {
	t.mu.Lock()
	if t.state != TurnAwaitingAudio || t.sttStream == nil {
		t.mu.Unlock()
		return
	}
	t.state = TurnTranscribing
	sttStream := t.sttStream
	t.mu.Unlock()

	if err := sttStream.Finish(); err != nil {
		t.logger.Error("Failed to finish transcription stream",
			zap.String("sessionID", t.session.ID),
			zap.Error(err))
	}
}

// Abort tears the turn down without emitting further events. Pending backend
// calls are abandoned via context cancellation; their late results are
// discarded by the terminal-state guards.
func (t *TurnSession) Abort() {
	t.mu.Lock()
	if t.state != TurnDone && t.state != TurnErrored {
		t.state = TurnDone
	}
	t.finished = true
	t.session.Terminate()
	t.mu.Unlock()
	if t.cancel != nil {
		t.cancel()
	}
}

func (t *TurnSession) consumeTranscripts(sttStream repositories.SpeechToTextStreaming) {
	for ev := range sttStream.Events() {
		switch e := ev.(type) {
		case entities.PartialTranscript:
			t.mu.Lock()
			active := t.state == TurnAwaitingAudio || t.state == TurnTranscribing
			t.mu.Unlock()
			if active {
				t.send(PartialTranscript{Text: e.Text})
			}
		case entities.FinalTranscript:
			t.finalize(e.Text)
		case entities.TranscriptError:
			t.fail(e.Err)
		}
	}
}

// finalize emits the single final_transcript and moves on to synthesis. A
// second final from the backend, or one racing a failure, is discarded.
func (t *TurnSession) finalize(text string) {
	t.mu.Lock()
	if t.state != TurnAwaitingAudio && t.state != TurnTranscribing {
		t.mu.Unlock()
		return
	}
	t.state = TurnAwaitingSynthesis
	t.session.AddMessage(entities.Message{Role: entities.MessageRoleUser, Content: text})
	t.mu.Unlock()

	t.logger.Info("Transcription completed",
		zap.String("sessionID", t.session.ID),
		zap.String("transcription", text))

	t.send(FinalTranscript{Text: text})
	t.putRecentResult(text, "")

	t.respond(text)
}

// respond runs reply generation then speech synthesis and streams the audio
// back. Both collaborators may fail independently; failure emits a persona
// message and ends the turn.
func (t *TurnSession) respond(text string) {
	reply, err := t.replyer.Reply(t.ctx, t.session.ID, text)
	if err != nil {
		t.logger.Error("Reply generation failed",
			zap.String("sessionID", t.session.ID),
			zap.Error(err))
		t.send(ErrorEvent{Message: persona.ErrorResponse(persona.ErrorGeneration)})
		t.finish()
		return
	}

	audioChan, err := t.tts.ConvertTextToSpeech(t.ctx, reply)
	if err != nil {
		t.logger.Error("Speech synthesis failed",
			zap.String("sessionID", t.session.ID),
			zap.Error(err))
		t.send(ErrorEvent{Message: persona.ErrorResponse(persona.ErrorSynthesis)})
		t.finish()
		return
	}

	t.mu.Lock()
	t.state = TurnStreamingAudio
	t.session.AddMessage(entities.Message{Role: entities.MessageRoleAssistant, Content: reply})
	t.mu.Unlock()

	chunkCount := 0
	for chunk := range audioChan {
		chunkCount++
		t.send(AudioChunk{Data: base64.StdEncoding.EncodeToString(chunk)})
	}

	t.logger.Info("Finished streaming reply audio",
		zap.String("sessionID", t.session.ID),
		zap.Int("chunks", chunkCount))

	t.send(AudioStreamEnd{})
	t.putRecentResult(text, reply)
	t.finish()
}

// fail emits the single transcription_error and ends the turn. The session
// itself remains reusable on a fresh channel.
func (t *TurnSession) fail(err error) {
	t.mu.Lock()
	if t.state != TurnAwaitingAudio && t.state != TurnTranscribing {
		t.mu.Unlock()
		return
	}
	t.state = TurnErrored
	t.mu.Unlock()

	t.logger.Error("Transcription failed",
		zap.String("sessionID", t.session.ID),
		zap.Error(err))

	t.send(TranscriptionError{Message: persona.ErrorResponse(persona.ErrorTranscription)})
	t.finish()
}

// finish emits turn_end exactly once and notifies the owner.
func (t *TurnSession) finish() {
	t.mu.Lock()
	if t.finished {
		t.mu.Unlock()
		return
	}
	t.finished = true
	if t.state != TurnErrored {
		t.state = TurnDone
	}
	t.mu.Unlock()

	t.send(TurnEnd{})
	if t.cancel != nil {
		t.cancel()
	}
	if t.done != nil {
		t.done()
	}
}

// putRecentResult records the turn into the side-channel store that backs the
// client's fallback polling. Best effort; the primary path does not depend on
// it.
func (t *TurnSession) putRecentResult(transcription, reply string) {
	if t.results == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := t.results.Put(ctx, repositories.RecentResult{
		SessionID:     t.session.ID,
		Transcription: transcription,
		Reply:         reply,
		CreatedAt:     time.Now(),
	})
	if err != nil {
		t.logger.Warn("Failed to record recent result",
			zap.String("sessionID", t.session.ID),
			zap.Error(err))
	}
}
