package stream

import (
	"encoding/json"
	"fmt"
)

// EventType tags every server-to-client message on the duplex channel.
type EventType string

// Supported event types
const (
	EventConnectionEstablished EventType = "connection_established"
	EventAudioReceived         EventType = "audio_received"
	EventTranscribing          EventType = "transcribing"
	EventPartialTranscript     EventType = "partial_transcript"
	EventFinalTranscript       EventType = "final_transcript"
	EventTranscriptionError    EventType = "transcription_error"
	EventAudioChunk            EventType = "audio_chunk"
	EventAudioStreamEnd        EventType = "audio_stream_end"
	EventTurnEnd               EventType = "turn_end"
	EventError                 EventType = "error"
)

// StopStreaming is the single client-to-server text control message. All other
// client traffic is binary PCM frames.
const StopStreaming = "stop_streaming"

// ErrUnknownEventType is returned by Decode for unrecognized tags. Callers log
// and ignore; an unknown tag is never fatal.
var ErrUnknownEventType = fmt.Errorf("unknown event type")

// ServerEvent is the closed set of messages the server emits on the channel.
// One struct per protocol variant; the compiler keeps dispatch exhaustive.
type ServerEvent interface {
	Type() EventType
}

// ConnectionEstablished acknowledges the handshake and carries the
// authoritative server-assigned session id, which supersedes any client-side
// placeholder.
type ConnectionEstablished struct {
	SessionID string
}

// AudioReceived is a diagnostic ack of one inbound frame. Non-authoritative.
type AudioReceived struct {
	Bytes int
}

// Transcribing reports that backend processing has started.
type Transcribing struct {
	Message string
}

// PartialTranscript carries a superseding provisional result.
type PartialTranscript struct {
	Text string
}

// FinalTranscript completes the turn's transcription.
type FinalTranscript struct {
	Text string
}

// TranscriptionError reports a transcription failure.
type TranscriptionError struct {
	Message string
}

// AudioChunk carries one ordered synthesized-audio fragment, base64 encoded.
// Chunks carry no sequence numbers; in-order delivery is a transport
// invariant, not something receivers can verify.
type AudioChunk struct {
	Data string
}

// AudioStreamEnd signals no more audio chunks this turn.
type AudioStreamEnd struct{}

// TurnEnd signals the server is done; the client may close.
type TurnEnd struct{}

// ErrorEvent is a generic fatal-to-turn error with a persona message.
type ErrorEvent struct {
	Message string
}

func (ConnectionEstablished) Type() EventType { return EventConnectionEstablished }
func (AudioReceived) Type() EventType         { return EventAudioReceived }
func (Transcribing) Type() EventType          { return EventTranscribing }
func (PartialTranscript) Type() EventType     { return EventPartialTranscript }
func (FinalTranscript) Type() EventType       { return EventFinalTranscript }
func (TranscriptionError) Type() EventType    { return EventTranscriptionError }
func (AudioChunk) Type() EventType            { return EventAudioChunk }
func (AudioStreamEnd) Type() EventType        { return EventAudioStreamEnd }
func (TurnEnd) Type() EventType               { return EventTurnEnd }
func (ErrorEvent) Type() EventType            { return EventError }

// envelope is the wire shape shared by all events. Fields not used by a
// variant are omitted.
type envelope struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id,omitempty"`
	Bytes     int       `json:"bytes,omitempty"`
	Message   string    `json:"message,omitempty"`
	Text      string    `json:"text,omitempty"`
	Data      string    `json:"data,omitempty"`
}

// Encode marshals a server event to its JSON wire form.
func Encode(ev ServerEvent) ([]byte, error) {
	env := envelope{Type: ev.Type()}

	switch e := ev.(type) {
	case ConnectionEstablished:
		env.SessionID = e.SessionID
	case AudioReceived:
		env.Bytes = e.Bytes
	case Transcribing:
		env.Message = e.Message
	case PartialTranscript:
		env.Text = e.Text
	case FinalTranscript:
		env.Text = e.Text
	case TranscriptionError:
		env.Message = e.Message
	case AudioChunk:
		env.Data = e.Data
	case AudioStreamEnd, TurnEnd:
	case ErrorEvent:
		env.Message = e.Message
	default:
		return nil, fmt.Errorf("encode: unsupported event %T", ev)
	}

	return json.Marshal(env)
}

// Decode parses one wire message into its event variant. Unknown tags return
// ErrUnknownEventType so the receiver can log and move on.
func Decode(data []byte) (ServerEvent, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode: invalid JSON: %w", err)
	}

	switch env.Type {
	case EventConnectionEstablished:
		return ConnectionEstablished{SessionID: env.SessionID}, nil
	case EventAudioReceived:
		return AudioReceived{Bytes: env.Bytes}, nil
	case EventTranscribing:
		return Transcribing{Message: env.Message}, nil
	case EventPartialTranscript:
		return PartialTranscript{Text: env.Text}, nil
	case EventFinalTranscript:
		return FinalTranscript{Text: env.Text}, nil
	case EventTranscriptionError:
		return TranscriptionError{Message: env.Message}, nil
	case EventAudioChunk:
		return AudioChunk{Data: env.Data}, nil
	case EventAudioStreamEnd:
		return AudioStreamEnd{}, nil
	case EventTurnEnd:
		return TurnEnd{}, nil
	case EventError:
		return ErrorEvent{Message: env.Message}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, env.Type)
	}
}
