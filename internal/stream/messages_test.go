package stream

import (
	"errors"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	events := []ServerEvent{
		ConnectionEstablished{SessionID: "sess-42"},
		AudioReceived{Bytes: 3200},
		Transcribing{Message: "listening"},
		PartialTranscript{Text: "tell me"},
		FinalTranscript{Text: "tell me about dragons"},
		TranscriptionError{Message: "could not hear"},
		AudioChunk{Data: "UENN"},
		AudioStreamEnd{},
		TurnEnd{},
		ErrorEvent{Message: "something failed"},
	}

	for _, ev := range events {
		payload, err := Encode(ev)
		if err != nil {
			t.Fatalf("Encode(%T) failed: %v", ev, err)
		}

		decoded, err := Decode(payload)
		if err != nil {
			t.Fatalf("Decode(%T) failed: %v", ev, err)
		}
		if decoded != ev {
			t.Errorf("round trip changed event: got %#v, want %#v", decoded, ev)
		}
	}
}

func TestDecodeUnknownType(t *testing.T) {
	_, err := Decode([]byte(`{"type":"made_up_event"}`))
	if !errors.Is(err, ErrUnknownEventType) {
		t.Fatalf("expected ErrUnknownEventType, got %v", err)
	}
}

func TestDecodeInvalidJSON(t *testing.T) {
	if _, err := Decode([]byte(`{not json`)); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestDecodeCarriesSessionID(t *testing.T) {
	ev, err := Decode([]byte(`{"type":"connection_established","session_id":"abc"}`))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	ce, ok := ev.(ConnectionEstablished)
	if !ok {
		t.Fatalf("expected ConnectionEstablished, got %T", ev)
	}
	if ce.SessionID != "abc" {
		t.Errorf("session id = %q, want %q", ce.SessionID, "abc")
	}
}
