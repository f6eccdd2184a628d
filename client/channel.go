package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/rahulvarma2468/ai-voice-agent/internal/stream"
)

// ChannelState tracks the duplex channel lifecycle. Transitions only move
// forward; a closed channel is never reopened.
type ChannelState int

const (
	ChannelIdle ChannelState = iota
	ChannelConnecting
	ChannelOpen
	ChannelClosing
	ChannelClosed
)

func (s ChannelState) String() string {
	switch s {
	case ChannelIdle:
		return "idle"
	case ChannelConnecting:
		return "connecting"
	case ChannelOpen:
		return "open"
	case ChannelClosing:
		return "closing"
	case ChannelClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Callbacks receives channel events. Nil fields are skipped. All callbacks run
// on the channel's read goroutine; they must not block.
type Callbacks struct {
	OnConnectionEstablished func(sessionID string)
	OnAudioReceived         func(bytes int)
	OnTranscribing          func(message string)
	OnPartialTranscript     func(text string)
	OnFinalTranscript       func(text string)
	OnTranscriptionError    func(message string)
	OnAudioChunk            func(data string)
	OnAudioStreamEnd        func()
	OnTurnEnd               func()
	OnError                 func(message string)

	// OnClosed fires exactly once when the channel reaches Closed. err is nil
	// for a clean close.
	OnClosed func(err error)
}

const (
	handshakeTimeout = 10 * time.Second
	closeGrace       = time.Second
)

// DuplexAudioChannel is the client side of the streaming protocol: binary PCM
// frames up, JSON events down, over one websocket. Frames are sent in capture
// order; every frame is also retained locally so a dropped channel can be
// recovered by a one-shot upload.
type DuplexAudioChannel struct {
	url       string
	callbacks Callbacks
	logger    *zap.Logger

	mu        sync.Mutex
	state     ChannelState
	conn      *websocket.Conn
	sessionID string
	recording []byte

	established chan struct{}
	readerDone  chan struct{}
	closeOnce   sync.Once
	closeErr    error
}

// NewDuplexAudioChannel creates an idle channel targeting a websocket URL.
func NewDuplexAudioChannel(url string, callbacks Callbacks, logger *zap.Logger) *DuplexAudioChannel {
	return &DuplexAudioChannel{
		url:         url,
		callbacks:   callbacks,
		logger:      logger,
		state:       ChannelIdle,
		established: make(chan struct{}),
		readerDone:  make(chan struct{}),
	}
}

// State returns the current channel state.
func (d *DuplexAudioChannel) State() ChannelState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// SessionID returns the server-assigned session id, empty before handshake.
func (d *DuplexAudioChannel) SessionID() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sessionID
}

// Open dials the server and waits for connection_established. The
// server-assigned session id supersedes anything the caller held before.
func (d *DuplexAudioChannel) Open(ctx context.Context) error {
	d.mu.Lock()
	if d.state != ChannelIdle {
		state := d.state
		d.mu.Unlock()
		return fmt.Errorf("channel is %s, not idle", state)
	}
	d.state = ChannelConnecting
	d.mu.Unlock()

	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, d.url, nil)
	if err != nil {
		d.finish(fmt.Errorf("failed to dial %s: %w", d.url, err))
		return err
	}

	d.mu.Lock()
	d.conn = conn
	d.mu.Unlock()

	go d.readLoop()

	select {
	case <-d.established:
		d.mu.Lock()
		d.state = ChannelOpen
		d.mu.Unlock()
		return nil
	case <-d.readerDone:
		return fmt.Errorf("channel closed before handshake")
	case <-ctx.Done():
		conn.Close()
		return ctx.Err()
	case <-time.After(handshakeTimeout):
		conn.Close()
		return fmt.Errorf("timed out waiting for handshake")
	}
}

// SendAudioFrame sends one raw PCM frame. Frames sent outside Open are dropped
// silently; a stop racing capture is a valid interleaving, not an error.
func (d *DuplexAudioChannel) SendAudioFrame(pcm []byte) error {
	d.mu.Lock()
	if d.state != ChannelOpen {
		d.mu.Unlock()
		return nil
	}
	conn := d.conn
	d.recording = append(d.recording, pcm...)
	d.mu.Unlock()

	if err := conn.WriteMessage(websocket.BinaryMessage, pcm); err != nil {
		return fmt.Errorf("failed to send audio frame: %w", err)
	}
	return nil
}

// SendStop signals end of input for the current turn.
func (d *DuplexAudioChannel) SendStop() error {
	d.mu.Lock()
	if d.state != ChannelOpen {
		d.mu.Unlock()
		return nil
	}
	conn := d.conn
	d.mu.Unlock()

	if err := conn.WriteMessage(websocket.TextMessage, []byte(stream.StopStreaming)); err != nil {
		return fmt.Errorf("failed to send stop: %w", err)
	}
	return nil
}

// Recording returns everything sent so far this connection, in capture order.
// This is the payload for the one-shot fallback upload.
func (d *DuplexAudioChannel) Recording() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]byte(nil), d.recording...)
}

// Close performs a graceful shutdown: close frame, short grace period for the
// server's close reply, then teardown. Safe to call from any state and more
// than once.
func (d *DuplexAudioChannel) Close() error {
	d.mu.Lock()
	if d.state == ChannelClosed {
		d.mu.Unlock()
		return nil
	}
	d.state = ChannelClosing
	conn := d.conn
	d.mu.Unlock()

	if conn != nil {
		deadline := time.Now().Add(closeGrace)
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)

		select {
		case <-d.readerDone:
		case <-time.After(closeGrace):
			conn.Close()
		}
	}

	d.finish(nil)
	return nil
}

// readLoop pumps server events into the callbacks. A single goroutine keeps
// event delivery in arrival order.
func (d *DuplexAudioChannel) readLoop() {
	defer close(d.readerDone)

	conn := d.conn
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				d.finish(nil)
			} else {
				d.mu.Lock()
				closing := d.state == ChannelClosing || d.state == ChannelClosed
				d.mu.Unlock()
				if closing {
					d.finish(nil)
				} else {
					d.finish(fmt.Errorf("channel read failed: %w", err))
				}
			}
			return
		}

		ev, err := stream.Decode(message)
		if err != nil {
			d.logger.Warn("Ignoring undecodable server event", zap.Error(err))
			continue
		}
		d.dispatch(ev)
	}
}

func (d *DuplexAudioChannel) dispatch(ev stream.ServerEvent) {
	cb := d.callbacks

	switch e := ev.(type) {
	case stream.ConnectionEstablished:
		d.mu.Lock()
		d.sessionID = e.SessionID
		d.mu.Unlock()
		select {
		case <-d.established:
		default:
			close(d.established)
		}
		if cb.OnConnectionEstablished != nil {
			cb.OnConnectionEstablished(e.SessionID)
		}
	case stream.AudioReceived:
		if cb.OnAudioReceived != nil {
			cb.OnAudioReceived(e.Bytes)
		}
	case stream.Transcribing:
		if cb.OnTranscribing != nil {
			cb.OnTranscribing(e.Message)
		}
	case stream.PartialTranscript:
		if cb.OnPartialTranscript != nil {
			cb.OnPartialTranscript(e.Text)
		}
	case stream.FinalTranscript:
		if cb.OnFinalTranscript != nil {
			cb.OnFinalTranscript(e.Text)
		}
	case stream.TranscriptionError:
		if cb.OnTranscriptionError != nil {
			cb.OnTranscriptionError(e.Message)
		}
	case stream.AudioChunk:
		if cb.OnAudioChunk != nil {
			cb.OnAudioChunk(e.Data)
		}
	case stream.AudioStreamEnd:
		if cb.OnAudioStreamEnd != nil {
			cb.OnAudioStreamEnd()
		}
	case stream.TurnEnd:
		if cb.OnTurnEnd != nil {
			cb.OnTurnEnd()
		}
	case stream.ErrorEvent:
		if cb.OnError != nil {
			cb.OnError(e.Message)
		}
	}
}

// finish moves the channel to Closed and fires OnClosed exactly once.
func (d *DuplexAudioChannel) finish(err error) {
	d.closeOnce.Do(func() {
		d.mu.Lock()
		d.state = ChannelClosed
		d.closeErr = err
		conn := d.conn
		d.mu.Unlock()

		if conn != nil {
			conn.Close()
		}
		if d.callbacks.OnClosed != nil {
			d.callbacks.OnClosed(err)
		}
	})
}
