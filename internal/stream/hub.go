package stream

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/rahulvarma2468/ai-voice-agent/domain/entities"
	"github.com/rahulvarma2468/ai-voice-agent/domain/repositories"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512 * 1024 // 512KB for audio frames
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Hub maintains the set of active streaming clients. Sessions are independent;
// nothing mutable is shared between them beyond this registry.
type Hub struct {
	clients map[string]*Client

	register   chan *Client
	unregister chan *Client

	mu sync.RWMutex

	stt     repositories.SpeechToText
	tts     repositories.TextToSpeech
	replyer ReplyGenerator
	results repositories.RecentResultRepository

	logger *zap.Logger
}

// NewHub creates a new streaming hub.
func NewHub(
	stt repositories.SpeechToText,
	tts repositories.TextToSpeech,
	replyer ReplyGenerator,
	results repositories.RecentResultRepository,
	logger *zap.Logger,
) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		stt:        stt,
		tts:        tts,
		replyer:    replyer,
		results:    results,
		logger:     logger,
	}
}

// Run starts the hub's main loop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.sessionID] = client
			h.mu.Unlock()
			h.logger.Info("Client registered", zap.String("sessionID", client.sessionID))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.sessionID]; ok {
				delete(h.clients, client.sessionID)
				// send is never closed; a turn goroutine may still be
				// queueing events. done tells both pumps to stand down.
				close(client.done)
			}
			h.mu.Unlock()
			h.logger.Info("Client unregistered", zap.String("sessionID", client.sessionID))
		}
	}
}

// ActiveSessions returns the session ids with an open channel.
func (h *Hub) ActiveSessions() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.clients))
	for id := range h.clients {
		ids = append(ids, id)
	}
	return ids
}

// Session returns the entity for an open session, or nil once it is gone.
func (h *Hub) Session(id string) *entities.Session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if client, ok := h.clients[id]; ok {
		return client.turn.Session()
	}
	return nil
}

// WriteData is one queued outbound websocket write.
type WriteData struct {
	// Type is websocket.TextMessage, websocket.BinaryMessage or
	// websocket.CloseMessage.
	Type    int
	Payload []byte
}

// Client is the middleman between one websocket connection and its
// TurnSession. Exactly one TurnSession accepts frames per session at a time.
type Client struct {
	hub *Hub

	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send chan WriteData

	// done is closed on unregister. It gates late sends from the turn's
	// goroutines and unblocks the write pump.
	done chan struct{}

	sessionID string

	turn *TurnSession

	closeOnce sync.Once

	logger *zap.Logger
}

// HandleWebSocket upgrades the request, assigns the authoritative session id,
// emits connection_established, and starts the turn.
func HandleWebSocket(hub *Hub, c echo.Context, sessionID string, logger *zap.Logger) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	// The server-assigned id supersedes whatever the client had before.
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	session := entities.NewSession(sessionID)
	if err := session.Validate(); err != nil {
		conn.Close()
		return err
	}

	client := &Client{
		hub:       hub,
		conn:      conn,
		send:      make(chan WriteData, 256),
		done:      make(chan struct{}),
		sessionID: sessionID,
		logger:    logger,
	}
	client.turn = NewTurnSession(
		session,
		hub.stt,
		hub.replyer,
		hub.tts,
		hub.results,
		client.sendEvent,
		client.beginClose,
		logger,
	)

	client.hub.register <- client

	go client.writePump()
	go client.readPump()

	client.sendEvent(ConnectionEstablished{SessionID: sessionID})

	// The upgrade request's context ends when this handler returns; the turn
	// lives as long as the connection, so it gets its own context, canceled
	// by teardown via Abort.
	client.turn.Begin(context.Background())

	return nil
}

// sendEvent encodes and queues one server event. A full send buffer drops the
// client rather than blocking the turn. Events for an unregistered client are
// discarded; send stays open so a turn racing the teardown cannot panic.
func (c *Client) sendEvent(ev ServerEvent) {
	select {
	case <-c.done:
		return
	default:
	}

	payload, err := Encode(ev)
	if err != nil {
		c.logger.Error("Failed to encode event",
			zap.String("sessionID", c.sessionID),
			zap.Error(err))
		return
	}

	// done may close between the check above and this send; the buffered
	// channel just holds the unread write in that case.
	select {
	case c.send <- WriteData{Type: websocket.TextMessage, Payload: payload}:
	default:
		c.logger.Warn("Send buffer full, closing client",
			zap.String("sessionID", c.sessionID))
		c.beginClose()
	}
}

// beginClose initiates a server-side graceful close after the turn finishes.
func (c *Client) beginClose() {
	c.closeOnce.Do(func() {
		select {
		case c.send <- WriteData{Type: websocket.CloseMessage, Payload: websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")}:
		default:
			c.conn.Close()
		}
	})
}

// readPump pumps messages from the websocket connection into the turn.
// Running in a single goroutine preserves frame arrival order end to end.
func (c *Client) readPump() {
	defer func() {
		c.turn.Abort()
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error",
					zap.String("sessionID", c.sessionID),
					zap.Error(err))
			}
			break
		}

		switch messageType {
		case websocket.BinaryMessage:
			c.turn.PushFrame(message)
		case websocket.TextMessage:
			if string(message) == StopStreaming {
				c.turn.Stop()
			} else {
				c.logger.Warn("Unknown control message",
					zap.String("sessionID", c.sessionID),
					zap.ByteString("message", message))
			}
		default:
			c.logger.Warn("Received unknown message type",
				zap.String("sessionID", c.sessionID),
				zap.Int("type", messageType))
		}
	}
}

// writePump pumps queued messages to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(message.Type, message.Payload); err != nil {
				c.logger.Error("Failed to write message",
					zap.String("sessionID", c.sessionID),
					zap.Error(err))
				return
			}
			if message.Type == websocket.CloseMessage {
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
