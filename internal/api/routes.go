package api

import (
	"encoding/base64"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/rahulvarma2468/ai-voice-agent/domain/repositories"
	"github.com/rahulvarma2468/ai-voice-agent/internal/auth"
	"github.com/rahulvarma2468/ai-voice-agent/internal/persona"
	"github.com/rahulvarma2468/ai-voice-agent/internal/stream"
	"github.com/rahulvarma2468/ai-voice-agent/usecase"
)

// Dependencies carries everything the HTTP layer needs.
type Dependencies struct {
	Hub          *stream.Hub
	Conversation *usecase.ConversationService
	Results      repositories.RecentResultRepository
	History      repositories.HistoryRepository

	// MaxUploadBytes caps one-shot recording uploads.
	MaxUploadBytes int64

	Logger *zap.Logger
}

// InitRoutes registers all HTTP and websocket routes.
func InitRoutes(e *echo.Echo, deps Dependencies) {
	h := &handlers{deps: deps}

	e.GET("/health", h.health)

	v1 := e.Group("/api/v1")
	v1.POST("/session/token", h.issueToken)

	e.GET("/ws", h.handleWebSocket)

	e.POST("/agent/chat/:session_id", h.agentChat)
	e.GET("/agent/history/:session_id", h.getHistory)
	e.DELETE("/agent/history/:session_id", h.clearHistory)

	e.GET("/recent-transcriptions", h.recentTranscriptions)
	e.POST("/transcribe/file", h.transcribeFile)
	e.POST("/generate-audio", h.generateAudio)

	e.GET("/persona/info", h.personaInfo)
	e.GET("/persona/greeting", h.personaGreeting)
}

type handlers struct {
	deps Dependencies
}

func (h *handlers) health(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{
		Status:         "healthy",
		ActiveSessions: len(h.deps.Hub.ActiveSessions()),
	})
}

// issueToken mints a session token. The server assigns the session id when the
// client does not bring one.
func (h *handlers) issueToken(c echo.Context) error {
	var req TokenRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	token, err := auth.GenerateSessionToken(sessionID)
	if err != nil {
		h.deps.Logger.Error("Failed to generate session token", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to generate token"})
	}

	return c.JSON(http.StatusOK, TokenResponse{Token: token, SessionID: sessionID})
}

// handleWebSocket opens the duplex streaming channel. A token, when present,
// binds the connection to its session id; without one the server assigns a
// fresh id on handshake.
func (h *handlers) handleWebSocket(c echo.Context) error {
	sessionID := ""

	if token := c.QueryParam("token"); token != "" {
		claims, err := auth.ValidateToken(token)
		if err != nil {
			h.deps.Logger.Warn("Rejected websocket with invalid token", zap.Error(err))
			return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid token"})
		}
		if claims.Role != "session" {
			return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid token role"})
		}
		sessionID = claims.SessionID
	}

	return stream.HandleWebSocket(h.deps.Hub, c, sessionID, h.deps.Logger)
}

// agentChat runs the one-shot pipeline on an uploaded recording: transcribe,
// reply, synthesize. This is the recovery path for clients whose streaming
// channel dropped.
func (h *handlers) agentChat(c echo.Context) error {
	sessionID := c.Param("session_id")
	if sessionID == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "session id is required"})
	}

	audioData, err := h.readUpload(c)
	if err != nil {
		return err
	}

	result, err := h.deps.Conversation.ProcessVoiceTurn(c.Request().Context(), sessionID, audioData)
	if err != nil {
		h.deps.Logger.Error("Voice turn failed",
			zap.String("sessionID", sessionID),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: persona.ErrorResponse(persona.ErrorGeneral),
		})
	}

	return c.JSON(http.StatusOK, result)
}

func (h *handlers) getHistory(c echo.Context) error {
	sessionID := c.Param("session_id")
	if sessionID == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "session id is required"})
	}

	msgs, err := h.deps.History.Get(c.Request().Context(), sessionID)
	if err != nil {
		h.deps.Logger.Error("Failed to load history", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to load history"})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"session_id": sessionID,
		"messages":   msgs,
		"count":      len(msgs),
	})
}

func (h *handlers) clearHistory(c echo.Context) error {
	sessionID := c.Param("session_id")
	if sessionID == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "session id is required"})
	}

	if err := h.deps.History.Clear(c.Request().Context(), sessionID); err != nil {
		h.deps.Logger.Error("Failed to clear history", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to clear history"})
	}

	return c.JSON(http.StatusOK, map[string]string{"session_id": sessionID, "status": "cleared"})
}

// recentTranscriptions serves the fallback polling source: the newest completed
// turns across all sessions.
func (h *handlers) recentTranscriptions(c echo.Context) error {
	results, err := h.deps.Results.List(c.Request().Context(), 10)
	if err != nil {
		h.deps.Logger.Error("Failed to list recent transcriptions", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to list results"})
	}

	if results == nil {
		results = []repositories.RecentResult{}
	}
	return c.JSON(http.StatusOK, RecentTranscriptionsResponse{Results: results, Count: len(results)})
}

// transcribeFile transcribes an uploaded recording without generating a reply.
func (h *handlers) transcribeFile(c echo.Context) error {
	audioData, err := h.readUpload(c)
	if err != nil {
		return err
	}

	transcription, err := h.deps.Conversation.Transcribe(c.Request().Context(), audioData)
	if err != nil {
		h.deps.Logger.Error("File transcription failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: persona.ErrorResponse(persona.ErrorTranscription),
		})
	}

	return c.JSON(http.StatusOK, TranscriptionResponse{
		Transcription: transcription,
		SizeBytes:     len(audioData),
	})
}

// generateAudio synthesizes speech for arbitrary text.
func (h *handlers) generateAudio(c echo.Context) error {
	var req GenerateAudioRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	}
	if req.Text == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "text is required"})
	}

	audio, err := h.deps.Conversation.Synthesize(c.Request().Context(), req.Text)
	if err != nil {
		h.deps.Logger.Error("Audio generation failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: persona.ErrorResponse(persona.ErrorSynthesis),
		})
	}

	return c.JSON(http.StatusOK, GenerateAudioResponse{
		AudioBase64: base64.StdEncoding.EncodeToString(audio),
	})
}

func (h *handlers) personaInfo(c echo.Context) error {
	return c.JSON(http.StatusOK, persona.Info())
}

func (h *handlers) personaGreeting(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"name":     persona.Name,
		"greeting": persona.Greeting(),
	})
}

// readUpload accepts a recording as either a multipart "file" field or the raw
// request body, enforcing the upload size cap.
func (h *handlers) readUpload(c echo.Context) (audioData []byte, err error) {
	limit := h.deps.MaxUploadBytes
	if limit <= 0 {
		limit = 10 * 1024 * 1024
	}

	if file, ferr := c.FormFile("file"); ferr == nil {
		if file.Size > limit {
			return nil, echo.NewHTTPError(http.StatusRequestEntityTooLarge, "file too large")
		}
		src, oerr := file.Open()
		if oerr != nil {
			return nil, oerr
		}
		defer src.Close()
		return io.ReadAll(io.LimitReader(src, limit))
	}

	body := io.LimitReader(c.Request().Body, limit+1)
	audioData, err = io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	if int64(len(audioData)) > limit {
		return nil, echo.NewHTTPError(http.StatusRequestEntityTooLarge, "recording too large")
	}
	if len(audioData) == 0 {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "audio data is required")
	}
	return audioData, nil
}
