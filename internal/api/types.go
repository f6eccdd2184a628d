package api

import "github.com/rahulvarma2468/ai-voice-agent/domain/repositories"

// TokenRequest asks for a session token. SessionID is optional; the server
// assigns one when absent.
type TokenRequest struct {
	SessionID string `json:"session_id"`
}

// TokenResponse carries the issued session token.
type TokenResponse struct {
	Token     string `json:"token"`
	SessionID string `json:"session_id"`
}

// TranscriptionResponse is the result of a file transcription.
type TranscriptionResponse struct {
	Transcription string `json:"transcription"`
	SizeBytes     int    `json:"size_bytes"`
}

// GenerateAudioRequest asks for speech synthesis of the given text.
type GenerateAudioRequest struct {
	Text string `json:"text"`
}

// GenerateAudioResponse carries base64 PCM for the synthesized text.
type GenerateAudioResponse struct {
	AudioBase64 string `json:"audio_base64"`
}

// RecentTranscriptionsResponse lists recently completed turns, newest first.
type RecentTranscriptionsResponse struct {
	Results []repositories.RecentResult `json:"results"`
	Count   int                         `json:"count"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse reports service liveness.
type HealthResponse struct {
	Status         string `json:"status"`
	ActiveSessions int    `json:"active_sessions"`
}
