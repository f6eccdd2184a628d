package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rahulvarma2468/ai-voice-agent/domain/repositories"
)

const (
	defaultAPIBaseURL = "https://api.murf.ai/v1"
	defaultVoiceID    = "en-US-ken"
	defaultStyle      = "Conversational"
	defaultFormat     = "PCM" // raw samples, so chunk durations are derivable
	defaultSampleRate = 16000
	defaultChunkSize  = 4096
	maxTextLength     = 5000
)

// MurfConfig holds configuration for the MurfTTS adapter.
// Required fields:
// - APIKey: Your Murf API key
// Optional fields with defaults:
// - APIBaseURL: The base URL for the Murf API (default: "https://api.murf.ai/v1")
// - VoiceID: The voice to use (default: "en-US-ken")
// - Style: Speaking style (default: "Conversational")
// - Format: Output format (default: "PCM")
// - SampleRate: Output sample rate in Hz (default: 16000)
// - ChunkSize: Size of audio chunks to stream (default: 4096)
type MurfConfig struct {
	APIKey     string
	APIBaseURL string
	VoiceID    string
	Style      string
	Format     string
	SampleRate int
	ChunkSize  int
}

// ValidateMurfConfig validates the MurfConfig.
func ValidateMurfConfig(config MurfConfig) error {
	if config.APIKey == "" {
		return fmt.Errorf("murf API key is required")
	}
	if config.SampleRate < 0 {
		return fmt.Errorf("sample rate must be positive, got %d", config.SampleRate)
	}
	if config.ChunkSize < 0 {
		return fmt.Errorf("chunk size must be positive, got %d", config.ChunkSize)
	}
	return nil
}

// MurfTTS implements TextToSpeech using the Murf speech generation API. The
// generate endpoint returns a reference to the rendered audio; the adapter
// downloads it and streams it out as ordered fixed-size chunks.
type MurfTTS struct {
	apiKey     string
	apiBaseURL string
	voiceID    string
	style      string
	format     string
	sampleRate int
	chunkSize  int
	httpClient *http.Client
	logger     *zap.Logger
}

var _ repositories.TextToSpeech = (*MurfTTS)(nil)

// murfRequest is the payload for the speech generation endpoint.
type murfRequest struct {
	Text       string `json:"text"`
	VoiceID    string `json:"voiceId"`
	Style      string `json:"style,omitempty"`
	Format     string `json:"format"`
	SampleRate int    `json:"sampleRate"`
}

type murfResponse struct {
	AudioFile    string `json:"audioFile"`
	ErrorMessage string `json:"errorMessage"`
}

// NewMurfTTS creates a new Murf TTS instance.
func NewMurfTTS(config MurfConfig, logger *zap.Logger) (*MurfTTS, error) {
	if err := ValidateMurfConfig(config); err != nil {
		return nil, err
	}

	apiBaseURL := config.APIBaseURL
	if apiBaseURL == "" {
		apiBaseURL = defaultAPIBaseURL
	}
	voiceID := config.VoiceID
	if voiceID == "" {
		voiceID = defaultVoiceID
		logger.Info("Using default voice ID", zap.String("voiceID", voiceID))
	}
	style := config.Style
	if style == "" {
		style = defaultStyle
	}
	format := config.Format
	if format == "" {
		format = defaultFormat
	}
	sampleRate := config.SampleRate
	if sampleRate == 0 {
		sampleRate = defaultSampleRate
	}
	chunkSize := config.ChunkSize
	if chunkSize == 0 {
		chunkSize = defaultChunkSize
	}

	return &MurfTTS{
		apiKey:     config.APIKey,
		apiBaseURL: apiBaseURL,
		voiceID:    voiceID,
		style:      style,
		format:     format,
		sampleRate: sampleRate,
		chunkSize:  chunkSize,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     logger,
	}, nil
}

// Generate renders text to speech and returns the audio file reference.
func (m *MurfTTS) Generate(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("text cannot be empty")
	}
	if len(text) > maxTextLength {
		return "", fmt.Errorf("text too long for synthesis: %d bytes", len(text))
	}

	requestBody, err := json.Marshal(murfRequest{
		Text:       text,
		VoiceID:    m.voiceID,
		Style:      m.style,
		Format:     m.format,
		SampleRate: m.sampleRate,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/speech/generate", m.apiBaseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(requestBody))
	if err != nil {
		return "", fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("api-key", m.apiKey)

	resp, err := m.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to execute HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errorBody, _ := io.ReadAll(resp.Body)
		m.logger.Error("Murf API returned error",
			zap.Int("statusCode", resp.StatusCode),
			zap.String("response", string(errorBody)))
		return "", fmt.Errorf("murf API error: status %d", resp.StatusCode)
	}

	var result murfResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if result.AudioFile == "" {
		return "", fmt.Errorf("murf API returned no audio file: %s", result.ErrorMessage)
	}

	return result.AudioFile, nil
}

// ConvertTextToSpeech converts text to speech and streams the audio back as
// ordered chunks. The channel is closed after the last chunk.
func (m *MurfTTS) ConvertTextToSpeech(ctx context.Context, text string) (<-chan []byte, error) {
	audioURL, err := m.Generate(ctx, text)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, audioURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create audio request: %w", err)
	}

	resp, err := m.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch audio: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("audio fetch error: status %d", resp.StatusCode)
	}

	audioChan := make(chan []byte, 10)

	go func() {
		defer close(audioChan)
		defer resp.Body.Close()

		buffer := make([]byte, m.chunkSize)
		totalBytes := 0
		chunkCount := 0

		for {
			select {
			case <-ctx.Done():
				m.logger.Warn("Context cancelled while streaming audio data")
				return
			default:
			}

			n, err := resp.Body.Read(buffer)
			if n > 0 {
				totalBytes += n
				chunkCount++

				chunk := make([]byte, n)
				copy(chunk, buffer[:n])

				select {
				case audioChan <- chunk:
				case <-ctx.Done():
					m.logger.Warn("Context cancelled while sending audio chunk")
					return
				}
			}

			if err == io.EOF {
				m.logger.Info("Finished streaming audio data",
					zap.Int("totalChunks", chunkCount),
					zap.Int("totalBytes", totalBytes))
				return
			}
			if err != nil {
				m.logger.Error("Error reading audio body", zap.Error(err))
				return
			}
		}
	}()

	return audioChan, nil
}

// NewMurfConfigFromEnv creates a MurfConfig from environment variables.
func NewMurfConfigFromEnv() MurfConfig {
	config := MurfConfig{
		APIKey:     strings.Trim(os.Getenv("MURF_API_KEY"), `"'`),
		APIBaseURL: os.Getenv("MURF_API_BASE_URL"),
		VoiceID:    os.Getenv("MURF_VOICE_ID"),
		Style:      os.Getenv("MURF_STYLE"),
		Format:     os.Getenv("MURF_FORMAT"),
	}

	if v := os.Getenv("MURF_SAMPLE_RATE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.SampleRate = n
		}
	}
	if v := os.Getenv("MURF_CHUNK_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.ChunkSize = n
		}
	}

	return config
}
