package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// Config carries everything read from the environment at startup.
type Config struct {
	Port      string
	JWTSecret string

	GeminiAPIKey string
	MurfAPIKey   string
	MurfVoiceID  string
	SerperAPIKey string

	MongoURI      string
	MongoDatabase string

	// MaxUploadBytes caps one-shot recording uploads.
	MaxUploadBytes int64
}

// Load reads .env (if present) and the process environment.
func Load(logger *zap.Logger) *Config {
	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file loaded", zap.Error(err))
	}

	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		JWTSecret:      getEnv("JWT_SECRET", ""),
		GeminiAPIKey:   os.Getenv("GEMINI_API_KEY"),
		MurfAPIKey:     os.Getenv("MURF_API_KEY"),
		MurfVoiceID:    getEnv("MURF_VOICE_ID", "en-US-ken"),
		SerperAPIKey:   os.Getenv("SERPER_API_KEY"),
		MongoURI:       os.Getenv("MONGODB_URI"),
		MongoDatabase:  getEnv("MONGODB_DATABASE", "voiceagent"),
		MaxUploadBytes: getEnvInt64("MAX_UPLOAD_BYTES", 10*1024*1024),
	}

	if cfg.GeminiAPIKey == "" {
		logger.Warn("GEMINI_API_KEY missing - AI responses will fail")
	}
	if cfg.MurfAPIKey == "" {
		logger.Warn("MURF_API_KEY missing - voice synthesis will fail")
	}
	if cfg.SerperAPIKey == "" {
		logger.Warn("SERPER_API_KEY missing - web search will be disabled")
	}

	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
