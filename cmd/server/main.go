package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/rahulvarma2468/ai-voice-agent/adapters/llm"
	"github.com/rahulvarma2468/ai-voice-agent/adapters/memory"
	mongoadapter "github.com/rahulvarma2468/ai-voice-agent/adapters/mongo"
	"github.com/rahulvarma2468/ai-voice-agent/adapters/search"
	"github.com/rahulvarma2468/ai-voice-agent/adapters/stt"
	"github.com/rahulvarma2468/ai-voice-agent/adapters/tts"
	"github.com/rahulvarma2468/ai-voice-agent/domain/repositories"
	"github.com/rahulvarma2468/ai-voice-agent/internal/api"
	"github.com/rahulvarma2468/ai-voice-agent/internal/auth"
	"github.com/rahulvarma2468/ai-voice-agent/internal/config"
	"github.com/rahulvarma2468/ai-voice-agent/internal/stream"
	"github.com/rahulvarma2468/ai-voice-agent/usecase"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg := config.Load(logger)
	auth.SetSecret(cfg.JWTSecret)

	// Create Echo instance
	e := echo.New()

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Stores: MongoDB when configured, in-process otherwise.
	var results repositories.RecentResultRepository
	var history repositories.HistoryRepository
	var mongoClient *mongoadapter.Client

	if cfg.MongoURI != "" {
		client, err := mongoadapter.NewClient(cfg.MongoURI, cfg.MongoDatabase, logger)
		if err != nil {
			logger.Fatal("Failed to connect to MongoDB", zap.Error(err))
		}
		mongoClient = client

		results, err = mongoadapter.NewRecentResultRepository(client.Database, logger)
		if err != nil {
			logger.Fatal("Failed to initialize recent result store", zap.Error(err))
		}
		history = mongoadapter.NewHistoryRepository(client.Database)
	} else {
		logger.Info("MONGODB_URI not set, using in-memory stores")
		results = memory.NewRecentResultRepository()
		history = memory.NewHistoryRepository()
	}

	// Initialize adapters
	speechToText := stt.NewGoogleSpeechToText(logger)

	textToSpeech, err := tts.NewMurfTTS(tts.NewMurfConfigFromEnv(), logger)
	if err != nil {
		logger.Fatal("Failed to initialize speech synthesis", zap.Error(err))
	}

	llmService, err := llm.NewGeminiLLM(logger)
	if err != nil {
		logger.Fatal("Failed to initialize language model", zap.Error(err))
	}

	var webSearch repositories.WebSearch
	if cfg.SerperAPIKey != "" {
		webSearch, err = search.NewSerperSearch(search.NewSerperConfigFromEnv(), logger)
		if err != nil {
			logger.Fatal("Failed to initialize web search", zap.Error(err))
		}
	}

	// Initialize usecase services
	replyService := usecase.NewReplyService(llmService, webSearch, history, logger)
	conversationService := usecase.NewConversationService(speechToText, textToSpeech, replyService, results, logger)

	// Initialize streaming hub
	hub := stream.NewHub(speechToText, textToSpeech, replyService, results, logger)
	go hub.Run()

	// Initialize API routes
	api.InitRoutes(e, api.Dependencies{
		Hub:            hub,
		Conversation:   conversationService,
		Results:        results,
		History:        history,
		MaxUploadBytes: cfg.MaxUploadBytes,
		Logger:         logger,
	})

	// Graceful shutdown
	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	logger.Info("Voice agent server started", zap.String("port", cfg.Port))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Server is shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}
	if mongoClient != nil {
		if err := mongoClient.Close(ctx); err != nil {
			logger.Warn("Failed to close MongoDB client", zap.Error(err))
		}
	}

	logger.Info("Server exited")
}
