package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/satriahrh/rawatin/adapters/audio"
	"github.com/satriahrh/rawatin/adapters/device"
	"github.com/satriahrh/rawatin/adapters/mongo"
	"github.com/satriahrh/rawatin/adapters/stt"
	"github.com/satriahrh/rawatin/adapters/vision"
	"github.com/satriahrh/rawatin/domain/repositories"
	"github.com/satriahrh/rawatin/internal/api"
	"github.com/satriahrh/rawatin/internal/websocket"
	"github.com/satriahrh/rawatin/usecase"
)

func main() {
	// Load .env if present; real deployments set the environment directly
	_ = godotenv.Load()

	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Create Echo instance
	e := echo.New()

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	useMocks := os.Getenv("USE_MOCK_ADAPTERS") == "true"

	// Initialize adapters
	var transcriber repositories.Transcriber
	if useMocks {
		transcriber = stt.NewMockTranscriber(logger)
	} else {
		transcriber = stt.NewGoogleTranscriber(logger)
	}

	var analyzer repositories.VisionAnalyzer
	if useMocks {
		analyzer = vision.NewMockVisionAnalyzer(logger)
	} else {
		geminiAnalyzer, err := vision.NewGeminiVisionAnalyzer(logger)
		if err != nil {
			logger.Warn("Vision analyzer unavailable, analysis requests will be rejected",
				zap.Error(err))
		} else {
			analyzer = geminiAnalyzer
		}
	}

	audioSource := audio.NewDeviceAudioSource(logger)
	deviceRepo := device.NewMemoryRepository()

	var reportRepo repositories.ReportRepository
	if os.Getenv("MONGODB_URI") != "" {
		mongoClient, err := mongo.NewClient(logger)
		if err != nil {
			logger.Warn("MongoDB unavailable, report storage disabled", zap.Error(err))
		} else {
			reportRepo = mongo.NewReportRepository(mongoClient.Database)
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				mongoClient.Close(ctx)
			}()
		}
	} else {
		logger.Info("MONGODB_URI not set, report storage disabled")
	}

	// Initialize usecase services
	classifier := usecase.NewClassifier()
	summary := usecase.NewSummaryBuilder(classifier)
	dispatcher := usecase.NewAnalysisDispatcher(analyzer, logger)

	// The hub is both the capture event sink and the authorizer, so it is
	// constructed first and the session is attached afterwards.
	captureDefaults := repositories.AudioConfig{
		SampleRate:     16000,
		Encoding:       "LINEAR16",
		Language:       captureLanguage(),
		InterimResults: true,
	}
	hub := websocket.NewHub(audioSource, captureDefaults, logger)

	capture := usecase.NewCaptureSession(hub, audioSource, transcriber, classifier, hub, logger)
	hub.SetCaptureController(capture)

	go hub.Run()

	// Initialize API routes
	api.InitRoutes(e, &api.Dependencies{
		Hub:        hub,
		DeviceRepo: deviceRepo,
		ReportRepo: reportRepo,
		Analysis:   dispatcher,
		Summary:    summary,
		Capture:    capture,
		Logger:     logger,
	})

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Graceful shutdown
	go func() {
		if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	logger.Info("Server started", zap.String("port", port), zap.Bool("mockAdapters", useMocks))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Server is shutting down...")

	capture.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

func captureLanguage() string {
	if lang := os.Getenv("CAPTURE_LANGUAGE"); lang != "" {
		return lang
	}
	return "en-US"
}
