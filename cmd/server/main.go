package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vedran77/tandem/internal/blobstore"
	"github.com/vedran77/tandem/internal/config"
	"github.com/vedran77/tandem/internal/database"
	"github.com/vedran77/tandem/internal/logging"
	"github.com/vedran77/tandem/internal/repository/document"
	"github.com/vedran77/tandem/internal/service"
	"github.com/vedran77/tandem/internal/transport/http/middleware"
	"github.com/vedran77/tandem/internal/transport/http/router"
	"github.com/vedran77/tandem/internal/transport/ws"
	"github.com/vedran77/tandem/internal/weather"
)

const shutdownTimeout = 10 * time.Second

func main() {
	logger := logging.NewJSON(os.Stdout, slog.LevelInfo)
	if err := run(logger); err != nil {
		logger.Error(context.Background(), "server stopped", "error", err)
		os.Exit(1)
	}
}

func run(logger logging.Logger) error {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Store
	store, closeStore, err := database.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()
	logger.Info(ctx, "store ready", "backend", cfg.StoreBackend)

	repos := document.NewManager()

	// Blob storage
	var blobs service.BlobStore
	if cfg.S3Bucket != "" {
		s3, err := blobstore.NewS3(ctx, blobstore.Config{
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
		if err != nil {
			return err
		}
		blobs = s3
	}

	var weatherClient service.WeatherClient
	if cfg.WeatherAPIKey != "" {
		weatherClient = weather.NewClient(cfg.WeatherURL, cfg.WeatherAPIKey, cfg.WeatherRPM)
	} else {
		logger.Warn(ctx, "WEATHER_API_KEY not set, dashboard weather disabled")
	}

	// Services
	notifications := service.NewNotificationService(store, repos)
	pairing := service.NewPairingService(store, repos, notifications, logger, cfg.InviteCodeLength)
	authService := service.NewAuthService(store, repos, pairing, cfg.JWTSecret, cfg.ProviderSecret, cfg.TokenTTL, logger)
	profiles := service.NewProfileService(store, repos, logger)
	chat := service.NewChatService(store, repos, blobs, logger)
	typing := service.NewTypingService(store, repos, cfg.TypingIdle, logger)
	defer typing.Close()
	goals := service.NewGoalService(store, repos)
	events := service.NewEventService(store, repos)
	memories := service.NewMemoryService(store, repos, blobs, logger)
	notes := service.NewNoteService(store, repos)
	dashboard := service.NewDashboardService(store, repos, weatherClient, logger)

	// WebSocket hub
	hub := ws.NewHub(ws.Services{
		Profiles:      profiles,
		Pairing:       pairing,
		Notifications: notifications,
		Chat:          chat,
		Typing:        typing,
		Goals:         goals,
		Events:        events,
		Memories:      memories,
		Notes:         notes,
	}, logger)
	go hub.Run(ctx)

	limiter := middleware.NewLimiterStore(cfg.AuthRateRPM, cfg.AuthRateRPM, time.Minute)
	defer limiter.Stop()

	handler := router.New(router.Deps{
		Auth:          authService,
		Pairing:       pairing,
		Profiles:      profiles,
		Notifications: notifications,
		Dashboard:     dashboard,
		Chat:          chat,
		Typing:        typing,
		Goals:         goals,
		Events:        events,
		Memories:      memories,
		Notes:         notes,
		Hub:           hub,
		AuthLimiter:   limiter,
		Logger:        logger,
		Base:          ctx,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.ServerPort),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "starting server", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info(context.Background(), "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
