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

	"github.com/Dosada05/tournament-api/config"
	"github.com/Dosada05/tournament-api/db"
	"github.com/Dosada05/tournament-api/handlers"
	"github.com/Dosada05/tournament-api/live"
	"github.com/Dosada05/tournament-api/repositories"
	api "github.com/Dosada05/tournament-api/routes"
	"github.com/Dosada05/tournament-api/services"
	"github.com/Dosada05/tournament-api/storage"
	"github.com/Dosada05/tournament-api/validation"
	"github.com/go-chi/chi/v5"
)

// @title       Tournament API
// @version     1.0
// @description CRUD API for tournaments and their games with JSON Patch support.
// @BasePath    /
func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to load configuration", slog.Any("error", err))
		return err
	}

	// Настройка логгера
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)
	logger.Info("configuration loaded",
		slog.Int("port", cfg.ServerPort),
		slog.String("storage", cfg.StorageDriver),
		slog.Bool("auth", cfg.AuthEnabled()),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Хранилище
	var store repositories.Store
	switch cfg.StorageDriver {
	case config.StorageDriverMemory:
		store = repositories.NewMemoryStore()
		logger.Warn("using in-memory storage, data is lost on restart")
	default:
		dbConn, err := db.Connect(ctx, cfg.DatabaseURL, 5*time.Second)
		if err != nil {
			logger.Error("failed to connect to database", slog.Any("error", err))
			return err
		}
		defer func() {
			if err := dbConn.Close(); err != nil {
				logger.Error("failed to close database connection", slog.Any("error", err))
			} else {
				logger.Info("database connection closed")
			}
		}()
		logger.Info("database connection established")

		if err := db.Migrate(ctx, dbConn, logger); err != nil {
			logger.Error("failed to apply migrations", slog.Any("error", err))
			return err
		}
		store = repositories.NewPostgresStore(dbConn)
	}

	if cfg.SeedOnStart {
		if _, err := db.SeedIfEmpty(ctx, store, logger); err != nil {
			logger.Error("failed to seed data", slog.Any("error", err))
			return err
		}
	}

	// Инициализация загрузчика файлов (Cloudflare R2), если настроен
	var uploader storage.FileUploader
	r2Config := storage.CloudflareR2UploaderConfig{
		AccountID:       cfg.R2AccountID,
		AccessKeyID:     cfg.R2AccessKeyID,
		SecretAccessKey: cfg.R2SecretAccessKey,
		BucketName:      cfg.R2BucketName,
		PublicBaseURL:   cfg.R2PublicBaseURL,
	}
	if r2Config.IsZero() {
		logger.Info("Cloudflare R2 is not configured, logo uploads are disabled")
	} else {
		uploader, err = storage.NewCloudflareR2Uploader(ctx, r2Config)
		if err != nil {
			logger.Error("failed to initialize Cloudflare R2 uploader", slog.Any("error", err))
			return err
		}
		logger.Info("Cloudflare R2 uploader initialized")
	}

	// Инициализация WebSocket Hub
	hub := live.NewHub(logger)
	hubDone := make(chan struct{})
	go func() {
		defer close(hubDone)
		hub.Run(ctx)
	}()
	logger.Info("WebSocket Hub started")

	// Инициализация сервисов
	validator := validation.New()
	gameService := services.NewGameService(store, validator, hub, logger)
	tournamentService := services.NewTournamentService(store, validator, hub, uploader, logger)
	logger.Info("Services initialized")

	// Инициализация обработчиков HTTP
	tournamentHandler := handlers.NewTournamentHandler(tournamentService, gameService, logger)
	gameHandler := handlers.NewGameHandler(gameService, logger)
	webSocketHandler := handlers.NewWebSocketHandler(hub, tournamentService, cfg.CORSAllowedOrigins, logger)
	healthHandler := handlers.NewHealthHandler(store, logger)

	router := chi.NewRouter()
	api.SetupRoutes(
		router,
		api.Options{AllowedOrigins: cfg.CORSAllowedOrigins, JWTSecret: []byte(cfg.JWTSecretKey)},
		tournamentHandler,
		gameHandler,
		webSocketHandler,
		healthHandler,
	)
	logger.Info("Routes configured")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		stop()
		<-hubDone
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			return err
		}
		logger.Info("server stopped gracefully")
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		logger.Info("shutting down server", slog.Duration("timeout", 15*time.Second))
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			return err
		}
		<-hubDone
		logger.Info("server shutdown complete")
	}

	logger.Info("application exited")
	return nil
}
