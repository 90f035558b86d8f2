package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Dosada05/tournament-engine/brackets"
	"github.com/Dosada05/tournament-engine/config"
	"github.com/Dosada05/tournament-engine/db"
	"github.com/Dosada05/tournament-engine/handlers"
	"github.com/Dosada05/tournament-engine/repositories"
	api "github.com/Dosada05/tournament-engine/routes"
	"github.com/Dosada05/tournament-engine/services"
	"github.com/Dosada05/tournament-engine/storage"
	"github.com/go-chi/chi/v5"
	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
)

// @title Tournament Engine API
// @version 1.0
// @description Bracket generation, match lifecycle and tournament decisions.
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func main() {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	// Настройка логгера
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort), slog.Bool("storage", cfg.StorageEnabled()))

	// Подключение к базе данных
	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second, db.DefaultPoolConfig(), logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		} else {
			logger.Info("database connection closed")
		}
	}()
	logger.Info("database connection established")

	if cfg.AutoMigrate {
		migrateCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := db.Migrate(migrateCtx, dbConn)
		cancel()
		if err != nil {
			logger.Error("failed to apply schema", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("schema applied")
	}

	// Хранилище доказательств результатов (Cloudflare R2 или любой S3)
	var uploader storage.FileUploader
	if cfg.StorageEnabled() {
		uploader, err = storage.NewS3Uploader(context.Background(), storage.S3UploaderConfig{
			AccountID:       cfg.R2AccountID,
			Endpoint:        cfg.R2Endpoint,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicBaseURL:   cfg.R2PublicBaseURL,
		})
		if err != nil {
			logger.Error("failed to initialize object storage", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("object storage initialized", slog.String("bucket", cfg.R2BucketName))
	} else {
		logger.Warn("object storage not configured, proof uploads disabled")
	}

	// Инициализация WebSocket Hub
	wsHub := brackets.NewHub(logger)
	go wsHub.Run()

	// Инициализация репозиториев
	userRepo := repositories.NewPostgresUserRepository(dbConn)
	tournamentRepo := repositories.NewPostgresTournamentRepository(dbConn)
	participantRepo := repositories.NewPostgresParticipantRepository(dbConn)
	matchRepo := repositories.NewPostgresMatchRepository(dbConn)
	entryFeeRepo := repositories.NewPostgresEntryFeeRepository(dbConn)

	// Инициализация сервисов
	clock := clockwork.NewRealClock()
	transactor := db.NewTransactor(dbConn, logger)
	authorizer := services.NewUserAuthorizer(userRepo)
	progression := services.NewProgression(logger)

	decisionService := services.NewDecisionService(
		transactor,
		tournamentRepo,
		participantRepo,
		matchRepo,
		authorizer,
		services.NewEntryFeeRefunder(entryFeeRepo, clock, logger),
		brackets.NewSingleEliminationGenerator(),
		progression,
		wsHub,
		clock,
		services.DecisionConfig{
			Shuffle:      cfg.ShuffleParticipants,
			TimePerRound: cfg.TimePerRound,
			MinLeadTime:  cfg.MinMatchLeadTime,
		},
		logger,
	)
	matchService := services.NewMatchService(transactor, matchRepo, tournamentRepo, authorizer, progression, wsHub, clock, logger)
	bracketService := services.NewBracketService(tournamentRepo, participantRepo, matchRepo, logger)
	proofService := services.NewProofService(matchRepo, tournamentRepo, authorizer, uploader, logger)
	logger.Info("services initialized")

	// Планировщик проверки целостности сеток
	scheduler, err := gocron.NewScheduler(gocron.WithClock(clock), gocron.WithLogger(gocronLogger{logger}))
	if err != nil {
		logger.Error("failed to create scheduler", slog.Any("error", err))
		os.Exit(1)
	}
	checker := services.NewIntegrityChecker(tournamentRepo, bracketService, logger)
	if _, err := services.ScheduleIntegritySweep(scheduler, checker, cfg.IntegritySweepInterval); err != nil {
		logger.Error("failed to schedule integrity sweep", slog.Any("error", err))
		os.Exit(1)
	}
	scheduler.Start()
	logger.Info("integrity sweep scheduled", slog.Duration("interval", cfg.IntegritySweepInterval))

	// Настройка маршрутизатора
	router := chi.NewRouter()
	api.SetupRoutes(
		router,
		api.Options{
			JWTSecret:      cfg.JWTSecretKey,
			AllowedOrigins: cfg.CORSAllowedOrigins,
			Logger:         logger,
		},
		handlers.NewTournamentHandler(decisionService, bracketService),
		handlers.NewMatchHandler(matchService, proofService),
		handlers.NewWebSocketHandler(wsHub, cfg.CORSAllowedOrigins, logger),
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	// Ожидание сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
		}
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
		} else {
			logger.Info("server shutdown complete")
		}
	}

	if err := scheduler.Shutdown(); err != nil {
		logger.Error("failed to stop scheduler", slog.Any("error", err))
	}
	logger.Info("application exited")
}

// gocronLogger adapts slog to the scheduler's logger interface.
type gocronLogger struct {
	l *slog.Logger
}

func (g gocronLogger) Debug(msg string, args ...any) { g.l.Debug(msg, args...) }
func (g gocronLogger) Error(msg string, args ...any) { g.l.Error(msg, args...) }
func (g gocronLogger) Info(msg string, args ...any)  { g.l.Info(msg, args...) }
func (g gocronLogger) Warn(msg string, args ...any)  { g.l.Warn(msg, args...) }
