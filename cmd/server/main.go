package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/SSAFY12-B107/OmyPIc-sub000/internal/config"
	"github.com/SSAFY12-B107/OmyPIc-sub000/internal/database"
	"github.com/SSAFY12-B107/OmyPIc-sub000/internal/grader"
	"github.com/SSAFY12-B107/OmyPIc-sub000/internal/handler"
	"github.com/SSAFY12-B107/OmyPIc-sub000/internal/logger"
	"github.com/SSAFY12-B107/OmyPIc-sub000/internal/repository"
	"github.com/SSAFY12-B107/OmyPIc-sub000/internal/router"
	"github.com/SSAFY12-B107/OmyPIc-sub000/internal/service"
	"github.com/SSAFY12-B107/OmyPIc-sub000/internal/transcribe"
	"github.com/SSAFY12-B107/OmyPIc-sub000/internal/validator"
	"github.com/SSAFY12-B107/OmyPIc-sub000/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting OmyPIc Backend")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Repositories ───────────────────────────────────────
	userRepo := repository.NewUserRepository(pool)
	problemRepo := repository.NewProblemRepository(pool)
	testRepo := repository.NewTestRepository(pool)
	scriptRepo := repository.NewScriptRepository(pool)

	// ─── Initialize Grading Backends ───────────────────────────────────
	oracle := grader.NewOpenAIOracle(cfg, log)
	transcriber := transcribe.NewWhisperTranscriber(cfg, log)
	policy := grader.RetryPolicy{
		MaxAttempts: cfg.GradeMaxAttempts,
		BaseDelay:   cfg.GradeBackoffBase,
		MaxDelay:    30 * time.Second,
	}

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg)
	userService := service.NewUserService(userRepo)
	quotaService := service.NewQuotaService(userRepo)
	selectionService := service.NewSelectionService(problemRepo)
	audioService := service.NewAudioService(cfg)
	publisher := service.NewRedisStatusPublisher(rdb, log)
	testService := service.NewTestService(testRepo, selectionService, quotaService, rdb, log)
	scriptService := service.NewScriptService(scriptRepo, problemRepo, quotaService, oracle, policy, log)
	feedbackService := service.NewFeedbackService(testRepo, userRepo, oracle, publisher, policy, log)
	gradingService := service.NewGradingService(
		testRepo, transcriber, oracle, scriptService, feedbackService, publisher, policy, log,
	)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:    handler.NewAuthHandler(authService, userService),
		Test:    handler.NewTestHandler(testService, userService, audioService),
		Problem: handler.NewProblemHandler(testService),
		Script:  handler.NewScriptHandler(scriptService),
		WS:      handler.NewWSHandler(rdb, testService, log, cfg.AllowedOrigins),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())

	gradingWorker := worker.NewGradingWorker(rdb, gradingService, testRepo, log)
	go gradingWorker.Start(workerCtx)

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop the grading worker and let in-flight items finish.
	workerCancel()
	time.Sleep(2 * time.Second)

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
