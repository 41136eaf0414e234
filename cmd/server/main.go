package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-testflow/internal/config"
	"github.com/stemsi/exstem-testflow/internal/database"
	"github.com/stemsi/exstem-testflow/internal/handler"
	"github.com/stemsi/exstem-testflow/internal/logger"
	"github.com/stemsi/exstem-testflow/internal/middleware"
	"github.com/stemsi/exstem-testflow/internal/render"
	"github.com/stemsi/exstem-testflow/internal/repository"
	"github.com/stemsi/exstem-testflow/internal/router"
	"github.com/stemsi/exstem-testflow/internal/service"
	"github.com/stemsi/exstem-testflow/internal/testsession"
	"github.com/stemsi/exstem-testflow/internal/validator"
	"github.com/stemsi/exstem-testflow/internal/worker"
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
		Msg("Starting Testflow")

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
	testRepo := repository.NewTestRepository(pool)
	questionRepo := repository.NewQuestionRepository(pool)
	resultRepo := repository.NewResultRepository(pool)
	dashboardRepo := repository.NewDashboardRepository(pool)

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg, userRepo, log)
	definitionCache := service.NewRedisDefinitionCache(rdb, cfg.TestCacheTTL)
	testService := service.NewTestService(testRepo, questionRepo, definitionCache, cfg.DefaultPassingScore, log)
	resultService := service.NewResultService(rdb, resultRepo, log)
	sessionService := service.NewSessionService(testService, resultService, testsession.Options{}, log)
	dashboardService := service.NewDashboardService(dashboardRepo, sessionService.Live)
	renderer := render.NewRenderer()

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:      handler.NewAuthHandler(authService, log),
		Test:      handler.NewTestHandler(testService, log),
		Session:   handler.NewSessionHandler(sessionService, resultService, renderer, log),
		AdminTest: handler.NewAdminTestHandler(testService, resultService, log),
		WS:        handler.NewWSHandler(sessionService, renderer, log, cfg.AllowedOrigins),
		System:    handler.NewSystemHandler(pool, rdb, sessionService, log),
		Dashboard: handler.NewDashboardHandler(dashboardService, log),
	}

	loginLimiter := middleware.NewRateLimiter(
		middleware.NewRedisCounter(rdb),
		cfg.LoginRatePerMin,
		time.Minute,
		config.CacheKey.LoginAttemptsKey,
		log,
	)

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	workerDone := make(chan struct{})

	resultWorker := worker.NewResultWorker(worker.NewRedisQueue(rdb), resultRepo, cfg.ResultBatchSize, log)
	go func() {
		resultWorker.Start(workerCtx)
		close(workerDone)
	}()
	go sessionService.RunReaper(workerCtx, cfg.ReapInterval, cfg.SessionIdle)

	// ─── Prewarm Redis Caches ─────────────────────────────────────────
	// Load all published tests into Redis BEFORE accepting traffic.
	if err := testService.PrewarmAll(ctx); err != nil {
		log.Warn().Err(err).Msg("Cache prewarm failed")
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, loginLimiter, handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
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

	// 2. Stop live sessions. In-progress answers are not persisted.
	log.Info().Int("live_sessions", sessionService.Live()).Msg("Closing live sessions")
	sessionService.Shutdown()
	sessionService.RetryPending()

	// 3. Stop background workers and wait for the queue to drain.
	workerCancel()
	select {
	case <-workerDone:
	case <-time.After(5 * time.Second):
		log.Warn().Msg("Result worker did not stop in time")
	}

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
