package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/corptrain/playback/docs"
	"github.com/corptrain/playback/internal/auth"
	"github.com/corptrain/playback/internal/config"
	"github.com/corptrain/playback/internal/events"
	"github.com/corptrain/playback/internal/handlers"
	"github.com/corptrain/playback/internal/logger"
	"github.com/corptrain/playback/internal/media"
	"github.com/corptrain/playback/internal/middlewares"
	"github.com/corptrain/playback/internal/playback"
	"github.com/corptrain/playback/internal/repositories"
	"github.com/corptrain/playback/internal/services"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-redis/redis/v8"
	_ "github.com/go-sql-driver/mysql"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/hibiken/asynq"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"
)

const eventQueueSize = 1024

// @title CorpTrain Playback API
// @version 1.0
// @description Learner training playback, transcript sync and progress API

// @contact.name API Support

// @host localhost:8080
// @BasePath /api/v1
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name Authorization
// @description Bearer access token issued by the identity service
func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v\n", err)
	}

	// Initialize logger
	if err := logger.Init(cfg.Logging.Level); err != nil {
		log.Fatalf("Failed to initialize logger: %v\n", err)
	}
	defer logger.Sync()

	logger.Logger.Info("Starting CorpTrain Playback Service", zap.Bool("testing_mode", cfg.Playback.TestingMode))

	// Connect to database
	db, err := connectDB(cfg.DSN())
	if err != nil {
		logger.Logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Run migrations
	if err := runMigrations(db); err != nil {
		logger.Logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	// Connect to Redis (session events)
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		pingCancel()
		logger.Logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	pingCancel()

	// Initialize asynq client (certificate tasks)
	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer asynqClient.Close()

	// Initialize event delivery
	hub := events.NewHub(logger.Logger)
	fanout := events.NewFanout(logger.Logger, hub, events.NewRedisPublisher(redisClient, events.DefaultRedisChannel))
	publisher := events.NewAsyncPublisher(fanout, eventQueueSize, logger.Logger)

	// Initialize repositories
	contentRepo := repositories.NewContentRepository(db)
	progressRepo := repositories.NewProgressRepository(db)
	quizSessionRepo := repositories.NewQuizSessionRepository(db)
	completionRepo := repositories.NewCompletionRepository(db)

	// Initialize services
	freeText, err := playback.FreeTextScorerByName(cfg.Playback.FreeTextScorer)
	if err != nil {
		logger.Logger.Fatal("Invalid free text scorer", zap.Error(err))
	}

	deps := services.Dependencies{
		Content:      contentRepo,
		Progress:     progressRepo,
		Quizzes:      quizSessionRepo,
		Completions:  completionRepo,
		Certificates: services.NewCertificateQueue(asynqClient, logger.Logger),
		Events:       publisher,
		Streams:      hub,
	}
	if cfg.MediaProbe.Enabled {
		deps.Prober = media.NewProber(nil, media.Config{
			Timeout:    cfg.MediaProbe.Timeout,
			MaxRetries: cfg.MediaProbe.MaxRetries,
		}, logger.Logger)
	}

	sessionService := services.NewSessionService(
		deps,
		services.NewSessionRegistry(),
		playback.NewEvaluator(freeText),
		services.Config{
			Tracker: playback.TrackerConfig{
				CompletionThreshold:  cfg.Playback.CompletionThreshold,
				SeekThresholdSeconds: cfg.Playback.SeekThresholdSeconds,
			},
			FirstSegmentAllowance: cfg.Playback.FirstSegmentAllowance,
			FrameInterval:         cfg.Playback.FrameInterval,
			SessionIdleTimeout:    cfg.Playback.SessionIdleTimeout,
			BeaconTimeout:         cfg.Playback.BeaconTimeout,
			TestingMode:           cfg.Playback.TestingMode,
		},
		logger.Logger,
	)

	janitor, err := services.NewJanitor(sessionService, cfg.Playback.AutosaveInterval, logger.Logger)
	if err != nil {
		logger.Logger.Fatal("Failed to schedule session maintenance", zap.Error(err))
	}
	janitor.Start()

	// Initialize middleware
	authMw := middlewares.AuthMiddleware(auth.NewTokenValidator(cfg.JWT.Secret))

	// Initialize handlers
	sessionHandler := handlers.NewSessionHandler(sessionService, hub, logger.Logger)
	progressHandler := handlers.NewProgressHandler(sessionService, logger.Logger)
	syncHandler := handlers.NewSyncHandler(sessionService, logger.Logger)
	quizHandler := handlers.NewQuizHandler(sessionService, logger.Logger)

	// Setup router
	r := chi.NewRouter()

	// Apply middleware
	r.Use(middlewares.RequestIDMiddleware)
	r.Use(middlewares.LoggerMiddleware(logger.Logger))
	r.Use(middlewares.RecoveryMiddleware(logger.Logger))
	r.Use(middlewares.CORSMiddleware(cfg.CORS.AllowedOrigins))
	r.Use(httprate.LimitByIP(600, time.Minute))
	r.Use(middlewares.RequestSizeLimitMiddleware(cfg.Server.MaxRequestSize))

	// Swagger documentation
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL(fmt.Sprintf("http://localhost:%d/swagger/doc.json", cfg.Server.Port)),
	))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// Scope router to /api/v1
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(authMw)
		sessionHandler.RegisterRoutes(r)
		progressHandler.RegisterRoutes(r)
		syncHandler.RegisterRoutes(r)
		quizHandler.RegisterRoutes(r)
	})

	// Start server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Logger.Info("Server starting", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Logger.Info("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	janitor.Stop()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Logger.Error("Server forced to shutdown", zap.Error(err))
	}

	// Save and close the sessions that are still open, then flush their events
	if closed := sessionService.CloseAll(ctx); closed > 0 {
		logger.Logger.Info("Closed open sessions", zap.Int("count", closed))
	}
	sessionService.Wait()
	publisher.Close()

	logger.Logger.Info("Server exited")
}

// connectDB connects to the database
func connectDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// runMigrations runs database migrations
func runMigrations(db *sql.DB) error {
	driver, err := mysql.WithInstance(db, &mysql.Config{
		MigrationsTable: "playback_schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	migrationPath := "file://migrations"
	if _, err := os.Stat("migrations"); os.IsNotExist(err) {
		// Try parent directory if running from cmd
		if _, err := os.Stat("../migrations"); err == nil {
			migrationPath = "file://../migrations"
		}
	}

	m, err := migrate.NewWithDatabaseInstance(
		migrationPath,
		"mysql",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}
