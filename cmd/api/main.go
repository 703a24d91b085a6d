// cmd/api/main.go
// Main entry point for the matching service.
// This file bootstraps all components and starts the server.

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/goldwen/matching-service/internal/common/database"
	"github.com/goldwen/matching-service/internal/config"
	"github.com/goldwen/matching-service/internal/matching"
	"github.com/goldwen/matching-service/internal/profilestore"
)

func main() {
	// 1. Load environment variables
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found, using environment variables")
	}

	// 2. Load and validate configuration
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "configuration validation failed: %v\n", err)
		os.Exit(1)
	}

	// 3. Logger
	logger, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting matching service",
		zap.String("environment", cfg.Environment),
		zap.String("port", cfg.Port))

	// 4. Connect to PostgreSQL (optional, profiles can be supplied inline)
	var db *sqlx.DB
	if cfg.DatabaseURL != "" {
		db, err = database.NewPostgresDBFromURL(cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("failed to connect to PostgreSQL", zap.Error(err))
		}
		defer db.Close()
		logger.Info("connected to PostgreSQL")

		if err := runMigrations(db, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	} else {
		logger.Warn("DATABASE_URL not configured, profile store disabled")
	}

	// 5. Connect to Redis (optional, the service degrades to cacheless scoring)
	var redisClient *redis.Client
	if cfg.CacheEnabled && cfg.RedisURL != "" {
		redisClient, err = database.NewRedisClientFromURL(cfg.RedisURL, cfg.RedisTimeout)
		if err != nil {
			logger.Warn("Redis unavailable, continuing without cache", zap.Error(err))
			redisClient = nil
		} else {
			defer redisClient.Close()
			logger.Info("connected to Redis")
		}
	} else {
		logger.Info("pair score cache disabled")
	}

	// 6. Wire the matching engine
	var store matching.Store
	if redisClient != nil {
		store = matching.NewRedisStore(redisClient, cfg.RedisTimeout)
	}
	cache := matching.NewPairCache(store, cfg.CacheTTL, logger)
	stats := matching.NewStats()
	engine := matching.NewEngine()

	service := matching.NewService(engine, cache, stats, matching.ServiceConfig{
		MinCompatibilityScore: cfg.MinCompatibilityScore,
	}, logger)

	// Selection requests may omit profiles when a database is wired;
	// the handler then loads them from the profile store.
	var profiles matching.ProfileSource
	if db != nil {
		profiles = profilestore.NewPostgresRepository(db)
	}

	handler := matching.NewHandler(service, profiles, matching.HandlerConfig{
		DefaultSelectionSize: cfg.DefaultSelectionSize,
		MaxSelectionSize:     cfg.MaxSelectionSize,
	}, logger)

	// 7. Routes
	router := mux.NewRouter()
	router.HandleFunc("/health", handler.HealthCheck).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	matching.RegisterRoutes(router, handler, cfg.APIKey)

	router.Use(requestLogging(logger))

	// 8. Start HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server exited gracefully")
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsProduction() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

// requestLogging logs every request with its status and duration.
func requestLogging(logger *zap.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			logger.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", wrapped.status),
				zap.Duration("duration", time.Since(start)))
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// runMigrations creates the matching service tables if they do not exist.
func runMigrations(db *sqlx.DB, logger *zap.Logger) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
			last_login_at TIMESTAMP WITH TIME ZONE,
			last_active_at TIMESTAMP WITH TIME ZONE
		)`,

		`CREATE TABLE IF NOT EXISTS profiles (
			user_id UUID PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
			birth_date DATE,
			gender VARCHAR(50),
			interests TEXT[] DEFAULT '{}',
			languages TEXT[] DEFAULT '{}',
			min_age INTEGER,
			max_age INTEGER,
			preferred_gender VARCHAR(50),
			max_distance DOUBLE PRECISION,
			latitude DOUBLE PRECISION,
			longitude DOUBLE PRECISION,
			status VARCHAR(20) DEFAULT 'active',
			created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS personality_answers (
			id SERIAL PRIMARY KEY,
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			question_id VARCHAR(255) NOT NULL,
			category VARCHAR(50),
			numeric_answer INTEGER,
			boolean_answer BOOLEAN,
			multiple_choice_answer TEXT[],
			text_answer TEXT,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
			CONSTRAINT unique_user_question UNIQUE(user_id, question_id)
		)`,

		`CREATE TABLE IF NOT EXISTS messages (
			id SERIAL PRIMARY KEY,
			sender_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			receiver_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS matches (
			id SERIAL PRIMARY KEY,
			user1_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			user2_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
			CONSTRAINT unique_match UNIQUE(user1_id, user2_id)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_profiles_status ON profiles(status)`,
		`CREATE INDEX IF NOT EXISTS idx_answers_user ON personality_answers(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_sender ON messages(sender_id)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_receiver ON messages(receiver_id)`,
	}

	for i, migration := range migrations {
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	logger.Info("database migrations completed", zap.Int("count", len(migrations)))
	return nil
}
