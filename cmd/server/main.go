package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"speakmatch/internal/matchmaking"
	"speakmatch/internal/metrics"
	"speakmatch/internal/models"
	"speakmatch/internal/repositories"
	"speakmatch/internal/routers"
	"speakmatch/internal/scoring"
	"speakmatch/internal/signaling"
)

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func initDatabase() (*gorm.DB, error) {
	host := getEnv("POSTGRES_HOST", "localhost")
	user := getEnv("POSTGRES_USER", "postgres")
	password := getEnv("POSTGRES_PASSWORD", "postgres")
	dbname := getEnv("POSTGRES_DB", "speakmatch")
	port := getEnv("POSTGRES_PORT", "5432")
	sslmode := getEnv("POSTGRES_SSLMODE", "disable")

	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		host, user, password, dbname, port, sslmode)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&models.QueueEntry{}, &models.Session{}, &models.Score{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return db, nil
}

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	jwtSecret := []byte(getEnv("JWT_SECRET", ""))
	if len(jwtSecret) == 0 {
		logger.Fatal("JWT_SECRET is required")
	}

	db, err := initDatabase()
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
		Password: os.Getenv("REDIS_PASSWORD"),
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		logger.Fatal("Failed to connect to redis", zap.Error(err))
	}

	sessionRepo := &repositories.SessionRepository{DB: db}
	scoreRepo := &repositories.ScoreRepository{DB: db}

	matchmaker := matchmaking.NewMatchmaker(db, rdb, jwtSecret)
	matchHandlers := matchmaking.NewHandlers(matchmaker)
	relay := signaling.NewRelay(rdb, sessionRepo, jwtSecret)
	scoreHandlers := scoring.NewHandlers(scoring.NewService(rdb, sessionRepo, scoreRepo), jwtSecret)

	// Stale queue eviction is off unless QUEUE_TTL is set.
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	queueTTL := getEnvDuration("QUEUE_TTL", 0)
	go matchmaker.StartStaleSweep(sweepCtx, queueTTL, getEnvDuration("QUEUE_SWEEP_INTERVAL", 30*time.Second))

	router := chi.NewRouter()

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{getEnv("FRONTEND_ORIGIN", "http://localhost:5173")},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Authorization"},
		AllowCredentials: true,
	}))
	router.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer, middleware.Timeout(60*time.Second))
	router.Use(metrics.Middleware("speakmatch"))

	routers.HealthRoutes(router)
	routers.MatchRoutes(router, matchHandlers)
	routers.SessionRoutes(router, relay, scoreHandlers)
	router.Handle("/metrics", metrics.Handler())

	port := getEnv("PORT", "8080")
	serverAddr := ":" + port

	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Matchmaking service starting", zap.String("addr", serverAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, syscall.SIGINT, syscall.SIGTERM)
	<-shutdownChan

	logger.Info("Matchmaking service shutting down...")
	stopSweep()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("Matchmaking service exited")
}
