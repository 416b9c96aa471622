package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"novel-engine/internal/config"
	"novel-engine/internal/database"
	"novel-engine/internal/messaging"
	"novel-engine/internal/repository"
	"novel-engine/internal/service"
	"novel-engine/pkg/ai"
	"novel-engine/pkg/logger"
	"novel-engine/pkg/migration"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadWorkerConfig()
	if err != nil {
		fmt.Printf("Ошибка загрузки конфигурации воркера: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:    cfg.Log.Level,
		Encoding: "json",
	})
	if err != nil {
		fmt.Printf("Ошибка инициализации логгера: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	zap.ReplaceGlobals(log)

	zap.L().Info("Starting novel generation worker",
		zap.String("queue", cfg.GenerationTaskQueue),
		zap.Int("concurrency", cfg.WorkerConcurrency),
	)

	// /health и /metrics на отдельном порту
	go startObservabilityServer(cfg.HealthCheckPort, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Подключения ---
	connectCtx, connectCancel := context.WithTimeout(ctx, 60*time.Second)
	dbPool, err := database.NewPgxPool(connectCtx, cfg.Database.DSN(), 0)
	connectCancel()
	if err != nil {
		zap.L().Fatal("Failed to connect to PostgreSQL", zap.Error(err))
	}
	defer dbPool.Close()
	zap.L().Info("Connected to PostgreSQL")

	// Миграции применяют и сервер, и воркер: кто первый встал, того и версия
	migrator := migration.NewMigrator(database.MigrationsFS, database.MigrationsPath, dbPool, log)
	if err := migrator.Up(); err != nil {
		zap.L().Fatal("Failed to apply migrations", zap.Error(err))
	}

	mqConn, err := connectRabbitMQ(cfg.RabbitMQ.URL, log)
	if err != nil {
		zap.L().Fatal("Failed to connect to RabbitMQ", zap.Error(err))
	}
	defer mqConn.Close()
	zap.L().Info("Connected to RabbitMQ")

	// --- AI и сервис генерации ---
	aiClient, err := ai.NewClient(ai.Options{
		Provider:  cfg.AI.Provider,
		Model:     cfg.AI.Model,
		APIKey:    cfg.AI.APIKey,
		BaseURL:   cfg.AI.BaseURL,
		MaxTokens: cfg.AI.MaxTokens,
	}, log)
	if err != nil {
		zap.L().Fatal("Failed to create AI client", zap.Error(err))
	}

	novelRepo := repository.NewPgNovelRepository(dbPool, log)
	sceneGenerator := ai.SceneGenerator(aiClient, log)
	generationSvc := service.NewGenerationService(novelRepo, nil, sceneGenerator, cfg.AI.DefaultSceneCount, log)

	consumer := messaging.NewTaskConsumer(
		mqConn,
		cfg.GenerationTaskQueue,
		cfg.WorkerConcurrency,
		generationSvc.ProcessTask,
		log,
	)
	if err := consumer.Start(ctx); err != nil {
		zap.L().Fatal("Failed to start task consumer", zap.Error(err))
	}

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zap.L().Info("Shutting down worker...")

	cancel()
	if err := consumer.Stop(); err != nil {
		zap.L().Error("Error stopping task consumer", zap.Error(err))
	}

	zap.L().Info("Worker exiting")
}

// startObservabilityServer поднимает /health и /metrics.
func startObservabilityServer(port string, log *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	log.Info("Observability server listening", zap.String("port", port))
	if err := http.ListenAndServe(":"+port, mux); err != nil {
		log.Error("Observability server stopped", zap.Error(err))
	}
}

func connectRabbitMQ(url string, log *zap.Logger) (*amqp.Connection, error) {
	var conn *amqp.Connection
	var err error
	maxRetries := 20
	retryDelay := 3 * time.Second

	for i := 0; i < maxRetries; i++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			return conn, nil
		}
		log.Warn("RabbitMQ connection failed, retrying...",
			zap.Int("attempt", i+1),
			zap.Int("max_retries", maxRetries),
			zap.Error(err),
		)
		time.Sleep(retryDelay)
	}
	return nil, fmt.Errorf("failed to connect to rabbitmq after %d attempts: %w", maxRetries, err)
}
