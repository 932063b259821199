package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ml-prediction-pipeline/internal/config"
	"ml-prediction-pipeline/internal/domain/model"
	"ml-prediction-pipeline/internal/domain/ports/adapter"
	mlAdapters "ml-prediction-pipeline/internal/infra/adapters/ml"
	pg "ml-prediction-pipeline/internal/infra/db/postgres"
	"ml-prediction-pipeline/internal/infra/logging"
	"ml-prediction-pipeline/internal/infra/metrics"
	"ml-prediction-pipeline/internal/infra/rabbitmq"
	red "ml-prediction-pipeline/internal/infra/redis"
	"ml-prediction-pipeline/internal/infra/web"
	"ml-prediction-pipeline/internal/usecase"
	"ml-prediction-pipeline/internal/worker"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	// ---- Redis (optional, submit-side rate limiting only) ----
	var redisClient red.RedisClient
	if cfg.Redis.URL != "" {
		redisClient, err = red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		defer redisClient.Close()
	}

	// ---- RabbitMQ ----
	broker := rabbitmq.NewClient(cfg.Broker.URL, cfg.Broker.Prefetch, logger)
	defer broker.Close()

	// ---- Repositories ----
	tm := pg.NewTxManager(pool)
	predictionRepo := pg.NewPredictionRepo(pool)
	balanceRepo := pg.NewBalanceRepo(pool)
	transactionRepo := pg.NewTransactionRepo(pool)

	// ---- ML adapter ----
	var ml adapter.MLServiceAdapter
	switch cfg.ML.Backend {
	case "openai":
		ml, err = mlAdapters.NewOpenAIAdapter(cfg.ML.OpenAIKey, cfg.ML.OpenAIURL, cfg.ML.Model, cfg.ML.Timeout)
		if err != nil {
			log.Fatalf("openai adapter: %v", err)
		}
		logger.Info().Str("model", cfg.ML.Model).Msg("ML backend: OpenAI-compatible")
	default:
		ml, err = mlAdapters.NewOllamaAdapter(cfg.ML.OllamaURL, cfg.ML.Model, cfg.ML.Timeout)
		if err != nil {
			log.Fatalf("ollama adapter: %v", err)
		}
		logger.Info().Str("base", cfg.ML.OllamaURL).Str("model", cfg.ML.Model).Msg("ML backend: Ollama")
	}

	// ---- Pipeline ----
	balanceUC := usecase.NewBalanceUseCase(balanceRepo, transactionRepo, tm, logger)
	handler := worker.NewResultHandler(predictionRepo, balanceUC, tm, logger)
	mlWorker := worker.NewMLWorker(worker.NewTaskValidator(), ml, predictionRepo, handler, cfg.ML.Timeout, logger)
	publisher := rabbitmq.NewPublisher(broker, cfg.Broker, logger)

	consumer := rabbitmq.NewConsumer(broker, cfg.Broker,
		func(ctx context.Context, task model.TaskMessage) bool {
			result := mlWorker.Execute(ctx, task)
			return result.Success || !result.Retryable
		},
		publisher, handler, logger)

	// ---- Admin HTTP (health + metrics) ----
	metrics.MustRegister()
	checks := map[string]web.HealthChecker{
		"postgres": web.HealthFunc(func(ctx context.Context) error { return pool.Ping(ctx) }),
		"broker":   web.HealthFunc(func(ctx context.Context) error { return broker.Ping() }),
	}
	if redisClient != nil {
		checks["redis"] = web.HealthFunc(redisClient.Ping)
	}
	admin := web.NewAdminServer(cfg.Admin.Port, checks, logger)
	go func() {
		if err := admin.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("admin server stopped")
		}
	}()

	// ---- Shutdown handling ----
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		s := <-sig
		logger.Info().Str("signal", s.String()).Msg("shutdown signal received")
		cancel()
	}()

	logger.Info().Str("worker_id", mlWorker.ID()).Msg("worker ready, consuming")

	if err := consumer.Start(ctx); err != nil {
		logger.Error().Err(err).Msg("consumer stopped with error")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = admin.Shutdown(shutdownCtx)

	logger.Info().
		Int64("processed", mlWorker.ProcessedCount()).
		Int64("failed", mlWorker.FailedCount()).
		Msg("worker stopped")
}
