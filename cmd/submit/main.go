// Command submit is the producer-side tool: it can top up a user's balance
// and push a prediction request through the escrow-and-dispatch path that
// the HTTP API would normally drive.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"ml-prediction-pipeline/internal/config"
	"ml-prediction-pipeline/internal/domain/model"
	pg "ml-prediction-pipeline/internal/infra/db/postgres"
	"ml-prediction-pipeline/internal/infra/logging"
	"ml-prediction-pipeline/internal/infra/rabbitmq"
	red "ml-prediction-pipeline/internal/infra/redis"
	"ml-prediction-pipeline/internal/usecase"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	userID := flag.String("user", "", "user id (required)")
	deposit := flag.Float64("deposit", 0, "credit this amount before submitting")
	message := flag.String("message", "", "message to submit; empty skips submission")
	modelID := flag.String("model", "", "model id (defaults to ml.model)")
	priority := flag.String("priority", "normal", "low | normal | high")
	flag.Parse()

	if *userID == "" {
		log.Fatal("-user is required")
	}

	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, true)

	ctx := context.Background()

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	tm := pg.NewTxManager(pool)
	balanceUC := usecase.NewBalanceUseCase(pg.NewBalanceRepo(pool), pg.NewTransactionRepo(pool), tm, logger)

	if *deposit > 0 {
		if err := balanceUC.Deposit(ctx, *userID, *deposit, "manual deposit"); err != nil {
			log.Fatalf("deposit: %v", err)
		}
	}

	balance, err := balanceUC.GetBalance(ctx, *userID)
	if err != nil {
		log.Fatalf("get balance: %v", err)
	}
	fmt.Printf("balance for %s: %.2f\n", *userID, balance)

	if *message == "" {
		return
	}

	broker := rabbitmq.NewClient(cfg.Broker.URL, cfg.Broker.Prefetch, logger)
	defer broker.Close()
	publisher := rabbitmq.NewPublisher(broker, cfg.Broker, logger)

	var limiter *red.RateLimiter
	if cfg.Redis.URL != "" {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		defer redisClient.Close()
		limiter = red.NewRateLimiter(redisClient)
	}

	predictionUC := usecase.NewPredictionUseCase(
		pg.NewPredictionRepo(pool), balanceUC, publisher, limiter, tm,
		cfg.Billing.RequestCost, cfg.RateLimit.PerUser, cfg.RateLimit.Window, logger)

	mdl := *modelID
	if mdl == "" {
		mdl = cfg.ML.Model
	}

	p, err := predictionUC.Submit(ctx, usecase.SubmitParams{
		UserID:   *userID,
		ModelID:  mdl,
		Message:  *message,
		Priority: parsePriority(*priority),
	})
	if err != nil {
		log.Fatalf("submit: %v", err)
	}
	fmt.Printf("prediction %s submitted (cost %.2f)\n", p.ID, p.CostCharged)
}

func parsePriority(s string) model.TaskPriority {
	switch s {
	case "low":
		return model.PriorityLow
	case "high":
		return model.PriorityHigh
	default:
		return model.PriorityNormal
	}
}
