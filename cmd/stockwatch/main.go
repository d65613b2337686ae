package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/amoblar/backoffice/internal/config"
	"github.com/amoblar/backoffice/internal/inventory"
	kafkax "github.com/amoblar/backoffice/internal/kafka"
	"github.com/amoblar/backoffice/internal/orders"
	"github.com/amoblar/backoffice/internal/postgres"
	"github.com/amoblar/backoffice/internal/redisx"
	"github.com/amoblar/backoffice/internal/stockwatch"
)

func mustAtoi(s, def string) int {
	if s == "" {
		s = def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return 1
	}
	return i
}

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	svc := &stockwatch.AlertService{
		Stock:       &inventory.Repo{DB: db},
		Dedup:       &redisx.Dedup{C: rdb},
		Log:         logger,
		ServiceName: cfg.ServiceName + "-stockwatch",
	}

	group := getenv("STOCKWATCH_GROUP", "stockwatch-svc")
	workers := mustAtoi(os.Getenv("STOCKWATCH_WORKERS"), "4")
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, group, orders.TopicStockAdjusted, workers)

	go func() {
		logger.Info("stockwatch consumer started",
			zap.String("group", group),
			zap.String("topic", orders.TopicStockAdjusted),
			zap.Int("workers", workers))
		if err := cons.Start(ctx, svc.HandleStockAdjusted); err != nil {
			logger.Error("consumer exit", zap.Error(err))
			cancel()
		}
	}()

	// graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down consumer")
	cancel()
	time.Sleep(500 * time.Millisecond)
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
