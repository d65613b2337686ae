package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/amoblar/backoffice/internal/config"
	"github.com/amoblar/backoffice/internal/directory"
	"github.com/amoblar/backoffice/internal/httpx"
	"github.com/amoblar/backoffice/internal/inventory"
	kafkax "github.com/amoblar/backoffice/internal/kafka"
	"github.com/amoblar/backoffice/internal/orders"
	"github.com/amoblar/backoffice/internal/payments"
	"github.com/amoblar/backoffice/internal/postgres"
	"github.com/amoblar/backoffice/internal/redisx"
)

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

	// Kafka producers, one writer per topic
	createdProd := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderCreated, 1024)
	statusProd := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderStatusChanged, 1024)
	stockProd := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicStockAdjusted, 1024)
	paymentProd := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicPaymentReconciled, 1024)
	for _, p := range []*kafkax.Producer{createdProd, statusProd, stockProd, paymentProd} {
		p.Start(ctx)
	}

	// Repos
	orderRepo := &orders.Repo{DB: db}
	stockRepo := &inventory.Repo{DB: db}
	dirRepo := &directory.Repo{DB: db}
	payRepo := &payments.Repo{DB: db}

	// Services
	orderSvc := &orders.Service{
		Store:         orderRepo,
		Directory:     dirRepo,
		Cache:         &redisx.StatusCache{C: rdb},
		Created:       createdProd,
		StatusChanged: statusProd,
		StockMoves:    stockProd,
		Log:           logger,
		Name:          cfg.ServiceName,
	}
	payHandler := &payments.Handler{
		Store:  payRepo,
		Orders: orderSvc,
		Dedup:  &redisx.Dedup{C: rdb},
		Events: paymentProd,
		Log:    logger,
		Name:   cfg.ServiceName,
	}

	// HTTP
	router := httpx.NewRouter()
	(&httpx.OrdersHandler{Svc: orderSvc}).Register(router)
	(&httpx.InventoryHandler{
		Store:    stockRepo,
		Producer: stockProd,
		Service:  cfg.ServiceName,
	}).Register(router)
	(&httpx.ProductsHandler{Directory: dirRepo}).Register(router)
	(&httpx.PaymentsHandler{
		Processor: payHandler,
		Provider:  payments.NewHTTPProvider(cfg.ProviderBaseURL, cfg.ProviderToken),
		Store:     payRepo,
		Log:       logger,
	}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		logger.Info("HTTP listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	// wait signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)

	// signal the loops to flush & close their writers, then wait them out
	for _, p := range []*kafkax.Producer{createdProd, statusProd, stockProd, paymentProd} {
		p.Close()
	}
	cancel()
	for _, p := range []*kafkax.Producer{createdProd, statusProd, stockProd, paymentProd} {
		p.WaitClosed()
	}
}
