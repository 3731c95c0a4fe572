package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-retail-orders/internal/config"
	"github.com/ariefcatur/go-retail-orders/internal/inventory"
	kafkax "github.com/ariefcatur/go-retail-orders/internal/kafka"
	"github.com/ariefcatur/go-retail-orders/internal/observability"
	"github.com/ariefcatur/go-retail-orders/internal/orders"
	"github.com/ariefcatur/go-retail-orders/internal/redisx"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	service := cfg.ServiceName + "-inventory"

	logger, err := observability.NewLogger(cfg.LogLevel, service)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	projector := &inventory.Projector{
		Cache:             redisx.NewStockProjection(rdb),
		Logger:            logger,
		LowStockThreshold: cfg.LowStockThreshold,
		ServiceName:       service,
	}

	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.StockConsumerGroup, orders.TopicStockChanged,
		cfg.StockConsumerWorkers, logger.Named("consumer"))

	logger.Info("stock projector started",
		zap.String("group", cfg.StockConsumerGroup),
		zap.String("topic", orders.TopicStockChanged),
		zap.Int("workers", cfg.StockConsumerWorkers),
	)
	if err := cons.Start(ctx, projector.HandleStockChanged); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("consumer exit", zap.Error(err))
		return
	}
	logger.Info("stock projector stopped")
}
