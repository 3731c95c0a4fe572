package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ariefcatur/go-retail-orders/internal/config"
	"github.com/ariefcatur/go-retail-orders/internal/httpx"
	kafkax "github.com/ariefcatur/go-retail-orders/internal/kafka"
	"github.com/ariefcatur/go-retail-orders/internal/memstore"
	"github.com/ariefcatur/go-retail-orders/internal/metrics"
	"github.com/ariefcatur/go-retail-orders/internal/observability"
	"github.com/ariefcatur/go-retail-orders/internal/ordering"
	"github.com/ariefcatur/go-retail-orders/internal/orders"
	"github.com/ariefcatur/go-retail-orders/internal/postgres"
	"github.com/ariefcatur/go-retail-orders/internal/redisx"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	logger, err := observability.NewLogger(cfg.LogLevel, cfg.ServiceName)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("api exited", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Store
	var store orders.Store
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		mem := memstore.New()
		seedDemo(mem)
		store = mem
		logger.Info("using in-memory store")
	default:
		db, err := postgres.Connect(ctx, cfg.PostgresDSN, int(cfg.DBMaxConns))
		if err != nil {
			return err
		}
		defer db.Close()
		if err := postgres.Migrate(ctx, db); err != nil {
			return err
		}
		store = &postgres.Store{DB: db}
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()
	statusCache := redisx.NewStatusCache(rdb)

	// Kafka producer; its context outlives ctx so buffered events flush on shutdown
	prodCtx, cancelProd := context.WithCancel(context.Background())
	defer cancelProd()
	prod := kafkax.NewProducer(cfg.KafkaBrokers, 1024, logger.Named("producer"))
	prod.Start(prodCtx)

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	serverMetrics := metrics.NewServerMetrics(reg, cfg.ServiceName)
	orderMetrics := metrics.NewOrderMetrics(reg)

	svc, err := ordering.NewService(ordering.Deps{
		Store:       store,
		Events:      prod,
		StatusCache: statusCache,
		Metrics:     orderMetrics,
		Logger:      logger.Named("ordering"),
		ServiceName: cfg.ServiceName,
	})
	if err != nil {
		return err
	}

	router := httpx.NewRouter(logger.Named("http"), serverMetrics)
	(&httpx.OrdersHandler{
		Service: svc,
		Status:  statusCache,
		Idem:    redisx.NewIdempotency(rdb),
		Logger:  logger.Named("http"),
		Timeout: cfg.RequestTimeout,
	}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}
	metricsSrv := &http.Server{Addr: cfg.MetricsAddr, Handler: metrics.Handler(reg), ReadHeaderTimeout: 5 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	for _, s := range []*http.Server{srv, metricsSrv} {
		s := s
		g.Go(func() error {
			logger.Info("http listening", zap.String("addr", s.Addr))
			if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		_ = metricsSrv.Shutdown(shutdownCtx)
		return nil
	})
	err = g.Wait()

	prod.Close()
	prod.WaitClosed()
	return err
}

// seedDemo gives STORE_DRIVER=memory something to order against.
func seedDemo(s *memstore.Store) {
	s.PutUser(orders.User{ID: "demo-user", Email: "demo@example.com", DisplayName: "Demo"})
	s.PutVariant(orders.Variant{ID: "tee-black-m", ProductID: "tee", Price: decimal.RequireFromString("50.00"), Available: 25, IsAvailable: true})
	s.PutVariant(orders.Variant{ID: "tee-white-m", ProductID: "tee", Price: decimal.RequireFromString("30.00"), Available: 10, IsAvailable: true})
	s.PutVariant(orders.Variant{ID: "cap-navy", ProductID: "cap", Price: decimal.RequireFromString("100.00"), Available: 3, IsAvailable: true})
	s.SetCart("demo-user", map[string]int{"cap-navy": 1})
}
