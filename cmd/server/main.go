package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/rl1809/storefront/internal/adapter/handler"
	"github.com/rl1809/storefront/internal/adapter/notify"
	"github.com/rl1809/storefront/internal/adapter/storage"
	"github.com/rl1809/storefront/internal/config"
	"github.com/rl1809/storefront/internal/core/service"
	"github.com/rl1809/storefront/internal/logger"
	"github.com/rl1809/storefront/internal/port"
	"github.com/rl1809/storefront/internal/telemetry"

	_ "github.com/go-sql-driver/mysql"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to config.toml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("starting storefront",
		zap.String("env", cfg.App.Env),
		zap.String("version", version),
		zap.String("inventory_backend", cfg.Inventory.Backend),
	)

	tel, err := telemetry.Setup(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SamplingRatio:  cfg.Telemetry.SamplingRatio,
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: version,
		Environment:    cfg.App.Env,
		MetricInterval: cfg.Telemetry.MetricInterval,
	}, log)
	if err != nil {
		return fmt.Errorf("setup telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			log.Error("telemetry shutdown", zap.Error(err))
		}
	}()

	db, err := sqlx.Open("mysql", cfg.MySQL.DSN())
	if err != nil {
		return fmt.Errorf("open mysql: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping mysql: %w", err)
	}
	log.Info("connected to mysql", zap.String("database", cfg.MySQL.Database))

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	log.Info("connected to redis", zap.String("addr", cfg.Redis.Addr))

	var inventory port.InventoryLedger
	switch cfg.Inventory.Backend {
	case config.BackendRedis:
		inventory = storage.NewRedisInventory(rdb)
	default:
		inventory = storage.NewMySQLInventory(db)
	}
	carts := storage.NewRedisCartStore(rdb, cfg.Checkout.CartTTL)
	orders := storage.NewMySQLOrderStore(db)

	var notifier port.Notifier = notify.NewLogNotifier(log)
	if cfg.Notification.WebhookURL != "" {
		notifier = notify.NewWebhookNotifier(notify.WebhookConfig{
			URL:        cfg.Notification.WebhookURL,
			Retries:    cfg.Notification.Retries,
			RetryWait:  cfg.Notification.RetryWait,
			Timeout:    cfg.Notification.Timeout,
			SigningKey: cfg.Notification.WebhookToken,
		}, log)
	}
	dispatcher := service.NewNotificationDispatcher(notifier,
		cfg.Notification.QueueSize, cfg.Notification.Workers, cfg.Notification.Timeout, log)

	checkout := service.NewCheckoutService(carts, inventory, orders, dispatcher, log,
		service.WithIdempotency(storage.NewRedisIdempotencyStore(rdb, cfg.Checkout.IdempotencyTTL)),
	)
	httpHandler := handler.NewHTTPHandler(
		service.NewCatalogService(inventory),
		service.NewCartService(carts, inventory, log),
		checkout,
		service.NewOrderService(orders, log),
	)

	httpServer := &http.Server{
		Addr: cfg.HTTP.Addr,
		Handler: handler.NewRouter(httpHandler, log, handler.RouterConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Tracing:     tel.Enabled(),
			Debug:       cfg.App.Env == "development",
		}),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(handler.UnaryLoggingInterceptor(log)))
	handler.RegisterCheckoutServer(grpcServer, handler.NewGRPCHandler(checkout))

	lis, err := net.Listen("tcp", cfg.GRPC.Addr)
	if err != nil {
		return fmt.Errorf("listen grpc: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("gRPC server listening", zap.String("addr", cfg.GRPC.Addr))
		return grpcServer.Serve(lis)
	})
	g.Go(func() error {
		log.Info("HTTP server listening", zap.String("addr", cfg.HTTP.Addr))
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP shutdown", zap.Error(err))
		}
		log.Info("HTTP server stopped")

		grpcServer.GracefulStop()
		log.Info("gRPC server stopped")
		return nil
	})

	err = g.Wait()

	// In-flight checkouts have returned, so no more events can be enqueued.
	dispatcher.Close()
	log.Info("notification workers stopped")
	return err
}
