package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"food-delivery/internal/adapter/web"
	"food-delivery/internal/catalog"
	"food-delivery/internal/config"
	"food-delivery/internal/database"
	"food-delivery/internal/identity"
	"food-delivery/internal/logger"
	"food-delivery/internal/messaging"
	"food-delivery/internal/metrics"
	"food-delivery/internal/pricing"
	"food-delivery/internal/services/cart"
	"food-delivery/internal/services/delivery"
	"food-delivery/internal/services/dispatch"
	"food-delivery/internal/services/notification"
	"food-delivery/internal/services/order"
	"food-delivery/internal/services/tracking"
	"food-delivery/internal/storage"
	"food-delivery/internal/storage/memory"
	"food-delivery/internal/storage/postgres"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"
)

// backend is the storage selected by storage.driver together with its catalog.
type backend struct {
	store   storage.Store
	catalog catalog.Gateway
	close   func()
}

func openBackend(ctx context.Context, cfg *config.Config, log *logger.Logger) (*backend, error) {
	if cfg.Storage.Driver == "memory" {
		var items []catalog.MenuItem
		if cfg.Storage.CatalogSeed != "" {
			data, err := os.ReadFile(cfg.Storage.CatalogSeed)
			if err != nil {
				return nil, fmt.Errorf("failed to read catalog seed: %w", err)
			}
			if items, err = catalog.LoadSeed(data); err != nil {
				return nil, err
			}
		}
		log.Info("storage_ready", fmt.Sprintf("Using in-memory storage with %d menu items", len(items)), "startup", nil)
		return &backend{store: memory.New(), catalog: catalog.NewMemory(items...), close: func() {}}, nil
	}

	db, err := database.New(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	if err := db.RunMigrations(ctx, cfg.Database.MigrationsPath); err != nil {
		db.Close()
		return nil, err
	}
	log.Info("db_connected", "Connected to PostgreSQL database", "startup", nil)
	return &backend{store: postgres.New(db), catalog: catalog.NewPostgres(db), close: db.Close}, nil
}

// openBroker connects to RabbitMQ. The returned connection is nil when the
// broker is disabled.
func openBroker(cfg *config.Config, log *logger.Logger, disabled bool) (*messaging.Connection, messaging.EventPublisher) {
	if disabled || cfg.RabbitMQ.Host == "" {
		log.Warn("rabbitmq_disabled", "Running without RabbitMQ, events are discarded", "startup", nil)
		return nil, messaging.Discard{}
	}
	conn, err := messaging.New(cfg, log)
	if err != nil {
		log.Error("rabbitmq_connection_failed", "Falling back to discarding events", "startup", err, nil)
		return nil, messaging.Discard{}
	}
	log.Info("rabbitmq_connected", "Connected to RabbitMQ", "startup", nil)
	return conn, messaging.NewPublisher(conn, log)
}

func newLogger(service string, cfg *config.Config) *logger.Logger {
	return logger.NewWithWriter(service, os.Stdout, cfg.Log.Level)
}

func runOrderService(cfg *config.Config, withDispatch, noBroker bool) error {
	log := newLogger("order-service", cfg)
	ctx, cancel := signalContext(log, "shutdown")
	defer cancel()

	be, err := openBackend(ctx, cfg, log)
	if err != nil {
		log.Error("db_connection_failed", "Failed to open storage", "startup", err, nil)
		return err
	}
	defer be.close()

	conn, events := openBroker(cfg, log, noBroker)
	if conn != nil {
		defer conn.Close()
	}
	if withDispatch && conn == nil {
		return errors.New("--dispatch needs a RabbitMQ connection")
	}

	m := metrics.New()
	gw := identity.NewGateway(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	policy := pricing.NewPolicy(cfg.Pricing.TaxRatePercent, cfg.Pricing.DeliveryFee)

	orderSvc := order.NewService(be.store, be.catalog, events, log, m, policy, cfg.Pricing.EstimatedETA, cfg.Pricing.CatalogParallel)
	deliverySvc := delivery.NewService(be.store, orderSvc.Lifecycle(), events, log, m)
	cartSvc := cart.NewService(be.store, be.catalog, log, m, cfg.Pricing.CatalogParallel)
	trackingSvc := tracking.NewService(be.store, log)

	server := web.NewServer(cfg.Server, "order-service", log, m, be.store, gw.Middleware(),
		cart.NewHandler(cartSvc, log),
		order.NewHandler(orderSvc, log),
		delivery.NewHandler(deliverySvc, log),
		tracking.NewHandler(trackingSvc, log),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(server.Start)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, stop := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer stop()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("shutdown_failed", "Server forced to shutdown", "shutdown", err, nil)
			return err
		}
		return nil
	})
	if withDispatch {
		consumer := messaging.NewConsumer(conn, log, m, messaging.DispatchQueue, "order-service-dispatch", 1)
		worker := dispatch.NewWorker("order-service", consumer, deliverySvc, log)
		g.Go(func() error { return worker.Start(gctx) })
	}

	err = g.Wait()
	log.Info("service_stopped", "Order service stopped", "shutdown", nil)
	return err
}

func runDispatchWorker(cfg *config.Config, workerName string, prefetch int) error {
	log := newLogger("dispatch-worker", cfg)
	if cfg.Storage.Driver == "memory" {
		return errors.New("dispatch-worker needs storage.driver postgres; use order-service --dispatch with the memory driver")
	}
	ctx, cancel := signalContext(log, "shutdown")
	defer cancel()

	be, err := openBackend(ctx, cfg, log)
	if err != nil {
		log.Error("db_connection_failed", "Failed to open storage", "startup", err, nil)
		return err
	}
	defer be.close()

	conn, err := messaging.New(cfg, log)
	if err != nil {
		log.Error("rabbitmq_connection_failed", "Failed to connect to RabbitMQ", "startup", err, nil)
		return err
	}
	defer conn.Close()

	events := messaging.NewPublisher(conn, log)
	lifecycle := order.NewLifecycle(cfg.Pricing.EstimatedETA)
	deliverySvc := delivery.NewService(be.store, lifecycle, events, log, nil)

	consumer := messaging.NewConsumer(conn, log, nil, messaging.DispatchQueue, workerName, prefetch)
	err = dispatch.NewWorker(workerName, consumer, deliverySvc, log).Start(ctx)
	log.Info("service_stopped", "Dispatch worker stopped", "shutdown", nil)
	return err
}

func runNotificationSubscriber(cfg *config.Config, prefetch int) error {
	log := newLogger("notification-subscriber", cfg)
	ctx, cancel := signalContext(log, "shutdown")
	defer cancel()

	// Validate has already accepted the locale.
	lang := language.MustParse(cfg.Notification.Locale)

	conn, err := messaging.New(cfg, log)
	if err != nil {
		log.Error("rabbitmq_connection_failed", "Failed to connect to RabbitMQ", "startup", err, nil)
		return err
	}
	defer conn.Close()

	hostname, _ := os.Hostname()
	consumer := messaging.NewConsumer(conn, log, nil, messaging.NotificationsQueue, "notification-"+hostname, prefetch)
	err = notification.NewSubscriber(consumer, os.Stdout, lang, log).Start(ctx)
	log.Info("service_stopped", "Notification subscriber stopped", "shutdown", nil)
	return err
}

func runMigrate(cfg *config.Config) error {
	log := newLogger("migrate", cfg)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := database.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.RunMigrations(ctx, cfg.Database.MigrationsPath); err != nil {
		return err
	}
	log.Info("migrations_applied", "Database migrations applied", "startup", nil)
	return nil
}
