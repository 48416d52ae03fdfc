package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/storefront-backend/api"
	"github.com/angelmondragon/storefront-backend/api/controllers"
	"github.com/angelmondragon/storefront-backend/api/routes"
	"github.com/angelmondragon/storefront-backend/internal/admin"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/catalog"
	"github.com/angelmondragon/storefront-backend/internal/checkout"
	"github.com/angelmondragon/storefront-backend/internal/donations"
	"github.com/angelmondragon/storefront-backend/internal/notifications"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/pkg/auth/session"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/mailer"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/migrate"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
)

const serviceName = "api"

func main() {
	logg := logger.New(logger.Options{ServiceName: serviceName})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "port": cfg.App.Port})

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(ctx, "api stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(context.Background(), "api shut down")
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) (err error) {
	dbClient, err := db.New(ctx, cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, dbClient.Close()) }()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, redisClient.Close()) }()

	sessions, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		return err
	}

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	storeMetrics := metrics.NewStorefrontMetrics(promRegistry)
	jobMetrics := metrics.NewJobMetrics(promRegistry)

	emitter, dispatcher, err := buildEmitter(cfg, dbClient, storeMetrics, logg)
	if err != nil {
		return err
	}

	productRepo := products.NewRepository(dbClient.DB())
	cat := catalog.New(productRepo, logg)
	if err := cat.Refresh(ctx); err != nil {
		logg.Warn(logg.WithField(ctx, "error", err.Error()), "catalog.initial_refresh_failed")
	}

	deviceStore := redis.NewDeviceStore(redisClient, cfg.Cart.DeviceTTL)
	carts := cart.NewRegistry(deviceStore, cfg.Cart.IdleEviction, logg).WithJobMetrics(jobMetrics)
	defer carts.Close()
	deviceOrders := orders.NewDeviceOrders(deviceStore, logg)
	orderRepo := orders.NewRepository(dbClient.DB())

	ordersSvc, err := orders.NewService(orders.ServiceParams{
		Repository:   orderRepo,
		DeviceOrders: deviceOrders,
		Products:     cat,
		Carts:        carts,
		Emitter:      emitter,
		Metrics:      storeMetrics,
		Logger:       logg,
	})
	if err != nil {
		return err
	}
	checkoutSvc, err := checkout.NewService(checkout.ServiceParams{
		DB:             dbClient,
		Orders:         orderRepo,
		Carts:          carts,
		Locks:          redisClient,
		DeviceOrders:   deviceOrders,
		Emitter:        emitter,
		Metrics:        storeMetrics,
		Logger:         logg,
		InFlightTTL:    cfg.Checkout.InFlightTTL,
		DefaultCountry: cfg.Checkout.DefaultCountry,
	})
	if err != nil {
		return err
	}
	donationSvc, err := donations.NewService(donations.NewRepository(dbClient.DB()), emitter, storeMetrics, logg)
	if err != nil {
		return err
	}
	productSvc, err := products.NewService(productRepo, logg)
	if err != nil {
		return err
	}
	adminSvc, err := admin.NewService(admin.ServiceParams{
		PasswordHash: cfg.Admin.PasswordHash,
		Sessions:     sessions,
		JWTConfig:    cfg.JWT,
		Logger:       logg,
	})
	if err != nil {
		return err
	}

	var deadLetters controllers.DeadLetterReader
	if cfg.Notifications.IsOutbox() {
		deadLetters = outbox.NewDLQRepository(dbClient.DB())
	}

	handler := routes.NewRouter(routes.RouterParams{
		Config:      cfg,
		Logger:      logg,
		HTTPMetrics: metrics.NewHTTPMetrics(promRegistry),
		Metrics:     promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}),
		Readiness: map[string]controllers.Pinger{
			"db":    dbClient,
			"redis": redisClient,
		},
		Sessions:     sessions,
		RateLimiter:  redisClient,
		Idempotency:  redisClient,
		Catalog:      cat,
		Carts:        carts,
		Checkout:     checkoutSvc,
		DeviceOrders: ordersSvc,
		AdminOrders:  ordersSvc,
		Donations:    donationSvc,
		ProductAdmin: productSvc,
		AdminAuth:    adminSvc,
		DeadLetters:  deadLetters,
	})
	server := api.NewServer(cfg, handler, logg)

	if dispatcher != nil {
		dispatcher.Start()
	}

	logg.Info(ctx, "starting api server")
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.Run(gctx) })
	g.Go(func() error { return carts.Run(gctx, cfg.Cart.SweepInterval) })

	waitErr := g.Wait()
	if errors.Is(waitErr, context.Canceled) {
		waitErr = nil
	}
	// The server has drained by now, so no request can emit into a closed
	// dispatcher.
	if dispatcher != nil {
		logg.Info(ctx, "draining notification queue")
		waitErr = multierr.Append(waitErr, dispatcher.Close())
	}
	return waitErr
}

// buildEmitter picks the notification path. Inline mode also returns the
// dispatcher so the caller can run and drain it.
func buildEmitter(cfg *config.Config, dbClient *db.Client, m *metrics.StorefrontMetrics, logg *logger.Logger) (notifications.Emitter, *notifications.Dispatcher, error) {
	if cfg.Notifications.IsOutbox() {
		writer := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
		emitter, err := notifications.NewOutboxEmitter(dbClient, writer)
		return emitter, nil, err
	}

	renderer, err := notifications.NewRenderer(cfg.Notifications.StoreName, cfg.Notifications.SupportEmail)
	if err != nil {
		return nil, nil, err
	}
	sender, err := notifications.NewSender(notifications.SenderParams{
		Renderer: renderer,
		Mailer:   mailer.New(cfg.Sendgrid, logg),
		Sendgrid: cfg.Sendgrid,
		Metrics:  m,
		Logger:   logg,
	})
	if err != nil {
		return nil, nil, err
	}
	dispatcher, err := notifications.NewDispatcher(sender, cfg.Notifications.QueueSize, cfg.Notifications.Workers, logg)
	if err != nil {
		return nil, nil, err
	}
	return dispatcher, dispatcher, nil
}
