package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/reparto-app/reparto/internal/analytics"
	analytichttp "github.com/reparto-app/reparto/internal/analytics/http"
	"github.com/reparto-app/reparto/internal/app"
	"github.com/reparto-app/reparto/internal/auth"
	"github.com/reparto-app/reparto/internal/catalog"
	"github.com/reparto-app/reparto/internal/customers"
	"github.com/reparto-app/reparto/internal/delivery"
	"github.com/reparto-app/reparto/internal/notify"
	"github.com/reparto-app/reparto/internal/orders"
	"github.com/reparto-app/reparto/internal/platform/cache"
	"github.com/reparto-app/reparto/internal/platform/db"
	"github.com/reparto-app/reparto/internal/sales"
	"github.com/reparto-app/reparto/internal/shared"
	"github.com/reparto-app/reparto/internal/stream"
	"github.com/reparto-app/reparto/jobs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)
	slog.SetDefault(logger)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessions := shared.NewSessionManager(redisClient, "reparto_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	broker := stream.NewBroker(redisClient, logger)

	authService := auth.NewService(auth.NewRepository(pool))
	catalogService := catalog.NewService(catalog.NewRepository(pool))
	customersService := customers.NewService(customers.NewRepository(pool))
	salesService := sales.NewService(sales.NewRepository(pool), broker, logger)
	deliveryService := delivery.NewService(delivery.NewRepository(pool), broker, logger, delivery.ServiceConfig{
		MinutesPerStop: cfg.MinutesPerStop,
	})
	salesService.SetRouteBuilder(deliveryService)

	ordersService := orders.NewService(orders.NewRepository(pool), broker, logger)
	notifyRepo := notify.NewRepository(pool)
	notifyService := notify.NewService(notifyRepo)
	analyticsService := analytics.NewService(
		analytics.NewRepository(pool),
		analytics.NewCache(redisClient, 10*time.Minute),
	)

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobsClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		logger.Error("init jobs client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts)

	dispatcher := notify.NewDispatcher(broker, salesService.Summaries, notifyRepo, jobsClient, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		SessionManager: sessions,

		AuthHandler:      auth.NewHandler(logger, authService, sessions),
		CatalogHandler:   catalog.NewHandler(logger, catalogService),
		CustomersHandler: customers.NewHandler(logger, customersService),
		SalesHandler:     sales.NewHandler(logger, salesService),
		DeliveryHandler:  delivery.NewHandler(logger, deliveryService),
		OrdersHandler:    orders.NewHandler(logger, ordersService),
		NotifyHandler:    notify.NewHandler(logger, notifyService),
		AnalyticsHandler: analytichttp.NewHandler(logger, analyticsService),
		StreamHandler:    stream.NewHandler(logger, broker, salesService.Summaries),
		JobHandler:       jobs.NewHandler(inspector, logger),

		TokenAuth: customers.TokenAuth(logger, customersService),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("server listening", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		err := dispatcher.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	group.Go(func() error {
		err := analyticsService.WatchEvents(ctx, broker, logger)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		logger.Error("server stopped", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("server stopped")
}
