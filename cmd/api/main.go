package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"

	"github.com/bloom-bouquet/api/internal/di"
	"github.com/bloom-bouquet/api/internal/handlers"
	"github.com/bloom-bouquet/api/internal/platform/auth"
	"github.com/bloom-bouquet/api/internal/platform/config"
	"github.com/bloom-bouquet/api/internal/platform/events"
	pfirestore "github.com/bloom-bouquet/api/internal/platform/firestore"
	"github.com/bloom-bouquet/api/internal/platform/idempotency"
	"github.com/bloom-bouquet/api/internal/platform/observability"
	"github.com/bloom-bouquet/api/internal/platform/secrets"
	firestoreRepo "github.com/bloom-bouquet/api/internal/repositories/firestore"
)

func main() {
	ctx := context.Background()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")

	fetcher, err := secrets.NewFetcher(ctx, secrets.WithLogger(logger.Named("secrets")))
	if err != nil {
		logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx,
		config.WithSecretResolver(config.SecretResolverFunc(fetcher.ResolveSecret)),
	)
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	firestoreProvider := pfirestore.NewProvider(cfg.Firestore)
	if _, err := firestoreProvider.Client(ctx); err != nil {
		logger.Fatal("failed to initialise firestore client", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := firestoreProvider.Close(closeCtx); err != nil {
			logger.Warn("firestore close error", zap.Error(err))
		}
	}()

	registry, err := firestoreRepo.NewRegistry(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise repositories", zap.Error(err))
	}

	if cfg.PubSub.EmulatorHost != "" {
		os.Setenv("PUBSUB_EMULATOR_HOST", cfg.PubSub.EmulatorHost)
	}
	pubsubClient, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
	if err != nil {
		logger.Fatal("failed to initialise pubsub client", zap.Error(err))
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logger.Warn("pubsub close error", zap.Error(err))
		}
	}()

	eventsTopic := pubsubClient.Topic(cfg.PubSub.EventsTopic)
	defer eventsTopic.Stop()

	publisher, err := events.NewPubSubOrderEventPublisher(eventsTopic)
	if err != nil {
		logger.Fatal("failed to initialise event publisher", zap.Error(err))
	}

	container, err := di.NewContainer(ctx, cfg, registry, di.WithEventPublisher(publisher))
	if err != nil {
		logger.Fatal("failed to wire services", zap.Error(err))
	}

	gatewayGuard := auth.NewServiceTokenGuard(cfg.Gateway.WebhookSecret)
	orderHandlers := handlers.NewOrderHandlers(
		container.Services.Orders,
		container.Services.History,
		handlers.WithOrderPageLimits(cfg.Listing.DefaultPageSize, cfg.Listing.MaxPageSize),
		handlers.WithPaymentGuard(gatewayGuard.Require()),
	)
	notificationHandlers := handlers.NewNotificationHandlers(
		container.Services.Notifications,
		handlers.WithNotificationPageLimits(cfg.Listing.DefaultPageSize, cfg.Listing.MaxPageSize),
	)
	healthHandlers := handlers.NewHealthHandlers(
		handlers.WithReadyCheck("firestore", func(ctx context.Context) error {
			_, err := firestoreProvider.Client(ctx)
			return err
		}),
	)

	idempotencyStore, err := idempotency.NewFirestoreStore(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise idempotency store", zap.Error(err))
	}

	projectID := cfg.Firestore.ProjectID
	router := handlers.NewRouter(
		handlers.WithMiddlewares(
			observability.InjectLoggerMiddleware(logger.Named("http")),
			observability.TraceMiddleware(projectID),
			observability.RecoveryMiddleware(logger.Named("http")),
			observability.RequestLoggerMiddleware(projectID),
		),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithAdminMiddlewares(
			handlers.ActorMiddleware(),
			idempotency.Middleware(idempotencyStore, idempotency.WithLogger(logger.Named("idempotency"))),
		),
		handlers.WithOrderRoutes(orderHandlers.Routes),
		handlers.WithNotificationRoutes(notificationHandlers.Routes),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("bloom-bouquet api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}

	if err := container.Close(shutdownCtx); err != nil {
		logger.Warn("container close error", zap.Error(err))
	}
}
