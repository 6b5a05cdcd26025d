// Package chatbackend собирает и запускает HTTP-сервис чата.
package chatbackend

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/streadway/amqp"

	"github.com/fromelabs/chat-backend/internal/billing"
	"github.com/fromelabs/chat-backend/internal/cache"
	"github.com/fromelabs/chat-backend/internal/config"
	"github.com/fromelabs/chat-backend/internal/lib/jwt"
	"github.com/fromelabs/chat-backend/internal/migrations"
	"github.com/fromelabs/chat-backend/internal/modelapi"
	"github.com/fromelabs/chat-backend/internal/rabbitmq"
	authservice "github.com/fromelabs/chat-backend/internal/services/auth"
	billingservice "github.com/fromelabs/chat-backend/internal/services/billing"
	chatservice "github.com/fromelabs/chat-backend/internal/services/chat"
	entitlementservice "github.com/fromelabs/chat-backend/internal/services/entitlement"
	"github.com/fromelabs/chat-backend/internal/storage/repository"
)

type App struct {
	server *http.Server
	logger *slog.Logger
	db     *repository.Storage
	amqp   *amqp.Connection
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		return nil, err
	}

	amqpConn, err := rabbitmq.Connect(cfg.RabbitURL, cfg.ConnectRetry, cfg.ConnectDelay)
	if err != nil {
		return nil, err
	}
	amqpChannel, err := rabbitmq.SetupChannel(amqpConn, rabbitmq.NotificationQueues(cfg))
	if err != nil {
		amqpConn.Close()
		return nil, err
	}
	notifier := rabbitmq.NewNotifier(amqpChannel, cfg.NotifyRouting)

	jwtMaker := jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL)
	modelClient := modelapi.New(cfg.ModelAPI)
	billingClient := billing.New(cfg.Stripe)

	authService := authservice.NewAuthService(db, jwtMaker, logger)
	chatService := chatservice.NewChatService(db, modelClient, cacheRedis, logger)
	billingService := billingservice.NewBillingService(db, billingClient, logger)
	entitlementService := entitlementservice.NewEntitlementService(db, cacheRedis, notifier, logger)

	router := chi.NewRouter()
	RegisterRoutes(router, logger, cfg, authService, chatService, billingService, entitlementService)

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server: srv,
		logger: logger,
		db:     db,
		amqp:   amqpConn,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		a.db.DB.Close()
		a.amqp.Close()
		return err
	}
}
