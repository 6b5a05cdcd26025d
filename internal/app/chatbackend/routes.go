// Package chatbackend предоставляет маршруты HTTP-сервиса чата.
package chatbackend

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/fromelabs/chat-backend/internal/config"
	"github.com/fromelabs/chat-backend/internal/http/handlers/auth/login"
	"github.com/fromelabs/chat-backend/internal/http/handlers/auth/register"
	"github.com/fromelabs/chat-backend/internal/http/handlers/billing/checkout"
	"github.com/fromelabs/chat-backend/internal/http/handlers/billing/portal"
	"github.com/fromelabs/chat-backend/internal/http/handlers/billing/webhook"
	"github.com/fromelabs/chat-backend/internal/http/handlers/chat/send"
	"github.com/fromelabs/chat-backend/internal/http/handlers/chat/usage"
	"github.com/fromelabs/chat-backend/internal/http/handlers/conversations/list"
	"github.com/fromelabs/chat-backend/internal/http/handlers/conversations/read"
	"github.com/fromelabs/chat-backend/internal/http/handlers/health"
	"github.com/fromelabs/chat-backend/internal/http/middlewarectx"
	authservice "github.com/fromelabs/chat-backend/internal/services/auth"
	billingservice "github.com/fromelabs/chat-backend/internal/services/billing"
	chatservice "github.com/fromelabs/chat-backend/internal/services/chat"
	entitlementservice "github.com/fromelabs/chat-backend/internal/services/entitlement"
)

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, cfg *config.Config,
	authService *authservice.AuthService,
	chatService *chatservice.ChatService,
	billingService *billingservice.BillingService,
	entitlementService *entitlementservice.EntitlementService,
) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	r.Route("/api/v1", func(r chi.Router) {
		// Открытые конечные точки
		r.Post("/register", register.New(logger, authService).ServeHTTP)
		r.Post("/login", login.New(logger, authService).ServeHTTP)
		r.Get("/health", health.New(logger).ServeHTTP)

		// Группа с JWT аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(authService, logger))
			r.Use(middlewarectx.RateLimitMiddleware(logger))
			r.Post("/chat", send.New(logger, chatService).ServeHTTP)
			r.Get("/usage", usage.New(logger, chatService).ServeHTTP)
			r.Get("/conversations", list.New(logger, chatService).ServeHTTP)
			r.Get("/conversations/{id}", read.New(logger, chatService).ServeHTTP)
			r.Post("/billing/checkout", checkout.New(logger, billingService).ServeHTTP)
			r.Post("/billing/portal", portal.New(logger, billingService).ServeHTTP)
		})

		// Webhook endpoint (без аутентификации)
		r.Post("/billing/webhook", webhook.New(logger, entitlementService, cfg.StripeWebhookSecret).ServeHTTP)
	})

	r.Handle("/metrics", promhttp.Handler())
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
