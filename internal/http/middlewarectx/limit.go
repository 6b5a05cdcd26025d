package middlewarectx

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
	"golang.org/x/time/rate"

	"github.com/fromelabs/chat-backend/internal/http/response"
)

// Общий лимит на все авторизованные запросы. Квоты сообщений
// считаются отдельно в базе, этот лимитер защищает только от всплесков.
const (
	requestsPerSecond = 10
	burstSize         = 30
)

var limiter = rate.NewLimiter(requestsPerSecond, burstSize)

// RateLimitMiddleware ограничивает общую частоту запросов к серверу.
func RateLimitMiddleware(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				log.Warn("request rejected by rate limiter", slog.String("path", r.URL.Path))
				render.Status(r, http.StatusTooManyRequests)
				render.JSON(w, r, response.Error("too many requests"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
