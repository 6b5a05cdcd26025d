// Package portal реализует HTTP-обработчик портала управления подпиской.
package portal

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/fromelabs/chat-backend/internal/http/middlewarectx"
	"github.com/fromelabs/chat-backend/internal/http/response"
	"github.com/fromelabs/chat-backend/internal/lib/sl"
	"github.com/fromelabs/chat-backend/internal/models"
)

// Handler управляет HTTP-запросами портала подписки.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает интерфейс бизнес-логики портала подписки.
type Service interface {
	Portal(ctx context.Context, userUID string) (string, error)
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Портал управления подпиской
// @Description Создает сессию портала платёжного провайдера для управления подпиской и возвращает её URL.
// @Tags Billing
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} map[string]any "URL портала"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 409 {object} response.ErrorResponse "У пользователя нет оформленной подписки"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /billing/portal [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.billing.portal"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userUID, ok := r.Context().Value(middlewarectx.UserUID).(string)
	if !ok || userUID == "" {
		log.Error("user uid not found in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	url, err := h.service.Portal(r.Context(), userUID)
	if err != nil {
		if errors.Is(err, models.ErrNoCustomer) {
			log.Info("portal requested without billing customer", slog.String("user_uid", userUID))
			w.WriteHeader(http.StatusConflict)
			render.JSON(w, r, response.Error("no subscription to manage"))
			return
		}
		log.Error("failed to create portal session", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not create portal session"))
		return
	}

	render.JSON(w, r, response.OKWithData(map[string]any{
		"url": url,
	}))
}
