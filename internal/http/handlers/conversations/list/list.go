// Package list реализует HTTP-обработчик списка диалогов пользователя.
package list

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/fromelabs/chat-backend/internal/http/middlewarectx"
	"github.com/fromelabs/chat-backend/internal/http/response"
	"github.com/fromelabs/chat-backend/internal/lib/sl"
	"github.com/fromelabs/chat-backend/internal/models"
)

// Handler управляет HTTP-запросами списка диалогов.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает интерфейс бизнес-логики диалогов.
type Service interface {
	ListConversations(ctx context.Context, userUID string) ([]*models.Conversation, error)
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Список диалогов
// @Description Возвращает последние диалоги текущего пользователя, новые первыми.
// @Tags Conversations
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} map[string]any "Список диалогов"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /conversations [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.conversations.list"

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

	convs, err := h.service.ListConversations(r.Context(), userUID)
	if err != nil {
		log.Error("failed to list conversations", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not list conversations"))
		return
	}

	log.Info("conversations listed", slog.Int("count", len(convs)))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"conversations": convs,
	}))
}
