// Package read реализует HTTP-обработчик чтения диалога с сообщениями.
package read

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	chatservice "github.com/fromelabs/chat-backend/internal/services/chat"

	"github.com/fromelabs/chat-backend/internal/http/middlewarectx"
	"github.com/fromelabs/chat-backend/internal/http/response"
	"github.com/fromelabs/chat-backend/internal/lib/sl"
	"github.com/fromelabs/chat-backend/internal/models"
)

// Handler управляет HTTP-запросами чтения диалога.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает интерфейс бизнес-логики диалогов.
type Service interface {
	Conversation(ctx context.Context, userUID, conversationID string) (*chatservice.ConversationView, error)
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Диалог с сообщениями
// @Description Возвращает диалог текущего пользователя вместе со всеми сообщениями в порядке добавления.
// @Tags Conversations
// @Produce  json
// @Security BearerAuth
// @Param id path string true "ID диалога"
// @Success 200 {object} map[string]any "Диалог и сообщения"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 404 {object} response.ErrorResponse "Диалог не найден"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /conversations/{id} [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.conversations.read"

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

	conversationID := chi.URLParam(r, "id")
	view, err := h.service.Conversation(r.Context(), userUID, conversationID)
	if err != nil {
		if errors.Is(err, models.ErrConversationNotFound) {
			log.Info("conversation not found", slog.String("conversation_id", conversationID))
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("conversation not found"))
			return
		}
		log.Error("failed to read conversation", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not read conversation"))
		return
	}

	render.JSON(w, r, response.OKWithData(view))
}
