// Package send реализует HTTP-обработчик отправки сообщения в чат.
//
// Обработчик принимает JSON с историей диалога, проверяет квоту через сервис
// чата и возвращает ответ ассистента вместе со снимком использования.
// Исчерпанная квота отдается со статусом 429 и числами used/limit/plan,
// чтобы клиент мог показать предложение сменить план.
package send

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	chatservice "github.com/fromelabs/chat-backend/internal/services/chat"

	"github.com/fromelabs/chat-backend/internal/http/middlewarectx"
	"github.com/fromelabs/chat-backend/internal/http/response"
	"github.com/fromelabs/chat-backend/internal/lib/sl"
	"github.com/fromelabs/chat-backend/internal/metrics"
	"github.com/fromelabs/chat-backend/internal/models"
)

// Handler управляет HTTP-запросами отправки сообщений.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service описывает интерфейс бизнес-логики чата.
type Service interface {
	Send(ctx context.Context, userUID string, req models.ChatRequest) (*chatservice.ChatReply, error)
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Отправить сообщение ассистенту
// @Description Отправляет историю диалога модели и возвращает ответ ассистента, ID диалога и снимок использования квоты.
// @Tags Chat
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param request body models.ChatRequest true "История диалога"
// @Success 200 {object} map[string]any "Ответ ассистента"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 404 {object} response.ErrorResponse "Пользователь не найден"
// @Failure 429 {object} response.ErrorResponse "Квота сообщений исчерпана"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 502 {object} response.ErrorResponse "Ошибка API модели"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /chat [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.chat.send"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	userUID, ok := r.Context().Value(middlewarectx.UserUID).(string)
	if !ok || userUID == "" {
		log.Error("user uid not found in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	reply, err := h.service.Send(r.Context(), userUID, req)
	if err != nil {
		var quotaErr *models.QuotaExceededError
		switch {
		case errors.As(err, &quotaErr):
			metrics.ChatRequests.WithLabelValues("quota_exceeded").Inc()
			log.Info("quota exceeded",
				slog.Int("used", quotaErr.Used),
				slog.Int("limit", quotaErr.Limit))
			w.WriteHeader(http.StatusTooManyRequests)
			render.JSON(w, r, response.Response{
				Status: response.StatusError,
				Error:  quotaErr.Error(),
				Data:   map[string]any{"usage": quotaErr.Usage()},
			})
			return
		case errors.Is(err, models.ErrUserNotFound):
			metrics.ChatRequests.WithLabelValues("error").Inc()
			log.Warn("user not found", slog.String("user_uid", userUID))
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("user not found"))
			return
		case errors.Is(err, models.ErrUpstreamModel):
			metrics.ChatRequests.WithLabelValues("upstream_error").Inc()
			log.Error("model api failed", sl.Err(err))
			w.WriteHeader(http.StatusBadGateway)
			render.JSON(w, r, response.Error("assistant is temporarily unavailable"))
			return
		default:
			metrics.ChatRequests.WithLabelValues("error").Inc()
			log.Error("failed to process message", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error("could not process message"))
			return
		}
	}

	metrics.ChatRequests.WithLabelValues("ok").Inc()
	log.Info("message processed", slog.String("conversation_id", reply.ConversationID))
	render.JSON(w, r, response.OKWithData(reply))
}
