package send

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/go-chi/chi/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fromelabs/chat-backend/internal/http/middlewarectx"
	"github.com/fromelabs/chat-backend/internal/models"
	chatservice "github.com/fromelabs/chat-backend/internal/services/chat"
)

// MockService реализует интерфейс send.Service
type MockService struct {
	mock.Mock
}

func (m *MockService) Send(ctx context.Context, userUID string, req models.ChatRequest) (*chatservice.ChatReply, error) {
	args := m.Called(ctx, userUID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*chatservice.ChatReply), args.Error(1)
}

func TestSendHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	validBody := models.ChatRequest{Messages: []models.Turn{
		{Role: "user", Content: "hello"},
	}}

	tests := []struct {
		name           string
		requestBody    interface{}
		userUID        string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:        "успешная отправка сообщения",
			requestBody: validBody,
			userUID:     "user123",
			setupMock: func(m *MockService) {
				m.On("Send", mock.Anything, "user123", mock.AnythingOfType("models.ChatRequest")).
					Return(&chatservice.ChatReply{
						Response:       "hi there",
						ConversationID: "conv-1",
						Usage:          models.UsageInfo{Used: 4, Limit: 50, Plan: "FREE"},
					}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `{"status":"OK","data":{"response":"hi there","conversation_id":"conv-1","usage":{"used":4,"limit":50,"plan":"FREE"}}}`,
		},
		{
			name:           "пустая история диалога",
			requestBody:    models.ChatRequest{Messages: []models.Turn{}},
			userUID:        "user123",
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   `{"status":"Error","error":"field Messages is too short"}`,
		},
		{
			name:           "некорректный JSON",
			requestBody:    "not a json",
			userUID:        "user123",
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"status":"Error","error":"invalid request body"}`,
		},
		{
			name:           "отсутствует авторизация",
			requestBody:    validBody,
			userUID:        "",
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   `{"status":"Error","error":"unauthorized"}`,
		},
		{
			name:        "квота исчерпана",
			requestBody: validBody,
			userUID:     "user123",
			setupMock: func(m *MockService) {
				m.On("Send", mock.Anything, "user123", mock.AnythingOfType("models.ChatRequest")).
					Return(nil, &models.QuotaExceededError{Used: 50, Limit: 50, Plan: models.PlanFree})
			},
			expectedStatus: http.StatusTooManyRequests,
			expectedBody:   `{"status":"Error","error":"message limit of 50 reached for plan FREE","data":{"usage":{"used":50,"limit":50,"plan":"FREE"}}}`,
		},
		{
			name:        "модель недоступна",
			requestBody: validBody,
			userUID:     "user123",
			setupMock: func(m *MockService) {
				m.On("Send", mock.Anything, "user123", mock.AnythingOfType("models.ChatRequest")).
					Return(nil, models.ErrUpstreamModel)
			},
			expectedStatus: http.StatusBadGateway,
			expectedBody:   `{"status":"Error","error":"assistant is temporarily unavailable"}`,
		},
		{
			name:        "пользователь не найден",
			requestBody: validBody,
			userUID:     "user123",
			setupMock: func(m *MockService) {
				m.On("Send", mock.Anything, "user123", mock.AnythingOfType("models.ChatRequest")).
					Return(nil, fmt.Errorf("services.ChatService.Send: %w", models.ErrUserNotFound))
			},
			expectedStatus: http.StatusNotFound,
			expectedBody:   `{"status":"Error","error":"user not found"}`,
		},
		{
			name:        "ошибка сервиса",
			requestBody: validBody,
			userUID:     "user123",
			setupMock: func(m *MockService) {
				m.On("Send", mock.Anything, "user123", mock.AnythingOfType("models.ChatRequest")).
					Return(nil, errors.New("db error"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `{"status":"Error","error":"could not process message"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockService)
			tt.setupMock(mockService)

			handler := New(logger, mockService)

			var body []byte
			var err error
			if str, ok := tt.requestBody.(string); ok {
				body = []byte(str)
			} else {
				body, err = json.Marshal(tt.requestBody)
				require.NoError(t, err)
			}

			req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")

			ctx := context.WithValue(req.Context(), middlewarectx.UserUID, tt.userUID)
			ctx = context.WithValue(ctx, middleware.RequestIDKey, "req-id")
			req = req.WithContext(ctx)

			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.JSONEq(t, tt.expectedBody, w.Body.String())
			mockService.AssertExpectations(t)
		})
	}
}
