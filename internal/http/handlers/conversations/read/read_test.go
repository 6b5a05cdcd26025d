package read

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/fromelabs/chat-backend/internal/http/middlewarectx"
	"github.com/fromelabs/chat-backend/internal/models"
	chatservice "github.com/fromelabs/chat-backend/internal/services/chat"
)

// MockService реализует интерфейс read.Service
type MockService struct {
	mock.Mock
}

func (m *MockService) Conversation(ctx context.Context, userUID, conversationID string) (*chatservice.ConversationView, error) {
	args := m.Called(ctx, userUID, conversationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*chatservice.ConversationView), args.Error(1)
}

func TestReadHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	tests := []struct {
		name           string
		conversationID string
		userUID        string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:           "успешное чтение диалога",
			conversationID: "conv-1",
			userUID:        "user123",
			setupMock: func(m *MockService) {
				m.On("Conversation", mock.Anything, "user123", "conv-1").
					Return(&chatservice.ConversationView{
						Conversation: &models.Conversation{ID: "conv-1", Title: "hello"},
						Messages: []*models.Message{
							{Role: "user", Content: "hello"},
							{Role: "assistant", Content: "hi there"},
						},
					}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `{"status":"OK","data":{"conversation":{"id":"conv-1","title":"hello","created_at":"0001-01-01T00:00:00Z"},"messages":[{"role":"user","content":"hello"},{"role":"assistant","content":"hi there"}]}}`,
		},
		{
			name:           "диалог не найден",
			conversationID: "conv-x",
			userUID:        "user123",
			setupMock: func(m *MockService) {
				m.On("Conversation", mock.Anything, "user123", "conv-x").
					Return(nil, models.ErrConversationNotFound)
			},
			expectedStatus: http.StatusNotFound,
			expectedBody:   `{"status":"Error","error":"conversation not found"}`,
		},
		{
			name:           "отсутствует авторизация",
			conversationID: "conv-1",
			userUID:        "",
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   `{"status":"Error","error":"unauthorized"}`,
		},
		{
			name:           "ошибка сервиса",
			conversationID: "conv-1",
			userUID:        "user123",
			setupMock: func(m *MockService) {
				m.On("Conversation", mock.Anything, "user123", "conv-1").
					Return(nil, errors.New("db error"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `{"status":"Error","error":"could not read conversation"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockService)
			tt.setupMock(mockService)

			handler := New(logger, mockService)

			req := httptest.NewRequest(http.MethodGet, "/api/v1/conversations/"+tt.conversationID, nil)

			rctx := chi.NewRouteContext()
			rctx.URLParams.Add("id", tt.conversationID)
			ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
			ctx = context.WithValue(ctx, middlewarectx.UserUID, tt.userUID)
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
