package middlewarectx

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type AuthServiceMock struct {
	mock.Mock
}

func (m *AuthServiceMock) ValidateToken(ctx context.Context, token string) (string, string, error) {
	args := m.Called(ctx, token)
	return args.String(0), args.String(1), args.Error(2)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func TestJWTMiddleware_ValidToken(t *testing.T) {
	authService := new(AuthServiceMock)
	authService.On("ValidateToken", mock.Anything, "good-token").
		Return("test@example.com", "uid-1", nil)

	var gotEmail, gotUID string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotEmail, _ = r.Context().Value(User).(string)
		gotUID, _ = r.Context().Value(UserUID).(string)
		w.WriteHeader(http.StatusOK)
	})

	handler := JWTMiddleware(authService, newNoopLogger())(next)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "test@example.com", gotEmail)
	assert.Equal(t, "uid-1", gotUID)
}

func TestJWTMiddleware_MissingHeader(t *testing.T) {
	authService := new(AuthServiceMock)

	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	handler := JWTMiddleware(authService, newNoopLogger())(next)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"status":"Error","error":"missing or invalid authorization header"}`, w.Body.String())
	authService.AssertNotCalled(t, "ValidateToken", mock.Anything, mock.Anything)
}

func TestJWTMiddleware_InvalidToken(t *testing.T) {
	authService := new(AuthServiceMock)
	authService.On("ValidateToken", mock.Anything, "bad-token").
		Return("", "", errors.New("token is expired"))

	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	handler := JWTMiddleware(authService, newNoopLogger())(next)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer bad-token")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"status":"Error","error":"invalid or expired token"}`, w.Body.String())
}
