// Package services содержит логику бизнес-уровня для работы с пользователями и аутентификацией.
package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/fromelabs/chat-backend/internal/lib/jwt"
	"github.com/fromelabs/chat-backend/internal/lib/password"
	"github.com/fromelabs/chat-backend/internal/lib/sl"
	"github.com/fromelabs/chat-backend/internal/models"
	"github.com/fromelabs/chat-backend/internal/plans"
)

// UserRepository описывает контракт для работы с пользователями в базе данных.
type UserRepository interface {
	// RegisterUser сохраняет нового пользователя и возвращает его UID.
	RegisterUser(ctx context.Context, user models.User) (string, error)

	// GetUserByEmail возвращает пользователя по email или ошибку, если не найден.
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	// UpdateLastLogin фиксирует время последнего входа.
	UpdateLastLogin(ctx context.Context, userUID string, at time.Time) error
}

// AuthService отвечает за регистрацию, авторизацию и валидацию JWT.
type AuthService struct {
	users    UserRepository
	jwtMaker jwt.Maker
	log      *slog.Logger
}

// NewAuthService создает новый экземпляр AuthService.
func NewAuthService(users UserRepository, jwtMaker jwt.Maker, log *slog.Logger) *AuthService {
	return &AuthService{
		users:    users,
		jwtMaker: jwtMaker,
		log:      log,
	}
}

// Register создает нового пользователя на бесплатном плане с нулевым
// счетчиком сообщений.
func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest) (string, error) {
	hashed, err := password.GetHash(req.Password)
	if err != nil {
		return "", err
	}
	user := models.User{
		Email:         req.Email,
		Name:          req.Name,
		PasswordHash:  hashed,
		Plan:          models.PlanFree,
		MessagesLimit: plans.Limit(models.PlanFree),
	}
	return s.users.RegisterUser(ctx, user)
}

// Login проверяет пароль пользователя, фиксирует время входа и генерирует JWT.
// Возвращает токен вместе со снимком пользователя.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (string, *models.User, error) {
	user, err := s.users.GetUserByEmail(ctx, req.Email)
	if err != nil {
		return "", nil, err
	}
	if err := password.CompareHash(user.PasswordHash, req.Password); err != nil {
		return "", nil, models.ErrInvalidCredentials
	}
	token, err := s.jwtMaker.GenerateToken(user.Email, user.UID)
	if err != nil {
		return "", nil, err
	}
	if err := s.users.UpdateLastLogin(ctx, user.UID, time.Now().UTC()); err != nil {
		s.log.Warn("failed to update last login", sl.Err(err))
	}
	return token, user, nil
}

// ValidateToken проверяет JWT и возвращает email и UID его владельца.
func (s *AuthService) ValidateToken(_ context.Context, token string) (email, userUID string, err error) {
	claims, err := s.jwtMaker.ParseToken(token)
	if err != nil {
		return "", "", err
	}
	return claims.Email, claims.UserUID, nil
}
