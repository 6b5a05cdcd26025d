// Package services содержит бизнес-логику оформления подписок:
// создание клиента у провайдера, сессий оплаты и портала управления.
package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fromelabs/chat-backend/internal/models"
	"github.com/fromelabs/chat-backend/internal/plans"
)

// PaymentProvider описывает клиента платёжного провайдера.
type PaymentProvider interface {
	// CreateCustomer регистрирует клиента у провайдера и возвращает его ID.
	CreateCustomer(ctx context.Context, email, userUID string) (string, error)
	// CreateCheckoutSession создает сессию оплаты подписки и возвращает URL.
	CreateCheckoutSession(ctx context.Context, customerID, userUID string, plan models.Plan) (string, error)
	// CreatePortalSession создает сессию портала управления подпиской.
	CreatePortalSession(ctx context.Context, customerID string) (string, error)
}

// BillingRepository определяет методы для работы с привязкой пользователей
// к платёжному провайдеру.
type BillingRepository interface {
	// GetUserByUID возвращает пользователя по его UID.
	GetUserByUID(ctx context.Context, userUID string) (*models.User, error)
	// SetStripeCustomerID сохраняет ID клиента провайдера у пользователя.
	SetStripeCustomerID(ctx context.Context, userUID, customerID string) error
}

// BillingService оформляет подписки через платёжного провайдера.
type BillingService struct {
	repo     BillingRepository
	provider PaymentProvider
	log      *slog.Logger
}

// NewBillingService создает новый экземпляр BillingService.
func NewBillingService(repo BillingRepository, provider PaymentProvider, log *slog.Logger) *BillingService {
	return &BillingService{
		repo:     repo,
		provider: provider,
		log:      log,
	}
}

// Checkout создает сессию оплаты для перехода на платный план.
// Клиент у провайдера создается один раз и переиспользуется.
func (s *BillingService) Checkout(ctx context.Context, userUID string, plan models.Plan) (string, error) {
	const op = "services.BillingService.Checkout"

	if !plans.Paid(plan) {
		return "", fmt.Errorf("%s: plan %s is not purchasable", op, plan)
	}

	user, err := s.repo.GetUserByUID(ctx, userUID)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	customerID := user.StripeCustomerID
	if customerID == "" {
		customerID, err = s.provider.CreateCustomer(ctx, user.Email, user.UID)
		if err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
		if err := s.repo.SetStripeCustomerID(ctx, user.UID, customerID); err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
		s.log.Info("billing customer created",
			slog.String("user_uid", user.UID),
			slog.String("customer_id", customerID))
	}

	url, err := s.provider.CreateCheckoutSession(ctx, customerID, user.UID, plan)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return url, nil
}

// Portal создает сессию портала управления подпиской. Доступен только
// пользователям, у которых уже есть клиент у провайдера.
func (s *BillingService) Portal(ctx context.Context, userUID string) (string, error) {
	const op = "services.BillingService.Portal"

	user, err := s.repo.GetUserByUID(ctx, userUID)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if user.StripeCustomerID == "" {
		return "", models.ErrNoCustomer
	}

	url, err := s.provider.CreatePortalSession(ctx, user.StripeCustomerID)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return url, nil
}
