// Package services содержит бизнес-логику синхронизации прав доступа:
// применение событий платёжного провайдера к плану и статусу пользователя.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fromelabs/chat-backend/internal/lib/sl"
	"github.com/fromelabs/chat-backend/internal/models"
	"github.com/fromelabs/chat-backend/internal/plans"
)

// Виды событий платёжного провайдера, которые меняют права доступа.
const (
	KindCheckoutCompleted   = "checkout_completed"
	KindSubscriptionActive  = "subscription_active"
	KindSubscriptionStopped = "subscription_stopped"
	KindSubscriptionDeleted = "subscription_deleted"
	KindPaymentSucceeded    = "payment_succeeded"
	KindPaymentFailed       = "payment_failed"
)

// dedupTTL — как долго помнить обработанные события для защиты от повторов.
const dedupTTL = 24 * time.Hour

// Event — нормализованное событие платёжного провайдера. UserUID заполняется
// только для checkout-событий, остальные находят пользователя по CustomerID.
type Event struct {
	ID             string
	Kind           string
	UserUID        string
	Plan           models.Plan
	CustomerID     string
	SubscriptionID string
}

// transition описывает действие над пользователем для одного вида события.
// Поля взаимоисключающие: либо применение оплаченного плана, либо сброс
// счетчика, либо возврат на бесплатный план, либо только смена статуса.
type transition struct {
	status     models.SubscriptionStatus
	applyPlan  bool
	resetUsage bool
	forceFree  bool
	notify     string
}

// transitions — полная таблица переходов по видам событий.
// Событие, которого нет в таблице, подтверждается без изменений.
var transitions = map[string]transition{
	KindCheckoutCompleted:   {status: models.StatusActive, applyPlan: true},
	KindSubscriptionActive:  {status: models.StatusActive},
	KindSubscriptionStopped: {status: models.StatusInactive},
	KindSubscriptionDeleted: {status: models.StatusCanceled, forceFree: true, notify: models.NotificationSubscriptionCanceled},
	KindPaymentSucceeded:    {status: models.StatusActive, resetUsage: true},
	KindPaymentFailed:       {status: models.StatusPastDue, notify: models.NotificationPaymentFailed},
}

// EntitlementRepository определяет методы для изменения прав доступа в хранилище.
type EntitlementRepository interface {
	// GetUserByUID возвращает пользователя по его UID.
	GetUserByUID(ctx context.Context, userUID string) (*models.User, error)
	// GetUserByStripeCustomerID возвращает пользователя по ID клиента провайдера.
	GetUserByStripeCustomerID(ctx context.Context, customerID string) (*models.User, error)
	// ApplyCheckout назначает оплаченный план, обнуляет счетчик и активирует подписку.
	ApplyCheckout(ctx context.Context, userUID string, plan models.Plan, limit int, subscriptionID string) error
	// SetSubscriptionStatus меняет только статус подписки.
	SetSubscriptionStatus(ctx context.Context, userUID string, status models.SubscriptionStatus) error
	// ResetUsage обнуляет счетчик сообщений и ставит статус.
	ResetUsage(ctx context.Context, userUID string, status models.SubscriptionStatus) error
	// DowngradeToFree возвращает пользователя на бесплатный план, не трогая счетчик.
	DowngradeToFree(ctx context.Context, userUID string, limit int) error
}

// Deduper отмечает события как обработанные для подавления повторов.
type Deduper interface {
	// MarkProcessed возвращает true, если событие встречено впервые.
	MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error)
	// ClearProcessed снимает отметку, чтобы повторная доставка обработалась.
	ClearProcessed(ctx context.Context, eventID string) error
}

// Notifier публикует уведомления для воркера-отправителя.
type Notifier interface {
	Publish(message any) error
}

// EntitlementService применяет события провайдера к пользователям.
type EntitlementService struct {
	repo     EntitlementRepository
	dedup    Deduper
	notifier Notifier
	log      *slog.Logger
}

// NewEntitlementService создает новый экземпляр EntitlementService.
func NewEntitlementService(repo EntitlementRepository, dedup Deduper, notifier Notifier, log *slog.Logger) *EntitlementService {
	return &EntitlementService{
		repo:     repo,
		dedup:    dedup,
		notifier: notifier,
		log:      log,
	}
}

// Apply обрабатывает одно событие провайдера. Повторы, неизвестные виды
// событий и события про незнакомых пользователей подтверждаются без
// изменений, ошибкой завершаются только сбои хранилища.
func (s *EntitlementService) Apply(ctx context.Context, event Event) error {
	const op = "services.EntitlementService.Apply"

	fresh, err := s.dedup.MarkProcessed(ctx, event.ID, dedupTTL)
	if err != nil {
		s.log.Warn("dedup store unavailable, processing anyway",
			slog.String("event_id", event.ID), sl.Err(err))
	} else if !fresh {
		s.log.Info("duplicate event suppressed", slog.String("event_id", event.ID))
		return nil
	}

	tr, ok := transitions[event.Kind]
	if !ok {
		s.log.Info("event kind ignored", slog.String("kind", event.Kind))
		return nil
	}

	user, err := s.resolveUser(ctx, event)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			s.log.Warn("event for unknown user acknowledged",
				slog.String("event_id", event.ID),
				slog.String("customer_id", event.CustomerID))
			return nil
		}
		s.clearMark(ctx, event.ID)
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.applyTransition(ctx, user, event, tr); err != nil {
		s.clearMark(ctx, event.ID)
		return fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("entitlement updated",
		slog.String("user_uid", user.UID),
		slog.String("kind", event.Kind),
		slog.String("status", string(tr.status)))

	if tr.notify != "" {
		s.publishNotification(user, tr.notify)
	}
	return nil
}

// clearMark снимает отметку об обработке после сбоя, иначе повторная
// доставка события будет подавлена как дубликат и обновление потеряется.
func (s *EntitlementService) clearMark(ctx context.Context, eventID string) {
	if err := s.dedup.ClearProcessed(ctx, eventID); err != nil {
		s.log.Error("failed to clear dedup mark, retry will be suppressed",
			slog.String("event_id", eventID), sl.Err(err))
	}
}

func (s *EntitlementService) resolveUser(ctx context.Context, event Event) (*models.User, error) {
	if event.UserUID != "" {
		return s.repo.GetUserByUID(ctx, event.UserUID)
	}
	return s.repo.GetUserByStripeCustomerID(ctx, event.CustomerID)
}

func (s *EntitlementService) applyTransition(ctx context.Context, user *models.User, event Event, tr transition) error {
	switch {
	case tr.applyPlan:
		if !plans.Valid(event.Plan) {
			return fmt.Errorf("unknown plan %q in event %s", event.Plan, event.ID)
		}
		return s.repo.ApplyCheckout(ctx, user.UID, event.Plan, plans.Limit(event.Plan), event.SubscriptionID)
	case tr.resetUsage:
		return s.repo.ResetUsage(ctx, user.UID, tr.status)
	case tr.forceFree:
		return s.repo.DowngradeToFree(ctx, user.UID, plans.Limit(models.PlanFree))
	default:
		return s.repo.SetSubscriptionStatus(ctx, user.UID, tr.status)
	}
}

// publishNotification отправляет письмо через очередь, не блокируя обработку
// события: сбой публикации только логируется.
func (s *EntitlementService) publishNotification(user *models.User, kind string) {
	event := models.NotificationEvent{
		Kind:  kind,
		Email: user.Email,
		Name:  user.Name,
		Plan:  string(user.Plan),
	}
	if err := s.notifier.Publish(event); err != nil {
		s.log.Error("failed to publish notification", sl.Err(err))
	}
}
