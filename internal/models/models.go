// Package models содержит доменные структуры приложения: пользователь с его
// тарифным планом и счетчиками использования, диалоги и сообщения,
// а также вспомогательные типы для приёма данных из JSON-запросов.
package models

import (
	"errors"
	"fmt"
	"time"
)

// Plan — тарифный план пользователя, определяющий месячную квоту сообщений.
type Plan string

// Поддерживаемые тарифные планы.
const (
	PlanFree       Plan = "FREE"
	PlanPro        Plan = "PRO"
	PlanPremium    Plan = "PREMIUM"
	PlanEnterprise Plan = "ENTERPRISE"
)

// SubscriptionStatus — статус подписки пользователя у платёжного провайдера.
type SubscriptionStatus string

// Возможные статусы подписки. Пустая строка означает, что пользователь
// никогда не оформлял подписку.
const (
	StatusNone     SubscriptionStatus = ""
	StatusActive   SubscriptionStatus = "ACTIVE"
	StatusInactive SubscriptionStatus = "INACTIVE"
	StatusCanceled SubscriptionStatus = "CANCELED"
	StatusPastDue  SubscriptionStatus = "PAST_DUE"
)

// User представляет пользователя вместе с его правами доступа:
// план, лимит сообщений, счетчики использования и ссылки на объекты
// платёжного провайдера.
type User struct {
	UID                  string
	Email                string
	Name                 string
	PasswordHash         string
	Plan                 Plan
	MessagesUsed         int
	MessagesLimit        int
	TokensUsed           int64
	StripeCustomerID     string
	StripeSubscriptionID string
	SubscriptionStatus   SubscriptionStatus
	LastLoginAt          *time.Time
	CreatedAt            time.Time
}

// Conversation — диалог пользователя с ассистентом.
// Заголовок формируется из первого сообщения пользователя и далее не меняется.
type Conversation struct {
	ID        string    `json:"id"`
	UserUID   string    `json:"-"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// Роли сообщений внутри диалога.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message — одна реплика диалога. Записи только добавляются,
// существующие сообщения никогда не изменяются и не удаляются.
type Message struct {
	ConversationID string    `json:"-"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	TokensUsed     int       `json:"-"`
	CreatedAt      time.Time `json:"-"`
}

// Turn — одна реплика входящей истории диалога из JSON-запроса.
type Turn struct {
	Role    string `json:"role" validate:"required,oneof=user assistant"`
	Content string `json:"content" validate:"required"`
}

// Exchange описывает один принятый обмен репликами: сообщение пользователя
// и ответ ассистента с числом потраченных токенов.
type Exchange struct {
	ConversationID   string // пустая строка — создать новый диалог
	Title            string // заголовок для нового диалога
	UserContent      string
	AssistantContent string
	InputTokens      int
	OutputTokens     int
}

// UsageInfo — снимок использования квоты, возвращаемый клиенту.
type UsageInfo struct {
	Used  int    `json:"used"`
	Limit int    `json:"limit"`
	Plan  string `json:"plan"`
}

// ChatRequest используется для приёма запроса на отправку сообщения.
type ChatRequest struct {
	Messages       []Turn `json:"messages" validate:"required,min=1,dive"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// RegisterRequest используется для приёма данных регистрации.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name" validate:"required"`
	Password string `json:"password" validate:"required,min=8"`
}

// LoginRequest используется для приёма данных входа.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// CheckoutRequest используется для приёма запроса на оформление подписки.
type CheckoutRequest struct {
	Plan string `json:"plan" validate:"required,oneof=PRO PREMIUM ENTERPRISE"`
}

// NotificationEvent — сообщение для очереди уведомлений: письмо пользователю
// об изменении состояния его подписки.
type NotificationEvent struct {
	Kind  string `json:"kind"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Plan  string `json:"plan"`
}

// Виды уведомлений, публикуемых в очередь.
const (
	NotificationPaymentFailed        = "payment_failed"
	NotificationSubscriptionCanceled = "subscription_canceled"
)

// Ошибки доменного уровня.
var (
	// ErrUserNotFound возвращается, когда пользователь не найден в хранилище.
	ErrUserNotFound = errors.New("user not found")
	// ErrConversationNotFound возвращается, когда диалог не найден
	// или принадлежит другому пользователю.
	ErrConversationNotFound = errors.New("conversation not found")
	// ErrInvalidCredentials возвращается при неверной паре email/пароль.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrEmailTaken возвращается при попытке регистрации с занятым email.
	ErrEmailTaken = errors.New("email already registered")
	// ErrUpstreamModel возвращается при ошибке внешнего API модели.
	ErrUpstreamModel = errors.New("model api request failed")
	// ErrNoCustomer возвращается, когда у пользователя нет привязанного
	// клиента платёжного провайдера.
	ErrNoCustomer = errors.New("no billing customer for user")
)

// QuotaExceededError возвращается при исчерпании месячной квоты сообщений.
// Несёт числовые значения для отображения клиенту.
type QuotaExceededError struct {
	Used  int
	Limit int
	Plan  Plan
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("message limit of %d reached for plan %s", e.Limit, e.Plan)
}

// Usage возвращает снимок использования на момент отказа.
func (e *QuotaExceededError) Usage() UsageInfo {
	return UsageInfo{Used: e.Used, Limit: e.Limit, Plan: string(e.Plan)}
}
