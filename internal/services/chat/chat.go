// Package services содержит бизнес-логику диалогов: проверку квоты,
// обращение к API модели и сохранение обменов репликами.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/fromelabs/chat-backend/internal/lib/sl"
	"github.com/fromelabs/chat-backend/internal/modelapi"
	"github.com/fromelabs/chat-backend/internal/models"
	"github.com/fromelabs/chat-backend/internal/plans"
)

// titleMaxRunes — максимальная длина заголовка нового диалога.
const titleMaxRunes = 50

// conversationsLimit — сколько последних диалогов отдается в списке.
const conversationsLimit = 50

// ChatRepository определяет методы для работы с пользователями и диалогами в хранилище.
type ChatRepository interface {
	// GetUserByUID возвращает пользователя по его UID.
	GetUserByUID(ctx context.Context, userUID string) (*models.User, error)
	// SaveExchange сохраняет обмен репликами и увеличивает счетчик использования.
	SaveExchange(ctx context.Context, userUID string, ex models.Exchange) (string, int, error)
	// GetConversation возвращает диалог пользователя по ID.
	GetConversation(ctx context.Context, userUID, conversationID string) (*models.Conversation, error)
	// ListConversations возвращает последние диалоги пользователя.
	ListConversations(ctx context.Context, userUID string, limit int) ([]*models.Conversation, error)
	// ListMessages возвращает сообщения диалога в порядке добавления.
	ListMessages(ctx context.Context, conversationID string) ([]*models.Message, error)
}

// ModelClient описывает клиента внешнего API языковой модели.
type ModelClient interface {
	// Complete отправляет историю диалога и возвращает ответ ассистента.
	Complete(ctx context.Context, turns []models.Turn) (*modelapi.Completion, error)
}

// Cache описывает методы для кэширования данных.
type Cache interface {
	// Get пытается получить значение из кеша по ключу.
	Get(key string, result any) (bool, error)
	// Set сохраняет значение в кеш с временем жизни.
	Set(key string, value any, expiration time.Duration) error
	// Invalidate удаляет значение из кеша по ключу.
	Invalidate(key string) error
}

// ChatReply — результат обработки сообщения пользователя.
type ChatReply struct {
	Response       string           `json:"response"`
	ConversationID string           `json:"conversation_id"`
	Usage          models.UsageInfo `json:"usage"`
}

// ConversationView — диалог вместе с его сообщениями.
type ConversationView struct {
	Conversation *models.Conversation `json:"conversation"`
	Messages     []*models.Message    `json:"messages"`
}

// ChatService реализует обработку сообщений с учетом квоты тарифного плана.
type ChatService struct {
	repo  ChatRepository
	model ModelClient
	cache Cache
	log   *slog.Logger
}

// NewChatService создает новый экземпляр ChatService.
func NewChatService(repo ChatRepository, model ModelClient, cache Cache, log *slog.Logger) *ChatService {
	return &ChatService{
		repo:  repo,
		model: model,
		cache: cache,
		log:   log,
	}
}

// Send обрабатывает сообщение пользователя: проверяет квоту, запрашивает
// ответ модели и сохраняет обмен одной транзакцией. При ошибке модели
// счетчики не меняются.
func (s *ChatService) Send(ctx context.Context, userUID string, req models.ChatRequest) (*ChatReply, error) {
	const op = "services.ChatService.Send"

	user, err := s.repo.GetUserByUID(ctx, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	limit := plans.Limit(user.Plan)
	if user.MessagesUsed >= limit {
		return nil, &models.QuotaExceededError{
			Used:  user.MessagesUsed,
			Limit: limit,
			Plan:  user.Plan,
		}
	}

	completion, err := s.model.Complete(ctx, req.Messages)
	if err != nil {
		s.log.Error("model api call failed", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, models.ErrUpstreamModel)
	}

	ex := models.Exchange{
		ConversationID:   req.ConversationID,
		Title:            truncateTitle(firstUserContent(req.Messages)),
		UserContent:      lastUserContent(req.Messages),
		AssistantContent: completion.Reply,
		InputTokens:      completion.InputTokens,
		OutputTokens:     completion.OutputTokens,
	}

	convID, used, err := s.repo.SaveExchange(ctx, userUID, ex)
	if err != nil {
		var quotaErr *models.QuotaExceededError
		if errors.As(err, &quotaErr) {
			return nil, quotaErr
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.cache.Invalidate(conversationsKey(userUID)); err != nil {
		s.log.Warn("failed to invalidate conversations cache", sl.Err(err))
	}

	s.log.Info("exchange saved",
		slog.String("conversation_id", convID),
		slog.Int("messages_used", used))

	return &ChatReply{
		Response:       completion.Reply,
		ConversationID: convID,
		Usage: models.UsageInfo{
			Used:  used,
			Limit: limit,
			Plan:  string(user.Plan),
		},
	}, nil
}

// Usage возвращает текущий снимок использования квоты пользователя.
func (s *ChatService) Usage(ctx context.Context, userUID string) (*models.UsageInfo, error) {
	const op = "services.ChatService.Usage"

	user, err := s.repo.GetUserByUID(ctx, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &models.UsageInfo{
		Used:  user.MessagesUsed,
		Limit: plans.Limit(user.Plan),
		Plan:  string(user.Plan),
	}, nil
}

// ListConversations возвращает последние диалоги пользователя,
// по возможности из кеша.
func (s *ChatService) ListConversations(ctx context.Context, userUID string) ([]*models.Conversation, error) {
	const op = "services.ChatService.ListConversations"

	cacheKey := conversationsKey(userUID)
	var cached []*models.Conversation
	found, err := s.cache.Get(cacheKey, &cached)
	if err != nil {
		s.log.Warn("failed to read conversations cache", sl.Err(err))
	}
	if found {
		return cached, nil
	}

	convs, err := s.repo.ListConversations(ctx, userUID, conversationsLimit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.cache.Set(cacheKey, convs, time.Hour); err != nil {
		s.log.Warn("failed to cache conversations", slog.String("key", cacheKey), sl.Err(err))
	}

	return convs, nil
}

// Conversation возвращает диалог пользователя вместе с сообщениями.
func (s *ChatService) Conversation(ctx context.Context, userUID, conversationID string) (*ConversationView, error) {
	const op = "services.ChatService.Conversation"

	conv, err := s.repo.GetConversation(ctx, userUID, conversationID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	msgs, err := s.repo.ListMessages(ctx, conv.ID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &ConversationView{Conversation: conv, Messages: msgs}, nil
}

// firstUserContent возвращает содержимое первой реплики пользователя.
// Из нее строится заголовок нового диалога.
func firstUserContent(turns []models.Turn) string {
	for _, t := range turns {
		if t.Role == models.RoleUser {
			return t.Content
		}
	}
	return ""
}

// lastUserContent возвращает содержимое последней реплики пользователя.
func lastUserContent(turns []models.Turn) string {
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == models.RoleUser {
			return turns[i].Content
		}
	}
	return ""
}

// truncateTitle обрезает заголовок до допустимой длины по рунам.
func truncateTitle(content string) string {
	if utf8.RuneCountInString(content) <= titleMaxRunes {
		return content
	}
	runes := []rune(content)
	return string(runes[:titleMaxRunes])
}

func conversationsKey(userUID string) string {
	return fmt.Sprintf("conversations:%s", userUID)
}
