// Package modelapi содержит клиент внешнего API языковой модели.
// Клиент принимает полную историю диалога и возвращает один ответ ассистента
// вместе с количеством входных и выходных токенов.
package modelapi

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/fromelabs/chat-backend/internal/config"
	"github.com/fromelabs/chat-backend/internal/models"
)

// Client — обертка над API модели с настройками из конфига.
type Client struct {
	api       *openai.Client
	model     string
	maxTokens int
	timeout   time.Duration
}

// Completion — результат одного обращения к модели.
type Completion struct {
	Reply        string
	InputTokens  int
	OutputTokens int
}

// New создает клиент модели. Пустой base URL означает адрес провайдера по умолчанию.
func New(cfg config.ModelAPI) *Client {
	apiCfg := openai.DefaultConfig(cfg.ModelAPIKey)
	if cfg.ModelBaseURL != "" {
		apiCfg.BaseURL = cfg.ModelBaseURL
	}
	return &Client{
		api:       openai.NewClientWithConfig(apiCfg),
		model:     cfg.ModelName,
		maxTokens: cfg.MaxTokens,
		timeout:   cfg.ModelTimeout,
	}
}

// Complete отправляет историю диалога модели и возвращает ответ ассистента.
func (c *Client) Complete(ctx context.Context, turns []models.Turn) (*Completion, error) {
	const op = "modelapi.Complete"

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(turns))
	for _, turn := range turns {
		role := openai.ChatMessageRoleUser
		if turn.Role == models.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    role,
			Content: turn.Content,
		})
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages:  messages,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%s: empty response from model", op)
	}

	return &Completion{
		Reply:        resp.Choices[0].Message.Content,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}, nil
}
