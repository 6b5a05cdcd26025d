package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/fromelabs/chat-backend/internal/models"
)

// SaveExchange сохраняет обмен репликами в одной транзакции:
// создаёт или переиспользует диалог, добавляет оба сообщения и увеличивает
// счетчик использованных сообщений защищённым условным обновлением
// (messages_used < messages_limit). Если условие не выполняется, транзакция
// откатывается и возвращается QuotaExceededError — частичных записей не бывает.
func (s *Storage) SaveExchange(ctx context.Context, userUID string, ex models.Exchange) (string, int, error) {
	const op = "storage.SaveExchange"

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return "", 0, fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = tx.Rollback() }()

	conversationID := ex.ConversationID
	if conversationID != "" {
		var id string
		err := tx.QueryRowContext(ctx,
			`SELECT id FROM conversations WHERE id = $1 AND user_uid = $2`,
			conversationID, userUID).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			// Переданный диалог не существует или чужой: заводим новый,
			// как и при пустом идентификаторе.
			conversationID = ""
		} else if err != nil {
			return "", 0, fmt.Errorf("%s: %w", op, err)
		}
	}
	if conversationID == "" {
		conversationID = uuid.NewString()
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO conversations (id, user_uid, title) VALUES ($1, $2, $3)`,
			conversationID, userUID, ex.Title); err != nil {
			return "", 0, fmt.Errorf("%s: %w", op, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO messages (conversation_id, role, content, tokens_used)
		 VALUES ($1, $2, $3, $4)`,
		conversationID, models.RoleUser, ex.UserContent, ex.InputTokens); err != nil {
		return "", 0, fmt.Errorf("%s: %w", op, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO messages (conversation_id, role, content, tokens_used)
		 VALUES ($1, $2, $3, $4)`,
		conversationID, models.RoleAssistant, ex.AssistantContent, ex.OutputTokens); err != nil {
		return "", 0, fmt.Errorf("%s: %w", op, err)
	}

	var used int
	err = tx.QueryRowContext(ctx,
		`UPDATE users
		 SET messages_used = messages_used + 1,
		     tokens_used = tokens_used + $2
		 WHERE uid = $1 AND messages_used < messages_limit
		 RETURNING messages_used`,
		userUID, ex.InputTokens+ex.OutputTokens).Scan(&used)
	if errors.Is(err, sql.ErrNoRows) {
		// Лимит выбрали между предварительной проверкой и записью.
		var quotaErr *models.QuotaExceededError
		quotaErr, err = s.quotaSnapshot(ctx, tx, userUID)
		if err != nil {
			return "", 0, fmt.Errorf("%s: %w", op, err)
		}
		return "", 0, fmt.Errorf("%s: %w", op, quotaErr)
	}
	if err != nil {
		return "", 0, fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return "", 0, fmt.Errorf("%s: %w", op, err)
	}
	return conversationID, used, nil
}

func (s *Storage) quotaSnapshot(ctx context.Context, tx *sql.Tx, userUID string) (*models.QuotaExceededError, error) {
	var used, limit int
	var plan models.Plan
	err := tx.QueryRowContext(ctx,
		`SELECT messages_used, messages_limit, plan FROM users WHERE uid = $1`,
		userUID).Scan(&used, &limit, &plan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &models.QuotaExceededError{Used: used, Limit: limit, Plan: plan}, nil
}
