package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fromelabs/chat-backend/internal/models"
)

// GetConversation возвращает диалог пользователя по идентификатору.
// Диалоги других пользователей не видны.
func (s *Storage) GetConversation(ctx context.Context, userUID, conversationID string) (*models.Conversation, error) {
	const op = "storage.GetConversation"

	c := &models.Conversation{}
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, user_uid, title, created_at
		 FROM conversations
		 WHERE id = $1 AND user_uid = $2`,
		conversationID, userUID).Scan(&c.ID, &c.UserUID, &c.Title, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, models.ErrConversationNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return c, nil
}

// ListConversations возвращает диалоги пользователя, новые первыми.
func (s *Storage) ListConversations(ctx context.Context, userUID string, limit int) ([]*models.Conversation, error) {
	const op = "storage.ListConversations"

	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, user_uid, title, created_at
		 FROM conversations
		 WHERE user_uid = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		userUID, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = rows.Close() }()

	var result []*models.Conversation
	for rows.Next() {
		c := &models.Conversation{}
		if err := rows.Scan(&c.ID, &c.UserUID, &c.Title, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// ListMessages возвращает сообщения диалога в порядке создания.
func (s *Storage) ListMessages(ctx context.Context, conversationID string) ([]*models.Message, error) {
	const op = "storage.ListMessages"

	rows, err := s.DB.QueryContext(ctx,
		`SELECT conversation_id, role, content, tokens_used, created_at
		 FROM messages
		 WHERE conversation_id = $1
		 ORDER BY id ASC`,
		conversationID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = rows.Close() }()

	var result []*models.Message
	for rows.Next() {
		m := &models.Message{}
		if err := rows.Scan(&m.ConversationID, &m.Role, &m.Content, &m.TokensUsed, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
