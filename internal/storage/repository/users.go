package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/fromelabs/chat-backend/internal/models"
)

const userColumns = `uid, email, name, password_hash, plan, messages_used, messages_limit,
			      tokens_used, stripe_customer_id, stripe_subscription_id,
			      subscription_status, last_login_at, created_at`

func scanUser(row *sql.Row) (*models.User, error) {
	u := &models.User{}
	var customerID, subscriptionID, status sql.NullString
	var lastLogin sql.NullTime
	if err := row.Scan(&u.UID, &u.Email, &u.Name, &u.PasswordHash, &u.Plan,
		&u.MessagesUsed, &u.MessagesLimit, &u.TokensUsed,
		&customerID, &subscriptionID, &status, &lastLogin, &u.CreatedAt); err != nil {
		return nil, err
	}
	u.StripeCustomerID = customerID.String
	u.StripeSubscriptionID = subscriptionID.String
	u.SubscriptionStatus = models.SubscriptionStatus(status.String)
	if lastLogin.Valid {
		u.LastLoginAt = &lastLogin.Time
	}
	return u, nil
}

// RegisterUser сохраняет нового пользователя и возвращает его UID.
// План и лимит всегда задаются парой, чтобы они не могли разойтись.
func (s *Storage) RegisterUser(ctx context.Context, user models.User) (string, error) {
	const op = "storage.RegisterUser"

	var newID string
	query := `INSERT INTO users (email, name, password_hash, plan, messages_used, messages_limit)
			  VALUES ($1, $2, $3, $4, $5, $6)
			  RETURNING uid;`
	if err := s.DB.QueryRowContext(ctx, query,
		user.Email, user.Name, user.PasswordHash, user.Plan,
		user.MessagesUsed, user.MessagesLimit).Scan(&newID); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return "", fmt.Errorf("%s: %w", op, models.ErrEmailTaken)
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return newID, nil
}

// GetUserByEmail возвращает пользователя по email.
func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	const op = "storage.GetUserByEmail"

	query := `SELECT ` + userColumns + `
			  FROM users
			  WHERE email = $1`
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, models.ErrUserNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// GetUserByUID возвращает пользователя по его UID.
func (s *Storage) GetUserByUID(ctx context.Context, userUID string) (*models.User, error) {
	const op = "storage.GetUserByUID"

	query := `SELECT ` + userColumns + `
			  FROM users
			  WHERE uid = $1`
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, userUID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, models.ErrUserNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// GetUserByStripeCustomerID возвращает пользователя по идентификатору клиента
// платёжного провайдера.
func (s *Storage) GetUserByStripeCustomerID(ctx context.Context, customerID string) (*models.User, error) {
	const op = "storage.GetUserByStripeCustomerID"

	query := `SELECT ` + userColumns + `
			  FROM users
			  WHERE stripe_customer_id = $1`
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, customerID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, models.ErrUserNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// UpdateLastLogin фиксирует время последнего входа пользователя.
func (s *Storage) UpdateLastLogin(ctx context.Context, userUID string, at time.Time) error {
	const op = "storage.UpdateLastLogin"

	_, err := s.DB.ExecContext(ctx, `UPDATE users SET last_login_at = $2 WHERE uid = $1`, userUID, at)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// SetStripeCustomerID привязывает к пользователю клиента платёжного провайдера.
// Запись выполняется один раз при первом оформлении подписки.
func (s *Storage) SetStripeCustomerID(ctx context.Context, userUID, customerID string) error {
	const op = "storage.SetStripeCustomerID"

	_, err := s.DB.ExecContext(ctx,
		`UPDATE users SET stripe_customer_id = $2 WHERE uid = $1`, userUID, customerID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ApplyCheckout переводит пользователя на оплаченный план: план и лимит
// меняются одним оператором, счетчик сообщений обнуляется, статус становится ACTIVE.
func (s *Storage) ApplyCheckout(ctx context.Context, userUID string, plan models.Plan, limit int, subscriptionID string) error {
	const op = "storage.ApplyCheckout"

	res, err := s.DB.ExecContext(ctx,
		`UPDATE users
		 SET plan = $2, messages_limit = $3, messages_used = 0,
		     stripe_subscription_id = $4, subscription_status = $5
		 WHERE uid = $1`,
		userUID, plan, limit, subscriptionID, models.StatusActive)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", op, models.ErrUserNotFound)
	}
	return nil
}

// SetSubscriptionStatus меняет только статус подписки пользователя.
func (s *Storage) SetSubscriptionStatus(ctx context.Context, userUID string, status models.SubscriptionStatus) error {
	const op = "storage.SetSubscriptionStatus"

	res, err := s.DB.ExecContext(ctx,
		`UPDATE users SET subscription_status = $2 WHERE uid = $1`, userUID, status)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", op, models.ErrUserNotFound)
	}
	return nil
}

// ResetUsage обнуляет счетчик сообщений и выставляет статус подписки.
// Используется при успешном платеже за новый расчетный период.
func (s *Storage) ResetUsage(ctx context.Context, userUID string, status models.SubscriptionStatus) error {
	const op = "storage.ResetUsage"

	res, err := s.DB.ExecContext(ctx,
		`UPDATE users SET messages_used = 0, subscription_status = $2 WHERE uid = $1`,
		userUID, status)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", op, models.ErrUserNotFound)
	}
	return nil
}

// DowngradeToFree возвращает пользователя на бесплатный план после отмены
// подписки. Счетчик использованных сообщений при этом не трогается.
func (s *Storage) DowngradeToFree(ctx context.Context, userUID string, limit int) error {
	const op = "storage.DowngradeToFree"

	res, err := s.DB.ExecContext(ctx,
		`UPDATE users
		 SET plan = $2, messages_limit = $3, subscription_status = $4
		 WHERE uid = $1`,
		userUID, models.PlanFree, limit, models.StatusCanceled)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", op, models.ErrUserNotFound)
	}
	return nil
}
