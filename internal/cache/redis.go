// Package cache реализует кэш на Redis: JSON-сериализация значений,
// получение, сохранение с TTL и инвалидация. Дополнительно кэш хранит
// идентификаторы обработанных webhook-событий для подавления повторных доставок.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fromelabs/chat-backend/internal/config"
)

// Cache инкапсулирует клиент Redis.
type Cache struct {
	Db *redis.Client
}

// InitServer подключается к Redis и проверяет соединение.
func InitServer(ctx context.Context, cfg config.RedisConnection) (*Cache, error) {
	const op = "cache.InitServer"
	db := redis.NewClient(&redis.Options{
		Addr:         cfg.AddressRedis,
		Password:     cfg.Password,
		DB:           cfg.DB,
		Username:     cfg.User,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.TimeoutRedis,
		WriteTimeout: cfg.TimeoutRedis,
	})

	if err := db.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Cache{Db: db}, nil
}

// Get пытается получить значение из кеша по ключу.
func (c *Cache) Get(key string, result any) (bool, error) {
	const op = "cache.Get"
	val, err := c.Db.Get(context.Background(), key).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	err = json.Unmarshal([]byte(val), result)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return true, nil
}

// Set сохраняет значение в кеш с временем жизни.
func (c *Cache) Set(key string, value any, expiration time.Duration) error {
	jsonData, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.Db.Set(context.Background(), key, jsonData, expiration).Err()
}

// Invalidate удаляет значение из кеша по ключу.
func (c *Cache) Invalidate(key string) error {
	return c.Db.Del(context.Background(), key).Err()
}

// MarkProcessed атомарно помечает событие обработанным.
// Возвращает false, если событие с таким идентификатором уже встречалось —
// платёжные провайдеры доставляют события как минимум один раз.
func (c *Cache) MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	const op = "cache.MarkProcessed"
	ok, err := c.Db.SetNX(ctx, eventKey(eventID), 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return ok, nil
}

// ClearProcessed снимает отметку об обработке события. Вызывается после
// сбоя применения, чтобы повторная доставка не была подавлена.
func (c *Cache) ClearProcessed(ctx context.Context, eventID string) error {
	const op = "cache.ClearProcessed"
	if err := c.Db.Del(ctx, eventKey(eventID)).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func eventKey(eventID string) string {
	return "webhook:event:" + eventID
}
