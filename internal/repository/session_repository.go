package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"novel-engine/internal/model"
	"novel-engine/pkg/engine"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// SessionRepository хранит снимки игровых сессий (позиция игрока в новелле).
// Снимок — это history + variables движка; сам контент новеллы живёт в Postgres.
type SessionRepository interface {
	Save(ctx context.Context, userID, novelID uuid.UUID, snap *engine.Snapshot) error
	Get(ctx context.Context, userID, novelID uuid.UUID) (*engine.Snapshot, error)
	Delete(ctx context.Context, userID, novelID uuid.UUID) error
}

var _ SessionRepository = (*redisSessionRepository)(nil)

type redisSessionRepository struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewRedisSessionRepository(client *redis.Client, ttl time.Duration, logger *zap.Logger) SessionRepository {
	return &redisSessionRepository{
		client: client,
		ttl:    ttl,
		logger: logger.Named("RedisSessionRepo"),
	}
}

func sessionKey(userID, novelID uuid.UUID) string {
	return fmt.Sprintf("play_session:%s:%s", userID, novelID)
}

// Save сохраняет снимок сессии с продлением TTL.
func (r *redisSessionRepository) Save(ctx context.Context, userID, novelID uuid.UUID, snap *engine.Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("ошибка сериализации снимка сессии: %w", err)
	}

	key := sessionKey(userID, novelID)
	if err := r.client.Set(ctx, key, raw, r.ttl).Err(); err != nil {
		r.logger.Error("Failed to save play session", zap.Error(err), zap.String("key", key))
		return fmt.Errorf("ошибка сохранения сессии в redis: %w", err)
	}
	r.logger.Debug("Play session saved", zap.String("key", key), zap.Duration("ttl", r.ttl))
	return nil
}

// Get возвращает снимок сессии или model.ErrNotFound, если сессии нет.
func (r *redisSessionRepository) Get(ctx context.Context, userID, novelID uuid.UUID) (*engine.Snapshot, error) {
	key := sessionKey(userID, novelID)
	raw, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			r.logger.Debug("Play session not found", zap.String("key", key))
			return nil, model.ErrNotFound
		}
		r.logger.Error("Failed to get play session", zap.Error(err), zap.String("key", key))
		return nil, fmt.Errorf("ошибка чтения сессии из redis: %w", err)
	}

	var snap engine.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		r.logger.Error("Failed to decode play session", zap.Error(err), zap.String("key", key))
		return nil, fmt.Errorf("ошибка декодирования снимка сессии: %w", err)
	}
	return &snap, nil
}

// Delete удаляет сессию. Отсутствие ключа не считается ошибкой.
func (r *redisSessionRepository) Delete(ctx context.Context, userID, novelID uuid.UUID) error {
	key := sessionKey(userID, novelID)
	if err := r.client.Del(ctx, key).Err(); err != nil {
		r.logger.Error("Failed to delete play session", zap.Error(err), zap.String("key", key))
		return fmt.Errorf("ошибка удаления сессии из redis: %w", err)
	}
	return nil
}
