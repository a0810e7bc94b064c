package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/SergeiKhy/shortlink/internal/models"
)

// CacheRepository кэш постоянных ссылок в Redis для горячего пути редиректа.
// Кэшируется только сама запись ссылки, история кликов не попадает в Redis.
type CacheRepository interface {
	Get(ctx context.Context, shortID string) (*models.ShortURL, error)
	Set(ctx context.Context, shortID string, url *models.ShortURL, ttl time.Duration) error
	Delete(ctx context.Context, shortID string) error
}

type cacheRepository struct {
	redis *RedisDB
}

func NewCacheRepository(redis *RedisDB) CacheRepository {
	return &cacheRepository{redis: redis}
}

func (r *cacheRepository) Get(ctx context.Context, shortID string) (*models.ShortURL, error) {
	data, err := r.redis.Client.Get(ctx, r.key(shortID)).Bytes()
	if err != nil {
		return nil, err
	}

	var url models.ShortURL
	if err := json.Unmarshal(data, &url); err != nil {
		return nil, fmt.Errorf("failed to unmarshal url: %w", err)
	}

	return &url, nil
}

func (r *cacheRepository) Set(ctx context.Context, shortID string, url *models.ShortURL, ttl time.Duration) error {
	stripped := *url
	stripped.Clicks = nil

	data, err := json.Marshal(&stripped)
	if err != nil {
		return fmt.Errorf("failed to marshal url: %w", err)
	}

	return r.redis.Client.Set(ctx, r.key(shortID), data, ttl).Err()
}

func (r *cacheRepository) Delete(ctx context.Context, shortID string) error {
	return r.redis.Client.Del(ctx, r.key(shortID)).Err()
}

func (r *cacheRepository) key(shortID string) string {
	return "url:" + shortID
}
