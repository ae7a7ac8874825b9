package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sanosuguru/go-train-ticket-booking/internal/domain/inventory"
)

var (
	ErrCacheMiss = errors.New("キャッシュが見つかりません")
)

// AvailabilityCache はバケットの残席数キャッシュを管理する
// 一覧表示用のスナップショットであり、予約可否の判断には使用しない
type AvailabilityCache struct {
	client *redis.Client
}

// NewAvailabilityCache は新しいAvailabilityCacheインスタンスを作成する
func NewAvailabilityCache(client *redis.Client) *AvailabilityCache {
	return &AvailabilityCache{client: client}
}

// Get はバケットの残席数をキャッシュから取得する
func (c *AvailabilityCache) Get(ctx context.Context, key inventory.BucketKey) (int, error) {
	val, err := c.client.Get(ctx, c.cacheKey(key)).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, ErrCacheMiss
		}
		return 0, fmt.Errorf("キャッシュ取得に失敗: %w", err)
	}
	return val, nil
}

// Set はバケットの残席数をキャッシュに保存する
func (c *AvailabilityCache) Set(ctx context.Context, key inventory.BucketKey, available int, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.cacheKey(key), available, ttl).Err(); err != nil {
		return fmt.Errorf("キャッシュ保存に失敗: %w", err)
	}
	return nil
}

// Invalidate はバケットのキャッシュを無効化する
func (c *AvailabilityCache) Invalidate(ctx context.Context, key inventory.BucketKey) error {
	if err := c.client.Del(ctx, c.cacheKey(key)).Err(); err != nil {
		return fmt.Errorf("キャッシュ無効化に失敗: %w", err)
	}
	return nil
}

func (c *AvailabilityCache) cacheKey(key inventory.BucketKey) string {
	return fmt.Sprintf("availability:%s:%s:%s", key.TrainID, key.Class, key.Quota)
}
