package cache

import (
	"context"
	"encoding/json"
	"time"

	redis "github.com/redis/go-redis/v9"

	"banhngot/backend/internal/domain"
)

type RedisRecipeCache struct {
	client *redis.Client
}

func NewRedisRecipeCache(addr string, password string, db int) *RedisRecipeCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisRecipeCache{client: client}
}

func (c *RedisRecipeCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisRecipeCache) Close() error {
	return c.client.Close()
}

func (c *RedisRecipeCache) Get(ctx context.Context, key string) ([]domain.RecipeLine, bool, error) {
	val, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var lines []domain.RecipeLine
	if err := json.Unmarshal([]byte(val), &lines); err != nil {
		return nil, false, err
	}
	return lines, true, nil
}

func (c *RedisRecipeCache) Set(ctx context.Context, key string, lines []domain.RecipeLine, ttl time.Duration) error {
	if len(lines) == 0 {
		return nil
	}
	payload, err := json.Marshal(lines)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, payload, ttl).Err()
}

func (c *RedisRecipeCache) Invalidate(ctx context.Context, prefix string) error {
	iter := c.client.Scan(ctx, 0, prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}
