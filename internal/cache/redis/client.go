package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/docchat/backend/pkg/config"
	"github.com/docchat/backend/pkg/logger"
)

const (
	scanBatch     = 100
	generationKey = "generation"
)

// Client caches ranked search results under a key prefix so that every entry
// can be dropped when the corpus changes.
type Client struct {
	client *redis.Client
	prefix string
}

func NewClient(cfg config.RedisConfig) (*Client, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis client initialized", zap.String("addr", addr), zap.String("prefix", cfg.KeyPrefix))

	return &Client{client: client, prefix: cfg.KeyPrefix}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) key(queryHash string) string {
	return c.prefix + queryHash
}

func (c *Client) SetQuery(ctx context.Context, queryHash string, response any, ttl time.Duration) error {
	data, err := json.Marshal(response)
	if err != nil {
		return fmt.Errorf("failed to marshal response: %w", err)
	}

	if err := c.client.Set(ctx, c.key(queryHash), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set query cache: %w", err)
	}

	logger.Debug("Query cached", zap.String("query_hash", queryHash), zap.Duration("ttl", ttl))
	return nil
}

// GetQuery decodes a cached entry into response and reports whether one was
// found.
func (c *Client) GetQuery(ctx context.Context, queryHash string, response any) (bool, error) {
	data, err := c.client.Get(ctx, c.key(queryHash)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get query cache: %w", err)
	}

	if err := json.Unmarshal(data, response); err != nil {
		return false, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	logger.Debug("Query cache hit", zap.String("query_hash", queryHash))
	return true, nil
}

// Generation returns the invalidation counter. Callers fold it into their
// query hashes so results computed before an invalidation are never read
// after it.
func (c *Client) Generation(ctx context.Context) (int64, error) {
	gen, err := c.client.Get(ctx, c.key(generationKey)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get cache generation: %w", err)
	}
	return gen, nil
}

// InvalidateDocumentCache advances the generation and removes every cached
// search result.
func (c *Client) InvalidateDocumentCache(ctx context.Context) error {
	gen, err := c.client.Incr(ctx, c.key(generationKey)).Result()
	if err != nil {
		return fmt.Errorf("failed to advance cache generation: %w", err)
	}

	removed := 0
	iter := c.client.Scan(ctx, 0, c.prefix+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		if iter.Val() == c.key(generationKey) {
			continue
		}
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			logger.Warn("Failed to delete cache key", zap.String("key", iter.Val()), zap.Error(err))
			continue
		}
		removed++
	}

	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to iterate cache keys: %w", err)
	}

	logger.Info("Document cache invalidated", zap.Int("keys", removed), zap.Int64("generation", gen))
	return nil
}
