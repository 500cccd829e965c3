package pricesource

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"log/slog"

	"github.com/go-redis/redis/v8"

	"github.com/m3rciful/pricewatch/core/logger"
	"github.com/m3rciful/pricewatch/internal/models"
)

const defaultCacheTTL = 2 * time.Second

// kvStore is the slice of redis the cache needs. Get returns ("", false, nil)
// on a miss.
type kvStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

type redisStore struct {
	client *redis.Client
}

func (r redisStore) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (r redisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

// Cached is a read-through cache in front of a Source. Monitor ticks for
// users tracking the same article within the TTL share one upstream call.
// Cache failures degrade to a direct lookup.
type Cached struct {
	src   Source
	store kvStore
	ttl   time.Duration
}

func NewCached(src Source, client *redis.Client, ttl time.Duration) *Cached {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Cached{src: src, store: redisStore{client: client}, ttl: ttl}
}

func (c *Cached) Lookup(ctx context.Context, marketplace models.Marketplace, article string) (Product, error) {
	key := fmt.Sprintf("price:%s:%s", marketplace, article)

	cached, ok, err := c.store.Get(ctx, key)
	if err != nil {
		logger.LogEvent(ctx, logger.SRC, slog.LevelWarn, "cache_read_failed",
			slog.String("key", key), slog.String("err", err.Error()))
	} else if ok {
		var product Product
		if err := json.Unmarshal([]byte(cached), &product); err == nil {
			return product, nil
		}
		logger.LogEvent(ctx, logger.SRC, slog.LevelWarn, "cache_entry_corrupt",
			slog.String("key", key))
	}

	product, err := c.src.Lookup(ctx, marketplace, article)
	if err != nil {
		return Product{}, err
	}
	if raw, err := json.Marshal(product); err == nil {
		if err := c.store.Set(ctx, key, string(raw), c.ttl); err != nil {
			logger.LogEvent(ctx, logger.SRC, slog.LevelWarn, "cache_write_failed",
				slog.String("key", key), slog.String("err", err.Error()))
		}
	}
	return product, nil
}
