package storage

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rl1809/storefront/internal/core/domain"
)

const cartKeyPrefix = "cart:"

// RedisCartStore keeps one hash per user, product id to quantity.
type RedisCartStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCartStore expires idle carts after ttl; zero keeps them forever.
func NewRedisCartStore(client *redis.Client, ttl time.Duration) *RedisCartStore {
	return &RedisCartStore{client: client, ttl: ttl}
}

func (r *RedisCartStore) GetCart(ctx context.Context, userID string) ([]domain.CartLine, error) {
	fields, err := r.client.HGetAll(ctx, cartKeyPrefix+userID).Result()
	if err != nil {
		return nil, fmt.Errorf("read cart: %w", err)
	}

	lines := make([]domain.CartLine, 0, len(fields))
	for productID, raw := range fields {
		qty, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("cart %s: bad quantity %q for %s: %w", userID, raw, productID, err)
		}
		lines = append(lines, domain.CartLine{ProductID: productID, Quantity: qty})
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].ProductID < lines[j].ProductID })
	return lines, nil
}

// SaveCart replaces the stored cart in one MULTI/EXEC. An empty cart deletes the key.
func (r *RedisCartStore) SaveCart(ctx context.Context, userID string, lines []domain.CartLine) error {
	key := cartKeyPrefix + userID

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(lines) == 0 {
			return nil
		}

		values := make([]any, 0, len(lines)*2)
		for _, l := range lines {
			values = append(values, l.ProductID, l.Quantity)
		}
		pipe.HSet(ctx, key, values...)
		if r.ttl > 0 {
			pipe.Expire(ctx, key, r.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	return nil
}
