package storage

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/rl1809/storefront/internal/core/domain"
)

const (
	productKeyPrefix     = "product:"
	idempotencyKeyPrefix = "idempotency:"
	idempotencyKeyTTL    = 24 * time.Hour

	fieldName      = "name"
	fieldPrice     = "price"
	fieldAvailable = "available"
	fieldUpdatedAt = "updated_at"
)

var decrementStockScript = redis.NewScript(`
local key = KEYS[1]
local quantity = tonumber(ARGV[1])

local current = redis.call('HGET', key, 'available')
if not current then
	return 0
end

current = tonumber(current)
if current >= quantity then
	redis.call('HINCRBY', key, 'available', -quantity)
	redis.call('HSET', key, 'updated_at', ARGV[2])
	return 1
end

return 0
`)

var incrementStockScript = redis.NewScript(`
local key = KEYS[1]

if redis.call('EXISTS', key) == 0 then
	return 0
end

redis.call('HINCRBY', key, 'available', tonumber(ARGV[1]))
redis.call('HSET', key, 'updated_at', ARGV[2])
return 1
`)

// RedisInventory keeps each product in a hash. Stock changes run as Lua
// scripts so the check and the write happen atomically.
type RedisInventory struct {
	client *redis.Client
	now    func() time.Time
}

func NewRedisInventory(client *redis.Client) *RedisInventory {
	return &RedisInventory{client: client, now: time.Now}
}

func (r *RedisInventory) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	fields, err := r.client.HGetAll(ctx, productKeyPrefix+productID).Result()
	if err != nil {
		return nil, fmt.Errorf("read product: %w", err)
	}
	if len(fields) == 0 {
		return nil, domain.ErrNotFound
	}
	return parseProduct(productID, fields)
}

func (r *RedisInventory) DecrementStock(ctx context.Context, productID string, quantity int) (bool, error) {
	key := productKeyPrefix + productID

	result, err := decrementStockScript.Run(ctx, r.client, []string{key}, quantity, r.timestamp()).Int()
	if err != nil {
		return false, err
	}

	return result == 1, nil
}

func (r *RedisInventory) IncrementStock(ctx context.Context, productID string, quantity int) error {
	key := productKeyPrefix + productID

	result, err := incrementStockScript.Run(ctx, r.client, []string{key}, quantity, r.timestamp()).Int()
	if err != nil {
		return err
	}
	if result == 0 {
		return fmt.Errorf("increment stock %s: %w", productID, domain.ErrNotFound)
	}
	return nil
}

// SetProduct writes the whole product hash, replacing any previous stock.
func (r *RedisInventory) SetProduct(ctx context.Context, p domain.Product) error {
	return r.client.HSet(ctx, productKeyPrefix+p.ID, map[string]any{
		fieldName:      p.Name,
		fieldPrice:     p.Price.String(),
		fieldAvailable: p.Available,
		fieldUpdatedAt: r.timestamp(),
	}).Err()
}

func (r *RedisInventory) timestamp() string {
	return r.now().UTC().Format(time.RFC3339Nano)
}

func parseProduct(productID string, fields map[string]string) (*domain.Product, error) {
	price, err := decimal.NewFromString(fields[fieldPrice])
	if err != nil {
		return nil, fmt.Errorf("product %s: bad price %q: %w", productID, fields[fieldPrice], err)
	}
	available, err := strconv.Atoi(fields[fieldAvailable])
	if err != nil {
		return nil, fmt.Errorf("product %s: bad stock %q: %w", productID, fields[fieldAvailable], err)
	}

	p := &domain.Product{
		ID:        productID,
		Name:      fields[fieldName],
		Price:     price,
		Available: available,
	}
	if ts, ok := fields[fieldUpdatedAt]; ok {
		p.UpdatedAt, _ = time.Parse(time.RFC3339Nano, ts)
	}
	return p, nil
}

// RedisIdempotencyStore claims request keys with SETNX.
type RedisIdempotencyStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisIdempotencyStore(client *redis.Client, ttl time.Duration) *RedisIdempotencyStore {
	if ttl <= 0 {
		ttl = idempotencyKeyTTL
	}
	return &RedisIdempotencyStore{client: client, ttl: ttl}
}

func (r *RedisIdempotencyStore) SetIdempotency(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, idempotencyKeyPrefix+key, 1, r.ttl).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

func (r *RedisIdempotencyStore) ReleaseIdempotency(ctx context.Context, key string) error {
	return r.client.Del(ctx, idempotencyKeyPrefix+key).Err()
}
