package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/storefront/internal/core/domain"
)

func TestRedisCartStore_RoundTrip(t *testing.T) {
	client, mr := getRedisClient(t)
	ctx := context.Background()
	store := NewRedisCartStore(client, time.Hour)

	lines, err := store.GetCart(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, lines)

	err = store.SaveCart(ctx, "u1", []domain.CartLine{
		{ProductID: "b", Quantity: 2},
		{ProductID: "a", Quantity: 1},
	})
	require.NoError(t, err)

	lines, err = store.GetCart(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []domain.CartLine{{ProductID: "a", Quantity: 1}, {ProductID: "b", Quantity: 2}}, lines)
	assert.Equal(t, time.Hour, mr.TTL("cart:u1"))
}

func TestRedisCartStore_SaveReplaces(t *testing.T) {
	client, _ := getRedisClient(t)
	ctx := context.Background()
	store := NewRedisCartStore(client, 0)

	require.NoError(t, store.SaveCart(ctx, "u1", []domain.CartLine{{ProductID: "a", Quantity: 1}, {ProductID: "b", Quantity: 1}}))
	require.NoError(t, store.SaveCart(ctx, "u1", []domain.CartLine{{ProductID: "c", Quantity: 4}}))

	lines, err := store.GetCart(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []domain.CartLine{{ProductID: "c", Quantity: 4}}, lines)
}

func TestRedisCartStore_EmptySaveDeletesKey(t *testing.T) {
	client, mr := getRedisClient(t)
	ctx := context.Background()
	store := NewRedisCartStore(client, 0)

	require.NoError(t, store.SaveCart(ctx, "u1", []domain.CartLine{{ProductID: "a", Quantity: 1}}))
	require.NoError(t, store.SaveCart(ctx, "u1", nil))

	assert.False(t, mr.Exists("cart:u1"))
}

func TestRedisCartStore_CorruptQuantity(t *testing.T) {
	client, mr := getRedisClient(t)
	mr.HSet("cart:u1", "a", "lots")

	_, err := NewRedisCartStore(client, 0).GetCart(context.Background(), "u1")
	assert.Error(t, err)
}
