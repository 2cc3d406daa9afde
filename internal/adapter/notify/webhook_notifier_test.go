package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rl1809/storefront/internal/core/domain"
)

func sampleOrder() domain.Order {
	return domain.Order{
		ID:          "order-1",
		Number:      "ORD-20240101000000-AAAAAA",
		UserID:      "u1",
		TotalAmount: decimal.RequireFromString("12.34"),
		Status:      domain.OrderStatusPending,
	}
}

func TestWebhookNotifier_Delivers(t *testing.T) {
	var got orderEvent
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "order.created", r.Header.Get("X-Event-Type"))
		assert.Equal(t, "order-1", r.Header.Get("Idempotency-Key"))
		assert.Equal(t, "secret", r.Header.Get("X-Webhook-Token"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(WebhookConfig{URL: srv.URL, Timeout: time.Second, SigningKey: "secret"}, zap.NewNop())
	require.NoError(t, n.NotifyOrderCreated(context.Background(), sampleOrder()))

	assert.Equal(t, "order.created", got.Event)
	assert.Equal(t, "ORD-20240101000000-AAAAAA", got.Order.Number)
	assert.True(t, got.Order.TotalAmount.Equal(decimal.RequireFromString("12.34")))
}

func TestWebhookNotifier_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(WebhookConfig{URL: srv.URL, Retries: 3, RetryWait: time.Millisecond, Timeout: time.Second}, zap.NewNop())
	require.NoError(t, n.NotifyOrderCreated(context.Background(), sampleOrder()))
	assert.EqualValues(t, 3, calls.Load())
}

func TestWebhookNotifier_ClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(WebhookConfig{URL: srv.URL, Retries: 3, RetryWait: time.Millisecond, Timeout: time.Second}, zap.NewNop())
	err := n.NotifyOrderCreated(context.Background(), sampleOrder())
	assert.ErrorContains(t, err, "400")
	assert.EqualValues(t, 1, calls.Load())
}

func TestLogNotifier(t *testing.T) {
	n := NewLogNotifier(zap.NewNop())
	assert.NoError(t, n.NotifyOrderCreated(context.Background(), sampleOrder()))
}
