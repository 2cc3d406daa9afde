package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/rl1809/storefront/internal/core/domain"
)

const eventOrderCreated = "order.created"

type orderEvent struct {
	Event      string       `json:"event"`
	OccurredAt time.Time    `json:"occurred_at"`
	Order      domain.Order `json:"order"`
}

type WebhookConfig struct {
	URL        string
	Retries    int
	RetryWait  time.Duration
	Timeout    time.Duration
	SigningKey string
}

// WebhookNotifier POSTs order events as JSON to a single endpoint.
type WebhookNotifier struct {
	client *resty.Client
	url    string
	logger *zap.Logger
}

func NewWebhookNotifier(cfg WebhookConfig, logger *zap.Logger) *WebhookNotifier {
	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.Retries).
		SetRetryWaitTime(cfg.RetryWait).
		SetHeader("Content-Type", "application/json").
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= 500
		})
	if cfg.SigningKey != "" {
		client.SetHeader("X-Webhook-Token", cfg.SigningKey)
	}

	return &WebhookNotifier{
		client: client,
		url:    cfg.URL,
		logger: logger.Named("webhook"),
	}
}

func (n *WebhookNotifier) NotifyOrderCreated(ctx context.Context, order domain.Order) error {
	resp, err := n.client.R().
		SetContext(ctx).
		SetHeader("X-Event-Type", eventOrderCreated).
		SetHeader("Idempotency-Key", order.ID).
		SetBody(orderEvent{
			Event:      eventOrderCreated,
			OccurredAt: time.Now().UTC(),
			Order:      order,
		}).
		Post(n.url)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("webhook responded %s", resp.Status())
	}

	n.logger.Debug("webhook delivered",
		zap.String("order_id", order.ID),
		zap.Int("status", resp.StatusCode()),
		zap.Duration("latency", resp.Time()),
	)
	return nil
}
