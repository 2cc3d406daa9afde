package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

// NotificationDispatcher delivers order-created events on a bounded queue
// drained by a fixed set of workers. Delivery failures are logged and dropped.
type NotificationDispatcher struct {
	notifier port.Notifier
	queue    chan domain.Order
	timeout  time.Duration
	logger   *zap.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewNotificationDispatcher(notifier port.Notifier, queueSize, workerCount int, timeout time.Duration, logger *zap.Logger) *NotificationDispatcher {
	if queueSize < 1 {
		queueSize = 1
	}
	if workerCount < 1 {
		workerCount = 1
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	d := &NotificationDispatcher{
		notifier: notifier,
		queue:    make(chan domain.Order, queueSize),
		timeout:  timeout,
		logger:   logger.Named("notifications"),
	}

	for i := 0; i < workerCount; i++ {
		d.wg.Add(1)
		go func(id int) {
			defer d.wg.Done()
			d.workerLoop(id)
		}(i)
	}
	return d
}

// Enqueue never blocks. It returns false when the queue is full or closed.
func (d *NotificationDispatcher) Enqueue(order domain.Order) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return false
	}

	select {
	case d.queue <- order:
		return true
	default:
		d.logger.Warn("notification queue full, dropping event", zap.String("order_id", order.ID))
		return false
	}
}

// Close stops accepting events, drains the queue and waits for the workers.
func (d *NotificationDispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	d.wg.Wait()
}

func (d *NotificationDispatcher) workerLoop(id int) {
	for order := range d.queue {
		if err := d.deliver(order); err != nil {
			d.logger.Warn("order notification failed",
				zap.Int("worker", id),
				zap.String("order_id", order.ID),
				zap.Error(err),
			)
			continue
		}
		d.logger.Debug("order notification sent", zap.Int("worker", id), zap.String("order_id", order.ID))
	}
}

func (d *NotificationDispatcher) deliver(order domain.Order) (err error) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("notifier panic: %v", r)
		}
	}()

	return d.notifier.NotifyOrderCreated(ctx, order)
}
