package port

import (
	"context"

	"github.com/rl1809/storefront/internal/core/domain"
)

type Notifier interface {
	NotifyOrderCreated(ctx context.Context, order domain.Order) error
}
