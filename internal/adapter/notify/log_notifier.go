package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/rl1809/storefront/internal/core/domain"
)

// LogNotifier writes order events to the application log.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.Named("notify")}
}

func (n *LogNotifier) NotifyOrderCreated(ctx context.Context, order domain.Order) error {
	n.logger.Info("order created",
		zap.String("order_id", order.ID),
		zap.String("order_number", order.Number),
		zap.String("user_id", order.UserID),
		zap.Int("lines", len(order.Lines)),
		zap.String("total_amount", order.TotalAmount.String()),
	)
	return nil
}
