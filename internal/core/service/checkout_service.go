package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

const instrumentationName = "github.com/rl1809/storefront/checkout"

var ErrDuplicateRequest = errors.New("duplicate request")

// Phase is a state of a single checkout attempt.
type Phase string

const (
	PhaseValidating Phase = "validating"
	PhaseReserving  Phase = "reserving"
	PhaseCommitting Phase = "committing"
	PhaseCommitted  Phase = "committed"
	PhaseRejected   Phase = "rejected"
)

// OrderPublisher receives committed orders for best-effort delivery.
type OrderPublisher interface {
	Enqueue(order domain.Order) bool
}

type CheckoutRequest struct {
	UserID          string
	ShippingAddress string
	IdempotencyKey  string
}

type Receipt struct {
	OrderID     string          `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

type CheckoutOption func(*CheckoutService)

func WithIdempotency(store port.IdempotencyStore) CheckoutOption {
	return func(s *CheckoutService) { s.idempotency = store }
}

func WithClock(now func() time.Time) CheckoutOption {
	return func(s *CheckoutService) { s.now = now }
}

// CheckoutService turns a cart into an order. Stock is reserved with the
// ledger's conditional decrement; every failure before the order is written
// releases the reservations taken by the attempt.
type CheckoutService struct {
	carts       port.CartStore
	inventory   port.InventoryLedger
	orders      port.OrderStore
	events      OrderPublisher
	idempotency port.IdempotencyStore
	logger      *zap.Logger
	tracer      trace.Tracer
	outcomes    metric.Int64Counter
	now         func() time.Time
}

func NewCheckoutService(
	carts port.CartStore,
	inventory port.InventoryLedger,
	orders port.OrderStore,
	events OrderPublisher,
	logger *zap.Logger,
	opts ...CheckoutOption,
) *CheckoutService {
	s := &CheckoutService{
		carts:     carts,
		inventory: inventory,
		orders:    orders,
		events:    events,
		logger:    logger.Named("checkout"),
		tracer:    otel.Tracer(instrumentationName),
		now:       time.Now,
	}

	outcomes, err := otel.Meter(instrumentationName).Int64Counter(
		"storefront_checkout_total",
		metric.WithDescription("Checkout attempts by outcome"),
		metric.WithUnit("{checkouts}"),
	)
	if err != nil {
		s.logger.Warn("checkout counter unavailable", zap.Error(err))
		outcomes, _ = noop.NewMeterProvider().Meter(instrumentationName).Int64Counter("storefront_checkout_total")
	}
	s.outcomes = outcomes

	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *CheckoutService) Checkout(ctx context.Context, req CheckoutRequest) (receipt *Receipt, err error) {
	ctx, span := s.tracer.Start(ctx, "Checkout", trace.WithAttributes(attribute.String("user.id", req.UserID)))
	defer span.End()

	log := s.logger.With(zap.String("user_id", req.UserID))
	defer func() {
		s.outcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome(err))))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	if req.IdempotencyKey != "" && s.idempotency != nil {
		key := fmt.Sprintf("checkout:%s:%s", req.UserID, req.IdempotencyKey)
		ok, setErr := s.idempotency.SetIdempotency(ctx, key)
		if setErr != nil {
			return nil, domain.NewPersistenceError("idempotency check", setErr)
		}
		if !ok {
			return nil, ErrDuplicateRequest
		}
		defer func() {
			if err == nil {
				return
			}
			if relErr := s.idempotency.ReleaseIdempotency(context.WithoutCancel(ctx), key); relErr != nil {
				log.Warn("failed to release idempotency key", zap.String("key", key), zap.Error(relErr))
			}
		}()
	}

	s.enter(ctx, log, PhaseValidating)
	lines, err := s.validate(ctx, req.UserID)
	if err != nil {
		s.enter(ctx, log, PhaseRejected, zap.Error(err))
		return nil, err
	}

	s.enter(ctx, log, PhaseReserving, zap.Int("lines", len(lines)))
	reserved, err := s.reserve(ctx, log, lines)
	if err != nil {
		s.enter(ctx, log, PhaseRejected, zap.Error(err))
		return nil, err
	}

	s.enter(ctx, log, PhaseCommitting)
	order := s.buildOrder(req, reserved)
	if err := s.orders.CreateOrder(ctx, order); err != nil {
		s.release(ctx, log, reserved)
		s.enter(ctx, log, PhaseRejected, zap.Error(err))
		return nil, domain.NewPersistenceError("create order", err)
	}

	if err := s.carts.SaveCart(ctx, req.UserID, nil); err != nil {
		// The order exists, so the caller sees success; the stale cart
		// fails validation or reconciles on the next attempt.
		log.Warn("order committed but cart not cleared", zap.String("order_id", order.ID), zap.Error(err))
	}

	s.enter(ctx, log, PhaseCommitted, zap.String("order_id", order.ID), zap.String("order_number", order.Number))
	if s.events != nil && !s.events.Enqueue(order) {
		log.Warn("order notification not queued", zap.String("order_id", order.ID))
	}

	log.Info("order placed",
		zap.String("order_id", order.ID),
		zap.String("order_number", order.Number),
		zap.String("total_amount", order.TotalAmount.String()),
	)

	return &Receipt{
		OrderID:     order.ID,
		OrderNumber: order.Number,
		TotalAmount: order.TotalAmount,
	}, nil
}

// validate is read only. It reports every line whose requested quantity
// exceeds the available stock.
func (s *CheckoutService) validate(ctx context.Context, userID string) ([]domain.OrderLine, error) {
	stored, err := s.carts.GetCart(ctx, userID)
	if err != nil {
		return nil, domain.NewPersistenceError("load cart", err)
	}

	cart := domain.NewCart(userID, stored)
	if cart.IsEmpty() {
		return nil, domain.ErrEmptyCart
	}

	products, err := loadProducts(ctx, s.inventory, productIDs(cart.Lines))
	if err != nil {
		return nil, err
	}

	lines := make([]domain.OrderLine, 0, len(cart.Lines))
	var conflicts []domain.StockConflict
	for _, l := range cart.Lines {
		p, ok := products[l.ProductID]
		if !ok {
			return nil, fmt.Errorf("product %s: %w", l.ProductID, domain.ErrNotFound)
		}
		if !p.InStock(l.Quantity) {
			conflicts = append(conflicts, domain.StockConflict{
				ProductID: l.ProductID,
				Requested: l.Quantity,
				Available: p.Available,
			})
			continue
		}
		lines = append(lines, domain.OrderLine{
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			UnitPrice: p.Price,
		})
	}

	if len(conflicts) > 0 {
		return nil, &domain.StockError{Conflicts: conflicts}
	}
	return lines, nil
}

// reserve decrements stock in ascending product id order so overlapping
// checkouts acquire rows in the same order.
func (s *CheckoutService) reserve(ctx context.Context, log *zap.Logger, lines []domain.OrderLine) ([]domain.OrderLine, error) {
	ordered := append([]domain.OrderLine(nil), lines...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ProductID < ordered[j].ProductID })

	reserved := make([]domain.OrderLine, 0, len(ordered))
	for _, l := range ordered {
		ok, err := s.inventory.DecrementStock(ctx, l.ProductID, l.Quantity)
		if err != nil {
			s.release(ctx, log, reserved)
			return nil, domain.NewPersistenceError("reserve stock "+l.ProductID, err)
		}
		if !ok {
			s.release(ctx, log, reserved)
			return nil, s.lostRace(ctx, l)
		}
		reserved = append(reserved, l)
	}
	return reserved, nil
}

func (s *CheckoutService) lostRace(ctx context.Context, l domain.OrderLine) error {
	available := 0
	if p, err := s.inventory.GetProduct(ctx, l.ProductID); err == nil {
		available = p.Available
	}
	return &domain.StockError{Conflicts: []domain.StockConflict{{
		ProductID: l.ProductID,
		Requested: l.Quantity,
		Available: available,
	}}}
}

// release returns reserved stock to the ledger. It runs even when the
// request context is already cancelled.
func (s *CheckoutService) release(ctx context.Context, log *zap.Logger, reserved []domain.OrderLine) {
	ctx = context.WithoutCancel(ctx)
	for i := len(reserved) - 1; i >= 0; i-- {
		l := reserved[i]
		if err := s.inventory.IncrementStock(ctx, l.ProductID, l.Quantity); err != nil {
			log.Error("CRITICAL: failed to release reserved stock",
				zap.String("product_id", l.ProductID),
				zap.Int("quantity", l.Quantity),
				zap.Error(err),
			)
			continue
		}
		log.Debug("released reserved stock", zap.String("product_id", l.ProductID), zap.Int("quantity", l.Quantity))
	}
}

func (s *CheckoutService) buildOrder(req CheckoutRequest, lines []domain.OrderLine) domain.Order {
	now := s.now().UTC()
	return domain.Order{
		ID:              uuid.NewString(),
		Number:          domain.NewOrderNumber(now),
		UserID:          req.UserID,
		Lines:           lines,
		TotalAmount:     domain.SumLines(lines),
		Status:          domain.OrderStatusPending,
		ShippingAddress: req.ShippingAddress,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func (s *CheckoutService) enter(ctx context.Context, log *zap.Logger, phase Phase, fields ...zap.Field) {
	trace.SpanFromContext(ctx).AddEvent(string(phase))
	log.Debug("checkout phase", append([]zap.Field{zap.String("phase", string(phase))}, fields...)...)
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "committed"
	case errors.Is(err, domain.ErrEmptyCart):
		return "empty_cart"
	case errors.Is(err, domain.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrDuplicateRequest):
		return "duplicate"
	case errors.Is(err, domain.ErrPersistence):
		return "persistence_failure"
	default:
		return "error"
	}
}
