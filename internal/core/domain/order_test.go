package domain

import (
	"regexp"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestOrderStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to OrderStatus
		want     bool
	}{
		{OrderStatusPending, OrderStatusProcessing, true},
		{OrderStatusProcessing, OrderStatusShipped, true},
		{OrderStatusShipped, OrderStatusDelivered, true},
		{OrderStatusPending, OrderStatusShipped, false},
		{OrderStatusProcessing, OrderStatusPending, false},
		{OrderStatusPending, OrderStatusCancelled, true},
		{OrderStatusShipped, OrderStatusCancelled, true},
		{OrderStatusDelivered, OrderStatusCancelled, false},
		{OrderStatusCancelled, OrderStatusPending, false},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
			t.Errorf("%s -> %s: expected %v, got %v", tt.from, tt.to, tt.want, got)
		}
	}
}

func TestParseOrderStatus(t *testing.T) {
	st, err := ParseOrderStatus("Shipped")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st != OrderStatusShipped {
		t.Errorf("expected shipped, got %s", st)
	}

	if _, err := ParseOrderStatus("lost"); err == nil {
		t.Error("expected error for unknown status")
	}
}

func TestSumLines_FullPrecision(t *testing.T) {
	lines := []OrderLine{
		{ProductID: "a", Quantity: 3, UnitPrice: decimal.RequireFromString("0.3333")},
		{ProductID: "b", Quantity: 1, UnitPrice: decimal.RequireFromString("10.005")},
	}

	total := SumLines(lines)

	want := decimal.RequireFromString("11.0049")
	if !total.Equal(want) {
		t.Errorf("expected total %s, got %s", want, total)
	}
}

func TestNewOrderNumber(t *testing.T) {
	now := time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)

	number := NewOrderNumber(now)

	pattern := regexp.MustCompile(`^ORD-20260314150926-[0-9A-F]{6}$`)
	if !pattern.MatchString(number) {
		t.Errorf("unexpected order number format: %s", number)
	}
}
