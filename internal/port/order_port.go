package port

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nikolayk812/ordercore/internal/domain"
)

type OrderRepository interface {
	GetOrder(ctx context.Context, orderID uuid.UUID) (domain.Order, error)

	// GetOrderForUpdate locks the order row for the rest of the enclosing
	// transaction. Commands that release or reserve stock for an order's
	// items serialize on this lock, so concurrent edit/cancel/delete cannot
	// compensate the same items twice.
	GetOrderForUpdate(ctx context.Context, orderID uuid.UUID) (domain.Order, error)

	// InsertOrder persists the order row and all of its items.
	InsertOrder(ctx context.Context, order domain.Order) (uuid.UUID, error)

	// UpdateStatus applies the transition conditioned on the row still being
	// in the from status: domain.ErrConcurrencyConflict when another
	// transition won the race, domain.ErrNotFound when the order is gone.
	// Stamps confirmed_at/shipped_at/delivered_at matching the target.
	UpdateStatus(ctx context.Context, orderID uuid.UUID, from, to domain.OrderStatus, at time.Time) error

	InsertStatusHistory(ctx context.Context, entry domain.OrderStatusHistory) error
	GetStatusHistory(ctx context.Context, orderID uuid.UUID) ([]domain.OrderStatusHistory, error)

	DeleteItems(ctx context.Context, orderID uuid.UUID) error
	InsertItems(ctx context.Context, orderID uuid.UUID, items []domain.OrderItem) error
	UpdateTotals(ctx context.Context, orderID uuid.UUID, totals domain.OrderTotals) error

	// DeleteOrder removes the order with its items and history.
	// Stock compensation is the caller's responsibility.
	DeleteOrder(ctx context.Context, orderID uuid.UUID) error
}
