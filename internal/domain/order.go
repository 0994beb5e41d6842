package domain

import (
	"time"

	"github.com/google/uuid"
)

type Order struct {
	ID              uuid.UUID
	UserID          string
	Status          OrderStatus
	ShippingAddress string
	Notes           string

	Subtotal       Money
	ShippingCost   Money
	TaxAmount      Money
	DiscountAmount Money
	TotalAmount    Money

	Items []OrderItem

	CreatedAt   time.Time
	UpdatedAt   time.Time
	ConfirmedAt *time.Time
	ShippedAt   *time.Time
	DeliveredAt *time.Time
}

// OrderItem carries price/name/sku snapshots taken at order time;
// later product changes never alter existing orders.
type OrderItem struct {
	ProductID   uuid.UUID
	Quantity    int32
	UnitPrice   Money
	ProductName string
	ProductSKU  string

	CreatedAt time.Time
}

func (i OrderItem) TotalPrice() Money {
	return i.UnitPrice.MulInt(int64(i.Quantity))
}

// NewOrderItem is the inbound request shape before snapshots are taken.
type NewOrderItem struct {
	ProductID uuid.UUID
	Quantity  int32
}

type OrderStatusHistory struct {
	ID      int64
	OrderID uuid.UUID
	Status  OrderStatus
	Note    string
	Actor   string

	CreatedAt time.Time
}
