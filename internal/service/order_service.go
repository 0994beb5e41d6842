// Package service hosts the command handlers of the consistency engine.
// Every command runs inside a single transaction: it either commits all of
// its stock, order, payment and ledger writes, or none of them.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/nikolayk812/ordercore/internal/domain"
	"github.com/nikolayk812/ordercore/internal/port"
	"github.com/nikolayk812/ordercore/internal/repository"
)

type OrderService struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewOrder(pool *pgxpool.Pool, logger *slog.Logger) *OrderService {
	return &OrderService{pool: pool, logger: logger}
}

// CreateOrder reserves stock for every requested item and persists the order
// with price/name/sku snapshots and computed totals, all-or-nothing. Any
// reservation failure rolls back the reservations already made.
func (s *OrderService) CreateOrder(ctx context.Context, userID, shippingAddress string, items []domain.NewOrderItem, discount decimal.Decimal) (domain.Order, error) {
	var o domain.Order

	if err := domain.ValidateNewOrder(userID, shippingAddress, items); err != nil {
		return o, err
	}

	if dup, found := domain.FindDuplicateItem(items); found {
		return o, fmt.Errorf("product %s: %w", dup, domain.ErrDuplicateItem)
	}

	order, err := repository.WithTx(ctx, s.pool, func(tx pgx.Tx) (domain.Order, error) {
		products := repository.NewProductWithTx(tx)
		orders := repository.NewOrderWithTx(tx)

		orderItems, err := reserveAndSnapshot(ctx, products, items)
		if err != nil {
			return o, err
		}

		totals, err := domain.ComputeOrderTotals(orderItems, discount)
		if err != nil {
			return o, fmt.Errorf("domain.ComputeOrderTotals: %w", err)
		}

		orderID, err := orders.InsertOrder(ctx, domain.Order{
			UserID:          userID,
			Status:          domain.OrderStatusPending,
			ShippingAddress: shippingAddress,
			Subtotal:        totals.Subtotal,
			ShippingCost:    totals.ShippingCost,
			TaxAmount:       totals.TaxAmount,
			DiscountAmount:  totals.DiscountAmount,
			TotalAmount:     totals.TotalAmount,
			Items:           orderItems,
		})
		if err != nil {
			return o, fmt.Errorf("orders.InsertOrder: %w", err)
		}

		if err := orders.InsertStatusHistory(ctx, domain.OrderStatusHistory{
			OrderID: orderID,
			Status:  domain.OrderStatusPending,
			Note:    "order created",
			Actor:   userID,
		}); err != nil {
			return o, fmt.Errorf("orders.InsertStatusHistory: %w", err)
		}

		return orders.GetOrder(ctx, orderID)
	})
	if err != nil {
		return o, fmt.Errorf("create order: %w", err)
	}

	s.logger.InfoContext(ctx, "order created",
		slog.String("order_id", order.ID.String()),
		slog.String("user_id", userID),
		slog.String("total", order.TotalAmount.String()))

	return order, nil
}

// UpdateOrderItems swaps the order's line items. The release of the old set
// is committed first; if reserving the new set fails afterwards the order is
// left holding no items and the caller retries. The alternative, rolling the
// old reservation back in, could double-reserve under concurrent edits.
// Both phases lock the order row, so edits serialize against each other and
// against cancel/delete, and each phase acts on the items it read itself.
func (s *OrderService) UpdateOrderItems(ctx context.Context, orderID uuid.UUID, items []domain.NewOrderItem) (domain.Order, error) {
	var o domain.Order

	if err := domain.ValidateOrderItems(items); err != nil {
		return o, err
	}

	if dup, found := domain.FindDuplicateItem(items); found {
		return o, fmt.Errorf("product %s: %w", dup, domain.ErrDuplicateItem)
	}

	// Phase 1: give back the currently held stock and clear the items.
	_, err := repository.WithTx(ctx, s.pool, func(tx pgx.Tx) (struct{}, error) {
		products := repository.NewProductWithTx(tx)
		orders := repository.NewOrderWithTx(tx)

		order, err := orders.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return struct{}{}, fmt.Errorf("orders.GetOrderForUpdate: %w", err)
		}

		if !order.Status.Editable() {
			return struct{}{}, fmt.Errorf("status %s: %w", order.Status, domain.ErrOrderNotEditable)
		}

		if err := releaseItems(ctx, products, order.Items); err != nil {
			return struct{}{}, err
		}

		if err := orders.DeleteItems(ctx, orderID); err != nil {
			return struct{}{}, fmt.Errorf("orders.DeleteItems: %w", err)
		}

		return struct{}{}, nil
	})
	if err != nil {
		return o, fmt.Errorf("update order items: %w", err)
	}

	// Phase 2: reserve the new set and recompute totals. The order is
	// re-read under the lock: a transition committing between the phases
	// must not get stock reserved onto a no-longer-editable order.
	order, err := repository.WithTx(ctx, s.pool, func(tx pgx.Tx) (domain.Order, error) {
		products := repository.NewProductWithTx(tx)
		orders := repository.NewOrderWithTx(tx)

		order, err := orders.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return o, fmt.Errorf("orders.GetOrderForUpdate: %w", err)
		}

		if !order.Status.Editable() {
			return o, fmt.Errorf("status %s: %w", order.Status, domain.ErrOrderNotEditable)
		}

		// An edit interleaving between our phases may have inserted its own
		// set already; take it over so the swap stays last-writer-wins.
		if len(order.Items) > 0 {
			if err := releaseItems(ctx, products, order.Items); err != nil {
				return o, err
			}
			if err := orders.DeleteItems(ctx, orderID); err != nil {
				return o, fmt.Errorf("orders.DeleteItems: %w", err)
			}
		}

		orderItems, err := reserveAndSnapshot(ctx, products, items)
		if err != nil {
			return o, err
		}

		if err := orders.InsertItems(ctx, orderID, orderItems); err != nil {
			return o, fmt.Errorf("orders.InsertItems: %w", err)
		}

		totals, err := domain.ComputeOrderTotals(orderItems, order.DiscountAmount.Amount)
		if err != nil {
			return o, fmt.Errorf("domain.ComputeOrderTotals: %w", err)
		}

		if err := orders.UpdateTotals(ctx, orderID, totals); err != nil {
			return o, fmt.Errorf("orders.UpdateTotals: %w", err)
		}

		return orders.GetOrder(ctx, orderID)
	})
	if err != nil {
		return o, fmt.Errorf("update order items: %w", err)
	}

	s.logger.InfoContext(ctx, "order items updated",
		slog.String("order_id", orderID.String()),
		slog.String("total", order.TotalAmount.String()))

	return order, nil
}

// TransitionOrder applies one edge of the order lifecycle graph, appends the
// history entry and, when cancelling an order that still holds stock,
// releases the reservation in the same transaction. The row lock keeps the
// items read here in step with the items an edit may be swapping.
func (s *OrderService) TransitionOrder(ctx context.Context, orderID uuid.UUID, target domain.OrderStatus, actor, note string) (domain.Order, error) {
	var o domain.Order

	order, err := repository.WithTx(ctx, s.pool, func(tx pgx.Tx) (domain.Order, error) {
		products := repository.NewProductWithTx(tx)
		orders := repository.NewOrderWithTx(tx)

		order, err := orders.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return o, fmt.Errorf("orders.GetOrderForUpdate: %w", err)
		}

		if !order.Status.CanTransitionTo(target) {
			return o, domain.InvalidTransitionError{From: order.Status, To: target}
		}

		if err := orders.UpdateStatus(ctx, orderID, order.Status, target, time.Now().UTC()); err != nil {
			return o, fmt.Errorf("orders.UpdateStatus: %w", err)
		}

		if err := orders.InsertStatusHistory(ctx, domain.OrderStatusHistory{
			OrderID: orderID,
			Status:  target,
			Note:    note,
			Actor:   actor,
		}); err != nil {
			return o, fmt.Errorf("orders.InsertStatusHistory: %w", err)
		}

		if target == domain.OrderStatusCancelled && order.Status.HoldsStock() {
			if err := releaseItems(ctx, products, order.Items); err != nil {
				return o, err
			}
		}

		return orders.GetOrder(ctx, orderID)
	})
	if err != nil {
		return o, fmt.Errorf("transition order: %w", err)
	}

	s.logger.InfoContext(ctx, "order transitioned",
		slog.String("order_id", orderID.String()),
		slog.String("status", string(target)),
		slog.String("actor", actor))

	return order, nil
}

// DeleteOrder hard-deletes an order, restoring any stock it still holds.
// Orders with a completed payment must go through the refund flow instead.
func (s *OrderService) DeleteOrder(ctx context.Context, orderID uuid.UUID) error {
	_, err := repository.WithTx(ctx, s.pool, func(tx pgx.Tx) (struct{}, error) {
		products := repository.NewProductWithTx(tx)
		orders := repository.NewOrderWithTx(tx)
		payments := repository.NewPaymentWithTx(tx)

		order, err := orders.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return struct{}{}, fmt.Errorf("orders.GetOrderForUpdate: %w", err)
		}

		paid, err := payments.HasCompletedPayment(ctx, orderID)
		if err != nil {
			return struct{}{}, fmt.Errorf("payments.HasCompletedPayment: %w", err)
		}
		if paid {
			return struct{}{}, domain.ErrOrderNotDeletable
		}

		if order.Status.HoldsStock() {
			if err := releaseItems(ctx, products, order.Items); err != nil {
				return struct{}{}, err
			}
		}

		if err := orders.DeleteOrder(ctx, orderID); err != nil {
			return struct{}{}, fmt.Errorf("orders.DeleteOrder: %w", err)
		}

		return struct{}{}, nil
	})
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}

	s.logger.InfoContext(ctx, "order deleted", slog.String("order_id", orderID.String()))

	return nil
}

func (s *OrderService) GetOrder(ctx context.Context, orderID uuid.UUID) (domain.Order, error) {
	return repository.NewOrder(s.pool).GetOrder(ctx, orderID)
}

func (s *OrderService) GetStatusHistory(ctx context.Context, orderID uuid.UUID) ([]domain.OrderStatusHistory, error) {
	return repository.NewOrder(s.pool).GetStatusHistory(ctx, orderID)
}

// reserveAndSnapshot reserves stock for each requested item and captures the
// product's current price, name and sku into the order item.
func reserveAndSnapshot(ctx context.Context, products port.ProductRepository, items []domain.NewOrderItem) ([]domain.OrderItem, error) {
	orderItems := make([]domain.OrderItem, 0, len(items))

	for _, item := range items {
		product, err := products.GetProduct(ctx, item.ProductID)
		if err != nil {
			return nil, fmt.Errorf("products.GetProduct: %w", err)
		}

		if !product.IsActive {
			return nil, fmt.Errorf("product %s: %w", product.ID, domain.ErrProductInactive)
		}

		if err := products.Reserve(ctx, item.ProductID, item.Quantity); err != nil {
			return nil, fmt.Errorf("products.Reserve: %w", err)
		}

		orderItems = append(orderItems, domain.OrderItem{
			ProductID:   product.ID,
			Quantity:    item.Quantity,
			UnitPrice:   product.Price,
			ProductName: product.Name,
			ProductSKU:  product.SKU,
		})
	}

	return orderItems, nil
}

func releaseItems(ctx context.Context, products port.ProductRepository, items []domain.OrderItem) error {
	for _, item := range items {
		if err := products.Release(ctx, item.ProductID, item.Quantity); err != nil {
			return fmt.Errorf("products.Release: %w", err)
		}
	}
	return nil
}
