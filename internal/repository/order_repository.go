package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/nikolayk812/ordercore/internal/domain"
	"github.com/nikolayk812/ordercore/internal/port"
)

type orderRepository struct {
	db DBTX
}

func NewOrder(pool *pgxpool.Pool) port.OrderRepository {
	return &orderRepository{db: pool}
}

func NewOrderWithTx(tx pgx.Tx) port.OrderRepository {
	return &orderRepository{db: tx}
}

func (r *orderRepository) GetOrder(ctx context.Context, orderID uuid.UUID) (domain.Order, error) {
	return r.getOrder(ctx, orderID, false)
}

func (r *orderRepository) GetOrderForUpdate(ctx context.Context, orderID uuid.UUID) (domain.Order, error) {
	return r.getOrder(ctx, orderID, true)
}

func (r *orderRepository) getOrder(ctx context.Context, orderID uuid.UUID, forUpdate bool) (domain.Order, error) {
	var o domain.Order

	order, err := WithTx(ctx, r.db, func(tx pgx.Tx) (domain.Order, error) {
		order, err := getOrderRow(ctx, tx, orderID, forUpdate)
		if err != nil {
			return o, fmt.Errorf("getOrderRow: %w", err)
		}

		items, err := getOrderItems(ctx, tx, orderID)
		if err != nil {
			return o, fmt.Errorf("getOrderItems: %w", err)
		}
		order.Items = items

		return order, nil
	})
	if err != nil {
		return o, fmt.Errorf("withTx: %w", err)
	}

	return order, nil
}

func (r *orderRepository) InsertOrder(ctx context.Context, order domain.Order) (uuid.UUID, error) {
	if len(order.Items) == 0 {
		return uuid.Nil, errors.New("no items in order")
	}

	orderID, err := WithTx(ctx, r.db, func(tx pgx.Tx) (uuid.UUID, error) {
		var orderID uuid.UUID

		err := tx.QueryRow(ctx, `
			INSERT INTO orders (user_id, status, shipping_address, notes,
				subtotal, shipping_cost, tax_amount, discount_amount, total_amount, currency)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING id`,
			order.UserID, string(order.Status), order.ShippingAddress, order.Notes,
			order.Subtotal.Amount, order.ShippingCost.Amount, order.TaxAmount.Amount,
			order.DiscountAmount.Amount, order.TotalAmount.Amount, order.TotalAmount.Currency.String(),
		).Scan(&orderID)
		if err != nil {
			return uuid.Nil, fmt.Errorf("insert order: %w", err)
		}

		if err := insertOrderItems(ctx, tx, orderID, order.Items); err != nil {
			return uuid.Nil, fmt.Errorf("insertOrderItems: %w", err)
		}

		return orderID, nil
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("withTx: %w", err)
	}

	return orderID, nil
}

// UpdateStatus writes the target status conditioned on the current one, so
// two concurrent transitions from the same prior state cannot both succeed.
func (r *orderRepository) UpdateStatus(ctx context.Context, orderID uuid.UUID, from, to domain.OrderStatus, at time.Time) error {
	if orderID == uuid.Nil {
		return errors.New("orderID is empty")
	}
	if to == "" {
		return errors.New("status is empty")
	}

	cmdTag, err := r.db.Exec(ctx, `
		UPDATE orders
		SET status = $3,
			updated_at = $4,
			confirmed_at = CASE WHEN $3 = 'confirmed' THEN $4 ELSE confirmed_at END,
			shipped_at   = CASE WHEN $3 = 'shipped'   THEN $4 ELSE shipped_at END,
			delivered_at = CASE WHEN $3 = 'delivered' THEN $4 ELSE delivered_at END
		WHERE id = $1 AND status = $2`,
		orderID, string(from), string(to), at,
	)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}

	if cmdTag.RowsAffected() > 0 {
		return nil
	}

	// Either the order is gone or another transition won the race.
	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, orderID).Scan(&exists); err != nil {
		return fmt.Errorf("update order status diagnose: %w", err)
	}

	if !exists {
		return fmt.Errorf("update order status: %w", domain.ErrNotFound)
	}
	return fmt.Errorf("update order status: %w", domain.ErrConcurrencyConflict)
}

func (r *orderRepository) InsertStatusHistory(ctx context.Context, entry domain.OrderStatusHistory) error {
	if entry.OrderID == uuid.Nil {
		return errors.New("orderID is empty")
	}

	_, err := r.db.Exec(ctx, `
		INSERT INTO order_status_history (order_id, status, note, actor)
		VALUES ($1, $2, $3, $4)`,
		entry.OrderID, string(entry.Status), entry.Note, entry.Actor,
	)
	if err != nil {
		return fmt.Errorf("insert status history: %w", err)
	}

	return nil
}

func (r *orderRepository) GetStatusHistory(ctx context.Context, orderID uuid.UUID) ([]domain.OrderStatusHistory, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, order_id, status, note, actor, created_at
		FROM order_status_history
		WHERE order_id = $1
		ORDER BY created_at, id`,
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("get status history: %w", err)
	}
	defer rows.Close()

	var entries []domain.OrderStatusHistory
	for rows.Next() {
		var (
			entry  domain.OrderStatusHistory
			status string
		)
		if err := rows.Scan(&entry.ID, &entry.OrderID, &status, &entry.Note, &entry.Actor, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan status history: %w", err)
		}

		entry.Status, err = domain.ToOrderStatus(status)
		if err != nil {
			return nil, fmt.Errorf("domain.ToOrderStatus[%s]: %w", status, err)
		}

		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

func (r *orderRepository) DeleteItems(ctx context.Context, orderID uuid.UUID) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM order_items WHERE order_id = $1`, orderID); err != nil {
		return fmt.Errorf("delete order items: %w", err)
	}
	return nil
}

func (r *orderRepository) InsertItems(ctx context.Context, orderID uuid.UUID, items []domain.OrderItem) error {
	if len(items) == 0 {
		return errors.New("no items")
	}

	return withTxNoResult(ctx, r.db, func(tx pgx.Tx) error {
		return insertOrderItems(ctx, tx, orderID, items)
	})
}

func (r *orderRepository) UpdateTotals(ctx context.Context, orderID uuid.UUID, totals domain.OrderTotals) error {
	cmdTag, err := r.db.Exec(ctx, `
		UPDATE orders
		SET subtotal = $2, shipping_cost = $3, tax_amount = $4,
			discount_amount = $5, total_amount = $6, currency = $7, updated_at = now()
		WHERE id = $1`,
		orderID, totals.Subtotal.Amount, totals.ShippingCost.Amount, totals.TaxAmount.Amount,
		totals.DiscountAmount.Amount, totals.TotalAmount.Amount, totals.TotalAmount.Currency.String(),
	)
	if err != nil {
		return fmt.Errorf("update order totals: %w", err)
	}

	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("update order totals: %w", domain.ErrNotFound)
	}

	return nil
}

func (r *orderRepository) DeleteOrder(ctx context.Context, orderID uuid.UUID) error {
	if orderID == uuid.Nil {
		return errors.New("orderID is empty")
	}

	if err := withTxNoResult(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM order_status_history WHERE order_id = $1`, orderID); err != nil {
			return fmt.Errorf("delete status history: %w", err)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM order_items WHERE order_id = $1`, orderID); err != nil {
			return fmt.Errorf("delete order items: %w", err)
		}

		cmdTag, err := tx.Exec(ctx, `DELETE FROM orders WHERE id = $1`, orderID)
		if err != nil {
			return fmt.Errorf("delete order: %w", err)
		}

		if cmdTag.RowsAffected() == 0 {
			return fmt.Errorf("delete order: %w", domain.ErrNotFound)
		}

		return nil
	}); err != nil {
		return fmt.Errorf("withTx: %w", err)
	}

	return nil
}

func getOrderRow(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, forUpdate bool) (domain.Order, error) {
	var (
		o            domain.Order
		status       string
		currencyCode string
		subtotal     decimal.Decimal
		shipping     decimal.Decimal
		tax          decimal.Decimal
		discount     decimal.Decimal
		total        decimal.Decimal
	)

	query := `
		SELECT id, user_id, status, shipping_address, notes,
			subtotal, shipping_cost, tax_amount, discount_amount, total_amount, currency,
			created_at, updated_at, confirmed_at, shipped_at, delivered_at
		FROM orders
		WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	err := tx.QueryRow(ctx, query,
		orderID,
	).Scan(&o.ID, &o.UserID, &status, &o.ShippingAddress, &o.Notes,
		&subtotal, &shipping, &tax, &discount, &total, &currencyCode,
		&o.CreatedAt, &o.UpdatedAt, &o.ConfirmedAt, &o.ShippedAt, &o.DeliveredAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return o, domain.ErrNotFound
		}
		return o, err
	}

	o.Status, err = domain.ToOrderStatus(status)
	if err != nil {
		return o, fmt.Errorf("domain.ToOrderStatus[%s]: %w", status, err)
	}

	for _, field := range []struct {
		dst    *domain.Money
		amount decimal.Decimal
	}{
		{&o.Subtotal, subtotal},
		{&o.ShippingCost, shipping},
		{&o.TaxAmount, tax},
		{&o.DiscountAmount, discount},
		{&o.TotalAmount, total},
	} {
		money, err := parseMoney(field.amount, currencyCode)
		if err != nil {
			return o, fmt.Errorf("parseMoney: %w", err)
		}
		*field.dst = money
	}

	return o, nil
}

func getOrderItems(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) (items []domain.OrderItem, err error) {
	rows, err := tx.Query(ctx, `
		SELECT product_id, quantity, unit_price, currency, product_name, product_sku, created_at
		FROM order_items
		WHERE order_id = $1
		ORDER BY id`,
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			item         domain.OrderItem
			unitPrice    decimal.Decimal
			currencyCode string
		)
		if err := rows.Scan(&item.ProductID, &item.Quantity, &unitPrice, &currencyCode,
			&item.ProductName, &item.ProductSKU, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}

		item.UnitPrice, err = parseMoney(unitPrice, currencyCode)
		if err != nil {
			return nil, fmt.Errorf("parseMoney: %w", err)
		}

		items = append(items, item)
	}

	return items, rows.Err()
}

func insertOrderItems(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, items []domain.OrderItem) error {
	// TODO: batch with pgx.Batch once item counts grow beyond a handful
	for _, item := range items {
		_, err := tx.Exec(ctx, `
			INSERT INTO order_items (order_id, product_id, quantity, unit_price, currency, product_name, product_sku)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			orderID, item.ProductID, item.Quantity, item.UnitPrice.Amount,
			item.UnitPrice.Currency.String(), item.ProductName, item.ProductSKU,
		)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	return nil
}
