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

type paymentRepository struct {
	db DBTX
}

func NewPayment(pool *pgxpool.Pool) port.PaymentRepository {
	return &paymentRepository{db: pool}
}

func NewPaymentWithTx(tx pgx.Tx) port.PaymentRepository {
	return &paymentRepository{db: tx}
}

func (r *paymentRepository) InsertPayment(ctx context.Context, payment domain.Payment) (uuid.UUID, error) {
	if payment.OrderID == uuid.Nil {
		return uuid.Nil, errors.New("orderID is empty")
	}
	if !payment.Amount.IsPositive() {
		return uuid.Nil, errors.New("amount must be positive")
	}

	var paymentID uuid.UUID

	err := r.db.QueryRow(ctx, `
		INSERT INTO payments (order_id, payment_method_id, amount, currency, status, gateway, external_id, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		payment.OrderID, payment.PaymentMethodID, payment.Amount.Amount, payment.Amount.Currency.String(),
		string(payment.Status), payment.Gateway, payment.ExternalID, payment.Description,
	).Scan(&paymentID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert payment: %w", err)
	}

	return paymentID, nil
}

func (r *paymentRepository) GetPayment(ctx context.Context, paymentID uuid.UUID) (domain.Payment, error) {
	return r.getPayment(ctx, paymentID, false)
}

func (r *paymentRepository) GetPaymentForUpdate(ctx context.Context, paymentID uuid.UUID) (domain.Payment, error) {
	return r.getPayment(ctx, paymentID, true)
}

func (r *paymentRepository) getPayment(ctx context.Context, paymentID uuid.UUID, forUpdate bool) (domain.Payment, error) {
	var (
		p            domain.Payment
		status       string
		amount       decimal.Decimal
		currencyCode string
	)

	query := `
		SELECT id, order_id, payment_method_id, amount, currency, status, gateway, external_id, description,
			created_at, updated_at, processed_at, completed_at
		FROM payments
		WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	err := r.db.QueryRow(ctx, query, paymentID).
		Scan(&p.ID, &p.OrderID, &p.PaymentMethodID, &amount, &currencyCode, &status,
			&p.Gateway, &p.ExternalID, &p.Description,
			&p.CreatedAt, &p.UpdatedAt, &p.ProcessedAt, &p.CompletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return p, fmt.Errorf("get payment: %w", domain.ErrNotFound)
		}
		return p, fmt.Errorf("get payment: %w", err)
	}

	p.Status, err = domain.ToPaymentStatus(status)
	if err != nil {
		return p, fmt.Errorf("domain.ToPaymentStatus[%s]: %w", status, err)
	}

	p.Amount, err = parseMoney(amount, currencyCode)
	if err != nil {
		return p, fmt.Errorf("parseMoney: %w", err)
	}

	return p, nil
}

func (r *paymentRepository) UpdateStatus(ctx context.Context, paymentID uuid.UUID, from, to domain.PaymentStatus, at time.Time) error {
	if paymentID == uuid.Nil {
		return errors.New("paymentID is empty")
	}
	if to == "" {
		return errors.New("status is empty")
	}

	cmdTag, err := r.db.Exec(ctx, `
		UPDATE payments
		SET status = $3,
			updated_at = $4,
			processed_at = CASE WHEN $3 IN ('completed', 'failed') THEN $4 ELSE processed_at END,
			completed_at = CASE WHEN $3 = 'completed' THEN $4 ELSE completed_at END
		WHERE id = $1 AND status = $2`,
		paymentID, string(from), string(to), at,
	)
	if err != nil {
		return fmt.Errorf("update payment status: %w", err)
	}

	if cmdTag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM payments WHERE id = $1)`, paymentID).Scan(&exists); err != nil {
		return fmt.Errorf("update payment status diagnose: %w", err)
	}

	if !exists {
		return fmt.Errorf("update payment status: %w", domain.ErrNotFound)
	}
	return fmt.Errorf("update payment status: %w", domain.ErrConcurrencyConflict)
}

func (r *paymentRepository) HasCompletedPayment(ctx context.Context, orderID uuid.UUID) (bool, error) {
	var exists bool

	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM payments
			WHERE order_id = $1 AND status IN ('completed', 'refunded', 'partially_refunded')
		)`,
		orderID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("has completed payment: %w", err)
	}

	return exists, nil
}

func (r *paymentRepository) InsertTransaction(ctx context.Context, entry domain.PaymentTransaction) (uuid.UUID, error) {
	if entry.PaymentID == uuid.Nil {
		return uuid.Nil, errors.New("paymentID is empty")
	}

	var transactionID uuid.UUID

	err := r.db.QueryRow(ctx, `
		INSERT INTO payment_transactions (payment_id, type, amount, currency, status, description)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		entry.PaymentID, string(entry.Type), entry.Amount.Amount, entry.Amount.Currency.String(),
		string(entry.Status), entry.Description,
	).Scan(&transactionID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert payment transaction: %w", err)
	}

	return transactionID, nil
}

func (r *paymentRepository) ListTransactions(ctx context.Context, paymentID uuid.UUID) (entries []domain.PaymentTransaction, err error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, payment_id, type, amount, currency, status, description, created_at
		FROM payment_transactions
		WHERE payment_id = $1
		ORDER BY created_at, id`,
		paymentID,
	)
	if err != nil {
		return nil, fmt.Errorf("list payment transactions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			entry        domain.PaymentTransaction
			txType       string
			status       string
			amount       decimal.Decimal
			currencyCode string
		)
		if err := rows.Scan(&entry.ID, &entry.PaymentID, &txType, &amount, &currencyCode,
			&status, &entry.Description, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan payment transaction: %w", err)
		}

		entry.Type = domain.TransactionType(txType)

		entry.Status, err = domain.ToPaymentStatus(status)
		if err != nil {
			return nil, fmt.Errorf("domain.ToPaymentStatus[%s]: %w", status, err)
		}

		entry.Amount, err = parseMoney(amount, currencyCode)
		if err != nil {
			return nil, fmt.Errorf("parseMoney: %w", err)
		}

		entries = append(entries, entry)
	}

	return entries, rows.Err()
}
