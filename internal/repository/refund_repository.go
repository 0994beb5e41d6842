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

type refundRepository struct {
	db DBTX
}

func NewRefund(pool *pgxpool.Pool) port.RefundRepository {
	return &refundRepository{db: pool}
}

func NewRefundWithTx(tx pgx.Tx) port.RefundRepository {
	return &refundRepository{db: tx}
}

func (r *refundRepository) InsertRefund(ctx context.Context, refund domain.Refund) (uuid.UUID, error) {
	if refund.PaymentID == uuid.Nil {
		return uuid.Nil, errors.New("paymentID is empty")
	}
	if !refund.Amount.IsPositive() {
		return uuid.Nil, errors.New("amount must be positive")
	}

	var refundID uuid.UUID

	err := r.db.QueryRow(ctx, `
		INSERT INTO refunds (payment_id, amount, currency, reason, status, notes, requested_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		refund.PaymentID, refund.Amount.Amount, refund.Amount.Currency.String(),
		string(refund.Reason), string(refund.Status), refund.Notes, refund.RequestedBy,
	).Scan(&refundID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert refund: %w", err)
	}

	return refundID, nil
}

func (r *refundRepository) GetRefund(ctx context.Context, refundID uuid.UUID) (domain.Refund, error) {
	var (
		refund       domain.Refund
		status       string
		reason       string
		amount       decimal.Decimal
		currencyCode string
	)

	err := r.db.QueryRow(ctx, `
		SELECT id, payment_id, amount, currency, reason, status, notes, requested_by,
			created_at, updated_at, completed_at
		FROM refunds
		WHERE id = $1`,
		refundID,
	).Scan(&refund.ID, &refund.PaymentID, &amount, &currencyCode, &reason, &status,
		&refund.Notes, &refund.RequestedBy, &refund.CreatedAt, &refund.UpdatedAt, &refund.CompletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return refund, fmt.Errorf("get refund: %w", domain.ErrNotFound)
		}
		return refund, fmt.Errorf("get refund: %w", err)
	}

	refund.Reason = domain.RefundReason(reason)

	refund.Status, err = domain.ToRefundStatus(status)
	if err != nil {
		return refund, fmt.Errorf("domain.ToRefundStatus[%s]: %w", status, err)
	}

	refund.Amount, err = parseMoney(amount, currencyCode)
	if err != nil {
		return refund, fmt.Errorf("parseMoney: %w", err)
	}

	return refund, nil
}

func (r *refundRepository) UpdateStatus(ctx context.Context, refundID uuid.UUID, from, to domain.RefundStatus, notes string, completedAt *time.Time) error {
	if refundID == uuid.Nil {
		return errors.New("refundID is empty")
	}

	cmdTag, err := r.db.Exec(ctx, `
		UPDATE refunds
		SET status = $3,
			notes = CASE WHEN $4 <> '' THEN $4 ELSE notes END,
			completed_at = COALESCE($5, completed_at),
			updated_at = now()
		WHERE id = $1 AND status = $2`,
		refundID, string(from), string(to), notes, completedAt,
	)
	if err != nil {
		return fmt.Errorf("update refund status: %w", err)
	}

	if cmdTag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM refunds WHERE id = $1)`, refundID).Scan(&exists); err != nil {
		return fmt.Errorf("update refund status diagnose: %w", err)
	}

	if !exists {
		return fmt.Errorf("update refund status: %w", domain.ErrNotFound)
	}
	return fmt.Errorf("update refund status: %w", domain.ErrConcurrencyConflict)
}

func (r *refundRepository) SumCompletedRefunds(ctx context.Context, paymentID uuid.UUID) (decimal.Decimal, error) {
	var sum decimal.Decimal

	err := r.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0)
		FROM refunds
		WHERE payment_id = $1 AND status = 'completed'`,
		paymentID,
	).Scan(&sum)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum completed refunds: %w", err)
	}

	return sum, nil
}

func (r *refundRepository) ListRefunds(ctx context.Context, paymentID uuid.UUID) (refunds []domain.Refund, err error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, payment_id, amount, currency, reason, status, notes, requested_by,
			created_at, updated_at, completed_at
		FROM refunds
		WHERE payment_id = $1
		ORDER BY created_at, id`,
		paymentID,
	)
	if err != nil {
		return nil, fmt.Errorf("list refunds: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			refund       domain.Refund
			status       string
			reason       string
			amount       decimal.Decimal
			currencyCode string
		)
		if err := rows.Scan(&refund.ID, &refund.PaymentID, &amount, &currencyCode, &reason, &status,
			&refund.Notes, &refund.RequestedBy, &refund.CreatedAt, &refund.UpdatedAt, &refund.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan refund: %w", err)
		}

		refund.Reason = domain.RefundReason(reason)

		refund.Status, err = domain.ToRefundStatus(status)
		if err != nil {
			return nil, fmt.Errorf("domain.ToRefundStatus[%s]: %w", status, err)
		}

		refund.Amount, err = parseMoney(amount, currencyCode)
		if err != nil {
			return nil, fmt.Errorf("parseMoney: %w", err)
		}

		refunds = append(refunds, refund)
	}

	return refunds, rows.Err()
}
