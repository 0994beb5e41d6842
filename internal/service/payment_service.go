package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nikolayk812/ordercore/internal/domain"
	"github.com/nikolayk812/ordercore/internal/port"
	"github.com/nikolayk812/ordercore/internal/repository"
)

type PaymentService struct {
	pool    *pgxpool.Pool
	gateway port.PaymentGateway
	logger  *slog.Logger
}

func NewPayment(pool *pgxpool.Pool, gateway port.PaymentGateway, logger *slog.Logger) *PaymentService {
	return &PaymentService{pool: pool, gateway: gateway, logger: logger}
}

// CreatePayment opens a pending payment for an order. The amount must match
// the order's total to the cent, currency included, so a stale client cannot
// pay a price the order no longer has.
func (s *PaymentService) CreatePayment(ctx context.Context, orderID uuid.UUID, amount domain.Money, methodID *uuid.UUID, gateway, description string) (domain.Payment, error) {
	var p domain.Payment

	payment, err := repository.WithTx(ctx, s.pool, func(tx pgx.Tx) (domain.Payment, error) {
		orders := repository.NewOrderWithTx(tx)
		payments := repository.NewPaymentWithTx(tx)

		order, err := orders.GetOrder(ctx, orderID)
		if err != nil {
			return p, fmt.Errorf("orders.GetOrder: %w", err)
		}

		if order.Status != domain.OrderStatusPending && order.Status != domain.OrderStatusConfirmed {
			return p, fmt.Errorf("status %s: %w", order.Status, domain.ErrOrderNotPayable)
		}

		if amount.Currency != order.TotalAmount.Currency || !amount.Amount.Equal(order.TotalAmount.Amount) {
			return p, fmt.Errorf("got %s, order total %s: %w",
				amount, order.TotalAmount, domain.ErrAmountMismatch)
		}

		paymentID, err := payments.InsertPayment(ctx, domain.Payment{
			OrderID:         orderID,
			PaymentMethodID: methodID,
			Amount:          amount,
			Status:          domain.PaymentStatusPending,
			Gateway:         gateway,
			Description:     description,
		})
		if err != nil {
			return p, fmt.Errorf("payments.InsertPayment: %w", err)
		}

		if _, err := payments.InsertTransaction(ctx, domain.PaymentTransaction{
			PaymentID:   paymentID,
			Type:        domain.TransactionTypeCharge,
			Amount:      amount,
			Status:      domain.PaymentStatusPending,
			Description: "charge created",
		}); err != nil {
			return p, fmt.Errorf("payments.InsertTransaction: %w", err)
		}

		return payments.GetPayment(ctx, paymentID)
	})
	if err != nil {
		return p, fmt.Errorf("create payment: %w", err)
	}

	s.logger.InfoContext(ctx, "payment created",
		slog.String("payment_id", payment.ID.String()),
		slog.String("order_id", orderID.String()),
		slog.String("amount", payment.Amount.String()))

	return payment, nil
}

// ProcessPayment submits a pending payment to the gateway and records the
// outcome, completed or failed, together with its ledger entry.
func (s *PaymentService) ProcessPayment(ctx context.Context, paymentID uuid.UUID) (domain.Payment, error) {
	var p domain.Payment

	payment, err := repository.WithTx(ctx, s.pool, func(tx pgx.Tx) (domain.Payment, error) {
		payments := repository.NewPaymentWithTx(tx)

		payment, err := payments.GetPaymentForUpdate(ctx, paymentID)
		if err != nil {
			return p, fmt.Errorf("payments.GetPaymentForUpdate: %w", err)
		}

		if payment.Status != domain.PaymentStatusPending {
			return p, domain.InvalidPaymentTransitionError{From: payment.Status, To: domain.PaymentStatusCompleted}
		}

		outcome, err := s.gateway.Charge(ctx, payment)
		if err != nil {
			return p, fmt.Errorf("gateway.Charge: %w", err)
		}

		if outcome != domain.PaymentStatusCompleted && outcome != domain.PaymentStatusFailed {
			return p, fmt.Errorf("gateway returned unexpected status %s", outcome)
		}

		if err := payments.UpdateStatus(ctx, paymentID, payment.Status, outcome, time.Now().UTC()); err != nil {
			return p, fmt.Errorf("payments.UpdateStatus: %w", err)
		}

		if _, err := payments.InsertTransaction(ctx, domain.PaymentTransaction{
			PaymentID:   paymentID,
			Type:        domain.TransactionTypeCharge,
			Amount:      payment.Amount,
			Status:      outcome,
			Description: "charge processed",
		}); err != nil {
			return p, fmt.Errorf("payments.InsertTransaction: %w", err)
		}

		return payments.GetPayment(ctx, paymentID)
	})
	if err != nil {
		return p, fmt.Errorf("process payment: %w", err)
	}

	s.logger.InfoContext(ctx, "payment processed",
		slog.String("payment_id", paymentID.String()),
		slog.String("status", string(payment.Status)))

	return payment, nil
}

// CancelPayment aborts a payment attempt that has not settled yet.
func (s *PaymentService) CancelPayment(ctx context.Context, paymentID uuid.UUID, reason string) (domain.Payment, error) {
	var p domain.Payment

	payment, err := repository.WithTx(ctx, s.pool, func(tx pgx.Tx) (domain.Payment, error) {
		payments := repository.NewPaymentWithTx(tx)

		payment, err := payments.GetPaymentForUpdate(ctx, paymentID)
		if err != nil {
			return p, fmt.Errorf("payments.GetPaymentForUpdate: %w", err)
		}

		if !payment.Status.Cancellable() {
			return p, fmt.Errorf("status %s: %w", payment.Status, domain.ErrPaymentNotCancellable)
		}

		if err := payments.UpdateStatus(ctx, paymentID, payment.Status, domain.PaymentStatusCancelled, time.Now().UTC()); err != nil {
			return p, fmt.Errorf("payments.UpdateStatus: %w", err)
		}

		if _, err := payments.InsertTransaction(ctx, domain.PaymentTransaction{
			PaymentID:   paymentID,
			Type:        domain.TransactionTypeCharge,
			Amount:      payment.Amount,
			Status:      domain.PaymentStatusCancelled,
			Description: reason,
		}); err != nil {
			return p, fmt.Errorf("payments.InsertTransaction: %w", err)
		}

		return payments.GetPayment(ctx, paymentID)
	})
	if err != nil {
		return p, fmt.Errorf("cancel payment: %w", err)
	}

	s.logger.InfoContext(ctx, "payment cancelled", slog.String("payment_id", paymentID.String()))

	return payment, nil
}

// AvailableBalance is the payment amount minus all completed refunds.
func (s *PaymentService) AvailableBalance(ctx context.Context, paymentID uuid.UUID) (domain.Money, error) {
	return repository.WithTx(ctx, s.pool, func(tx pgx.Tx) (domain.Money, error) {
		return availableBalance(ctx, repository.NewPaymentWithTx(tx), repository.NewRefundWithTx(tx), paymentID)
	})
}

// RequestRefund records a pending refund against a settled payment. The
// payment row is locked so the balance check and the insert cannot race with
// a concurrent approval.
func (s *PaymentService) RequestRefund(ctx context.Context, paymentID uuid.UUID, amount domain.Money, reason domain.RefundReason, requestedBy, notes string) (domain.Refund, error) {
	var r domain.Refund

	if !amount.IsPositive() {
		return r, fmt.Errorf("refund amount must be positive, got %s", amount)
	}

	refund, err := repository.WithTx(ctx, s.pool, func(tx pgx.Tx) (domain.Refund, error) {
		payments := repository.NewPaymentWithTx(tx)
		refunds := repository.NewRefundWithTx(tx)

		payment, err := payments.GetPaymentForUpdate(ctx, paymentID)
		if err != nil {
			return r, fmt.Errorf("payments.GetPaymentForUpdate: %w", err)
		}

		if !payment.Status.Refundable() {
			return r, fmt.Errorf("status %s: %w", payment.Status, domain.ErrPaymentNotRefundable)
		}

		if amount.Currency != payment.Amount.Currency {
			return r, fmt.Errorf("refund currency %s, payment currency %s: %w",
				amount.Currency, payment.Amount.Currency, domain.ErrAmountMismatch)
		}

		balance, err := availableBalance(ctx, payments, refunds, paymentID)
		if err != nil {
			return r, err
		}

		if amount.Amount.GreaterThan(balance.Amount) {
			return r, fmt.Errorf("requested %s, available %s: %w",
				amount, balance, domain.ErrRefundExceedsBalance)
		}

		refundID, err := refunds.InsertRefund(ctx, domain.Refund{
			PaymentID:   paymentID,
			Amount:      amount,
			Reason:      reason,
			Status:      domain.RefundStatusPending,
			Notes:       notes,
			RequestedBy: requestedBy,
		})
		if err != nil {
			return r, fmt.Errorf("refunds.InsertRefund: %w", err)
		}

		return refunds.GetRefund(ctx, refundID)
	})
	if err != nil {
		return r, fmt.Errorf("request refund: %w", err)
	}

	s.logger.InfoContext(ctx, "refund requested",
		slog.String("refund_id", refund.ID.String()),
		slog.String("payment_id", paymentID.String()),
		slog.String("amount", refund.Amount.String()))

	return refund, nil
}

// ApproveRefund completes a pending refund and recomputes the payment status
// from the refunded total: refunded when the whole amount is given back,
// partially_refunded otherwise. The payment lock is taken first so two
// approvals of overlapping refunds serialize and the balance never goes
// negative.
func (s *PaymentService) ApproveRefund(ctx context.Context, refundID uuid.UUID, approvedBy string) (domain.Refund, error) {
	var r domain.Refund

	refund, err := repository.WithTx(ctx, s.pool, func(tx pgx.Tx) (domain.Refund, error) {
		payments := repository.NewPaymentWithTx(tx)
		refunds := repository.NewRefundWithTx(tx)

		refund, err := refunds.GetRefund(ctx, refundID)
		if err != nil {
			return r, fmt.Errorf("refunds.GetRefund: %w", err)
		}

		if refund.Status != domain.RefundStatusPending {
			return r, fmt.Errorf("status %s: %w", refund.Status, domain.ErrRefundNotPending)
		}

		payment, err := payments.GetPaymentForUpdate(ctx, refund.PaymentID)
		if err != nil {
			return r, fmt.Errorf("payments.GetPaymentForUpdate: %w", err)
		}

		if !payment.Status.Refundable() {
			return r, fmt.Errorf("status %s: %w", payment.Status, domain.ErrPaymentNotRefundable)
		}

		// Re-check under the lock: an approval committed between GetRefund and
		// the lock acquisition may have consumed the remaining balance.
		refunded, err := refunds.SumCompletedRefunds(ctx, refund.PaymentID)
		if err != nil {
			return r, fmt.Errorf("refunds.SumCompletedRefunds: %w", err)
		}
		if refunded.Add(refund.Amount.Amount).GreaterThan(payment.Amount.Amount) {
			return r, fmt.Errorf("refund %s exceeds remaining balance: %w",
				refund.Amount, domain.ErrRefundExceedsBalance)
		}

		now := time.Now().UTC()
		if err := refunds.UpdateStatus(ctx, refundID, domain.RefundStatusPending, domain.RefundStatusCompleted,
			fmt.Sprintf("approved by %s", approvedBy), &now); err != nil {
			return r, fmt.Errorf("refunds.UpdateStatus: %w", err)
		}

		total := refunded.Add(refund.Amount.Amount)

		target := domain.PaymentStatusPartiallyRefunded
		txType := domain.TransactionTypePartialRefund
		if total.GreaterThanOrEqual(payment.Amount.Amount) {
			target = domain.PaymentStatusRefunded
			txType = domain.TransactionTypeRefund
		}

		if err := payments.UpdateStatus(ctx, refund.PaymentID, payment.Status, target, now); err != nil {
			return r, fmt.Errorf("payments.UpdateStatus: %w", err)
		}

		if _, err := payments.InsertTransaction(ctx, domain.PaymentTransaction{
			PaymentID:   refund.PaymentID,
			Type:        txType,
			Amount:      refund.Amount,
			Status:      target,
			Description: string(refund.Reason),
		}); err != nil {
			return r, fmt.Errorf("payments.InsertTransaction: %w", err)
		}

		return refunds.GetRefund(ctx, refundID)
	})
	if err != nil {
		return r, fmt.Errorf("approve refund: %w", err)
	}

	s.logger.InfoContext(ctx, "refund approved",
		slog.String("refund_id", refundID.String()),
		slog.String("amount", refund.Amount.String()),
		slog.String("approved_by", approvedBy))

	return refund, nil
}

// RejectRefund cancels a pending refund. The payment keeps its status and
// the balance stays untouched.
func (s *PaymentService) RejectRefund(ctx context.Context, refundID uuid.UUID, note string) (domain.Refund, error) {
	var r domain.Refund

	refund, err := repository.WithTx(ctx, s.pool, func(tx pgx.Tx) (domain.Refund, error) {
		refunds := repository.NewRefundWithTx(tx)

		refund, err := refunds.GetRefund(ctx, refundID)
		if err != nil {
			return r, fmt.Errorf("refunds.GetRefund: %w", err)
		}

		if refund.Status != domain.RefundStatusPending {
			return r, fmt.Errorf("status %s: %w", refund.Status, domain.ErrRefundNotPending)
		}

		if err := refunds.UpdateStatus(ctx, refundID, domain.RefundStatusPending, domain.RefundStatusCancelled, note, nil); err != nil {
			return r, fmt.Errorf("refunds.UpdateStatus: %w", err)
		}

		return refunds.GetRefund(ctx, refundID)
	})
	if err != nil {
		return r, fmt.Errorf("reject refund: %w", err)
	}

	s.logger.InfoContext(ctx, "refund rejected", slog.String("refund_id", refundID.String()))

	return refund, nil
}

func (s *PaymentService) GetPayment(ctx context.Context, paymentID uuid.UUID) (domain.Payment, error) {
	return repository.NewPayment(s.pool).GetPayment(ctx, paymentID)
}

func (s *PaymentService) ListTransactions(ctx context.Context, paymentID uuid.UUID) ([]domain.PaymentTransaction, error) {
	return repository.NewPayment(s.pool).ListTransactions(ctx, paymentID)
}

func (s *PaymentService) ListRefunds(ctx context.Context, paymentID uuid.UUID) ([]domain.Refund, error) {
	return repository.NewRefund(s.pool).ListRefunds(ctx, paymentID)
}

func availableBalance(ctx context.Context, payments port.PaymentRepository, refunds port.RefundRepository, paymentID uuid.UUID) (domain.Money, error) {
	payment, err := payments.GetPayment(ctx, paymentID)
	if err != nil {
		return domain.Money{}, fmt.Errorf("payments.GetPayment: %w", err)
	}

	refunded, err := refunds.SumCompletedRefunds(ctx, paymentID)
	if err != nil {
		return domain.Money{}, fmt.Errorf("refunds.SumCompletedRefunds: %w", err)
	}

	return domain.NewMoney(payment.Amount.Amount.Sub(refunded), payment.Amount.Currency), nil
}
