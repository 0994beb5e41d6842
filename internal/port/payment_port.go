package port

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nikolayk812/ordercore/internal/domain"
)

type PaymentRepository interface {
	InsertPayment(ctx context.Context, payment domain.Payment) (uuid.UUID, error)
	GetPayment(ctx context.Context, paymentID uuid.UUID) (domain.Payment, error)

	// GetPaymentForUpdate locks the payment row for the rest of the enclosing
	// transaction. Refund approval serializes on this lock so balance and
	// payment status cannot diverge.
	GetPaymentForUpdate(ctx context.Context, paymentID uuid.UUID) (domain.Payment, error)

	// UpdateStatus is conditioned on the from status, optimistic-lock style.
	UpdateStatus(ctx context.Context, paymentID uuid.UUID, from, to domain.PaymentStatus, at time.Time) error

	// HasCompletedPayment reports whether the order has any payment in
	// completed, refunded or partially_refunded status.
	HasCompletedPayment(ctx context.Context, orderID uuid.UUID) (bool, error)

	InsertTransaction(ctx context.Context, tx domain.PaymentTransaction) (uuid.UUID, error)
	ListTransactions(ctx context.Context, paymentID uuid.UUID) ([]domain.PaymentTransaction, error)
}

type RefundRepository interface {
	InsertRefund(ctx context.Context, refund domain.Refund) (uuid.UUID, error)
	GetRefund(ctx context.Context, refundID uuid.UUID) (domain.Refund, error)

	// UpdateStatus is conditioned on the from status.
	UpdateStatus(ctx context.Context, refundID uuid.UUID, from, to domain.RefundStatus, notes string, completedAt *time.Time) error

	// SumCompletedRefunds returns the total amount already refunded for the
	// payment, i.e. the part of its amount that is no longer available.
	SumCompletedRefunds(ctx context.Context, paymentID uuid.UUID) (decimal.Decimal, error)

	ListRefunds(ctx context.Context, paymentID uuid.UUID) ([]domain.Refund, error)
}

// PaymentGateway decides the outcome of a charge attempt. The production
// implementation talks to an external processor; tests substitute outcomes.
type PaymentGateway interface {
	Charge(ctx context.Context, payment domain.Payment) (domain.PaymentStatus, error)
}
