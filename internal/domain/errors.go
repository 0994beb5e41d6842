package domain

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrProductInactive = errors.New("product is inactive")

	ErrOrderNotEditable  = errors.New("order is not editable in its current status")
	ErrOrderNotPayable   = errors.New("order is not payable in its current status")
	ErrOrderNotDeletable = errors.New("order has a completed payment and cannot be deleted")
	ErrDuplicateItem     = errors.New("duplicate product in order items")

	ErrAmountMismatch        = errors.New("payment amount does not match order total")
	ErrPaymentNotRefundable  = errors.New("payment is not refundable in its current status")
	ErrRefundExceedsBalance  = errors.New("refund amount exceeds available balance")
	ErrRefundNotPending      = errors.New("refund is not pending")
	ErrPaymentNotCancellable = errors.New("payment is not cancellable in its current status")

	// ErrConcurrencyConflict signals a lost optimistic-lock race;
	// the caller may re-read and resubmit.
	ErrConcurrencyConflict = errors.New("concurrent modification detected")
)

type InvalidTransitionError struct {
	From OrderStatus
	To   OrderStatus
}

func (e InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid order status transition from %q to %q", e.From, e.To)
}

type InvalidPaymentTransitionError struct {
	From PaymentStatus
	To   PaymentStatus
}

func (e InvalidPaymentTransitionError) Error() string {
	return fmt.Sprintf("invalid payment status transition from %q to %q", e.From, e.To)
}

type InsufficientStockError struct {
	ProductID uuid.UUID
	Requested int32
	Available int32
}

func (e InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}
