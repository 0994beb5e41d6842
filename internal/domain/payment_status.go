package domain

import "errors"

type PaymentStatus string

const (
	PaymentStatusPending           PaymentStatus = "pending"
	PaymentStatusProcessing        PaymentStatus = "processing"
	PaymentStatusCompleted         PaymentStatus = "completed"
	PaymentStatusFailed            PaymentStatus = "failed"
	PaymentStatusCancelled         PaymentStatus = "cancelled"
	PaymentStatusRefunded          PaymentStatus = "refunded"
	PaymentStatusPartiallyRefunded PaymentStatus = "partially_refunded"
)

var validPaymentStatuses = map[PaymentStatus]struct{}{
	PaymentStatusPending:           {},
	PaymentStatusProcessing:        {},
	PaymentStatusCompleted:         {},
	PaymentStatusFailed:            {},
	PaymentStatusCancelled:         {},
	PaymentStatusRefunded:          {},
	PaymentStatusPartiallyRefunded: {},
}

// A partially refunded payment may keep absorbing refund completions
// until the balance hits zero, hence the partially_refunded edges.
var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending:           {PaymentStatusProcessing, PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusCancelled},
	PaymentStatusProcessing:        {PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusCancelled},
	PaymentStatusCompleted:         {PaymentStatusRefunded, PaymentStatusPartiallyRefunded},
	PaymentStatusPartiallyRefunded: {PaymentStatusPartiallyRefunded, PaymentStatusRefunded},
	PaymentStatusFailed:            {},
	PaymentStatusCancelled:         {},
	PaymentStatusRefunded:          {},
}

func ToPaymentStatus(s string) (PaymentStatus, error) {
	status := PaymentStatus(s)
	if _, ok := validPaymentStatuses[status]; ok {
		return status, nil
	}

	return "", errors.New("invalid payment status")
}

func (s PaymentStatus) CanTransitionTo(target PaymentStatus) bool {
	for _, allowed := range paymentTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// Refundable reports whether new refunds may still be requested.
func (s PaymentStatus) Refundable() bool {
	return s == PaymentStatusCompleted || s == PaymentStatusPartiallyRefunded
}

// Cancellable reports whether the payment attempt may still be aborted.
func (s PaymentStatus) Cancellable() bool {
	return s == PaymentStatusPending || s == PaymentStatusProcessing
}
