package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

type RefundStatus string

const (
	RefundStatusPending   RefundStatus = "pending"
	RefundStatusCompleted RefundStatus = "completed"
	RefundStatusCancelled RefundStatus = "cancelled"
	RefundStatusFailed    RefundStatus = "failed"
)

var validRefundStatuses = map[RefundStatus]struct{}{
	RefundStatusPending:   {},
	RefundStatusCompleted: {},
	RefundStatusCancelled: {},
	RefundStatusFailed:    {},
}

func ToRefundStatus(s string) (RefundStatus, error) {
	status := RefundStatus(s)
	if _, ok := validRefundStatuses[status]; ok {
		return status, nil
	}

	return "", errors.New("invalid refund status")
}

type RefundReason string

const (
	RefundReasonCustomerRequest    RefundReason = "customer_request"
	RefundReasonDuplicateCharge    RefundReason = "duplicate_charge"
	RefundReasonFraudulent         RefundReason = "fraudulent"
	RefundReasonProductNotReceived RefundReason = "product_not_received"
	RefundReasonProductDefective   RefundReason = "product_defective"
	RefundReasonOther              RefundReason = "other"
)

type Refund struct {
	ID          uuid.UUID
	PaymentID   uuid.UUID
	Amount      Money
	Reason      RefundReason
	Status      RefundStatus
	Notes       string
	RequestedBy string

	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}
