package domain

import (
	"time"

	"github.com/google/uuid"
)

type PaymentMethodType string

const (
	PaymentMethodCreditCard   PaymentMethodType = "credit_card"
	PaymentMethodDebitCard    PaymentMethodType = "debit_card"
	PaymentMethodPayPal       PaymentMethodType = "paypal"
	PaymentMethodPix          PaymentMethodType = "pix"
	PaymentMethodBankTransfer PaymentMethodType = "bank_transfer"
	PaymentMethodBoleto       PaymentMethodType = "boleto"
)

type PaymentMethod struct {
	ID        uuid.UUID
	UserID    string
	Type      PaymentMethodType
	Name      string
	IsDefault bool
	IsActive  bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

type Payment struct {
	ID              uuid.UUID
	OrderID         uuid.UUID
	PaymentMethodID *uuid.UUID
	Amount          Money
	Status          PaymentStatus
	Gateway         string
	ExternalID      string
	Description     string

	CreatedAt   time.Time
	UpdatedAt   time.Time
	ProcessedAt *time.Time
	CompletedAt *time.Time
}

type TransactionType string

const (
	TransactionTypeCharge        TransactionType = "charge"
	TransactionTypeRefund        TransactionType = "refund"
	TransactionTypePartialRefund TransactionType = "partial_refund"
	TransactionTypeChargeback    TransactionType = "chargeback"
	TransactionTypeFee           TransactionType = "fee"
)

// PaymentTransaction is an append-only ledger row; one is written for
// every payment lifecycle event.
type PaymentTransaction struct {
	ID          uuid.UUID
	PaymentID   uuid.UUID
	Type        TransactionType
	Amount      Money
	Status      PaymentStatus
	Description string

	CreatedAt time.Time
}
