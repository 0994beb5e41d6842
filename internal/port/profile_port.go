package port

import (
	"context"

	"github.com/google/uuid"

	"github.com/nikolayk812/ordercore/internal/domain"
)

// ProfileRepository owns the per-user records carrying a default flag.
// The invariant: for a fixed user at most one payment method and at most
// one shipping address is marked default at any committed point in time.
type ProfileRepository interface {
	InsertPaymentMethod(ctx context.Context, method domain.PaymentMethod) (uuid.UUID, error)
	ListPaymentMethods(ctx context.Context, userID string) ([]domain.PaymentMethod, error)
	SetDefaultPaymentMethod(ctx context.Context, userID string, methodID uuid.UUID) error

	InsertShippingAddress(ctx context.Context, address domain.ShippingAddress) (uuid.UUID, error)
	ListShippingAddresses(ctx context.Context, userID string) ([]domain.ShippingAddress, error)
	SetDefaultShippingAddress(ctx context.Context, userID string, addressID uuid.UUID) error
}
