package service

import (
	"context"

	"github.com/nikolayk812/ordercore/internal/domain"
	"github.com/nikolayk812/ordercore/internal/port"
)

// GatewayFunc adapts a plain function to the PaymentGateway interface.
type GatewayFunc func(ctx context.Context, payment domain.Payment) (domain.PaymentStatus, error)

func (f GatewayFunc) Charge(ctx context.Context, payment domain.Payment) (domain.PaymentStatus, error) {
	return f(ctx, payment)
}

// ApproveAllGateway accepts every charge. Useful for local runs where no
// processor is wired up.
func ApproveAllGateway() port.PaymentGateway {
	return GatewayFunc(func(_ context.Context, _ domain.Payment) (domain.PaymentStatus, error) {
		return domain.PaymentStatusCompleted, nil
	})
}
