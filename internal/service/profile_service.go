package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nikolayk812/ordercore/internal/domain"
	"github.com/nikolayk812/ordercore/internal/port"
	"github.com/nikolayk812/ordercore/internal/repository"
)

// ProfileService manages a user's saved payment methods and shipping
// addresses. At most one of each can be the default per user; the repository
// enforces it transactionally.
type ProfileService struct {
	profiles port.ProfileRepository
	logger   *slog.Logger
}

func NewProfile(pool *pgxpool.Pool, logger *slog.Logger) *ProfileService {
	return &ProfileService{profiles: repository.NewProfile(pool), logger: logger}
}

func (s *ProfileService) AddPaymentMethod(ctx context.Context, method domain.PaymentMethod) (uuid.UUID, error) {
	// Insert as non-default first, then promote. Inserting is_default
	// directly would collide with the partial unique index when the user
	// already has a default.
	wantDefault := method.IsDefault
	method.IsDefault = false

	methodID, err := s.profiles.InsertPaymentMethod(ctx, method)
	if err != nil {
		return uuid.Nil, fmt.Errorf("add payment method: %w", err)
	}

	if wantDefault {
		if err := s.profiles.SetDefaultPaymentMethod(ctx, method.UserID, methodID); err != nil {
			return uuid.Nil, fmt.Errorf("add payment method: %w", err)
		}
	}

	s.logger.InfoContext(ctx, "payment method added",
		slog.String("method_id", methodID.String()),
		slog.String("user_id", method.UserID))

	return methodID, nil
}

func (s *ProfileService) SetDefaultPaymentMethod(ctx context.Context, userID string, methodID uuid.UUID) error {
	if err := s.profiles.SetDefaultPaymentMethod(ctx, userID, methodID); err != nil {
		return fmt.Errorf("set default payment method: %w", err)
	}

	s.logger.InfoContext(ctx, "default payment method set",
		slog.String("user_id", userID),
		slog.String("method_id", methodID.String()))

	return nil
}

func (s *ProfileService) ListPaymentMethods(ctx context.Context, userID string) ([]domain.PaymentMethod, error) {
	return s.profiles.ListPaymentMethods(ctx, userID)
}

func (s *ProfileService) AddShippingAddress(ctx context.Context, address domain.ShippingAddress) (uuid.UUID, error) {
	wantDefault := address.IsDefault
	address.IsDefault = false

	addressID, err := s.profiles.InsertShippingAddress(ctx, address)
	if err != nil {
		return uuid.Nil, fmt.Errorf("add shipping address: %w", err)
	}

	if wantDefault {
		if err := s.profiles.SetDefaultShippingAddress(ctx, address.UserID, addressID); err != nil {
			return uuid.Nil, fmt.Errorf("add shipping address: %w", err)
		}
	}

	s.logger.InfoContext(ctx, "shipping address added",
		slog.String("address_id", addressID.String()),
		slog.String("user_id", address.UserID))

	return addressID, nil
}

func (s *ProfileService) SetDefaultShippingAddress(ctx context.Context, userID string, addressID uuid.UUID) error {
	if err := s.profiles.SetDefaultShippingAddress(ctx, userID, addressID); err != nil {
		return fmt.Errorf("set default shipping address: %w", err)
	}

	s.logger.InfoContext(ctx, "default shipping address set",
		slog.String("user_id", userID),
		slog.String("address_id", addressID.String()))

	return nil
}

func (s *ProfileService) ListShippingAddresses(ctx context.Context, userID string) ([]domain.ShippingAddress, error) {
	return s.profiles.ListShippingAddresses(ctx, userID)
}
