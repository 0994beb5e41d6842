package port

import (
	"context"

	"github.com/google/uuid"

	"github.com/nikolayk812/ordercore/internal/domain"
)

type ProductRepository interface {
	InsertProduct(ctx context.Context, product domain.Product) (uuid.UUID, error)
	GetProduct(ctx context.Context, productID uuid.UUID) (domain.Product, error)

	// Reserve atomically decrements stock by qty, conditioned on the product
	// being active and having at least qty in stock. Concurrent reservations
	// for the same product cannot drive stock below zero.
	Reserve(ctx context.Context, productID uuid.UUID, qty int32) error

	// Release unconditionally returns qty to stock, compensating a
	// reservation on edit, cancellation or deletion.
	Release(ctx context.Context, productID uuid.UUID, qty int32) error
}
