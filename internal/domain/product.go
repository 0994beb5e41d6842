package domain

import (
	"time"

	"github.com/google/uuid"
)

type Product struct {
	ID            uuid.UUID
	Name          string
	SKU           string
	Price         Money
	StockQuantity int32
	IsActive      bool

	CreatedAt time.Time
	UpdatedAt time.Time
}
