package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"

	"github.com/nikolayk812/ordercore/internal/domain"
	"github.com/nikolayk812/ordercore/internal/port"
)

type productRepository struct {
	db DBTX
}

func NewProduct(pool *pgxpool.Pool) port.ProductRepository {
	return &productRepository{db: pool}
}

func NewProductWithTx(tx pgx.Tx) port.ProductRepository {
	return &productRepository{db: tx}
}

func (r *productRepository) InsertProduct(ctx context.Context, product domain.Product) (uuid.UUID, error) {
	if product.Name == "" {
		return uuid.Nil, errors.New("product name is empty")
	}

	var productID uuid.UUID

	err := r.db.QueryRow(ctx, `
		INSERT INTO products (name, sku, price_amount, price_currency, stock_quantity, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		product.Name, product.SKU, product.Price.Amount, product.Price.Currency.String(),
		product.StockQuantity, product.IsActive,
	).Scan(&productID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert product: %w", err)
	}

	return productID, nil
}

func (r *productRepository) GetProduct(ctx context.Context, productID uuid.UUID) (domain.Product, error) {
	var (
		p            domain.Product
		priceAmount  decimal.Decimal
		currencyCode string
	)

	err := r.db.QueryRow(ctx, `
		SELECT id, name, sku, price_amount, price_currency, stock_quantity, is_active, created_at, updated_at
		FROM products
		WHERE id = $1`,
		productID,
	).Scan(&p.ID, &p.Name, &p.SKU, &priceAmount, &currencyCode, &p.StockQuantity, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return p, fmt.Errorf("get product: %w", domain.ErrNotFound)
		}
		return p, fmt.Errorf("get product: %w", err)
	}

	price, err := parseMoney(priceAmount, currencyCode)
	if err != nil {
		return p, fmt.Errorf("parseMoney: %w", err)
	}
	p.Price = price

	return p, nil
}

// Reserve decrements stock with a conditional update; the WHERE clause is
// the concurrency guard, two racing reservations cannot both take the last
// units. A zero rows-affected result is diagnosed with a follow-up read.
func (r *productRepository) Reserve(ctx context.Context, productID uuid.UUID, qty int32) error {
	if qty <= 0 {
		return errors.New("quantity must be positive")
	}

	cmdTag, err := r.db.Exec(ctx, `
		UPDATE products
		SET stock_quantity = stock_quantity - $2, updated_at = now()
		WHERE id = $1 AND is_active AND stock_quantity >= $2`,
		productID, qty,
	)
	if err != nil {
		return fmt.Errorf("reserve stock: %w", err)
	}

	if cmdTag.RowsAffected() > 0 {
		return nil
	}

	var (
		isActive  bool
		available int32
	)
	err = r.db.QueryRow(ctx, `SELECT is_active, stock_quantity FROM products WHERE id = $1`, productID).
		Scan(&isActive, &available)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("reserve stock: %w", domain.ErrNotFound)
		}
		return fmt.Errorf("reserve stock diagnose: %w", err)
	}

	if !isActive {
		return fmt.Errorf("reserve stock: %w", domain.ErrProductInactive)
	}

	return domain.InsufficientStockError{ProductID: productID, Requested: qty, Available: available}
}

func (r *productRepository) Release(ctx context.Context, productID uuid.UUID, qty int32) error {
	if qty <= 0 {
		return errors.New("quantity must be positive")
	}

	cmdTag, err := r.db.Exec(ctx, `
		UPDATE products
		SET stock_quantity = stock_quantity + $2, updated_at = now()
		WHERE id = $1`,
		productID, qty,
	)
	if err != nil {
		return fmt.Errorf("release stock: %w", err)
	}

	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("release stock: %w", domain.ErrNotFound)
	}

	return nil
}

func parseMoney(amount decimal.Decimal, code string) (domain.Money, error) {
	parsedCurrency, err := currency.ParseISO(code)
	if err != nil {
		return domain.Money{}, fmt.Errorf("currency[%s] is not valid: %w", code, err)
	}

	return domain.Money{Amount: amount, Currency: parsedCurrency}, nil
}
