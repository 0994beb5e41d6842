package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nikolayk812/ordercore/internal/domain"
	"github.com/nikolayk812/ordercore/internal/port"
)

type profileRepository struct {
	db DBTX
}

func NewProfile(pool *pgxpool.Pool) port.ProfileRepository {
	return &profileRepository{db: pool}
}

func NewProfileWithTx(tx pgx.Tx) port.ProfileRepository {
	return &profileRepository{db: tx}
}

func (r *profileRepository) InsertPaymentMethod(ctx context.Context, method domain.PaymentMethod) (uuid.UUID, error) {
	if method.UserID == "" {
		return uuid.Nil, errors.New("userID is empty")
	}

	var methodID uuid.UUID

	err := r.db.QueryRow(ctx, `
		INSERT INTO payment_methods (user_id, type, name, is_default, is_active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		method.UserID, string(method.Type), method.Name, method.IsDefault, method.IsActive,
	).Scan(&methodID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert payment method: %w", err)
	}

	return methodID, nil
}

func (r *profileRepository) ListPaymentMethods(ctx context.Context, userID string) (methods []domain.PaymentMethod, err error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, user_id, type, name, is_default, is_active, created_at, updated_at
		FROM payment_methods
		WHERE user_id = $1
		ORDER BY is_default DESC, created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list payment methods: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			m          domain.PaymentMethod
			methodType string
		)
		if err := rows.Scan(&m.ID, &m.UserID, &methodType, &m.Name, &m.IsDefault, &m.IsActive,
			&m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan payment method: %w", err)
		}

		m.Type = domain.PaymentMethodType(methodType)
		methods = append(methods, m)
	}

	return methods, rows.Err()
}

func (r *profileRepository) SetDefaultPaymentMethod(ctx context.Context, userID string, methodID uuid.UUID) error {
	return r.setDefault(ctx, "payment_methods", userID, methodID)
}

func (r *profileRepository) InsertShippingAddress(ctx context.Context, address domain.ShippingAddress) (uuid.UUID, error) {
	if address.UserID == "" {
		return uuid.Nil, errors.New("userID is empty")
	}

	var addressID uuid.UUID

	err := r.db.QueryRow(ctx, `
		INSERT INTO shipping_addresses (user_id, name, street, number, complement, neighborhood,
			city, state, zip_code, country, is_default)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`,
		address.UserID, address.Name, address.Street, address.Number, address.Complement,
		address.Neighborhood, address.City, address.State, address.ZipCode, address.Country,
		address.IsDefault,
	).Scan(&addressID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert shipping address: %w", err)
	}

	return addressID, nil
}

func (r *profileRepository) ListShippingAddresses(ctx context.Context, userID string) (addresses []domain.ShippingAddress, err error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, user_id, name, street, number, complement, neighborhood,
			city, state, zip_code, country, is_default, created_at, updated_at
		FROM shipping_addresses
		WHERE user_id = $1
		ORDER BY is_default DESC, created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list shipping addresses: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var a domain.ShippingAddress
		if err := rows.Scan(&a.ID, &a.UserID, &a.Name, &a.Street, &a.Number, &a.Complement,
			&a.Neighborhood, &a.City, &a.State, &a.ZipCode, &a.Country, &a.IsDefault,
			&a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan shipping address: %w", err)
		}

		addresses = append(addresses, a)
	}

	return addresses, rows.Err()
}

func (r *profileRepository) SetDefaultShippingAddress(ctx context.Context, userID string, addressID uuid.UUID) error {
	return r.setDefault(ctx, "shipping_addresses", userID, addressID)
}

// setDefault clears the previous default and sets the new one in a single
// transaction. The partial unique index on (user_id) WHERE is_default is the
// backstop: a racing writer aborts instead of committing a second default.
func (r *profileRepository) setDefault(ctx context.Context, table string, userID string, recordID uuid.UUID) error {
	if userID == "" {
		return errors.New("userID is empty")
	}
	if recordID == uuid.Nil {
		return errors.New("recordID is empty")
	}

	if err := withTxNoResult(ctx, r.db, func(tx pgx.Tx) error {
		// table is one of two compile-time constants, never caller input.
		_, err := tx.Exec(ctx,
			fmt.Sprintf(`UPDATE %s SET is_default = false, updated_at = now() WHERE user_id = $1 AND is_default`, table),
			userID,
		)
		if err != nil {
			return fmt.Errorf("clear default: %w", err)
		}

		cmdTag, err := tx.Exec(ctx,
			fmt.Sprintf(`UPDATE %s SET is_default = true, updated_at = now() WHERE id = $1 AND user_id = $2`, table),
			recordID, userID,
		)
		if err != nil {
			// The partial unique index fired: a concurrent SetDefault for the
			// same owner committed first. Caller may retry.
			if isUniqueViolation(err) {
				return fmt.Errorf("set default: %w", domain.ErrConcurrencyConflict)
			}
			return fmt.Errorf("set default: %w", err)
		}

		if cmdTag.RowsAffected() == 0 {
			return fmt.Errorf("set default: %w", domain.ErrNotFound)
		}

		return nil
	}); err != nil {
		return fmt.Errorf("withTx: %w", err)
	}

	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
