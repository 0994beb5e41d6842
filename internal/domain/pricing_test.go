package domain_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/currency"

	"github.com/nikolayk812/ordercore/internal/domain"
)

func moneyBRL(s string) domain.Money {
	return domain.Money{
		Amount:   decimal.RequireFromString(s),
		Currency: currency.MustParseISO("BRL"),
	}
}

func item(unitPrice string, qty int32) domain.OrderItem {
	return domain.OrderItem{
		ProductID: uuid.New(),
		Quantity:  qty,
		UnitPrice: moneyBRL(unitPrice),
	}
}

func TestComputeOrderTotals(t *testing.T) {
	tests := []struct {
		name         string
		items        []domain.OrderItem
		discount     string
		wantSubtotal string
		wantShipping string
		wantTax      string
		wantTotal    string
		wantError    string
	}{
		{
			name:         "below free shipping threshold: flat fee",
			items:        []domain.OrderItem{item("20.00", 2)},
			discount:     "0",
			wantSubtotal: "40.00",
			wantShipping: "10.00",
			wantTax:      "2.00",
			wantTotal:    "52.00",
		},
		{
			name:         "at threshold: free shipping",
			items:        []domain.OrderItem{item("25.00", 4)},
			discount:     "0",
			wantSubtotal: "100.00",
			wantShipping: "0.00",
			wantTax:      "5.00",
			wantTotal:    "105.00",
		},
		{
			name:         "above threshold with discount",
			items:        []domain.OrderItem{item("150.00", 1), item("50.00", 1)},
			discount:     "15.00",
			wantSubtotal: "200.00",
			wantShipping: "0.00",
			wantTax:      "10.00",
			wantTotal:    "195.00",
		},
		{
			name:      "no items: error",
			items:     nil,
			discount:  "0",
			wantError: "no items",
		},
		{
			name:      "negative discount: error",
			items:     []domain.OrderItem{item("10.00", 1)},
			discount:  "-1",
			wantError: "discount must not be negative",
		},
		{
			name:      "discount larger than gross: error",
			items:     []domain.OrderItem{item("10.00", 1)},
			discount:  "25.00",
			wantError: "discount 25 exceeds order total 20.5",
		},
		{
			name:         "discount equal to gross: total zero",
			items:        []domain.OrderItem{item("10.00", 1)},
			discount:     "20.50",
			wantSubtotal: "10.00",
			wantShipping: "10.00",
			wantTax:      "0.50",
			wantTotal:    "0.00",
		},
		{
			name: "mixed currencies: error",
			items: []domain.OrderItem{
				item("10.00", 1),
				{ProductID: uuid.New(), Quantity: 1, UnitPrice: domain.Money{
					Amount:   decimal.RequireFromString("10.00"),
					Currency: currency.MustParseISO("USD"),
				}},
			},
			discount:  "0",
			wantError: "currency mismatch: USD vs BRL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			totals, err := domain.ComputeOrderTotals(tt.items, decimal.RequireFromString(tt.discount))
			if tt.wantError != "" {
				require.EqualError(t, err, tt.wantError)
				return
			}
			require.NoError(t, err)

			assert.Equal(t, tt.wantSubtotal, totals.Subtotal.Amount.StringFixed(2))
			assert.Equal(t, tt.wantShipping, totals.ShippingCost.Amount.StringFixed(2))
			assert.Equal(t, tt.wantTax, totals.TaxAmount.Amount.StringFixed(2))
			assert.Equal(t, tt.wantTotal, totals.TotalAmount.Amount.StringFixed(2))
		})
	}
}

func TestValidateNewOrder(t *testing.T) {
	valid := []domain.NewOrderItem{{ProductID: uuid.New(), Quantity: 1}}

	tests := []struct {
		name       string
		userID     string
		address    string
		items      []domain.NewOrderItem
		wantFields []string
	}{
		{
			name:    "valid: ok",
			userID:  "user-1",
			address: "Rua A, 10",
			items:   valid,
		},
		{
			name:       "empty user and address",
			userID:     "",
			address:    "  ",
			items:      valid,
			wantFields: []string{"user_id", "shipping_address"},
		},
		{
			name:       "no items",
			userID:     "user-1",
			address:    "Rua A, 10",
			items:      nil,
			wantFields: []string{"items"},
		},
		{
			name:    "zero quantity and nil product id",
			userID:  "user-1",
			address: "Rua A, 10",
			items: []domain.NewOrderItem{
				{ProductID: uuid.Nil, Quantity: 0},
			},
			wantFields: []string{"items[0].product_id", "items[0].quantity"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := domain.ValidateNewOrder(tt.userID, tt.address, tt.items)
			if len(tt.wantFields) == 0 {
				require.NoError(t, err)
				return
			}

			var fieldErrs domain.FieldErrors
			require.ErrorAs(t, err, &fieldErrs)
			require.Len(t, fieldErrs, len(tt.wantFields))
			for i, field := range tt.wantFields {
				assert.Equal(t, field, fieldErrs[i].Field)
			}
		})
	}
}

func TestFindDuplicateItem(t *testing.T) {
	p := uuid.New()

	_, found := domain.FindDuplicateItem([]domain.NewOrderItem{
		{ProductID: uuid.New(), Quantity: 1},
		{ProductID: p, Quantity: 1},
	})
	assert.False(t, found)

	dup, found := domain.FindDuplicateItem([]domain.NewOrderItem{
		{ProductID: p, Quantity: 1},
		{ProductID: uuid.New(), Quantity: 2},
		{ProductID: p, Quantity: 3},
	})
	assert.True(t, found)
	assert.Equal(t, p, dup)
}
