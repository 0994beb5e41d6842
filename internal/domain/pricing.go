package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// Flat shipping fee below the free-shipping threshold, 5% tax on the
// subtotal. Values match the storefront's pricing rules.
var (
	freeShippingThreshold = decimal.NewFromInt(100)
	flatShippingFee       = decimal.RequireFromString("10.00")
	taxRate               = decimal.RequireFromString("0.05")
)

type OrderTotals struct {
	Subtotal       Money
	ShippingCost   Money
	TaxAmount      Money
	DiscountAmount Money
	TotalAmount    Money
}

// ComputeOrderTotals derives all monetary fields of an order from its items.
// All items must share one currency; the discount is applied last.
func ComputeOrderTotals(items []OrderItem, discount decimal.Decimal) (OrderTotals, error) {
	var t OrderTotals

	if len(items) == 0 {
		return t, fmt.Errorf("no items")
	}

	if discount.IsNegative() {
		return t, fmt.Errorf("discount must not be negative")
	}

	unit := items[0].UnitPrice.Currency

	subtotal := decimal.Zero
	for _, item := range items {
		if item.UnitPrice.Currency != unit {
			return t, fmt.Errorf("currency mismatch: %s vs %s", item.UnitPrice.Currency, unit)
		}
		subtotal = subtotal.Add(item.TotalPrice().Amount)
	}

	shipping := flatShippingFee
	if subtotal.GreaterThanOrEqual(freeShippingThreshold) {
		shipping = decimal.Zero
	}

	tax := subtotal.Mul(taxRate).Round(2)

	gross := subtotal.Add(shipping).Add(tax)
	if discount.GreaterThan(gross) {
		return t, fmt.Errorf("discount %s exceeds order total %s", discount, gross)
	}
	total := gross.Sub(discount)

	money := func(d decimal.Decimal) Money {
		return Money{Amount: d, Currency: unit}
	}

	return OrderTotals{
		Subtotal:       money(subtotal),
		ShippingCost:   money(shipping),
		TaxAmount:      money(tax),
		DiscountAmount: money(discount),
		TotalAmount:    money(total),
	}, nil
}

// DefaultCurrency is used where the caller does not specify one.
var DefaultCurrency = currency.MustParseISO("BRL")
