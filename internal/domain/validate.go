package domain

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// FieldErrors aggregates all validation failures of a request in a single
// pass, so callers see every problem at once and no mutation starts on
// invalid input.
type FieldErrors []FieldError

func (e FieldErrors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, fe := range e {
		msgs = append(msgs, fe.Error())
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// ValidateNewOrder checks request shape only; stock and product existence
// are checked later inside the transaction.
func ValidateNewOrder(userID, shippingAddress string, items []NewOrderItem) error {
	var errs FieldErrors

	if userID == "" {
		errs = append(errs, FieldError{Field: "user_id", Message: "must not be empty"})
	}

	if strings.TrimSpace(shippingAddress) == "" {
		errs = append(errs, FieldError{Field: "shipping_address", Message: "must not be empty"})
	}

	errs = append(errs, validateItems(items)...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// ValidateOrderItems is the item-only pass used when editing an order.
func ValidateOrderItems(items []NewOrderItem) error {
	if errs := validateItems(items); len(errs) > 0 {
		return errs
	}
	return nil
}

func validateItems(items []NewOrderItem) FieldErrors {
	var errs FieldErrors

	if len(items) == 0 {
		errs = append(errs, FieldError{Field: "items", Message: "order must have at least one item"})
	}

	for i, item := range items {
		if item.ProductID == uuid.Nil {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("items[%d].product_id", i),
				Message: "must not be empty",
			})
		}
		if item.Quantity <= 0 {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("items[%d].quantity", i),
				Message: "must be greater than zero",
			})
		}
	}

	return errs
}

// FindDuplicateItem returns the first product id appearing more than once.
func FindDuplicateItem(items []NewOrderItem) (uuid.UUID, bool) {
	seen := make(map[uuid.UUID]struct{}, len(items))
	for _, item := range items {
		if _, ok := seen[item.ProductID]; ok {
			return item.ProductID, true
		}
		seen[item.ProductID] = struct{}{}
	}
	return uuid.Nil, false
}
