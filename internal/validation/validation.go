package validation

import (
	"fmt"
	"strings"

	"food-delivery/internal/models"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Unwrap lets callers match any validation failure with errors.Is(err, models.ErrValidation).
func (e ValidationError) Unwrap() error {
	return models.ErrValidation
}

// ValidateAddress trims every field of a in place and fails on the first blank required field.
func ValidateAddress(a *models.Address) error {
	a.Line1 = strings.TrimSpace(a.Line1)
	a.Line2 = strings.TrimSpace(a.Line2)
	a.City = strings.TrimSpace(a.City)
	a.State = strings.TrimSpace(a.State)
	a.PostalCode = strings.TrimSpace(a.PostalCode)

	required := []struct {
		field string
		value string
	}{
		{"line1", a.Line1},
		{"city", a.City},
		{"state", a.State},
		{"postal_code", a.PostalCode},
	}
	for _, r := range required {
		if r.value == "" {
			return ValidationError{
				Field:   "delivery_address." + r.field,
				Message: r.field + " is required",
			}
		}
	}
	return nil
}

func ValidateQuantity(field string, quantity int) error {
	if quantity < 1 {
		return ValidationError{
			Field:   field,
			Message: "quantity must be at least 1",
		}
	}
	return nil
}

func ValidateMenuItemRef(field, ref string) error {
	if strings.TrimSpace(ref) == "" {
		return ValidationError{
			Field:   field,
			Message: "menu item reference is required",
		}
	}
	return nil
}

// ValidateOrderLines checks that at least one line was requested and every line is well formed.
func ValidateOrderLines(lines []models.OrderLineRequest) error {
	if len(lines) == 0 {
		return ValidationError{
			Field:   "items",
			Message: "order must contain at least one item",
		}
	}

	for i, line := range lines {
		prefix := fmt.Sprintf("items[%d]", i)
		if err := ValidateMenuItemRef(prefix+".menu_item_ref", line.MenuItemRef); err != nil {
			return err
		}
		if err := ValidateQuantity(prefix+".quantity", line.Quantity); err != nil {
			return err
		}
	}
	return nil
}

// ParsePaymentMethod returns nil for an empty value and a ValidationError for an unknown one.
func ParsePaymentMethod(raw string) (*models.PaymentMethod, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	method := models.PaymentMethod(strings.ToUpper(raw))
	if !method.Valid() {
		return nil, ValidationError{
			Field:   "payment_method",
			Message: "unsupported payment method",
		}
	}
	return &method, nil
}

func ValidateCoordinates(lat, lng float64) error {
	if lat < -90 || lat > 90 {
		return ValidationError{
			Field:   "latitude",
			Message: "latitude must be between -90 and 90",
		}
	}
	if lng < -180 || lng > 180 {
		return ValidationError{
			Field:   "longitude",
			Message: "longitude must be between -180 and 180",
		}
	}
	return nil
}

func ValidateRating(rating float64) error {
	if rating < 0 || rating > 5 {
		return ValidationError{
			Field:   "rating",
			Message: "rating must be between 0 and 5",
		}
	}
	return nil
}
