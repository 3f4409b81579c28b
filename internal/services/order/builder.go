package order

import (
	"context"
	"fmt"
	"time"

	"food-delivery/internal/catalog"
	"food-delivery/internal/models"
	"food-delivery/internal/pricing"
	"food-delivery/internal/validation"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// draft is the validated input of a new order.
type draft struct {
	ownerID       string
	address       models.Address
	lines         []models.OrderLineRequest
	paymentMethod *models.PaymentMethod
	couponCode    *string
}

// build resolves every line against the catalog and assembles a priced order
// in PLACED state. Nothing is persisted.
func (s *Service) build(ctx context.Context, d draft) (*models.Order, error) {
	refs := make([]string, len(d.lines))
	for i, l := range d.lines {
		refs[i] = l.MenuItemRef
	}

	items, err := catalog.ResolveAll(ctx, s.catalog, refs, s.parallelism)
	if err != nil {
		return nil, err
	}

	now := s.lifecycle.Now()
	order := &models.Order{
		ID:              uuid.NewString(),
		OrderNumber:     models.GenerateOrderNumber(),
		OwnerID:         d.ownerID,
		OrderDate:       now,
		Status:          models.OrderPlaced,
		PaymentMethod:   d.paymentMethod,
		PaymentStatus:   models.PaymentPending,
		DeliveryAddress: d.address,
		CouponCode:      d.couponCode,
		RefundAmount:    decimal.Zero,
		Items:           make([]models.OrderItem, 0, len(d.lines)),
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	totals := make([]decimal.Decimal, 0, len(d.lines))
	for i, item := range items {
		if !item.Available {
			return nil, fmt.Errorf("%w: %s is not available", models.ErrUnavailable, item.Name)
		}
		if order.RestaurantID == "" {
			order.RestaurantID = item.RestaurantID
		} else if item.RestaurantID != order.RestaurantID {
			return nil, validation.ValidationError{
				Field:   fmt.Sprintf("items[%d].menu_item_ref", i),
				Message: "all items must come from the same restaurant",
			}
		}

		line, err := snapshot(order.ID, item, d.lines[i])
		if err != nil {
			return nil, err
		}
		order.Items = append(order.Items, line)
		totals = append(totals, line.TotalPrice)
	}

	// Coupons are recorded only, so no header discount applies.
	quote, err := s.policy.Price(totals, decimal.Zero)
	if err != nil {
		return nil, fmt.Errorf("price order: %w", err)
	}
	order.Subtotal = quote.Subtotal
	order.TaxAmount = quote.TaxAmount
	order.DeliveryFee = quote.DeliveryFee
	order.DiscountAmount = quote.DiscountAmount
	order.TotalAmount = quote.TotalAmount

	return order, nil
}

// snapshot freezes the catalog view of one item. The percentage discount is
// folded into the unit price, so the line carries no separate discount amount.
func snapshot(orderID string, item catalog.MenuItem, req models.OrderLineRequest) (models.OrderItem, error) {
	unit, err := pricing.DiscountedUnitPrice(item.Price, item.DiscountPct)
	if err != nil {
		return models.OrderItem{}, fmt.Errorf("price %s: %w", item.Ref, err)
	}
	total, err := pricing.LineTotal(unit, req.Quantity, decimal.Zero)
	if err != nil {
		return models.OrderItem{}, fmt.Errorf("price %s: %w", item.Ref, err)
	}

	return models.OrderItem{
		ID:                  uuid.NewString(),
		OrderID:             orderID,
		MenuItemRef:         item.Ref,
		Quantity:            req.Quantity,
		UnitPrice:           unit,
		DiscountPercentage:  item.DiscountPct,
		DiscountAmount:      decimal.Zero,
		TotalPrice:          total,
		ItemName:            item.Name,
		ItemDescription:     item.Description,
		ItemImageURL:        item.ImageURL,
		ItemType:            item.Type,
		SpecialInstructions: req.SpecialInstructions,
	}, nil
}

// placedEntry is the first status log entry of every order.
func placedEntry(o *models.Order, changedBy string, at time.Time) models.StatusLogEntry {
	return models.StatusLogEntry{
		EntityType: models.EntityOrder,
		EntityID:   o.ID,
		FromStatus: "",
		ToStatus:   string(models.OrderPlaced),
		ChangedBy:  changedBy,
		ChangedAt:  at,
	}
}
