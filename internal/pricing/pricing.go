// Package pricing computes every monetary field of an order on the server side.
package pricing

import (
	"errors"

	"github.com/shopspring/decimal"
)

var ErrNegativeAmount = errors.New("pricing: negative amount")

var hundred = decimal.NewFromInt(100)

// Policy is the configured tax and delivery fee applied to every order.
type Policy struct {
	TaxRatePct  decimal.Decimal
	DeliveryFee decimal.Decimal
}

func NewPolicy(taxRatePct, deliveryFee float64) Policy {
	return Policy{
		TaxRatePct:  decimal.NewFromFloat(taxRatePct),
		DeliveryFee: decimal.NewFromFloat(deliveryFee).Round(2),
	}
}

// Quote is the priced header of an order.
type Quote struct {
	Subtotal       decimal.Decimal
	TaxAmount      decimal.Decimal
	DeliveryFee    decimal.Decimal
	DiscountAmount decimal.Decimal
	TotalAmount    decimal.Decimal
}

// LineTotal returns unitPrice*qty - discount.
func LineTotal(unitPrice decimal.Decimal, qty int, discount decimal.Decimal) (decimal.Decimal, error) {
	if unitPrice.IsNegative() || qty < 0 || discount.IsNegative() {
		return decimal.Zero, ErrNegativeAmount
	}

	total := unitPrice.Mul(decimal.NewFromInt(int64(qty))).Sub(discount)
	if total.IsNegative() {
		return decimal.Zero, ErrNegativeAmount
	}
	return total.Round(2), nil
}

// DiscountedUnitPrice applies a percentage discount to a catalog base price.
func DiscountedUnitPrice(base, pct decimal.Decimal) (decimal.Decimal, error) {
	if base.IsNegative() || pct.IsNegative() || pct.GreaterThan(hundred) {
		return decimal.Zero, ErrNegativeAmount
	}
	if !pct.IsPositive() {
		return base.Round(2), nil
	}
	return base.Sub(base.Mul(pct).Div(hundred)).Round(2), nil
}

// Tax returns subtotal*ratePct/100 rounded to cents.
func Tax(subtotal, ratePct decimal.Decimal) (decimal.Decimal, error) {
	if subtotal.IsNegative() || ratePct.IsNegative() {
		return decimal.Zero, ErrNegativeAmount
	}
	return subtotal.Mul(ratePct).Div(hundred).Round(2), nil
}

// OrderTotal returns subtotal + tax + fee - discount.
func OrderTotal(subtotal, tax, fee, discount decimal.Decimal) (decimal.Decimal, error) {
	for _, v := range []decimal.Decimal{subtotal, tax, fee, discount} {
		if v.IsNegative() {
			return decimal.Zero, ErrNegativeAmount
		}
	}

	total := subtotal.Add(tax).Add(fee).Sub(discount)
	if total.IsNegative() {
		return decimal.Zero, ErrNegativeAmount
	}
	return total.Round(2), nil
}

// Price builds the order header from the item totals under the policy.
// Client-supplied totals are never an input.
func (p Policy) Price(itemTotals []decimal.Decimal, discount decimal.Decimal) (Quote, error) {
	subtotal := decimal.Zero
	for _, t := range itemTotals {
		if t.IsNegative() {
			return Quote{}, ErrNegativeAmount
		}
		subtotal = subtotal.Add(t)
	}

	tax, err := Tax(subtotal, p.TaxRatePct)
	if err != nil {
		return Quote{}, err
	}

	total, err := OrderTotal(subtotal, tax, p.DeliveryFee, discount)
	if err != nil {
		return Quote{}, err
	}

	return Quote{
		Subtotal:       subtotal.Round(2),
		TaxAmount:      tax,
		DeliveryFee:    p.DeliveryFee,
		DiscountAmount: discount.Round(2),
		TotalAmount:    total,
	}, nil
}
