package pricing

import "errors"

// Money represents a monetary value in whole currency units.
type Money = int64

// ErrInsufficientPayment is returned when the amount paid does not cover the total.
var ErrInsufficientPayment = errors.New("amount paid is less than total")

// Adjustment is a named price delta contributed by a variant or modifier.
type Adjustment struct {
	Name   string
	Amount Money
}

// Item describes a line item used for pricing calculation.
type Item struct {
	Qty       int
	UnitPrice Money
}

// UnitPrice returns base plus the variant delta (if any) plus every modifier delta.
func UnitPrice(base Money, variant *Adjustment, modifiers []Adjustment) Money {
	price := base
	if variant != nil {
		price += variant.Amount
	}
	for _, m := range modifiers {
		price += m.Amount
	}
	return price
}

// LineTotal multiplies a unit price by quantity.
func LineTotal(unit Money, qty int) Money {
	return unit * Money(qty)
}

// Total sums line totals, skipping non-positive quantities.
func Total(items []Item) Money {
	var total Money
	for _, it := range items {
		if it.Qty <= 0 {
			continue
		}
		total += LineTotal(it.UnitPrice, it.Qty)
	}
	return total
}

// Change computes paid minus total. It never returns a negative amount.
func Change(total, paid Money) (Money, error) {
	if paid < total {
		return 0, ErrInsufficientPayment
	}
	return paid - total, nil
}
