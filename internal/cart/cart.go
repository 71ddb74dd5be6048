package cart

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/noah-isme/kasir-kopi/internal/catalog"
	"github.com/noah-isme/kasir-kopi/internal/common"
	"github.com/noah-isme/kasir-kopi/internal/pricing"
)

var (
	// ErrEmpty is returned when settling or holding a cart with no lines.
	ErrEmpty = common.NewCodedError("EMPTY_CART", http.StatusUnprocessableEntity, "cart is empty")
	// ErrInvalidOption is returned for a variant or modifier the product does not declare.
	ErrInvalidOption = common.NewCodedError("INVALID_OPTION", http.StatusUnprocessableEntity, "invalid product option")
	// ErrLineNotFound is returned for an out of range line index.
	ErrLineNotFound = common.NewCodedError("LINE_NOT_FOUND", http.StatusNotFound, "cart line not found")
)

// ProductSnapshot is the denormalized product data persisted with a sale or tab.
type ProductSnapshot struct {
	ID       string           `json:"id"`
	Name     string           `json:"name"`
	Price    int64            `json:"price"`
	Category catalog.Category `json:"category"`
	ImageURL string           `json:"imageUrl,omitempty"`
}

// LineSnapshot is a persisted cart line. It carries no recipe or option
// catalogue, only what was sold.
type LineSnapshot struct {
	Product           ProductSnapshot    `json:"product"`
	Quantity          int                `json:"quantity"`
	SelectedVariant   *catalog.Variant   `json:"selectedVariant,omitempty"`
	SelectedModifiers []catalog.Modifier `json:"selectedModifiers,omitempty"`
	UnitPrice         pricing.Money      `json:"unitPrice"`
	TotalPrice        pricing.Money      `json:"totalPrice"`
}

// Line is an editable cart line holding a full product copy, so recipes and
// options stay available for stock reservation and further edits.
type Line struct {
	Product    catalog.Product    `json:"product"`
	Quantity   int                `json:"quantity"`
	Variant    *catalog.Variant   `json:"variant,omitempty"`
	Modifiers  []catalog.Modifier `json:"modifiers,omitempty"`
	UnitPrice  pricing.Money      `json:"unitPrice"`
	TotalPrice pricing.Money      `json:"totalPrice"`
}

// Key identifies the line configuration: product, variant name and the
// order-independent set of modifier names.
func (l Line) Key() string {
	return lineKey(l.Product.ID, l.Variant, l.Modifiers)
}

func lineKey(productID string, variant *catalog.Variant, modifiers []catalog.Modifier) string {
	names := make([]string, len(modifiers))
	for i, m := range modifiers {
		names[i] = m.Name
	}
	sort.Strings(names)
	v := ""
	if variant != nil {
		v = variant.Name
	}
	return productID + "\x00" + v + "\x00" + strings.Join(names, "\x00")
}

// Snapshot strips the live product down to its persisted form.
func (l Line) Snapshot() LineSnapshot {
	snap := LineSnapshot{
		Product: ProductSnapshot{
			ID:       l.Product.ID,
			Name:     l.Product.Name,
			Price:    l.Product.Price,
			Category: l.Product.Category,
			ImageURL: l.Product.ImageURL,
		},
		Quantity:   l.Quantity,
		UnitPrice:  l.UnitPrice,
		TotalPrice: l.TotalPrice,
	}
	if l.Variant != nil {
		v := *l.Variant
		snap.SelectedVariant = &v
	}
	if len(l.Modifiers) > 0 {
		snap.SelectedModifiers = append([]catalog.Modifier(nil), l.Modifiers...)
	}
	return snap
}

// Cart is the ordered list of lines owned by one checkout session.
type Cart struct {
	lines []Line
}

// New returns an empty cart.
func New() *Cart {
	return &Cart{}
}

// FromLines rebuilds a cart from stored lines. Lines with a non-positive
// quantity are dropped, totals are recomputed from the stored unit price and
// lines sharing a configuration are merged.
func FromLines(lines []Line) *Cart {
	c := New()
	index := make(map[string]int, len(lines))
	for _, l := range lines {
		if l.Quantity <= 0 {
			continue
		}
		if i, ok := index[l.Key()]; ok {
			c.lines[i].Quantity += l.Quantity
			c.lines[i].TotalPrice = pricing.LineTotal(c.lines[i].UnitPrice, c.lines[i].Quantity)
			continue
		}
		l.Modifiers = append([]catalog.Modifier(nil), l.Modifiers...)
		l.TotalPrice = pricing.LineTotal(l.UnitPrice, l.Quantity)
		index[l.Key()] = len(c.lines)
		c.lines = append(c.lines, l)
	}
	return c
}

// AddItem adds one unit of product configured with the named variant and
// modifiers. Adjustments come from the product, never from the caller. An
// identical configuration merges into the existing line, which is re-priced
// at the current unit price.
func (c *Cart) AddItem(product catalog.Product, variantName string, modifierNames []string) error {
	variant, modifiers, err := resolveOptions(product, variantName, modifierNames)
	if err != nil {
		return err
	}
	unit := pricing.UnitPrice(product.Price, variant, modifiers)
	selVariant := optionVariant(product, variantName)
	selModifiers := optionModifiers(product, modifierNames)
	key := lineKey(product.ID, selVariant, selModifiers)
	for i := range c.lines {
		if c.lines[i].Key() != key {
			continue
		}
		l := &c.lines[i]
		l.Product = product
		l.Variant = selVariant
		l.Modifiers = selModifiers
		l.Quantity++
		l.UnitPrice = unit
		l.TotalPrice = pricing.LineTotal(unit, l.Quantity)
		return nil
	}
	c.lines = append(c.lines, Line{
		Product:    product,
		Quantity:   1,
		Variant:    selVariant,
		Modifiers:  selModifiers,
		UnitPrice:  unit,
		TotalPrice: unit,
	})
	return nil
}

func resolveOptions(product catalog.Product, variantName string, modifierNames []string) (*pricing.Adjustment, []pricing.Adjustment, error) {
	var variant *pricing.Adjustment
	switch {
	case variantName != "":
		v, ok := product.Variant(variantName)
		if !ok {
			return nil, nil, fmt.Errorf("%w: %s has no variant %q", ErrInvalidOption, product.Name, variantName)
		}
		variant = &pricing.Adjustment{Name: v.Name, Amount: v.PriceAdjustment}
	case len(product.Variants) > 0:
		return nil, nil, fmt.Errorf("%w: %s requires a variant", ErrInvalidOption, product.Name)
	}
	seen := make(map[string]struct{}, len(modifierNames))
	modifiers := make([]pricing.Adjustment, 0, len(modifierNames))
	for _, name := range modifierNames {
		if _, dup := seen[name]; dup {
			return nil, nil, fmt.Errorf("%w: modifier %q selected twice", ErrInvalidOption, name)
		}
		seen[name] = struct{}{}
		m, ok := product.Modifier(name)
		if !ok {
			return nil, nil, fmt.Errorf("%w: %s has no modifier %q", ErrInvalidOption, product.Name, name)
		}
		modifiers = append(modifiers, pricing.Adjustment{Name: m.Name, Amount: m.PriceAdjustment})
	}
	return variant, modifiers, nil
}

func optionVariant(product catalog.Product, name string) *catalog.Variant {
	if name == "" {
		return nil
	}
	v, _ := product.Variant(name)
	return &v
}

func optionModifiers(product catalog.Product, names []string) []catalog.Modifier {
	if len(names) == 0 {
		return nil
	}
	out := make([]catalog.Modifier, 0, len(names))
	for _, name := range names {
		m, _ := product.Modifier(name)
		out = append(out, m)
	}
	return out
}

// UpdateQuantity adds delta to the line at index. A result of zero or less
// removes the line.
func (c *Cart) UpdateQuantity(index, delta int) error {
	if index < 0 || index >= len(c.lines) {
		return ErrLineNotFound
	}
	l := &c.lines[index]
	qty := l.Quantity + delta
	if qty <= 0 {
		c.lines = append(c.lines[:index], c.lines[index+1:]...)
		return nil
	}
	l.Quantity = qty
	l.TotalPrice = pricing.LineTotal(l.UnitPrice, qty)
	return nil
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.lines = nil
}

// Len returns the number of lines.
func (c *Cart) Len() int {
	if c == nil {
		return 0
	}
	return len(c.lines)
}

// Total sums every line total.
func (c *Cart) Total() pricing.Money {
	if c == nil {
		return 0
	}
	items := make([]pricing.Item, len(c.lines))
	for i, l := range c.lines {
		items[i] = pricing.Item{Qty: l.Quantity, UnitPrice: l.UnitPrice}
	}
	return pricing.Total(items)
}

// Lines returns a copy of the cart lines.
func (c *Cart) Lines() []Line {
	if c == nil {
		return nil
	}
	out := make([]Line, len(c.lines))
	for i, l := range c.lines {
		l.Modifiers = append([]catalog.Modifier(nil), l.Modifiers...)
		out[i] = l
	}
	return out
}

// Snapshot returns the persisted form of every line.
func (c *Cart) Snapshot() []LineSnapshot {
	if c == nil {
		return nil
	}
	out := make([]LineSnapshot, len(c.lines))
	for i, l := range c.lines {
		out[i] = l.Snapshot()
	}
	return out
}

type cartJSON struct {
	Lines []Line `json:"lines"`
}

// MarshalJSON implements json.Marshaler.
func (c *Cart) MarshalJSON() ([]byte, error) {
	lines := c.Lines()
	if lines == nil {
		lines = []Line{}
	}
	return json.Marshal(cartJSON{Lines: lines})
}

// UnmarshalJSON implements json.Unmarshaler through FromLines.
func (c *Cart) UnmarshalJSON(data []byte) error {
	var raw cartJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*c = *FromLines(raw.Lines)
	return nil
}
