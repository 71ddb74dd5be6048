package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/kasir-kopi/internal/catalog"
	"github.com/noah-isme/kasir-kopi/internal/docstore"
)

// Ledger is the only writer of ingredient stock during settlement. Every
// method runs against a unit of work so reads and writes share one snapshot.
type Ledger struct{}

func ref(id string) docstore.Ref {
	return docstore.Ref{Collection: Collection, ID: id}
}

// ReadStock loads an ingredient inside tx.
func (Ledger) ReadStock(ctx context.Context, tx docstore.Tx, id string) (Ingredient, error) {
	doc, err := tx.Get(ctx, ref(id))
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return Ingredient{}, ErrIngredientNotFound
		}
		return Ingredient{}, fmt.Errorf("read stock %s: %w", id, err)
	}
	var ing Ingredient
	if err := doc.Decode(&ing); err != nil {
		return Ingredient{}, err
	}
	ing.ID = id
	return ing, nil
}

// ApplyDeduction stages an unconditional write of the stock field. The caller
// computes newStock from a value read earlier in the same unit of work.
func (Ledger) ApplyDeduction(tx docstore.Tx, id string, newStock decimal.Decimal) error {
	return tx.Update(ref(id), map[string]any{"stock": newStock})
}

// Deduction is the planned change to one ingredient.
type Deduction struct {
	IngredientID string
	Name         string
	Unit         catalog.Unit
	Before       decimal.Decimal
	Required     decimal.Decimal
	After        decimal.Decimal
	MinStock     decimal.Decimal
}

// Low reports whether the ingredient ends at or below its threshold.
func (d Deduction) Low() bool {
	return d.After.LessThanOrEqual(d.MinStock)
}

// Plan is a validated set of deductions ready to be staged.
type Plan struct {
	ledger     Ledger
	deductions []Deduction
}

type aggregate struct {
	name     string
	quantity decimal.Decimal
	units    []catalog.Unit
}

// Plan sums reqs per ingredient, reads each distinct ingredient once and
// checks the cumulative requirement against the stock read. It stages nothing.
func (l Ledger) Plan(ctx context.Context, tx docstore.Tx, reqs []Requirement) (*Plan, error) {
	order := make([]string, 0, len(reqs))
	totals := make(map[string]*aggregate, len(reqs))
	for _, r := range reqs {
		if !r.Quantity.IsPositive() {
			continue
		}
		agg, ok := totals[r.IngredientID]
		if !ok {
			agg = &aggregate{name: r.IngredientName}
			totals[r.IngredientID] = agg
			order = append(order, r.IngredientID)
		}
		agg.quantity = agg.quantity.Add(r.Quantity)
		if r.Unit != "" {
			agg.units = append(agg.units, r.Unit)
		}
	}

	plan := &Plan{ledger: l, deductions: make([]Deduction, 0, len(order))}
	for _, id := range order {
		agg := totals[id]
		ing, err := l.ReadStock(ctx, tx, id)
		if errors.Is(err, ErrIngredientNotFound) {
			return nil, &IngredientNotFoundError{ID: id, Name: agg.name}
		}
		if err != nil {
			return nil, err
		}
		if ing.Name == "" {
			ing.Name = agg.name
		}
		for _, u := range agg.units {
			if u != ing.Unit {
				return nil, &UnitMismatchError{IngredientID: id, Name: ing.Name, RecipeUnit: u, StockUnit: ing.Unit}
			}
		}
		after := ing.Stock.Sub(agg.quantity)
		if after.IsNegative() {
			return nil, &InsufficientStockError{
				IngredientID: id,
				Name:         ing.Name,
				Required:     agg.quantity,
				Available:    ing.Stock,
				Unit:         ing.Unit,
			}
		}
		plan.deductions = append(plan.deductions, Deduction{
			IngredientID: id,
			Name:         ing.Name,
			Unit:         ing.Unit,
			Before:       ing.Stock,
			Required:     agg.quantity,
			After:        after,
			MinStock:     ing.MinStock,
		})
	}
	return plan, nil
}

// Apply stages every planned stock write on tx.
func (p *Plan) Apply(tx docstore.Tx) error {
	if p == nil {
		return nil
	}
	for _, d := range p.deductions {
		if err := p.ledger.ApplyDeduction(tx, d.IngredientID, d.After); err != nil {
			return err
		}
	}
	return nil
}

// Deductions returns a copy of the planned changes.
func (p *Plan) Deductions() []Deduction {
	if p == nil {
		return nil
	}
	return append([]Deduction(nil), p.deductions...)
}

// LowStock returns the deductions that leave an ingredient at or below its threshold.
func (p *Plan) LowStock() []Deduction {
	if p == nil {
		return nil
	}
	var out []Deduction
	for _, d := range p.deductions {
		if d.Low() {
			out = append(out, d)
		}
	}
	return out
}
