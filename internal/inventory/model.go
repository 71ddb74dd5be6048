package inventory

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/kasir-kopi/internal/catalog"
)

// Collection holds ingredient documents.
const Collection = "inventory"

// Ingredient is a stocked raw material.
type Ingredient struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Stock     decimal.Decimal `json:"stock"`
	Unit      catalog.Unit    `json:"unit"`
	MinStock  decimal.Decimal `json:"minStock"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Low reports whether stock has reached the restocking threshold. The
// threshold is informational; stock may still be deducted down to zero.
func (i Ingredient) Low() bool {
	return i.Stock.LessThanOrEqual(i.MinStock)
}

// IngredientInput is the writable part of an ingredient.
type IngredientInput struct {
	Name     string          `json:"name" validate:"required,max=120"`
	Stock    decimal.Decimal `json:"stock"`
	Unit     catalog.Unit    `json:"unit" validate:"required,oneof=gram ml pcs"`
	MinStock decimal.Decimal `json:"minStock"`
}

// Requirement is the amount of one ingredient a settlement consumes.
type Requirement struct {
	IngredientID   string
	IngredientName string
	Quantity       decimal.Decimal
	Unit           catalog.Unit
}
