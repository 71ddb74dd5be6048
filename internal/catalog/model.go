package catalog

import (
	"time"

	"github.com/shopspring/decimal"
)

// Collection holds product documents.
const Collection = "products"

// Category groups products on the cashier grid.
type Category string

// Categories offered by the shop.
const (
	CategoryCoffee    Category = "Kopi"
	CategoryNonCoffee Category = "Non-Kopi"
	CategoryFood      Category = "Makanan"
)

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryCoffee, CategoryNonCoffee, CategoryFood:
		return true
	}
	return false
}

// Unit is a unit of measure shared by recipes and ingredients.
type Unit string

// Supported units.
const (
	UnitGram  Unit = "gram"
	UnitML    Unit = "ml"
	UnitPiece Unit = "pcs"
)

// Valid reports whether u is a known unit.
func (u Unit) Valid() bool {
	switch u {
	case UnitGram, UnitML, UnitPiece:
		return true
	}
	return false
}

// Variant is a mutually exclusive option such as size or temperature.
type Variant struct {
	Name            string `json:"name" validate:"required,max=60"`
	PriceAdjustment int64  `json:"priceAdjustment"`
}

// Modifier is an add-on that may be toggled independently.
type Modifier struct {
	Name            string `json:"name" validate:"required,max=60"`
	PriceAdjustment int64  `json:"priceAdjustment"`
}

// RecipeItem is the quantity of one ingredient consumed per unit sold.
type RecipeItem struct {
	IngredientID   string          `json:"ingredientId" validate:"required"`
	IngredientName string          `json:"ingredientName" validate:"required"`
	Quantity       decimal.Decimal `json:"quantity"`
	Unit           Unit            `json:"unit" validate:"required,oneof=gram ml pcs"`
}

// Product is a sellable menu item.
type Product struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Price     int64        `json:"price"`
	Category  Category     `json:"category"`
	ImageURL  string       `json:"imageUrl,omitempty"`
	Variants  []Variant    `json:"variants,omitempty"`
	Modifiers []Modifier   `json:"modifiers,omitempty"`
	Recipe    []RecipeItem `json:"recipe,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
}

// Variant looks up a declared variant by name.
func (p Product) Variant(name string) (Variant, bool) {
	for _, v := range p.Variants {
		if v.Name == name {
			return v, true
		}
	}
	return Variant{}, false
}

// Modifier looks up a declared modifier by name.
func (p Product) Modifier(name string) (Modifier, bool) {
	for _, m := range p.Modifiers {
		if m.Name == name {
			return m, true
		}
	}
	return Modifier{}, false
}

// ProductInput is the writable part of a product.
type ProductInput struct {
	Name      string       `json:"name" validate:"required,max=120"`
	Price     int64        `json:"price" validate:"gte=0"`
	Category  Category     `json:"category" validate:"required,oneof=Kopi Non-Kopi Makanan"`
	ImageURL  string       `json:"imageUrl" validate:"omitempty,url"`
	Variants  []Variant    `json:"variants" validate:"dive"`
	Modifiers []Modifier   `json:"modifiers" validate:"dive"`
	Recipe    []RecipeItem `json:"recipe" validate:"dive"`
}
