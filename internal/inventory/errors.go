package inventory

import (
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/kasir-kopi/internal/catalog"
	"github.com/noah-isme/kasir-kopi/internal/common"
)

// ErrIngredientNotFound is returned when an ingredient id does not resolve.
var ErrIngredientNotFound = common.NewCodedError("INGREDIENT_NOT_FOUND", http.StatusNotFound, "ingredient not found")

// IngredientNotFoundError reports a recipe that references a missing
// ingredient. Name is the denormalized name kept on the recipe.
type IngredientNotFoundError struct {
	ID   string
	Name string
}

func (e *IngredientNotFoundError) Error() string {
	return fmt.Sprintf("ingredient %q not found", e.Name)
}

// Is matches ErrIngredientNotFound.
func (e *IngredientNotFoundError) Is(target error) bool { return target == ErrIngredientNotFound }

// ErrorCode implements common.Coded.
func (e *IngredientNotFoundError) ErrorCode() string { return "INGREDIENT_NOT_FOUND" }

// HTTPStatus implements common.Coded.
func (e *IngredientNotFoundError) HTTPStatus() int { return http.StatusUnprocessableEntity }

// InsufficientStockError reports that the cumulative requirement for an
// ingredient exceeds what is on hand.
type InsufficientStockError struct {
	IngredientID string
	Name         string
	Required     decimal.Decimal
	Available    decimal.Decimal
	Unit         catalog.Unit
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: need %s %s, have %s %s",
		e.Name, e.Required.String(), e.Unit, e.Available.String(), e.Unit)
}

// ErrorCode implements common.Coded.
func (e *InsufficientStockError) ErrorCode() string { return "INSUFFICIENT_STOCK" }

// HTTPStatus implements common.Coded.
func (e *InsufficientStockError) HTTPStatus() int { return http.StatusConflict }

// UnitMismatchError reports a recipe unit that differs from the stocked unit.
type UnitMismatchError struct {
	IngredientID string
	Name         string
	RecipeUnit   catalog.Unit
	StockUnit    catalog.Unit
}

func (e *UnitMismatchError) Error() string {
	return fmt.Sprintf("ingredient %s is stocked in %s but the recipe uses %s", e.Name, e.StockUnit, e.RecipeUnit)
}

// ErrorCode implements common.Coded.
func (e *UnitMismatchError) ErrorCode() string { return "UNIT_MISMATCH" }

// HTTPStatus implements common.Coded.
func (e *UnitMismatchError) HTTPStatus() int { return http.StatusUnprocessableEntity }
