package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/kasir-kopi/internal/catalog"
	"github.com/noah-isme/kasir-kopi/internal/docstore"
	"github.com/noah-isme/kasir-kopi/internal/inventory"
)

// Collection holds alert documents.
const Collection = "alerts"

// Alert records an ingredient observed at or below its threshold.
type Alert struct {
	ID           string          `json:"id"`
	IngredientID string          `json:"ingredientId"`
	Name         string          `json:"name"`
	Stock        decimal.Decimal `json:"stock"`
	MinStock     decimal.Decimal `json:"minStock"`
	Unit         catalog.Unit    `json:"unit"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// IngredientSource loads current ingredient state.
type IngredientSource interface {
	Get(ctx context.Context, id string) (inventory.Ingredient, error)
}

// Service stores and lists alerts.
type Service struct {
	Store docstore.Store
}

// Record persists an alert for ing.
func (s *Service) Record(ctx context.Context, ing inventory.Ingredient) (Alert, error) {
	ref := docstore.NewRef(Collection)
	alert := Alert{
		ID:           ref.ID,
		IngredientID: ing.ID,
		Name:         ing.Name,
		Stock:        ing.Stock,
		MinStock:     ing.MinStock,
		Unit:         ing.Unit,
	}
	doc, err := s.Store.Put(ctx, ref, alert)
	if err != nil {
		return Alert{}, fmt.Errorf("save alert: %w", err)
	}
	alert.CreatedAt = doc.CreatedAt
	return alert, nil
}

// List returns the most recent alerts first.
func (s *Service) List(ctx context.Context, limit int) ([]Alert, error) {
	docs, err := s.Store.Query(ctx, docstore.Query{Collection: Collection, Desc: true, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	return docstore.DecodeAll[Alert](docs)
}

// Processor handles TypeLowStock tasks.
type Processor struct {
	Inventory IngredientSource
	Alerts    *Service
	Log       zerolog.Logger
}

// HandleLowStock re-reads the ingredient and records an alert when it is
// still low. Deleted ingredients are dropped without retry.
func (p *Processor) HandleLowStock(ctx context.Context, task *asynq.Task) error {
	var payload LowStockTask
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode low stock task: %v: %w", err, asynq.SkipRetry)
	}
	log := p.Log.With().Str("ingredient_id", payload.IngredientID).Logger()
	ing, err := p.Inventory.Get(ctx, payload.IngredientID)
	if err != nil {
		if errors.Is(err, inventory.ErrIngredientNotFound) {
			log.Info().Msg("ingredient removed before low stock check")
			return nil
		}
		return err
	}
	if !ing.Low() {
		log.Debug().Msg("ingredient restocked before low stock check")
		return nil
	}
	alert, err := p.Alerts.Record(ctx, ing)
	if err != nil {
		return err
	}
	log.Warn().
		Str("alert_id", alert.ID).
		Str("stock", ing.Stock.String()).
		Str("min_stock", ing.MinStock.String()).
		Str("unit", string(ing.Unit)).
		Msg("low stock alert recorded")
	return nil
}
