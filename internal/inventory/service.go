package inventory

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/kasir-kopi/internal/catalog"
	"github.com/noah-isme/kasir-kopi/internal/common"
	"github.com/noah-isme/kasir-kopi/internal/docstore"
	"github.com/noah-isme/kasir-kopi/internal/events"
)

// Service manages ingredients outside of settlement. Update is a plain
// overwrite: it does not reconcile with sales committed in between, so a
// correction typed from a stale screen can undo a deduction.
type Service struct {
	store  docstore.Store
	events *events.Bus
	log    zerolog.Logger
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Store  docstore.Store
	Events *events.Bus
	Logger zerolog.Logger
}

var _ catalog.IngredientResolver = (*Service)(nil)

// NewService constructs a Service instance.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("inventory: store is required")
	}
	return &Service{store: cfg.Store, events: cfg.Events, log: cfg.Logger}, nil
}

func sortIngredients(items []Ingredient) {
	sort.SliceStable(items, func(i, j int) bool {
		return strings.ToLower(items[i].Name) < strings.ToLower(items[j].Name)
	})
}

// List returns every ingredient ordered by name.
func (s *Service) List(ctx context.Context) ([]Ingredient, error) {
	docs, err := s.store.Query(ctx, docstore.Query{Collection: Collection})
	if err != nil {
		return nil, fmt.Errorf("list ingredients: %w", err)
	}
	items, err := docstore.DecodeAll[Ingredient](docs)
	if err != nil {
		return nil, err
	}
	sortIngredients(items)
	return items, nil
}

// LowStock returns the ingredients at or below their threshold.
func (s *Service) LowStock(ctx context.Context) ([]Ingredient, error) {
	items, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	low := items[:0:0]
	for _, ing := range items {
		if ing.Low() {
			low = append(low, ing)
		}
	}
	return low, nil
}

// Get loads one ingredient.
func (s *Service) Get(ctx context.Context, id string) (Ingredient, error) {
	doc, err := s.store.Get(ctx, ref(id))
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return Ingredient{}, ErrIngredientNotFound
		}
		return Ingredient{}, fmt.Errorf("get ingredient: %w", err)
	}
	var ing Ingredient
	if err := doc.Decode(&ing); err != nil {
		return Ingredient{}, err
	}
	ing.ID = id
	return ing, nil
}

// IngredientUnit implements catalog.IngredientResolver.
func (s *Service) IngredientUnit(ctx context.Context, id string) (catalog.Unit, error) {
	doc, err := s.store.Get(ctx, ref(id))
	if err != nil {
		return "", err
	}
	var ing Ingredient
	if err := doc.Decode(&ing); err != nil {
		return "", err
	}
	return ing.Unit, nil
}

// Create stores a new ingredient.
func (s *Service) Create(ctx context.Context, in IngredientInput) (Ingredient, error) {
	if err := validate(in); err != nil {
		return Ingredient{}, err
	}
	r := docstore.NewRef(Collection)
	return s.put(ctx, r.ID, in)
}

// Update overwrites an ingredient, stock included.
func (s *Service) Update(ctx context.Context, id string, in IngredientInput) (Ingredient, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return Ingredient{}, err
	}
	if err := validate(in); err != nil {
		return Ingredient{}, err
	}
	return s.put(ctx, id, in)
}

func (s *Service) put(ctx context.Context, id string, in IngredientInput) (Ingredient, error) {
	ing := Ingredient{
		ID:       id,
		Name:     strings.TrimSpace(in.Name),
		Stock:    in.Stock,
		Unit:     in.Unit,
		MinStock: in.MinStock,
	}
	doc, err := s.store.Put(ctx, ref(id), ing)
	if err != nil {
		return Ingredient{}, fmt.Errorf("save ingredient: %w", err)
	}
	ing.CreatedAt = doc.CreatedAt
	s.emit(ctx, events.TopicIngredientUpdated, ing.ID, map[string]any{
		"ingredientId": ing.ID,
		"name":         ing.Name,
		"stock":        ing.Stock.String(),
	})
	if ing.Low() {
		s.emit(ctx, events.TopicStockLow, ing.ID, events.StockLowPayload{
			IngredientID: ing.ID,
			Name:         ing.Name,
			Stock:        ing.Stock.String(),
			MinStock:     ing.MinStock.String(),
			Unit:         string(ing.Unit),
		})
	}
	return ing, nil
}

// Delete removes an ingredient. Recipes that still reference it fail
// settlement with IngredientNotFoundError.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, ref(id)); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return ErrIngredientNotFound
		}
		return fmt.Errorf("delete ingredient: %w", err)
	}
	return nil
}

// Subscribe streams the full ingredient list after every inventory change.
func (s *Service) Subscribe(ctx context.Context, fn func([]Ingredient, error)) (func(), error) {
	return s.store.Subscribe(ctx, docstore.Query{Collection: Collection}, func(docs []docstore.Doc, err error) {
		if err != nil {
			fn(nil, err)
			return
		}
		items, err := docstore.DecodeAll[Ingredient](docs)
		if err == nil {
			sortIngredients(items)
		}
		fn(items, err)
	})
}

func (s *Service) emit(ctx context.Context, topic, id string, payload any) {
	if s.events == nil {
		return
	}
	if _, err := s.events.Emit(ctx, topic, id, payload); err != nil {
		s.log.Warn().Err(err).Str("topic", topic).Str("ingredient_id", id).Msg("emit inventory event failed")
	}
}

func validate(in IngredientInput) error {
	if err := common.Validate(in); err != nil {
		return err
	}
	details := map[string]string{}
	if strings.TrimSpace(in.Name) == "" {
		details["name"] = "required"
	}
	if in.Stock.IsNegative() {
		details["stock"] = "must not be negative"
	}
	if in.MinStock.IsNegative() {
		details["minStock"] = "must not be negative"
	}
	if len(details) > 0 {
		appErr := common.NewAppError("VALIDATION_ERROR", "invalid ingredient", http.StatusUnprocessableEntity, nil)
		appErr.Details = details
		return appErr
	}
	return nil
}
