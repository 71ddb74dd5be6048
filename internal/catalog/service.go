package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/kasir-kopi/internal/common"
	"github.com/noah-isme/kasir-kopi/internal/docstore"
)

// ErrProductNotFound is returned when a product id does not resolve.
var ErrProductNotFound = common.NewCodedError("PRODUCT_NOT_FOUND", http.StatusNotFound, "product not found")

// IngredientResolver reports the unit of a stocked ingredient. It returns an
// error wrapping docstore.ErrNotFound when the ingredient does not exist.
type IngredientResolver interface {
	IngredientUnit(ctx context.Context, id string) (Unit, error)
}

// Service manages the product catalog.
type Service struct {
	store       docstore.Store
	cache       *Cache
	ingredients IngredientResolver
	log         zerolog.Logger
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Store       docstore.Store
	Cache       *Cache
	Ingredients IngredientResolver
	Logger      zerolog.Logger
}

// NewService constructs a Service instance.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("catalog: store is required")
	}
	return &Service{
		store:       cfg.Store,
		cache:       cfg.Cache,
		ingredients: cfg.Ingredients,
		log:         cfg.Logger,
	}, nil
}

func ref(id string) docstore.Ref {
	return docstore.Ref{Collection: Collection, ID: id}
}

func sortProducts(products []Product) {
	sort.SliceStable(products, func(i, j int) bool {
		if products[i].Category != products[j].Category {
			return products[i].Category < products[j].Category
		}
		return strings.ToLower(products[i].Name) < strings.ToLower(products[j].Name)
	})
}

// List returns every product ordered by category then name, optionally
// restricted to one category.
func (s *Service) List(ctx context.Context, category Category) ([]Product, error) {
	var products []Product
	ok, err := s.cache.GetJSON(ctx, productsCacheKey, &products)
	if err != nil {
		s.log.Warn().Err(err).Msg("catalog cache read failed")
	}
	if !ok {
		docs, err := s.store.Query(ctx, docstore.Query{Collection: Collection})
		if err != nil {
			return nil, fmt.Errorf("list products: %w", err)
		}
		products, err = docstore.DecodeAll[Product](docs)
		if err != nil {
			return nil, err
		}
		sortProducts(products)
		if err := s.cache.SetJSON(ctx, productsCacheKey, products); err != nil {
			s.log.Warn().Err(err).Msg("catalog cache write failed")
		}
	}
	if category == "" {
		return products, nil
	}
	filtered := products[:0:0]
	for _, p := range products {
		if p.Category == category {
			filtered = append(filtered, p)
		}
	}
	return filtered, nil
}

// Get loads one product straight from the store.
func (s *Service) Get(ctx context.Context, id string) (Product, error) {
	doc, err := s.store.Get(ctx, ref(id))
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return Product{}, ErrProductNotFound
		}
		return Product{}, fmt.Errorf("get product: %w", err)
	}
	var p Product
	if err := doc.Decode(&p); err != nil {
		return Product{}, err
	}
	return p, nil
}

// Resolve loads the live products for ids. Ids that no longer exist are
// absent from the result.
func (s *Service) Resolve(ctx context.Context, ids []string) (map[string]Product, error) {
	out := make(map[string]Product, len(ids))
	for _, id := range ids {
		if _, done := out[id]; done || id == "" {
			continue
		}
		p, err := s.Get(ctx, id)
		if errors.Is(err, ErrProductNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out[id] = p
	}
	return out, nil
}

// Create validates and stores a new product.
func (s *Service) Create(ctx context.Context, in ProductInput) (Product, error) {
	if err := s.validate(ctx, in); err != nil {
		return Product{}, err
	}
	r := docstore.NewRef(Collection)
	p := fromInput(r.ID, in)
	doc, err := s.store.Put(ctx, r, p)
	if err != nil {
		return Product{}, fmt.Errorf("create product: %w", err)
	}
	s.invalidate(ctx)
	p.CreatedAt = doc.CreatedAt
	return p, nil
}

// Update replaces the writable fields of an existing product.
func (s *Service) Update(ctx context.Context, id string, in ProductInput) (Product, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return Product{}, err
	}
	if err := s.validate(ctx, in); err != nil {
		return Product{}, err
	}
	p := fromInput(id, in)
	doc, err := s.store.Put(ctx, ref(id), p)
	if err != nil {
		return Product{}, fmt.Errorf("update product: %w", err)
	}
	s.invalidate(ctx)
	p.CreatedAt = doc.CreatedAt
	return p, nil
}

// Delete removes a product. Open tabs referencing it keep their snapshot.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, ref(id)); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return ErrProductNotFound
		}
		return fmt.Errorf("delete product: %w", err)
	}
	s.invalidate(ctx)
	return nil
}

// Subscribe streams the full product list after every catalog change.
func (s *Service) Subscribe(ctx context.Context, fn func([]Product, error)) (func(), error) {
	return s.store.Subscribe(ctx, docstore.Query{Collection: Collection}, func(docs []docstore.Doc, err error) {
		if err != nil {
			fn(nil, err)
			return
		}
		products, err := docstore.DecodeAll[Product](docs)
		if err == nil {
			sortProducts(products)
		}
		fn(products, err)
	})
}

func (s *Service) invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, productsCacheKey); err != nil {
		s.log.Warn().Err(err).Msg("catalog cache invalidation failed")
	}
}

func fromInput(id string, in ProductInput) Product {
	return Product{
		ID:        id,
		Name:      strings.TrimSpace(in.Name),
		Price:     in.Price,
		Category:  in.Category,
		ImageURL:  strings.TrimSpace(in.ImageURL),
		Variants:  in.Variants,
		Modifiers: in.Modifiers,
		Recipe:    in.Recipe,
	}
}

func (s *Service) validate(ctx context.Context, in ProductInput) error {
	if err := common.Validate(in); err != nil {
		return err
	}
	details := map[string]string{}
	if strings.TrimSpace(in.Name) == "" {
		details["name"] = "required"
	}
	seen := map[string]bool{}
	for _, v := range in.Variants {
		if seen[v.Name] {
			details["variants"] = "duplicate name " + v.Name
		}
		seen[v.Name] = true
	}
	seen = map[string]bool{}
	for _, m := range in.Modifiers {
		if seen[m.Name] {
			details["modifiers"] = "duplicate name " + m.Name
		}
		seen[m.Name] = true
	}
	seen = map[string]bool{}
	for _, item := range in.Recipe {
		key := "recipe." + item.IngredientID
		switch {
		case !item.Quantity.IsPositive():
			details[key] = "quantity must be positive"
		case seen[item.IngredientID]:
			details[key] = "ingredient listed twice"
		case s.ingredients != nil:
			unit, err := s.ingredients.IngredientUnit(ctx, item.IngredientID)
			if errors.Is(err, docstore.ErrNotFound) {
				details[key] = "unknown ingredient " + item.IngredientName
			} else if err != nil {
				return fmt.Errorf("resolve ingredient %s: %w", item.IngredientID, err)
			} else if unit != item.Unit {
				details[key] = fmt.Sprintf("unit %s does not match ingredient unit %s", item.Unit, unit)
			}
		}
		seen[item.IngredientID] = true
	}
	if len(details) > 0 {
		appErr := common.NewAppError("VALIDATION_ERROR", "invalid product", http.StatusUnprocessableEntity, nil)
		appErr.Details = details
		return appErr
	}
	return nil
}
