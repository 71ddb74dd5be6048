package main

import (
	"context"
	"flag"
	"fmt"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/kasir-kopi/internal/app"
	"github.com/noah-isme/kasir-kopi/internal/catalog"
	"github.com/noah-isme/kasir-kopi/internal/config"
	"github.com/noah-isme/kasir-kopi/internal/docstore"
	"github.com/noah-isme/kasir-kopi/internal/inventory"
	"github.com/noah-isme/kasir-kopi/internal/obs"
)

func main() {
	reset := flag.Bool("reset", false, "delete every product and ingredient before seeding")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger := obs.NewLogger(cfg.Obs.LogFormat, cfg.Obs.LogLevel).With().Str("component", "seeder").Logger()
	if cfg.StoreDriver != config.DriverPostgres {
		logger.Fatal().Str("driver", cfg.StoreDriver).Msg("seeding requires STORE_DRIVER=postgres")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	deps, err := app.New(ctx, cfg, logger, false)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise dependencies")
	}
	defer deps.Close()

	s := seeder{Store: deps.Store, Inventory: deps.Inventory, Catalog: deps.Catalog, Log: logger}
	if *reset {
		if err := s.clear(ctx); err != nil {
			logger.Fatal().Err(err).Msg("clear collections")
		}
	}
	nIngredients, nProducts, err := s.seed(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("seed")
	}
	logger.Info().Int("ingredients", nIngredients).Int("products", nProducts).Msg("seeding completed")
}

type seeder struct {
	Store     docstore.Store
	Inventory *inventory.Service
	Catalog   *catalog.Service
	Log       zerolog.Logger
}

func (s seeder) clear(ctx context.Context) error {
	for _, collection := range []string{catalog.Collection, inventory.Collection} {
		docs, err := s.Store.Query(ctx, docstore.Query{Collection: collection})
		if err != nil {
			return err
		}
		for _, d := range docs {
			if err := s.Store.Delete(ctx, d.Ref); err != nil {
				return fmt.Errorf("delete %s: %w", d.Ref, err)
			}
		}
		s.Log.Info().Str("collection", collection).Int("deleted", len(docs)).Msg("collection cleared")
	}
	return nil
}

func (s seeder) seed(ctx context.Context) (int, int, error) {
	byName := make(map[string]inventory.Ingredient, len(ingredients))
	for _, in := range ingredients {
		ing, err := s.Inventory.Create(ctx, inventory.IngredientInput{
			Name:     in.Name,
			Stock:    decimal.NewFromInt(in.Stock),
			Unit:     in.Unit,
			MinStock: decimal.NewFromInt(in.MinStock),
		})
		if err != nil {
			return 0, 0, fmt.Errorf("ingredient %q: %w", in.Name, err)
		}
		byName[in.Name] = ing
	}

	for _, p := range products {
		recipe := make([]catalog.RecipeItem, 0, len(p.Recipe))
		for _, r := range p.Recipe {
			ing, ok := byName[r.Ingredient]
			if !ok {
				return len(byName), 0, fmt.Errorf("product %q: unknown ingredient %q", p.Name, r.Ingredient)
			}
			recipe = append(recipe, catalog.RecipeItem{
				IngredientID:   ing.ID,
				IngredientName: ing.Name,
				Quantity:       decimal.NewFromInt(r.Qty),
				Unit:           ing.Unit,
			})
		}
		_, err := s.Catalog.Create(ctx, catalog.ProductInput{
			Name:      p.Name,
			Price:     p.Price,
			Category:  p.Category,
			ImageURL:  "https://picsum.photos/seed/" + url.PathEscape(p.Name) + "/800",
			Variants:  p.Variants,
			Modifiers: p.Modifiers,
			Recipe:    recipe,
		})
		if err != nil {
			return len(byName), 0, fmt.Errorf("product %q: %w", p.Name, err)
		}
	}
	return len(byName), len(products), nil
}
