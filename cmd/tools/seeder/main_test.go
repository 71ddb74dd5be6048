package main

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/kasir-kopi/internal/catalog"
	"github.com/noah-isme/kasir-kopi/internal/docstore"
	"github.com/noah-isme/kasir-kopi/internal/inventory"
)

func TestSeedAndReset(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory(docstore.Options{})
	inv, err := inventory.NewService(inventory.ServiceConfig{Store: store})
	require.NoError(t, err)
	cat, err := catalog.NewService(catalog.ServiceConfig{Store: store, Ingredients: inv})
	require.NoError(t, err)
	s := seeder{Store: store, Inventory: inv, Catalog: cat, Log: zerolog.Nop()}

	nIng, nProd, err := s.seed(ctx)
	require.NoError(t, err)
	require.Equal(t, len(ingredients), nIng)
	require.Equal(t, len(products), nProd)

	list, err := cat.List(ctx, catalog.CategoryCoffee)
	require.NoError(t, err)
	require.Len(t, list, 10)
	var latte catalog.Product
	for _, p := range list {
		if p.Name == "Kopi Susu Gula Aren" {
			latte = p
		}
	}
	require.Len(t, latte.Recipe, 3)
	require.Len(t, latte.Modifiers, 2)
	require.True(t, latte.Recipe[1].Quantity.Equal(decimal.NewFromInt(120)))

	low, err := inv.LowStock(ctx)
	require.NoError(t, err)
	require.Empty(t, low)

	require.NoError(t, s.clear(ctx))
	all, err := cat.List(ctx, "")
	require.NoError(t, err)
	require.Empty(t, all)
	ings, err := inv.List(ctx)
	require.NoError(t, err)
	require.Empty(t, ings)
}
