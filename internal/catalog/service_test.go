package catalog_test

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/kasir-kopi/internal/catalog"
	"github.com/noah-isme/kasir-kopi/internal/common"
	"github.com/noah-isme/kasir-kopi/internal/docstore"
)

type stubIngredients map[string]catalog.Unit

func (s stubIngredients) IngredientUnit(_ context.Context, id string) (catalog.Unit, error) {
	unit, ok := s[id]
	if !ok {
		return "", docstore.ErrNotFound
	}
	return unit, nil
}

func newService(t *testing.T) (*catalog.Service, docstore.Store, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := docstore.NewMemory(docstore.Options{})
	svc, err := catalog.NewService(catalog.ServiceConfig{
		Store:       store,
		Cache:       catalog.NewCache(client, time.Minute),
		Ingredients: stubIngredients{"coffee": catalog.UnitGram, "milk": catalog.UnitML},
		Logger:      zerolog.Nop(),
	})
	require.NoError(t, err)
	return svc, store, mr
}

func latte() catalog.ProductInput {
	return catalog.ProductInput{
		Name:      "Caffe Latte",
		Price:     25000,
		Category:  catalog.CategoryCoffee,
		Variants:  []catalog.Variant{{Name: "Hot"}, {Name: "Ice", PriceAdjustment: 2000}},
		Modifiers: []catalog.Modifier{{Name: "Extra Shot", PriceAdjustment: 5000}},
		Recipe: []catalog.RecipeItem{
			{IngredientID: "coffee", IngredientName: "Biji Kopi Arabika", Quantity: decimal.NewFromInt(18), Unit: catalog.UnitGram},
			{IngredientID: "milk", IngredientName: "Susu Full Cream", Quantity: decimal.NewFromInt(150), Unit: catalog.UnitML},
		},
	}
}

func TestCreateAndGetProduct(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, latte())
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	require.False(t, created.CreatedAt.IsZero())

	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, "Caffe Latte", got.Name)
	require.Len(t, got.Recipe, 2)
	require.True(t, got.Recipe[0].Quantity.Equal(decimal.NewFromInt(18)))
	v, ok := got.Variant("Ice")
	require.True(t, ok)
	require.EqualValues(t, 2000, v.PriceAdjustment)

	_, err = svc.Get(ctx, "missing")
	require.ErrorIs(t, err, catalog.ErrProductNotFound)
}

func TestCreateRejectsInvalidProducts(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	cases := map[string]func(*catalog.ProductInput){
		"unknown category":     func(in *catalog.ProductInput) { in.Category = "Teh" },
		"duplicate variant":    func(in *catalog.ProductInput) { in.Variants = append(in.Variants, catalog.Variant{Name: "Hot"}) },
		"zero recipe quantity": func(in *catalog.ProductInput) { in.Recipe[0].Quantity = decimal.Zero },
		"unknown ingredient":   func(in *catalog.ProductInput) { in.Recipe[0].IngredientID = "sugar" },
		"unit mismatch":        func(in *catalog.ProductInput) { in.Recipe[1].Unit = catalog.UnitGram },
		"blank name":           func(in *catalog.ProductInput) { in.Name = "   " },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			in := latte()
			mutate(&in)
			_, err := svc.Create(ctx, in)
			require.Error(t, err)
			var appErr *common.AppError
			require.ErrorAs(t, err, &appErr)
			require.Equal(t, "VALIDATION_ERROR", appErr.Code)
		})
	}
}

func TestListUsesCacheAndInvalidatesOnWrite(t *testing.T) {
	svc, store, mr := newService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, latte())
	require.NoError(t, err)
	croissant := catalog.ProductInput{Name: "Croissant", Price: 18000, Category: catalog.CategoryFood}
	_, err = svc.Create(ctx, croissant)
	require.NoError(t, err)

	products, err := svc.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, products, 2)
	require.True(t, mr.Exists("catalog:products:v1"))

	// a write that bypasses the service is invisible until the cache expires
	_, err = store.Put(ctx, docstore.Ref{Collection: catalog.Collection, ID: "raw"}, catalog.Product{ID: "raw", Name: "Raw", Category: catalog.CategoryFood})
	require.NoError(t, err)
	products, err = svc.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, products, 2)

	_, err = svc.Create(ctx, catalog.ProductInput{Name: "Es Teh", Price: 8000, Category: catalog.CategoryNonCoffee})
	require.NoError(t, err)
	require.False(t, mr.Exists("catalog:products:v1"))

	products, err = svc.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, products, 4)

	food, err := svc.List(ctx, catalog.CategoryFood)
	require.NoError(t, err)
	require.Len(t, food, 2)
	for _, p := range food {
		require.Equal(t, catalog.CategoryFood, p.Category)
	}
}

func TestUpdateKeepsCreationTimeAndDeleteResolves(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, latte())
	require.NoError(t, err)
	in := latte()
	in.Price = 27000
	updated, err := svc.Update(ctx, created.ID, in)
	require.NoError(t, err)
	require.EqualValues(t, 27000, updated.Price)
	require.True(t, created.CreatedAt.Equal(updated.CreatedAt))

	_, err = svc.Update(ctx, "missing", in)
	require.ErrorIs(t, err, catalog.ErrProductNotFound)

	other, err := svc.Create(ctx, catalog.ProductInput{Name: "Croissant", Price: 18000, Category: catalog.CategoryFood})
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, other.ID))
	require.ErrorIs(t, svc.Delete(ctx, other.ID), catalog.ErrProductNotFound)

	resolved, err := svc.Resolve(ctx, []string{created.ID, other.ID, created.ID})
	require.NoError(t, err)
	require.Len(t, resolved, 1)
	require.EqualValues(t, 27000, resolved[created.ID].Price)
}

func TestSubscribeDeliversSortedProducts(t *testing.T) {
	svc, _, _ := newService(t)
	ctx, cancelCtx := context.WithCancel(context.Background())
	defer cancelCtx()

	updates := make(chan []catalog.Product, 4)
	cancel, err := svc.Subscribe(ctx, func(products []catalog.Product, err error) {
		if err == nil {
			updates <- products
		}
	})
	require.NoError(t, err)
	defer cancel()

	require.Empty(t, <-updates)
	_, err = svc.Create(ctx, latte())
	require.NoError(t, err)

	select {
	case products := <-updates:
		require.Len(t, products, 1)
		require.Equal(t, "Caffe Latte", products[0].Name)
	case <-time.After(2 * time.Second):
		t.Fatal("no update delivered")
	}
}
