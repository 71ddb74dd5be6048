package inventory_test

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/kasir-kopi/internal/catalog"
	"github.com/noah-isme/kasir-kopi/internal/common"
	"github.com/noah-isme/kasir-kopi/internal/docstore"
	"github.com/noah-isme/kasir-kopi/internal/events"
	"github.com/noah-isme/kasir-kopi/internal/inventory"
)

type topicRecorder struct {
	topics []string
}

func (r *topicRecorder) Notify(_ context.Context, ev events.Event) error {
	r.topics = append(r.topics, ev.Topic)
	return nil
}

func newService(t *testing.T) (*inventory.Service, *docstore.Memory, *topicRecorder) {
	t.Helper()
	store := docstore.NewMemory(docstore.Options{})
	rec := &topicRecorder{}
	svc, err := inventory.NewService(inventory.ServiceConfig{
		Store:  store,
		Events: &events.Bus{Store: store, Notifiers: []events.Notifier{rec}},
		Logger: zerolog.Nop(),
	})
	require.NoError(t, err)
	return svc, store, rec
}

func TestIngredientLifecycle(t *testing.T) {
	svc, _, rec := newService(t)
	ctx := context.Background()

	sugar, err := svc.Create(ctx, inventory.IngredientInput{Name: "Gula Aren", Stock: dec("500"), Unit: catalog.UnitGram, MinStock: dec("100")})
	require.NoError(t, err)
	require.NotEmpty(t, sugar.ID)
	require.Equal(t, []string{events.TopicIngredientUpdated}, rec.topics)

	cups, err := svc.Create(ctx, inventory.IngredientInput{Name: "Cup Plastik", Stock: dec("10"), Unit: catalog.UnitPiece, MinStock: dec("20")})
	require.NoError(t, err)
	require.Contains(t, rec.topics, events.TopicStockLow)

	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "Cup Plastik", list[0].Name)

	low, err := svc.LowStock(ctx)
	require.NoError(t, err)
	require.Len(t, low, 1)
	require.Equal(t, cups.ID, low[0].ID)

	updated, err := svc.Update(ctx, sugar.ID, inventory.IngredientInput{Name: "Gula Aren", Stock: dec("450.25"), Unit: catalog.UnitGram, MinStock: dec("100")})
	require.NoError(t, err)
	require.True(t, updated.CreatedAt.Equal(sugar.CreatedAt))
	got, err := svc.Get(ctx, sugar.ID)
	require.NoError(t, err)
	require.True(t, got.Stock.Equal(dec("450.25")))

	unit, err := svc.IngredientUnit(ctx, cups.ID)
	require.NoError(t, err)
	require.Equal(t, catalog.UnitPiece, unit)
	_, err = svc.IngredientUnit(ctx, "missing")
	require.ErrorIs(t, err, docstore.ErrNotFound)

	require.NoError(t, svc.Delete(ctx, cups.ID))
	require.ErrorIs(t, svc.Delete(ctx, cups.ID), inventory.ErrIngredientNotFound)
	_, err = svc.Get(ctx, cups.ID)
	require.ErrorIs(t, err, inventory.ErrIngredientNotFound)
}

func TestIngredientValidation(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	for name, in := range map[string]inventory.IngredientInput{
		"negative stock": {Name: "Es Batu", Stock: dec("-1"), Unit: catalog.UnitGram},
		"negative min":   {Name: "Es Batu", Stock: dec("1"), MinStock: dec("-1"), Unit: catalog.UnitGram},
		"bad unit":       {Name: "Es Batu", Stock: dec("1"), Unit: "kg"},
		"blank name":     {Name: "  ", Stock: dec("1"), Unit: catalog.UnitGram},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Create(ctx, in)
			var appErr *common.AppError
			require.ErrorAs(t, err, &appErr)
			require.Equal(t, "VALIDATION_ERROR", appErr.Code)
		})
	}

	_, err := svc.Update(ctx, "missing", inventory.IngredientInput{Name: "x", Unit: catalog.UnitGram})
	require.ErrorIs(t, err, inventory.ErrIngredientNotFound)
}

func TestIngredientsWorkAsCatalogResolver(t *testing.T) {
	svc, store, _ := newService(t)
	ctx := context.Background()

	milk, err := svc.Create(ctx, inventory.IngredientInput{Name: "Susu Oat", Stock: dec("1000"), Unit: catalog.UnitML, MinStock: dec("100")})
	require.NoError(t, err)

	products, err := catalog.NewService(catalog.ServiceConfig{Store: store, Ingredients: svc, Logger: zerolog.Nop()})
	require.NoError(t, err)

	_, err = products.Create(ctx, catalog.ProductInput{
		Name: "Oat Latte", Price: 30000, Category: catalog.CategoryCoffee,
		Recipe: []catalog.RecipeItem{{IngredientID: milk.ID, IngredientName: milk.Name, Quantity: dec("200"), Unit: catalog.UnitML}},
	})
	require.NoError(t, err)

	_, err = products.Create(ctx, catalog.ProductInput{
		Name: "Oat Latte Besar", Price: 35000, Category: catalog.CategoryCoffee,
		Recipe: []catalog.RecipeItem{{IngredientID: milk.ID, IngredientName: milk.Name, Quantity: dec("250"), Unit: catalog.UnitGram}},
	})
	require.Error(t, err)
}
