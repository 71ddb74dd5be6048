package tabs_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/kasir-kopi/internal/cart"
	"github.com/noah-isme/kasir-kopi/internal/catalog"
	"github.com/noah-isme/kasir-kopi/internal/checkout"
	"github.com/noah-isme/kasir-kopi/internal/docstore"
	"github.com/noah-isme/kasir-kopi/internal/inventory"
	"github.com/noah-isme/kasir-kopi/internal/pricing"
	"github.com/noah-isme/kasir-kopi/internal/sales"
	"github.com/noah-isme/kasir-kopi/internal/tabs"
)

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func latte() catalog.Product {
	return catalog.Product{
		ID: "latte", Name: "Caffe Latte", Price: 25000, Category: catalog.CategoryCoffee,
		Variants: []catalog.Variant{{Name: "Hot"}, {Name: "Ice", PriceAdjustment: 2000}},
		Recipe: []catalog.RecipeItem{
			{IngredientID: "coffee", IngredientName: "Biji Kopi Arabika", Quantity: dec("18"), Unit: catalog.UnitGram},
			{IngredientID: "milk", IngredientName: "Susu Full Cream", Quantity: dec("150"), Unit: catalog.UnitML},
		},
	}
}

func croissant() catalog.Product {
	return catalog.Product{
		ID: "croissant", Name: "Croissant", Price: 18000, Category: catalog.CategoryFood,
		Recipe: []catalog.RecipeItem{
			{IngredientID: "butter-croissant", IngredientName: "Croissant Beku", Quantity: dec("1"), Unit: catalog.UnitPiece},
		},
	}
}

type fixture struct {
	store   *docstore.Memory
	engine  *checkout.Engine
	manager *tabs.Manager
	catalog *catalog.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := docstore.NewMemory(docstore.Options{})
	ctx := context.Background()
	for _, ing := range []inventory.Ingredient{
		{ID: "coffee", Name: "Biji Kopi Arabika", Stock: dec("100"), Unit: catalog.UnitGram, MinStock: dec("10")},
		{ID: "milk", Name: "Susu Full Cream", Stock: dec("1000"), Unit: catalog.UnitML, MinStock: dec("100")},
		{ID: "butter-croissant", Name: "Croissant Beku", Stock: dec("5"), Unit: catalog.UnitPiece, MinStock: dec("1")},
	} {
		_, err := store.Put(ctx, docstore.Ref{Collection: inventory.Collection, ID: ing.ID}, ing)
		require.NoError(t, err)
	}
	for _, p := range []catalog.Product{latte(), croissant()} {
		_, err := store.Put(ctx, docstore.Ref{Collection: catalog.Collection, ID: p.ID}, p)
		require.NoError(t, err)
	}
	products, err := catalog.NewService(catalog.ServiceConfig{Store: store, Logger: zerolog.Nop()})
	require.NoError(t, err)
	engine := &checkout.Engine{Store: store, Log: zerolog.Nop()}
	return &fixture{
		store:   store,
		engine:  engine,
		manager: &tabs.Manager{Store: store, Engine: engine, Products: products, Log: zerolog.Nop()},
		catalog: products,
	}
}

func (f *fixture) stock(t *testing.T, id string) decimal.Decimal {
	t.Helper()
	doc, err := f.store.Get(context.Background(), docstore.Ref{Collection: inventory.Collection, ID: id})
	require.NoError(t, err)
	var ing inventory.Ingredient
	require.NoError(t, doc.Decode(&ing))
	return ing.Stock
}

func (f *fixture) count(t *testing.T, collection string) int {
	t.Helper()
	docs, err := f.store.Query(context.Background(), docstore.Query{Collection: collection})
	require.NoError(t, err)
	return len(docs)
}

func order(t *testing.T) *cart.Cart {
	t.Helper()
	c := cart.New()
	require.NoError(t, c.AddItem(latte(), "Hot", nil))
	require.NoError(t, c.AddItem(latte(), "Hot", nil))
	require.NoError(t, c.AddItem(croissant(), "", nil))
	return c
}

func TestTabRoundTripMatchesDirectSale(t *testing.T) {
	direct := newFixture(t)
	_, err := direct.engine.Settle(context.Background(), order(t), 68000, 70000)
	require.NoError(t, err)

	f := newFixture(t)
	tab, err := f.manager.Create(context.Background(), order(t), 68000, "  Meja 4 ")
	require.NoError(t, err)
	require.Equal(t, "Meja 4", tab.CustomerName)
	require.Equal(t, tabs.StatusOpen, tab.Status)
	require.False(t, tab.CreatedAt.IsZero())
	require.Len(t, tab.Items, 2)
	for _, id := range []string{"coffee", "milk", "butter-croissant"} {
		require.True(t, direct.stock(t, id).Equal(f.stock(t, id)), id)
	}
	require.Zero(t, f.count(t, sales.Collection))

	trx, err := f.manager.Close(context.Background(), tab, 70000)
	require.NoError(t, err)
	require.Equal(t, tab.TotalAmount, trx.TotalAmount)
	require.EqualValues(t, 2000, trx.Change)
	require.Equal(t, sales.SourceTab, trx.Source)
	require.Equal(t, tab.ID, trx.TabID)
	require.Equal(t, "Meja 4", trx.CustomerName)
	require.Equal(t, tab.Items, trx.Items)
	for _, id := range []string{"coffee", "milk", "butter-croissant"} {
		require.True(t, direct.stock(t, id).Equal(f.stock(t, id)), id)
	}
	require.Zero(t, f.count(t, tabs.Collection))
	require.Equal(t, 1, f.count(t, sales.Collection))
}

type countingStore struct {
	docstore.Store
	calls int
}

func (s *countingStore) RunAtomic(ctx context.Context, fn func(context.Context, docstore.Tx) error) error {
	s.calls++
	return s.Store.RunAtomic(ctx, fn)
}

func TestCloseComputesChangeAndRejectsUnderpayment(t *testing.T) {
	f := newFixture(t)
	c := cart.New()
	require.NoError(t, c.AddItem(latte(), "Hot", nil))
	tab, err := f.manager.Create(context.Background(), c, 25000, "Budi")
	require.NoError(t, err)

	counting := &countingStore{Store: f.store}
	f.manager.Store = counting
	_, err = f.manager.Close(context.Background(), tab, 20000)
	require.ErrorIs(t, err, pricing.ErrInsufficientPayment)
	require.Zero(t, counting.calls)
	require.Equal(t, 1, f.count(t, tabs.Collection))
	require.Zero(t, f.count(t, sales.Collection))

	trx, err := f.manager.Close(context.Background(), tab, 30000)
	require.NoError(t, err)
	require.EqualValues(t, 5000, trx.Change)
	require.EqualValues(t, 30000, trx.AmountPaid)
}

func TestCloseTwiceFails(t *testing.T) {
	f := newFixture(t)
	tab, err := f.manager.Create(context.Background(), order(t), 68000, "Sari")
	require.NoError(t, err)

	_, err = f.manager.CloseByID(context.Background(), tab.ID, 68000)
	require.NoError(t, err)
	_, err = f.manager.Close(context.Background(), tab, 68000)
	require.ErrorIs(t, err, tabs.ErrTabNotFound)
	_, err = f.manager.CloseByID(context.Background(), tab.ID, 68000)
	require.ErrorIs(t, err, tabs.ErrTabNotFound)
	require.Equal(t, 1, f.count(t, sales.Collection))
}

func TestCreateValidatesBeforeDeducting(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.manager.Create(ctx, cart.New(), 0, "Meja 1")
	require.ErrorIs(t, err, cart.ErrEmpty)
	_, err = f.manager.Create(ctx, order(t), 68000, "   ")
	require.ErrorIs(t, err, tabs.ErrInvalidCustomerName)
	_, err = f.manager.Create(ctx, order(t), 60000, "Meja 1")
	require.ErrorIs(t, err, checkout.ErrTotalMismatch)

	big := cart.New()
	for i := 0; i < 6; i++ {
		require.NoError(t, big.AddItem(croissant(), "", nil))
	}
	_, err = f.manager.Create(ctx, big, big.Total(), "Meja 1")
	var insufficient *inventory.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)

	require.True(t, f.stock(t, "coffee").Equal(dec("100")))
	require.True(t, f.stock(t, "butter-croissant").Equal(dec("5")))
	require.Zero(t, f.count(t, tabs.Collection))
}

func TestListOpenNewestFirst(t *testing.T) {
	f := newFixture(t)
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	var ids []string
	for i, name := range []string{"Meja 1", "Meja 2", "Meja 3"} {
		at := base.Add(time.Duration(i) * time.Minute)
		f.store.Now = func() time.Time { return at }
		c := cart.New()
		require.NoError(t, c.AddItem(croissant(), "", nil))
		tab, err := f.manager.Create(context.Background(), c, 18000, name)
		require.NoError(t, err)
		ids = append(ids, tab.ID)
	}

	open, err := f.manager.ListOpen(context.Background())
	require.NoError(t, err)
	require.Len(t, open, 3)
	require.Equal(t, []string{ids[2], ids[1], ids[0]}, []string{open[0].ID, open[1].ID, open[2].ID})
}

func TestRestoreDropsUnavailableProducts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tab, err := f.manager.Create(ctx, order(t), 68000, "Meja 7")
	require.NoError(t, err)

	updated := latte()
	updated.Price = 30000
	_, err = f.store.Put(ctx, docstore.Ref{Collection: catalog.Collection, ID: "latte"}, updated)
	require.NoError(t, err)
	require.NoError(t, f.catalog.Delete(ctx, "croissant"))

	restored, warnings, err := f.manager.Restore(ctx, tab)
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	require.Equal(t, "croissant", warnings[0].ProductID)
	require.Equal(t, "Croissant", warnings[0].Name)

	lines := restored.Lines()
	require.Len(t, lines, 1)
	require.Equal(t, 2, lines[0].Quantity)
	require.Len(t, lines[0].Product.Recipe, 2)
	require.EqualValues(t, 30000, lines[0].Product.Price)
	require.EqualValues(t, 25000, lines[0].UnitPrice)
	require.Equal(t, "Hot", lines[0].Variant.Name)

	require.NoError(t, f.catalog.Delete(ctx, "latte"))
	restored, warnings, err = f.manager.Restore(ctx, tab)
	require.ErrorIs(t, err, tabs.ErrTabAbandoned)
	require.Nil(t, restored)
	require.Len(t, warnings, 2)
}
