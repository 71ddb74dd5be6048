package tabs

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/kasir-kopi/internal/cart"
	"github.com/noah-isme/kasir-kopi/internal/catalog"
	"github.com/noah-isme/kasir-kopi/internal/checkout"
	"github.com/noah-isme/kasir-kopi/internal/common"
	"github.com/noah-isme/kasir-kopi/internal/docstore"
	"github.com/noah-isme/kasir-kopi/internal/events"
	"github.com/noah-isme/kasir-kopi/internal/inventory"
	"github.com/noah-isme/kasir-kopi/internal/obs"
	"github.com/noah-isme/kasir-kopi/internal/pricing"
	"github.com/noah-isme/kasir-kopi/internal/sales"
)

// ProductResolver loads live products by id, omitting unknown ids.
type ProductResolver interface {
	Resolve(ctx context.Context, ids []string) (map[string]catalog.Product, error)
}

// Manager holds orders for later payment. Stock is deducted when the tab is
// opened; closing only converts the tab into a sale.
type Manager struct {
	Store    docstore.Store
	Engine   *checkout.Engine
	Products ProductResolver
	Log      zerolog.Logger
}

var _ checkout.TabCloser = (*Manager)(nil)

func ref(id string) docstore.Ref {
	return docstore.Ref{Collection: Collection, ID: id}
}

func openQuery() docstore.Query {
	return docstore.Query{
		Collection: Collection,
		Where:      []docstore.Filter{{Field: "status", Value: StatusOpen}},
		Desc:       true,
	}
}

// Create deducts the cart's stock and stores it as an open tab, in one unit of work.
func (m *Manager) Create(ctx context.Context, c *cart.Cart, total pricing.Money, customerName string) (OpenTab, error) {
	log := obs.WithStation(ctx, m.Log)
	name := strings.TrimSpace(customerName)
	if c.Len() == 0 {
		return OpenTab{}, m.reject(log, "tab_open", cart.ErrEmpty)
	}
	if name == "" {
		return OpenTab{}, m.reject(log, "tab_open", ErrInvalidCustomerName)
	}
	if err := checkout.ValidateCart(c, total); err != nil {
		return OpenTab{}, m.reject(log, "tab_open", err)
	}

	lines := c.Lines()
	station, _ := common.StationID(ctx)
	tab := OpenTab{
		ID:           docstore.NewRef(Collection).ID,
		CustomerName: name,
		Items:        c.Snapshot(),
		TotalAmount:  total,
		Status:       StatusOpen,
		StationID:    station,
	}
	var plan *inventory.Plan
	err := m.Store.RunAtomic(ctx, func(ctx context.Context, tx docstore.Tx) error {
		var err error
		plan, err = m.Engine.ReserveStock(ctx, tx, lines)
		if err != nil {
			return err
		}
		if err := tx.Create(ref(tab.ID), tab); err != nil {
			return err
		}
		return plan.Apply(tx)
	})
	if err != nil {
		return OpenTab{}, m.reject(log, "tab_open", err)
	}
	if stored, err := m.Get(ctx, tab.ID); err == nil {
		tab = stored
	}
	obs.ObserveSettlement("tab_open", "committed")
	log.Info().Str("tab_id", tab.ID).Str("customer", tab.CustomerName).Int64("total", tab.TotalAmount).Msg("tab opened")
	m.Engine.AfterCommit(ctx, events.TopicTabOpened, tab.ID, map[string]any{
		"tabId":        tab.ID,
		"customerName": tab.CustomerName,
		"total":        tab.TotalAmount,
	}, plan)
	m.refreshGauge(ctx)
	return tab, nil
}

// Close converts tab into a sale and deletes it, in one unit of work. The
// stored items and total are used and stock is not touched again. Payment is
// checked before the unit of work so negative change is never recorded.
func (m *Manager) Close(ctx context.Context, tab OpenTab, amountPaid pricing.Money) (sales.Transaction, error) {
	log := obs.WithStation(ctx, m.Log).With().Str("tab_id", tab.ID).Logger()
	if _, err := checkout.CheckPayment(tab.TotalAmount, amountPaid); err != nil {
		return sales.Transaction{}, m.reject(log, "tab_close", err)
	}
	station, _ := common.StationID(ctx)
	var trx sales.Transaction
	err := m.Store.RunAtomic(ctx, func(ctx context.Context, tx docstore.Tx) error {
		doc, err := tx.Get(ctx, ref(tab.ID))
		if errors.Is(err, docstore.ErrNotFound) {
			return ErrTabNotFound
		}
		if err != nil {
			return err
		}
		var stored OpenTab
		if err := doc.Decode(&stored); err != nil {
			return err
		}
		if stored.Status != StatusOpen {
			return ErrTabNotFound
		}
		change, err := checkout.CheckPayment(stored.TotalAmount, amountPaid)
		if err != nil {
			return err
		}
		trx = sales.Transaction{
			Items:         stored.Items,
			TotalAmount:   stored.TotalAmount,
			PaymentMethod: sales.PaymentCash,
			AmountPaid:    amountPaid,
			Change:        change,
			Source:        sales.SourceTab,
			TabID:         stored.ID,
			CustomerName:  stored.CustomerName,
			StationID:     station,
		}
		if err := sales.Stage(tx, &trx); err != nil {
			return err
		}
		return tx.Delete(ref(tab.ID))
	})
	if err != nil {
		return sales.Transaction{}, m.reject(log, "tab_close", err)
	}
	if stored, err := m.Store.Get(ctx, docstore.Ref{Collection: sales.Collection, ID: trx.ID}); err == nil {
		_ = stored.Decode(&trx)
	}
	obs.ObserveSettlement("tab_close", "committed")
	log.Info().Str("transaction_id", trx.ID).Int64("total", trx.TotalAmount).Int64("change", trx.Change).Msg("tab closed")
	m.Engine.AfterCommit(ctx, events.TopicTabClosed, tab.ID, map[string]any{
		"tabId":         tab.ID,
		"transactionId": trx.ID,
		"total":         trx.TotalAmount,
	}, nil)
	m.refreshGauge(ctx)
	return trx, nil
}

// CloseByID loads the tab and closes it.
func (m *Manager) CloseByID(ctx context.Context, id string, amountPaid pricing.Money) (sales.Transaction, error) {
	tab, err := m.Get(ctx, id)
	if err != nil {
		return sales.Transaction{}, err
	}
	return m.Close(ctx, tab, amountPaid)
}

// Get loads one open tab.
func (m *Manager) Get(ctx context.Context, id string) (OpenTab, error) {
	doc, err := m.Store.Get(ctx, ref(id))
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return OpenTab{}, ErrTabNotFound
		}
		return OpenTab{}, fmt.Errorf("get tab: %w", err)
	}
	var tab OpenTab
	if err := doc.Decode(&tab); err != nil {
		return OpenTab{}, err
	}
	return tab, nil
}

// ListOpen returns open tabs, newest first.
func (m *Manager) ListOpen(ctx context.Context) ([]OpenTab, error) {
	docs, err := m.Store.Query(ctx, openQuery())
	if err != nil {
		return nil, fmt.Errorf("list tabs: %w", err)
	}
	tabs, err := docstore.DecodeAll[OpenTab](docs)
	if err != nil {
		return nil, err
	}
	obs.SetOpenTabs(len(tabs))
	return tabs, nil
}

// Subscribe streams the open tabs, newest first, after every change.
func (m *Manager) Subscribe(ctx context.Context, fn func([]OpenTab, error)) (func(), error) {
	return m.Store.Subscribe(ctx, openQuery(), func(docs []docstore.Doc, err error) {
		if err != nil {
			fn(nil, err)
			return
		}
		tabs, err := docstore.DecodeAll[OpenTab](docs)
		if err == nil {
			obs.SetOpenTabs(len(tabs))
		}
		fn(tabs, err)
	})
}

// Restore rebuilds an editable cart from tab by resolving each line's product
// against the live catalog. Lines whose product is gone are dropped and
// reported; if nothing remains the tab is abandoned.
func (m *Manager) Restore(ctx context.Context, tab OpenTab) (*cart.Cart, []ProductUnavailableWarning, error) {
	ids := make([]string, 0, len(tab.Items))
	for _, item := range tab.Items {
		ids = append(ids, item.Product.ID)
	}
	products, err := m.Products.Resolve(ctx, ids)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve tab products: %w", err)
	}
	var (
		lines    []cart.Line
		warnings []ProductUnavailableWarning
	)
	for _, item := range tab.Items {
		p, ok := products[item.Product.ID]
		if !ok {
			warnings = append(warnings, ProductUnavailableWarning{
				ProductID: item.Product.ID,
				Name:      item.Product.Name,
				Quantity:  item.Quantity,
			})
			continue
		}
		lines = append(lines, cart.Line{
			Product:    p,
			Quantity:   item.Quantity,
			Variant:    item.SelectedVariant,
			Modifiers:  item.SelectedModifiers,
			UnitPrice:  item.UnitPrice,
			TotalPrice: item.TotalPrice,
		})
	}
	for _, w := range warnings {
		m.Log.Warn().Str("tab_id", tab.ID).Str("product_id", w.ProductID).Msg(w.String())
	}
	if len(lines) == 0 {
		return nil, warnings, ErrTabAbandoned
	}
	return cart.FromLines(lines), warnings, nil
}

func (m *Manager) refreshGauge(ctx context.Context) {
	if _, err := m.ListOpen(ctx); err != nil {
		m.Log.Warn().Err(err).Msg("refresh open tab gauge failed")
	}
}

func (m *Manager) reject(log zerolog.Logger, kind string, err error) error {
	result := "rejected"
	if errors.Is(err, docstore.ErrConflict) {
		result = "conflict"
	}
	obs.ObserveSettlement(kind, result)
	log.Warn().Err(err).Str("kind", kind).Msg("tab operation rejected")
	return err
}
