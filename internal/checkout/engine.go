package checkout

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/kasir-kopi/internal/cart"
	"github.com/noah-isme/kasir-kopi/internal/common"
	"github.com/noah-isme/kasir-kopi/internal/docstore"
	"github.com/noah-isme/kasir-kopi/internal/events"
	"github.com/noah-isme/kasir-kopi/internal/inventory"
	"github.com/noah-isme/kasir-kopi/internal/obs"
	"github.com/noah-isme/kasir-kopi/internal/pricing"
	"github.com/noah-isme/kasir-kopi/internal/sales"
)

// State is the lifecycle of one settlement call.
type State string

// Settlement states.
const (
	StatePending    State = "PENDING"
	StateValidating State = "VALIDATING"
	StateCommitted  State = "COMMITTED"
	StateRejected   State = "REJECTED"
)

// Engine turns carts into sale records and stock deductions in a single
// unit of work.
type Engine struct {
	Store  docstore.Store
	Ledger inventory.Ledger
	Events *events.Bus
	Log    zerolog.Logger
}

// Requirements expands every recipe item by its line quantity.
func Requirements(lines []cart.Line) []inventory.Requirement {
	var reqs []inventory.Requirement
	for _, l := range lines {
		qty := decimal.NewFromInt(int64(l.Quantity))
		for _, item := range l.Product.Recipe {
			reqs = append(reqs, inventory.Requirement{
				IngredientID:   item.IngredientID,
				IngredientName: item.IngredientName,
				Quantity:       item.Quantity.Mul(qty),
				Unit:           item.Unit,
			})
		}
	}
	return reqs
}

// ReserveStock reads and validates every ingredient the lines consume inside
// tx. The returned plan must be applied after any other reads of the body.
func (e *Engine) ReserveStock(ctx context.Context, tx docstore.Tx, lines []cart.Line) (*inventory.Plan, error) {
	return e.Ledger.Plan(ctx, tx, Requirements(lines))
}

// ValidateCart runs the checks shared by direct sales and new tabs.
func ValidateCart(c *cart.Cart, total pricing.Money) error {
	if c.Len() == 0 {
		return cart.ErrEmpty
	}
	if total != c.Total() {
		return ErrTotalMismatch
	}
	return nil
}

// Settle records a cash sale for c and deducts its recipe stock. Either the
// sale and every deduction commit together or nothing is written.
func (e *Engine) Settle(ctx context.Context, c *cart.Cart, total, amountPaid pricing.Money) (sales.Transaction, error) {
	state := StatePending
	log := obs.WithStation(ctx, e.Log)

	if err := ValidateCart(c, total); err != nil {
		return sales.Transaction{}, e.reject(log, err)
	}
	change, err := CheckPayment(total, amountPaid)
	if err != nil {
		return sales.Transaction{}, e.reject(log, err)
	}

	state = StateValidating
	lines := c.Lines()
	items := c.Snapshot()
	station, _ := common.StationID(ctx)
	var (
		trx  sales.Transaction
		plan *inventory.Plan
	)
	err = e.Store.RunAtomic(ctx, func(ctx context.Context, tx docstore.Tx) error {
		var err error
		plan, err = e.ReserveStock(ctx, tx, lines)
		if err != nil {
			return err
		}
		trx = sales.Transaction{
			Items:         items,
			TotalAmount:   total,
			PaymentMethod: sales.PaymentCash,
			AmountPaid:    amountPaid,
			Change:        change,
			Source:        sales.SourceDirect,
			StationID:     station,
		}
		if err := sales.Stage(tx, &trx); err != nil {
			return err
		}
		return plan.Apply(tx)
	})
	if err != nil {
		return sales.Transaction{}, e.reject(log.With().Str("state", string(state)).Logger(), err)
	}
	state = StateCommitted

	// CreatedAt is the commit time assigned by the store.
	if stored, err := e.Store.Get(ctx, docstore.Ref{Collection: sales.Collection, ID: trx.ID}); err == nil {
		_ = stored.Decode(&trx)
	}
	obs.ObserveSettlement("sale", "committed")
	log.Info().
		Str("state", string(state)).
		Str("transaction_id", trx.ID).
		Int64("total", trx.TotalAmount).
		Int64("change", trx.Change).
		Int("lines", len(trx.Items)).
		Msg("sale settled")
	e.AfterCommit(ctx, events.TopicSaleCompleted, trx.ID, map[string]any{
		"transactionId": trx.ID,
		"total":         trx.TotalAmount,
		"items":         len(trx.Items),
		"source":        trx.Source,
	}, plan)
	return trx, nil
}

// AfterCommit records deductions and publishes the outcome of a committed
// unit of work, including a stock.low event per ingredient left at or below
// its threshold.
func (e *Engine) AfterCommit(ctx context.Context, topic, aggregateID string, payload any, plan *inventory.Plan) {
	for _, d := range plan.Deductions() {
		obs.ObserveDeduction(d.Name, d.Required.InexactFloat64())
	}
	if e.Events == nil {
		return
	}
	if _, err := e.Events.Emit(ctx, topic, aggregateID, payload); err != nil {
		e.Log.Warn().Err(err).Str("topic", topic).Str("aggregate_id", aggregateID).Msg("emit event failed")
	}
	for _, d := range plan.LowStock() {
		obs.ObserveLowStockAlert("settlement")
		_, err := e.Events.Emit(ctx, events.TopicStockLow, d.IngredientID, events.StockLowPayload{
			IngredientID: d.IngredientID,
			Name:         d.Name,
			Stock:        d.After.String(),
			MinStock:     d.MinStock.String(),
			Unit:         string(d.Unit),
		})
		if err != nil {
			e.Log.Warn().Err(err).Str("ingredient_id", d.IngredientID).Msg("emit stock.low failed")
		}
	}
}

func (e *Engine) reject(log zerolog.Logger, err error) error {
	result := "rejected"
	if errors.Is(err, docstore.ErrConflict) {
		result = "conflict"
	}
	obs.ObserveSettlement("sale", result)
	var coded common.Coded
	if errors.As(err, &coded) {
		log.Warn().Err(err).Str("result", string(StateRejected)).Str("code", coded.ErrorCode()).Msg("sale rejected")
	} else {
		log.Error().Err(err).Str("result", string(StateRejected)).Msg("sale failed")
	}
	return err
}
