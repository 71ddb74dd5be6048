package sales

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/noah-isme/kasir-kopi/internal/common"
	"github.com/noah-isme/kasir-kopi/internal/docstore"
	"github.com/noah-isme/kasir-kopi/internal/pricing"
)

// ErrTransactionNotFound is returned for an unknown sale id.
var ErrTransactionNotFound = common.NewCodedError("TRANSACTION_NOT_FOUND", http.StatusNotFound, "transaction not found")

// Service reads sale records. Records are only ever created by settlement.
type Service struct {
	Store    docstore.Store
	Location *time.Location
	Now      func() time.Time
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Summary aggregates a set of sales.
type Summary struct {
	Count   int           `json:"count"`
	Revenue pricing.Money `json:"revenue"`
}

// Summarize totals txs.
func Summarize(txs []Transaction) Summary {
	sum := Summary{Count: len(txs)}
	for _, t := range txs {
		sum.Revenue += t.TotalAmount
	}
	return sum
}

// List returns the newest sales first.
func (s *Service) List(ctx context.Context, limit int) ([]Transaction, error) {
	return s.query(ctx, docstore.Query{Collection: Collection, Desc: true, Limit: limit})
}

// Get loads one sale.
func (s *Service) Get(ctx context.Context, id string) (Transaction, error) {
	doc, err := s.Store.Get(ctx, docstore.Ref{Collection: Collection, ID: id})
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return Transaction{}, ErrTransactionNotFound
		}
		return Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	var t Transaction
	if err := doc.Decode(&t); err != nil {
		return Transaction{}, err
	}
	return t, nil
}

// Between returns sales created in [from, to), newest first.
func (s *Service) Between(ctx context.Context, from, to time.Time) ([]Transaction, error) {
	return s.query(ctx, docstore.Query{Collection: Collection, CreatedFrom: from, CreatedBefore: to, Desc: true})
}

// Today returns the sales of the current local calendar day.
func (s *Service) Today(ctx context.Context) ([]Transaction, error) {
	from, to := DayRange(s.now(), s.Location)
	return s.Between(ctx, from, to)
}

// Subscribe streams the newest sales after every change.
func (s *Service) Subscribe(ctx context.Context, limit int, fn func([]Transaction, error)) (func(), error) {
	return s.subscribe(ctx, docstore.Query{Collection: Collection, Desc: true, Limit: limit}, fn)
}

// SubscribeToday streams the sales of the local day current at subscription
// time. The window does not roll over; subscribe again for a new day.
func (s *Service) SubscribeToday(ctx context.Context, fn func([]Transaction, error)) (func(), error) {
	from, to := DayRange(s.now(), s.Location)
	return s.subscribe(ctx, docstore.Query{Collection: Collection, CreatedFrom: from, CreatedBefore: to, Desc: true}, fn)
}

func (s *Service) query(ctx context.Context, q docstore.Query) ([]Transaction, error) {
	docs, err := s.Store.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	return docstore.DecodeAll[Transaction](docs)
}

func (s *Service) subscribe(ctx context.Context, q docstore.Query, fn func([]Transaction, error)) (func(), error) {
	return s.Store.Subscribe(ctx, q, func(docs []docstore.Doc, err error) {
		if err != nil {
			fn(nil, err)
			return
		}
		fn(docstore.DecodeAll[Transaction](docs))
	})
}
