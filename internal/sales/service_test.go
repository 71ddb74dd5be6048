package sales_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/kasir-kopi/internal/docstore"
	"github.com/noah-isme/kasir-kopi/internal/sales"
)

func jakarta(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Jakarta")
	require.NoError(t, err)
	return loc
}

func record(t *testing.T, store *docstore.Memory, at time.Time, total int64) sales.Transaction {
	t.Helper()
	store.Now = func() time.Time { return at }
	trx := sales.Transaction{TotalAmount: total, AmountPaid: total, Source: sales.SourceDirect}
	err := store.RunAtomic(context.Background(), func(ctx context.Context, tx docstore.Tx) error {
		return sales.Stage(tx, &trx)
	})
	require.NoError(t, err)
	return trx
}

func TestDayRange(t *testing.T) {
	loc := jakarta(t)
	start, end := sales.DayRange(time.Date(2026, 3, 14, 16, 30, 0, 0, time.UTC), loc)
	// 16:30 UTC is 23:30 in Jakarta
	require.Equal(t, time.Date(2026, 3, 14, 0, 0, 0, 0, loc), start)
	require.Equal(t, time.Date(2026, 3, 15, 0, 0, 0, 0, loc), end)
}

func TestTodayBoundary(t *testing.T) {
	loc := jakarta(t)
	store := docstore.NewMemory(docstore.Options{})
	lastSecond := record(t, store, time.Date(2026, 3, 14, 23, 59, 59, 0, loc), 25000)
	nextDay := record(t, store, time.Date(2026, 3, 15, 0, 0, 0, 0, loc), 18000)
	record(t, store, time.Date(2026, 3, 13, 23, 59, 59, 0, loc), 5000)

	svc := &sales.Service{Store: store, Location: loc, Now: func() time.Time {
		return time.Date(2026, 3, 14, 9, 0, 0, 0, loc)
	}}
	today, err := svc.Today(context.Background())
	require.NoError(t, err)
	require.Len(t, today, 1)
	require.Equal(t, lastSecond.ID, today[0].ID)
	require.Equal(t, sales.PaymentCash, today[0].PaymentMethod)

	svc.Now = func() time.Time { return time.Date(2026, 3, 15, 12, 0, 0, 0, loc) }
	today, err = svc.Today(context.Background())
	require.NoError(t, err)
	require.Len(t, today, 1)
	require.Equal(t, nextDay.ID, today[0].ID)
	require.Equal(t, sales.Summary{Count: 1, Revenue: 18000}, sales.Summarize(today))
}

func TestListNewestFirst(t *testing.T) {
	store := docstore.NewMemory(docstore.Options{})
	base := time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)
	var ids []string
	for i := 0; i < 3; i++ {
		ids = append(ids, record(t, store, base.Add(time.Duration(i)*time.Minute), int64(1000*(i+1))).ID)
	}
	svc := &sales.Service{Store: store}

	txs, err := svc.List(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	require.Equal(t, ids[2], txs[0].ID)
	require.Equal(t, ids[1], txs[1].ID)
	require.True(t, txs[0].CreatedAt.Equal(base.Add(2*time.Minute)))

	got, err := svc.Get(context.Background(), ids[0])
	require.NoError(t, err)
	require.EqualValues(t, 1000, got.TotalAmount)
	_, err = svc.Get(context.Background(), "nope")
	require.ErrorIs(t, err, sales.ErrTransactionNotFound)
}

func TestSubscribeTodayKeepsWindow(t *testing.T) {
	loc := jakarta(t)
	store := docstore.NewMemory(docstore.Options{})
	day := time.Date(2026, 3, 14, 10, 0, 0, 0, loc)
	svc := &sales.Service{Store: store, Location: loc, Now: func() time.Time { return day }}

	updates := make(chan []sales.Transaction, 8)
	ctx, cancelCtx := context.WithCancel(context.Background())
	defer cancelCtx()
	cancel, err := svc.SubscribeToday(ctx, func(txs []sales.Transaction, err error) {
		if err == nil {
			updates <- txs
		}
	})
	require.NoError(t, err)
	defer cancel()
	require.Empty(t, <-updates)

	record(t, store, day.Add(time.Hour), 12000)
	select {
	case txs := <-updates:
		require.Len(t, txs, 1)
	case <-time.After(2 * time.Second):
		t.Fatal("no update delivered")
	}

	record(t, store, day.AddDate(0, 0, 1), 9000)
	select {
	case txs := <-updates:
		require.Len(t, txs, 1)
	case <-time.After(2 * time.Second):
		t.Fatal("no update delivered")
	}
}

func TestListHandlerPaginates(t *testing.T) {
	store := docstore.NewMemory(docstore.Options{})
	base := time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		record(t, store, base.Add(time.Duration(i)*time.Second), 1000)
	}
	h := &sales.Handler{Svc: &sales.Service{Store: store}}

	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/api/v1/transactions?page=2&limit=2", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"has_more":true`)

	rec = httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/api/v1/transactions?page=3&limit=2", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"has_more":false`)

	rec = httptest.NewRecorder()
	h.Today(rec, httptest.NewRequest(http.MethodGet, "/api/v1/transactions/today", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}
