package alerts_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/kasir-kopi/internal/alerts"
	"github.com/noah-isme/kasir-kopi/internal/catalog"
	"github.com/noah-isme/kasir-kopi/internal/docstore"
	"github.com/noah-isme/kasir-kopi/internal/events"
	"github.com/noah-isme/kasir-kopi/internal/inventory"
	"github.com/noah-isme/kasir-kopi/internal/lock"
)

type fakeQueue struct {
	mu      sync.Mutex
	pending map[string]bool
	tasks   []*asynq.Task
	opts    [][]asynq.Option
}

func (q *fakeQueue) EnqueueContext(_ context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.pending == nil {
		q.pending = map[string]bool{}
	}
	key := task.Type() + ":" + string(task.Payload())
	if q.pending[key] {
		return nil, asynq.ErrDuplicateTask
	}
	q.pending[key] = true
	q.tasks = append(q.tasks, task)
	q.opts = append(q.opts, opts)
	return &asynq.TaskInfo{ID: key, Type: task.Type(), Payload: task.Payload()}, nil
}

func (q *fakeQueue) ids(t *testing.T) []string {
	t.Helper()
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]string, 0, len(q.tasks))
	for _, task := range q.tasks {
		var p alerts.LowStockTask
		require.NoError(t, json.Unmarshal(task.Payload(), &p))
		out = append(out, p.IngredientID)
	}
	return out
}

func seedInventory(t *testing.T) (*inventory.Service, *docstore.Memory) {
	t.Helper()
	store := docstore.NewMemory(docstore.Options{})
	svc, err := inventory.NewService(inventory.ServiceConfig{Store: store})
	require.NoError(t, err)
	return svc, store
}

func createIngredient(t *testing.T, svc *inventory.Service, name string, stock, min int64) inventory.Ingredient {
	t.Helper()
	ing, err := svc.Create(context.Background(), inventory.IngredientInput{
		Name:     name,
		Stock:    decimal.NewFromInt(stock),
		Unit:     catalog.UnitGram,
		MinStock: decimal.NewFromInt(min),
	})
	require.NoError(t, err)
	return ing
}

func TestEnqueuerNotifyDeduplicates(t *testing.T) {
	q := &fakeQueue{}
	enq := &alerts.Enqueuer{Client: q, Window: time.Minute}
	ctx := context.Background()

	payload, err := json.Marshal(events.StockLowPayload{IngredientID: "coffee", Stock: "12", MinStock: "50"})
	require.NoError(t, err)
	low := events.Event{Topic: events.TopicStockLow, AggregateID: "coffee", Payload: payload}

	require.NoError(t, enq.Notify(ctx, low))
	require.NoError(t, enq.Notify(ctx, low))
	require.NoError(t, enq.Notify(ctx, events.Event{Topic: events.TopicSaleCompleted, AggregateID: "trx-1", Payload: json.RawMessage(`{}`)}))

	require.Equal(t, []string{"coffee"}, q.ids(t))
	require.Equal(t, alerts.TypeLowStock, q.tasks[0].Type())

	var kinds []asynq.OptionType
	for _, opt := range q.opts[0] {
		kinds = append(kinds, opt.Type())
	}
	require.Contains(t, kinds, asynq.UniqueOpt)
	require.Contains(t, kinds, asynq.QueueOpt)

	_, err = enq.Enqueue(ctx, " ")
	require.Error(t, err)
}

func TestProcessorRecordsOnlyLowStock(t *testing.T) {
	inv, store := seedInventory(t)
	base := time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)
	tick := 0
	store.Now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	milk := createIngredient(t, inv, "Milk", 400, 500)
	coffee := createIngredient(t, inv, "Coffee", 12, 50)
	sugar := createIngredient(t, inv, "Sugar", 900, 100)

	svc := &alerts.Service{Store: store}
	p := &alerts.Processor{Inventory: inv, Alerts: svc}
	ctx := context.Background()

	for _, id := range []string{milk.ID, coffee.ID, sugar.ID, "deleted"} {
		task, err := alerts.NewLowStockTask(id)
		require.NoError(t, err)
		require.NoError(t, p.HandleLowStock(ctx, task))
	}

	recorded, err := svc.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recorded, 2)
	require.Equal(t, coffee.ID, recorded[0].IngredientID)
	require.True(t, recorded[0].Stock.Equal(decimal.NewFromInt(12)))
	require.Equal(t, milk.ID, recorded[1].IngredientID)
	require.Equal(t, catalog.UnitGram, recorded[1].Unit)

	err = p.HandleLowStock(ctx, asynq.NewTask(alerts.TypeLowStock, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestSweeperEnqueuesLowIngredientsOnce(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	inv, _ := seedInventory(t)
	coffee := createIngredient(t, inv, "Coffee", 10, 50)
	createIngredient(t, inv, "Sugar", 900, 100)

	q := &fakeQueue{}
	sweeper := &alerts.Sweeper{
		Inventory: inv,
		Enqueuer:  &alerts.Enqueuer{Client: q},
		Locker:    lock.Locker{R: rdb, Prefix: "kasir"},
	}
	ctx := context.Background()

	n, err := sweeper.Sweep(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, []string{coffee.ID}, q.ids(t))

	n, err = sweeper.Sweep(ctx)
	require.NoError(t, err)
	require.Zero(t, n)

	mr.Set("kasir:lock:low-stock-sweep", "other-worker")
	q.pending = nil
	n, err = sweeper.Sweep(ctx)
	require.NoError(t, err)
	require.Zero(t, n)
	require.Len(t, q.tasks, 1)
}
