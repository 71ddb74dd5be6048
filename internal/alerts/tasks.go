// Package alerts turns low stock signals into background tasks and durable
// alert records that the back office can review.
package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/kasir-kopi/internal/events"
)

// Task types handled by the worker.
const (
	TypeLowStock      = "inventory:low_stock"
	TypeLowStockSweep = "inventory:low_stock_sweep"
)

// DefaultQueue is the asynq queue alert tasks are enqueued on.
const DefaultQueue = "alerts"

// LowStockTask is the payload of TypeLowStock. It carries only the
// ingredient id so that asynq uniqueness applies per ingredient; the worker
// reads current stock when it runs.
type LowStockTask struct {
	IngredientID string `json:"ingredientId"`
}

// NewLowStockTask builds a TypeLowStock task.
func NewLowStockTask(ingredientID string) (*asynq.Task, error) {
	ingredientID = strings.TrimSpace(ingredientID)
	if ingredientID == "" {
		return nil, errors.New("alerts: ingredient id is required")
	}
	payload, err := json.Marshal(LowStockTask{IngredientID: ingredientID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeLowStock, payload), nil
}

// NewSweepTask builds the periodic TypeLowStockSweep task.
func NewSweepTask() *asynq.Task {
	return asynq.NewTask(TypeLowStockSweep, nil)
}

// TaskEnqueuer is satisfied by *asynq.Client.
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Enqueuer schedules low stock tasks. It implements events.Notifier so the
// event bus can hand stock.low events straight to the queue.
type Enqueuer struct {
	Client     TaskEnqueuer
	Queue      string
	Window     time.Duration
	MaxRetries int
	Log        zerolog.Logger
}

var _ events.Notifier = (*Enqueuer)(nil)

// Notify enqueues a task for stock.low events and ignores every other topic.
func (e *Enqueuer) Notify(ctx context.Context, ev events.Event) error {
	if ev.Topic != events.TopicStockLow {
		return nil
	}
	var payload events.StockLowPayload
	if err := ev.Decode(&payload); err != nil {
		return fmt.Errorf("alerts: decode stock.low payload: %w", err)
	}
	id := payload.IngredientID
	if id == "" {
		id = ev.AggregateID
	}
	_, err := e.Enqueue(ctx, id)
	return err
}

// Enqueue schedules a low stock check for one ingredient. It reports false
// when an identical task is already pending within the uniqueness window.
func (e *Enqueuer) Enqueue(ctx context.Context, ingredientID string) (bool, error) {
	if e == nil || e.Client == nil {
		return false, errors.New("alerts: task client not configured")
	}
	task, err := NewLowStockTask(ingredientID)
	if err != nil {
		return false, err
	}
	queue := e.Queue
	if queue == "" {
		queue = DefaultQueue
	}
	window := e.Window
	if window <= 0 {
		window = 30 * time.Minute
	}
	retries := e.MaxRetries
	if retries <= 0 {
		retries = 5
	}
	info, err := e.Client.EnqueueContext(ctx, task, asynq.Queue(queue), asynq.Unique(window), asynq.MaxRetry(retries))
	if err != nil {
		if errors.Is(err, asynq.ErrDuplicateTask) {
			e.Log.Debug().Str("ingredient_id", ingredientID).Msg("low stock task already pending")
			return false, nil
		}
		return false, fmt.Errorf("alerts: enqueue low stock task: %w", err)
	}
	if info != nil {
		e.Log.Info().Str("ingredient_id", ingredientID).Str("task_id", info.ID).Msg("low stock task enqueued")
	}
	return true, nil
}
