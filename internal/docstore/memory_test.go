package docstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type item struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	Stock     int       `json:"stock"`
	CreatedAt time.Time `json:"createdAt"`
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func newTestMemory(opts Options) (*Memory, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)}
	m := NewMemory(opts)
	m.Now = clock.Now
	return m, clock
}

func TestRunAtomicCreateStampsServerTime(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestMemory(Options{})
	ref := Ref{Collection: "items", ID: "a"}

	err := m.RunAtomic(ctx, func(ctx context.Context, tx Tx) error {
		return tx.Create(ref, item{ID: "a", Name: "Kopi", CreatedAt: time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC)})
	})
	require.NoError(t, err)

	doc, err := m.Get(ctx, ref)
	require.NoError(t, err)
	var got item
	require.NoError(t, doc.Decode(&got))
	require.Equal(t, "Kopi", got.Name)
	require.True(t, got.CreatedAt.Equal(doc.CreatedAt))
	require.Equal(t, 2024, got.CreatedAt.Year())
}

func TestReadAfterWriteIsRejected(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestMemory(Options{})
	_, err := m.Put(ctx, Ref{Collection: "items", ID: "a"}, item{ID: "a"})
	require.NoError(t, err)

	err = m.RunAtomic(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.Update(Ref{Collection: "items", ID: "a"}, map[string]any{"stock": 1}); err != nil {
			return err
		}
		_, err := tx.Get(ctx, Ref{Collection: "items", ID: "a"})
		return err
	})
	require.ErrorIs(t, err, ErrReadAfterWrite)
}

func TestRunAtomicRetriesWhenReadDocumentChanges(t *testing.T) {
	ctx := context.Background()
	var observed int
	m, _ := newTestMemory(Options{OnAttempts: func(n int) { observed = n }})
	ref := Ref{Collection: "items", ID: "a"}
	_, err := m.Put(ctx, ref, item{ID: "a", Stock: 10})
	require.NoError(t, err)

	runs := 0
	err = m.RunAtomic(ctx, func(ctx context.Context, tx Tx) error {
		runs++
		doc, err := tx.Get(ctx, ref)
		if err != nil {
			return err
		}
		var it item
		require.NoError(t, doc.Decode(&it))
		if runs == 1 {
			// another register commits between our read and our commit
			_, err := m.Put(ctx, ref, item{ID: "a", Stock: 4})
			require.NoError(t, err)
		}
		return tx.Update(ref, map[string]any{"stock": it.Stock - 3})
	})
	require.NoError(t, err)
	require.Equal(t, 2, runs)
	require.Equal(t, 2, observed)

	doc, err := m.Get(ctx, ref)
	require.NoError(t, err)
	var it item
	require.NoError(t, doc.Decode(&it))
	require.Equal(t, 1, it.Stock)
}

func TestRunAtomicGivesUpAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestMemory(Options{MaxAttempts: 3})
	ref := Ref{Collection: "items", ID: "a"}
	_, err := m.Put(ctx, ref, item{ID: "a"})
	require.NoError(t, err)

	runs := 0
	err = m.RunAtomic(ctx, func(ctx context.Context, tx Tx) error {
		runs++
		if _, err := tx.Get(ctx, ref); err != nil {
			return err
		}
		_, err := m.Put(ctx, ref, item{ID: "a", Stock: runs})
		require.NoError(t, err)
		return tx.Update(ref, map[string]any{"stock": 0})
	})
	require.ErrorIs(t, err, ErrConflict)
	require.Equal(t, 3, runs)
}

func TestRunAtomicDetectsDeleteAndRecreate(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestMemory(Options{MaxAttempts: 1})
	ref := Ref{Collection: "items", ID: "a"}
	_, err := m.Put(ctx, ref, item{ID: "a"})
	require.NoError(t, err)

	err = m.RunAtomic(ctx, func(ctx context.Context, tx Tx) error {
		if _, err := tx.Get(ctx, ref); err != nil {
			return err
		}
		require.NoError(t, m.Delete(ctx, ref))
		_, err := m.Put(ctx, ref, item{ID: "a"})
		require.NoError(t, err)
		return tx.Delete(ref)
	})
	require.ErrorIs(t, err, ErrConflict)
}

func TestBodyErrorDiscardsWrites(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestMemory(Options{})
	boom := errors.New("boom")
	err := m.RunAtomic(ctx, func(ctx context.Context, tx Tx) error {
		require.NoError(t, tx.Create(Ref{Collection: "items", ID: "a"}, item{ID: "a"}))
		return boom
	})
	require.ErrorIs(t, err, boom)
	_, err = m.Get(ctx, Ref{Collection: "items", ID: "a"})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCommitValidatesWrites(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestMemory(Options{})
	_, err := m.Put(ctx, Ref{Collection: "items", ID: "a"}, item{ID: "a"})
	require.NoError(t, err)

	err = m.RunAtomic(ctx, func(ctx context.Context, tx Tx) error {
		require.NoError(t, tx.Create(Ref{Collection: "items", ID: "b"}, item{ID: "b"}))
		return tx.Create(Ref{Collection: "items", ID: "a"}, item{ID: "a"})
	})
	require.ErrorIs(t, err, ErrAlreadyExists)
	_, err = m.Get(ctx, Ref{Collection: "items", ID: "b"})
	require.ErrorIs(t, err, ErrNotFound, "a failed commit must not apply any write")

	err = m.RunAtomic(ctx, func(ctx context.Context, tx Tx) error {
		return tx.Update(Ref{Collection: "items", ID: "missing"}, map[string]any{"stock": 1})
	})
	require.ErrorIs(t, err, ErrNotFound)

	err = m.RunAtomic(ctx, func(ctx context.Context, tx Tx) error {
		return tx.Create(Ref{Collection: "items", ID: "c"}, []int{1})
	})
	require.ErrorIs(t, err, ErrInvalidDocument)
}

func TestPutKeepsCreationTime(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestMemory(Options{})
	ref := Ref{Collection: "items", ID: "a"}
	first, err := m.Put(ctx, ref, item{ID: "a", Name: "old"})
	require.NoError(t, err)
	second, err := m.Put(ctx, ref, item{ID: "a", Name: "new"})
	require.NoError(t, err)
	require.True(t, first.CreatedAt.Equal(second.CreatedAt))
	require.True(t, second.UpdatedAt.After(first.UpdatedAt))
	require.Greater(t, second.Version, first.Version)
}

func TestQueryFiltersAndOrdering(t *testing.T) {
	ctx := context.Background()
	m, clock := newTestMemory(Options{})
	start := clock.t
	for i, status := range []string{"open", "paid", "open", "open"} {
		_, err := m.Put(ctx, Ref{Collection: "tabs", ID: string(rune('a' + i))}, item{Status: status, Stock: i})
		require.NoError(t, err)
	}

	docs, err := m.Query(ctx, Query{Collection: "tabs", Where: []Filter{{Field: "status", Value: "open"}}, Desc: true})
	require.NoError(t, err)
	require.Len(t, docs, 3)
	require.Equal(t, "d", docs[0].Ref.ID)
	require.Equal(t, "a", docs[2].Ref.ID)

	docs, err = m.Query(ctx, Query{Collection: "tabs", Where: []Filter{{Field: "stock", Value: 2}}})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	require.Equal(t, "c", docs[0].Ref.ID)

	docs, err = m.Query(ctx, Query{
		Collection:    "tabs",
		CreatedFrom:   start.Add(2 * time.Second),
		CreatedBefore: start.Add(4 * time.Second),
	})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	require.Equal(t, "b", docs[0].Ref.ID)
	require.Equal(t, "c", docs[1].Ref.ID)

	docs, err = m.Query(ctx, Query{Collection: "tabs", Limit: 1, Desc: true})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	require.Equal(t, "d", docs[0].Ref.ID)

	_, err = m.Query(ctx, Query{})
	require.ErrorIs(t, err, ErrInvalidQuery)
}

func TestSubscribeDeliversInitialAndAfterCommit(t *testing.T) {
	ctx, cancelCtx := context.WithCancel(context.Background())
	defer cancelCtx()
	m, _ := newTestMemory(Options{})

	deliveries := make(chan []Doc, 8)
	cancel, err := m.Subscribe(ctx, Query{Collection: "items"}, func(docs []Doc, err error) {
		require.NoError(t, err)
		deliveries <- docs
	})
	require.NoError(t, err)
	defer cancel()

	require.Len(t, receive(t, deliveries), 0)

	require.NoError(t, m.RunAtomic(ctx, func(ctx context.Context, tx Tx) error {
		return tx.Create(Ref{Collection: "items", ID: "a"}, item{ID: "a"})
	}))
	require.Len(t, receive(t, deliveries), 1)

	// writes to other collections do not wake the subscriber
	_, err = m.Put(ctx, Ref{Collection: "other", ID: "x"}, item{})
	require.NoError(t, err)
	select {
	case docs := <-deliveries:
		t.Fatalf("unexpected delivery %v", docs)
	case <-time.After(50 * time.Millisecond):
	}

	cancel()
	time.Sleep(20 * time.Millisecond)
	_, err = m.Put(ctx, Ref{Collection: "items", ID: "b"}, item{ID: "b"})
	require.NoError(t, err)
	select {
	case docs := <-deliveries:
		t.Fatalf("delivery after cancel: %v", docs)
	case <-time.After(50 * time.Millisecond):
	}
}

func receive(t *testing.T, ch <-chan []Doc) []Doc {
	t.Helper()
	select {
	case docs := <-ch:
		return docs
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for subscription delivery")
		return nil
	}
}
