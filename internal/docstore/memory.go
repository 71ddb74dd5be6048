package docstore

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"
)

// Memory is an in-process Store. Every document carries a version drawn from a
// store-wide counter so a delete followed by a re-create is still detected as a
// change by concurrent transactions.
type Memory struct {
	mu   sync.RWMutex
	cols map[string]map[string]*record
	seq  int64
	opts Options
	hub  *hub

	// Now is the commit clock used for server timestamps.
	Now func() time.Time
}

type record struct {
	doc     Doc
	ordinal int64
}

var _ Store = (*Memory)(nil)

// NewMemory constructs an empty in-memory store.
func NewMemory(opts Options) *Memory {
	return &Memory{
		cols: make(map[string]map[string]*record),
		opts: opts,
		hub:  newHub(),
		Now:  time.Now,
	}
}

func (m *Memory) now() time.Time {
	if m.Now != nil {
		return m.Now().UTC()
	}
	return time.Now().UTC()
}

func (m *Memory) lookup(ref Ref) *record {
	if col, ok := m.cols[ref.Collection]; ok {
		return col[ref.ID]
	}
	return nil
}

func (m *Memory) versionOf(ref Ref) int64 {
	if rec := m.lookup(ref); rec != nil {
		return rec.doc.Version
	}
	return 0
}

func (m *Memory) store(rec *record) {
	col, ok := m.cols[rec.doc.Ref.Collection]
	if !ok {
		col = make(map[string]*record)
		m.cols[rec.doc.Ref.Collection] = col
	}
	col[rec.doc.Ref.ID] = rec
}

// Ping always succeeds.
func (m *Memory) Ping(context.Context) error { return nil }

// Get returns a document snapshot.
func (m *Memory) Get(ctx context.Context, ref Ref) (Doc, error) {
	if err := ctx.Err(); err != nil {
		return Doc{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec := m.lookup(ref)
	if rec == nil {
		return Doc{}, ErrNotFound
	}
	return rec.doc, nil
}

// Query returns the documents matching q.
func (m *Memory) Query(ctx context.Context, q Query) ([]Doc, error) {
	if q.Collection == "" {
		return nil, ErrInvalidQuery
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	recs := make([]*record, 0, len(m.cols[q.Collection]))
	for _, rec := range m.cols[q.Collection] {
		if matches(rec.doc, q) {
			recs = append(recs, rec)
		}
	}
	m.mu.RUnlock()

	sort.Slice(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		if !a.doc.CreatedAt.Equal(b.doc.CreatedAt) {
			if q.Desc {
				return a.doc.CreatedAt.After(b.doc.CreatedAt)
			}
			return a.doc.CreatedAt.Before(b.doc.CreatedAt)
		}
		if q.Desc {
			return a.ordinal > b.ordinal
		}
		return a.ordinal < b.ordinal
	})
	if q.Limit > 0 && len(recs) > q.Limit {
		recs = recs[:q.Limit]
	}
	docs := make([]Doc, len(recs))
	for i, rec := range recs {
		docs[i] = rec.doc
	}
	return docs, nil
}

// Put creates or overwrites a document.
func (m *Memory) Put(ctx context.Context, ref Ref, v any) (Doc, error) {
	if err := ctx.Err(); err != nil {
		return Doc{}, err
	}
	if err := validRef(ref); err != nil {
		return Doc{}, err
	}
	raw, err := encodeObject(v)
	if err != nil {
		return Doc{}, err
	}
	m.mu.Lock()
	now := m.now()
	created := now
	ordinal := int64(0)
	if existing := m.lookup(ref); existing != nil {
		created = existing.doc.CreatedAt
		ordinal = existing.ordinal
	}
	data, err := withCreatedAt(raw, created)
	if err != nil {
		m.mu.Unlock()
		return Doc{}, err
	}
	m.seq++
	if ordinal == 0 {
		ordinal = m.seq
	}
	rec := &record{
		doc:     Doc{Ref: ref, Data: data, Version: m.seq, CreatedAt: created, UpdatedAt: now},
		ordinal: ordinal,
	}
	m.store(rec)
	m.mu.Unlock()

	m.hub.notify(ref.Collection)
	return rec.doc, nil
}

// Delete removes a document outside any unit of work.
func (m *Memory) Delete(ctx context.Context, ref Ref) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	if m.lookup(ref) == nil {
		m.mu.Unlock()
		return ErrNotFound
	}
	delete(m.cols[ref.Collection], ref.ID)
	m.mu.Unlock()

	m.hub.notify(ref.Collection)
	return nil
}

// Subscribe registers a live query.
func (m *Memory) Subscribe(ctx context.Context, q Query, fn Listener) (func(), error) {
	return m.hub.watch(ctx, q, m.Query, fn)
}

// RunAtomic executes fn and commits its staged writes if nothing it read has
// changed, re-running it otherwise.
func (m *Memory) RunAtomic(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	limit := m.opts.maxAttempts()
	for attempt := 1; attempt <= limit; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		tx := &memTx{m: m, staged: newStaged()}
		if err := fn(ctx, tx); err != nil {
			m.opts.observe(attempt)
			return err
		}
		stale, err := m.commit(tx)
		if stale {
			continue
		}
		m.opts.observe(attempt)
		return err
	}
	m.opts.observe(limit)
	return ErrConflict
}

func (m *Memory) commit(tx *memTx) (stale bool, err error) {
	m.mu.Lock()
	for ref, version := range tx.reads {
		if m.versionOf(ref) != version {
			m.mu.Unlock()
			return true, nil
		}
	}

	now := m.now()
	overlay := make(map[Ref]*record, len(tx.writes))
	current := func(ref Ref) *record {
		if rec, ok := overlay[ref]; ok {
			return rec
		}
		return m.lookup(ref)
	}
	seq := m.seq
	for _, w := range tx.writes {
		existing := current(w.ref)
		switch w.kind {
		case opCreate:
			if existing != nil {
				m.mu.Unlock()
				return false, ErrAlreadyExists
			}
			data, err := withCreatedAt(w.data, now)
			if err != nil {
				m.mu.Unlock()
				return false, err
			}
			seq++
			overlay[w.ref] = &record{
				doc:     Doc{Ref: w.ref, Data: data, Version: seq, CreatedAt: now, UpdatedAt: now},
				ordinal: seq,
			}
		case opUpdate:
			if existing == nil {
				m.mu.Unlock()
				return false, ErrNotFound
			}
			data, err := mergeFields(existing.doc.Data, w.fields)
			if err != nil {
				m.mu.Unlock()
				return false, err
			}
			seq++
			doc := existing.doc
			doc.Data = data
			doc.Version = seq
			doc.UpdatedAt = now
			overlay[w.ref] = &record{doc: doc, ordinal: existing.ordinal}
		case opDelete:
			overlay[w.ref] = nil
		}
	}

	m.seq = seq
	for ref, rec := range overlay {
		if rec == nil {
			if col, ok := m.cols[ref.Collection]; ok {
				delete(col, ref.ID)
			}
			continue
		}
		m.store(rec)
	}
	m.mu.Unlock()

	m.hub.notify(tx.collections()...)
	return false, nil
}

type memTx struct {
	m *Memory
	staged
}

func (t *memTx) Get(ctx context.Context, ref Ref) (Doc, error) {
	if err := t.checkRead(); err != nil {
		return Doc{}, err
	}
	if err := ctx.Err(); err != nil {
		return Doc{}, err
	}
	t.m.mu.RLock()
	rec := t.m.lookup(ref)
	t.m.mu.RUnlock()
	version := int64(0)
	if rec != nil {
		version = rec.doc.Version
	}
	if _, seen := t.reads[ref]; !seen {
		t.reads[ref] = version
	}
	if rec == nil {
		return Doc{}, ErrNotFound
	}
	doc := rec.doc
	doc.Data = append(json.RawMessage(nil), rec.doc.Data...)
	return doc, nil
}

func (t *memTx) Create(ref Ref, v any) error { return t.create(ref, v) }

func (t *memTx) Update(ref Ref, fields map[string]any) error { return t.update(ref, fields) }

func (t *memTx) Delete(ref Ref) error { return t.delete(ref) }
