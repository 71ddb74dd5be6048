package docstore

import (
	"context"
	"sync"
)

// hub fans commit notifications out to live query subscribers. Each subscriber
// owns a one-slot dirty channel so bursts of commits collapse into one re-query.
type hub struct {
	mu   sync.Mutex
	subs map[string]map[*subscriber]struct{}
}

type subscriber struct {
	dirty chan struct{}
}

func newHub() *hub {
	return &hub{subs: make(map[string]map[*subscriber]struct{})}
}

func (s *subscriber) mark() {
	select {
	case s.dirty <- struct{}{}:
	default:
	}
}

func (h *hub) add(collection string, s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[collection]
	if !ok {
		set = make(map[*subscriber]struct{})
		h.subs[collection] = set
	}
	set[s] = struct{}{}
}

func (h *hub) remove(collection string, s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.subs[collection]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(h.subs, collection)
		}
	}
}

func (h *hub) notify(collections ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range collections {
		for s := range h.subs[c] {
			s.mark()
		}
	}
}

func (h *hub) notifyAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, set := range h.subs {
		for s := range set {
			s.mark()
		}
	}
}

func (h *hub) watch(ctx context.Context, q Query, run func(context.Context, Query) ([]Doc, error), fn Listener) (func(), error) {
	if q.Collection == "" {
		return nil, ErrInvalidQuery
	}
	if fn == nil {
		fn = func([]Doc, error) {}
	}
	ctx, cancel := context.WithCancel(ctx)
	sub := &subscriber{dirty: make(chan struct{}, 1)}
	sub.mark()
	h.add(q.Collection, sub)

	go func() {
		defer h.remove(q.Collection, sub)
		for {
			select {
			case <-ctx.Done():
				return
			case <-sub.dirty:
				docs, err := run(ctx, q)
				if ctx.Err() != nil {
					return
				}
				fn(docs, err)
			}
		}
	}()
	return cancel, nil
}
