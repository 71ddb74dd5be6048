// Package docstore is a small document database used as the shared ledger of
// every register. Documents are JSON objects grouped in collections. Writes that
// must be consistent with what was read go through RunAtomic, which commits only
// when none of the documents read by the body changed in the meantime and
// re-runs the body otherwise.
package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/kasir-kopi/internal/common"
)

// CreatedAtField is the data key the store stamps with the commit time on create.
const CreatedAtField = "createdAt"

// DefaultMaxAttempts bounds how many times RunAtomic executes a conflicting body.
const DefaultMaxAttempts = 5

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = common.NewCodedError("NOT_FOUND", http.StatusNotFound, "document not found")
	// ErrAlreadyExists is returned when creating a document whose id is taken.
	ErrAlreadyExists = common.NewCodedError("ALREADY_EXISTS", http.StatusConflict, "document already exists")
	// ErrReadAfterWrite is returned when a transaction reads after staging a write.
	ErrReadAfterWrite = errors.New("docstore: all reads must happen before any write")
	// ErrConflict is returned when contention persists after every attempt.
	ErrConflict = common.NewCodedError("STORE_CONFLICT", http.StatusConflict, "the store is busy, please retry")
	// ErrInvalidDocument is returned when a value does not encode to a JSON object.
	ErrInvalidDocument = errors.New("docstore: document must encode to a JSON object")
	// ErrInvalidQuery is returned when a query names no collection.
	ErrInvalidQuery = errors.New("docstore: query requires a collection")
)

// Ref addresses one document.
type Ref struct {
	Collection string
	ID         string
}

// NewRef returns a reference with a freshly generated id.
func NewRef(collection string) Ref {
	return Ref{Collection: collection, ID: uuid.NewString()}
}

func (r Ref) String() string { return r.Collection + "/" + r.ID }

// Doc is a stored document snapshot.
type Doc struct {
	Ref       Ref
	Data      json.RawMessage
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Decode unmarshals the document data into dst.
func (d Doc) Decode(dst any) error {
	if err := json.Unmarshal(d.Data, dst); err != nil {
		return fmt.Errorf("decode %s: %w", d.Ref, err)
	}
	return nil
}

// DecodeAll decodes every document into a slice of T.
func DecodeAll[T any](docs []Doc) ([]T, error) {
	out := make([]T, 0, len(docs))
	for _, d := range docs {
		var v T
		if err := d.Decode(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Filter matches documents whose top-level Field equals Value.
type Filter struct {
	Field string
	Value any
}

// Query selects documents of one collection ordered by creation time.
type Query struct {
	Collection    string
	Where         []Filter
	CreatedFrom   time.Time // inclusive, ignored when zero
	CreatedBefore time.Time // exclusive, ignored when zero
	Desc          bool
	Limit         int
}

// Listener receives the full result set of a subscribed query.
type Listener func(docs []Doc, err error)

// Tx is the unit-of-work handle passed to RunAtomic bodies. Reads record the
// version they observed; writes are staged and applied at commit.
type Tx interface {
	Get(ctx context.Context, ref Ref) (Doc, error)
	Create(ref Ref, v any) error
	Update(ref Ref, fields map[string]any) error
	Delete(ref Ref) error
}

// Store is implemented by Memory and Postgres.
type Store interface {
	RunAtomic(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Get(ctx context.Context, ref Ref) (Doc, error)
	Query(ctx context.Context, q Query) ([]Doc, error)
	// Put creates or overwrites a document outside any unit of work. An
	// overwrite keeps the original creation time.
	Put(ctx context.Context, ref Ref, v any) (Doc, error)
	Delete(ctx context.Context, ref Ref) error
	// Subscribe delivers the query result once and again after every commit
	// touching the collection, until the returned cancel is called or ctx ends.
	Subscribe(ctx context.Context, q Query, fn Listener) (cancel func(), err error)
	Ping(ctx context.Context) error
}

// Options tune a store implementation.
type Options struct {
	MaxAttempts int
	// OnAttempts observes the number of attempts each RunAtomic call used.
	OnAttempts func(attempts int)
}

func (o Options) maxAttempts() int {
	if o.MaxAttempts <= 0 {
		return DefaultMaxAttempts
	}
	return o.MaxAttempts
}

func (o Options) observe(attempts int) {
	if o.OnAttempts != nil {
		o.OnAttempts(attempts)
	}
}

type opKind int

const (
	opCreate opKind = iota + 1
	opUpdate
	opDelete
)

type op struct {
	kind   opKind
	ref    Ref
	data   json.RawMessage
	fields map[string]json.RawMessage
}

// staged collects the reads and writes shared by both transaction flavours.
type staged struct {
	reads  map[Ref]int64
	writes []op
}

func newStaged() staged {
	return staged{reads: make(map[Ref]int64)}
}

func (s *staged) checkRead() error {
	if len(s.writes) > 0 {
		return ErrReadAfterWrite
	}
	return nil
}

func (s *staged) create(ref Ref, v any) error {
	if err := validRef(ref); err != nil {
		return err
	}
	raw, err := encodeObject(v)
	if err != nil {
		return err
	}
	s.writes = append(s.writes, op{kind: opCreate, ref: ref, data: raw})
	return nil
}

func (s *staged) update(ref Ref, fields map[string]any) error {
	if err := validRef(ref); err != nil {
		return err
	}
	encoded, err := encodeFields(fields)
	if err != nil {
		return err
	}
	s.writes = append(s.writes, op{kind: opUpdate, ref: ref, fields: encoded})
	return nil
}

func (s *staged) delete(ref Ref) error {
	if err := validRef(ref); err != nil {
		return err
	}
	s.writes = append(s.writes, op{kind: opDelete, ref: ref})
	return nil
}

func (s *staged) collections() []string {
	seen := make(map[string]struct{}, len(s.writes))
	out := make([]string, 0, len(s.writes))
	for _, w := range s.writes {
		if _, ok := seen[w.ref.Collection]; ok {
			continue
		}
		seen[w.ref.Collection] = struct{}{}
		out = append(out, w.ref.Collection)
	}
	return out
}

func validRef(ref Ref) error {
	if ref.Collection == "" || ref.ID == "" {
		return fmt.Errorf("docstore: incomplete reference %q", ref.String())
	}
	return nil
}

func encodeObject(v any) (json.RawMessage, error) {
	var raw []byte
	switch val := v.(type) {
	case json.RawMessage:
		raw = val
	case []byte:
		raw = val
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("docstore: encode: %w", err)
		}
		raw = b
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, ErrInvalidDocument
	}
	return append(json.RawMessage(nil), trimmed...), nil
}

func encodeFields(fields map[string]any) (map[string]json.RawMessage, error) {
	out := make(map[string]json.RawMessage, len(fields))
	for k, v := range fields {
		if k == CreatedAtField {
			continue
		}
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("docstore: encode field %s: %w", k, err)
		}
		out[k] = b
	}
	return out, nil
}

func decodeObject(raw json.RawMessage) (map[string]json.RawMessage, error) {
	obj := make(map[string]json.RawMessage)
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("docstore: decode object: %w", err)
	}
	return obj, nil
}

func withCreatedAt(raw json.RawMessage, at time.Time) (json.RawMessage, error) {
	obj, err := decodeObject(raw)
	if err != nil {
		return nil, err
	}
	stamp, err := json.Marshal(at)
	if err != nil {
		return nil, err
	}
	obj[CreatedAtField] = stamp
	return json.Marshal(obj)
}

func mergeFields(raw json.RawMessage, fields map[string]json.RawMessage) (json.RawMessage, error) {
	obj, err := decodeObject(raw)
	if err != nil {
		return nil, err
	}
	for k, v := range fields {
		obj[k] = v
	}
	return json.Marshal(obj)
}

// matches reports whether the document satisfies every filter of q.
func matches(d Doc, q Query) bool {
	if !q.CreatedFrom.IsZero() && d.CreatedAt.Before(q.CreatedFrom) {
		return false
	}
	if !q.CreatedBefore.IsZero() && !d.CreatedAt.Before(q.CreatedBefore) {
		return false
	}
	if len(q.Where) == 0 {
		return true
	}
	obj, err := decodeObject(d.Data)
	if err != nil {
		return false
	}
	for _, f := range q.Where {
		got, ok := obj[f.Field]
		if !ok || !jsonEqual(got, f.Value) {
			return false
		}
	}
	return true
}

func jsonEqual(raw json.RawMessage, want any) bool {
	wantRaw, err := json.Marshal(want)
	if err != nil {
		return false
	}
	var a, b any
	if json.Unmarshal(raw, &a) != nil || json.Unmarshal(wantRaw, &b) != nil {
		return false
	}
	return reflect.DeepEqual(a, b)
}

func filterObject(q Query) (string, error) {
	obj := make(map[string]any, len(q.Where))
	for _, f := range q.Where {
		obj[f.Field] = f.Value
	}
	b, err := json.Marshal(obj)
	if err != nil {
		return "", fmt.Errorf("docstore: encode filter: %w", err)
	}
	return string(b), nil
}
