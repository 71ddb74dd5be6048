package docstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/noah-isme/kasir-kopi/internal/resilience"
)

// NotifyChannel is the LISTEN/NOTIFY channel carrying changed collection names.
const NotifyChannel = "docstore_changes"

var errStale = errors.New("docstore: stale read")

// Postgres stores documents in a single jsonb table. Units of work run in
// SERIALIZABLE transactions and every write is checked against the version the
// body read, so both the database and the store agree on conflicts.
type Postgres struct {
	pool *pgxpool.Pool
	opts Options
	hub  *hub
	log  zerolog.Logger
}

var _ Store = (*Postgres)(nil)

// NewPostgres wraps an existing pool.
func NewPostgres(pool *pgxpool.Pool, opts Options, logger zerolog.Logger) *Postgres {
	return &Postgres{pool: pool, opts: opts, hub: newHub(), log: logger}
}

// Ping checks database connectivity.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func getDoc(ctx context.Context, q rowQuerier, ref Ref) (Doc, error) {
	doc := Doc{Ref: ref}
	var data []byte
	err := q.QueryRow(ctx, `
		SELECT data, version, created_at, updated_at
		FROM documents
		WHERE collection = $1 AND id = $2
	`, ref.Collection, ref.ID).Scan(&data, &doc.Version, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Doc{}, ErrNotFound
		}
		return Doc{}, fmt.Errorf("get %s: %w", ref, err)
	}
	doc.Data = data
	doc.CreatedAt = doc.CreatedAt.UTC()
	doc.UpdatedAt = doc.UpdatedAt.UTC()
	return doc, nil
}

// Get returns a document snapshot.
func (p *Postgres) Get(ctx context.Context, ref Ref) (Doc, error) {
	return getDoc(ctx, p.pool, ref)
}

func buildQuery(q Query) (string, []any, error) {
	var sb strings.Builder
	args := []any{q.Collection}
	sb.WriteString(`SELECT id, data, version, created_at, updated_at FROM documents WHERE collection = $1`)
	if len(q.Where) > 0 {
		filter, err := filterObject(q)
		if err != nil {
			return "", nil, err
		}
		args = append(args, filter)
		sb.WriteString(` AND data @> $` + strconv.Itoa(len(args)) + `::jsonb`)
	}
	if !q.CreatedFrom.IsZero() {
		args = append(args, q.CreatedFrom)
		sb.WriteString(` AND created_at >= $` + strconv.Itoa(len(args)))
	}
	if !q.CreatedBefore.IsZero() {
		args = append(args, q.CreatedBefore)
		sb.WriteString(` AND created_at < $` + strconv.Itoa(len(args)))
	}
	if q.Desc {
		sb.WriteString(` ORDER BY created_at DESC, id DESC`)
	} else {
		sb.WriteString(` ORDER BY created_at ASC, id ASC`)
	}
	if q.Limit > 0 {
		args = append(args, q.Limit)
		sb.WriteString(` LIMIT $` + strconv.Itoa(len(args)))
	}
	return sb.String(), args, nil
}

// Query returns the documents matching q.
func (p *Postgres) Query(ctx context.Context, q Query) ([]Doc, error) {
	if q.Collection == "" {
		return nil, ErrInvalidQuery
	}
	sql, args, err := buildQuery(q)
	if err != nil {
		return nil, err
	}
	rows, err := p.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", q.Collection, err)
	}
	defer rows.Close()

	docs := make([]Doc, 0, 32)
	for rows.Next() {
		doc := Doc{Ref: Ref{Collection: q.Collection}}
		var data []byte
		if err := rows.Scan(&doc.Ref.ID, &data, &doc.Version, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan %s: %w", q.Collection, err)
		}
		doc.Data = data
		doc.CreatedAt = doc.CreatedAt.UTC()
		doc.UpdatedAt = doc.UpdatedAt.UTC()
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query %s: %w", q.Collection, err)
	}
	return docs, nil
}

// Put creates or overwrites a document.
func (p *Postgres) Put(ctx context.Context, ref Ref, v any) (Doc, error) {
	if err := validRef(ref); err != nil {
		return Doc{}, err
	}
	raw, err := encodeObject(v)
	if err != nil {
		return Doc{}, err
	}
	doc := Doc{Ref: ref}
	var data []byte
	err = p.pool.QueryRow(ctx, `
		INSERT INTO documents (collection, id, data)
		VALUES ($1, $2, jsonb_set($3::jsonb, '{createdAt}', to_jsonb(now())))
		ON CONFLICT (collection, id) DO UPDATE
		SET data = jsonb_set(EXCLUDED.data, '{createdAt}', to_jsonb(documents.created_at)),
		    version = nextval('documents_version_seq'),
		    updated_at = now()
		RETURNING data, version, created_at, updated_at
	`, ref.Collection, ref.ID, string(raw)).Scan(&data, &doc.Version, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return Doc{}, fmt.Errorf("put %s: %w", ref, err)
	}
	doc.Data = data
	doc.CreatedAt = doc.CreatedAt.UTC()
	doc.UpdatedAt = doc.UpdatedAt.UTC()
	p.announce(ctx, ref.Collection)
	return doc, nil
}

// Delete removes a document outside any unit of work.
func (p *Postgres) Delete(ctx context.Context, ref Ref) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM documents WHERE collection = $1 AND id = $2`, ref.Collection, ref.ID)
	if err != nil {
		return fmt.Errorf("delete %s: %w", ref, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	p.announce(ctx, ref.Collection)
	return nil
}

func (p *Postgres) announce(ctx context.Context, collections ...string) {
	for _, c := range collections {
		if _, err := p.pool.Exec(ctx, `SELECT pg_notify($1, $2)`, NotifyChannel, c); err != nil {
			p.log.Warn().Err(err).Str("collection", c).Msg("docstore notify failed")
		}
	}
	p.hub.notify(collections...)
}

// Subscribe registers a live query. Changes made by other processes arrive
// through Listen.
func (p *Postgres) Subscribe(ctx context.Context, q Query, fn Listener) (func(), error) {
	return p.hub.watch(ctx, q, p.Query, fn)
}

// Listen relays change notifications from other processes to local
// subscribers until ctx ends, reconnecting with backoff.
func (p *Postgres) Listen(ctx context.Context) error {
	for attempt := 1; ; attempt++ {
		err := p.listenOnce(ctx)
		if ctx.Err() != nil {
			return nil
		}
		backoff := resilience.Backoff(time.Second, min(attempt, 5), 0.2)
		p.log.Warn().Err(err).Dur("retry_in", backoff).Msg("docstore listener disconnected")
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
	}
}

func (p *Postgres) listenOnce(ctx context.Context) error {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = conn.Exec(context.Background(), "UNLISTEN *")
		conn.Release()
	}()
	if _, err := conn.Exec(ctx, "LISTEN "+NotifyChannel); err != nil {
		return err
	}
	// anything may have changed while we were not listening
	p.hub.notifyAll()
	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		p.hub.notify(n.Payload)
	}
}

// RunAtomic executes fn inside a SERIALIZABLE transaction, retrying on
// serialization failures and stale reads.
func (p *Postgres) RunAtomic(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	limit := p.opts.maxAttempts()
	for attempt := 1; attempt <= limit; attempt++ {
		retry, err := p.attempt(ctx, fn)
		if !retry {
			p.opts.observe(attempt)
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	p.opts.observe(limit)
	return ErrConflict
}

func (p *Postgres) attempt(ctx context.Context, fn func(ctx context.Context, tx Tx) error) (bool, error) {
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return false, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ptx := &pgTx{tx: tx, staged: newStaged()}
	if err := fn(ctx, ptx); err != nil {
		if isRetryable(err) {
			return true, nil
		}
		return false, err
	}
	if err := ptx.apply(ctx); err != nil {
		if errors.Is(err, errStale) || isRetryable(err) {
			return true, nil
		}
		return false, err
	}
	collections := ptx.collections()
	for _, c := range collections {
		if _, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, NotifyChannel, c); err != nil {
			return isRetryable(err), err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		if isRetryable(err) {
			return true, nil
		}
		return false, fmt.Errorf("commit: %w", err)
	}
	p.hub.notify(collections...)
	return false, nil
}

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

type pgTx struct {
	tx pgx.Tx
	staged
}

func (t *pgTx) Get(ctx context.Context, ref Ref) (Doc, error) {
	if err := t.checkRead(); err != nil {
		return Doc{}, err
	}
	doc, err := getDoc(ctx, t.tx, ref)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return Doc{}, err
	}
	if _, seen := t.reads[ref]; !seen {
		t.reads[ref] = doc.Version
	}
	return doc, err
}

func (t *pgTx) Create(ref Ref, v any) error { return t.create(ref, v) }

func (t *pgTx) Update(ref Ref, fields map[string]any) error { return t.update(ref, fields) }

func (t *pgTx) Delete(ref Ref) error { return t.delete(ref) }

// apply writes every staged operation, refusing to touch a document whose
// version differs from the one observed by the body.
func (t *pgTx) apply(ctx context.Context) error {
	for _, w := range t.writes {
		read, wasRead := t.reads[w.ref]
		switch w.kind {
		case opCreate:
			if wasRead && read != 0 {
				return ErrAlreadyExists
			}
			_, err := t.tx.Exec(ctx, `
				INSERT INTO documents (collection, id, data)
				VALUES ($1, $2, jsonb_set($3::jsonb, '{createdAt}', to_jsonb(now())))
			`, w.ref.Collection, w.ref.ID, string(w.data))
			if err != nil {
				if isUniqueViolation(err) {
					if wasRead {
						return errStale
					}
					return ErrAlreadyExists
				}
				return fmt.Errorf("create %s: %w", w.ref, err)
			}
		case opUpdate:
			patch, err := encodeObject(w.fields)
			if err != nil {
				return err
			}
			sql := `UPDATE documents SET data = data || $3::jsonb, version = nextval('documents_version_seq'), updated_at = now()
				WHERE collection = $1 AND id = $2`
			args := []any{w.ref.Collection, w.ref.ID, string(patch)}
			if wasRead {
				sql += ` AND version = $4`
				args = append(args, read)
			}
			tag, err := t.tx.Exec(ctx, sql, args...)
			if err != nil {
				return fmt.Errorf("update %s: %w", w.ref, err)
			}
			if tag.RowsAffected() == 0 {
				if wasRead && read != 0 {
					return errStale
				}
				return ErrNotFound
			}
			// later writes to the same document see the new version
			if wasRead {
				if err := t.tx.QueryRow(ctx, `SELECT version FROM documents WHERE collection = $1 AND id = $2`,
					w.ref.Collection, w.ref.ID).Scan(&read); err != nil {
					return fmt.Errorf("refresh version %s: %w", w.ref, err)
				}
				t.reads[w.ref] = read
			}
		case opDelete:
			sql := `DELETE FROM documents WHERE collection = $1 AND id = $2`
			args := []any{w.ref.Collection, w.ref.ID}
			if wasRead {
				sql += ` AND version = $3`
				args = append(args, read)
			}
			tag, err := t.tx.Exec(ctx, sql, args...)
			if err != nil {
				return fmt.Errorf("delete %s: %w", w.ref, err)
			}
			if tag.RowsAffected() == 0 && wasRead && read != 0 {
				return errStale
			}
			if wasRead {
				t.reads[w.ref] = 0
			}
		}
	}
	return nil
}
