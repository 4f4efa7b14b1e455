// Package postgres stores documents as JSONB rows and turns the table's
// change notifications into live query snapshots.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vedran77/tandem/internal/docstore"
	"github.com/vedran77/tandem/internal/logging"
)

const changeChannel = "docstore_changes"

// dbtx is satisfied by both *pgxpool.Pool and pgx.Tx.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	handle
	pool   *pgxpool.Pool
	logger logging.Logger
	fanout *docstore.Fanout

	listenOnce sync.Once
	mu         sync.Mutex
	stopListen context.CancelFunc
	listenDone chan struct{}
}

func New(pool *pgxpool.Pool, logger logging.Logger) *Store {
	s := &Store{
		handle:     handle{db: pool},
		pool:       pool,
		logger:     logger.With("component", "docstore.postgres"),
		listenDone: make(chan struct{}),
	}
	s.fanout = docstore.NewFanout(s.Query)
	return s
}

// Transact runs fn in a SERIALIZABLE transaction. A serialization conflict
// is reported as docstore.ErrAborted; nothing is retried.
func (s *Store) Transact(ctx context.Context, fn func(ctx context.Context, tx docstore.Handle) error) error {
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{IsoLevel: pgx.Serializable}, func(tx pgx.Tx) error {
		return fn(ctx, &handle{db: tx})
	})
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && (pgErr.Code == "40001" || pgErr.Code == "40P01") {
		return fmt.Errorf("%w: %s", docstore.ErrAborted, pgErr.Message)
	}
	return err
}

func (s *Store) Subscribe(ctx context.Context, q docstore.Query, fn func(docstore.Snapshot)) (docstore.CancelFunc, error) {
	cancel, err := s.fanout.Add(ctx, q, fn)
	if err != nil {
		return nil, err
	}
	s.startListener()
	return cancel, nil
}

// Close stops live queries. The pool belongs to the caller.
func (s *Store) Close() error {
	s.fanout.Close()
	s.mu.Lock()
	stop := s.stopListen
	s.mu.Unlock()
	if stop != nil {
		stop()
		<-s.listenDone
	}
	return nil
}

func (s *Store) startListener() {
	s.listenOnce.Do(func() {
		ctx, cancel := context.WithCancel(context.Background())
		s.mu.Lock()
		s.stopListen = cancel
		s.mu.Unlock()
		go s.listen(ctx)
	})
}

// listen keeps one connection LISTENing for change notifications. While it
// is down every subscriber receives an error snapshot; after reconnecting
// all live queries are re-run so missed changes are not lost.
func (s *Store) listen(ctx context.Context) {
	defer close(s.listenDone)
	backoff := 100 * time.Millisecond
	for {
		err := s.listenConn(ctx)
		if ctx.Err() != nil {
			return
		}
		s.logger.Warn(ctx, "change listener disconnected", "error", err, "retry_in", backoff)
		s.fanout.Fail(err)

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, 5*time.Second)
	}
}

func (s *Store) listenConn(ctx context.Context) error {
	pc, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquiring listener connection: %w", err)
	}
	// The connection carries LISTEN state, so it never returns to the pool.
	conn := pc.Hijack()
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "LISTEN "+changeChannel); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	s.logger.Info(ctx, "change listener connected")
	s.fanout.RefreshAll(ctx)

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		s.fanout.Refresh(ctx, n.Payload)
	}
}

// handle implements docstore.Handle over a pool or a transaction.
type handle struct {
	db dbtx
}

func (h *handle) Get(ctx context.Context, collection, id string) (docstore.Document, error) {
	if err := docstore.ValidatePath(collection, id); err != nil {
		return docstore.Document{}, err
	}
	row := h.db.QueryRow(ctx,
		"SELECT "+selectColumns+" FROM documents WHERE collection = $1 AND id = $2",
		collection, id,
	)
	doc, err := scanDocument(collection, row)
	if errors.Is(err, pgx.ErrNoRows) {
		return docstore.Document{}, docstore.ErrNotFound
	}
	if err != nil {
		return docstore.Document{}, fmt.Errorf("getting %s/%s: %w", collection, id, err)
	}
	return doc, nil
}

func (h *handle) Query(ctx context.Context, q docstore.Query) ([]docstore.Document, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	sql, args, err := buildSelect(q)
	if err != nil {
		return nil, err
	}
	rows, err := h.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", q.Collection, err)
	}
	defer rows.Close()

	var docs []docstore.Document
	for rows.Next() {
		doc, err := scanDocument(q.Collection, rows)
		if err != nil {
			return nil, fmt.Errorf("scanning %s: %w", q.Collection, err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("querying %s: %w", q.Collection, err)
	}
	return docs, nil
}

func (h *handle) Create(ctx context.Context, collection string, fields docstore.Fields) (string, error) {
	id := uuid.NewString()
	if err := h.Set(ctx, collection, id, fields); err != nil {
		return "", err
	}
	return id, nil
}

func (h *handle) Set(ctx context.Context, collection, id string, fields docstore.Fields, opts ...docstore.SetOption) error {
	if err := docstore.ValidatePath(collection, id); err != nil {
		return err
	}
	raw, err := json.Marshal(docstore.Normalize(fields))
	if err != nil {
		return fmt.Errorf("encoding %s/%s: %w", collection, id, err)
	}
	conflict := "fields = EXCLUDED.fields"
	if docstore.IsMerge(opts) {
		conflict = "fields = documents.fields || EXCLUDED.fields"
	}
	_, err = h.db.Exec(ctx,
		`INSERT INTO documents (collection, id, fields) VALUES ($1, $2, $3::jsonb)
		 ON CONFLICT (collection, id) DO UPDATE SET `+conflict+`, updated_at = now()`,
		collection, id, string(raw),
	)
	if err != nil {
		return fmt.Errorf("writing %s/%s: %w", collection, id, err)
	}
	return nil
}

func (h *handle) Update(ctx context.Context, collection, id string, fields docstore.Fields) error {
	if err := docstore.ValidatePath(collection, id); err != nil {
		return err
	}
	raw, err := json.Marshal(docstore.Normalize(fields))
	if err != nil {
		return fmt.Errorf("encoding %s/%s: %w", collection, id, err)
	}
	tag, err := h.db.Exec(ctx,
		"UPDATE documents SET fields = fields || $3::jsonb, updated_at = now() WHERE collection = $1 AND id = $2",
		collection, id, string(raw),
	)
	if err != nil {
		return fmt.Errorf("updating %s/%s: %w", collection, id, err)
	}
	if tag.RowsAffected() == 0 {
		return docstore.ErrNotFound
	}
	return nil
}

func (h *handle) Delete(ctx context.Context, collection, id string) error {
	if err := docstore.ValidatePath(collection, id); err != nil {
		return err
	}
	if _, err := h.db.Exec(ctx, "DELETE FROM documents WHERE collection = $1 AND id = $2", collection, id); err != nil {
		return fmt.Errorf("deleting %s/%s: %w", collection, id, err)
	}
	return nil
}

func scanDocument(collection string, row pgx.Row) (docstore.Document, error) {
	var (
		doc docstore.Document
		raw []byte
	)
	if err := row.Scan(&doc.ID, &raw, &doc.CreateTime, &doc.UpdateTime); err != nil {
		return docstore.Document{}, err
	}
	if err := json.Unmarshal(raw, &doc.Fields); err != nil {
		return docstore.Document{}, fmt.Errorf("decoding fields: %w", err)
	}
	doc.Collection = collection
	doc.CreateTime = doc.CreateTime.UTC()
	doc.UpdateTime = doc.UpdateTime.UTC()
	return doc, nil
}
