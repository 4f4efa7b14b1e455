package docstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type docKey struct {
	collection string
	id         string
}

// Memory is an in-process Store. Transactions are serialized, which makes
// every commit trivially conflict-free; readers never observe a partial
// commit.
type Memory struct {
	mu     sync.RWMutex
	txMu   sync.Mutex
	docs   map[string]map[string]Document
	subs   map[string]map[*Listener]struct{}
	closed bool
}

func NewMemory() *Memory {
	return &Memory{
		docs: make(map[string]map[string]Document),
		subs: make(map[string]map[*Listener]struct{}),
	}
}

func (s *Memory) Get(ctx context.Context, collection, id string) (Document, error) {
	if err := s.check(ctx); err != nil {
		return Document{}, err
	}
	if err := ValidatePath(collection, id); err != nil {
		return Document{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[collection][id]
	if !ok {
		return Document{}, ErrNotFound
	}
	return cloneDoc(doc), nil
}

func (s *Memory) Query(ctx context.Context, q Query) ([]Document, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryLocked(q), nil
}

func (s *Memory) Create(ctx context.Context, collection string, fields Fields) (string, error) {
	var id string
	err := s.Transact(ctx, func(ctx context.Context, tx Handle) error {
		var err error
		id, err = tx.Create(ctx, collection, fields)
		return err
	})
	return id, err
}

func (s *Memory) Set(ctx context.Context, collection, id string, fields Fields, opts ...SetOption) error {
	return s.Transact(ctx, func(ctx context.Context, tx Handle) error {
		return tx.Set(ctx, collection, id, fields, opts...)
	})
}

func (s *Memory) Update(ctx context.Context, collection, id string, fields Fields) error {
	return s.Transact(ctx, func(ctx context.Context, tx Handle) error {
		return tx.Update(ctx, collection, id, fields)
	})
}

func (s *Memory) Delete(ctx context.Context, collection, id string) error {
	return s.Transact(ctx, func(ctx context.Context, tx Handle) error {
		return tx.Delete(ctx, collection, id)
	})
}

// Transact runs fn against a staged view of the store. Writes become visible
// to readers and subscribers together when fn returns nil; on error or panic
// the staged writes are discarded. Calling the Store itself from inside fn
// deadlocks; use tx.
func (s *Memory) Transact(ctx context.Context, fn func(ctx context.Context, tx Handle) error) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	tx := &memTx{store: s, staged: make(map[docKey]*Document)}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return ErrAborted
	}
	s.commit(tx)
	return nil
}

func (s *Memory) Subscribe(ctx context.Context, q Query, fn func(Snapshot)) (CancelFunc, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}

	l := NewListener(q, fn)
	s.mu.Lock()
	if s.subs[q.Collection] == nil {
		s.subs[q.Collection] = make(map[*Listener]struct{})
	}
	s.subs[q.Collection][l] = struct{}{}
	l.Post(Snapshot{Documents: s.queryLocked(q), ReadTime: time.Now().UTC()})
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs[q.Collection], l)
			s.mu.Unlock()
			l.Stop()
		})
	}
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-l.Done():
		}
	}()
	return cancel, nil
}

func (s *Memory) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for _, set := range s.subs {
		for l := range set {
			l.Stop()
		}
	}
	s.subs = make(map[string]map[*Listener]struct{})
	return nil
}

func (s *Memory) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

func (s *Memory) queryLocked(q Query) []Document {
	coll := s.docs[q.Collection]
	docs := make([]Document, 0, len(coll))
	for _, d := range coll {
		docs = append(docs, d)
	}
	res := q.Apply(docs)
	for i := range res {
		res[i] = cloneDoc(res[i])
	}
	return res
}

func (s *Memory) commit(tx *memTx) {
	s.mu.Lock()
	defer s.mu.Unlock()

	touched := make(map[string]struct{})
	for _, key := range tx.order {
		doc := tx.staged[key]
		touched[key.collection] = struct{}{}
		if doc == nil {
			delete(s.docs[key.collection], key.id)
			continue
		}
		if s.docs[key.collection] == nil {
			s.docs[key.collection] = make(map[string]Document)
		}
		s.docs[key.collection][key.id] = *doc
	}

	now := time.Now().UTC()
	for coll := range touched {
		for l := range s.subs[coll] {
			l.Post(Snapshot{Documents: s.queryLocked(l.Query()), ReadTime: now})
		}
	}
}

type memTx struct {
	store  *Memory
	staged map[docKey]*Document
	order  []docKey
}

func (tx *memTx) current(key docKey) (Document, bool) {
	if d, ok := tx.staged[key]; ok {
		if d == nil {
			return Document{}, false
		}
		return *d, true
	}
	tx.store.mu.RLock()
	defer tx.store.mu.RUnlock()
	d, ok := tx.store.docs[key.collection][key.id]
	return d, ok
}

func (tx *memTx) stage(key docKey, doc *Document) {
	if _, ok := tx.staged[key]; !ok {
		tx.order = append(tx.order, key)
	}
	tx.staged[key] = doc
}

func (tx *memTx) Get(ctx context.Context, collection, id string) (Document, error) {
	if err := ValidatePath(collection, id); err != nil {
		return Document{}, err
	}
	d, ok := tx.current(docKey{collection, id})
	if !ok {
		return Document{}, ErrNotFound
	}
	return cloneDoc(d), nil
}

func (tx *memTx) Query(ctx context.Context, q Query) ([]Document, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	tx.store.mu.RLock()
	merged := make(map[string]Document, len(tx.store.docs[q.Collection]))
	for id, d := range tx.store.docs[q.Collection] {
		merged[id] = d
	}
	tx.store.mu.RUnlock()
	for key, d := range tx.staged {
		if key.collection != q.Collection {
			continue
		}
		if d == nil {
			delete(merged, key.id)
		} else {
			merged[key.id] = *d
		}
	}
	docs := make([]Document, 0, len(merged))
	for _, d := range merged {
		docs = append(docs, d)
	}
	res := q.Apply(docs)
	for i := range res {
		res[i] = cloneDoc(res[i])
	}
	return res, nil
}

func (tx *memTx) Create(ctx context.Context, collection string, fields Fields) (string, error) {
	id := uuid.NewString()
	if err := tx.Set(ctx, collection, id, fields); err != nil {
		return "", err
	}
	return id, nil
}

func (tx *memTx) Set(ctx context.Context, collection, id string, fields Fields, opts ...SetOption) error {
	if err := ValidatePath(collection, id); err != nil {
		return err
	}
	key := docKey{collection, id}
	now := time.Now().UTC()
	prev, exists := tx.current(key)

	next := Document{Collection: collection, ID: id, CreateTime: now, UpdateTime: now}
	if exists {
		next.CreateTime = prev.CreateTime
	}
	if exists && IsMerge(opts) {
		next.Fields = MergeFields(prev.Fields, Normalize(fields))
	} else {
		next.Fields = Normalize(fields)
	}
	tx.stage(key, &next)
	return nil
}

func (tx *memTx) Update(ctx context.Context, collection, id string, fields Fields) error {
	if err := ValidatePath(collection, id); err != nil {
		return err
	}
	if _, ok := tx.current(docKey{collection, id}); !ok {
		return ErrNotFound
	}
	return tx.Set(ctx, collection, id, fields, Merge())
}

func (tx *memTx) Delete(ctx context.Context, collection, id string) error {
	if err := ValidatePath(collection, id); err != nil {
		return err
	}
	tx.stage(docKey{collection, id}, nil)
	return nil
}

func cloneDoc(d Document) Document {
	d.Fields = Normalize(d.Fields)
	return d
}
