package docstore

import (
	"context"
	"sync"
	"time"
)

// QueryFunc runs a query against a backend.
type QueryFunc func(ctx context.Context, q Query) ([]Document, error)

// Fanout tracks the live queries of a backend that learns about changes
// per collection, re-running each affected query and posting the result.
type Fanout struct {
	run QueryFunc

	mu     sync.Mutex
	subs   map[string]map[*Listener]struct{}
	closed bool
}

func NewFanout(run QueryFunc) *Fanout {
	return &Fanout{run: run, subs: make(map[string]map[*Listener]struct{})}
}

// Add registers a live query, posts its initial result and returns the
// function that ends it. The subscription also ends when ctx is done.
func (f *Fanout) Add(ctx context.Context, q Query, fn func(Snapshot)) (CancelFunc, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil, ErrClosed
	}
	l := NewListener(q, fn)
	if f.subs[q.Collection] == nil {
		f.subs[q.Collection] = make(map[*Listener]struct{})
	}
	f.subs[q.Collection][l] = struct{}{}
	f.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs[q.Collection], l)
			if len(f.subs[q.Collection]) == 0 {
				delete(f.subs, q.Collection)
			}
			f.mu.Unlock()
			l.Stop()
		})
	}

	docs, err := f.run(ctx, q)
	if err != nil {
		cancel()
		return nil, err
	}
	l.Post(Snapshot{Documents: docs, ReadTime: time.Now().UTC()})

	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-l.Done():
		}
	}()
	return cancel, nil
}

// Collections lists the collections with at least one live query.
func (f *Fanout) Collections() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.subs))
	for c := range f.subs {
		out = append(out, c)
	}
	return out
}

// Refresh re-runs every live query on collection. A failing query delivers
// an error snapshot to its subscriber only.
func (f *Fanout) Refresh(ctx context.Context, collection string) {
	for _, l := range f.listeners(collection) {
		docs, err := f.run(ctx, l.Query())
		if err != nil {
			l.Post(Snapshot{Err: err, ReadTime: time.Now().UTC()})
			continue
		}
		l.Post(Snapshot{Documents: docs, ReadTime: time.Now().UTC()})
	}
}

func (f *Fanout) RefreshAll(ctx context.Context) {
	for _, c := range f.Collections() {
		f.Refresh(ctx, c)
	}
}

// Fail reports err to every live query.
func (f *Fanout) Fail(err error) {
	snap := Snapshot{Err: err, ReadTime: time.Now().UTC()}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, set := range f.subs {
		for l := range set {
			l.Post(snap)
		}
	}
}

// Len is the number of live queries.
func (f *Fanout) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, set := range f.subs {
		n += len(set)
	}
	return n
}

// Close ends every live query and rejects new ones.
func (f *Fanout) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	for _, set := range f.subs {
		for l := range set {
			l.Stop()
		}
	}
	f.subs = make(map[string]map[*Listener]struct{})
}

func (f *Fanout) listeners(collection string) []*Listener {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*Listener, 0, len(f.subs[collection]))
	for l := range f.subs[collection] {
		out = append(out, l)
	}
	return out
}
