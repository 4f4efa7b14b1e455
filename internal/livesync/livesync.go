// Package livesync turns a live document query into a typed stream of full
// collection snapshots plus a connectivity signal.
package livesync

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/vedran77/tandem/internal/docstore"
	"github.com/vedran77/tandem/internal/metrics"
)

// Projector decodes one document into the element type of a subscription.
type Projector[T any] func(doc docstore.Document) (T, error)

// State reports whether the underlying live query is currently delivering.
type State struct {
	Online bool
	Err    error
}

type options[T any] struct {
	narrow func(T) bool
	less   func(a, b T) bool
}

type Option[T any] func(*options[T])

// Narrow applies a secondary filter to every snapshot, for conditions the
// store query cannot express.
func Narrow[T any](keep func(T) bool) Option[T] {
	return func(o *options[T]) { o.narrow = keep }
}

// SortBy re-orders every snapshot after narrowing.
func SortBy[T any](less func(a, b T) bool) Option[T] {
	return func(o *options[T]) { o.less = less }
}

// Subscription delivers the latest projected result set on Updates. The
// channels hold at most one pending value: a consumer that falls behind only
// sees the most recent snapshot.
type Subscription[T any] struct {
	updates chan []T
	states  chan State
	cancel  docstore.CancelFunc
	opts    options[T]

	mu     sync.Mutex
	closed bool
	online bool
	done   chan struct{}
}

// Subscribe opens a live query on store. The subscription is closed by
// Close or when ctx is done.
func Subscribe[T any](ctx context.Context, store docstore.Store, q docstore.Query, project Projector[T], opts ...Option[T]) (*Subscription[T], error) {
	s := &Subscription[T]{
		updates: make(chan []T, 1),
		states:  make(chan State, 1),
		online:  true,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(&s.opts)
	}

	cancel, err := store.Subscribe(ctx, q, func(snap docstore.Snapshot) {
		s.deliver(snap, project)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribing to %s: %w", q.Collection, err)
	}
	s.cancel = cancel
	metrics.LiveSubscriptions.Inc()

	go func() {
		select {
		case <-ctx.Done():
			s.Close()
		case <-s.done:
		}
	}()
	return s, nil
}

func (s *Subscription[T]) Updates() <-chan []T {
	return s.updates
}

func (s *Subscription[T]) States() <-chan State {
	return s.states
}

// Done is closed once the subscription has been closed.
func (s *Subscription[T]) Done() <-chan struct{} {
	return s.done
}

// Close ends the subscription. It is safe to call more than once.
func (s *Subscription[T]) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.done)
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	metrics.LiveSubscriptions.Dec()
}

func (s *Subscription[T]) deliver(snap docstore.Snapshot, project Projector[T]) {
	if snap.Err != nil {
		s.setState(State{Online: false, Err: snap.Err})
		return
	}

	items := make([]T, 0, len(snap.Documents))
	for _, doc := range snap.Documents {
		item, err := project(doc)
		if err != nil {
			s.setState(State{Online: false, Err: fmt.Errorf("decoding %s/%s: %w", doc.Collection, doc.ID, err)})
			return
		}
		if s.opts.narrow != nil && !s.opts.narrow(item) {
			continue
		}
		items = append(items, item)
	}
	if s.opts.less != nil {
		sort.SliceStable(items, func(i, j int) bool { return s.opts.less(items[i], items[j]) })
	}

	s.setState(State{Online: true})
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	replaceLatest(s.updates, items)
}

// setState publishes a connectivity change. Repeated equal states are not
// re-sent, except that every error is reported.
func (s *Subscription[T]) setState(st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if st.Online && s.online {
		return
	}
	s.online = st.Online
	replaceLatest(s.states, st)
}

// replaceLatest sends v on a one-slot channel, discarding an unread value.
// Callers serialize sends.
func replaceLatest[V any](ch chan V, v V) {
	select {
	case <-ch:
	default:
	}
	ch <- v
}

// Decode is a Projector for types with json tags and an ID field set from
// the document id.
func Decode[T any](setID func(*T, string)) Projector[T] {
	return func(doc docstore.Document) (T, error) {
		var v T
		if err := doc.DataTo(&v); err != nil {
			return v, err
		}
		if setID != nil {
			setID(&v, doc.ID)
		}
		return v, nil
	}
}
