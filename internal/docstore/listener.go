package docstore

import "sync"

// Listener delivers snapshots for one subscription on its own goroutine.
// Posting never blocks: if the callback is still busy, the pending snapshot
// is replaced so the subscriber only ever catches up to the latest state.
type Listener struct {
	query Query
	fn    func(Snapshot)

	mu      sync.Mutex
	pending *Snapshot
	wake    chan struct{}
	done    chan struct{}
	stop    sync.Once
	exited  chan struct{}
}

func NewListener(q Query, fn func(Snapshot)) *Listener {
	l := &Listener{
		query:  q,
		fn:     fn,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
		exited: make(chan struct{}),
	}
	go l.run()
	return l
}

func (l *Listener) Query() Query {
	return l.query
}

// Post queues snap for delivery, replacing any undelivered snapshot.
func (l *Listener) Post(snap Snapshot) {
	select {
	case <-l.done:
		return
	default:
	}
	l.mu.Lock()
	l.pending = &snap
	l.mu.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Stop ends delivery. It does not wait for an in-flight callback, so it is
// safe to call from inside one.
func (l *Listener) Stop() {
	l.stop.Do(func() { close(l.done) })
}

// Done is closed once Stop has been called.
func (l *Listener) Done() <-chan struct{} {
	return l.done
}

func (l *Listener) run() {
	defer close(l.exited)
	for {
		select {
		case <-l.done:
			return
		case <-l.wake:
		}
		l.mu.Lock()
		snap := l.pending
		l.pending = nil
		l.mu.Unlock()
		if snap == nil {
			continue
		}
		select {
		case <-l.done:
			return
		default:
		}
		l.fn(*snap)
	}
}
