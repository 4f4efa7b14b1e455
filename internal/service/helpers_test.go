package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vedran77/tandem/internal/docstore"
	"github.com/vedran77/tandem/internal/domain"
	"github.com/vedran77/tandem/internal/logging"
	"github.com/vedran77/tandem/internal/repository/document"
)

type testEnv struct {
	store         docstore.Store
	repos         *document.Manager
	notifications *NotificationService
	pairing       *PairingService
	auth          *AuthService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithStore(t, docstore.NewMemory())
}

func newTestEnvWithStore(t *testing.T, store docstore.Store) *testEnv {
	t.Helper()
	t.Cleanup(func() { _ = store.Close() })

	repos := document.NewManager()
	notifications := NewNotificationService(store, repos)
	pairing := NewPairingService(store, repos, notifications, logging.Discard(), 6)
	auth := NewAuthService(store, repos, pairing, "test-secret", "provider-secret", time.Hour, logging.Discard())
	return &testEnv{store: store, repos: repos, notifications: notifications, pairing: pairing, auth: auth}
}

// seedAccount writes an account directly, bypassing sign-up.
func (e *testEnv) seedAccount(t *testing.T, id, username string) domain.Session {
	t.Helper()
	err := e.repos.Accounts(e.store).Create(context.Background(), &domain.Account{
		ID:                id,
		Username:          username,
		UsernameLowercase: domain.NormalizeUsername(username),
		Email:             strings.ToLower(username) + "@example.com",
	})
	require.NoError(t, err)
	return domain.Session{AccountID: id}
}

// pair links two seeded accounts both ways.
func (e *testEnv) pair(t *testing.T, a, b string) {
	t.Helper()
	ctx := context.Background()
	accounts := e.repos.Accounts(e.store)
	require.NoError(t, accounts.SetPartner(ctx, a, &b))
	require.NoError(t, accounts.SetPartner(ctx, b, &a))
}

func (e *testEnv) account(t *testing.T, id string) *domain.Account {
	t.Helper()
	a, err := e.repos.Accounts(e.store).GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, a)
	return a
}

var errCrash = errors.New("simulated crash")

// crashStore aborts a transaction on its n-th write to the users
// collection, as if the process died between two writes.
type crashStore struct {
	docstore.Store
	failOn int
}

func (c *crashStore) Transact(ctx context.Context, fn func(ctx context.Context, tx docstore.Handle) error) error {
	return c.Store.Transact(ctx, func(ctx context.Context, tx docstore.Handle) error {
		return fn(ctx, &crashHandle{Handle: tx, failOn: c.failOn})
	})
}

type crashHandle struct {
	docstore.Handle
	failOn int
	writes int
}

func (h *crashHandle) Update(ctx context.Context, collection, id string, fields docstore.Fields) error {
	if collection == document.CollUsers {
		h.writes++
		if h.writes == h.failOn {
			return errCrash
		}
	}
	return h.Handle.Update(ctx, collection, id, fields)
}

// recordingStore logs every Set against one collection.
type recordingStore struct {
	docstore.Store
	collection string

	mu     sync.Mutex
	writes []docstore.Fields
}

func (r *recordingStore) Set(ctx context.Context, collection, id string, fields docstore.Fields, opts ...docstore.SetOption) error {
	if collection == r.collection {
		r.mu.Lock()
		r.writes = append(r.writes, fields)
		r.mu.Unlock()
	}
	return r.Store.Set(ctx, collection, id, fields, opts...)
}

func (r *recordingStore) Writes() []docstore.Fields {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]docstore.Fields(nil), r.writes...)
}

type fakeBlobs struct {
	mu   sync.Mutex
	keys []string
	err  error
}

func (f *fakeBlobs) Put(_ context.Context, key, contentType string, body []byte) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, key)
	return fmt.Sprintf("https://blobs.test/%s", key), nil
}

func next[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for value")
	}
	var zero T
	return zero
}

func waitFor[T any](t *testing.T, ch <-chan T, pred func(T) bool) T {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case v := <-ch:
			if pred(v) {
				return v
			}
		case <-deadline:
			t.Fatal("condition not met")
		}
	}
}
