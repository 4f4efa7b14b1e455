package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vedran77/tandem/internal/docstore"
	"github.com/vedran77/tandem/internal/domain"
	"github.com/vedran77/tandem/internal/logging"
	"github.com/vedran77/tandem/internal/repository/document"
)

const testIdle = 60 * time.Millisecond

func newTypingEnv(t *testing.T) (*testEnv, *recordingStore, *TypingService, domain.Session, domain.Session) {
	t.Helper()
	rec := &recordingStore{Store: docstore.NewMemory(), collection: document.CollChats}
	env := newTestEnvWithStore(t, rec)
	alice := env.seedAccount(t, "alice", "Alice")
	bob := env.seedAccount(t, "bob", "Bob")
	env.pair(t, "alice", "bob")

	typing := NewTypingService(rec, env.repos, testIdle, logging.Discard())
	t.Cleanup(typing.Close)
	return env, rec, typing, alice, bob
}

func typingState(t *testing.T, env *testEnv) *domain.TypingState {
	t.Helper()
	st, err := env.repos.Chats(env.store).GetTyping(context.Background(), "alice_bob")
	require.NoError(t, err)
	return st
}

func TestTyping_ClearsAfterIdle(t *testing.T) {
	env, _, typing, alice, _ := newTypingEnv(t)

	require.NoError(t, typing.Keystroke(context.Background(), alice))
	assert.Equal(t, &domain.TypingState{UserID: "alice", IsTyping: true}, typingState(t, env))

	assert.Eventually(t, func() bool {
		st := typingState(t, env)
		return st != nil && st.UserID == "alice" && !st.IsTyping
	}, time.Second, 5*time.Millisecond)
}

func TestTyping_NoFlickerWhileTyping(t *testing.T) {
	env, rec, typing, alice, _ := newTypingEnv(t)
	ctx := context.Background()

	// Keystrokes well inside the idle window for several windows in a row.
	for range 10 {
		require.NoError(t, typing.Keystroke(ctx, alice))
		time.Sleep(testIdle / 4)
	}
	require.Len(t, rec.Writes(), 1, "only the first keystroke writes")
	assert.True(t, typingState(t, env).IsTyping)

	assert.Eventually(t, func() bool { return len(rec.Writes()) == 2 }, time.Second, 5*time.Millisecond)
	time.Sleep(2 * testIdle)
	assert.Len(t, rec.Writes(), 2)
	assert.False(t, typingState(t, env).IsTyping)
}

func TestTyping_Stop(t *testing.T) {
	env, rec, typing, alice, _ := newTypingEnv(t)
	ctx := context.Background()

	require.NoError(t, typing.Keystroke(ctx, alice))
	require.NoError(t, typing.Stop(ctx, alice))
	assert.False(t, typingState(t, env).IsTyping)

	time.Sleep(2 * testIdle)
	assert.Len(t, rec.Writes(), 2, "the cancelled timer must not write again")
}

func TestTyping_SetTypingRaw(t *testing.T) {
	env, _, typing, _, _ := newTypingEnv(t)

	require.NoError(t, typing.SetTyping(context.Background(), "alice_bob", "bob", true))
	assert.Equal(t, &domain.TypingState{UserID: "bob", IsTyping: true}, typingState(t, env))
}

func TestTyping_SubscribeSeesOnlyPeer(t *testing.T) {
	_, _, typing, alice, bob := newTypingEnv(t)
	ctx := context.Background()

	sub, err := typing.Subscribe(ctx, bob)
	require.NoError(t, err)
	defer sub.Close()

	assert.Empty(t, next(t, sub.Updates()))

	require.NoError(t, typing.Keystroke(ctx, alice))
	got := waitFor(t, sub.Updates(), func(sts []domain.TypingState) bool { return len(sts) == 1 && sts[0].IsTyping })
	assert.Equal(t, "alice", got[0].UserID)

	require.NoError(t, typing.SetTyping(ctx, "alice_bob", "bob", true))
	waitFor(t, sub.Updates(), func(sts []domain.TypingState) bool { return len(sts) == 0 })
}
