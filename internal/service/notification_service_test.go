package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vedran77/tandem/internal/domain"
)

func TestNotify_Overwrites(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.seedAccount(t, "alice", "Alice")

	require.NoError(t, env.notifications.Notify(ctx, "alice", "msg1"))
	require.NoError(t, env.notifications.Notify(ctx, "alice", "msg2"))

	mb, err := env.notifications.Get(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, "msg2", mb.Message)
	assert.True(t, mb.Unread)
}

func TestMarkRead(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.seedAccount(t, "alice", "Alice")

	mb, err := env.notifications.Get(ctx, alice)
	require.NoError(t, err)
	assert.False(t, mb.Unread, "missing mailbox reads as empty")

	require.NoError(t, env.notifications.Notify(ctx, "alice", "hello"))
	require.NoError(t, env.notifications.MarkRead(ctx, alice))

	mb, err = env.notifications.Get(ctx, alice)
	require.NoError(t, err)
	assert.Empty(t, mb.Message)
	assert.False(t, mb.Unread)
}

func TestNotificationSubscribe(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.seedAccount(t, "alice", "Alice")

	sub, err := env.notifications.Subscribe(ctx, alice)
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, env.notifications.Notify(ctx, "alice", "ping"))
	got := waitFor(t, sub.Updates(), func(mbs []domain.Mailbox) bool { return len(mbs) == 1 && mbs[0].Unread })
	assert.Equal(t, "ping", got[0].Message)
	assert.Equal(t, "alice", got[0].AccountID)
}
