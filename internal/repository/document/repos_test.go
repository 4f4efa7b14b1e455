package document

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vedran77/tandem/internal/docstore"
	"github.com/vedran77/tandem/internal/domain"
)

func newStore(t *testing.T) *docstore.Memory {
	t.Helper()
	s := docstore.NewMemory()
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAccountRepo(t *testing.T) {
	ctx := context.Background()
	repo := NewAccountRepo(newStore(t))

	for _, a := range []domain.Account{
		{ID: "u1", Username: "Alice", UsernameLowercase: "alice", Email: "alice@example.com"},
		{ID: "u2", Username: "Albert", UsernameLowercase: "albert", Email: "albert@example.com"},
		{ID: "u3", Username: "Bob", UsernameLowercase: "bob", Email: "bob@example.com"},
	} {
		require.NoError(t, repo.Create(ctx, &a))
	}

	got, err := repo.GetByID(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Alice", got.Username)
	assert.False(t, got.HasPartner())
	assert.False(t, got.CreatedAt.IsZero())

	missing, err := repo.GetByID(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	byEmail, err := repo.GetByEmail(ctx, " BOB@example.com")
	require.NoError(t, err)
	require.NotNil(t, byEmail)
	assert.Equal(t, "u3", byEmail.ID)

	found, err := repo.SearchByUsernamePrefix(ctx, "al", 20)
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "u2", found[0].ID)
	assert.Equal(t, "u1", found[1].ID)

	partner := "u2"
	require.NoError(t, repo.SetPartner(ctx, "u1", &partner))
	got, _ = repo.GetByID(ctx, "u1")
	assert.Equal(t, "u2", got.Partner())

	require.NoError(t, repo.SetPartner(ctx, "u1", nil))
	got, _ = repo.GetByID(ctx, "u1")
	assert.False(t, got.HasPartner())

	name := "Alicia"
	require.NoError(t, repo.UpdateProfile(ctx, "u1", domain.ProfileUpdate{Username: &name}))
	got, _ = repo.GetByID(ctx, "u1")
	assert.Equal(t, "alicia", got.UsernameLowercase)
	assert.Equal(t, "alice@example.com", got.Email, "merge keeps other fields")

	assert.ErrorIs(t, repo.SetPartner(ctx, "ghost", nil), docstore.ErrNotFound)
}

func TestRequestRepo_ListsPendingOnly(t *testing.T) {
	ctx := context.Background()
	repo := NewRequestRepo(newStore(t))

	require.NoError(t, repo.Put(ctx, &domain.ConnectionRequest{ID: domain.RequestID("a", "c"), From: "a", To: "c", Status: domain.RequestPending}))
	require.NoError(t, repo.Put(ctx, &domain.ConnectionRequest{ID: domain.RequestID("b", "c"), From: "b", To: "c", Status: domain.RequestPending}))
	require.NoError(t, repo.SetStatus(ctx, domain.RequestID("b", "c"), domain.RequestDeclined))

	in, err := repo.ListIncoming(ctx, "c")
	require.NoError(t, err)
	require.Len(t, in, 1)
	assert.Equal(t, "a_c", in[0].ID)
	assert.Equal(t, "a", in[0].From)

	out, err := repo.ListOutgoing(ctx, "a")
	require.NoError(t, err)
	assert.Len(t, out, 1)
}

func TestChatRepo_HistoryOrder(t *testing.T) {
	ctx := context.Background()
	repo := NewChatRepo(newStore(t))
	chatID := domain.ChatID("a", "b")

	for _, id := range []string{"01A", "01B", "01C"} {
		require.NoError(t, repo.AddMessage(ctx, &domain.ChatMessage{ID: id, ChatID: chatID, Type: domain.MessageText, Text: id, SenderID: "a"}))
	}

	msgs, err := repo.History(ctx, chatID, 2)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "01B", msgs[0].ID)
	assert.Equal(t, "01C", msgs[1].ID)
	assert.True(t, msgs[0].Timestamp.Before(msgs[1].Timestamp))

	require.NoError(t, repo.DeleteMessage(ctx, chatID, "01C"))
	gone, err := repo.GetMessage(ctx, chatID, "01C")
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestChatRepo_Typing(t *testing.T) {
	ctx := context.Background()
	repo := NewChatRepo(newStore(t))

	st, err := repo.GetTyping(ctx, "a_b")
	require.NoError(t, err)
	assert.Nil(t, st)

	require.NoError(t, repo.SetTyping(ctx, "a_b", domain.TypingState{UserID: "a", IsTyping: true}))
	st, err = repo.GetTyping(ctx, "a_b")
	require.NoError(t, err)
	assert.Equal(t, &domain.TypingState{UserID: "a", IsTyping: true}, st)
}

func TestNotificationRepo(t *testing.T) {
	ctx := context.Background()
	repo := NewNotificationRepo(newStore(t))

	mb, err := repo.Get(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, mb.Unread)

	require.NoError(t, repo.SetMessage(ctx, "u1", "hello"))
	mb, err = repo.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.Mailbox{AccountID: "u1", Message: "hello", Unread: true}, *mb)
}

func TestGoalRepo_Collections(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	repo := NewGoalRepo(store)

	personal := &domain.Goal{Text: "run", CreatedBy: "a", Members: []string{"a"}}
	shared := &domain.Goal{Text: "trip", CreatedBy: "a", Shared: true, Members: []string{"a", "b"}}
	require.NoError(t, repo.Create(ctx, personal))
	require.NoError(t, repo.Create(ctx, shared))

	_, err := store.Get(ctx, "users/a/goals", personal.ID)
	require.NoError(t, err)
	_, err = store.Get(ctx, CollSharedGoals, shared.ID)
	require.NoError(t, err)

	bs, err := repo.ListShared(ctx, "b")
	require.NoError(t, err)
	require.Len(t, bs, 1)
	assert.Equal(t, "trip", bs[0].Text)

	require.NoError(t, repo.SetCompleted(ctx, shared, true))
	g, err := repo.Get(ctx, "a", shared.ID, true)
	require.NoError(t, err)
	assert.True(t, g.Completed)
}

func TestEventRepo_Upcoming(t *testing.T) {
	ctx := context.Background()
	repo := NewEventRepo(newStore(t))
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	for i, offset := range []time.Duration{-time.Hour, time.Hour, 48 * time.Hour} {
		e := &domain.Event{Title: string(rune('A' + i)), Start: now.Add(offset), End: now.Add(offset + time.Hour), Members: []string{"a", "b"}, CreatedBy: "a"}
		require.NoError(t, repo.Create(ctx, e))
	}

	up, err := repo.ListUpcoming(ctx, "b", now, 5)
	require.NoError(t, err)
	require.Len(t, up, 2)
	assert.Equal(t, "B", up[0].Title)
	assert.Equal(t, "C", up[1].Title)

	all, err := repo.ListByMember(ctx, "a")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	none, err := repo.ListByMember(ctx, "z")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestCredentialRepo(t *testing.T) {
	ctx := context.Background()
	repo := NewCredentialRepo(newStore(t))

	require.NoError(t, repo.Create(ctx, &domain.Credential{Email: "Me@Example.com", AccountID: "u1", Provider: domain.ProviderPassword}))
	c, err := repo.GetByEmail(ctx, "me@example.com ")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, "u1", c.AccountID)
}
