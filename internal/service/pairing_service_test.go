package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vedran77/tandem/internal/docstore"
	"github.com/vedran77/tandem/internal/domain"
)

func TestCreateInvite_StampsAccount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedAccount(t, "alice", "Alice")

	code, err := env.pairing.CreateInvite(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, code, 6)
	assert.Regexp(t, `^[0-9a-z]+$`, code)

	assert.Equal(t, code, env.account(t, "alice").InviteCode)
	token, err := env.repos.Invites(env.store).Get(ctx, code)
	require.NoError(t, err)
	require.NotNil(t, token)
	assert.Equal(t, "alice", token.OwnerID)
}

func TestRedeemInvite_PairsBothSides(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedAccount(t, "alice", "Alice")
	env.seedAccount(t, "bob", "Bob")

	code, err := env.pairing.CreateInvite(ctx, "alice")
	require.NoError(t, err)

	partnerID, err := env.pairing.RedeemInvite(ctx, code, "bob")
	require.NoError(t, err)
	assert.Equal(t, "alice", partnerID)
	assert.Equal(t, "bob", env.account(t, "alice").Partner())
	assert.Equal(t, "alice", env.account(t, "bob").Partner())

	token, err := env.repos.Invites(env.store).Get(ctx, code)
	require.NoError(t, err)
	assert.Nil(t, token)
}

func TestRedeemInvite_SingleUse(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedAccount(t, "alice", "Alice")
	env.seedAccount(t, "bob", "Bob")
	env.seedAccount(t, "carol", "Carol")

	code, err := env.pairing.CreateInvite(ctx, "alice")
	require.NoError(t, err)

	_, err = env.pairing.RedeemInvite(ctx, code, "bob")
	require.NoError(t, err)

	_, err = env.pairing.RedeemInvite(ctx, code, "carol")
	assert.ErrorIs(t, err, ErrInvalidInvite)
	assert.False(t, env.account(t, "carol").HasPartner())
}

func TestRedeemInvite_Rejects(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedAccount(t, "alice", "Alice")

	code, err := env.pairing.CreateInvite(ctx, "alice")
	require.NoError(t, err)

	_, err = env.pairing.RedeemInvite(ctx, "nope", "alice")
	assert.ErrorIs(t, err, ErrInvalidInvite)

	_, err = env.pairing.RedeemInvite(ctx, code, "alice")
	assert.ErrorIs(t, err, ErrInvalidInvite, "owner cannot redeem their own code")
}

func TestRedeemInvite_CrashLeavesNothingBehind(t *testing.T) {
	env := newTestEnvWithStore(t, &crashStore{Store: docstore.NewMemory(), failOn: 2})
	ctx := context.Background()
	env.seedAccount(t, "alice", "Alice")
	env.seedAccount(t, "bob", "Bob")

	// failOn counts per transaction, so the single stamp in CreateInvite goes through.
	code, err := env.pairing.CreateInvite(ctx, "alice")
	require.NoError(t, err)

	_, err = env.pairing.RedeemInvite(ctx, code, "bob")
	require.ErrorIs(t, err, ErrStoreWrite)
	assert.ErrorIs(t, err, errCrash)

	assert.False(t, env.account(t, "alice").HasPartner())
	assert.False(t, env.account(t, "bob").HasPartner())
	token, err := env.repos.Invites(env.store).Get(ctx, code)
	require.NoError(t, err)
	assert.NotNil(t, token, "token must survive a failed redemption")
}

func TestSearchAccounts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	me := env.seedAccount(t, "alice", "Alice")
	env.seedAccount(t, "alfred", "Alfred")
	env.seedAccount(t, "bob", "Bob")

	found, err := env.pairing.SearchAccounts(ctx, me, "AL")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "alfred", found[0].ID)

	found, err = env.pairing.SearchAccounts(ctx, me, "  ")
	require.NoError(t, err)
	assert.Empty(t, found)

	_, err = env.pairing.SearchAccounts(ctx, domain.Session{}, "al")
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestFindByEmail(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	me := env.seedAccount(t, "alice", "Alice")
	env.seedAccount(t, "bob", "Bob")

	found, err := env.pairing.FindByEmail(ctx, me, "BOB@example.com")
	require.NoError(t, err)
	assert.Equal(t, "bob", found.ID)

	_, err = env.pairing.FindByEmail(ctx, me, "nobody@example.com")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = env.pairing.FindByEmail(ctx, me, "alice@example.com")
	assert.ErrorIs(t, err, ErrSelfRequest)
}

func TestSendConnectionRequest(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.seedAccount(t, "alice", "Alice")
	env.seedAccount(t, "bob", "Bob")

	_, err := env.pairing.SendConnectionRequest(ctx, alice, "alice")
	assert.ErrorIs(t, err, ErrSelfRequest)

	_, err = env.pairing.SendConnectionRequest(ctx, alice, "ghost")
	assert.ErrorIs(t, err, ErrNotFound)

	req, err := env.pairing.SendConnectionRequest(ctx, alice, "bob")
	require.NoError(t, err)
	assert.Equal(t, "alice_bob", req.ID)
	assert.Equal(t, domain.RequestPending, req.Status)

	again, err := env.pairing.SendConnectionRequest(ctx, alice, "bob")
	require.NoError(t, err)
	assert.Equal(t, req.ID, again.ID)
	assert.Equal(t, req.CreatedAt, again.CreatedAt, "re-sending a pending request is a no-op")

	out, err := env.pairing.ListOutgoing(ctx, alice)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "Bob", out[0].ToUsername)
}

func TestSendConnectionRequest_ResendAfterDecline(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.seedAccount(t, "alice", "Alice")
	bob := env.seedAccount(t, "bob", "Bob")

	req, err := env.pairing.SendConnectionRequest(ctx, alice, "bob")
	require.NoError(t, err)
	_, err = env.pairing.RespondToRequest(ctx, bob, req.ID, false)
	require.NoError(t, err)

	incoming, err := env.pairing.ListIncoming(ctx, bob)
	require.NoError(t, err)
	assert.Empty(t, incoming)

	again, err := env.pairing.SendConnectionRequest(ctx, alice, "bob")
	require.NoError(t, err)
	assert.Equal(t, domain.RequestPending, again.Status)

	incoming, err = env.pairing.ListIncoming(ctx, bob)
	require.NoError(t, err)
	require.Len(t, incoming, 1)
	assert.Equal(t, "Alice", incoming[0].FromUsername)
}

func TestRespondToRequest_AcceptIsMutual(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.seedAccount(t, "alice", "Alice")
	bob := env.seedAccount(t, "bob", "Bob")

	req, err := env.pairing.SendConnectionRequest(ctx, alice, "bob")
	require.NoError(t, err)

	_, err = env.pairing.RespondToRequest(ctx, alice, req.ID, true)
	assert.ErrorIs(t, err, ErrNotRequestRecipient)

	accepted, err := env.pairing.RespondToRequest(ctx, bob, req.ID, true)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestAccepted, accepted.Status)

	assert.Equal(t, "bob", env.account(t, "alice").Partner())
	assert.Equal(t, "alice", env.account(t, "bob").Partner())

	mb, err := env.notifications.Get(ctx, alice)
	require.NoError(t, err)
	assert.True(t, mb.Unread)
	assert.Contains(t, mb.Message, "Bob")

	_, err = env.pairing.RespondToRequest(ctx, bob, req.ID, true)
	assert.ErrorIs(t, err, ErrRequestNotPending)
}

func TestRespondToRequest_CrashAfterFirstWriteRollsBack(t *testing.T) {
	env := newTestEnvWithStore(t, &crashStore{Store: docstore.NewMemory(), failOn: 2})
	ctx := context.Background()
	alice := env.seedAccount(t, "alice", "Alice")
	bob := env.seedAccount(t, "bob", "Bob")

	req, err := env.pairing.SendConnectionRequest(ctx, alice, "bob")
	require.NoError(t, err)

	_, err = env.pairing.RespondToRequest(ctx, bob, req.ID, true)
	require.ErrorIs(t, err, ErrStoreWrite)

	assert.False(t, env.account(t, "alice").HasPartner())
	assert.False(t, env.account(t, "bob").HasPartner())
	stored, err := env.repos.Requests(env.store).Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestPending, stored.Status)
}

func TestRespondToRequest_AlreadyPaired(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.seedAccount(t, "alice", "Alice")
	bob := env.seedAccount(t, "bob", "Bob")
	env.seedAccount(t, "carol", "Carol")

	req, err := env.pairing.SendConnectionRequest(ctx, alice, "bob")
	require.NoError(t, err)
	env.pair(t, "alice", "carol")

	_, err = env.pairing.RespondToRequest(ctx, bob, req.ID, true)
	assert.ErrorIs(t, err, ErrAlreadyPaired)
	assert.False(t, env.account(t, "bob").HasPartner())
}

func TestCancelRequest(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.seedAccount(t, "alice", "Alice")
	bob := env.seedAccount(t, "bob", "Bob")

	req, err := env.pairing.SendConnectionRequest(ctx, alice, "bob")
	require.NoError(t, err)

	assert.ErrorIs(t, env.pairing.CancelRequest(ctx, bob, req.ID), ErrNotRequestSender)
	require.NoError(t, env.pairing.CancelRequest(ctx, alice, req.ID))
	assert.ErrorIs(t, env.pairing.CancelRequest(ctx, alice, req.ID), ErrNotFound)
}

func TestSubscribeIncoming(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.seedAccount(t, "alice", "Alice")
	bob := env.seedAccount(t, "bob", "Bob")

	sub, err := env.pairing.SubscribeIncoming(ctx, bob)
	require.NoError(t, err)
	defer sub.Close()

	assert.Empty(t, next(t, sub.Updates()))

	_, err = env.pairing.SendConnectionRequest(ctx, alice, "bob")
	require.NoError(t, err)

	got := waitFor(t, sub.Updates(), func(rs []domain.ConnectionRequest) bool { return len(rs) == 1 })
	assert.Equal(t, "alice", got[0].From)
}

func TestRemovePartner(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.seedAccount(t, "alice", "Alice")
	bob := env.seedAccount(t, "bob", "Bob")
	env.pair(t, "alice", "bob")

	require.NoError(t, env.pairing.RemovePartner(ctx, alice))
	assert.False(t, env.account(t, "alice").HasPartner())
	assert.False(t, env.account(t, "bob").HasPartner())

	mb, err := env.notifications.Get(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, "Alice has removed you as their partner.", mb.Message)

	// No partner left: a second call changes nothing.
	require.NoError(t, env.notifications.MarkRead(ctx, bob))
	require.NoError(t, env.pairing.RemovePartner(ctx, alice))
	mb, err = env.notifications.Get(ctx, bob)
	require.NoError(t, err)
	assert.False(t, mb.Unread)
}

func TestReconcile(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedAccount(t, "alice", "Alice")
	env.seedAccount(t, "bob", "Bob")
	env.seedAccount(t, "carol", "Carol")

	res, err := env.pairing.Reconcile(ctx, "carol")
	require.NoError(t, err)
	assert.Equal(t, domain.ReconcileUnpaired, res.Status)

	env.pair(t, "alice", "bob")
	res, err = env.pairing.Reconcile(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, domain.ReconcileOK, res.Status)

	// carol points at bob, bob does not point back.
	bobID := "bob"
	require.NoError(t, env.repos.Accounts(env.store).SetPartner(ctx, "carol", &bobID))
	res, err = env.pairing.Reconcile(ctx, "carol")
	require.NoError(t, err)
	assert.Equal(t, domain.ReconcileHealed, res.Status)
	assert.Equal(t, "bob", res.PartnerID)
	assert.False(t, env.account(t, "carol").HasPartner())
	assert.Equal(t, "alice", env.account(t, "bob").Partner())

	_, err = env.pairing.Reconcile(ctx, "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReconcileAll(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedAccount(t, "alice", "Alice")
	env.seedAccount(t, "bob", "Bob")
	bobID := "bob"
	require.NoError(t, env.repos.Accounts(env.store).SetPartner(ctx, "alice", &bobID))

	results, err := env.pairing.ReconcileAll(ctx)
	require.NoError(t, err)
	require.Len(t, results, 2)

	byID := map[string]string{}
	for _, r := range results {
		byID[r.AccountID] = r.Status
	}
	assert.Equal(t, domain.ReconcileHealed, byID["alice"])
	assert.Equal(t, domain.ReconcileUnpaired, byID["bob"])
}
