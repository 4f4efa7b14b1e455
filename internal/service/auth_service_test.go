package service

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vedran77/tandem/internal/domain"
)

func TestSignUp_CreatesAccountAndInvite(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	resp, err := env.auth.SignUp(ctx, SignUpInput{Email: " Alice@Example.com ", Password: "hunter22"})
	require.NoError(t, err)
	require.NotNil(t, resp.Account)
	assert.NotEmpty(t, resp.AccessToken)

	a := resp.Account
	assert.Equal(t, "alice@example.com", a.Email)
	assert.Regexp(t, `^alice\d{1,3}$`, a.Username)
	assert.Equal(t, a.Username, a.UsernameLowercase)
	assert.Len(t, a.InviteCode, 6)
	assert.False(t, a.HasPartner())

	sess, err := env.auth.ParseToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, a.ID, sess.AccountID)
}

func TestSignUp_WithInvitePairs(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first, err := env.auth.SignUp(ctx, SignUpInput{Email: "alice@example.com", Password: "hunter22"})
	require.NoError(t, err)

	second, err := env.auth.SignUp(ctx, SignUpInput{
		Email:      "bob@example.com",
		Password:   "hunter22",
		InviteCode: first.Account.InviteCode,
	})
	require.NoError(t, err)
	assert.Equal(t, first.Account.ID, second.Account.Partner())
	assert.Equal(t, second.Account.ID, env.account(t, first.Account.ID).Partner())
	assert.Empty(t, second.Account.InviteCode)
}

func TestSignUp_BadInviteCreatesNothing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.auth.SignUp(ctx, SignUpInput{Email: "bob@example.com", Password: "hunter22", InviteCode: "zzzzzz"})
	require.ErrorIs(t, err, ErrInvalidInvite)

	cred, err := env.repos.Credentials(env.store).GetByEmail(ctx, "bob@example.com")
	require.NoError(t, err)
	assert.Nil(t, cred)
	accounts, err := env.repos.Accounts(env.store).List(ctx)
	require.NoError(t, err)
	assert.Empty(t, accounts)
}

func TestSignUp_Validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.auth.SignUp(ctx, SignUpInput{Email: "not-an-email", Password: "hunter22"})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = env.auth.SignUp(ctx, SignUpInput{Email: "a@example.com", Password: "123"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = env.auth.SignUp(ctx, SignUpInput{Email: "a@example.com", Password: "hunter22"})
	require.NoError(t, err)
	_, err = env.auth.SignUp(ctx, SignUpInput{Email: "A@example.com", Password: "hunter22"})
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestSignIn(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created, err := env.auth.SignUp(ctx, SignUpInput{Email: "alice@example.com", Password: "hunter22"})
	require.NoError(t, err)

	resp, err := env.auth.SignIn(ctx, SignInInput{Email: "ALICE@example.com", Password: "hunter22"})
	require.NoError(t, err)
	assert.Equal(t, created.Account.ID, resp.Account.ID)
	require.NotNil(t, resp.Reconcile)
	assert.Equal(t, domain.ReconcileUnpaired, resp.Reconcile.Status)

	_, err = env.auth.SignIn(ctx, SignInInput{Email: "alice@example.com", Password: "wrong-password"})
	assert.ErrorIs(t, err, ErrInvalidCreds)
	_, err = env.auth.SignIn(ctx, SignInInput{Email: "nobody@example.com", Password: "hunter22"})
	assert.ErrorIs(t, err, ErrInvalidCreds)
}

func TestSignIn_HealsOneSidedPairing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created, err := env.auth.SignUp(ctx, SignUpInput{Email: "alice@example.com", Password: "hunter22"})
	require.NoError(t, err)
	env.seedAccount(t, "bob", "Bob")
	bobID := "bob"
	require.NoError(t, env.repos.Accounts(env.store).SetPartner(ctx, created.Account.ID, &bobID))

	resp, err := env.auth.SignIn(ctx, SignInInput{Email: "alice@example.com", Password: "hunter22"})
	require.NoError(t, err)
	assert.Equal(t, domain.ReconcileHealed, resp.Reconcile.Status)
	assert.False(t, resp.Account.HasPartner())
}

func TestSignInWithProvider(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	idToken := providerToken(t, "provider-secret", "google-123", "Carol@example.com")
	first, err := env.auth.SignInWithProvider(ctx, ProviderInput{Provider: "google", IDToken: idToken})
	require.NoError(t, err)
	assert.Equal(t, "carol@example.com", first.Account.Email)

	again, err := env.auth.SignInWithProvider(ctx, ProviderInput{Provider: "google", IDToken: idToken})
	require.NoError(t, err)
	assert.Equal(t, first.Account.ID, again.Account.ID)

	_, err = env.auth.SignInWithProvider(ctx, ProviderInput{
		Provider: "google",
		IDToken:  providerToken(t, "other-secret", "google-123", "carol@example.com"),
	})
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = env.auth.SignIn(ctx, SignInInput{Email: "carol@example.com", Password: ""})
	assert.ErrorIs(t, err, ErrInvalidCreds, "provider accounts have no password")
}

func TestSignOut(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	sess := env.seedAccount(t, "alice", "Alice")

	require.NoError(t, env.auth.SignOut(ctx, sess))
	doc, err := env.store.Get(ctx, "users", "alice")
	require.NoError(t, err)
	assert.NotEmpty(t, doc.Fields["lastSignOutAt"])

	assert.ErrorIs(t, env.auth.SignOut(ctx, domain.Session{}), ErrUnauthenticated)
}

func TestParseToken_Rejects(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.auth.ParseToken("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "alice",
		"exp": time.Now().Add(-time.Minute).Unix(),
	})
	signed, err := expired.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	_, err = env.auth.ParseToken(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestPasswordHash(t *testing.T) {
	hash, err := hashPassword("correct horse")
	require.NoError(t, err)
	assert.True(t, verifyPassword("correct horse", hash))
	assert.False(t, verifyPassword("wrong horse", hash))
	assert.False(t, verifyPassword("correct horse", "not-a-hash"))
}

func providerToken(t *testing.T, secret, subject, email string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   subject,
		"email": email,
		"exp":   time.Now().Add(time.Minute).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}
