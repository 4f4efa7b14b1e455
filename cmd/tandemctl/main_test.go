package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/docopt/docopt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vedran77/tandem/internal/docstore"
	"github.com/vedran77/tandem/internal/domain"
	"github.com/vedran77/tandem/internal/logging"
	"github.com/vedran77/tandem/internal/repository/document"
)

func parse(t *testing.T, args ...string) docopt.Opts {
	t.Helper()
	opts, err := docopt.ParseArgs(usage, args, Version)
	require.NoError(t, err)
	return opts
}

func seed(t *testing.T, store docstore.Store, id string, partner *string) {
	t.Helper()
	err := document.NewManager().Accounts(store).Create(context.Background(), &domain.Account{
		ID:        id,
		Username:  "User" + id,
		Email:     id + "@example.com",
		PartnerID: partner,
	})
	require.NoError(t, err)
}

func TestExecute_Reconcile(t *testing.T) {
	store := docstore.NewMemory()
	defer store.Close()

	b := "b"
	seed(t, store, "a", &b)
	seed(t, store, "b", nil)

	var out bytes.Buffer
	err := execute(context.Background(), parse(t, "reconcile", "a"), store, logging.Discard(), &out)
	require.NoError(t, err)
	assert.Equal(t, "a\thealed\tpartner=b\n", out.String())

	a, err := document.NewManager().Accounts(store).GetByID(context.Background(), "a")
	require.NoError(t, err)
	assert.False(t, a.HasPartner())
}

func TestExecute_ReconcileUnknownAccount(t *testing.T) {
	store := docstore.NewMemory()
	defer store.Close()

	var out bytes.Buffer
	err := execute(context.Background(), parse(t, "reconcile", "ghost"), store, logging.Discard(), &out)
	assert.ErrorContains(t, err, "ghost")
}

func TestExecute_BackfillUsernames(t *testing.T) {
	store := docstore.NewMemory()
	defer store.Close()
	seed(t, store, "a", nil)

	var out bytes.Buffer
	err := execute(context.Background(), parse(t, "backfill-usernames"), store, logging.Discard(), &out)
	require.NoError(t, err)
	assert.Equal(t, "backfilled 1 accounts\n", out.String())
}
