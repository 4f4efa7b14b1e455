package service

import (
	"context"

	"github.com/vedran77/tandem/internal/docstore"
	"github.com/vedran77/tandem/internal/domain"
	"github.com/vedran77/tandem/internal/repository"
)

func loadAccount(ctx context.Context, repos repository.Manager, h docstore.Handle, id string) (*domain.Account, error) {
	a, err := repos.Accounts(h).GetByID(ctx, id)
	if err != nil {
		return nil, storeErr("reading account", err)
	}
	if a == nil {
		return nil, ErrNotFound
	}
	return a, nil
}

// loadPaired returns the caller's account and requires a partner link.
func loadPaired(ctx context.Context, repos repository.Manager, h docstore.Handle, sess domain.Session) (*domain.Account, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	me, err := loadAccount(ctx, repos, h, sess.AccountID)
	if err != nil {
		return nil, err
	}
	if !me.HasPartner() {
		return nil, ErrNoPartner
	}
	return me, nil
}
