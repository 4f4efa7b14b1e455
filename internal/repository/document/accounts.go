package document

import (
	"context"

	"github.com/vedran77/tandem/internal/docstore"
	"github.com/vedran77/tandem/internal/domain"
)

type AccountRepo struct {
	h docstore.Handle
}

func NewAccountRepo(h docstore.Handle) *AccountRepo {
	return &AccountRepo{h: h}
}

func setAccountID(a *domain.Account, id string) { a.ID = id }

func (r *AccountRepo) Create(ctx context.Context, account *domain.Account) error {
	fields, err := docstore.FieldsOf(account)
	if err != nil {
		return err
	}
	fields["createdAt"] = docstore.ServerTimestamp
	return r.h.Set(ctx, CollUsers, account.ID, fields)
}

func (r *AccountRepo) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	return getOne(ctx, r.h, CollUsers, id, setAccountID)
}

func (r *AccountRepo) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	accounts, err := list(ctx, r.h,
		docstore.NewQuery(CollUsers).Where("email", docstore.OpEqual, domain.NormalizeEmail(email)).WithLimit(1),
		setAccountID,
	)
	if err != nil || len(accounts) == 0 {
		return nil, err
	}
	return &accounts[0], nil
}

func (r *AccountRepo) SearchByUsernamePrefix(ctx context.Context, prefix string, limit int) ([]domain.Account, error) {
	q := docstore.NewQuery(CollUsers).
		WherePrefix("usernameLowercase", prefix).
		OrderBy("usernameLowercase", false).
		WithLimit(limit)
	return list(ctx, r.h, q, setAccountID)
}

func (r *AccountRepo) List(ctx context.Context) ([]domain.Account, error) {
	return list(ctx, r.h, docstore.NewQuery(CollUsers), setAccountID)
}

func (r *AccountRepo) SetPartner(ctx context.Context, id string, partnerID *string) error {
	var v any
	if partnerID != nil {
		v = *partnerID
	}
	return r.h.Update(ctx, CollUsers, id, docstore.Fields{"partnerId": v})
}

func (r *AccountRepo) SetInviteCode(ctx context.Context, id, code string) error {
	return r.h.Update(ctx, CollUsers, id, docstore.Fields{"inviteCode": code})
}

func (r *AccountRepo) UpdateProfile(ctx context.Context, id string, update domain.ProfileUpdate) error {
	fields := docstore.Fields{}
	if update.Username != nil {
		fields["username"] = *update.Username
		fields["usernameLowercase"] = domain.NormalizeUsername(*update.Username)
	}
	if update.Location != nil {
		fields["location"] = *update.Location
	}
	if len(fields) == 0 {
		return nil
	}
	return r.h.Update(ctx, CollUsers, id, fields)
}

func (r *AccountRepo) SetUsernameLowercase(ctx context.Context, id, usernameLowercase string) error {
	return r.h.Update(ctx, CollUsers, id, docstore.Fields{"usernameLowercase": usernameLowercase})
}

func (r *AccountRepo) RecordSignOut(ctx context.Context, id string) error {
	return r.h.Update(ctx, CollUsers, id, docstore.Fields{"lastSignOutAt": docstore.ServerTimestamp})
}
