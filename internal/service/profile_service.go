package service

import (
	"context"
	"strings"

	"github.com/vedran77/tandem/internal/docstore"
	"github.com/vedran77/tandem/internal/domain"
	"github.com/vedran77/tandem/internal/livesync"
	"github.com/vedran77/tandem/internal/logging"
	"github.com/vedran77/tandem/internal/repository"
	"github.com/vedran77/tandem/internal/repository/document"
)

const maxUsernameLength = 32

type ProfileService struct {
	store  docstore.Store
	repos  repository.Manager
	logger logging.Logger
}

func NewProfileService(store docstore.Store, repos repository.Manager, logger logging.Logger) *ProfileService {
	return &ProfileService{store: store, repos: repos, logger: logger.With("service", "profile")}
}

func (s *ProfileService) Get(ctx context.Context, sess domain.Session) (*domain.Account, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	return loadAccount(ctx, s.repos, s.store, sess.AccountID)
}

func (s *ProfileService) GetPartner(ctx context.Context, sess domain.Session) (*domain.Account, error) {
	me, err := loadPaired(ctx, s.repos, s.store, sess)
	if err != nil {
		return nil, err
	}
	return loadAccount(ctx, s.repos, s.store, me.Partner())
}

// UpdateProfile merge-writes the given fields and leaves everything else on
// the account untouched.
func (s *ProfileService) UpdateProfile(ctx context.Context, sess domain.Session, update domain.ProfileUpdate) (*domain.Account, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	if update.Username != nil {
		name := strings.TrimSpace(*update.Username)
		if name == "" || len(name) > maxUsernameLength {
			return nil, ErrInvalidInput
		}
		update.Username = &name
	}
	if update.Location != nil {
		loc := strings.TrimSpace(*update.Location)
		update.Location = &loc
	}

	if err := s.repos.Accounts(s.store).UpdateProfile(ctx, sess.AccountID, update); err != nil {
		return nil, storeErr("updating profile", err)
	}
	return loadAccount(ctx, s.repos, s.store, sess.AccountID)
}

// BackfillUsernameLowercase recomputes usernameLowercase for accounts written
// before the field existed. It returns how many accounts changed.
func (s *ProfileService) BackfillUsernameLowercase(ctx context.Context) (int, error) {
	accounts, err := s.repos.Accounts(s.store).List(ctx)
	if err != nil {
		return 0, storeErr("listing accounts", err)
	}

	updated := 0
	for _, a := range accounts {
		want := domain.NormalizeUsername(a.Username)
		if a.UsernameLowercase == want {
			continue
		}
		if err := s.repos.Accounts(s.store).SetUsernameLowercase(ctx, a.ID, want); err != nil {
			return updated, storeErr("backfilling username", err)
		}
		updated++
	}
	s.logger.Info(ctx, "username backfill finished", "scanned", len(accounts), "updated", updated)
	return updated, nil
}

// SubscribeAccount streams the caller's own account document. The slice
// holds one element, or none if the account disappears.
func (s *ProfileService) SubscribeAccount(ctx context.Context, sess domain.Session) (*livesync.Subscription[domain.Account], error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	return livesync.Subscribe(ctx, s.store, document.AccountQuery(sess.AccountID), document.ProjectAccount)
}
