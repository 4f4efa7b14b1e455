package service

import (
	"context"
	"strings"

	"github.com/vedran77/tandem/internal/docstore"
	"github.com/vedran77/tandem/internal/domain"
	"github.com/vedran77/tandem/internal/livesync"
	"github.com/vedran77/tandem/internal/repository"
	"github.com/vedran77/tandem/internal/repository/document"
)

type GoalService struct {
	store docstore.Store
	repos repository.Manager
}

func NewGoalService(store docstore.Store, repos repository.Manager) *GoalService {
	return &GoalService{store: store, repos: repos}
}

// Add creates a personal goal, or a shared one whose members are the caller
// and their partner.
func (s *GoalService) Add(ctx context.Context, sess domain.Session, text string, shared bool) (*domain.Goal, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrInvalidInput
	}
	if err := requireSession(sess); err != nil {
		return nil, err
	}

	g := &domain.Goal{Text: text, Shared: shared, CreatedBy: sess.AccountID, Members: []string{sess.AccountID}}
	if shared {
		me, err := loadPaired(ctx, s.repos, s.store, sess)
		if err != nil {
			return nil, err
		}
		g.Members = domain.Members(me.ID, me.Partner())
	}

	if err := s.repos.Goals(s.store).Create(ctx, g); err != nil {
		return nil, storeErr("adding goal", err)
	}
	return g, nil
}

func (s *GoalService) SetCompleted(ctx context.Context, sess domain.Session, goalID string, shared, completed bool) error {
	g, err := s.load(ctx, sess, goalID, shared)
	if err != nil {
		return err
	}
	return storeErr("updating goal", s.repos.Goals(s.store).SetCompleted(ctx, g, completed))
}

func (s *GoalService) Delete(ctx context.Context, sess domain.Session, goalID string, shared bool) error {
	g, err := s.load(ctx, sess, goalID, shared)
	if err != nil {
		return err
	}
	return storeErr("deleting goal", s.repos.Goals(s.store).Delete(ctx, g))
}

func (s *GoalService) load(ctx context.Context, sess domain.Session, goalID string, shared bool) (*domain.Goal, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	g, err := s.repos.Goals(s.store).Get(ctx, sess.AccountID, goalID, shared)
	if err != nil {
		return nil, storeErr("reading goal", err)
	}
	if g == nil {
		return nil, ErrNotFound
	}
	if !domain.HasMember(g.Members, sess.AccountID) {
		return nil, ErrNotMember
	}
	return g, nil
}

func (s *GoalService) ListPersonal(ctx context.Context, sess domain.Session) ([]domain.Goal, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	goals, err := s.repos.Goals(s.store).ListPersonal(ctx, sess.AccountID)
	if err != nil {
		return nil, storeErr("listing goals", err)
	}
	return goals, nil
}

// ListShared returns the shared goals of the current pairing only.
func (s *GoalService) ListShared(ctx context.Context, sess domain.Session) ([]domain.Goal, error) {
	keep, err := s.currentPairing(ctx, sess)
	if err != nil {
		return nil, err
	}
	goals, err := s.repos.Goals(s.store).ListShared(ctx, sess.AccountID)
	if err != nil {
		return nil, storeErr("listing goals", err)
	}
	out := goals[:0]
	for _, g := range goals {
		if keep(g) {
			out = append(out, g)
		}
	}
	return out, nil
}

func (s *GoalService) SubscribePersonal(ctx context.Context, sess domain.Session) (*livesync.Subscription[domain.Goal], error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	return livesync.Subscribe(ctx, s.store, document.PersonalGoalsQuery(sess.AccountID), document.ProjectGoal)
}

// SubscribeShared streams shared goals that include both the caller and
// their current partner. Goals left over from an earlier pairing stay
// hidden.
func (s *GoalService) SubscribeShared(ctx context.Context, sess domain.Session) (*livesync.Subscription[domain.Goal], error) {
	keep, err := s.currentPairing(ctx, sess)
	if err != nil {
		return nil, err
	}
	return livesync.Subscribe(ctx, s.store, document.SharedGoalsQuery(sess.AccountID), document.ProjectGoal,
		livesync.Narrow(keep))
}

func (s *GoalService) currentPairing(ctx context.Context, sess domain.Session) (func(domain.Goal) bool, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	me, err := loadAccount(ctx, s.repos, s.store, sess.AccountID)
	if err != nil {
		return nil, err
	}
	partner := me.Partner()
	return func(g domain.Goal) bool {
		return partner != "" && domain.HasMember(g.Members, partner)
	}, nil
}
