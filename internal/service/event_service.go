package service

import (
	"context"
	"strings"
	"time"

	"github.com/vedran77/tandem/internal/docstore"
	"github.com/vedran77/tandem/internal/domain"
	"github.com/vedran77/tandem/internal/livesync"
	"github.com/vedran77/tandem/internal/repository"
	"github.com/vedran77/tandem/internal/repository/document"
)

type EventInput struct {
	Title string    `json:"title"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (in EventInput) validate() error {
	if strings.TrimSpace(in.Title) == "" || in.Start.IsZero() {
		return ErrInvalidInput
	}
	if !in.End.IsZero() && in.End.Before(in.Start) {
		return ErrInvalidInput
	}
	return nil
}

type EventService struct {
	store docstore.Store
	repos repository.Manager
}

func NewEventService(store docstore.Store, repos repository.Manager) *EventService {
	return &EventService{store: store, repos: repos}
}

// Create adds a calendar event shared with the caller's partner, if any.
func (s *EventService) Create(ctx context.Context, sess domain.Session, in EventInput) (*domain.Event, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	me, err := loadAccount(ctx, s.repos, s.store, sess.AccountID)
	if err != nil {
		return nil, err
	}

	e := &domain.Event{
		Title:     strings.TrimSpace(in.Title),
		Start:     in.Start.UTC(),
		End:       in.End.UTC(),
		Members:   domain.Members(me.ID, me.Partner()),
		CreatedBy: me.ID,
	}
	if e.End.IsZero() {
		e.End = e.Start
	}
	if err := s.repos.Events(s.store).Create(ctx, e); err != nil {
		return nil, storeErr("creating event", err)
	}
	return e, nil
}

func (s *EventService) Update(ctx context.Context, sess domain.Session, eventID string, in EventInput) (*domain.Event, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	e, err := s.load(ctx, sess, eventID)
	if err != nil {
		return nil, err
	}
	e.Title = strings.TrimSpace(in.Title)
	e.Start = in.Start.UTC()
	e.End = in.End.UTC()
	if e.End.IsZero() {
		e.End = e.Start
	}
	if err := s.repos.Events(s.store).Update(ctx, e); err != nil {
		return nil, storeErr("updating event", err)
	}
	return e, nil
}

func (s *EventService) Delete(ctx context.Context, sess domain.Session, eventID string) error {
	if _, err := s.load(ctx, sess, eventID); err != nil {
		return err
	}
	return storeErr("deleting event", s.repos.Events(s.store).Delete(ctx, eventID))
}

func (s *EventService) load(ctx context.Context, sess domain.Session, eventID string) (*domain.Event, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	e, err := s.repos.Events(s.store).Get(ctx, eventID)
	if err != nil {
		return nil, storeErr("reading event", err)
	}
	if e == nil {
		return nil, ErrNotFound
	}
	if !domain.HasMember(e.Members, sess.AccountID) {
		return nil, ErrNotMember
	}
	return e, nil
}

func (s *EventService) List(ctx context.Context, sess domain.Session) ([]domain.Event, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	events, err := s.repos.Events(s.store).ListByMember(ctx, sess.AccountID)
	if err != nil {
		return nil, storeErr("listing events", err)
	}
	return events, nil
}

// Upcoming returns the next limit events starting at or after from.
func (s *EventService) Upcoming(ctx context.Context, sess domain.Session, from time.Time, limit int) ([]domain.Event, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	events, err := s.repos.Events(s.store).ListUpcoming(ctx, sess.AccountID, from, limit)
	if err != nil {
		return nil, storeErr("listing events", err)
	}
	return events, nil
}

func (s *EventService) Subscribe(ctx context.Context, sess domain.Session) (*livesync.Subscription[domain.Event], error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	return livesync.Subscribe(ctx, s.store, document.EventsQuery(sess.AccountID), document.ProjectEvent)
}

// SubscribeUpcoming streams events starting at or after from. The bound is
// fixed when the subscription opens.
func (s *EventService) SubscribeUpcoming(ctx context.Context, sess domain.Session, from time.Time) (*livesync.Subscription[domain.Event], error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	return livesync.Subscribe(ctx, s.store, document.UpcomingEventsQuery(sess.AccountID, from), document.ProjectEvent)
}
