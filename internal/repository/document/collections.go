package document

import (
	"context"
	"time"

	"github.com/vedran77/tandem/internal/docstore"
	"github.com/vedran77/tandem/internal/domain"
)

type GoalRepo struct {
	h docstore.Handle
}

func NewGoalRepo(h docstore.Handle) *GoalRepo {
	return &GoalRepo{h: h}
}

func setGoalID(g *domain.Goal, id string) { g.ID = id }

func goalCollection(ownerID string, shared bool) string {
	if shared {
		return CollSharedGoals
	}
	return PersonalGoalsCollection(ownerID)
}

func (r *GoalRepo) Create(ctx context.Context, g *domain.Goal) error {
	fields, err := docstore.FieldsOf(g)
	if err != nil {
		return err
	}
	fields["createdAt"] = docstore.ServerTimestamp
	id, err := r.h.Create(ctx, goalCollection(g.CreatedBy, g.Shared), fields)
	if err != nil {
		return err
	}
	g.ID = id
	return nil
}

func (r *GoalRepo) Get(ctx context.Context, ownerID, id string, shared bool) (*domain.Goal, error) {
	return getOne(ctx, r.h, goalCollection(ownerID, shared), id, setGoalID)
}

func (r *GoalRepo) SetCompleted(ctx context.Context, g *domain.Goal, completed bool) error {
	return r.h.Update(ctx, goalCollection(g.CreatedBy, g.Shared), g.ID, docstore.Fields{"completed": completed})
}

func (r *GoalRepo) Delete(ctx context.Context, g *domain.Goal) error {
	return r.h.Delete(ctx, goalCollection(g.CreatedBy, g.Shared), g.ID)
}

func (r *GoalRepo) ListPersonal(ctx context.Context, ownerID string) ([]domain.Goal, error) {
	return list(ctx, r.h, PersonalGoalsQuery(ownerID), setGoalID)
}

func (r *GoalRepo) ListShared(ctx context.Context, memberID string) ([]domain.Goal, error) {
	return list(ctx, r.h, SharedGoalsQuery(memberID), setGoalID)
}

type EventRepo struct {
	h docstore.Handle
}

func NewEventRepo(h docstore.Handle) *EventRepo {
	return &EventRepo{h: h}
}

func setEventID(e *domain.Event, id string) { e.ID = id }

func (r *EventRepo) Create(ctx context.Context, e *domain.Event) error {
	fields, err := docstore.FieldsOf(e)
	if err != nil {
		return err
	}
	id, err := r.h.Create(ctx, CollSharedEvents, fields)
	if err != nil {
		return err
	}
	e.ID = id
	return nil
}

func (r *EventRepo) Get(ctx context.Context, id string) (*domain.Event, error) {
	return getOne(ctx, r.h, CollSharedEvents, id, setEventID)
}

func (r *EventRepo) Update(ctx context.Context, e *domain.Event) error {
	return r.h.Update(ctx, CollSharedEvents, e.ID, docstore.Fields{
		"title": e.Title,
		"start": e.Start,
		"end":   e.End,
	})
}

func (r *EventRepo) Delete(ctx context.Context, id string) error {
	return r.h.Delete(ctx, CollSharedEvents, id)
}

func (r *EventRepo) ListByMember(ctx context.Context, memberID string) ([]domain.Event, error) {
	return list(ctx, r.h, EventsQuery(memberID), setEventID)
}

func (r *EventRepo) ListUpcoming(ctx context.Context, memberID string, from time.Time, limit int) ([]domain.Event, error) {
	return list(ctx, r.h, UpcomingEventsQuery(memberID, from).WithLimit(limit), setEventID)
}

type MemoryRepo struct {
	h docstore.Handle
}

func NewMemoryRepo(h docstore.Handle) *MemoryRepo {
	return &MemoryRepo{h: h}
}

func setMemoryID(m *domain.Memory, id string) { m.ID = id }

func (r *MemoryRepo) Create(ctx context.Context, m *domain.Memory) error {
	fields, err := docstore.FieldsOf(m)
	if err != nil {
		return err
	}
	fields["createdAt"] = docstore.ServerTimestamp
	id, err := r.h.Create(ctx, CollSharedMemories, fields)
	if err != nil {
		return err
	}
	m.ID = id
	return nil
}

func (r *MemoryRepo) Get(ctx context.Context, id string) (*domain.Memory, error) {
	return getOne(ctx, r.h, CollSharedMemories, id, setMemoryID)
}

func (r *MemoryRepo) SetFavorite(ctx context.Context, id string, favorite bool) error {
	return r.h.Update(ctx, CollSharedMemories, id, docstore.Fields{"favorite": favorite})
}

func (r *MemoryRepo) Delete(ctx context.Context, id string) error {
	return r.h.Delete(ctx, CollSharedMemories, id)
}

func (r *MemoryRepo) ListByMember(ctx context.Context, memberID string) ([]domain.Memory, error) {
	return list(ctx, r.h, MemoriesQuery(memberID), setMemoryID)
}

type NoteRepo struct {
	h docstore.Handle
}

func NewNoteRepo(h docstore.Handle) *NoteRepo {
	return &NoteRepo{h: h}
}

func setNoteID(n *domain.Note, id string) { n.ID = id }

func (r *NoteRepo) Create(ctx context.Context, n *domain.Note) error {
	fields, err := docstore.FieldsOf(n)
	if err != nil {
		return err
	}
	fields["createdAt"] = docstore.ServerTimestamp
	id, err := r.h.Create(ctx, CollNotes, fields)
	if err != nil {
		return err
	}
	n.ID = id
	return nil
}

func (r *NoteRepo) Get(ctx context.Context, id string) (*domain.Note, error) {
	return getOne(ctx, r.h, CollNotes, id, setNoteID)
}

func (r *NoteRepo) Delete(ctx context.Context, id string) error {
	return r.h.Delete(ctx, CollNotes, id)
}

func (r *NoteRepo) ListByMember(ctx context.Context, memberID string) ([]domain.Note, error) {
	return list(ctx, r.h, NotesQuery(memberID), setNoteID)
}
