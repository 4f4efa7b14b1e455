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

const maxNoteLength = 2000

type NoteService struct {
	store docstore.Store
	repos repository.Manager
}

func NewNoteService(store docstore.Store, repos repository.Manager) *NoteService {
	return &NoteService{store: store, repos: repos}
}

func (s *NoteService) Add(ctx context.Context, sess domain.Session, text string) (*domain.Note, error) {
	text = strings.TrimSpace(text)
	if text == "" || len(text) > maxNoteLength {
		return nil, ErrInvalidInput
	}
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	me, err := loadAccount(ctx, s.repos, s.store, sess.AccountID)
	if err != nil {
		return nil, err
	}

	n := &domain.Note{Text: text, Members: domain.Members(me.ID, me.Partner()), CreatedBy: me.ID}
	if err := s.repos.Notes(s.store).Create(ctx, n); err != nil {
		return nil, storeErr("adding note", err)
	}
	return n, nil
}

func (s *NoteService) Delete(ctx context.Context, sess domain.Session, noteID string) error {
	if err := requireSession(sess); err != nil {
		return err
	}
	notes := s.repos.Notes(s.store)
	n, err := notes.Get(ctx, noteID)
	if err != nil {
		return storeErr("reading note", err)
	}
	if n == nil {
		return ErrNotFound
	}
	if !domain.HasMember(n.Members, sess.AccountID) {
		return ErrNotMember
	}
	return storeErr("deleting note", notes.Delete(ctx, noteID))
}

func (s *NoteService) List(ctx context.Context, sess domain.Session) ([]domain.Note, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	notes, err := s.repos.Notes(s.store).ListByMember(ctx, sess.AccountID)
	if err != nil {
		return nil, storeErr("listing notes", err)
	}
	return notes, nil
}

func (s *NoteService) Subscribe(ctx context.Context, sess domain.Session) (*livesync.Subscription[domain.Note], error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	return livesync.Subscribe(ctx, s.store, document.NotesQuery(sess.AccountID), document.ProjectNote)
}
