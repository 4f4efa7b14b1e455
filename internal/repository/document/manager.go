// Package document implements the repositories on top of a document store
// handle.
package document

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/vedran77/tandem/internal/docstore"
	"github.com/vedran77/tandem/internal/repository"
)

const (
	CollUsers          = "users"
	CollCredentials    = "credentials"
	CollInvites        = "invites"
	CollRequests       = "connectionRequests"
	CollChats          = "chats"
	CollNotifications  = "notifications"
	CollSharedGoals    = "sharedGoals"
	CollSharedEvents   = "sharedEvents"
	CollSharedMemories = "sharedMemories"
	CollNotes          = "notes"
)

// MessagesCollection is the per-conversation message collection.
func MessagesCollection(chatID string) string {
	return CollChats + "/" + chatID + "/messages"
}

// PersonalGoalsCollection holds the goals only their owner sees.
func PersonalGoalsCollection(ownerID string) string {
	return CollUsers + "/" + ownerID + "/goals"
}

type Manager struct{}

func NewManager() *Manager {
	return &Manager{}
}

var _ repository.Manager = (*Manager)(nil)

func (m *Manager) Accounts(h docstore.Handle) repository.AccountRepository {
	return NewAccountRepo(h)
}

func (m *Manager) Credentials(h docstore.Handle) repository.CredentialRepository {
	return NewCredentialRepo(h)
}

func (m *Manager) Invites(h docstore.Handle) repository.InviteRepository {
	return NewInviteRepo(h)
}

func (m *Manager) Requests(h docstore.Handle) repository.RequestRepository {
	return NewRequestRepo(h)
}

func (m *Manager) Chats(h docstore.Handle) repository.ChatRepository {
	return NewChatRepo(h)
}

func (m *Manager) Notifications(h docstore.Handle) repository.NotificationRepository {
	return NewNotificationRepo(h)
}

func (m *Manager) Goals(h docstore.Handle) repository.GoalRepository {
	return NewGoalRepo(h)
}

func (m *Manager) Events(h docstore.Handle) repository.EventRepository {
	return NewEventRepo(h)
}

func (m *Manager) Memories(h docstore.Handle) repository.MemoryRepository {
	return NewMemoryRepo(h)
}

func (m *Manager) Notes(h docstore.Handle) repository.NoteRepository {
	return NewNoteRepo(h)
}

// getOne loads and decodes a single document, returning (nil, nil) when it
// does not exist.
func getOne[T any](ctx context.Context, h docstore.Handle, collection, id string, setID func(*T, string)) (*T, error) {
	doc, err := h.Get(ctx, collection, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var v T
	if err := doc.DataTo(&v); err != nil {
		return nil, err
	}
	if setID != nil {
		setID(&v, doc.ID)
	}
	return &v, nil
}

func list[T any](ctx context.Context, h docstore.Handle, q docstore.Query, setID func(*T, string)) ([]T, error) {
	docs, err := h.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		var v T
		if err := doc.DataTo(&v); err != nil {
			return nil, fmt.Errorf("decoding %s/%s: %w", doc.Collection, doc.ID, err)
		}
		if setID != nil {
			setID(&v, doc.ID)
		}
		out = append(out, v)
	}
	return out, nil
}

// keyOf makes an arbitrary string usable as a document id.
func keyOf(s string) string {
	return url.PathEscape(s)
}
