package repository

import (
	"context"
	"time"

	"github.com/vedran77/tandem/internal/docstore"
	"github.com/vedran77/tandem/internal/domain"
)

// Getters return (nil, nil) when the entity does not exist.

type AccountRepository interface {
	Create(ctx context.Context, account *domain.Account) error
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	SearchByUsernamePrefix(ctx context.Context, prefix string, limit int) ([]domain.Account, error)
	List(ctx context.Context) ([]domain.Account, error)
	SetPartner(ctx context.Context, id string, partnerID *string) error
	SetInviteCode(ctx context.Context, id, code string) error
	UpdateProfile(ctx context.Context, id string, update domain.ProfileUpdate) error
	SetUsernameLowercase(ctx context.Context, id, usernameLowercase string) error
	RecordSignOut(ctx context.Context, id string) error
}

type CredentialRepository interface {
	Create(ctx context.Context, cred *domain.Credential) error
	GetByEmail(ctx context.Context, email string) (*domain.Credential, error)
}

type InviteRepository interface {
	Create(ctx context.Context, invite *domain.InviteToken) error
	Get(ctx context.Context, code string) (*domain.InviteToken, error)
	Delete(ctx context.Context, code string) error
}

type RequestRepository interface {
	// Put writes the request under its deterministic id, replacing any
	// earlier request between the same two accounts.
	Put(ctx context.Context, req *domain.ConnectionRequest) error
	Get(ctx context.Context, id string) (*domain.ConnectionRequest, error)
	SetStatus(ctx context.Context, id, status string) error
	Delete(ctx context.Context, id string) error
	ListIncoming(ctx context.Context, toID string) ([]domain.ConnectionRequest, error)
	ListOutgoing(ctx context.Context, fromID string) ([]domain.ConnectionRequest, error)
}

type ChatRepository interface {
	AddMessage(ctx context.Context, msg *domain.ChatMessage) error
	GetMessage(ctx context.Context, chatID, id string) (*domain.ChatMessage, error)
	DeleteMessage(ctx context.Context, chatID, id string) error
	History(ctx context.Context, chatID string, limit int) ([]domain.ChatMessage, error)
	SetTyping(ctx context.Context, chatID string, state domain.TypingState) error
	GetTyping(ctx context.Context, chatID string) (*domain.TypingState, error)
}

type NotificationRepository interface {
	SetMessage(ctx context.Context, accountID, message string) error
	Get(ctx context.Context, accountID string) (*domain.Mailbox, error)
}

type GoalRepository interface {
	// Create stores g in the shared collection when g.Shared, otherwise
	// under its creator.
	Create(ctx context.Context, g *domain.Goal) error
	Get(ctx context.Context, ownerID, id string, shared bool) (*domain.Goal, error)
	SetCompleted(ctx context.Context, g *domain.Goal, completed bool) error
	Delete(ctx context.Context, g *domain.Goal) error
	ListPersonal(ctx context.Context, ownerID string) ([]domain.Goal, error)
	ListShared(ctx context.Context, memberID string) ([]domain.Goal, error)
}

type EventRepository interface {
	Create(ctx context.Context, e *domain.Event) error
	Get(ctx context.Context, id string) (*domain.Event, error)
	Update(ctx context.Context, e *domain.Event) error
	Delete(ctx context.Context, id string) error
	ListByMember(ctx context.Context, memberID string) ([]domain.Event, error)
	ListUpcoming(ctx context.Context, memberID string, from time.Time, limit int) ([]domain.Event, error)
}

type MemoryRepository interface {
	Create(ctx context.Context, m *domain.Memory) error
	Get(ctx context.Context, id string) (*domain.Memory, error)
	SetFavorite(ctx context.Context, id string, favorite bool) error
	Delete(ctx context.Context, id string) error
	ListByMember(ctx context.Context, memberID string) ([]domain.Memory, error)
}

type NoteRepository interface {
	Create(ctx context.Context, n *domain.Note) error
	Get(ctx context.Context, id string) (*domain.Note, error)
	Delete(ctx context.Context, id string) error
	ListByMember(ctx context.Context, memberID string) ([]domain.Note, error)
}

// Manager vends repositories bound to a store handle, so the same code runs
// directly against the store or inside a transaction.
type Manager interface {
	Accounts(h docstore.Handle) AccountRepository
	Credentials(h docstore.Handle) CredentialRepository
	Invites(h docstore.Handle) InviteRepository
	Requests(h docstore.Handle) RequestRepository
	Chats(h docstore.Handle) ChatRepository
	Notifications(h docstore.Handle) NotificationRepository
	Goals(h docstore.Handle) GoalRepository
	Events(h docstore.Handle) EventRepository
	Memories(h docstore.Handle) MemoryRepository
	Notes(h docstore.Handle) NoteRepository
}
