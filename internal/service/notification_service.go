package service

import (
	"context"

	"github.com/vedran77/tandem/internal/docstore"
	"github.com/vedran77/tandem/internal/domain"
	"github.com/vedran77/tandem/internal/livesync"
	"github.com/vedran77/tandem/internal/repository"
	"github.com/vedran77/tandem/internal/repository/document"
)

// NotificationService maintains the single-slot mailbox of each account.
// Notify and MarkRead do not coordinate: whichever write lands last wins,
// so a notification arriving while the previous one is being read can be
// cleared unseen.
type NotificationService struct {
	store docstore.Store
	repos repository.Manager
}

func NewNotificationService(store docstore.Store, repos repository.Manager) *NotificationService {
	return &NotificationService{store: store, repos: repos}
}

// Notify overwrites the mailbox message of accountID.
func (s *NotificationService) Notify(ctx context.Context, accountID, message string) error {
	if err := s.repos.Notifications(s.store).SetMessage(ctx, accountID, message); err != nil {
		return storeErr("notifying", err)
	}
	return nil
}

func (s *NotificationService) MarkRead(ctx context.Context, sess domain.Session) error {
	if err := requireSession(sess); err != nil {
		return err
	}
	if err := s.repos.Notifications(s.store).SetMessage(ctx, sess.AccountID, ""); err != nil {
		return storeErr("marking notification read", err)
	}
	return nil
}

func (s *NotificationService) Get(ctx context.Context, sess domain.Session) (*domain.Mailbox, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	mb, err := s.repos.Notifications(s.store).Get(ctx, sess.AccountID)
	if err != nil {
		return nil, storeErr("reading mailbox", err)
	}
	return mb, nil
}

func (s *NotificationService) Subscribe(ctx context.Context, sess domain.Session) (*livesync.Subscription[domain.Mailbox], error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	return livesync.Subscribe(ctx, s.store, document.MailboxQuery(sess.AccountID), document.ProjectMailbox)
}
