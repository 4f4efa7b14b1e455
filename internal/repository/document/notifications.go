package document

import (
	"context"
	"errors"

	"github.com/vedran77/tandem/internal/docstore"
	"github.com/vedran77/tandem/internal/domain"
)

type NotificationRepo struct {
	h docstore.Handle
}

func NewNotificationRepo(h docstore.Handle) *NotificationRepo {
	return &NotificationRepo{h: h}
}

// SetMessage merge-writes the single mailbox slot; the last write wins.
func (r *NotificationRepo) SetMessage(ctx context.Context, accountID, message string) error {
	return r.h.Set(ctx, CollNotifications, accountID, docstore.Fields{
		"message":   message,
		"updatedAt": docstore.ServerTimestamp,
	}, docstore.Merge())
}

func (r *NotificationRepo) Get(ctx context.Context, accountID string) (*domain.Mailbox, error) {
	doc, err := r.h.Get(ctx, CollNotifications, accountID)
	if errors.Is(err, docstore.ErrNotFound) {
		return &domain.Mailbox{AccountID: accountID}, nil
	}
	if err != nil {
		return nil, err
	}
	mb := mailboxOf(doc)
	return &mb, nil
}

func mailboxOf(doc docstore.Document) domain.Mailbox {
	msg, _ := doc.Fields["message"].(string)
	return domain.Mailbox{AccountID: doc.ID, Message: msg, Unread: msg != ""}
}
