package document

import (
	"context"
	"errors"

	"github.com/vedran77/tandem/internal/docstore"
	"github.com/vedran77/tandem/internal/domain"
)

type ChatRepo struct {
	h docstore.Handle
}

func NewChatRepo(h docstore.Handle) *ChatRepo {
	return &ChatRepo{h: h}
}

func setMessageID(m *domain.ChatMessage, id string) { m.ID = id }

// AddMessage stores msg under msg.ID with a server-assigned timestamp.
func (r *ChatRepo) AddMessage(ctx context.Context, msg *domain.ChatMessage) error {
	fields, err := docstore.FieldsOf(msg)
	if err != nil {
		return err
	}
	fields["timestamp"] = docstore.ServerTimestamp
	return r.h.Set(ctx, MessagesCollection(msg.ChatID), msg.ID, fields)
}

func (r *ChatRepo) GetMessage(ctx context.Context, chatID, id string) (*domain.ChatMessage, error) {
	return getOne(ctx, r.h, MessagesCollection(chatID), id, setMessageID)
}

func (r *ChatRepo) DeleteMessage(ctx context.Context, chatID, id string) error {
	return r.h.Delete(ctx, MessagesCollection(chatID), id)
}

// History returns the latest limit messages, oldest first.
func (r *ChatRepo) History(ctx context.Context, chatID string, limit int) ([]domain.ChatMessage, error) {
	q := docstore.NewQuery(MessagesCollection(chatID)).
		OrderBy("timestamp", true).
		OrderBy(docstore.IDField, true).
		WithLimit(limit)
	msgs, err := list(ctx, r.h, q, setMessageID)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func (r *ChatRepo) SetTyping(ctx context.Context, chatID string, state domain.TypingState) error {
	return r.h.Set(ctx, CollChats, chatID, docstore.Fields{
		"typingStatus": map[string]any{"userId": state.UserID, "isTyping": state.IsTyping},
	}, docstore.Merge())
}

func (r *ChatRepo) GetTyping(ctx context.Context, chatID string) (*domain.TypingState, error) {
	doc, err := r.h.Get(ctx, CollChats, chatID)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	st, ok := typingOf(doc)
	if !ok {
		return nil, nil
	}
	return &st, nil
}

func typingOf(doc docstore.Document) (domain.TypingState, bool) {
	userID, _ := doc.Value("typingStatus.userId").(string)
	if userID == "" {
		return domain.TypingState{}, false
	}
	isTyping, _ := doc.Value("typingStatus.isTyping").(bool)
	return domain.TypingState{UserID: userID, IsTyping: isTyping}, true
}
