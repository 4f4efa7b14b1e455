package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/vedran77/tandem/internal/docstore"
	"github.com/vedran77/tandem/internal/domain"
	"github.com/vedran77/tandem/internal/livesync"
	"github.com/vedran77/tandem/internal/logging"
	"github.com/vedran77/tandem/internal/repository"
	"github.com/vedran77/tandem/internal/repository/document"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
	maxMessageLength    = 4000
)

// BlobStore persists uploaded media and returns a URL clients can fetch it
// from.
type BlobStore interface {
	Put(ctx context.Context, key, contentType string, body []byte) (string, error)
}

type ChatService struct {
	store  docstore.Store
	repos  repository.Manager
	blobs  BlobStore
	logger logging.Logger
}

func NewChatService(store docstore.Store, repos repository.Manager, blobs BlobStore, logger logging.Logger) *ChatService {
	return &ChatService{store: store, repos: repos, blobs: blobs, logger: logger.With("service", "chat")}
}

func (s *ChatService) SendText(ctx context.Context, sess domain.Session, text string) (*domain.ChatMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" || len(text) > maxMessageLength {
		return nil, ErrInvalidInput
	}
	me, err := loadPaired(ctx, s.repos, s.store, sess)
	if err != nil {
		return nil, err
	}
	return s.send(ctx, me, &domain.ChatMessage{Type: domain.MessageText, Text: text})
}

// SendAudio uploads a recorded voice message, then posts it to the chat.
func (s *ChatService) SendAudio(ctx context.Context, sess domain.Session, audio []byte) (*domain.ChatMessage, error) {
	if len(audio) == 0 {
		return nil, ErrInvalidInput
	}
	me, err := loadPaired(ctx, s.repos, s.store, sess)
	if err != nil {
		return nil, err
	}
	if s.blobs == nil {
		return nil, ErrUploadFailure
	}

	chatID := domain.ChatID(me.ID, me.Partner())
	key := fmt.Sprintf("audio/%s/%s.webm", chatID, ulid.Make())
	url, err := s.blobs.Put(ctx, key, "audio/webm", audio)
	if err != nil {
		s.logger.Error(ctx, "audio upload failed", "chat_id", chatID, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrUploadFailure, err)
	}
	return s.send(ctx, me, &domain.ChatMessage{Type: domain.MessageAudio, AudioURL: url})
}

func (s *ChatService) send(ctx context.Context, me *domain.Account, msg *domain.ChatMessage) (*domain.ChatMessage, error) {
	msg.ID = ulid.Make().String()
	msg.ChatID = domain.ChatID(me.ID, me.Partner())
	msg.SenderID = me.ID
	msg.SenderName = me.Username

	chats := s.repos.Chats(s.store)
	if err := chats.AddMessage(ctx, msg); err != nil {
		return nil, storeErr("sending message", err)
	}
	stored, err := chats.GetMessage(ctx, msg.ChatID, msg.ID)
	if err != nil {
		return nil, storeErr("reading message", err)
	}
	if stored == nil {
		return msg, nil
	}
	return stored, nil
}

// DeleteMessage removes one of the caller's own messages.
func (s *ChatService) DeleteMessage(ctx context.Context, sess domain.Session, messageID string) error {
	me, err := loadPaired(ctx, s.repos, s.store, sess)
	if err != nil {
		return err
	}
	chatID := domain.ChatID(me.ID, me.Partner())

	chats := s.repos.Chats(s.store)
	msg, err := chats.GetMessage(ctx, chatID, messageID)
	if err != nil {
		return storeErr("reading message", err)
	}
	if msg == nil {
		return ErrNotFound
	}
	if msg.SenderID != me.ID {
		return ErrNotSender
	}
	return storeErr("deleting message", chats.DeleteMessage(ctx, chatID, messageID))
}

// History returns up to limit of the most recent messages, oldest first.
func (s *ChatService) History(ctx context.Context, sess domain.Session, limit int) ([]domain.ChatMessage, error) {
	me, err := loadPaired(ctx, s.repos, s.store, sess)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	limit = min(limit, maxHistoryLimit)

	msgs, err := s.repos.Chats(s.store).History(ctx, domain.ChatID(me.ID, me.Partner()), limit)
	if err != nil {
		return nil, storeErr("reading history", err)
	}
	return msgs, nil
}

// Subscribe streams the whole conversation with the current partner in
// timestamp order.
func (s *ChatService) Subscribe(ctx context.Context, sess domain.Session) (*livesync.Subscription[domain.ChatMessage], error) {
	me, err := loadPaired(ctx, s.repos, s.store, sess)
	if err != nil {
		return nil, err
	}
	chatID := domain.ChatID(me.ID, me.Partner())
	return livesync.Subscribe(ctx, s.store, document.MessagesQuery(chatID), document.ProjectMessage)
}
