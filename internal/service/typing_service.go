package service

import (
	"context"
	"sync"
	"time"

	"github.com/vedran77/tandem/internal/docstore"
	"github.com/vedran77/tandem/internal/domain"
	"github.com/vedran77/tandem/internal/livesync"
	"github.com/vedran77/tandem/internal/logging"
	"github.com/vedran77/tandem/internal/repository"
	"github.com/vedran77/tandem/internal/repository/document"
)

const typingWriteTimeout = 5 * time.Second

// TypingService drives the per-conversation typing slot. Keystrokes are
// debounced: the first one after idle writes isTyping=true, and false is
// written once idle has passed since the last keystroke.
type TypingService struct {
	store  docstore.Store
	repos  repository.Manager
	idle   time.Duration
	logger logging.Logger

	mu      sync.Mutex
	entries map[typingKey]*typingEntry
}

type typingKey struct {
	chatID string
	userID string
}

type typingEntry struct {
	mu     sync.Mutex
	active bool
	gen    uint64
	timer  *time.Timer
}

func NewTypingService(store docstore.Store, repos repository.Manager, idle time.Duration, logger logging.Logger) *TypingService {
	return &TypingService{
		store:   store,
		repos:   repos,
		idle:    idle,
		logger:  logger.With("service", "typing"),
		entries: make(map[typingKey]*typingEntry),
	}
}

// SetTyping writes the typing slot of chatID directly, bypassing the
// debouncer.
func (s *TypingService) SetTyping(ctx context.Context, chatID, userID string, isTyping bool) error {
	state := domain.TypingState{UserID: userID, IsTyping: isTyping}
	if err := s.repos.Chats(s.store).SetTyping(ctx, chatID, state); err != nil {
		return storeErr("setting typing state", err)
	}
	return nil
}

// Keystroke records input from the caller in the conversation with their
// partner.
func (s *TypingService) Keystroke(ctx context.Context, sess domain.Session) error {
	me, err := loadPaired(ctx, s.repos, s.store, sess)
	if err != nil {
		return err
	}
	key := typingKey{chatID: domain.ChatID(me.ID, me.Partner()), userID: me.ID}
	e := s.entry(key)

	e.mu.Lock()
	defer e.mu.Unlock()

	e.gen++
	gen := e.gen
	if e.timer != nil {
		e.timer.Stop()
	}
	e.timer = time.AfterFunc(s.idle, func() { s.expire(key, e, gen) })

	if e.active {
		return nil
	}
	if err := s.SetTyping(ctx, key.chatID, key.userID, true); err != nil {
		return err
	}
	e.active = true
	return nil
}

// Stop clears the caller's typing state right away, e.g. after sending a
// message.
func (s *TypingService) Stop(ctx context.Context, sess domain.Session) error {
	me, err := loadPaired(ctx, s.repos, s.store, sess)
	if err != nil {
		return err
	}
	key := typingKey{chatID: domain.ChatID(me.ID, me.Partner()), userID: me.ID}
	e := s.entry(key)

	e.mu.Lock()
	defer e.mu.Unlock()

	e.gen++
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	if err := s.SetTyping(ctx, key.chatID, key.userID, false); err != nil {
		return err
	}
	e.active = false
	return nil
}

func (s *TypingService) expire(key typingKey, e *typingEntry, gen uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.gen != gen || !e.active {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), typingWriteTimeout)
	defer cancel()

	if err := s.SetTyping(ctx, key.chatID, key.userID, false); err != nil {
		s.logger.Error(ctx, "clearing typing state failed", "chat_id", key.chatID, "user_id", key.userID, "error", err)
		return
	}
	e.active = false
	e.timer = nil
}

func (s *TypingService) entry(key typingKey) *typingEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		e = &typingEntry{}
		s.entries[key] = e
	}
	return e
}

// Subscribe streams the partner's typing state in the shared conversation.
// The caller's own writes are filtered out.
func (s *TypingService) Subscribe(ctx context.Context, sess domain.Session) (*livesync.Subscription[domain.TypingState], error) {
	me, err := loadPaired(ctx, s.repos, s.store, sess)
	if err != nil {
		return nil, err
	}
	chatID := domain.ChatID(me.ID, me.Partner())
	return livesync.Subscribe(ctx, s.store, document.TypingQuery(chatID), document.ProjectTyping,
		livesync.Narrow(func(st domain.TypingState) bool {
			return st.UserID != "" && st.UserID != me.ID
		}),
	)
}

// Close stops all pending idle timers.
func (s *TypingService) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		e.mu.Lock()
		e.gen++
		if e.timer != nil {
			e.timer.Stop()
			e.timer = nil
		}
		e.mu.Unlock()
	}
}
