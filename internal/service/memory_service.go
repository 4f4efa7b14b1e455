package service

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/vedran77/tandem/internal/docstore"
	"github.com/vedran77/tandem/internal/domain"
	"github.com/vedran77/tandem/internal/livesync"
	"github.com/vedran77/tandem/internal/logging"
	"github.com/vedran77/tandem/internal/repository"
	"github.com/vedran77/tandem/internal/repository/document"
)

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// MemoryService manages the shared photo album.
type MemoryService struct {
	store  docstore.Store
	repos  repository.Manager
	blobs  BlobStore
	logger logging.Logger
}

func NewMemoryService(store docstore.Store, repos repository.Manager, blobs BlobStore, logger logging.Logger) *MemoryService {
	return &MemoryService{store: store, repos: repos, blobs: blobs, logger: logger.With("service", "memories")}
}

// Add uploads a photo and records it as a memory of the caller and their
// partner. Only image content is accepted.
func (s *MemoryService) Add(ctx context.Context, sess domain.Session, caption string, image []byte) (*domain.Memory, error) {
	if len(image) == 0 {
		return nil, ErrInvalidInput
	}
	contentType := http.DetectContentType(image)
	ext, ok := imageExtensions[contentType]
	if !ok {
		return nil, ErrInvalidInput
	}
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	me, err := loadAccount(ctx, s.repos, s.store, sess.AccountID)
	if err != nil {
		return nil, err
	}
	if s.blobs == nil {
		return nil, ErrUploadFailure
	}

	key := fmt.Sprintf("memories/%s/%s%s", me.ID, ulid.Make(), ext)
	url, err := s.blobs.Put(ctx, key, contentType, image)
	if err != nil {
		s.logger.Error(ctx, "photo upload failed", "account_id", me.ID, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrUploadFailure, err)
	}

	m := &domain.Memory{
		Caption:   strings.TrimSpace(caption),
		ImageURL:  url,
		Members:   domain.Members(me.ID, me.Partner()),
		CreatedBy: me.ID,
	}
	if err := s.repos.Memories(s.store).Create(ctx, m); err != nil {
		return nil, storeErr("adding memory", err)
	}
	return m, nil
}

// ToggleFavorite flips the favorite flag and returns the new value.
func (s *MemoryService) ToggleFavorite(ctx context.Context, sess domain.Session, memoryID string) (bool, error) {
	m, err := s.load(ctx, sess, memoryID)
	if err != nil {
		return false, err
	}
	next := !m.Favorite
	if err := s.repos.Memories(s.store).SetFavorite(ctx, memoryID, next); err != nil {
		return false, storeErr("updating memory", err)
	}
	return next, nil
}

func (s *MemoryService) Delete(ctx context.Context, sess domain.Session, memoryID string) error {
	if _, err := s.load(ctx, sess, memoryID); err != nil {
		return err
	}
	return storeErr("deleting memory", s.repos.Memories(s.store).Delete(ctx, memoryID))
}

func (s *MemoryService) load(ctx context.Context, sess domain.Session, memoryID string) (*domain.Memory, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	m, err := s.repos.Memories(s.store).Get(ctx, memoryID)
	if err != nil {
		return nil, storeErr("reading memory", err)
	}
	if m == nil {
		return nil, ErrNotFound
	}
	if !domain.HasMember(m.Members, sess.AccountID) {
		return nil, ErrNotMember
	}
	return m, nil
}

func (s *MemoryService) List(ctx context.Context, sess domain.Session) ([]domain.Memory, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	memories, err := s.repos.Memories(s.store).ListByMember(ctx, sess.AccountID)
	if err != nil {
		return nil, storeErr("listing memories", err)
	}
	return memories, nil
}

func (s *MemoryService) Subscribe(ctx context.Context, sess domain.Session) (*livesync.Subscription[domain.Memory], error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	return livesync.Subscribe(ctx, s.store, document.MemoriesQuery(sess.AccountID), document.ProjectMemory)
}
