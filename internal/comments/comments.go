// Package comments implements photo comment CRUD with counter maintenance
// through the ledger.
package comments

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"concert-media/internal/apperr"
	"concert-media/internal/docstore"
	"concert-media/internal/ledger"
	"concert-media/internal/models"
)

type Service struct {
	store     docstore.Store
	ledger    *ledger.Ledger
	log       *zap.SugaredLogger
	opTimeout time.Duration
}

func NewService(store docstore.Store, led *ledger.Ledger, log *zap.SugaredLogger, opTimeout time.Duration) *Service {
	if opTimeout <= 0 {
		opTimeout = 10 * time.Second
	}
	return &Service{store: store, ledger: led, log: log, opTimeout: opTimeout}
}

func (s *Service) Add(ctx context.Context, photoID, userID, userName, content string) (*models.Comment, error) {
	if content == "" {
		return nil, apperr.New(apperr.Validation, "comment content is required")
	}
	if err := s.requirePhoto(ctx, photoID); err != nil {
		return nil, err
	}

	comment := &models.Comment{
		ID:        uuid.NewString(),
		PhotoID:   photoID,
		UserID:    userID,
		UserName:  userName,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	opCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	err := s.store.Create(opCtx, models.CommentsCollection, comment.ID, comment.Doc())
	cancel()
	if err != nil {
		return nil, apperr.Wrap(apperr.PersistenceFailure, "comment insert failed", err)
	}

	if err := s.ledger.Increment(ctx, models.PhotosCollection, photoID, models.FieldCommentsCount, 1); err != nil {
		cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opTimeout)
		if derr := s.store.Delete(cleanupCtx, models.CommentsCollection, comment.ID); derr != nil && !errors.Is(derr, docstore.ErrNotFound) {
			s.log.Warnw("comment rollback failed", "comment", comment.ID, "err", derr)
		}
		cancel()
		return nil, err
	}
	return comment, nil
}

// List returns comments for a photo, newest first, plus the photo's comment
// counter as the total.
func (s *Service) List(ctx context.Context, photoID string, limit, offset int) ([]*models.Comment, int64, error) {
	opCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	doc, err := s.store.Get(opCtx, models.PhotosCollection, photoID)
	cancel()
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, 0, apperr.New(apperr.NotFound, "photo not found")
	}
	if err != nil {
		return nil, 0, apperr.Wrap(apperr.PersistenceFailure, "photo lookup failed", err)
	}
	photo := models.PhotoFromDoc(doc.ID, doc.Data)

	opCtx, cancel = context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	docs, err := s.store.Query(opCtx, models.CommentsCollection, docstore.Query{
		Filters: []docstore.Filter{{Field: "photo_id", Value: photoID}},
		OrderBy: "created_at",
		Desc:    true,
		Limit:   limit,
		Offset:  offset,
	})
	if err != nil {
		return nil, 0, apperr.Wrap(apperr.PersistenceFailure, "comment query failed", err)
	}
	out := make([]*models.Comment, 0, len(docs))
	for _, d := range docs {
		out = append(out, models.CommentFromDoc(d.ID, d.Data))
	}
	return out, photo.CommentsCount, nil
}

// Update replaces the content of the caller's own comment.
func (s *Service) Update(ctx context.Context, commentID, userID, content string) error {
	if content == "" {
		return apperr.New(apperr.Validation, "comment content is required")
	}
	comment, err := s.get(ctx, commentID)
	if err != nil {
		return err
	}
	if comment.UserID != userID {
		return apperr.New(apperr.Forbidden, "you can only update your own comments")
	}

	opCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	err = s.store.Update(opCtx, models.CommentsCollection, commentID, map[string]any{
		"content":    content,
		"updated_at": time.Now().UTC(),
	})
	if errors.Is(err, docstore.ErrNotFound) {
		return apperr.New(apperr.NotFound, "comment not found")
	}
	if err != nil {
		return apperr.Wrap(apperr.PersistenceFailure, "comment update failed", err)
	}
	return nil
}

// Delete removes a comment. Only the owner or an admin may delete it. The
// photo's counter is decremented when the photo still exists; a photo already
// removed by a cascade needs no bookkeeping.
func (s *Service) Delete(ctx context.Context, commentID, userID string, isAdmin bool) error {
	comment, err := s.get(ctx, commentID)
	if err != nil {
		return err
	}
	if comment.UserID != userID && !isAdmin {
		return apperr.New(apperr.Forbidden, "you can only delete your own comments")
	}

	opCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	err = s.store.Delete(opCtx, models.CommentsCollection, commentID)
	cancel()
	if errors.Is(err, docstore.ErrNotFound) {
		return apperr.New(apperr.NotFound, "comment not found")
	}
	if err != nil {
		return apperr.Wrap(apperr.PersistenceFailure, "comment delete failed", err)
	}

	err = s.ledger.Increment(ctx, models.PhotosCollection, comment.PhotoID, models.FieldCommentsCount, -1)
	if err != nil && !apperr.IsKind(err, apperr.NotFound) {
		return err
	}
	return nil
}

func (s *Service) get(ctx context.Context, commentID string) (*models.Comment, error) {
	opCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	doc, err := s.store.Get(opCtx, models.CommentsCollection, commentID)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, apperr.New(apperr.NotFound, "comment not found")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.PersistenceFailure, "comment lookup failed", err)
	}
	return models.CommentFromDoc(doc.ID, doc.Data), nil
}

func (s *Service) requirePhoto(ctx context.Context, photoID string) error {
	opCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	_, err := s.store.Get(opCtx, models.PhotosCollection, photoID)
	if errors.Is(err, docstore.ErrNotFound) {
		return apperr.New(apperr.NotFound, "photo not found")
	}
	if err != nil {
		return apperr.Wrap(apperr.PersistenceFailure, "photo lookup failed", err)
	}
	return nil
}
