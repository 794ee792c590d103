// Package likes enforces at-most-one-like-per-user-per-photo.
//
// The like document id is derived from the (photo, user) pair and inserted
// with an insert-if-absent, so uniqueness is enforced by the store itself
// rather than by a racy check-then-insert.
package likes

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"concert-media/internal/apperr"
	"concert-media/internal/docstore"
	"concert-media/internal/ledger"
	"concert-media/internal/models"
)

type Guard struct {
	store     docstore.Store
	ledger    *ledger.Ledger
	log       *zap.SugaredLogger
	opTimeout time.Duration
}

func NewGuard(store docstore.Store, led *ledger.Ledger, log *zap.SugaredLogger, opTimeout time.Duration) *Guard {
	if opTimeout <= 0 {
		opTimeout = 10 * time.Second
	}
	return &Guard{store: store, ledger: led, log: log, opTimeout: opTimeout}
}

// LikeID is the deterministic document id for a (photo, user) pair.
func LikeID(photoID, userID string) string {
	return photoID + ":" + userID
}

func (g *Guard) Add(ctx context.Context, photoID, userID string) error {
	if err := g.requirePhoto(ctx, photoID); err != nil {
		return err
	}

	like := &models.Like{
		ID:        LikeID(photoID, userID),
		PhotoID:   photoID,
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
	}
	opCtx, cancel := context.WithTimeout(ctx, g.opTimeout)
	err := g.store.Create(opCtx, models.LikesCollection, like.ID, like.Doc())
	cancel()
	if errors.Is(err, docstore.ErrExists) {
		return apperr.New(apperr.Conflict, "you already liked this photo")
	}
	if err != nil {
		return apperr.Wrap(apperr.PersistenceFailure, "like insert failed", err)
	}

	if err := g.ledger.Increment(ctx, models.PhotosCollection, photoID, models.FieldLikesCount, 1); err != nil {
		// Photo vanished between insert and increment; take the like row
		// back out so no child row outlives its photo.
		cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.opTimeout)
		if derr := g.store.Delete(cleanupCtx, models.LikesCollection, like.ID); derr != nil && !errors.Is(derr, docstore.ErrNotFound) {
			g.log.Warnw("like rollback failed", "like", like.ID, "err", derr)
		}
		cancel()
		return err
	}
	return nil
}

func (g *Guard) Remove(ctx context.Context, photoID, userID string) error {
	if err := g.requirePhoto(ctx, photoID); err != nil {
		return err
	}

	opCtx, cancel := context.WithTimeout(ctx, g.opTimeout)
	err := g.store.Delete(opCtx, models.LikesCollection, LikeID(photoID, userID))
	cancel()
	if errors.Is(err, docstore.ErrNotFound) {
		return apperr.New(apperr.NotFound, "you have not liked this photo")
	}
	if err != nil {
		return apperr.Wrap(apperr.PersistenceFailure, "like delete failed", err)
	}

	return g.ledger.Increment(ctx, models.PhotosCollection, photoID, models.FieldLikesCount, -1)
}

// Has reports whether the user has liked the photo.
func (g *Guard) Has(ctx context.Context, photoID, userID string) (bool, error) {
	if err := g.requirePhoto(ctx, photoID); err != nil {
		return false, err
	}
	opCtx, cancel := context.WithTimeout(ctx, g.opTimeout)
	defer cancel()
	_, err := g.store.Get(opCtx, models.LikesCollection, LikeID(photoID, userID))
	if errors.Is(err, docstore.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, apperr.Wrap(apperr.PersistenceFailure, "like lookup failed", err)
	}
	return true, nil
}

func (g *Guard) requirePhoto(ctx context.Context, photoID string) error {
	opCtx, cancel := context.WithTimeout(ctx, g.opTimeout)
	defer cancel()
	_, err := g.store.Get(opCtx, models.PhotosCollection, photoID)
	if errors.Is(err, docstore.ErrNotFound) {
		return apperr.New(apperr.NotFound, "photo not found")
	}
	if err != nil {
		return apperr.Wrap(apperr.PersistenceFailure, "photo lookup failed", err)
	}
	return nil
}
