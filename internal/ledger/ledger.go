// Package ledger maintains the denormalized aggregate counters and the
// parent/child row graph across the document store and the blob store. All
// counter writes in the system go through Increment here; nothing else may
// read-modify-write a counter.
package ledger

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"concert-media/internal/apperr"
	"concert-media/internal/docstore"
	"concert-media/internal/models"
	"concert-media/internal/storage"
)

// cascadePageSize bounds each enumeration step of a concert cascade so large
// fan-outs are processed as a work list, not one unbounded sweep.
const cascadePageSize = 100

type Ledger struct {
	store     docstore.Store
	blobs     storage.BlobStore
	log       *zap.SugaredLogger
	opTimeout time.Duration
}

func New(store docstore.Store, blobs storage.BlobStore, log *zap.SugaredLogger, opTimeout time.Duration) *Ledger {
	if opTimeout <= 0 {
		opTimeout = 10 * time.Second
	}
	return &Ledger{store: store, blobs: blobs, log: log, opTimeout: opTimeout}
}

func (l *Ledger) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, l.opTimeout)
}

// Increment atomically adds delta to a counter field, clamped at zero by the
// store.
func (l *Ledger) Increment(ctx context.Context, collection, id, field string, delta int64) error {
	opCtx, cancel := l.opCtx(ctx)
	defer cancel()
	err := l.store.Increment(opCtx, collection, id, field, delta)
	if errors.Is(err, docstore.ErrNotFound) {
		return apperr.Newf(apperr.NotFound, "%s %s not found", collection, id)
	}
	if err != nil {
		return apperr.Wrap(apperr.PersistenceFailure, "counter increment failed", err)
	}
	return nil
}

// DeletePhoto removes a photo, all comments and likes referencing it and
// decrements the concert's photo counter, as one batch at the document level.
// Blob deletion afterwards is best-effort: a leaked blob is tolerable drift,
// an inconsistent row graph is not.
func (l *Ledger) DeletePhoto(ctx context.Context, photoID string) error {
	opCtx, cancel := l.opCtx(ctx)
	doc, err := l.store.Get(opCtx, models.PhotosCollection, photoID)
	cancel()
	if errors.Is(err, docstore.ErrNotFound) {
		return apperr.New(apperr.NotFound, "photo not found")
	}
	if err != nil {
		return apperr.Wrap(apperr.PersistenceFailure, "photo lookup failed", err)
	}
	photo := models.PhotoFromDoc(doc.ID, doc.Data)

	muts, err := l.childDeletions(ctx, photoID)
	if err != nil {
		return err
	}
	muts = append(muts, docstore.Mutation{
		Op:         docstore.OpDelete,
		Collection: models.PhotosCollection,
		ID:         photoID,
	})

	// The concert may already be gone when this runs inside a concurrent
	// cascade; only decrement a counter that still exists.
	opCtx, cancel = l.opCtx(ctx)
	_, err = l.store.Get(opCtx, models.ConcertsCollection, photo.ConcertID)
	cancel()
	switch {
	case err == nil:
		muts = append(muts, docstore.Mutation{
			Op:         docstore.OpIncrement,
			Collection: models.ConcertsCollection,
			ID:         photo.ConcertID,
			Field:      models.FieldPhotosCount,
			Delta:      -1,
		})
	case !errors.Is(err, docstore.ErrNotFound):
		return apperr.Wrap(apperr.PersistenceFailure, "concert lookup failed", err)
	}

	opCtx, cancel = l.opCtx(ctx)
	err = l.store.Batch(opCtx, muts)
	cancel()
	if err != nil {
		return apperr.Wrap(apperr.PersistenceFailure, "photo delete batch failed", err)
	}

	l.deleteBlobs(ctx, photo.FilePath, photo.ThumbPath)
	return nil
}

// childDeletions enumerates comment and like rows referencing the photo and
// returns delete mutations for each.
func (l *Ledger) childDeletions(ctx context.Context, photoID string) ([]docstore.Mutation, error) {
	var muts []docstore.Mutation
	for _, collection := range []string{models.CommentsCollection, models.LikesCollection} {
		opCtx, cancel := l.opCtx(ctx)
		docs, err := l.store.Query(opCtx, collection, docstore.Query{
			Filters: []docstore.Filter{{Field: "photo_id", Value: photoID}},
		})
		cancel()
		if err != nil {
			return nil, apperr.Wrap(apperr.PersistenceFailure, "child row enumeration failed", err)
		}
		for _, d := range docs {
			muts = append(muts, docstore.Mutation{
				Op:         docstore.OpDelete,
				Collection: collection,
				ID:         d.ID,
			})
		}
	}
	return muts, nil
}

// DeleteConcert deletes every photo under the concert (transitively removing
// their comments, likes and blobs) and then the concert itself. The photo set
// is drained page by page as an explicit work list.
func (l *Ledger) DeleteConcert(ctx context.Context, concertID string) error {
	opCtx, cancel := l.opCtx(ctx)
	_, err := l.store.Get(opCtx, models.ConcertsCollection, concertID)
	cancel()
	if errors.Is(err, docstore.ErrNotFound) {
		return apperr.New(apperr.NotFound, "concert not found")
	}
	if err != nil {
		return apperr.Wrap(apperr.PersistenceFailure, "concert lookup failed", err)
	}

	for {
		opCtx, cancel := l.opCtx(ctx)
		docs, err := l.store.Query(opCtx, models.PhotosCollection, docstore.Query{
			Filters: []docstore.Filter{{Field: "concert_id", Value: concertID}},
			Limit:   cascadePageSize,
		})
		cancel()
		if err != nil {
			return apperr.Wrap(apperr.PersistenceFailure, "photo enumeration failed", err)
		}
		if len(docs) == 0 {
			break
		}
		for _, d := range docs {
			err := l.DeletePhoto(ctx, d.ID)
			// A concurrent delete winning the race is fine.
			if err != nil && !apperr.IsKind(err, apperr.NotFound) {
				return err
			}
		}
	}

	opCtx, cancel = l.opCtx(ctx)
	err = l.store.Delete(opCtx, models.ConcertsCollection, concertID)
	cancel()
	if errors.Is(err, docstore.ErrNotFound) {
		return apperr.New(apperr.NotFound, "concert not found")
	}
	if err != nil {
		return apperr.Wrap(apperr.PersistenceFailure, "concert delete failed", err)
	}
	return nil
}

// deleteBlobs removes the photo's objects from the blob store. Failures are
// logged and swallowed; they never fail the metadata-level delete. Runs
// detached from the caller's cancellation so cleanup always completes.
func (l *Ledger) deleteBlobs(ctx context.Context, keys ...string) {
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.opTimeout)
	defer cancel()
	for _, key := range keys {
		if key == "" {
			continue
		}
		if err := l.blobs.Delete(cleanupCtx, key); err != nil {
			l.log.Warnw("blob delete failed, leaving orphaned object", "key", key, "err", err)
		}
	}
}
