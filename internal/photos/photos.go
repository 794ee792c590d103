// Package photos implements the photo upload pipeline and photo queries.
//
// Upload writes blobs first and metadata last, so any observer that can see
// a photo document is guaranteed both blobs already exist. There is no
// transaction spanning the blob store and the document store; every step
// that can fail after a prior write has an explicit compensating delete.
package photos

import (
	"context"
	"errors"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"concert-media/internal/apperr"
	"concert-media/internal/docstore"
	"concert-media/internal/ledger"
	"concert-media/internal/models"
	"concert-media/internal/storage"
	"concert-media/internal/thumbnail"
)

// keyNamespace seeds deterministic photo ids for idempotency tokens.
var keyNamespace = uuid.MustParse("8f6f52a2-6c73-4c2a-9f0e-2b9f6d1c4b7e")

type Service struct {
	store     docstore.Store
	blobs     storage.BlobStore
	thumbs    *thumbnail.Generator
	ledger    *ledger.Ledger
	log       *zap.SugaredLogger
	maxBytes  int64
	opTimeout time.Duration
}

func NewService(store docstore.Store, blobs storage.BlobStore, thumbs *thumbnail.Generator, led *ledger.Ledger, log *zap.SugaredLogger, maxBytes int64, opTimeout time.Duration) *Service {
	if maxBytes <= 0 {
		maxBytes = 10 << 20
	}
	if opTimeout <= 0 {
		opTimeout = 10 * time.Second
	}
	return &Service{
		store:     store,
		blobs:     blobs,
		thumbs:    thumbs,
		ledger:    led,
		log:       log,
		maxBytes:  maxBytes,
		opTimeout: opTimeout,
	}
}

type UploadParams struct {
	ConcertID   string
	FileName    string
	ContentType string
	Data        []byte
	UploadedBy  string
	// IdempotencyToken, when set, makes a retried upload reuse the same
	// photo id and storage keys instead of creating a duplicate.
	IdempotencyToken string
}

type UploadResult struct {
	PhotoID      string `json:"photo_id"`
	URL          string `json:"url"`
	ThumbnailURL string `json:"thumbnail_url"`
}

func (s *Service) Upload(ctx context.Context, p UploadParams) (*UploadResult, error) {
	if len(p.Data) == 0 {
		return nil, apperr.New(apperr.Validation, "no file provided")
	}
	if !strings.HasPrefix(p.ContentType, "image/") {
		return nil, apperr.New(apperr.Validation, "only image files are allowed")
	}
	if int64(len(p.Data)) > s.maxBytes {
		return nil, apperr.Newf(apperr.Validation, "file too large, maximum size is %d bytes", s.maxBytes)
	}

	if err := s.requireConcert(ctx, p.ConcertID); err != nil {
		return nil, err
	}

	photoID := uuid.NewString()
	if p.IdempotencyToken != "" {
		photoID = uuid.NewSHA1(keyNamespace, []byte(p.ConcertID+"\x00"+p.IdempotencyToken)).String()
		if res, ok, err := s.existing(ctx, photoID); err != nil {
			return nil, err
		} else if ok {
			return res, nil
		}
	}

	fileName := photoID + fileExt(p.FileName, p.ContentType)
	filePath := "concerts/" + p.ConcertID + "/" + fileName
	thumbPath := "concerts/" + p.ConcertID + "/thumb_" + fileName

	// Derive the thumbnail before touching either store; a broken image
	// must leave no side effects at all.
	thumbBytes, err := s.thumbs.Generate(p.Data)
	if err != nil {
		return nil, apperr.Wrap(apperr.ThumbnailFailed, "thumbnail generation failed", err)
	}

	url, err := s.putBlob(ctx, filePath, p.ContentType, p.Data)
	if err != nil {
		return nil, apperr.Wrap(apperr.StorageFailure, "photo upload failed", err)
	}
	thumbURL, err := s.putBlob(ctx, thumbPath, p.ContentType, thumbBytes)
	if err != nil {
		s.compensateBlobs(ctx, filePath)
		return nil, apperr.Wrap(apperr.StorageFailure, "thumbnail upload failed", err)
	}
	if err := s.makePublic(ctx, filePath, thumbPath); err != nil {
		s.compensateBlobs(ctx, filePath, thumbPath)
		return nil, apperr.Wrap(apperr.StorageFailure, "making photo public failed", err)
	}

	photo := &models.Photo{
		ID:           photoID,
		ConcertID:    p.ConcertID,
		FileName:     fileName,
		FilePath:     filePath,
		ThumbPath:    thumbPath,
		URL:          url,
		ThumbnailURL: thumbURL,
		ContentType:  p.ContentType,
		Size:         int64(len(p.Data)),
		UploadedBy:   p.UploadedBy,
		UploadedAt:   time.Now().UTC(),
	}
	opCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	err = s.store.Create(opCtx, models.PhotosCollection, photo.ID, photo.Doc())
	cancel()
	if errors.Is(err, docstore.ErrExists) {
		// Concurrent retry with the same token won the insert; its blobs
		// are ours (same keys), so just report the existing photo.
		if res, ok, eerr := s.existing(ctx, photoID); eerr == nil && ok {
			return res, nil
		}
		return &UploadResult{PhotoID: photoID, URL: url, ThumbnailURL: thumbURL}, nil
	}
	if err != nil {
		s.compensateBlobs(ctx, filePath, thumbPath)
		return nil, apperr.Wrap(apperr.PersistenceFailure, "photo metadata write failed", err)
	}

	err = s.ledger.Increment(ctx, models.ConcertsCollection, p.ConcertID, models.FieldPhotosCount, 1)
	if err != nil {
		// The concert vanished mid-upload, or the counter write failed.
		// Either way the photo must not stay visible.
		s.compensatePhoto(ctx, photo.ID)
		s.compensateBlobs(ctx, filePath, thumbPath)
		if apperr.IsKind(err, apperr.NotFound) {
			return nil, apperr.New(apperr.NotFound, "concert not found")
		}
		return nil, err
	}

	return &UploadResult{PhotoID: photo.ID, URL: url, ThumbnailURL: thumbURL}, nil
}

// Get returns a single photo.
func (s *Service) Get(ctx context.Context, photoID string) (*models.Photo, error) {
	opCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	doc, err := s.store.Get(opCtx, models.PhotosCollection, photoID)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, apperr.New(apperr.NotFound, "photo not found")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.PersistenceFailure, "photo lookup failed", err)
	}
	return models.PhotoFromDoc(doc.ID, doc.Data), nil
}

// ListForConcert returns a page of a concert's photos, newest first, plus the
// concert's photo counter as the total.
func (s *Service) ListForConcert(ctx context.Context, concertID string, limit, offset int) ([]*models.Photo, int64, error) {
	opCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	doc, err := s.store.Get(opCtx, models.ConcertsCollection, concertID)
	cancel()
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, 0, apperr.New(apperr.NotFound, "concert not found")
	}
	if err != nil {
		return nil, 0, apperr.Wrap(apperr.PersistenceFailure, "concert lookup failed", err)
	}
	concert := models.ConcertFromDoc(doc.ID, doc.Data)

	opCtx, cancel = context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	docs, err := s.store.Query(opCtx, models.PhotosCollection, docstore.Query{
		Filters: []docstore.Filter{{Field: "concert_id", Value: concertID}},
		OrderBy: "uploaded_at",
		Desc:    true,
		Limit:   limit,
		Offset:  offset,
	})
	if err != nil {
		return nil, 0, apperr.Wrap(apperr.PersistenceFailure, "photo query failed", err)
	}
	out := make([]*models.Photo, 0, len(docs))
	for _, d := range docs {
		out = append(out, models.PhotoFromDoc(d.ID, d.Data))
	}
	return out, concert.PhotosCount, nil
}

// Delete removes a photo and its children through the ledger.
func (s *Service) Delete(ctx context.Context, photoID string) error {
	return s.ledger.DeletePhoto(ctx, photoID)
}

func (s *Service) requireConcert(ctx context.Context, concertID string) error {
	opCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	_, err := s.store.Get(opCtx, models.ConcertsCollection, concertID)
	if errors.Is(err, docstore.ErrNotFound) {
		return apperr.New(apperr.NotFound, "concert not found")
	}
	if err != nil {
		return apperr.Wrap(apperr.PersistenceFailure, "concert lookup failed", err)
	}
	return nil
}

// existing reports a previously completed upload for a token-derived id.
func (s *Service) existing(ctx context.Context, photoID string) (*UploadResult, bool, error) {
	opCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	doc, err := s.store.Get(opCtx, models.PhotosCollection, photoID)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, apperr.Wrap(apperr.PersistenceFailure, "photo lookup failed", err)
	}
	photo := models.PhotoFromDoc(doc.ID, doc.Data)
	return &UploadResult{PhotoID: photo.ID, URL: photo.URL, ThumbnailURL: photo.ThumbnailURL}, true, nil
}

func (s *Service) putBlob(ctx context.Context, key, contentType string, data []byte) (string, error) {
	opCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	return s.blobs.Put(opCtx, key, contentType, data)
}

func (s *Service) makePublic(ctx context.Context, keys ...string) error {
	opCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	for _, key := range keys {
		if err := s.blobs.MakePublic(opCtx, key); err != nil {
			return err
		}
	}
	return nil
}

// compensateBlobs deletes blobs written by a failed upload. It runs detached
// from the caller's cancellation: cleanup is not itself cancellable.
func (s *Service) compensateBlobs(ctx context.Context, keys ...string) {
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opTimeout)
	defer cancel()
	for _, key := range keys {
		if err := s.blobs.Delete(cleanupCtx, key); err != nil {
			s.log.Errorw("orphaned blob left after failed upload", "key", key, "err", err)
		}
	}
}

func (s *Service) compensatePhoto(ctx context.Context, photoID string) {
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opTimeout)
	defer cancel()
	if err := s.store.Delete(cleanupCtx, models.PhotosCollection, photoID); err != nil && !errors.Is(err, docstore.ErrNotFound) {
		s.log.Errorw("dangling photo document left after failed upload", "photo", photoID, "err", err)
	}
}

// fileExt picks the storage key extension from the client file name, falling
// back to the content type.
func fileExt(fileName, contentType string) string {
	if ext := path.Ext(fileName); ext != "" {
		return strings.ToLower(ext)
	}
	switch contentType {
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}
