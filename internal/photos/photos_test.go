package photos

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/jpeg"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"concert-media/internal/apperr"
	"concert-media/internal/docstore"
	"concert-media/internal/ledger"
	"concert-media/internal/models"
	"concert-media/internal/storage"
	"concert-media/internal/thumbnail"
)

type fixture struct {
	svc   *Service
	store docstore.Store
	blobs *storage.MemoryBlobStore
}

func newFixture(t *testing.T, store docstore.Store, blobs storage.BlobStore) *Service {
	t.Helper()
	log := zap.NewNop().Sugar()
	led := ledger.New(store, blobs, log, time.Second)
	thumbs := thumbnail.NewGenerator(300, 300)
	return NewService(store, blobs, thumbs, led, log, 10<<20, time.Second)
}

func newTestService(t *testing.T) *fixture {
	t.Helper()
	store := docstore.NewMemoryStore()
	blobs := storage.NewMemoryBlobStore()
	return &fixture{svc: newFixture(t, store, blobs), store: store, blobs: blobs}
}

func seedConcert(t *testing.T, store docstore.Store, id string) {
	t.Helper()
	concert := &models.Concert{
		ID:        id,
		Title:     "Open Air",
		Date:      time.Date(2025, 8, 9, 20, 0, 0, 0, time.UTC),
		Venue:     "Stadtpark",
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.Set(context.Background(), models.ConcertsCollection, id, concert.Doc()))
}

func testJPEG(t *testing.T, width, height int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, width, height)), nil))
	return buf.Bytes()
}

func photosCount(t *testing.T, store docstore.Store, concertID string) int64 {
	t.Helper()
	doc, err := store.Get(context.Background(), models.ConcertsCollection, concertID)
	require.NoError(t, err)
	return models.ConcertFromDoc(doc.ID, doc.Data).PhotosCount
}

func uploadParams(data []byte) UploadParams {
	return UploadParams{
		ConcertID:   "c1",
		FileName:    "stage.jpg",
		ContentType: "image/jpeg",
		Data:        data,
		UploadedBy:  "admin-1",
	}
}

func TestUploadSuccess(t *testing.T) {
	f := newTestService(t)
	ctx := context.Background()
	seedConcert(t, f.store, "c1")

	res, err := f.svc.Upload(ctx, uploadParams(testJPEG(t, 2000, 1000)))
	require.NoError(t, err)
	assert.NotEmpty(t, res.PhotoID)
	assert.NotEmpty(t, res.URL)
	assert.NotEmpty(t, res.ThumbnailURL)

	photo, err := f.svc.Get(ctx, res.PhotoID)
	require.NoError(t, err)
	assert.Equal(t, "c1", photo.ConcertID)
	assert.Equal(t, "admin-1", photo.UploadedBy)

	// both blobs are durable before the document is visible
	assert.True(t, f.blobs.Has(photo.FilePath))
	assert.True(t, f.blobs.Has(photo.ThumbPath))

	// thumbnail is scaled into the box preserving aspect
	thumb, _, err := image.Decode(bytes.NewReader(f.blobs.Get(photo.ThumbPath)))
	require.NoError(t, err)
	assert.Equal(t, 300, thumb.Bounds().Dx())
	assert.Equal(t, 150, thumb.Bounds().Dy())

	assert.Equal(t, int64(1), photosCount(t, f.store, "c1"))
}

func TestUploadConcertNotFound(t *testing.T) {
	f := newTestService(t)

	_, err := f.svc.Upload(context.Background(), UploadParams{
		ConcertID:   "c-404",
		FileName:    "stage.jpg",
		ContentType: "image/jpeg",
		Data:        testJPEG(t, 100, 100),
	})
	assert.True(t, apperr.IsKind(err, apperr.NotFound))
	assert.Equal(t, 0, f.blobs.Len())
}

func TestUploadRejectsNonImage(t *testing.T) {
	f := newTestService(t)
	seedConcert(t, f.store, "c1")

	p := uploadParams([]byte("%PDF-1.4"))
	p.ContentType = "application/pdf"
	_, err := f.svc.Upload(context.Background(), p)
	assert.True(t, apperr.IsKind(err, apperr.Validation))
	assert.Equal(t, 0, f.blobs.Len())
}

func TestUploadRejectsOversize(t *testing.T) {
	store := docstore.NewMemoryStore()
	blobs := storage.NewMemoryBlobStore()
	log := zap.NewNop().Sugar()
	led := ledger.New(store, blobs, log, time.Second)
	svc := NewService(store, blobs, thumbnail.NewGenerator(300, 300), led, log, 64, time.Second)
	seedConcert(t, store, "c1")

	_, err := svc.Upload(context.Background(), uploadParams(testJPEG(t, 200, 200)))
	assert.True(t, apperr.IsKind(err, apperr.Validation))
	assert.Equal(t, 0, blobs.Len())
}

func TestUploadRejectsEmpty(t *testing.T) {
	f := newTestService(t)
	seedConcert(t, f.store, "c1")

	_, err := f.svc.Upload(context.Background(), uploadParams(nil))
	assert.True(t, apperr.IsKind(err, apperr.Validation))
}

func TestUploadBrokenImageLeavesNoSideEffects(t *testing.T) {
	f := newTestService(t)
	seedConcert(t, f.store, "c1")

	_, err := f.svc.Upload(context.Background(), uploadParams([]byte("not an image at all")))
	assert.True(t, apperr.IsKind(err, apperr.ThumbnailFailed))
	assert.Equal(t, 0, f.blobs.Len())
}

// thumbPutFails rejects puts of thumbnail keys so the original is already
// stored when the failure hits.
type thumbPutFails struct {
	*storage.MemoryBlobStore
}

func (b *thumbPutFails) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	if strings.Contains(key, "thumb_") {
		return "", errors.New("bucket unavailable")
	}
	return b.MemoryBlobStore.Put(ctx, key, contentType, data)
}

func TestUploadThumbWriteFailureCleansOriginal(t *testing.T) {
	store := docstore.NewMemoryStore()
	blobs := &thumbPutFails{storage.NewMemoryBlobStore()}
	svc := newFixture(t, store, blobs)
	seedConcert(t, store, "c1")

	_, err := svc.Upload(context.Background(), uploadParams(testJPEG(t, 400, 400)))
	assert.True(t, apperr.IsKind(err, apperr.StorageFailure))

	// no orphaned original blob
	assert.Equal(t, 0, blobs.Len())
	assert.Equal(t, int64(0), photosCount(t, store, "c1"))
}

// aclFails rejects every make-public call.
type aclFails struct {
	*storage.MemoryBlobStore
}

func (b *aclFails) MakePublic(ctx context.Context, key string) error {
	return errors.New("access denied")
}

func TestUploadMakePublicFailureCleansBothBlobs(t *testing.T) {
	store := docstore.NewMemoryStore()
	blobs := &aclFails{storage.NewMemoryBlobStore()}
	svc := newFixture(t, store, blobs)
	seedConcert(t, store, "c1")

	_, err := svc.Upload(context.Background(), uploadParams(testJPEG(t, 400, 400)))
	assert.True(t, apperr.IsKind(err, apperr.StorageFailure))
	assert.Equal(t, 0, blobs.Len())
	assert.Equal(t, int64(0), photosCount(t, store, "c1"))
}

// createFails rejects inserts into one collection.
type createFails struct {
	docstore.Store
	collection string
}

func (s *createFails) Create(ctx context.Context, collection, id string, data map[string]any) error {
	if collection == s.collection {
		return errors.New("write concern failed")
	}
	return s.Store.Create(ctx, collection, id, data)
}

func TestUploadMetadataFailureCleansBothBlobs(t *testing.T) {
	store := &createFails{Store: docstore.NewMemoryStore(), collection: models.PhotosCollection}
	blobs := storage.NewMemoryBlobStore()
	svc := newFixture(t, store, blobs)
	seedConcert(t, store, "c1")

	_, err := svc.Upload(context.Background(), uploadParams(testJPEG(t, 400, 400)))
	assert.True(t, apperr.IsKind(err, apperr.PersistenceFailure))

	assert.Equal(t, 0, blobs.Len())
	assert.Equal(t, int64(0), photosCount(t, store, "c1"))
}

// concertVanishes deletes the concert right after the photo document is
// inserted, simulating a concurrent cascade winning the race.
type concertVanishes struct {
	docstore.Store
	concertID string
}

func (s *concertVanishes) Create(ctx context.Context, collection, id string, data map[string]any) error {
	err := s.Store.Create(ctx, collection, id, data)
	if err == nil && collection == models.PhotosCollection {
		_ = s.Store.Delete(ctx, models.ConcertsCollection, s.concertID)
	}
	return err
}

func TestUploadConcertDeletedMidFlight(t *testing.T) {
	store := &concertVanishes{Store: docstore.NewMemoryStore(), concertID: "c1"}
	blobs := storage.NewMemoryBlobStore()
	svc := newFixture(t, store, blobs)
	seedConcert(t, store, "c1")

	_, err := svc.Upload(context.Background(), uploadParams(testJPEG(t, 400, 400)))
	assert.True(t, apperr.IsKind(err, apperr.NotFound))

	// neither a dangling photo document nor orphaned blobs remain
	docs, qerr := store.Query(context.Background(), models.PhotosCollection, docstore.Query{})
	require.NoError(t, qerr)
	assert.Empty(t, docs)
	assert.Equal(t, 0, blobs.Len())
}

func TestUploadIdempotencyTokenReusesPhoto(t *testing.T) {
	f := newTestService(t)
	ctx := context.Background()
	seedConcert(t, f.store, "c1")

	p := uploadParams(testJPEG(t, 800, 600))
	p.IdempotencyToken = "req-42"

	first, err := f.svc.Upload(ctx, p)
	require.NoError(t, err)
	second, err := f.svc.Upload(ctx, p)
	require.NoError(t, err)

	assert.Equal(t, first.PhotoID, second.PhotoID)
	assert.Equal(t, first.URL, second.URL)
	assert.Equal(t, int64(1), photosCount(t, f.store, "c1"))

	docs, err := f.store.Query(ctx, models.PhotosCollection, docstore.Query{})
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestUploadDistinctTokensCreateDistinctPhotos(t *testing.T) {
	f := newTestService(t)
	ctx := context.Background()
	seedConcert(t, f.store, "c1")

	for _, token := range []string{"req-1", "req-2"} {
		p := uploadParams(testJPEG(t, 400, 400))
		p.IdempotencyToken = token
		_, err := f.svc.Upload(ctx, p)
		require.NoError(t, err)
	}
	assert.Equal(t, int64(2), photosCount(t, f.store, "c1"))
}

func TestListForConcert(t *testing.T) {
	f := newTestService(t)
	ctx := context.Background()
	seedConcert(t, f.store, "c1")

	var ids []string
	for i := 0; i < 3; i++ {
		res, err := f.svc.Upload(ctx, uploadParams(testJPEG(t, 200, 200)))
		require.NoError(t, err)
		ids = append(ids, res.PhotoID)
		time.Sleep(2 * time.Millisecond)
	}

	list, total, err := f.svc.ListForConcert(ctx, "c1", 2, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, list, 2)
	// newest first
	assert.Equal(t, ids[2], list[0].ID)
	assert.Equal(t, ids[1], list[1].ID)
}

func TestListForConcertMissing(t *testing.T) {
	f := newTestService(t)
	_, _, err := f.svc.ListForConcert(context.Background(), "c-404", 10, 0)
	assert.True(t, apperr.IsKind(err, apperr.NotFound))
}

func TestDeleteDelegatesToLedger(t *testing.T) {
	f := newTestService(t)
	ctx := context.Background()
	seedConcert(t, f.store, "c1")

	res, err := f.svc.Upload(ctx, uploadParams(testJPEG(t, 200, 200)))
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, res.PhotoID))
	_, err = f.svc.Get(ctx, res.PhotoID)
	assert.True(t, apperr.IsKind(err, apperr.NotFound))
	assert.Equal(t, int64(0), photosCount(t, f.store, "c1"))
	assert.Equal(t, 0, f.blobs.Len())
}
