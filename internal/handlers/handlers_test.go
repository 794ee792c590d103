package handlers

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"image"
	"image/jpeg"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"concert-media/internal/auth"
	"concert-media/internal/comments"
	"concert-media/internal/concerts"
	"concert-media/internal/docstore"
	"concert-media/internal/ledger"
	"concert-media/internal/likes"
	"concert-media/internal/models"
	"concert-media/internal/photos"
	"concert-media/internal/storage"
	"concert-media/internal/thumbnail"
)

type testEnv struct {
	app    *fiber.App
	store  *docstore.MemoryStore
	blobs  *storage.MemoryBlobStore
	signer *rsa.PrivateKey
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	pubPath := filepath.Join(t.TempDir(), "jwt_public.pem")
	require.NoError(t, os.WriteFile(pubPath, pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER}), 0o600))
	verifier, err := auth.NewJWTVerifier(pubPath)
	require.NoError(t, err)

	store := docstore.NewMemoryStore()
	blobs := storage.NewMemoryBlobStore()
	log := zap.NewNop().Sugar()
	led := ledger.New(store, blobs, log, time.Second)
	thumbs := thumbnail.NewGenerator(300, 300)

	h := NewHandler(
		verifier,
		concerts.NewService(store, led, time.Second),
		photos.NewService(store, blobs, thumbs, led, log, 10<<20, time.Second),
		comments.NewService(store, led, log, time.Second),
		likes.NewGuard(store, led, log, time.Second),
		log,
	)
	app := fiber.New(fiber.Config{BodyLimit: 11 << 20})
	h.Register(app)

	return &testEnv{app: app, store: store, blobs: blobs, signer: key}
}

func (e *testEnv) token(t *testing.T, userID string, admin bool) string {
	t.Helper()
	claims := jwt.MapClaims{
		"user_id": userID,
		"name":    "Test User",
		"admin":   admin,
		"exp":     time.Now().Add(time.Hour).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(e.signer)
	require.NoError(t, err)
	return "Bearer " + signed
}

func (e *testEnv) seedConcert(t *testing.T, id string) {
	t.Helper()
	concert := &models.Concert{
		ID:        id,
		Title:     "Festival",
		Date:      time.Date(2025, 7, 12, 19, 0, 0, 0, time.UTC),
		Venue:     "Main Stage",
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, e.store.Set(context.Background(), models.ConcertsCollection, id, concert.Doc()))
}

func photoUploadRequest(t *testing.T, concertID string, imageData []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("photo", "stage.jpg")
	require.NoError(t, err)
	_, err = part.Write(imageData)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/photos/concert/"+concertID, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func testJPEG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 640, 480)), nil))
	return buf.Bytes()
}

func decodeBody(t *testing.T, res *http.Response) map[string]any {
	t.Helper()
	raw, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestUploadPhotoEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.seedConcert(t, "c1")

	req := photoUploadRequest(t, "c1", testJPEG(t))
	req.Header.Set("Authorization", env.token(t, "admin-1", true))

	res, err := env.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, res.StatusCode)

	body := decodeBody(t, res)
	data := body["data"].(map[string]any)
	assert.NotEmpty(t, data["photo_id"])
	assert.NotEmpty(t, data["url"])
	assert.NotEmpty(t, data["thumbnail_url"])
	assert.Equal(t, 2, env.blobs.Len())
}

func TestUploadPhotoRequiresAdmin(t *testing.T) {
	env := newTestEnv(t)
	env.seedConcert(t, "c1")

	req := photoUploadRequest(t, "c1", testJPEG(t))
	req.Header.Set("Authorization", env.token(t, "fan-1", false))

	res, err := env.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, res.StatusCode)
	assert.Equal(t, 0, env.blobs.Len())
}

func TestUploadPhotoRejectsAnonymous(t *testing.T) {
	env := newTestEnv(t)
	env.seedConcert(t, "c1")

	res, err := env.app.Test(photoUploadRequest(t, "c1", testJPEG(t)), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

func TestUploadPhotoConcertNotFound(t *testing.T) {
	env := newTestEnv(t)

	req := photoUploadRequest(t, "c-404", testJPEG(t))
	req.Header.Set("Authorization", env.token(t, "admin-1", true))

	res, err := env.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	assert.Equal(t, 0, env.blobs.Len())
}

func TestLikeTwiceReturnsConflict(t *testing.T) {
	env := newTestEnv(t)
	env.seedConcert(t, "c1")
	photo := &models.Photo{ID: "p1", ConcertID: "c1", UploadedAt: time.Now().UTC()}
	require.NoError(t, env.store.Set(context.Background(), models.PhotosCollection, "p1", photo.Doc()))

	token := env.token(t, "u1", false)
	for i, want := range []int{http.StatusCreated, http.StatusConflict} {
		req := httptest.NewRequest(http.MethodPost, "/api/likes/photo/p1", nil)
		req.Header.Set("Authorization", token)
		res, err := env.app.Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, want, res.StatusCode, "attempt %d", i+1)
	}

	doc, err := env.store.Get(context.Background(), models.PhotosCollection, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), models.PhotoFromDoc(doc.ID, doc.Data).LikesCount)
}

func TestDeletePhotoEndpointCascades(t *testing.T) {
	env := newTestEnv(t)
	env.seedConcert(t, "c1")

	upload := photoUploadRequest(t, "c1", testJPEG(t))
	upload.Header.Set("Authorization", env.token(t, "admin-1", true))
	res, err := env.app.Test(upload, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, res.StatusCode)
	photoID := decodeBody(t, res)["data"].(map[string]any)["photo_id"].(string)

	del := httptest.NewRequest(http.MethodDelete, "/api/photos/"+photoID, nil)
	del.Header.Set("Authorization", env.token(t, "admin-1", true))
	res, err = env.app.Test(del, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, 0, env.blobs.Len())

	// idempotent: deleting again is a plain not-found
	res, err = env.app.Test(del, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	res, err := env.app.Test(httptest.NewRequest(http.MethodGet, "/healthz", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
}
