package handlers

import (
	"io"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"concert-media/internal/photos"
)

// UploadPhoto handles POST /api/photos/concert/:concertId with a multipart
// "photo" field. An optional Idempotency-Key header makes retries safe.
func (h *Handler) UploadPhoto(c *fiber.Ctx) error {
	concertID := c.Params("concertId")

	fileHeader, err := c.FormFile("photo")
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "no file provided")
	}
	f, err := fileHeader.Open()
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "cannot open uploaded file")
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "cannot read uploaded file")
	}

	ct := fileHeader.Header.Get("Content-Type")
	if ct == "" {
		ct = http.DetectContentType(data)
	}

	res, err := h.photos.Upload(c.Context(), photos.UploadParams{
		ConcertID:        concertID,
		FileName:         fileHeader.Filename,
		ContentType:      ct,
		Data:             data,
		UploadedBy:       identity(c).UserID,
		IdempotencyToken: c.Get("Idempotency-Key"),
	})
	if err != nil {
		return h.respondErr(c, err)
	}
	return jsonSuccess(c, fiber.StatusCreated, res)
}

// ListPhotos handles GET /api/photos/concert/:concertId.
func (h *Handler) ListPhotos(c *fiber.Ctx) error {
	concertID := c.Params("concertId")
	limit := c.QueryInt("limit", 20)
	offset := c.QueryInt("offset", 0)

	list, total, err := h.photos.ListForConcert(c.Context(), concertID, limit, offset)
	if err != nil {
		return h.respondErr(c, err)
	}
	return jsonSuccess(c, fiber.StatusOK, fiber.Map{
		"photos":      list,
		"total_count": total,
	})
}

// DeletePhoto handles DELETE /api/photos/:photoId.
func (h *Handler) DeletePhoto(c *fiber.Ctx) error {
	if err := h.photos.Delete(c.Context(), c.Params("photoId")); err != nil {
		return h.respondErr(c, err)
	}
	return jsonSuccess(c, fiber.StatusOK, fiber.Map{"message": "photo deleted"})
}
