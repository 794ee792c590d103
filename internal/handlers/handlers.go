// Package handlers exposes the services over HTTP. Routes and response
// envelopes follow the site's public API: admin-only mutation of concerts
// and photos, authenticated comments and likes, public reads.
package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"concert-media/internal/apperr"
	"concert-media/internal/auth"
	"concert-media/internal/comments"
	"concert-media/internal/concerts"
	"concert-media/internal/likes"
	"concert-media/internal/photos"
)

type Handler struct {
	verifier *auth.JWTVerifier
	concerts *concerts.Service
	photos   *photos.Service
	comments *comments.Service
	likes    *likes.Guard
	log      *zap.SugaredLogger
}

func NewHandler(v *auth.JWTVerifier, cs *concerts.Service, ps *photos.Service, cm *comments.Service, lg *likes.Guard, log *zap.SugaredLogger) *Handler {
	return &Handler{verifier: v, concerts: cs, photos: ps, comments: cm, likes: lg, log: log}
}

func (h *Handler) Register(app *fiber.App) {
	api := app.Group("/api")

	api.Get("/concerts", h.ListConcerts)
	api.Get("/concerts/:concertId", h.GetConcert)
	api.Post("/concerts", h.requireAdmin, h.CreateConcert)
	api.Put("/concerts/:concertId", h.requireAdmin, h.UpdateConcert)
	api.Delete("/concerts/:concertId", h.requireAdmin, h.DeleteConcert)

	api.Get("/photos/concert/:concertId", h.ListPhotos)
	api.Post("/photos/concert/:concertId", h.requireAdmin, h.UploadPhoto)
	api.Delete("/photos/:photoId", h.requireAdmin, h.DeletePhoto)

	api.Get("/comments/photo/:photoId", h.ListComments)
	api.Post("/comments/photo/:photoId", h.requireAuth, h.AddComment)
	api.Put("/comments/:commentId", h.requireAuth, h.UpdateComment)
	api.Delete("/comments/:commentId", h.requireAuth, h.DeleteComment)

	api.Post("/likes/photo/:photoId", h.requireAuth, h.LikePhoto)
	api.Delete("/likes/photo/:photoId", h.requireAuth, h.UnlikePhoto)
	api.Get("/likes/photo/:photoId", h.requireAuth, h.GetLikeStatus)

	app.Get("/healthz", func(c *fiber.Ctx) error { return c.SendString("ok") })
}

const identityKey = "identity"

func (h *Handler) authenticate(c *fiber.Ctx) (*auth.Identity, error) {
	token := c.Get("Authorization")
	if token == "" {
		return nil, apperr.New(apperr.Unauthorized, "no token provided")
	}
	token = strings.TrimPrefix(token, "Bearer ")
	id, err := h.verifier.VerifyToken(token)
	if err != nil {
		return nil, apperr.New(apperr.Unauthorized, "invalid token")
	}
	return id, nil
}

func (h *Handler) requireAuth(c *fiber.Ctx) error {
	id, err := h.authenticate(c)
	if err != nil {
		return h.respondErr(c, err)
	}
	c.Locals(identityKey, id)
	return c.Next()
}

func (h *Handler) requireAdmin(c *fiber.Ctx) error {
	id, err := h.authenticate(c)
	if err != nil {
		return h.respondErr(c, err)
	}
	if !id.Admin {
		return jsonError(c, fiber.StatusForbidden, "admin access required")
	}
	c.Locals(identityKey, id)
	return c.Next()
}

func identity(c *fiber.Ctx) *auth.Identity {
	id, _ := c.Locals(identityKey).(*auth.Identity)
	return id
}

func jsonSuccess(c *fiber.Ctx, status int, payload any) error {
	return c.Status(status).JSON(fiber.Map{"status": "ok", "data": payload})
}

func jsonError(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{"status": "error", "message": msg})
}

// respondErr maps the error taxonomy onto HTTP statuses. Internal failure
// detail is logged, never echoed to the client.
func (h *Handler) respondErr(c *fiber.Ctx, err error) error {
	var e *apperr.Error
	if !errors.As(err, &e) {
		h.log.Errorw("request failed", "path", c.Path(), "err", err)
		return jsonError(c, fiber.StatusInternalServerError, "internal error")
	}
	switch e.Kind {
	case apperr.Validation, apperr.ThumbnailFailed:
		return jsonError(c, fiber.StatusBadRequest, e.Message)
	case apperr.NotFound:
		return jsonError(c, fiber.StatusNotFound, e.Message)
	case apperr.Conflict:
		return jsonError(c, fiber.StatusConflict, e.Message)
	case apperr.Unauthorized:
		return jsonError(c, fiber.StatusUnauthorized, e.Message)
	case apperr.Forbidden:
		return jsonError(c, fiber.StatusForbidden, e.Message)
	default:
		h.log.Errorw("request failed", "path", c.Path(), "err", err)
		return jsonError(c, fiber.StatusInternalServerError, "internal error")
	}
}
