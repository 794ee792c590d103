package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"concert-media/internal/concerts"
)

type concertRequest struct {
	Title       string `json:"title"`
	Date        string `json:"date"`
	Venue       string `json:"venue"`
	Description string `json:"description"`
}

func (h *Handler) CreateConcert(c *fiber.Ctx) error {
	var req concertRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid request body")
	}
	date, err := time.Parse(time.RFC3339, req.Date)
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "date must be RFC3339")
	}
	concert, err := h.concerts.Create(c.Context(), concerts.CreateParams{
		Title:       req.Title,
		Date:        date,
		Venue:       req.Venue,
		Description: req.Description,
		CreatedBy:   identity(c).UserID,
	})
	if err != nil {
		return h.respondErr(c, err)
	}
	return jsonSuccess(c, fiber.StatusCreated, concert)
}

func (h *Handler) ListConcerts(c *fiber.Ctx) error {
	list, err := h.concerts.List(c.Context())
	if err != nil {
		return h.respondErr(c, err)
	}
	return jsonSuccess(c, fiber.StatusOK, fiber.Map{"concerts": list})
}

func (h *Handler) GetConcert(c *fiber.Ctx) error {
	concert, err := h.concerts.Get(c.Context(), c.Params("concertId"))
	if err != nil {
		return h.respondErr(c, err)
	}
	return jsonSuccess(c, fiber.StatusOK, fiber.Map{"concert": concert})
}

func (h *Handler) UpdateConcert(c *fiber.Ctx) error {
	var req struct {
		Title       *string `json:"title"`
		Date        *string `json:"date"`
		Venue       *string `json:"venue"`
		Description *string `json:"description"`
	}
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid request body")
	}
	params := concerts.UpdateParams{
		Title:       req.Title,
		Venue:       req.Venue,
		Description: req.Description,
	}
	if req.Date != nil {
		date, err := time.Parse(time.RFC3339, *req.Date)
		if err != nil {
			return jsonError(c, fiber.StatusBadRequest, "date must be RFC3339")
		}
		params.Date = &date
	}
	if err := h.concerts.Update(c.Context(), c.Params("concertId"), params); err != nil {
		return h.respondErr(c, err)
	}
	return jsonSuccess(c, fiber.StatusOK, fiber.Map{"message": "concert updated"})
}

func (h *Handler) DeleteConcert(c *fiber.Ctx) error {
	if err := h.concerts.Delete(c.Context(), c.Params("concertId")); err != nil {
		return h.respondErr(c, err)
	}
	return jsonSuccess(c, fiber.StatusOK, fiber.Map{"message": "concert and associated photos deleted"})
}
