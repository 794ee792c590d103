package handlers

import "github.com/gofiber/fiber/v2"

func (h *Handler) AddComment(c *fiber.Ctx) error {
	var req struct {
		Content string `json:"content"`
	}
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid request body")
	}
	id := identity(c)
	comment, err := h.comments.Add(c.Context(), c.Params("photoId"), id.UserID, id.Name, req.Content)
	if err != nil {
		return h.respondErr(c, err)
	}
	return jsonSuccess(c, fiber.StatusCreated, comment)
}

func (h *Handler) ListComments(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 20)
	offset := c.QueryInt("offset", 0)

	list, total, err := h.comments.List(c.Context(), c.Params("photoId"), limit, offset)
	if err != nil {
		return h.respondErr(c, err)
	}
	return jsonSuccess(c, fiber.StatusOK, fiber.Map{
		"comments":    list,
		"total_count": total,
	})
}

func (h *Handler) UpdateComment(c *fiber.Ctx) error {
	var req struct {
		Content string `json:"content"`
	}
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid request body")
	}
	err := h.comments.Update(c.Context(), c.Params("commentId"), identity(c).UserID, req.Content)
	if err != nil {
		return h.respondErr(c, err)
	}
	return jsonSuccess(c, fiber.StatusOK, fiber.Map{"message": "comment updated"})
}

func (h *Handler) DeleteComment(c *fiber.Ctx) error {
	id := identity(c)
	err := h.comments.Delete(c.Context(), c.Params("commentId"), id.UserID, id.Admin)
	if err != nil {
		return h.respondErr(c, err)
	}
	return jsonSuccess(c, fiber.StatusOK, fiber.Map{"message": "comment deleted"})
}

func (h *Handler) LikePhoto(c *fiber.Ctx) error {
	if err := h.likes.Add(c.Context(), c.Params("photoId"), identity(c).UserID); err != nil {
		return h.respondErr(c, err)
	}
	return jsonSuccess(c, fiber.StatusCreated, fiber.Map{"message": "photo liked"})
}

func (h *Handler) UnlikePhoto(c *fiber.Ctx) error {
	if err := h.likes.Remove(c.Context(), c.Params("photoId"), identity(c).UserID); err != nil {
		return h.respondErr(c, err)
	}
	return jsonSuccess(c, fiber.StatusOK, fiber.Map{"message": "photo unliked"})
}

func (h *Handler) GetLikeStatus(c *fiber.Ctx) error {
	hasLiked, err := h.likes.Has(c.Context(), c.Params("photoId"), identity(c).UserID)
	if err != nil {
		return h.respondErr(c, err)
	}
	return jsonSuccess(c, fiber.StatusOK, fiber.Map{"has_liked": hasLiked})
}
