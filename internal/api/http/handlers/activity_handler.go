package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-desk/internal/service"
)

// ActivityHandler serves the recent ticket event feed.
type ActivityHandler struct {
	activity *service.ActivityService
}

// NewActivityHandler constructs handler.
func NewActivityHandler(activity *service.ActivityService) *ActivityHandler {
	return &ActivityHandler{activity: activity}
}

// Recent GET /api/activity.
func (h *ActivityHandler) Recent(c *fiber.Ctx) error {
	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		return err
	}
	items, err := h.activity.Recent(c.UserContext(), limit)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": items})
}
