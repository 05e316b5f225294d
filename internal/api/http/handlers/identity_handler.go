package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-desk/internal/api/dto"
	"github.com/spec-kit/ticket-desk/internal/domain"
	"github.com/spec-kit/ticket-desk/internal/service"
	"github.com/spec-kit/ticket-desk/internal/translate"
)

// IdentityHandler lists the directory and switches the active identity.
type IdentityHandler struct {
	identities *service.IdentityService
}

// NewIdentityHandler constructs handler.
func NewIdentityHandler(identities *service.IdentityService) *IdentityHandler {
	return &IdentityHandler{identities: identities}
}

// List GET /api/identities.
func (h *IdentityHandler) List(c *fiber.Ctx) error {
	active := h.identities.Active()
	people := h.identities.Directory()
	items := make([]dto.IdentityResponse, 0, len(people))
	for _, who := range people {
		items = append(items, h.identityResponse(who, active))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Active GET /api/identity. It reflects IdentityHeader when present.
func (h *IdentityHandler) Active(c *fiber.Ctx) error {
	who := caller(c).Identity
	if who.IsZero() {
		who = h.identities.Active()
	}
	return c.JSON(fiber.Map{"data": h.identityResponse(who, h.identities.Active())})
}

// Select PUT /api/identity.
func (h *IdentityHandler) Select(c *fiber.Ctx) error {
	var req dto.SelectIdentityRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	who, err := h.identities.Select(c.UserContext(), req.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": h.identityResponse(who, who)})
}

func (h *IdentityHandler) identityResponse(who, active domain.Identity) dto.IdentityResponse {
	return dto.IdentityResponse{
		ID:         who.ID,
		Name:       who.Name,
		Avatar:     translate.Initials(who.Name),
		Color:      translate.Color(who.Name),
		Privileged: who.ID == h.identities.PrivilegedID(),
		Active:     who.ID == active.ID,
	}
}
