package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-desk/internal/api/dto"
	"github.com/spec-kit/ticket-desk/internal/domain"
	"github.com/spec-kit/ticket-desk/internal/remote"
	"github.com/spec-kit/ticket-desk/internal/service"
	"github.com/spec-kit/ticket-desk/internal/translate"
	"github.com/spec-kit/ticket-desk/pkg/util"
)

const defaultAvailableLimit = 10

// DistributionHandler exposes the service's work distribution endpoints.
type DistributionHandler struct {
	mutations  *service.MutationService
	remote     remote.TicketService
	translator translate.Translator
	resolver   translate.Resolver
}

// DistributionDependencies bundles collaborators for DistributionHandler.
type DistributionDependencies struct {
	Mutations  *service.MutationService
	Remote     remote.TicketService
	Translator translate.Translator
	Resolver   translate.Resolver
}

// NewDistributionHandler constructs handler.
func NewDistributionHandler(deps DistributionDependencies) *DistributionHandler {
	return &DistributionHandler{
		mutations:  deps.Mutations,
		remote:     deps.Remote,
		translator: deps.Translator,
		resolver:   deps.Resolver,
	}
}

// Claim POST /api/distribution/claim.
func (h *DistributionHandler) Claim(c *fiber.Ctx) error {
	var req dto.ClaimTicketRequest
	if len(c.Body()) > 0 {
		if err := parseBody(c, &req); err != nil {
			return err
		}
	}
	t, err := h.mutations.Claim(c.UserContext(), service.ClaimInput{
		AgentID:             agentOrCaller(c, req.AgentID),
		PreferredCategories: req.PreferredCategories,
		MaxPriority:         domain.Priority(strings.ToLower(strings.TrimSpace(req.MaxPriority))),
	})
	if err != nil {
		return err
	}
	if t == nil {
		return c.JSON(fiber.Map{"data": nil, "message": "no tickets available"})
	}
	return c.JSON(fiber.Map{"data": t})
}

// Available GET /api/distribution/available.
func (h *DistributionHandler) Available(c *fiber.Ctx) error {
	limit, err := queryInt(c, "limit", defaultAvailableLimit)
	if err != nil {
		return err
	}
	q := dto.AvailableQuery{Limit: limit, Category: c.Query("category")}
	if raw := c.Query("priority"); raw != "" {
		p := domain.Priority(strings.ToLower(raw))
		if !p.Valid() {
			return util.NewValidationError("unknown priority", map[string]any{"priority": raw})
		}
		q.Priority = translate.ToBackendPriority(p)
	}
	resp, err := h.remote.Available(c.UserContext(), q)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": h.translator.Tickets(resp.Tickets, h.resolver), "count": resp.Count})
}

// MyTickets GET /api/distribution/my-tickets.
func (h *DistributionHandler) MyTickets(c *fiber.Ctx) error {
	agentID := agentOrCaller(c, c.Query("agentId"))
	if agentID == "" {
		return util.NewValidationError("agentId is required", nil)
	}
	resp, err := h.remote.MyTickets(c.UserContext(), agentID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data":    h.translator.Tickets(resp.Tickets, h.resolver),
		"agentId": resp.AgentID,
		"count":   resp.Count,
	})
}

// AgentStats GET /api/distribution/agent-stats/:agentID.
func (h *DistributionHandler) AgentStats(c *fiber.Ctx) error {
	resp, err := h.remote.AgentStats(c.UserContext(), c.Params("agentID"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": resp})
}
