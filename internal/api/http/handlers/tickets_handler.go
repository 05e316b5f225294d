package handlers

import (
	"net/http"
	"slices"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-desk/internal/api/dto"
	"github.com/spec-kit/ticket-desk/internal/cache"
	"github.com/spec-kit/ticket-desk/internal/domain"
	"github.com/spec-kit/ticket-desk/internal/projection"
	"github.com/spec-kit/ticket-desk/internal/service"
	"github.com/spec-kit/ticket-desk/pkg/util"
)

// TicketsHandler manages ticket reads and edits.
type TicketsHandler struct {
	mutations *service.MutationService
	snapshots *service.SnapshotService
	live      *projection.LiveView
	cache     *cache.Store
}

// TicketsDependencies bundles collaborators for TicketsHandler.
type TicketsDependencies struct {
	Mutations *service.MutationService
	Snapshots *service.SnapshotService
	Live      *projection.LiveView
	Cache     *cache.Store
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(deps TicketsDependencies) *TicketsHandler {
	return &TicketsHandler{
		mutations: deps.Mutations,
		snapshots: deps.Snapshots,
		live:      deps.Live,
		cache:     deps.Cache,
	}
}

// ListTickets GET /api/tickets. Only tickets the caller may see are listed.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	view := viewFor(c, h.live)
	statuses := parseStatuses(c.Query("status"))
	items := make([]domain.Ticket, 0, len(view.Tickets))
	for _, t := range view.Tickets {
		if len(statuses) > 0 && !slices.Contains(statuses, t.Status) {
			continue
		}
		items = append(items, t)
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetTicket GET /api/tickets/:id. refresh=true re-reads it from the service first.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	id := c.Params("id")
	if c.QueryBool("refresh") {
		if err := h.snapshots.Refresh(c.UserContext(), id); err != nil {
			return err
		}
	}
	return h.respondTicket(c, id)
}

// CreateTicket POST /api/tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	var req dto.CreateTicketRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	resp, err := h.mutations.Create(c.UserContext(), service.CreateInput{
		Title:       req.Title,
		Description: req.Description,
		Priority:    domain.Priority(strings.ToLower(strings.TrimSpace(req.Priority))),
		Labels:      req.Labels,
		Category:    req.Category,
		Source:      req.Source,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": resp})
}

// UpdateTicket PATCH /api/tickets/:id. Fields are applied one mutation at a
// time; the first failure stops the rest.
func (h *TicketsHandler) UpdateTicket(c *fiber.Ctx) error {
	var req dto.UpdateTicketRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.Empty() {
		return util.NewValidationError("no fields to update", nil)
	}

	ctx := c.UserContext()
	id := c.Params("id")
	if req.Title != nil {
		if err := h.mutations.EditTitle(ctx, id, *req.Title); err != nil {
			return err
		}
	}
	if req.Description != nil {
		if err := h.mutations.EditDescription(ctx, id, *req.Description); err != nil {
			return err
		}
	}
	if req.Priority != nil {
		if err := h.mutations.ChangePriority(ctx, id, domain.Priority(strings.ToLower(*req.Priority))); err != nil {
			return err
		}
	}
	if req.Status != nil {
		if err := h.mutations.ChangeStatus(ctx, id, domain.Status(strings.ToLower(*req.Status))); err != nil {
			return err
		}
	}
	return h.respondTicket(c, id)
}

// DeleteTicket DELETE /api/tickets/:id.
func (h *TicketsHandler) DeleteTicket(c *fiber.Ctx) error {
	if err := h.mutations.Delete(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// AssignTicket POST /api/tickets/:id/assign.
func (h *TicketsHandler) AssignTicket(c *fiber.Ctx) error {
	var req dto.AssignTicketRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	id := c.Params("id")
	if err := h.mutations.Assign(c.UserContext(), id, agentOrCaller(c, req.AgentID), req.Reason); err != nil {
		return err
	}
	return h.respondTicket(c, id)
}

// ReleaseTicket POST /api/tickets/:id/release.
func (h *TicketsHandler) ReleaseTicket(c *fiber.Ctx) error {
	var req dto.ReleaseTicketRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	id := c.Params("id")
	if err := h.mutations.Release(c.UserContext(), id, agentOrCaller(c, req.AgentID), req.Retriage, req.Reason); err != nil {
		return err
	}
	return h.respondTicket(c, id)
}

// TransferTicket POST /api/tickets/:id/transfer.
func (h *TicketsHandler) TransferTicket(c *fiber.Ctx) error {
	var req dto.TransferTicketRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	id := c.Params("id")
	if err := h.mutations.Transfer(c.UserContext(), id, agentOrCaller(c, req.FromAgentID), req.ToAgentID, req.Reason); err != nil {
		return err
	}
	return h.respondTicket(c, id)
}

func (h *TicketsHandler) respondTicket(c *fiber.Ctx, id string) error {
	t, ok := h.cache.Get(id)
	if !ok {
		return util.NewNotFound("ticket", map[string]any{"ticket_id": id})
	}
	return c.JSON(fiber.Map{"data": t})
}
