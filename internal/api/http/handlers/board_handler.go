package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-desk/internal/api/dto"
	"github.com/spec-kit/ticket-desk/internal/cache"
	"github.com/spec-kit/ticket-desk/internal/projection"
	"github.com/spec-kit/ticket-desk/internal/realtime"
	"github.com/spec-kit/ticket-desk/internal/service"
)

// Connection reports push channel health.
type Connection interface {
	State() realtime.State
	ClientID() string
	// Retry restarts a channel that gave up reconnecting.
	Retry() bool
}

// BoardHandler serves the grouped board and sync state.
type BoardHandler struct {
	live       *projection.LiveView
	snapshots  *service.SnapshotService
	cache      *cache.Store
	connection Connection
}

// BoardDependencies bundles collaborators for BoardHandler.
type BoardDependencies struct {
	Live      *projection.LiveView
	Snapshots *service.SnapshotService
	Cache     *cache.Store
	// Connection is nil when the push channel is disabled.
	Connection Connection
}

// NewBoardHandler constructs handler.
func NewBoardHandler(deps BoardDependencies) *BoardHandler {
	return &BoardHandler{
		live:       deps.Live,
		snapshots:  deps.Snapshots,
		cache:      deps.Cache,
		connection: deps.Connection,
	}
}

// Board GET /api/board.
func (h *BoardHandler) Board(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": boardResponse(viewFor(c, h.live))})
}

// Reload POST /api/board/reload. A push channel that gave up is restarted
// as well.
func (h *BoardHandler) Reload(c *fiber.Ctx) error {
	if h.connection != nil {
		h.connection.Retry()
	}
	if err := h.snapshots.Reload(c.UserContext()); err != nil {
		if errors.Is(err, service.ErrSuperseded) {
			return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"data": h.syncResponse()})
		}
		return err
	}
	return c.JSON(fiber.Map{"data": h.syncResponse()})
}

// Sync GET /api/sync.
func (h *BoardHandler) Sync(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": h.syncResponse()})
}

func (h *BoardHandler) syncResponse() dto.SyncResponse {
	state := h.snapshots.State()
	resp := dto.SyncResponse{
		Loading:    state.Loading,
		Connection: "disabled",
		Tickets:    h.cache.Len(),
	}
	if state.LastError != nil {
		resp.LastError = state.LastError.Error()
	}
	if !state.LastSuccess.IsZero() {
		at := state.LastSuccess
		resp.LastSuccess = &at
	}
	if h.connection != nil {
		resp.Connection = string(h.connection.State())
		resp.ClientID = h.connection.ClientID()
	}
	return resp
}

// viewFor returns the live view, or a one-off projection when the request
// acts as another identity.
func viewFor(c *fiber.Ctx, live *projection.LiveView) projection.View {
	if principal := caller(c); principal.Override {
		return live.ViewFor(principal.Identity)
	}
	return live.View()
}

func boardResponse(v projection.View) dto.BoardResponse {
	resp := dto.BoardResponse{
		Identity:   v.Identity,
		Privileged: v.Privileged,
		Total:      len(v.Tickets),
		Columns:    make([]dto.BoardColumn, 0, len(v.Order)),
	}
	for _, status := range v.Order {
		group := v.Groups[status]
		resp.Columns = append(resp.Columns, dto.BoardColumn{Status: status, Count: len(group), Tickets: group})
	}
	return resp
}
