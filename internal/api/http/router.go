package http

import (
	nethttp "net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/ticket-desk/internal/api/http/handlers"
	"github.com/spec-kit/ticket-desk/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health       *handlers.HealthHandler
	Board        *handlers.BoardHandler
	Tickets      *handlers.TicketsHandler
	Distribution *handlers.DistributionHandler
	Identity     *handlers.IdentityHandler
	Activity     *handlers.ActivityHandler
	IdentityAuth *auth.IdentityMiddleware
	// Metrics serves /metrics when set.
	Metrics nethttp.Handler
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics))
	}

	api := app.Group("/api", cfg.IdentityAuth.Handle)

	api.Get("/board", cfg.Board.Board)
	api.Post("/board/reload", cfg.Board.Reload)
	api.Get("/sync", cfg.Board.Sync)

	tickets := api.Group("/tickets")
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Post("/", cfg.Tickets.CreateTicket)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Patch("/:id", cfg.Tickets.UpdateTicket)
	tickets.Delete("/:id", auth.RequirePrivileged(), cfg.Tickets.DeleteTicket)
	tickets.Post("/:id/assign", cfg.Tickets.AssignTicket)
	tickets.Post("/:id/release", cfg.Tickets.ReleaseTicket)
	tickets.Post("/:id/transfer", cfg.Tickets.TransferTicket)

	distribution := api.Group("/distribution")
	distribution.Post("/claim", cfg.Distribution.Claim)
	distribution.Get("/available", cfg.Distribution.Available)
	distribution.Get("/my-tickets", cfg.Distribution.MyTickets)
	distribution.Get("/agent-stats/:agentID", cfg.Distribution.AgentStats)

	api.Get("/identities", cfg.Identity.List)
	api.Get("/identity", cfg.Identity.Active)
	api.Put("/identity", cfg.Identity.Select)

	api.Get("/activity", cfg.Activity.Recent)
}
