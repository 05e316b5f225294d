package handlers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-desk/internal/auth"
	"github.com/spec-kit/ticket-desk/internal/domain"
	"github.com/spec-kit/ticket-desk/pkg/util"
)

func caller(c *fiber.Ctx) auth.Principal {
	if principal, ok := auth.PrincipalFromContext(c); ok {
		return *principal
	}
	return auth.Principal{}
}

// agentOrCaller returns agentID, or the caller's identity id when empty.
func agentOrCaller(c *fiber.Ctx, agentID string) string {
	if agentID = strings.TrimSpace(agentID); agentID != "" {
		return agentID
	}
	return caller(c).Identity.ID
}

func parseBody(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}
	return nil
}

func queryInt(c *fiber.Ctx, key string, fallback int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, util.NewValidationError("invalid "+key, map[string]any{key: raw})
	}
	return n, nil
}

func parseStatuses(raw string) []domain.Status {
	if raw == "" {
		return nil
	}
	var out []domain.Status
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, domain.Status(strings.ToLower(part)))
		}
	}
	return out
}
