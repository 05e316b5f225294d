// Package auth resolves which desk identity a request acts as.
package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-desk/internal/domain"
	"github.com/spec-kit/ticket-desk/pkg/util"
)

// IdentityHeader lets a request act as another directory identity without
// changing the desk's active one.
const IdentityHeader = "X-Desk-Identity"

const principalKey = "desk_principal"

// Principal is the identity a request acts as.
type Principal struct {
	Identity   domain.Identity
	Privileged bool
	// Override is true when the identity came from IdentityHeader.
	Override bool
}

// IdentitySource is the directory and active identity the middleware reads.
type IdentitySource interface {
	Active() domain.Identity
	Lookup(id string) (domain.Identity, bool)
	PrivilegedID() string
}

// IdentityMiddleware attaches a Principal to every request.
type IdentityMiddleware struct {
	identities IdentitySource
}

// NewIdentityMiddleware constructs middleware.
func NewIdentityMiddleware(identities IdentitySource) *IdentityMiddleware {
	return &IdentityMiddleware{identities: identities}
}

// Handle resolves IdentityHeader, falling back to the active identity.
func (m *IdentityMiddleware) Handle(c *fiber.Ctx) error {
	principal := &Principal{Identity: m.identities.Active()}

	if requested := strings.TrimSpace(c.Get(IdentityHeader)); requested != "" {
		who, ok := m.identities.Lookup(requested)
		if !ok {
			return util.NewValidationError("unknown identity", map[string]any{"identity": requested})
		}
		principal.Identity = who
		principal.Override = true
	}
	principal.Privileged = principal.Identity.ID != "" && principal.Identity.ID == m.identities.PrivilegedID()

	c.Locals(principalKey, principal)
	return c.Next()
}

// PrincipalFromContext retrieves the request's identity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}
