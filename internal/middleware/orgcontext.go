package middleware

import (
	"errors"

	"farmetrics-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const orgIDHeader = "X-Organization-Id"
const orgIDLocal = "org_id"
const actorIDHeader = "X-User-Id"
const actorIDLocal = "actor_id"

// ErrNoOrganization is returned by OrgID when no tenant is on the request.
var ErrNoOrganization = errors.New("Organization not resolved for request")

// OrgContext reads the tenant and acting-user identity resolved by the
// upstream auth gateway into Locals. Identity management is a collaborator
// concern; this core only consumes the references.
func OrgContext() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if id, err := uuid.Parse(c.Get(orgIDHeader)); err == nil {
			c.Locals(orgIDLocal, id)
		}
		if id, err := uuid.Parse(c.Get(actorIDHeader)); err == nil {
			c.Locals(actorIDLocal, id)
		}
		return c.Next()
	}
}

// RequireOrg rejects requests that arrived without a resolved organization.
func RequireOrg() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := c.Locals(orgIDLocal).(uuid.UUID); !ok {
			return response.Error(c, ErrNoOrganization.Error(), 403, nil)
		}
		return c.Next()
	}
}

// OrgID returns the request's organization id from Locals.
func OrgID(c *fiber.Ctx) (uuid.UUID, error) {
	if id, ok := c.Locals(orgIDLocal).(uuid.UUID); ok {
		return id, nil
	}
	return uuid.Nil, ErrNoOrganization
}

// ActorID returns the acting user's id, if present (audit "changed_by").
func ActorID(c *fiber.Ctx) *uuid.UUID {
	if id, ok := c.Locals(actorIDLocal).(uuid.UUID); ok {
		return &id
	}
	return nil
}
