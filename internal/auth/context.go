package auth

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/catalog-service/internal/domain"
)

type contextKey int

const identityKey contextKey = iota

// WithIdentity returns a context carrying identity. A nil identity marks the
// request as unauthenticated.
func WithIdentity(ctx context.Context, identity *domain.Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// IdentityFromContext returns the identity attached by the request gate, or
// nil for an unauthenticated request.
func IdentityFromContext(ctx context.Context) *domain.Identity {
	identity, _ := ctx.Value(identityKey).(*domain.Identity)
	return identity
}

// CurrentIdentity returns the caller resolved for this request, or nil.
func CurrentIdentity(c *fiber.Ctx) *domain.Identity {
	return IdentityFromContext(c.UserContext())
}
