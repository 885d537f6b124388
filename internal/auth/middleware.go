package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/thejerf/abtime"
	"go.uber.org/zap"

	"github.com/spec-kit/catalog-service/internal/domain"
	"github.com/spec-kit/catalog-service/internal/observability"
	"github.com/spec-kit/catalog-service/internal/repository"
)

const bearerScheme = "Bearer"

// AuthMiddleware is the request gate: it turns the Authorization header into
// an identity, or into no identity at all. It never rejects a request on its
// own; route guards decide what an unauthenticated caller may do.
type AuthMiddleware struct {
	tokens      *TokenCodec
	credentials repository.CredentialStore
	clock       abtime.AbstractTime
	logger      *zap.Logger
	metrics     *observability.Metrics
}

// MiddlewareDeps bundles collaborators of the request gate.
type MiddlewareDeps struct {
	Tokens      *TokenCodec
	Credentials repository.CredentialStore
	Clock       abtime.AbstractTime
	Logger      *zap.Logger
	Metrics     *observability.Metrics
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(deps MiddlewareDeps) *AuthMiddleware {
	clock := deps.Clock
	if clock == nil {
		clock = abtime.NewRealTime()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthMiddleware{
		tokens:      deps.Tokens,
		credentials: deps.Credentials,
		clock:       clock,
		logger:      logger,
		metrics:     deps.Metrics,
	}
}

// Handle resolves the caller and threads the result through the request's
// user context.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	identity, err := m.Resolve(c.UserContext(), c.Get(fiber.HeaderAuthorization))
	if err != nil {
		return err
	}
	c.SetUserContext(WithIdentity(c.UserContext(), identity))
	return c.Next()
}

// Resolve maps an Authorization header value to an identity. It returns
// (nil, nil) whenever the caller is unauthenticated; an error means the
// credential store could not be consulted.
func (m *AuthMiddleware) Resolve(ctx context.Context, header string) (*domain.Identity, error) {
	token, ok := bearerToken(header)
	if !ok {
		if header != "" {
			m.reject("bad_header", nil)
		}
		return nil, nil
	}

	claims, err := m.tokens.Verify(token, m.clock.Now())
	if err != nil {
		m.reject(TokenFailureKind(err), err)
		return nil, nil
	}

	cred, err := m.credentials.FindByUsername(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			m.logger.Info("token subject no longer exists",
				zap.String("subject", claims.Subject),
				zap.String("token_id", claims.ID))
			m.metrics.RecordAuthFailure("unknown_subject")
			return nil, nil
		}
		return nil, err
	}
	return cred.Identity(), nil
}

func (m *AuthMiddleware) reject(kind string, err error) {
	m.metrics.RecordAuthFailure(kind)
	fields := []zap.Field{zap.String("reason", kind)}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	m.logger.Info("bearer token rejected", fields...)
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, bearerScheme) {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// Require guards a route with a minimum role.
func Require(role domain.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := Authorize(CurrentIdentity(c), role).Err(); err != nil {
			return err
		}
		return c.Next()
	}
}
