package auth

import (
	"errors"
	"net/http"

	"github.com/spec-kit/catalog-service/pkg/util/errorutil"
)

// Client-facing failures. Messages are deliberately generic so that responses
// never reveal whether a username exists.
var (
	ErrInvalidCredentials = errorutil.NewDomainError("INVALID_CREDENTIALS", "invalid username or password", http.StatusUnauthorized, nil)
	ErrUsernameTaken      = errorutil.NewDomainError("USERNAME_TAKEN", "username already exists", http.StatusConflict, nil)
	ErrUnauthenticated    = errorutil.NewDomainError("UNAUTHENTICATED", "authentication required", http.StatusUnauthorized, nil)
	ErrInsufficientRole   = errorutil.NewDomainError("FORBIDDEN", "forbidden", http.StatusForbidden, nil)
	ErrTooManyAttempts    = errorutil.NewDomainError("TOO_MANY_ATTEMPTS", "too many login attempts, try again later", http.StatusTooManyRequests, nil)
)

// Token verification failures. These are diagnostic only: the request gate
// collapses all of them into an unauthenticated request.
var (
	ErrTokenMalformed = errors.New("token malformed")
	ErrTokenTampered  = errors.New("token signature mismatch")
	ErrTokenExpired   = errors.New("token expired")
)

// TokenFailureKind names a token failure for logs and metrics.
func TokenFailureKind(err error) string {
	switch {
	case errors.Is(err, ErrTokenExpired):
		return "expired"
	case errors.Is(err, ErrTokenTampered):
		return "tampered"
	case errors.Is(err, ErrTokenMalformed):
		return "malformed"
	default:
		return "unknown"
	}
}
