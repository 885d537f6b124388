package auth

import "github.com/spec-kit/catalog-service/internal/domain"

// Reason explains an authorization decision.
type Reason string

const (
	ReasonGranted          Reason = "granted"
	ReasonUnauthenticated  Reason = "unauthenticated"
	ReasonInsufficientRole Reason = "insufficient_role"
)

// Decision is the outcome of Authorize.
type Decision struct {
	Allowed bool
	Reason  Reason
}

// Err returns the client-facing error for a denied decision, or nil.
func (d Decision) Err() error {
	switch d.Reason {
	case ReasonGranted:
		return nil
	case ReasonInsufficientRole:
		return ErrInsufficientRole
	default:
		return ErrUnauthenticated
	}
}

// Authorize decides whether identity may perform an operation that requires
// the given role. A nil identity is never allowed.
func Authorize(identity *domain.Identity, required domain.Role) Decision {
	if identity == nil {
		return Decision{Allowed: false, Reason: ReasonUnauthenticated}
	}
	if !identity.Role.Satisfies(required) {
		return Decision{Allowed: false, Reason: ReasonInsufficientRole}
	}
	return Decision{Allowed: true, Reason: ReasonGranted}
}
