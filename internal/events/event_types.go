package events

import (
	"time"

	"github.com/spec-kit/catalog-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventUserRegistered EventType = "user_registered"
	EventLoginSucceeded EventType = "login_succeeded"
	EventLoginFailed    EventType = "login_failed"
	EventLoginThrottled EventType = "login_throttled"
	EventBookCreated    EventType = "book_created"
	EventBookUpdated    EventType = "book_updated"
	EventBookDeleted    EventType = "book_deleted"
)

// Actor identifies who triggered an event. Username is empty for anonymous
// callers.
type Actor struct {
	Username string      `json:"username,omitempty"`
	Role     domain.Role `json:"role,omitempty"`
}

// ActorFrom builds an Actor from an identity, which may be nil.
func ActorFrom(identity *domain.Identity) Actor {
	if identity == nil {
		return Actor{}
	}
	return Actor{Username: identity.Username, Role: identity.Role}
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Resource  string      `json:"resource"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// UserRegisteredPayload payload.
type UserRegisteredPayload struct {
	Role domain.Role `json:"role"`
}

// LoginFailedPayload payload. Reason is for operators only and is never sent
// to the client.
type LoginFailedPayload struct {
	Reason string `json:"reason"`
}

// BookChangedPayload payload.
type BookChangedPayload struct {
	ISBN  string `json:"isbn,omitempty"`
	Title string `json:"title,omitempty"`
}
