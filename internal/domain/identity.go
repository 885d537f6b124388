package domain

// Identity is the authenticated caller for the duration of one request or one
// login response. It is never persisted.
type Identity struct {
	Username string
	Role     Role
}
