package domain

import "time"

// Credential is a stored login: a unique username, its password hash and the
// role it was created with.
type Credential struct {
	ID           string
	Username     string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
}

// Identity returns the ephemeral identity carried by this credential.
func (c *Credential) Identity() *Identity {
	return &Identity{Username: c.Username, Role: c.Role}
}
