package dto

import "time"

// RegisterRequest payload for new accounts. No role field is accepted.
type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Password string `json:"password" validate:"required,max_bytes=72"`
}

// LoginRequest payload for login.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse is returned on a successful login.
type LoginResponse struct {
	Token     string    `json:"token"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
}

// RegisterResponse acknowledges a new account.
type RegisterResponse struct {
	Message  string `json:"message"`
	Username string `json:"username"`
}

// MeResponse describes the authenticated caller.
type MeResponse struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}
