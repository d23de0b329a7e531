package dto

import (
	"time"

	"github.com/upscpath/prep-platform/internal/models"
)

// ErrorResponse is the standard error envelope
type ErrorResponse struct {
	Error string `json:"error"`
}

// SuccessResponse is the standard success envelope
type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// SessionResponse is returned after a verification session is created or
// its codes are resent
type SessionResponse struct {
	SessionKey string    `json:"sessionKey"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

// SessionStatusResponse mirrors the polled and pushed session status
type SessionStatusResponse struct {
	EmailVerified bool      `json:"emailVerified"`
	PhoneVerified bool      `json:"phoneVerified"`
	Consumed      bool      `json:"consumed"`
	ExpiresAt     time.Time `json:"expiresAt"`
}

// AuthResponse carries the bearer token and the authenticated user
type AuthResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}
