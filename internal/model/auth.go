package model

import (
	"time"

	"github.com/google/uuid"
)

type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=50"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6,max=100"`
	Role     Role   `json:"role" binding:"omitempty,role"`
}

// LoginRequest identifies the account by email, username or both.
type LoginRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password" binding:"required"`
}

type ForgotPasswordRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
}

type ResetPasswordRequest struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required,min=6,max=100"`
}

// TokenClaims is the verified identity carried by a bearer token. It
// doubles as the actor for authorization decisions.
type TokenClaims struct {
	UserID   uuid.UUID `json:"user_id"`
	Username string    `json:"username"`
	Email    string    `json:"email"`
	Role     Role      `json:"role"`
}

// AuthResponse pairs the public account view with a fresh token.
type AuthResponse struct {
	User  *PublicUser `json:"user"`
	Token string      `json:"token"`
}

// PasswordResetIssued is returned from forgot-password. The plaintext
// token is exposed in the response for demo purposes; a production
// deployment would deliver it by email only.
type PasswordResetIssued struct {
	ResetToken string    `json:"resetToken"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

// ProfileResponse is the authenticated user's own view, with the
// linked patient profile when one exists.
type ProfileResponse struct {
	User           *PublicUser `json:"user"`
	PatientProfile *Patient    `json:"patientProfile,omitempty"`
}
