package model

import (
	"time"

	"github.com/google/uuid"
)

// Base contains common fields for all models
type Base struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// UserRef is the slim user projection embedded in detail views. It
// never carries credential material.
type UserRef struct {
	ID       uuid.UUID `json:"id" db:"id"`
	Username string    `json:"username" db:"username"`
	Email    string    `json:"email" db:"email"`
	Role     Role      `json:"role" db:"role"`
}

// AccessScope narrows list and read operations to the rows the actor
// may see. A nil filter field means no restriction on that axis.
type AccessScope struct {
	All       bool
	PatientID *uuid.UUID
	DoctorID  *uuid.UUID
}

// UnrestrictedScope is the scope privileged roles operate under.
func UnrestrictedScope() *AccessScope {
	return &AccessScope{All: true}
}
