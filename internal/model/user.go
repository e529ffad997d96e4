package model

import (
	"time"

	"github.com/google/uuid"
)

// Role is the user's fixed system role.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleStaff   Role = "staff"
	RoleDoctor  Role = "doctor"
	RolePatient Role = "patient"
)

// Roles lists every valid role.
var Roles = []Role{RoleAdmin, RoleManager, RoleStaff, RoleDoctor, RolePatient}

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleStaff, RoleDoctor, RolePatient:
		return true
	}
	return false
}

// Privileged reports whether the role has full access to clinical
// resources (admin, manager, staff).
func (r Role) Privileged() bool {
	return r == RoleAdmin || r == RoleManager || r == RoleStaff
}

// Clinical reports whether the role may author clinical documentation.
func (r Role) Clinical() bool {
	return r.Privileged() || r == RoleDoctor
}

// User represents a system account. Password carries inbound plaintext
// only and is never persisted; PasswordHash is never serialized.
type User struct {
	Base
	Username     string `json:"username" db:"username"`
	Email        string `json:"email" db:"email"`
	Password     string `json:"password,omitempty" db:"-"`
	PasswordHash string `json:"-" db:"password_hash"`
	Role         Role   `json:"role" db:"role"`
}

// PublicUser is the outbound shape of an account.
type PublicUser struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PublicView strips credential material for responses.
func (u *User) PublicView() *PublicUser {
	return &PublicUser{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// Ref returns the slim projection used in detail views.
func (u *User) Ref() *UserRef {
	return &UserRef{ID: u.ID, Username: u.Username, Email: u.Email, Role: u.Role}
}

// AdminUser is a user together with the linked patient profile, as
// listed on the admin surface.
type AdminUser struct {
	*PublicUser
	PatientProfile *Patient `json:"patient_profile,omitempty"`
}

// DashboardStats aggregates counts for the admin dashboard.
type DashboardStats struct {
	TotalUsers            int64            `json:"total_users"`
	RoleBreakdown         map[Role]int64   `json:"role_breakdown"`
	TotalPatients         int64            `json:"total_patients"`
	ScheduledAppointments int64            `json:"scheduled_appointments"`
	RecordsDocumented     int64            `json:"records_documented"`
}
