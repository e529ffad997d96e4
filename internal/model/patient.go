package model

import (
	"time"

	"github.com/google/uuid"
)

// Patient is a clinical subject. A profile may exist without a linked
// account (walk-in registration by staff); when UserID is set, at most
// one profile exists per account.
type Patient struct {
	Base
	UserID                *uuid.UUID `json:"user_id" db:"user_id"`
	PrimaryDoctorID       *uuid.UUID `json:"primary_doctor_id" db:"primary_doctor_id"`
	FirstName             string     `json:"first_name" db:"first_name"`
	LastName              string     `json:"last_name" db:"last_name"`
	DateOfBirth           *time.Time `json:"date_of_birth" db:"date_of_birth"`
	Gender                *string    `json:"gender" db:"gender"`
	ContactNumber         *string    `json:"contact_number" db:"contact_number"`
	Email                 *string    `json:"email" db:"email"`
	Address               *string    `json:"address" db:"address"`
	EmergencyContactName  *string    `json:"emergency_contact_name" db:"emergency_contact_name"`
	EmergencyContactPhone *string    `json:"emergency_contact_phone" db:"emergency_contact_phone"`
	MedicalHistory        *string    `json:"medical_history" db:"medical_history"`
	Notes                 *string    `json:"notes" db:"notes"`
}

// PatientDetail is a patient with its relation graph resolved.
type PatientDetail struct {
	Patient
	User          *UserRef `json:"user,omitempty"`
	PrimaryDoctor *UserRef `json:"primary_doctor,omitempty"`
}

// PatientSummary is the slim projection embedded in appointment and
// medical record detail views. UserID is carried for ownership checks.
type PatientSummary struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	UserID    *uuid.UUID `json:"user_id" db:"user_id"`
	FirstName string     `json:"first_name" db:"first_name"`
	LastName  string     `json:"last_name" db:"last_name"`
}

type CreatePatientRequest struct {
	UserID                *uuid.UUID `json:"user_id"`
	PrimaryDoctorID       *uuid.UUID `json:"primary_doctor_id"`
	FirstName             string     `json:"first_name" binding:"required,min=2,max=100"`
	LastName              string     `json:"last_name" binding:"required,min=2,max=100"`
	DateOfBirth           *time.Time `json:"date_of_birth"`
	Gender                *string    `json:"gender" binding:"omitempty,oneof=male female other undisclosed"`
	ContactNumber         *string    `json:"contact_number"`
	Email                 *string    `json:"email" binding:"omitempty,email"`
	Address               *string    `json:"address"`
	EmergencyContactName  *string    `json:"emergency_contact_name"`
	EmergencyContactPhone *string    `json:"emergency_contact_phone"`
	MedicalHistory        *string    `json:"medical_history"`
	Notes                 *string    `json:"notes"`
}

// UpdatePatientRequest is a partial patch; nil fields are untouched.
// For non-privileged actors the mutator clears everything outside the
// self-service allow-list before applying.
type UpdatePatientRequest struct {
	UserID                *uuid.UUID `json:"user_id"`
	PrimaryDoctorID       *uuid.UUID `json:"primary_doctor_id"`
	FirstName             *string    `json:"first_name" binding:"omitempty,min=2,max=100"`
	LastName              *string    `json:"last_name" binding:"omitempty,min=2,max=100"`
	DateOfBirth           *time.Time `json:"date_of_birth"`
	Gender                *string    `json:"gender" binding:"omitempty,oneof=male female other undisclosed"`
	ContactNumber         *string    `json:"contact_number"`
	Email                 *string    `json:"email" binding:"omitempty,email"`
	Address               *string    `json:"address"`
	EmergencyContactName  *string    `json:"emergency_contact_name"`
	EmergencyContactPhone *string    `json:"emergency_contact_phone"`
	MedicalHistory        *string    `json:"medical_history"`
	Notes                 *string    `json:"notes"`
}
