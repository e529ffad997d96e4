package model

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	AppointmentStatusScheduled AppointmentStatus = "scheduled"
	AppointmentStatusCompleted AppointmentStatus = "completed"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
)

func (s AppointmentStatus) Valid() bool {
	switch s {
	case AppointmentStatusScheduled, AppointmentStatusCompleted, AppointmentStatusCancelled:
		return true
	}
	return false
}

// Appointment is a scheduling record. DoctorID must reference an
// account with the doctor role at write time.
type Appointment struct {
	Base
	PatientID       uuid.UUID         `json:"patient_id" db:"patient_id"`
	DoctorID        uuid.UUID         `json:"doctor_id" db:"doctor_id"`
	CreatedByID     *uuid.UUID        `json:"created_by_id" db:"created_by_id"`
	AppointmentDate time.Time         `json:"appointment_date" db:"appointment_date"`
	Status          AppointmentStatus `json:"status" db:"status"`
	Reason          *string           `json:"reason" db:"reason"`
	Notes           *string           `json:"notes" db:"notes"`
	Location        *string           `json:"location" db:"location"`
}

// AppointmentDetail is an appointment with its relation graph resolved.
type AppointmentDetail struct {
	Appointment
	Patient   *PatientSummary `json:"patient,omitempty"`
	Doctor    *UserRef        `json:"doctor,omitempty"`
	CreatedBy *UserRef        `json:"created_by,omitempty"`
}

type CreateAppointmentRequest struct {
	PatientID       *uuid.UUID `json:"patient_id"`
	DoctorID        *uuid.UUID `json:"doctor_id"`
	AppointmentDate time.Time  `json:"appointment_date" binding:"required"`
	Status          *string    `json:"status" binding:"omitempty,oneof=scheduled completed cancelled"`
	Reason          *string    `json:"reason"`
	Notes           *string    `json:"notes"`
	Location        *string    `json:"location"`
}

// UpdateAppointmentRequest is a partial patch; nil fields are
// untouched. Non-privileged actors are limited to date, reason, notes
// and status; disallowed fields are dropped, not rejected.
type UpdateAppointmentRequest struct {
	PatientID       *uuid.UUID `json:"patient_id"`
	DoctorID        *uuid.UUID `json:"doctor_id"`
	AppointmentDate *time.Time `json:"appointment_date"`
	Status          *string    `json:"status" binding:"omitempty,oneof=scheduled completed cancelled"`
	Reason          *string    `json:"reason"`
	Notes           *string    `json:"notes"`
	Location        *string    `json:"location"`
}
