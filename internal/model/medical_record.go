package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Attachment is structured metadata for a file attached to a record.
// Binary content lives outside this system.
type Attachment struct {
	Name string `json:"name"`
	URL  string `json:"url"`
	Type string `json:"type,omitempty"`
}

// Attachments is stored as a JSONB column.
type Attachments []Attachment

func (a Attachments) Value() (driver.Value, error) {
	if a == nil {
		return nil, nil
	}
	return json.Marshal(a)
}

func (a *Attachments) Scan(src interface{}) error {
	if src == nil {
		*a = nil
		return nil
	}
	b, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("unsupported attachments type %T", src)
	}
	return json.Unmarshal(b, a)
}

// MedicalRecord is a clinical note authored for a patient. DoctorID,
// when set, must reference an account with the doctor role.
type MedicalRecord struct {
	Base
	PatientID     uuid.UUID   `json:"patient_id" db:"patient_id"`
	DoctorID      *uuid.UUID  `json:"doctor_id" db:"doctor_id"`
	CreatedByID   *uuid.UUID  `json:"created_by_id" db:"created_by_id"`
	Title         string      `json:"title" db:"title"`
	VisitDate     *time.Time  `json:"visit_date" db:"visit_date"`
	Description   *string     `json:"description" db:"description"`
	Diagnosis     *string     `json:"diagnosis" db:"diagnosis"`
	TreatmentPlan *string     `json:"treatment_plan" db:"treatment_plan"`
	FollowUpDate  *time.Time  `json:"follow_up_date" db:"follow_up_date"`
	Attachments   Attachments `json:"attachments" db:"attachments"`
}

// MedicalRecordDetail is a record with its relation graph resolved.
type MedicalRecordDetail struct {
	MedicalRecord
	Patient   *PatientSummary `json:"patient,omitempty"`
	Doctor    *UserRef        `json:"doctor,omitempty"`
	CreatedBy *UserRef        `json:"created_by,omitempty"`
}

type CreateMedicalRecordRequest struct {
	PatientID     *uuid.UUID  `json:"patient_id"`
	DoctorID      *uuid.UUID  `json:"doctor_id"`
	Title         string      `json:"title" binding:"required"`
	VisitDate     *time.Time  `json:"visit_date"`
	Description   *string     `json:"description"`
	Diagnosis     *string     `json:"diagnosis"`
	TreatmentPlan *string     `json:"treatment_plan"`
	FollowUpDate  *time.Time  `json:"follow_up_date"`
	Attachments   Attachments `json:"attachments"`
}

// UpdateMedicalRecordRequest is a partial patch; nil fields are
// untouched.
type UpdateMedicalRecordRequest struct {
	PatientID     *uuid.UUID  `json:"patient_id"`
	DoctorID      *uuid.UUID  `json:"doctor_id"`
	Title         *string     `json:"title"`
	VisitDate     *time.Time  `json:"visit_date"`
	Description   *string     `json:"description"`
	Diagnosis     *string     `json:"diagnosis"`
	TreatmentPlan *string     `json:"treatment_plan"`
	FollowUpDate  *time.Time  `json:"follow_up_date"`
	Attachments   Attachments `json:"attachments"`
}
