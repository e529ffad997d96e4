package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/medgate/records-api/internal/model"
)

// All repository interfaces in one file
type (
	// UserRepository handles account persistence. Delete removes the
	// account and applies the documented cascade to dependent rows.
	UserRepository interface {
		Create(ctx context.Context, user *model.User) error
		Get(ctx context.Context, id uuid.UUID) (*model.User, error)
		GetByIdentifier(ctx context.Context, email, username string) (*model.User, error)
		List(ctx context.Context) ([]*model.User, error)
		UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
		Delete(ctx context.Context, id uuid.UUID) error
		CountByRole(ctx context.Context) (map[model.Role]int64, error)
	}

	PatientRepository interface {
		Create(ctx context.Context, patient *model.Patient) error
		Get(ctx context.Context, id uuid.UUID) (*model.Patient, error)
		GetDetail(ctx context.Context, id uuid.UUID) (*model.PatientDetail, error)
		GetByUserID(ctx context.Context, userID uuid.UUID) (*model.Patient, error)
		List(ctx context.Context, scope *model.AccessScope) ([]*model.PatientDetail, error)
		Update(ctx context.Context, patient *model.Patient) error
		Delete(ctx context.Context, id uuid.UUID) error
		Count(ctx context.Context) (int64, error)
	}

	AppointmentRepository interface {
		Create(ctx context.Context, appointment *model.Appointment) error
		Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
		GetDetail(ctx context.Context, id uuid.UUID) (*model.AppointmentDetail, error)
		List(ctx context.Context, scope *model.AccessScope) ([]*model.AppointmentDetail, error)
		Update(ctx context.Context, appointment *model.Appointment) error
		Delete(ctx context.Context, id uuid.UUID) error
		CountByStatus(ctx context.Context, status model.AppointmentStatus) (int64, error)
	}

	MedicalRecordRepository interface {
		Create(ctx context.Context, record *model.MedicalRecord) error
		Get(ctx context.Context, id uuid.UUID) (*model.MedicalRecord, error)
		GetDetail(ctx context.Context, id uuid.UUID) (*model.MedicalRecordDetail, error)
		List(ctx context.Context, scope *model.AccessScope) ([]*model.MedicalRecordDetail, error)
		Update(ctx context.Context, record *model.MedicalRecord) error
		Delete(ctx context.Context, id uuid.UUID) error
		Count(ctx context.Context) (int64, error)
	}

	// TokenRepository keeps the password reset ledger. Issue invalidates
	// every unused token for the user and inserts the new one in a
	// single transaction, so at most one live token exists per user.
	TokenRepository interface {
		Issue(ctx context.Context, token *model.PasswordResetToken) error
		GetByDigest(ctx context.Context, digest string) (*model.PasswordResetToken, error)
		Consume(ctx context.Context, id, userID uuid.UUID) error
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		GetPendingEvents(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errMsg *string) error
	}
)
