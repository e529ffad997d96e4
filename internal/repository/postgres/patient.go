package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/medgate/records-api/internal/model"
	"github.com/medgate/records-api/internal/repository"
	"github.com/medgate/records-api/pkg/apperror"
)

type patientRepository struct {
	BaseRepository
}

func NewPatientRepository(base BaseRepository) repository.PatientRepository {
	return &patientRepository{base}
}

const patientDetailQuery = `
	SELECT p.*,
		   u.id AS link_id, u.username AS link_username,
		   u.email AS link_email, u.role AS link_role,
		   d.id AS doc_id, d.username AS doc_username,
		   d.email AS doc_email, d.role AS doc_role
	FROM patients p
	LEFT JOIN users u ON u.id = p.user_id
	LEFT JOIN users d ON d.id = p.primary_doctor_id
`

type patientDetailRow struct {
	model.Patient
	LinkID       uuid.NullUUID  `db:"link_id"`
	LinkUsername sql.NullString `db:"link_username"`
	LinkEmail    sql.NullString `db:"link_email"`
	LinkRole     sql.NullString `db:"link_role"`
	DocID        uuid.NullUUID  `db:"doc_id"`
	DocUsername  sql.NullString `db:"doc_username"`
	DocEmail     sql.NullString `db:"doc_email"`
	DocRole      sql.NullString `db:"doc_role"`
}

func userRef(id uuid.NullUUID, username, email, role sql.NullString) *model.UserRef {
	if !id.Valid {
		return nil
	}
	return &model.UserRef{
		ID:       id.UUID,
		Username: username.String,
		Email:    email.String,
		Role:     model.Role(role.String),
	}
}

func (row *patientDetailRow) detail() *model.PatientDetail {
	return &model.PatientDetail{
		Patient:       row.Patient,
		User:          userRef(row.LinkID, row.LinkUsername, row.LinkEmail, row.LinkRole),
		PrimaryDoctor: userRef(row.DocID, row.DocUsername, row.DocEmail, row.DocRole),
	}
}

func (r *patientRepository) Create(ctx context.Context, patient *model.Patient) error {
	query := `
		INSERT INTO patients (
			id, user_id, primary_doctor_id, first_name, last_name,
			date_of_birth, gender, contact_number, email, address,
			emergency_contact_name, emergency_contact_phone,
			medical_history, notes, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16
		)
	`

	patient.ID = uuid.New()
	patient.CreatedAt = time.Now()
	patient.UpdatedAt = patient.CreatedAt

	_, err := r.db.ExecContext(ctx, query,
		patient.ID,
		patient.UserID,
		patient.PrimaryDoctorID,
		patient.FirstName,
		patient.LastName,
		patient.DateOfBirth,
		patient.Gender,
		patient.ContactNumber,
		patient.Email,
		patient.Address,
		patient.EmergencyContactName,
		patient.EmergencyContactPhone,
		patient.MedicalHistory,
		patient.Notes,
		patient.CreatedAt,
		patient.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return apperror.Conflict("user already has a patient profile")
		}
		return fmt.Errorf("failed to create patient: %w", err)
	}

	return nil
}

func (r *patientRepository) Get(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	query := `SELECT * FROM patients WHERE id = $1`

	var patient model.Patient
	if err := r.db.GetContext(ctx, &patient, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("patient")
		}
		return nil, fmt.Errorf("failed to get patient: %w", err)
	}

	return &patient, nil
}

func (r *patientRepository) GetDetail(ctx context.Context, id uuid.UUID) (*model.PatientDetail, error) {
	query := patientDetailQuery + ` WHERE p.id = $1`

	var row patientDetailRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("patient")
		}
		return nil, fmt.Errorf("failed to get patient detail: %w", err)
	}

	return row.detail(), nil
}

func (r *patientRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*model.Patient, error) {
	query := `SELECT * FROM patients WHERE user_id = $1`

	var patient model.Patient
	if err := r.db.GetContext(ctx, &patient, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("patient profile")
		}
		return nil, fmt.Errorf("failed to get patient by user: %w", err)
	}

	return &patient, nil
}

func (r *patientRepository) List(ctx context.Context, scope *model.AccessScope) ([]*model.PatientDetail, error) {
	query := patientDetailQuery
	args := []interface{}{}

	if scope != nil && !scope.All && scope.PatientID != nil {
		query += ` WHERE p.id = $1`
		args = append(args, *scope.PatientID)
	}

	query += ` ORDER BY p.created_at DESC`

	rows := []patientDetailRow{}
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list patients: %w", err)
	}

	patients := make([]*model.PatientDetail, 0, len(rows))
	for i := range rows {
		patients = append(patients, rows[i].detail())
	}

	return patients, nil
}

func (r *patientRepository) Update(ctx context.Context, patient *model.Patient) error {
	query := `
		UPDATE patients SET
			user_id = $1,
			primary_doctor_id = $2,
			first_name = $3,
			last_name = $4,
			date_of_birth = $5,
			gender = $6,
			contact_number = $7,
			email = $8,
			address = $9,
			emergency_contact_name = $10,
			emergency_contact_phone = $11,
			medical_history = $12,
			notes = $13,
			updated_at = $14
		WHERE id = $15
	`

	result, err := r.db.ExecContext(ctx, query,
		patient.UserID,
		patient.PrimaryDoctorID,
		patient.FirstName,
		patient.LastName,
		patient.DateOfBirth,
		patient.Gender,
		patient.ContactNumber,
		patient.Email,
		patient.Address,
		patient.EmergencyContactName,
		patient.EmergencyContactPhone,
		patient.MedicalHistory,
		patient.Notes,
		time.Now(),
		patient.ID,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return apperror.Conflict("user already has a patient profile")
		}
		return fmt.Errorf("failed to update patient: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperror.NotFound("patient")
	}

	return nil
}

// Delete removes the patient together with their appointments and
// medical records.
func (r *patientRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM appointments WHERE patient_id = $1`, id); err != nil {
			return fmt.Errorf("failed to delete patient appointments: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM medical_records WHERE patient_id = $1`, id); err != nil {
			return fmt.Errorf("failed to delete patient records: %w", err)
		}

		result, err := tx.ExecContext(ctx, `DELETE FROM patients WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("failed to delete patient: %w", err)
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rows == 0 {
			return apperror.NotFound("patient")
		}

		return nil
	})
}

func (r *patientRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM patients`); err != nil {
		return 0, fmt.Errorf("failed to count patients: %w", err)
	}
	return count, nil
}
