package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/medgate/records-api/internal/model"
	"github.com/medgate/records-api/internal/repository"
	"github.com/medgate/records-api/pkg/apperror"
)

type medicalRecordRepository struct {
	BaseRepository
}

func NewMedicalRecordRepository(base BaseRepository) repository.MedicalRecordRepository {
	return &medicalRecordRepository{base}
}

const medicalRecordDetailQuery = `
	SELECT m.*,
		   p.id AS pat_id, p.user_id AS pat_user_id,
		   p.first_name AS pat_first_name, p.last_name AS pat_last_name,
		   d.id AS doc_id, d.username AS doc_username,
		   d.email AS doc_email, d.role AS doc_role,
		   c.id AS cb_id, c.username AS cb_username,
		   c.email AS cb_email, c.role AS cb_role
	FROM medical_records m
	LEFT JOIN patients p ON p.id = m.patient_id
	LEFT JOIN users d ON d.id = m.doctor_id
	LEFT JOIN users c ON c.id = m.created_by_id
`

type medicalRecordDetailRow struct {
	model.MedicalRecord
	PatID        uuid.NullUUID  `db:"pat_id"`
	PatUserID    uuid.NullUUID  `db:"pat_user_id"`
	PatFirstName sql.NullString `db:"pat_first_name"`
	PatLastName  sql.NullString `db:"pat_last_name"`
	DocID        uuid.NullUUID  `db:"doc_id"`
	DocUsername  sql.NullString `db:"doc_username"`
	DocEmail     sql.NullString `db:"doc_email"`
	DocRole      sql.NullString `db:"doc_role"`
	CbID         uuid.NullUUID  `db:"cb_id"`
	CbUsername   sql.NullString `db:"cb_username"`
	CbEmail      sql.NullString `db:"cb_email"`
	CbRole       sql.NullString `db:"cb_role"`
}

func (row *medicalRecordDetailRow) detail() *model.MedicalRecordDetail {
	return &model.MedicalRecordDetail{
		MedicalRecord: row.MedicalRecord,
		Patient:       patientSummary(row.PatID, row.PatUserID, row.PatFirstName, row.PatLastName),
		Doctor:        userRef(row.DocID, row.DocUsername, row.DocEmail, row.DocRole),
		CreatedBy:     userRef(row.CbID, row.CbUsername, row.CbEmail, row.CbRole),
	}
}

func (r *medicalRecordRepository) Create(ctx context.Context, record *model.MedicalRecord) error {
	query := `
		INSERT INTO medical_records (
			id, patient_id, doctor_id, created_by_id, title, visit_date,
			description, diagnosis, treatment_plan, follow_up_date,
			attachments, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	record.ID = uuid.New()
	record.CreatedAt = time.Now()
	record.UpdatedAt = record.CreatedAt

	_, err := r.db.ExecContext(ctx, query,
		record.ID,
		record.PatientID,
		record.DoctorID,
		record.CreatedByID,
		record.Title,
		record.VisitDate,
		record.Description,
		record.Diagnosis,
		record.TreatmentPlan,
		record.FollowUpDate,
		record.Attachments,
		record.CreatedAt,
		record.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create medical record: %w", err)
	}

	return nil
}

func (r *medicalRecordRepository) Get(ctx context.Context, id uuid.UUID) (*model.MedicalRecord, error) {
	query := `SELECT * FROM medical_records WHERE id = $1`

	var record model.MedicalRecord
	if err := r.db.GetContext(ctx, &record, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("medical record")
		}
		return nil, fmt.Errorf("failed to get medical record: %w", err)
	}

	return &record, nil
}

func (r *medicalRecordRepository) GetDetail(ctx context.Context, id uuid.UUID) (*model.MedicalRecordDetail, error) {
	query := medicalRecordDetailQuery + ` WHERE m.id = $1`

	var row medicalRecordDetailRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("medical record")
		}
		return nil, fmt.Errorf("failed to get medical record detail: %w", err)
	}

	return row.detail(), nil
}

func (r *medicalRecordRepository) List(ctx context.Context, scope *model.AccessScope) ([]*model.MedicalRecordDetail, error) {
	query := medicalRecordDetailQuery
	args := []interface{}{}

	if scope != nil && !scope.All {
		switch {
		case scope.PatientID != nil:
			query += ` WHERE m.patient_id = $1`
			args = append(args, *scope.PatientID)
		case scope.DoctorID != nil:
			query += ` WHERE m.doctor_id = $1`
			args = append(args, *scope.DoctorID)
		}
	}

	query += ` ORDER BY m.created_at DESC`

	rows := []medicalRecordDetailRow{}
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list medical records: %w", err)
	}

	records := make([]*model.MedicalRecordDetail, 0, len(rows))
	for i := range rows {
		records = append(records, rows[i].detail())
	}

	return records, nil
}

func (r *medicalRecordRepository) Update(ctx context.Context, record *model.MedicalRecord) error {
	query := `
		UPDATE medical_records SET
			patient_id = $1,
			doctor_id = $2,
			title = $3,
			visit_date = $4,
			description = $5,
			diagnosis = $6,
			treatment_plan = $7,
			follow_up_date = $8,
			attachments = $9,
			updated_at = $10
		WHERE id = $11
	`

	result, err := r.db.ExecContext(ctx, query,
		record.PatientID,
		record.DoctorID,
		record.Title,
		record.VisitDate,
		record.Description,
		record.Diagnosis,
		record.TreatmentPlan,
		record.FollowUpDate,
		record.Attachments,
		time.Now(),
		record.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update medical record: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperror.NotFound("medical record")
	}

	return nil
}

func (r *medicalRecordRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM medical_records WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete medical record: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperror.NotFound("medical record")
	}

	return nil
}

func (r *medicalRecordRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM medical_records`); err != nil {
		return 0, fmt.Errorf("failed to count medical records: %w", err)
	}
	return count, nil
}
