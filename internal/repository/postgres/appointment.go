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

type appointmentRepository struct {
	BaseRepository
}

func NewAppointmentRepository(base BaseRepository) repository.AppointmentRepository {
	return &appointmentRepository{base}
}

const appointmentDetailQuery = `
	SELECT a.*,
		   p.id AS pat_id, p.user_id AS pat_user_id,
		   p.first_name AS pat_first_name, p.last_name AS pat_last_name,
		   d.id AS doc_id, d.username AS doc_username,
		   d.email AS doc_email, d.role AS doc_role,
		   c.id AS cb_id, c.username AS cb_username,
		   c.email AS cb_email, c.role AS cb_role
	FROM appointments a
	LEFT JOIN patients p ON p.id = a.patient_id
	LEFT JOIN users d ON d.id = a.doctor_id
	LEFT JOIN users c ON c.id = a.created_by_id
`

type appointmentDetailRow struct {
	model.Appointment
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

func patientSummary(id, userID uuid.NullUUID, first, last sql.NullString) *model.PatientSummary {
	if !id.Valid {
		return nil
	}
	summary := &model.PatientSummary{
		ID:        id.UUID,
		FirstName: first.String,
		LastName:  last.String,
	}
	if userID.Valid {
		uid := userID.UUID
		summary.UserID = &uid
	}
	return summary
}

func (row *appointmentDetailRow) detail() *model.AppointmentDetail {
	return &model.AppointmentDetail{
		Appointment: row.Appointment,
		Patient:     patientSummary(row.PatID, row.PatUserID, row.PatFirstName, row.PatLastName),
		Doctor:      userRef(row.DocID, row.DocUsername, row.DocEmail, row.DocRole),
		CreatedBy:   userRef(row.CbID, row.CbUsername, row.CbEmail, row.CbRole),
	}
}

func (r *appointmentRepository) Create(ctx context.Context, appointment *model.Appointment) error {
	query := `
		INSERT INTO appointments (
			id, patient_id, doctor_id, created_by_id, appointment_date,
			status, reason, notes, location, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	appointment.ID = uuid.New()
	appointment.CreatedAt = time.Now()
	appointment.UpdatedAt = appointment.CreatedAt

	_, err := r.db.ExecContext(ctx, query,
		appointment.ID,
		appointment.PatientID,
		appointment.DoctorID,
		appointment.CreatedByID,
		appointment.AppointmentDate,
		appointment.Status,
		appointment.Reason,
		appointment.Notes,
		appointment.Location,
		appointment.CreatedAt,
		appointment.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create appointment: %w", err)
	}

	return nil
}

func (r *appointmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	query := `SELECT * FROM appointments WHERE id = $1`

	var appointment model.Appointment
	if err := r.db.GetContext(ctx, &appointment, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("appointment")
		}
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}

	return &appointment, nil
}

func (r *appointmentRepository) GetDetail(ctx context.Context, id uuid.UUID) (*model.AppointmentDetail, error) {
	query := appointmentDetailQuery + ` WHERE a.id = $1`

	var row appointmentDetailRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("appointment")
		}
		return nil, fmt.Errorf("failed to get appointment detail: %w", err)
	}

	return row.detail(), nil
}

func (r *appointmentRepository) List(ctx context.Context, scope *model.AccessScope) ([]*model.AppointmentDetail, error) {
	query := appointmentDetailQuery
	args := []interface{}{}

	if scope != nil && !scope.All {
		switch {
		case scope.PatientID != nil:
			query += ` WHERE a.patient_id = $1`
			args = append(args, *scope.PatientID)
		case scope.DoctorID != nil:
			query += ` WHERE a.doctor_id = $1`
			args = append(args, *scope.DoctorID)
		}
	}

	query += ` ORDER BY a.appointment_date ASC`

	rows := []appointmentDetailRow{}
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}

	appointments := make([]*model.AppointmentDetail, 0, len(rows))
	for i := range rows {
		appointments = append(appointments, rows[i].detail())
	}

	return appointments, nil
}

func (r *appointmentRepository) Update(ctx context.Context, appointment *model.Appointment) error {
	query := `
		UPDATE appointments SET
			patient_id = $1,
			doctor_id = $2,
			appointment_date = $3,
			status = $4,
			reason = $5,
			notes = $6,
			location = $7,
			updated_at = $8
		WHERE id = $9
	`

	result, err := r.db.ExecContext(ctx, query,
		appointment.PatientID,
		appointment.DoctorID,
		appointment.AppointmentDate,
		appointment.Status,
		appointment.Reason,
		appointment.Notes,
		appointment.Location,
		time.Now(),
		appointment.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update appointment: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperror.NotFound("appointment")
	}

	return nil
}

func (r *appointmentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete appointment: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperror.NotFound("appointment")
	}

	return nil
}

func (r *appointmentRepository) CountByStatus(ctx context.Context, status model.AppointmentStatus) (int64, error) {
	var count int64
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM appointments WHERE status = $1`, status); err != nil {
		return 0, fmt.Errorf("failed to count appointments: %w", err)
	}
	return count, nil
}
