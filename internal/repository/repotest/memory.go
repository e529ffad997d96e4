// Package repotest provides in-memory repository implementations for
// service tests. They mirror the error semantics of the postgres
// implementations.
package repotest

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/medgate/records-api/internal/model"
	"github.com/medgate/records-api/pkg/apperror"
)

// Store is a shared in-memory database backing all fake repositories.
type Store struct {
	mu           sync.Mutex
	Users        map[uuid.UUID]*model.User
	Patients     map[uuid.UUID]*model.Patient
	Appointments map[uuid.UUID]*model.Appointment
	Records      map[uuid.UUID]*model.MedicalRecord
	Tokens       map[uuid.UUID]*model.PasswordResetToken
	Events       []*model.OutboxEvent
}

func NewStore() *Store {
	return &Store{
		Users:        make(map[uuid.UUID]*model.User),
		Patients:     make(map[uuid.UUID]*model.Patient),
		Appointments: make(map[uuid.UUID]*model.Appointment),
		Records:      make(map[uuid.UUID]*model.MedicalRecord),
		Tokens:       make(map[uuid.UUID]*model.PasswordResetToken),
	}
}

// SeedUser inserts a user with a fresh id and returns it.
func (s *Store) SeedUser(username, email string, role model.Role) *model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	user := &model.User{
		Base:         model.Base{ID: uuid.New(), CreatedAt: time.Now(), UpdatedAt: time.Now()},
		Username:     username,
		Email:        email,
		PasswordHash: "x",
		Role:         role,
	}
	s.Users[user.ID] = user
	return user
}

// SeedPatient inserts a patient profile with a fresh id and returns it.
func (s *Store) SeedPatient(userID, doctorID *uuid.UUID, first, last string) *model.Patient {
	s.mu.Lock()
	defer s.mu.Unlock()
	patient := &model.Patient{
		Base:            model.Base{ID: uuid.New(), CreatedAt: time.Now(), UpdatedAt: time.Now()},
		UserID:          userID,
		PrimaryDoctorID: doctorID,
		FirstName:       first,
		LastName:        last,
	}
	s.Patients[patient.ID] = patient
	return patient
}

func (s *Store) userRef(id *uuid.UUID) *model.UserRef {
	if id == nil {
		return nil
	}
	user, ok := s.Users[*id]
	if !ok {
		return nil
	}
	return user.Ref()
}

func (s *Store) patientSummary(id uuid.UUID) *model.PatientSummary {
	patient, ok := s.Patients[id]
	if !ok {
		return nil
	}
	return &model.PatientSummary{
		ID:        patient.ID,
		UserID:    patient.UserID,
		FirstName: patient.FirstName,
		LastName:  patient.LastName,
	}
}

// UserRepo implements repository.UserRepository over the store.
type UserRepo struct{ S *Store }

func (r *UserRepo) Create(_ context.Context, user *model.User) error {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	for _, existing := range r.S.Users {
		if existing.Username == user.Username {
			return apperror.Conflict("username already in use")
		}
		if existing.Email == user.Email {
			return apperror.Conflict("email already in use")
		}
	}
	user.ID = uuid.New()
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	r.S.Users[user.ID] = user
	return nil
}

func (r *UserRepo) Get(_ context.Context, id uuid.UUID) (*model.User, error) {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	user, ok := r.S.Users[id]
	if !ok {
		return nil, apperror.NotFound("user")
	}
	copied := *user
	return &copied, nil
}

func (r *UserRepo) GetByIdentifier(_ context.Context, email, username string) (*model.User, error) {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	for _, user := range r.S.Users {
		if (email != "" && user.Email == email) || (username != "" && user.Username == username) {
			copied := *user
			return &copied, nil
		}
	}
	return nil, apperror.NotFound("user")
}

func (r *UserRepo) List(_ context.Context) ([]*model.User, error) {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	out := make([]*model.User, 0, len(r.S.Users))
	for _, user := range r.S.Users {
		copied := *user
		out = append(out, &copied)
	}
	return out, nil
}

func (r *UserRepo) UpdatePassword(_ context.Context, id uuid.UUID, hash string) error {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	user, ok := r.S.Users[id]
	if !ok {
		return apperror.NotFound("user")
	}
	user.PasswordHash = hash
	return nil
}

func (r *UserRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	if _, ok := r.S.Users[id]; !ok {
		return apperror.NotFound("user")
	}
	delete(r.S.Users, id)
	for _, patient := range r.S.Patients {
		if patient.UserID != nil && *patient.UserID == id {
			patient.UserID = nil
		}
		if patient.PrimaryDoctorID != nil && *patient.PrimaryDoctorID == id {
			patient.PrimaryDoctorID = nil
		}
	}
	for aid, appointment := range r.S.Appointments {
		if appointment.DoctorID == id {
			delete(r.S.Appointments, aid)
			continue
		}
		if appointment.CreatedByID != nil && *appointment.CreatedByID == id {
			appointment.CreatedByID = nil
		}
	}
	for _, record := range r.S.Records {
		if record.DoctorID != nil && *record.DoctorID == id {
			record.DoctorID = nil
		}
		if record.CreatedByID != nil && *record.CreatedByID == id {
			record.CreatedByID = nil
		}
	}
	for tid, token := range r.S.Tokens {
		if token.UserID == id {
			delete(r.S.Tokens, tid)
		}
	}
	return nil
}

func (r *UserRepo) CountByRole(_ context.Context) (map[model.Role]int64, error) {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	counts := make(map[model.Role]int64)
	for _, user := range r.S.Users {
		counts[user.Role]++
	}
	return counts, nil
}

// PatientRepo implements repository.PatientRepository over the store.
type PatientRepo struct{ S *Store }

func (r *PatientRepo) Create(_ context.Context, patient *model.Patient) error {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	if patient.UserID != nil {
		for _, existing := range r.S.Patients {
			if existing.UserID != nil && *existing.UserID == *patient.UserID {
				return apperror.Conflict("user already has a patient profile")
			}
		}
	}
	patient.ID = uuid.New()
	patient.CreatedAt = time.Now()
	patient.UpdatedAt = patient.CreatedAt
	copied := *patient
	r.S.Patients[patient.ID] = &copied
	return nil
}

func (r *PatientRepo) Get(_ context.Context, id uuid.UUID) (*model.Patient, error) {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	patient, ok := r.S.Patients[id]
	if !ok {
		return nil, apperror.NotFound("patient")
	}
	copied := *patient
	return &copied, nil
}

func (r *PatientRepo) GetDetail(_ context.Context, id uuid.UUID) (*model.PatientDetail, error) {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	patient, ok := r.S.Patients[id]
	if !ok {
		return nil, apperror.NotFound("patient")
	}
	return &model.PatientDetail{
		Patient:       *patient,
		User:          r.S.userRef(patient.UserID),
		PrimaryDoctor: r.S.userRef(patient.PrimaryDoctorID),
	}, nil
}

func (r *PatientRepo) GetByUserID(_ context.Context, userID uuid.UUID) (*model.Patient, error) {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	for _, patient := range r.S.Patients {
		if patient.UserID != nil && *patient.UserID == userID {
			copied := *patient
			return &copied, nil
		}
	}
	return nil, apperror.NotFound("patient profile")
}

func (r *PatientRepo) List(_ context.Context, scope *model.AccessScope) ([]*model.PatientDetail, error) {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	out := []*model.PatientDetail{}
	for _, patient := range r.S.Patients {
		if scope != nil && !scope.All && scope.PatientID != nil && patient.ID != *scope.PatientID {
			continue
		}
		out = append(out, &model.PatientDetail{
			Patient:       *patient,
			User:          r.S.userRef(patient.UserID),
			PrimaryDoctor: r.S.userRef(patient.PrimaryDoctorID),
		})
	}
	return out, nil
}

func (r *PatientRepo) Update(_ context.Context, patient *model.Patient) error {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	if _, ok := r.S.Patients[patient.ID]; !ok {
		return apperror.NotFound("patient")
	}
	patient.UpdatedAt = time.Now()
	copied := *patient
	r.S.Patients[patient.ID] = &copied
	return nil
}

func (r *PatientRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	if _, ok := r.S.Patients[id]; !ok {
		return apperror.NotFound("patient")
	}
	delete(r.S.Patients, id)
	for aid, appointment := range r.S.Appointments {
		if appointment.PatientID == id {
			delete(r.S.Appointments, aid)
		}
	}
	for rid, record := range r.S.Records {
		if record.PatientID == id {
			delete(r.S.Records, rid)
		}
	}
	return nil
}

func (r *PatientRepo) Count(_ context.Context) (int64, error) {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	return int64(len(r.S.Patients)), nil
}

// AppointmentRepo implements repository.AppointmentRepository over the
// store.
type AppointmentRepo struct{ S *Store }

func (r *AppointmentRepo) Create(_ context.Context, appointment *model.Appointment) error {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	appointment.ID = uuid.New()
	appointment.CreatedAt = time.Now()
	appointment.UpdatedAt = appointment.CreatedAt
	copied := *appointment
	r.S.Appointments[appointment.ID] = &copied
	return nil
}

func (r *AppointmentRepo) Get(_ context.Context, id uuid.UUID) (*model.Appointment, error) {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	appointment, ok := r.S.Appointments[id]
	if !ok {
		return nil, apperror.NotFound("appointment")
	}
	copied := *appointment
	return &copied, nil
}

func (r *AppointmentRepo) GetDetail(_ context.Context, id uuid.UUID) (*model.AppointmentDetail, error) {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	appointment, ok := r.S.Appointments[id]
	if !ok {
		return nil, apperror.NotFound("appointment")
	}
	doctorID := appointment.DoctorID
	return &model.AppointmentDetail{
		Appointment: *appointment,
		Patient:     r.S.patientSummary(appointment.PatientID),
		Doctor:      r.S.userRef(&doctorID),
		CreatedBy:   r.S.userRef(appointment.CreatedByID),
	}, nil
}

func (r *AppointmentRepo) List(_ context.Context, scope *model.AccessScope) ([]*model.AppointmentDetail, error) {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	out := []*model.AppointmentDetail{}
	for _, appointment := range r.S.Appointments {
		if scope != nil && !scope.All {
			if scope.PatientID != nil && appointment.PatientID != *scope.PatientID {
				continue
			}
			if scope.PatientID == nil && scope.DoctorID != nil && appointment.DoctorID != *scope.DoctorID {
				continue
			}
		}
		doctorID := appointment.DoctorID
		out = append(out, &model.AppointmentDetail{
			Appointment: *appointment,
			Patient:     r.S.patientSummary(appointment.PatientID),
			Doctor:      r.S.userRef(&doctorID),
			CreatedBy:   r.S.userRef(appointment.CreatedByID),
		})
	}
	return out, nil
}

func (r *AppointmentRepo) Update(_ context.Context, appointment *model.Appointment) error {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	if _, ok := r.S.Appointments[appointment.ID]; !ok {
		return apperror.NotFound("appointment")
	}
	appointment.UpdatedAt = time.Now()
	copied := *appointment
	r.S.Appointments[appointment.ID] = &copied
	return nil
}

func (r *AppointmentRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	if _, ok := r.S.Appointments[id]; !ok {
		return apperror.NotFound("appointment")
	}
	delete(r.S.Appointments, id)
	return nil
}

func (r *AppointmentRepo) CountByStatus(_ context.Context, status model.AppointmentStatus) (int64, error) {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	var count int64
	for _, appointment := range r.S.Appointments {
		if appointment.Status == status {
			count++
		}
	}
	return count, nil
}

// MedicalRecordRepo implements repository.MedicalRecordRepository over
// the store.
type MedicalRecordRepo struct{ S *Store }

func (r *MedicalRecordRepo) Create(_ context.Context, record *model.MedicalRecord) error {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	record.ID = uuid.New()
	record.CreatedAt = time.Now()
	record.UpdatedAt = record.CreatedAt
	copied := *record
	r.S.Records[record.ID] = &copied
	return nil
}

func (r *MedicalRecordRepo) Get(_ context.Context, id uuid.UUID) (*model.MedicalRecord, error) {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	record, ok := r.S.Records[id]
	if !ok {
		return nil, apperror.NotFound("medical record")
	}
	copied := *record
	return &copied, nil
}

func (r *MedicalRecordRepo) GetDetail(_ context.Context, id uuid.UUID) (*model.MedicalRecordDetail, error) {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	record, ok := r.S.Records[id]
	if !ok {
		return nil, apperror.NotFound("medical record")
	}
	return &model.MedicalRecordDetail{
		MedicalRecord: *record,
		Patient:       r.S.patientSummary(record.PatientID),
		Doctor:        r.S.userRef(record.DoctorID),
		CreatedBy:     r.S.userRef(record.CreatedByID),
	}, nil
}

func (r *MedicalRecordRepo) List(_ context.Context, scope *model.AccessScope) ([]*model.MedicalRecordDetail, error) {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	out := []*model.MedicalRecordDetail{}
	for _, record := range r.S.Records {
		if scope != nil && !scope.All {
			if scope.PatientID != nil && record.PatientID != *scope.PatientID {
				continue
			}
			if scope.PatientID == nil && scope.DoctorID != nil &&
				(record.DoctorID == nil || *record.DoctorID != *scope.DoctorID) {
				continue
			}
		}
		out = append(out, &model.MedicalRecordDetail{
			MedicalRecord: *record,
			Patient:       r.S.patientSummary(record.PatientID),
			Doctor:        r.S.userRef(record.DoctorID),
			CreatedBy:     r.S.userRef(record.CreatedByID),
		})
	}
	return out, nil
}

func (r *MedicalRecordRepo) Update(_ context.Context, record *model.MedicalRecord) error {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	if _, ok := r.S.Records[record.ID]; !ok {
		return apperror.NotFound("medical record")
	}
	record.UpdatedAt = time.Now()
	copied := *record
	r.S.Records[record.ID] = &copied
	return nil
}

func (r *MedicalRecordRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	if _, ok := r.S.Records[id]; !ok {
		return apperror.NotFound("medical record")
	}
	delete(r.S.Records, id)
	return nil
}

func (r *MedicalRecordRepo) Count(_ context.Context) (int64, error) {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	return int64(len(r.S.Records)), nil
}

// TokenRepo implements repository.TokenRepository over the store.
type TokenRepo struct{ S *Store }

func (r *TokenRepo) Issue(_ context.Context, token *model.PasswordResetToken) error {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	for _, existing := range r.S.Tokens {
		if existing.UserID == token.UserID && !existing.Used {
			existing.Used = true
		}
	}
	token.ID = uuid.New()
	token.CreatedAt = time.Now()
	copied := *token
	r.S.Tokens[token.ID] = &copied
	return nil
}

func (r *TokenRepo) GetByDigest(_ context.Context, digest string) (*model.PasswordResetToken, error) {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	for _, token := range r.S.Tokens {
		if token.Digest == digest {
			copied := *token
			return &copied, nil
		}
	}
	return nil, apperror.NotFound("reset token")
}

func (r *TokenRepo) Consume(_ context.Context, id, userID uuid.UUID) error {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	token, ok := r.S.Tokens[id]
	if !ok || token.Used {
		return apperror.Validation("invalid or expired reset token")
	}
	token.Used = true
	for _, other := range r.S.Tokens {
		if other.UserID == userID && !other.Used {
			other.Used = true
		}
	}
	return nil
}

// OutboxRepo implements repository.OutboxRepository over the store.
type OutboxRepo struct{ S *Store }

func (r *OutboxRepo) Create(_ context.Context, event *model.OutboxEvent) error {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	event.ID = uuid.New()
	event.Status = model.OutboxStatusPending
	event.CreatedAt = time.Now()
	copied := *event
	r.S.Events = append(r.S.Events, &copied)
	return nil
}

func (r *OutboxRepo) GetPendingEvents(_ context.Context, limit int) ([]*model.OutboxEvent, error) {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	out := []*model.OutboxEvent{}
	for _, event := range r.S.Events {
		if event.Status != model.OutboxStatusPending {
			continue
		}
		copied := *event
		out = append(out, &copied)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *OutboxRepo) UpdateStatus(_ context.Context, id uuid.UUID, status model.OutboxStatus, errMsg *string) error {
	r.S.mu.Lock()
	defer r.S.mu.Unlock()
	for _, event := range r.S.Events {
		if event.ID == id {
			event.Status = status
			event.Error = errMsg
			now := time.Now()
			event.ProcessedAt = &now
			return nil
		}
	}
	return apperror.NotFound("outbox event")
}
