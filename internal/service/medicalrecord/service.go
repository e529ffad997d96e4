package medicalrecord

import (
	"context"

	"github.com/google/uuid"

	"github.com/medgate/records-api/internal/authz"
	"github.com/medgate/records-api/internal/model"
	"github.com/medgate/records-api/internal/repository"
	"github.com/medgate/records-api/internal/service/event"
	"github.com/medgate/records-api/internal/service/scope"
	"github.com/medgate/records-api/pkg/apperror"
)

type Service struct {
	records  repository.MedicalRecordRepository
	patients repository.PatientRepository
	users    repository.UserRepository
	scopes   *scope.Resolver
	recorder *event.Recorder
}

func NewService(
	records repository.MedicalRecordRepository,
	patients repository.PatientRepository,
	users repository.UserRepository,
	scopes *scope.Resolver,
	recorder *event.Recorder,
) *Service {
	return &Service{
		records:  records,
		patients: patients,
		users:    users,
		scopes:   scopes,
		recorder: recorder,
	}
}

// Create writes a clinical note. Only clinical roles may author;
// a doctor always authors as themselves.
func (s *Service) Create(ctx context.Context, actor *model.TokenClaims, req *model.CreateMedicalRecordRequest) (*model.MedicalRecordDetail, error) {
	if !authz.Can(actor.Role, authz.ActionCreate, authz.ResourceMedicalRecord).Permitted() {
		return nil, apperror.Forbidden()
	}

	doctorID := req.DoctorID
	if actor.Role == model.RoleDoctor {
		id := actor.UserID
		doctorID = &id
	}
	if doctorID == nil {
		return nil, apperror.Validation("doctor is required")
	}
	if err := s.ensureDoctor(ctx, *doctorID); err != nil {
		return nil, err
	}

	if req.PatientID == nil {
		return nil, apperror.Validation("patient is required")
	}
	if _, err := s.patients.Get(ctx, *req.PatientID); err != nil {
		return nil, err
	}

	createdBy := actor.UserID
	record := &model.MedicalRecord{
		PatientID:     *req.PatientID,
		DoctorID:      doctorID,
		CreatedByID:   &createdBy,
		Title:         req.Title,
		VisitDate:     req.VisitDate,
		Description:   req.Description,
		Diagnosis:     req.Diagnosis,
		TreatmentPlan: req.TreatmentPlan,
		FollowUpDate:  req.FollowUpDate,
		Attachments:   req.Attachments,
	}
	if err := s.records.Create(ctx, record); err != nil {
		return nil, err
	}

	detail, err := s.records.GetDetail(ctx, record.ID)
	if err != nil {
		return nil, err
	}

	s.recorder.Record(ctx, event.TypeRecordCreated, detail.MedicalRecord)
	return detail, nil
}

func (s *Service) Get(ctx context.Context, actor *model.TokenClaims, id uuid.UUID) (*model.MedicalRecordDetail, error) {
	if !authz.Can(actor.Role, authz.ActionRead, authz.ResourceMedicalRecord).Permitted() {
		return nil, apperror.Forbidden()
	}

	detail, err := s.records.GetDetail(ctx, id)
	if err != nil {
		return nil, err
	}

	if !canView(actor, detail) {
		return nil, apperror.Forbidden()
	}

	return detail, nil
}

func (s *Service) List(ctx context.Context, actor *model.TokenClaims) ([]*model.MedicalRecordDetail, error) {
	if !authz.Can(actor.Role, authz.ActionRead, authz.ResourceMedicalRecord).Permitted() {
		return nil, apperror.Forbidden()
	}

	sc, err := s.scopes.Resolve(ctx, actor)
	if err != nil {
		return nil, err
	}

	return s.records.List(ctx, sc)
}

// Update is limited to privileged roles and the authoring doctor.
func (s *Service) Update(ctx context.Context, actor *model.TokenClaims, id uuid.UUID, req *model.UpdateMedicalRecordRequest) (*model.MedicalRecordDetail, error) {
	detail, err := s.records.GetDetail(ctx, id)
	if err != nil {
		return nil, err
	}

	if !canManage(actor, detail) {
		return nil, apperror.Forbidden()
	}

	authz.TrimMedicalRecordPatch(actor.Role, req)

	if req.DoctorID != nil {
		if err := s.ensureDoctor(ctx, *req.DoctorID); err != nil {
			return nil, err
		}
	}
	if req.PatientID != nil {
		if _, err := s.patients.Get(ctx, *req.PatientID); err != nil {
			return nil, err
		}
	}

	record := detail.MedicalRecord
	applyPatch(&record, req)

	if err := s.records.Update(ctx, &record); err != nil {
		return nil, err
	}

	updated, err := s.records.GetDetail(ctx, id)
	if err != nil {
		return nil, err
	}

	s.recorder.Record(ctx, event.TypeRecordUpdated, updated.MedicalRecord)
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, actor *model.TokenClaims, id uuid.UUID) error {
	detail, err := s.records.GetDetail(ctx, id)
	if err != nil {
		return err
	}

	if !canManage(actor, detail) {
		return apperror.Forbidden()
	}

	if err := s.records.Delete(ctx, id); err != nil {
		return err
	}

	s.recorder.Record(ctx, event.TypeRecordDeleted, map[string]interface{}{"id": id})
	return nil
}

func canView(actor *model.TokenClaims, detail *model.MedicalRecordDetail) bool {
	switch {
	case actor.Role.Privileged():
		return true
	case actor.Role == model.RoleDoctor:
		return detail.DoctorID != nil && *detail.DoctorID == actor.UserID
	case actor.Role == model.RolePatient:
		return detail.Patient != nil && detail.Patient.UserID != nil &&
			*detail.Patient.UserID == actor.UserID
	}
	return false
}

func canManage(actor *model.TokenClaims, detail *model.MedicalRecordDetail) bool {
	if actor.Role.Privileged() {
		return true
	}
	return actor.Role == model.RoleDoctor &&
		detail.DoctorID != nil && *detail.DoctorID == actor.UserID
}

func (s *Service) ensureDoctor(ctx context.Context, id uuid.UUID) error {
	doctor, err := s.users.Get(ctx, id)
	if err != nil {
		if apperror.IsKind(err, apperror.KindNotFound) {
			return apperror.NotFound("doctor")
		}
		return err
	}
	if doctor.Role != model.RoleDoctor {
		return apperror.WrongRole("assigned doctor must have the doctor role")
	}
	return nil
}

func applyPatch(record *model.MedicalRecord, req *model.UpdateMedicalRecordRequest) {
	if req.PatientID != nil {
		record.PatientID = *req.PatientID
	}
	if req.DoctorID != nil {
		record.DoctorID = req.DoctorID
	}
	if req.Title != nil {
		record.Title = *req.Title
	}
	if req.VisitDate != nil {
		record.VisitDate = req.VisitDate
	}
	if req.Description != nil {
		record.Description = req.Description
	}
	if req.Diagnosis != nil {
		record.Diagnosis = req.Diagnosis
	}
	if req.TreatmentPlan != nil {
		record.TreatmentPlan = req.TreatmentPlan
	}
	if req.FollowUpDate != nil {
		record.FollowUpDate = req.FollowUpDate
	}
	if req.Attachments != nil {
		record.Attachments = req.Attachments
	}
}
