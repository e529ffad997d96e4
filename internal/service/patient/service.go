package patient

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
	patients repository.PatientRepository
	users    repository.UserRepository
	scopes   *scope.Resolver
	recorder *event.Recorder
}

func NewService(
	patients repository.PatientRepository,
	users repository.UserRepository,
	scopes *scope.Resolver,
	recorder *event.Recorder,
) *Service {
	return &Service{
		patients: patients,
		users:    users,
		scopes:   scopes,
		recorder: recorder,
	}
}

func (s *Service) Create(ctx context.Context, actor *model.TokenClaims, req *model.CreatePatientRequest) (*model.PatientDetail, error) {
	if !authz.Can(actor.Role, authz.ActionCreate, authz.ResourcePatient).Permitted() {
		return nil, apperror.Forbidden()
	}

	patient := &model.Patient{
		PrimaryDoctorID:       req.PrimaryDoctorID,
		FirstName:             req.FirstName,
		LastName:              req.LastName,
		DateOfBirth:           req.DateOfBirth,
		Gender:                req.Gender,
		ContactNumber:         req.ContactNumber,
		Email:                 req.Email,
		Address:               req.Address,
		EmergencyContactName:  req.EmergencyContactName,
		EmergencyContactPhone: req.EmergencyContactPhone,
		MedicalHistory:        req.MedicalHistory,
		Notes:                 req.Notes,
	}

	if actor.Role == model.RolePatient {
		if req.UserID != nil && *req.UserID != actor.UserID {
			return nil, apperror.Forbidden()
		}
		if _, err := s.patients.GetByUserID(ctx, actor.UserID); err == nil {
			return nil, apperror.Validation("profile already exists")
		} else if !apperror.IsKind(err, apperror.KindNotFound) {
			return nil, err
		}
		userID := actor.UserID
		patient.UserID = &userID
	} else if req.UserID != nil {
		if err := s.ensurePatientUser(ctx, *req.UserID); err != nil {
			return nil, err
		}
		patient.UserID = req.UserID
	}

	if patient.PrimaryDoctorID != nil {
		if err := s.ensureDoctor(ctx, *patient.PrimaryDoctorID); err != nil {
			return nil, err
		}
	}

	if err := s.patients.Create(ctx, patient); err != nil {
		return nil, err
	}

	detail, err := s.patients.GetDetail(ctx, patient.ID)
	if err != nil {
		return nil, err
	}

	s.recorder.Record(ctx, event.TypePatientCreated, detail.Patient)
	return detail, nil
}

func (s *Service) Get(ctx context.Context, actor *model.TokenClaims, id uuid.UUID) (*model.PatientDetail, error) {
	if !authz.Can(actor.Role, authz.ActionRead, authz.ResourcePatient).Permitted() {
		return nil, apperror.Forbidden()
	}

	detail, err := s.patients.GetDetail(ctx, id)
	if err != nil {
		return nil, err
	}

	if actor.Role == model.RolePatient &&
		detail.UserID != nil && *detail.UserID != actor.UserID {
		return nil, apperror.Forbidden()
	}
	if actor.Role == model.RoleDoctor &&
		detail.PrimaryDoctorID != nil && *detail.PrimaryDoctorID != actor.UserID {
		return nil, apperror.Forbidden()
	}

	return detail, nil
}

// List returns every profile for clinical roles and exactly the own
// profile for a patient actor.
func (s *Service) List(ctx context.Context, actor *model.TokenClaims) ([]*model.PatientDetail, error) {
	if !authz.Can(actor.Role, authz.ActionRead, authz.ResourcePatient).Permitted() {
		return nil, apperror.Forbidden()
	}

	sc, err := s.scopes.Resolve(ctx, actor)
	if err != nil {
		return nil, err
	}

	// Doctor visibility on profiles is checked per record, not
	// row-filtered.
	if sc.DoctorID != nil {
		sc = model.UnrestrictedScope()
	}

	return s.patients.List(ctx, sc)
}

func (s *Service) Update(ctx context.Context, actor *model.TokenClaims, id uuid.UUID, req *model.UpdatePatientRequest) (*model.PatientDetail, error) {
	patient, err := s.patients.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	privileged := actor.Role.Privileged()
	owner := patient.UserID != nil && *patient.UserID == actor.UserID

	switch {
	case privileged:
	case actor.Role == model.RolePatient && owner:
	default:
		return nil, apperror.Forbidden()
	}

	authz.TrimPatientPatch(actor.Role, req)

	if req.UserID != nil {
		if err := s.ensurePatientUser(ctx, *req.UserID); err != nil {
			return nil, err
		}
	}
	if req.PrimaryDoctorID != nil {
		if err := s.ensureDoctor(ctx, *req.PrimaryDoctorID); err != nil {
			return nil, err
		}
	}

	applyPatch(patient, req)

	if err := s.patients.Update(ctx, patient); err != nil {
		return nil, err
	}

	detail, err := s.patients.GetDetail(ctx, id)
	if err != nil {
		return nil, err
	}

	s.recorder.Record(ctx, event.TypePatientUpdated, detail.Patient)
	return detail, nil
}

func (s *Service) Delete(ctx context.Context, actor *model.TokenClaims, id uuid.UUID) error {
	if !authz.Can(actor.Role, authz.ActionDelete, authz.ResourcePatient).Permitted() {
		return apperror.Forbidden()
	}

	if err := s.patients.Delete(ctx, id); err != nil {
		return err
	}

	s.recorder.Record(ctx, event.TypePatientDeleted, map[string]interface{}{"id": id})
	return nil
}

func (s *Service) ensureDoctor(ctx context.Context, id uuid.UUID) error {
	doctor, err := s.users.Get(ctx, id)
	if err != nil {
		if apperror.IsKind(err, apperror.KindNotFound) {
			return apperror.NotFound("primary doctor")
		}
		return err
	}
	if doctor.Role != model.RoleDoctor {
		return apperror.WrongRole("assigned primary doctor must have the doctor role")
	}
	return nil
}

func (s *Service) ensurePatientUser(ctx context.Context, id uuid.UUID) error {
	user, err := s.users.Get(ctx, id)
	if err != nil {
		if apperror.IsKind(err, apperror.KindNotFound) {
			return apperror.NotFound("linked user")
		}
		return err
	}
	if user.Role != model.RolePatient {
		return apperror.WrongRole("linked user must have the patient role")
	}
	if _, err := s.patients.GetByUserID(ctx, id); err == nil {
		return apperror.Conflict("linked user already has a patient profile")
	} else if !apperror.IsKind(err, apperror.KindNotFound) {
		return err
	}
	return nil
}

func applyPatch(patient *model.Patient, req *model.UpdatePatientRequest) {
	if req.UserID != nil {
		patient.UserID = req.UserID
	}
	if req.PrimaryDoctorID != nil {
		patient.PrimaryDoctorID = req.PrimaryDoctorID
	}
	if req.FirstName != nil {
		patient.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		patient.LastName = *req.LastName
	}
	if req.DateOfBirth != nil {
		patient.DateOfBirth = req.DateOfBirth
	}
	if req.Gender != nil {
		patient.Gender = req.Gender
	}
	if req.ContactNumber != nil {
		patient.ContactNumber = req.ContactNumber
	}
	if req.Email != nil {
		patient.Email = req.Email
	}
	if req.Address != nil {
		patient.Address = req.Address
	}
	if req.EmergencyContactName != nil {
		patient.EmergencyContactName = req.EmergencyContactName
	}
	if req.EmergencyContactPhone != nil {
		patient.EmergencyContactPhone = req.EmergencyContactPhone
	}
	if req.MedicalHistory != nil {
		patient.MedicalHistory = req.MedicalHistory
	}
	if req.Notes != nil {
		patient.Notes = req.Notes
	}
}
