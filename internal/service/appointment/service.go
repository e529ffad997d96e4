package appointment

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
	appointments repository.AppointmentRepository
	patients     repository.PatientRepository
	users        repository.UserRepository
	scopes       *scope.Resolver
	recorder     *event.Recorder
}

func NewService(
	appointments repository.AppointmentRepository,
	patients repository.PatientRepository,
	users repository.UserRepository,
	scopes *scope.Resolver,
	recorder *event.Recorder,
) *Service {
	return &Service{
		appointments: appointments,
		patients:     patients,
		users:        users,
		scopes:       scopes,
		recorder:     recorder,
	}
}

// Create books an appointment. A patient books only for their own
// profile, a doctor defaults the doctor reference to themselves.
func (s *Service) Create(ctx context.Context, actor *model.TokenClaims, req *model.CreateAppointmentRequest) (*model.AppointmentDetail, error) {
	if !authz.Can(actor.Role, authz.ActionCreate, authz.ResourceAppointment).Permitted() {
		return nil, apperror.Forbidden()
	}

	patientID := req.PatientID
	if actor.Role == model.RolePatient {
		profile, err := s.patients.GetByUserID(ctx, actor.UserID)
		if err != nil {
			if apperror.IsKind(err, apperror.KindNotFound) {
				return nil, apperror.Validation("create a patient profile before booking appointments")
			}
			return nil, err
		}
		if req.PatientID != nil && *req.PatientID != profile.ID {
			return nil, apperror.Forbidden()
		}
		patientID = &profile.ID
	}
	if patientID == nil {
		return nil, apperror.Validation("patient is required")
	}
	if _, err := s.patients.Get(ctx, *patientID); err != nil {
		return nil, err
	}

	doctorID := req.DoctorID
	if actor.Role == model.RoleDoctor && doctorID == nil {
		id := actor.UserID
		doctorID = &id
	}
	if doctorID == nil {
		return nil, apperror.Validation("doctor is required")
	}
	if err := ensureDoctor(ctx, s.users, *doctorID); err != nil {
		return nil, err
	}

	status := model.AppointmentStatusScheduled
	if req.Status != nil {
		status = model.AppointmentStatus(*req.Status)
		if !status.Valid() {
			return nil, apperror.Validation("invalid appointment status")
		}
	}

	createdBy := actor.UserID
	appointment := &model.Appointment{
		PatientID:       *patientID,
		DoctorID:        *doctorID,
		CreatedByID:     &createdBy,
		AppointmentDate: req.AppointmentDate,
		Status:          status,
		Reason:          req.Reason,
		Notes:           req.Notes,
		Location:        req.Location,
	}
	if err := s.appointments.Create(ctx, appointment); err != nil {
		return nil, err
	}

	detail, err := s.appointments.GetDetail(ctx, appointment.ID)
	if err != nil {
		return nil, err
	}

	s.recorder.Record(ctx, event.TypeAppointmentCreated, detail.Appointment)
	return detail, nil
}

func (s *Service) Get(ctx context.Context, actor *model.TokenClaims, id uuid.UUID) (*model.AppointmentDetail, error) {
	if !authz.Can(actor.Role, authz.ActionRead, authz.ResourceAppointment).Permitted() {
		return nil, apperror.Forbidden()
	}

	detail, err := s.appointments.GetDetail(ctx, id)
	if err != nil {
		return nil, err
	}

	if !canView(actor, detail) {
		return nil, apperror.Forbidden()
	}

	return detail, nil
}

func (s *Service) List(ctx context.Context, actor *model.TokenClaims) ([]*model.AppointmentDetail, error) {
	if !authz.Can(actor.Role, authz.ActionRead, authz.ResourceAppointment).Permitted() {
		return nil, apperror.Forbidden()
	}

	sc, err := s.scopes.Resolve(ctx, actor)
	if err != nil {
		return nil, err
	}

	return s.appointments.List(ctx, sc)
}

func (s *Service) Update(ctx context.Context, actor *model.TokenClaims, id uuid.UUID, req *model.UpdateAppointmentRequest) (*model.AppointmentDetail, error) {
	detail, err := s.appointments.GetDetail(ctx, id)
	if err != nil {
		return nil, err
	}

	privileged := actor.Role.Privileged()
	assignedDoctor := actor.Role == model.RoleDoctor && detail.DoctorID == actor.UserID
	owningPatient := actor.Role == model.RolePatient &&
		detail.Patient != nil && detail.Patient.UserID != nil &&
		*detail.Patient.UserID == actor.UserID

	if !privileged && !assignedDoctor && !owningPatient {
		return nil, apperror.Forbidden()
	}

	if req.Status != nil && !model.AppointmentStatus(*req.Status).Valid() {
		return nil, apperror.Validation("invalid appointment status")
	}

	authz.TrimAppointmentPatch(actor.Role, assignedDoctor, req)

	if req.PatientID != nil {
		if _, err := s.patients.Get(ctx, *req.PatientID); err != nil {
			return nil, err
		}
	}
	if req.DoctorID != nil {
		if err := ensureDoctor(ctx, s.users, *req.DoctorID); err != nil {
			return nil, err
		}
	}

	appointment := detail.Appointment
	applyPatch(&appointment, req)

	if err := s.appointments.Update(ctx, &appointment); err != nil {
		return nil, err
	}

	updated, err := s.appointments.GetDetail(ctx, id)
	if err != nil {
		return nil, err
	}

	s.recorder.Record(ctx, event.TypeAppointmentUpdated, updated.Appointment)
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, actor *model.TokenClaims, id uuid.UUID) error {
	if !authz.Can(actor.Role, authz.ActionDelete, authz.ResourceAppointment).Permitted() {
		return apperror.Forbidden()
	}

	if _, err := s.appointments.Get(ctx, id); err != nil {
		return err
	}
	if err := s.appointments.Delete(ctx, id); err != nil {
		return err
	}

	s.recorder.Record(ctx, event.TypeAppointmentDeleted, map[string]interface{}{"id": id})
	return nil
}

func canView(actor *model.TokenClaims, detail *model.AppointmentDetail) bool {
	switch {
	case actor.Role.Privileged():
		return true
	case actor.Role == model.RoleDoctor:
		return detail.DoctorID == actor.UserID
	case actor.Role == model.RolePatient:
		return detail.Patient != nil && detail.Patient.UserID != nil &&
			*detail.Patient.UserID == actor.UserID
	}
	return false
}

func ensureDoctor(ctx context.Context, users repository.UserRepository, id uuid.UUID) error {
	doctor, err := users.Get(ctx, id)
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

func applyPatch(appointment *model.Appointment, req *model.UpdateAppointmentRequest) {
	if req.PatientID != nil {
		appointment.PatientID = *req.PatientID
	}
	if req.DoctorID != nil {
		appointment.DoctorID = *req.DoctorID
	}
	if req.AppointmentDate != nil {
		appointment.AppointmentDate = *req.AppointmentDate
	}
	if req.Status != nil {
		appointment.Status = model.AppointmentStatus(*req.Status)
	}
	if req.Reason != nil {
		appointment.Reason = req.Reason
	}
	if req.Notes != nil {
		appointment.Notes = req.Notes
	}
	if req.Location != nil {
		appointment.Location = req.Location
	}
}
