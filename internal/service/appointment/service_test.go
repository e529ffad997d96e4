package appointment

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medgate/records-api/internal/model"
	"github.com/medgate/records-api/internal/repository/repotest"
	"github.com/medgate/records-api/internal/service/event"
	"github.com/medgate/records-api/internal/service/scope"
	"github.com/medgate/records-api/pkg/apperror"
	"github.com/medgate/records-api/pkg/logger"
)

type fixture struct {
	svc     *Service
	store   *repotest.Store
	staff   *model.User
	doctor  *model.User
	patient *model.User
	profile *model.Patient
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := repotest.NewStore()
	patients := &repotest.PatientRepo{S: store}
	svc := NewService(
		&repotest.AppointmentRepo{S: store},
		patients,
		&repotest.UserRepo{S: store},
		scope.NewResolver(patients),
		event.NewRecorder(&repotest.OutboxRepo{S: store}, logger.NewLogger(nil)),
	)
	f := &fixture{svc: svc, store: store}
	f.staff = store.SeedUser("staff", "staff@example.com", model.RoleStaff)
	f.doctor = store.SeedUser("doc", "doc@example.com", model.RoleDoctor)
	f.patient = store.SeedUser("pat", "pat@example.com", model.RolePatient)
	f.profile = store.SeedPatient(&f.patient.ID, nil, "Pat", "Doe")
	return f
}

func claims(u *model.User) *model.TokenClaims {
	return &model.TokenClaims{UserID: u.ID, Username: u.Username, Email: u.Email, Role: u.Role}
}

func strPtr(s string) *string { return &s }

func (f *fixture) book(t *testing.T) *model.AppointmentDetail {
	t.Helper()
	detail, err := f.svc.Create(context.Background(), claims(f.staff), &model.CreateAppointmentRequest{
		PatientID:       &f.profile.ID,
		DoctorID:        &f.doctor.ID,
		AppointmentDate: time.Now().Add(24 * time.Hour),
	})
	require.NoError(t, err)
	return detail
}

func TestCreateByStaff(t *testing.T) {
	f := newFixture(t)

	detail := f.book(t)
	assert.Equal(t, model.AppointmentStatusScheduled, detail.Status)
	require.NotNil(t, detail.CreatedByID)
	assert.Equal(t, f.staff.ID, *detail.CreatedByID)
	require.NotNil(t, detail.Doctor)
	assert.Equal(t, "doc", detail.Doctor.Username)
	assert.Len(t, f.store.Events, 1)
}

func TestCreateByPatientBooksOwnProfile(t *testing.T) {
	f := newFixture(t)

	detail, err := f.svc.Create(context.Background(), claims(f.patient), &model.CreateAppointmentRequest{
		DoctorID:        &f.doctor.ID,
		AppointmentDate: time.Now().Add(24 * time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, f.profile.ID, detail.PatientID)
}

func TestCreateByPatientForOtherProfileForbidden(t *testing.T) {
	f := newFixture(t)
	other := f.store.SeedPatient(nil, nil, "Other", "One")

	_, err := f.svc.Create(context.Background(), claims(f.patient), &model.CreateAppointmentRequest{
		PatientID:       &other.ID,
		DoctorID:        &f.doctor.ID,
		AppointmentDate: time.Now().Add(24 * time.Hour),
	})
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.KindForbidden))
}

func TestCreateByPatientWithoutProfile(t *testing.T) {
	f := newFixture(t)
	orphan := f.store.SeedUser("orphan", "orphan@example.com", model.RolePatient)

	_, err := f.svc.Create(context.Background(), claims(orphan), &model.CreateAppointmentRequest{
		DoctorID:        &f.doctor.ID,
		AppointmentDate: time.Now().Add(24 * time.Hour),
	})
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))
}

func TestCreateByDoctorDefaultsSelf(t *testing.T) {
	f := newFixture(t)

	detail, err := f.svc.Create(context.Background(), claims(f.doctor), &model.CreateAppointmentRequest{
		PatientID:       &f.profile.ID,
		AppointmentDate: time.Now().Add(24 * time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, f.doctor.ID, detail.DoctorID)
}

func TestCreateValidatesDoctorReference(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	missing := uuid.New()
	_, err := f.svc.Create(ctx, claims(f.staff), &model.CreateAppointmentRequest{
		PatientID:       &f.profile.ID,
		DoctorID:        &missing,
		AppointmentDate: time.Now().Add(24 * time.Hour),
	})
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.KindNotFound))

	_, err = f.svc.Create(ctx, claims(f.staff), &model.CreateAppointmentRequest{
		PatientID:       &f.profile.ID,
		DoctorID:        &f.staff.ID,
		AppointmentDate: time.Now().Add(24 * time.Hour),
	})
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.KindWrongRole))
}

func TestCreateRejectsInvalidStatus(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(context.Background(), claims(f.staff), &model.CreateAppointmentRequest{
		PatientID:       &f.profile.ID,
		DoctorID:        &f.doctor.ID,
		AppointmentDate: time.Now().Add(24 * time.Hour),
		Status:          strPtr("rescheduled"),
	})
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))
}

func TestGetVisibility(t *testing.T) {
	f := newFixture(t)
	detail := f.book(t)
	ctx := context.Background()

	otherDoc := f.store.SeedUser("otherdoc", "otherdoc@example.com", model.RoleDoctor)
	stranger := f.store.SeedUser("stranger", "stranger@example.com", model.RolePatient)
	f.store.SeedPatient(&stranger.ID, nil, "Str", "Anger")

	_, err := f.svc.Get(ctx, claims(f.staff), detail.ID)
	assert.NoError(t, err)

	_, err = f.svc.Get(ctx, claims(f.doctor), detail.ID)
	assert.NoError(t, err)

	_, err = f.svc.Get(ctx, claims(f.patient), detail.ID)
	assert.NoError(t, err)

	_, err = f.svc.Get(ctx, claims(otherDoc), detail.ID)
	assert.True(t, apperror.IsKind(err, apperror.KindForbidden))

	_, err = f.svc.Get(ctx, claims(stranger), detail.ID)
	assert.True(t, apperror.IsKind(err, apperror.KindForbidden))
}

func TestListScoping(t *testing.T) {
	f := newFixture(t)
	f.book(t)
	ctx := context.Background()

	otherDoc := f.store.SeedUser("otherdoc", "otherdoc@example.com", model.RoleDoctor)
	otherProfile := f.store.SeedPatient(nil, nil, "Other", "One")
	_, err := f.svc.Create(ctx, claims(f.staff), &model.CreateAppointmentRequest{
		PatientID:       &otherProfile.ID,
		DoctorID:        &otherDoc.ID,
		AppointmentDate: time.Now().Add(48 * time.Hour),
	})
	require.NoError(t, err)

	all, err := f.svc.List(ctx, claims(f.staff))
	require.NoError(t, err)
	assert.Len(t, all, 2)

	docList, err := f.svc.List(ctx, claims(f.doctor))
	require.NoError(t, err)
	require.Len(t, docList, 1)
	assert.Equal(t, f.doctor.ID, docList[0].DoctorID)

	patList, err := f.svc.List(ctx, claims(f.patient))
	require.NoError(t, err)
	require.Len(t, patList, 1)
	assert.Equal(t, f.profile.ID, patList[0].PatientID)
}

func TestUpdateTrimsForPatientActor(t *testing.T) {
	f := newFixture(t)
	detail := f.book(t)
	otherDoc := f.store.SeedUser("otherdoc", "otherdoc@example.com", model.RoleDoctor)

	updated, err := f.svc.Update(context.Background(), claims(f.patient), detail.ID, &model.UpdateAppointmentRequest{
		DoctorID: &otherDoc.ID,
		Status:   strPtr("cancelled"),
		Reason:   strPtr("conflict"),
		Location: strPtr("room 4"),
	})
	require.NoError(t, err)
	// Reassignment and location changes are dropped for patient actors.
	assert.Equal(t, f.doctor.ID, updated.DoctorID)
	assert.Nil(t, updated.Location)
	assert.Equal(t, model.AppointmentStatusCancelled, updated.Status)
	require.NotNil(t, updated.Reason)
	assert.Equal(t, "conflict", *updated.Reason)
}

func TestUpdateAssignedDoctorMayReassign(t *testing.T) {
	f := newFixture(t)
	detail := f.book(t)
	otherDoc := f.store.SeedUser("otherdoc", "otherdoc@example.com", model.RoleDoctor)

	updated, err := f.svc.Update(context.Background(), claims(f.doctor), detail.ID, &model.UpdateAppointmentRequest{
		DoctorID: &otherDoc.ID,
		Status:   strPtr("completed"),
	})
	require.NoError(t, err)
	assert.Equal(t, otherDoc.ID, updated.DoctorID)
	assert.Equal(t, model.AppointmentStatusCompleted, updated.Status)
}

func TestUpdateUnassignedDoctorForbidden(t *testing.T) {
	f := newFixture(t)
	detail := f.book(t)
	otherDoc := f.store.SeedUser("otherdoc", "otherdoc@example.com", model.RoleDoctor)

	_, err := f.svc.Update(context.Background(), claims(otherDoc), detail.ID, &model.UpdateAppointmentRequest{
		Status: strPtr("completed"),
	})
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.KindForbidden))
}

func TestUpdatePrivilegedMayMoveAppointment(t *testing.T) {
	f := newFixture(t)
	detail := f.book(t)
	otherProfile := f.store.SeedPatient(nil, nil, "Other", "One")

	updated, err := f.svc.Update(context.Background(), claims(f.staff), detail.ID, &model.UpdateAppointmentRequest{
		PatientID: &otherProfile.ID,
		Location:  strPtr("room 9"),
	})
	require.NoError(t, err)
	assert.Equal(t, otherProfile.ID, updated.PatientID)
	require.NotNil(t, updated.Location)
	assert.Equal(t, "room 9", *updated.Location)
}

func TestUpdateRejectsInvalidStatus(t *testing.T) {
	f := newFixture(t)
	detail := f.book(t)

	_, err := f.svc.Update(context.Background(), claims(f.staff), detail.ID, &model.UpdateAppointmentRequest{
		Status: strPtr("paused"),
	})
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))
}

func TestDeletePrivilegedOnly(t *testing.T) {
	f := newFixture(t)
	detail := f.book(t)
	ctx := context.Background()

	assert.True(t, apperror.IsKind(f.svc.Delete(ctx, claims(f.doctor), detail.ID), apperror.KindForbidden))
	assert.True(t, apperror.IsKind(f.svc.Delete(ctx, claims(f.patient), detail.ID), apperror.KindForbidden))
	require.NoError(t, f.svc.Delete(ctx, claims(f.staff), detail.ID))

	err := f.svc.Delete(ctx, claims(f.staff), detail.ID)
	assert.True(t, apperror.IsKind(err, apperror.KindNotFound))
}
