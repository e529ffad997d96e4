package patient

import (
	"context"
	"testing"

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

func newTestService(t *testing.T) (*Service, *repotest.Store) {
	t.Helper()
	store := repotest.NewStore()
	patients := &repotest.PatientRepo{S: store}
	users := &repotest.UserRepo{S: store}
	recorder := event.NewRecorder(&repotest.OutboxRepo{S: store}, logger.NewLogger(nil))
	svc := NewService(patients, users, scope.NewResolver(patients), recorder)
	return svc, store
}

func claims(u *model.User) *model.TokenClaims {
	return &model.TokenClaims{UserID: u.ID, Username: u.Username, Email: u.Email, Role: u.Role}
}

func strPtr(s string) *string { return &s }

func TestCreateByStaff(t *testing.T) {
	svc, store := newTestService(t)
	staff := store.SeedUser("staff", "staff@example.com", model.RoleStaff)

	detail, err := svc.Create(context.Background(), claims(staff), &model.CreatePatientRequest{
		FirstName: "John", LastName: "Doe",
	})
	require.NoError(t, err)
	assert.Equal(t, "John", detail.FirstName)
	assert.Nil(t, detail.UserID)
	assert.Len(t, store.Events, 1)
	assert.Equal(t, event.TypePatientCreated, store.Events[0].EventType)
}

func TestCreateByDoctorForbidden(t *testing.T) {
	svc, store := newTestService(t)
	doctor := store.SeedUser("doc", "doc@example.com", model.RoleDoctor)

	_, err := svc.Create(context.Background(), claims(doctor), &model.CreatePatientRequest{
		FirstName: "John", LastName: "Doe",
	})
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.KindForbidden))
}

func TestCreateByPatientLinksSelf(t *testing.T) {
	svc, store := newTestService(t)
	patient := store.SeedUser("pat", "pat@example.com", model.RolePatient)

	detail, err := svc.Create(context.Background(), claims(patient), &model.CreatePatientRequest{
		FirstName: "Pat", LastName: "Doe",
	})
	require.NoError(t, err)
	require.NotNil(t, detail.UserID)
	assert.Equal(t, patient.ID, *detail.UserID)
}

func TestCreateByPatientForAnotherUserForbidden(t *testing.T) {
	svc, store := newTestService(t)
	patient := store.SeedUser("pat", "pat@example.com", model.RolePatient)
	other := store.SeedUser("other", "other@example.com", model.RolePatient)

	_, err := svc.Create(context.Background(), claims(patient), &model.CreatePatientRequest{
		UserID: &other.ID, FirstName: "Pat", LastName: "Doe",
	})
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.KindForbidden))
}

func TestCreateByPatientSecondProfileRejected(t *testing.T) {
	svc, store := newTestService(t)
	patient := store.SeedUser("pat", "pat@example.com", model.RolePatient)
	store.SeedPatient(&patient.ID, nil, "Pat", "Doe")

	_, err := svc.Create(context.Background(), claims(patient), &model.CreatePatientRequest{
		FirstName: "Pat", LastName: "Doe",
	})
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))
}

func TestCreateValidatesLinkedUser(t *testing.T) {
	svc, store := newTestService(t)
	staff := store.SeedUser("staff", "staff@example.com", model.RoleStaff)
	doctor := store.SeedUser("doc", "doc@example.com", model.RoleDoctor)

	missing := uuid.New()
	_, err := svc.Create(context.Background(), claims(staff), &model.CreatePatientRequest{
		UserID: &missing, FirstName: "A", LastName: "B",
	})
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.KindNotFound))

	_, err = svc.Create(context.Background(), claims(staff), &model.CreatePatientRequest{
		UserID: &doctor.ID, FirstName: "A", LastName: "B",
	})
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.KindWrongRole))

	linked := store.SeedUser("linked", "linked@example.com", model.RolePatient)
	store.SeedPatient(&linked.ID, nil, "L", "D")
	_, err = svc.Create(context.Background(), claims(staff), &model.CreatePatientRequest{
		UserID: &linked.ID, FirstName: "A", LastName: "B",
	})
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.KindConflict))
}

func TestCreateValidatesPrimaryDoctor(t *testing.T) {
	svc, store := newTestService(t)
	staff := store.SeedUser("staff", "staff@example.com", model.RoleStaff)
	notDoctor := store.SeedUser("nurse", "nurse@example.com", model.RoleStaff)

	_, err := svc.Create(context.Background(), claims(staff), &model.CreatePatientRequest{
		PrimaryDoctorID: &notDoctor.ID, FirstName: "A", LastName: "B",
	})
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.KindWrongRole))

	missing := uuid.New()
	_, err = svc.Create(context.Background(), claims(staff), &model.CreatePatientRequest{
		PrimaryDoctorID: &missing, FirstName: "A", LastName: "B",
	})
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.KindNotFound))
}

func TestGetVisibility(t *testing.T) {
	svc, store := newTestService(t)
	owner := store.SeedUser("owner", "owner@example.com", model.RolePatient)
	stranger := store.SeedUser("stranger", "stranger@example.com", model.RolePatient)
	primary := store.SeedUser("primary", "primary@example.com", model.RoleDoctor)
	otherDoc := store.SeedUser("otherdoc", "otherdoc@example.com", model.RoleDoctor)
	staff := store.SeedUser("staff", "staff@example.com", model.RoleStaff)

	linked := store.SeedPatient(&owner.ID, &primary.ID, "Linked", "Patient")
	unlinked := store.SeedPatient(nil, nil, "Walkin", "Patient")
	ctx := context.Background()

	_, err := svc.Get(ctx, claims(staff), linked.ID)
	assert.NoError(t, err)

	_, err = svc.Get(ctx, claims(owner), linked.ID)
	assert.NoError(t, err)

	_, err = svc.Get(ctx, claims(stranger), linked.ID)
	assert.True(t, apperror.IsKind(err, apperror.KindForbidden))

	// Unlinked profiles are readable by any patient actor.
	_, err = svc.Get(ctx, claims(stranger), unlinked.ID)
	assert.NoError(t, err)

	_, err = svc.Get(ctx, claims(primary), linked.ID)
	assert.NoError(t, err)

	_, err = svc.Get(ctx, claims(otherDoc), linked.ID)
	assert.True(t, apperror.IsKind(err, apperror.KindForbidden))

	// No primary doctor set means any doctor may read.
	_, err = svc.Get(ctx, claims(otherDoc), unlinked.ID)
	assert.NoError(t, err)
}

func TestListScoping(t *testing.T) {
	svc, store := newTestService(t)
	owner := store.SeedUser("owner", "owner@example.com", model.RolePatient)
	doctor := store.SeedUser("doc", "doc@example.com", model.RoleDoctor)
	staff := store.SeedUser("staff", "staff@example.com", model.RoleStaff)

	own := store.SeedPatient(&owner.ID, nil, "Own", "Profile")
	store.SeedPatient(nil, nil, "Other", "One")
	store.SeedPatient(nil, &doctor.ID, "Other", "Two")
	ctx := context.Background()

	all, err := svc.List(ctx, claims(staff))
	require.NoError(t, err)
	assert.Len(t, all, 3)

	// Doctors see the full roster; assignment restricts detail reads
	// only.
	docList, err := svc.List(ctx, claims(doctor))
	require.NoError(t, err)
	assert.Len(t, docList, 3)

	mine, err := svc.List(ctx, claims(owner))
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, own.ID, mine[0].ID)
}

func TestListPatientWithoutProfile(t *testing.T) {
	svc, store := newTestService(t)
	patient := store.SeedUser("pat", "pat@example.com", model.RolePatient)

	_, err := svc.List(context.Background(), claims(patient))
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.KindNotFound))
}

func TestUpdateOwnerDropsRestrictedFields(t *testing.T) {
	svc, store := newTestService(t)
	owner := store.SeedUser("owner", "owner@example.com", model.RolePatient)
	doctor := store.SeedUser("doc", "doc@example.com", model.RoleDoctor)
	profile := store.SeedPatient(&owner.ID, nil, "Before", "Patient")

	detail, err := svc.Update(context.Background(), claims(owner), profile.ID, &model.UpdatePatientRequest{
		FirstName:       strPtr("After"),
		PrimaryDoctorID: &doctor.ID,
		Notes:           strPtr("prefers mornings"),
	})
	require.NoError(t, err)
	// Restricted fields are dropped silently, the rest applies.
	assert.Equal(t, "Before", detail.FirstName)
	assert.Nil(t, detail.PrimaryDoctorID)
	require.NotNil(t, detail.Notes)
	assert.Equal(t, "prefers mornings", *detail.Notes)
}

func TestUpdateByStranger(t *testing.T) {
	svc, store := newTestService(t)
	owner := store.SeedUser("owner", "owner@example.com", model.RolePatient)
	stranger := store.SeedUser("stranger", "stranger@example.com", model.RolePatient)
	doctor := store.SeedUser("doc", "doc@example.com", model.RoleDoctor)
	profile := store.SeedPatient(&owner.ID, nil, "A", "B")

	_, err := svc.Update(context.Background(), claims(stranger), profile.ID, &model.UpdatePatientRequest{
		Notes: strPtr("x"),
	})
	assert.True(t, apperror.IsKind(err, apperror.KindForbidden))

	_, err = svc.Update(context.Background(), claims(doctor), profile.ID, &model.UpdatePatientRequest{
		Notes: strPtr("x"),
	})
	assert.True(t, apperror.IsKind(err, apperror.KindForbidden))
}

func TestUpdateByAdminFullAccess(t *testing.T) {
	svc, store := newTestService(t)
	admin := store.SeedUser("admin", "admin@example.com", model.RoleAdmin)
	doctor := store.SeedUser("doc", "doc@example.com", model.RoleDoctor)
	profile := store.SeedPatient(nil, nil, "Before", "Patient")

	detail, err := svc.Update(context.Background(), claims(admin), profile.ID, &model.UpdatePatientRequest{
		FirstName:       strPtr("After"),
		PrimaryDoctorID: &doctor.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, "After", detail.FirstName)
	require.NotNil(t, detail.PrimaryDoctorID)
	assert.Equal(t, doctor.ID, *detail.PrimaryDoctorID)
	require.NotNil(t, detail.PrimaryDoctor)
	assert.Equal(t, "doc", detail.PrimaryDoctor.Username)
}

func TestDeleteCascades(t *testing.T) {
	svc, store := newTestService(t)
	admin := store.SeedUser("admin", "admin@example.com", model.RoleAdmin)
	doctor := store.SeedUser("doc", "doc@example.com", model.RoleDoctor)
	profile := store.SeedPatient(nil, nil, "Gone", "Soon")

	appointments := &repotest.AppointmentRepo{S: store}
	require.NoError(t, appointments.Create(context.Background(), &model.Appointment{
		PatientID: profile.ID, DoctorID: doctor.ID, Status: model.AppointmentStatusScheduled,
	}))

	err := svc.Delete(context.Background(), claims(admin), profile.ID)
	require.NoError(t, err)
	assert.Empty(t, store.Patients)
	assert.Empty(t, store.Appointments)
}

func TestDeleteForbiddenForPatientAndDoctor(t *testing.T) {
	svc, store := newTestService(t)
	doctor := store.SeedUser("doc", "doc@example.com", model.RoleDoctor)
	owner := store.SeedUser("owner", "owner@example.com", model.RolePatient)
	profile := store.SeedPatient(&owner.ID, nil, "Stays", "Put")
	ctx := context.Background()

	assert.True(t, apperror.IsKind(svc.Delete(ctx, claims(doctor), profile.ID), apperror.KindForbidden))
	assert.True(t, apperror.IsKind(svc.Delete(ctx, claims(owner), profile.ID), apperror.KindForbidden))
	assert.Len(t, store.Patients, 1)
}
