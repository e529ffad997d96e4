package authz

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/medgate/records-api/internal/model"
)

func TestPolicyMatrix(t *testing.T) {
	tests := []struct {
		name     string
		role     model.Role
		action   Action
		resource Resource
		want     Decision
	}{
		{"admin reads users", model.RoleAdmin, ActionRead, ResourceUser, PermitAll},
		{"admin deletes users", model.RoleAdmin, ActionDelete, ResourceUser, PermitAll},
		{"manager cannot read users", model.RoleManager, ActionRead, ResourceUser, Deny},
		{"staff cannot delete users", model.RoleStaff, ActionDelete, ResourceUser, Deny},
		{"doctor cannot read users", model.RoleDoctor, ActionRead, ResourceUser, Deny},

		{"manager creates patients", model.RoleManager, ActionCreate, ResourcePatient, PermitAll},
		{"staff deletes patients", model.RoleStaff, ActionDelete, ResourcePatient, PermitAll},
		{"doctor reads assigned patients", model.RoleDoctor, ActionRead, ResourcePatient, PermitOwn},
		{"doctor cannot delete patients", model.RoleDoctor, ActionDelete, ResourcePatient, Deny},
		{"doctor cannot update patients", model.RoleDoctor, ActionUpdate, ResourcePatient, Deny},
		{"patient creates own profile", model.RolePatient, ActionCreate, ResourcePatient, PermitOwn},
		{"patient updates own profile", model.RolePatient, ActionUpdate, ResourcePatient, PermitOwn},
		{"patient cannot delete profile", model.RolePatient, ActionDelete, ResourcePatient, Deny},

		{"staff updates appointments", model.RoleStaff, ActionUpdate, ResourceAppointment, PermitAll},
		{"doctor updates own appointments", model.RoleDoctor, ActionUpdate, ResourceAppointment, PermitOwn},
		{"doctor cannot delete appointments", model.RoleDoctor, ActionDelete, ResourceAppointment, Deny},
		{"patient books own appointments", model.RolePatient, ActionCreate, ResourceAppointment, PermitOwn},
		{"patient cannot delete appointments", model.RolePatient, ActionDelete, ResourceAppointment, Deny},

		{"staff deletes medical records", model.RoleStaff, ActionDelete, ResourceMedicalRecord, PermitAll},
		{"doctor authors medical records", model.RoleDoctor, ActionCreate, ResourceMedicalRecord, PermitOwn},
		{"doctor deletes own records", model.RoleDoctor, ActionDelete, ResourceMedicalRecord, PermitOwn},
		{"patient reads own records", model.RolePatient, ActionRead, ResourceMedicalRecord, PermitOwn},
		{"patient cannot create records", model.RolePatient, ActionCreate, ResourceMedicalRecord, Deny},
		{"patient cannot update records", model.RolePatient, ActionUpdate, ResourceMedicalRecord, Deny},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Can(tt.role, tt.action, tt.resource))
		})
	}
}

func TestUnknownRoleDenies(t *testing.T) {
	for _, action := range []Action{ActionCreate, ActionRead, ActionUpdate, ActionDelete} {
		for _, resource := range []Resource{ResourceUser, ResourcePatient, ResourceAppointment, ResourceMedicalRecord} {
			assert.Equal(t, Deny, Can(model.Role("superuser"), action, resource))
			assert.Equal(t, Deny, Can(model.Role(""), action, resource))
		}
	}
}

func TestDecisionPermitted(t *testing.T) {
	assert.False(t, Deny.Permitted())
	assert.True(t, PermitOwn.Permitted())
	assert.True(t, PermitAll.Permitted())
}

func TestTrimPatientPatchDropsProtectedFields(t *testing.T) {
	first := "X"
	notes := "Y"
	patch := &model.UpdatePatientRequest{FirstName: &first, Notes: &notes}

	TrimPatientPatch(model.RolePatient, patch)

	assert.Nil(t, patch.FirstName, "identity fields are dropped for owners")
	assert.NotNil(t, patch.Notes, "self-service fields survive")
	assert.Equal(t, "Y", *patch.Notes)
}

func TestTrimPatientPatchKeepsEverythingForPrivileged(t *testing.T) {
	first := "X"
	patch := &model.UpdatePatientRequest{FirstName: &first}

	TrimPatientPatch(model.RoleStaff, patch)

	assert.NotNil(t, patch.FirstName)
}

func TestTrimAppointmentPatch(t *testing.T) {
	doctorID := uuid.New()
	patientID := uuid.New()
	status := "cancelled"

	patch := &model.UpdateAppointmentRequest{
		PatientID: &patientID,
		DoctorID:  &doctorID,
		Status:    &status,
	}
	TrimAppointmentPatch(model.RolePatient, false, patch)
	assert.Nil(t, patch.PatientID)
	assert.Nil(t, patch.DoctorID)
	assert.NotNil(t, patch.Status)

	patch = &model.UpdateAppointmentRequest{DoctorID: &doctorID}
	TrimAppointmentPatch(model.RoleDoctor, true, patch)
	assert.NotNil(t, patch.DoctorID, "assigned doctor keeps the doctor reference")
}
