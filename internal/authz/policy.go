// Package authz holds the static access-control policy. Every handler
// and service consults this one table instead of re-deriving role
// checks per endpoint.
package authz

import (
	"github.com/medgate/records-api/internal/model"
)

type Action string

const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

type Resource string

const (
	ResourceUser          Resource = "user"
	ResourcePatient       Resource = "patient"
	ResourceAppointment   Resource = "appointment"
	ResourceMedicalRecord Resource = "medical_record"
)

// Decision is the outcome of a policy lookup. PermitOwn grants the
// action only on records the actor owns, authored, or is assigned to;
// the caller derives the ownership fact through the scope resolver
// before acting on it.
type Decision int

const (
	Deny Decision = iota
	PermitOwn
	PermitAll
)

func (d Decision) Permitted() bool { return d != Deny }

// policy is the full role/resource/action table. Absent entries deny.
var policy = map[model.Role]map[Resource]map[Action]Decision{
	model.RoleAdmin: {
		ResourceUser:          {ActionRead: PermitAll, ActionDelete: PermitAll},
		ResourcePatient:       {ActionCreate: PermitAll, ActionRead: PermitAll, ActionUpdate: PermitAll, ActionDelete: PermitAll},
		ResourceAppointment:   {ActionCreate: PermitAll, ActionRead: PermitAll, ActionUpdate: PermitAll, ActionDelete: PermitAll},
		ResourceMedicalRecord: {ActionCreate: PermitAll, ActionRead: PermitAll, ActionUpdate: PermitAll, ActionDelete: PermitAll},
	},
	model.RoleManager: {
		ResourcePatient:       {ActionCreate: PermitAll, ActionRead: PermitAll, ActionUpdate: PermitAll, ActionDelete: PermitAll},
		ResourceAppointment:   {ActionCreate: PermitAll, ActionRead: PermitAll, ActionUpdate: PermitAll, ActionDelete: PermitAll},
		ResourceMedicalRecord: {ActionCreate: PermitAll, ActionRead: PermitAll, ActionUpdate: PermitAll, ActionDelete: PermitAll},
	},
	model.RoleStaff: {
		ResourcePatient:       {ActionCreate: PermitAll, ActionRead: PermitAll, ActionUpdate: PermitAll, ActionDelete: PermitAll},
		ResourceAppointment:   {ActionCreate: PermitAll, ActionRead: PermitAll, ActionUpdate: PermitAll, ActionDelete: PermitAll},
		ResourceMedicalRecord: {ActionCreate: PermitAll, ActionRead: PermitAll, ActionUpdate: PermitAll, ActionDelete: PermitAll},
	},
	model.RoleDoctor: {
		ResourcePatient:       {ActionRead: PermitOwn},
		ResourceAppointment:   {ActionCreate: PermitOwn, ActionRead: PermitOwn, ActionUpdate: PermitOwn},
		ResourceMedicalRecord: {ActionCreate: PermitOwn, ActionRead: PermitOwn, ActionUpdate: PermitOwn, ActionDelete: PermitOwn},
	},
	model.RolePatient: {
		ResourcePatient:       {ActionCreate: PermitOwn, ActionRead: PermitOwn, ActionUpdate: PermitOwn},
		ResourceAppointment:   {ActionCreate: PermitOwn, ActionRead: PermitOwn, ActionUpdate: PermitOwn},
		ResourceMedicalRecord: {ActionRead: PermitOwn},
	},
}

// Can resolves the policy for a role performing an action on a
// resource. Unknown roles, actions and resources deny.
func Can(role model.Role, action Action, resource Resource) Decision {
	byResource, ok := policy[role]
	if !ok {
		return Deny
	}
	byAction, ok := byResource[resource]
	if !ok {
		return Deny
	}
	return byAction[action]
}

// TrimPatientPatch clears the fields a non-privileged owner may not
// change. Disallowed fields are dropped silently, never rejected;
// identity, assignment and name stay with clinical staff.
func TrimPatientPatch(role model.Role, patch *model.UpdatePatientRequest) {
	if role.Privileged() {
		return
	}
	patch.UserID = nil
	patch.PrimaryDoctorID = nil
	patch.FirstName = nil
	patch.LastName = nil
	patch.DateOfBirth = nil
	patch.Gender = nil
}

// TrimAppointmentPatch clears the fields a non-privileged actor may
// not change. The assigned doctor keeps the doctor reference; the
// patient reference is always privileged-only.
func TrimAppointmentPatch(role model.Role, assignedDoctor bool, patch *model.UpdateAppointmentRequest) {
	if role.Privileged() {
		return
	}
	patch.PatientID = nil
	patch.Location = nil
	if !assignedDoctor {
		patch.DoctorID = nil
	}
}

// TrimMedicalRecordPatch clears the fields an authoring doctor may not
// change; reassignment of author or patient stays with clinical staff.
func TrimMedicalRecordPatch(role model.Role, patch *model.UpdateMedicalRecordRequest) {
	if role.Privileged() {
		return
	}
	patch.PatientID = nil
	patch.DoctorID = nil
}
