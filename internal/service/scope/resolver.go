package scope

import (
	"context"

	"github.com/medgate/records-api/internal/model"
	"github.com/medgate/records-api/internal/repository"
	"github.com/medgate/records-api/pkg/apperror"
)

// Resolver derives the row filter an actor operates under. It runs
// before any ownership check, because ownership facts for a patient
// actor come from their profile, not their account.
type Resolver struct {
	patients repository.PatientRepository
}

func NewResolver(patients repository.PatientRepository) *Resolver {
	return &Resolver{patients: patients}
}

// Resolve returns the access scope for the actor. A patient without a
// profile gets a not-found error, never an empty scope.
func (r *Resolver) Resolve(ctx context.Context, actor *model.TokenClaims) (*model.AccessScope, error) {
	switch {
	case actor.Role.Privileged():
		return model.UnrestrictedScope(), nil
	case actor.Role == model.RoleDoctor:
		doctorID := actor.UserID
		return &model.AccessScope{DoctorID: &doctorID}, nil
	case actor.Role == model.RolePatient:
		profile, err := r.patients.GetByUserID(ctx, actor.UserID)
		if err != nil {
			return nil, err
		}
		patientID := profile.ID
		return &model.AccessScope{PatientID: &patientID}, nil
	default:
		return nil, apperror.Forbidden()
	}
}
