package admin

import (
	"context"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/medgate/records-api/internal/authz"
	"github.com/medgate/records-api/internal/model"
	"github.com/medgate/records-api/internal/repository"
	"github.com/medgate/records-api/internal/service/event"
	"github.com/medgate/records-api/pkg/apperror"
)

const (
	statsCacheKey = "dashboard_stats"
	statsCacheTTL = 30 * time.Second
)

type Service struct {
	users        repository.UserRepository
	patients     repository.PatientRepository
	appointments repository.AppointmentRepository
	records      repository.MedicalRecordRepository
	cache        *gocache.Cache
	recorder     *event.Recorder
}

func NewService(
	users repository.UserRepository,
	patients repository.PatientRepository,
	appointments repository.AppointmentRepository,
	records repository.MedicalRecordRepository,
	recorder *event.Recorder,
) *Service {
	return &Service{
		users:        users,
		patients:     patients,
		appointments: appointments,
		records:      records,
		cache:        gocache.New(statsCacheTTL, time.Minute),
		recorder:     recorder,
	}
}

// Dashboard aggregates platform counts. Results are cached briefly;
// the dashboard tolerates slightly stale numbers.
func (s *Service) Dashboard(ctx context.Context) (*model.DashboardStats, error) {
	if cached, ok := s.cache.Get(statsCacheKey); ok {
		return cached.(*model.DashboardStats), nil
	}

	roleCounts, err := s.users.CountByRole(ctx)
	if err != nil {
		return nil, err
	}

	var total int64
	for _, count := range roleCounts {
		total += count
	}

	patientCount, err := s.patients.Count(ctx)
	if err != nil {
		return nil, err
	}

	scheduled, err := s.appointments.CountByStatus(ctx, model.AppointmentStatusScheduled)
	if err != nil {
		return nil, err
	}

	recordCount, err := s.records.Count(ctx)
	if err != nil {
		return nil, err
	}

	stats := &model.DashboardStats{
		TotalUsers:            total,
		RoleBreakdown:         roleCounts,
		TotalPatients:         patientCount,
		ScheduledAppointments: scheduled,
		RecordsDocumented:     recordCount,
	}
	s.cache.SetDefault(statsCacheKey, stats)

	return stats, nil
}

// ListUsers returns every account, with the linked patient profile
// attached where one exists.
func (s *Service) ListUsers(ctx context.Context) ([]*model.AdminUser, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]*model.AdminUser, 0, len(users))
	for _, user := range users {
		entry := &model.AdminUser{PublicUser: user.PublicView()}
		if user.Role == model.RolePatient {
			profile, err := s.patients.GetByUserID(ctx, user.ID)
			switch {
			case err == nil:
				entry.PatientProfile = profile
			case !apperror.IsKind(err, apperror.KindNotFound):
				return nil, err
			}
		}
		out = append(out, entry)
	}

	return out, nil
}

// DeleteUser removes an account. Admins cannot delete themselves.
func (s *Service) DeleteUser(ctx context.Context, actor *model.TokenClaims, id uuid.UUID) error {
	if !authz.Can(actor.Role, authz.ActionDelete, authz.ResourceUser).Permitted() {
		return apperror.Forbidden()
	}
	if actor.UserID == id {
		return apperror.Validation("you cannot delete your own account")
	}

	if err := s.users.Delete(ctx, id); err != nil {
		return err
	}

	s.cache.Delete(statsCacheKey)
	s.recorder.Record(ctx, event.TypeUserDeleted, map[string]interface{}{"id": id})
	return nil
}
