package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/medgate/records-api/internal/email"
	"github.com/medgate/records-api/internal/model"
	"github.com/medgate/records-api/internal/repository/repotest"
	"github.com/medgate/records-api/pkg/apperror"
	pkgauth "github.com/medgate/records-api/pkg/auth"
	"github.com/medgate/records-api/pkg/logger"
	"github.com/medgate/records-api/pkg/security"
)

func newTestService(t *testing.T) (*Service, *repotest.Store) {
	t.Helper()
	store := repotest.NewStore()
	log := logger.NewLogger(nil)
	svc := NewService(
		&repotest.UserRepo{S: store},
		&repotest.PatientRepo{S: store},
		&repotest.TokenRepo{S: store},
		security.NewBcryptHasher(bcrypt.MinCost),
		pkgauth.NewJWTService("test-secret", time.Hour),
		email.NewSender(email.SMTPConfig{}, log),
		log,
	)
	return svc, store
}

func TestRegisterDefaultsToPatientRole(t *testing.T) {
	svc, _ := newTestService(t)

	resp, err := svc.Register(context.Background(), &model.RegisterRequest{
		Username: "newbie",
		Email:    "newbie@example.com",
		Password: "secret1",
	})
	require.NoError(t, err)
	assert.Equal(t, model.RolePatient, resp.User.Role)
	assert.NotEmpty(t, resp.Token)
}

func TestRegisterRejectsInvalidRole(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Register(context.Background(), &model.RegisterRequest{
		Username: "newbie",
		Email:    "newbie@example.com",
		Password: "secret1",
		Role:     model.Role("superuser"),
	})
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))
}

func TestRegisterDuplicateIdentifier(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, &model.RegisterRequest{
		Username: "dup", Email: "dup@example.com", Password: "secret1",
	})
	require.NoError(t, err)

	_, err = svc.Register(ctx, &model.RegisterRequest{
		Username: "dup", Email: "fresh@example.com", Password: "secret1",
	})
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.KindConflict))
	assert.Equal(t, "username already in use", err.Error())

	_, err = svc.Register(ctx, &model.RegisterRequest{
		Username: "fresh", Email: "dup@example.com", Password: "secret1",
	})
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.KindConflict))
	assert.Equal(t, "email already in use", err.Error())
}

func TestLoginByEmailAndUsername(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Register(context.Background(), &model.RegisterRequest{
		Username: "doc", Email: "doc@example.com", Password: "secret1", Role: model.RoleDoctor,
	})
	require.NoError(t, err)

	byEmail, err := svc.Login(context.Background(), &model.LoginRequest{Email: "doc@example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, "doc", byEmail.User.Username)

	byUsername, err := svc.Login(context.Background(), &model.LoginRequest{Username: "doc", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, byEmail.User.ID, byUsername.User.ID)
}

func TestLoginFailuresAreUniform(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Register(context.Background(), &model.RegisterRequest{
		Username: "louise", Email: "louise@example.com", Password: "secret1",
	})
	require.NoError(t, err)

	_, badPassword := svc.Login(context.Background(), &model.LoginRequest{Email: "louise@example.com", Password: "wrong"})
	_, unknownUser := svc.Login(context.Background(), &model.LoginRequest{Email: "ghost@example.com", Password: "secret1"})

	require.Error(t, badPassword)
	require.Error(t, unknownUser)
	assert.True(t, apperror.IsKind(badPassword, apperror.KindUnauthorized))
	assert.True(t, apperror.IsKind(unknownUser, apperror.KindUnauthorized))
	assert.Equal(t, badPassword.Error(), unknownUser.Error())
}

func TestLoginRequiresIdentifier(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Login(context.Background(), &model.LoginRequest{Password: "secret1"})
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))
}

func TestProfileIncludesPatientProfileWhenLinked(t *testing.T) {
	svc, store := newTestService(t)

	resp, err := svc.Register(context.Background(), &model.RegisterRequest{
		Username: "pat", Email: "pat@example.com", Password: "secret1",
	})
	require.NoError(t, err)
	profile := store.SeedPatient(&resp.User.ID, nil, "Pat", "Doe")

	claims := &model.TokenClaims{UserID: resp.User.ID, Role: model.RolePatient}
	got, err := svc.Profile(context.Background(), claims)
	require.NoError(t, err)
	require.NotNil(t, got.PatientProfile)
	assert.Equal(t, profile.ID, got.PatientProfile.ID)
}

func TestProfileWithoutPatientProfile(t *testing.T) {
	svc, _ := newTestService(t)

	resp, err := svc.Register(context.Background(), &model.RegisterRequest{
		Username: "nurse", Email: "nurse@example.com", Password: "secret1", Role: model.RoleStaff,
	})
	require.NoError(t, err)

	got, err := svc.Profile(context.Background(), &model.TokenClaims{UserID: resp.User.ID, Role: model.RoleStaff})
	require.NoError(t, err)
	assert.Nil(t, got.PatientProfile)
	assert.Equal(t, "nurse", got.User.Username)
}

func TestForgotPasswordUnknownAccount(t *testing.T) {
	svc, store := newTestService(t)

	issued, err := svc.ForgotPassword(context.Background(), &model.ForgotPasswordRequest{Email: "ghost@example.com"})
	require.NoError(t, err)
	assert.Nil(t, issued)
	assert.Empty(t, store.Tokens)
}

func TestPasswordResetFlow(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, &model.RegisterRequest{
		Username: "amnesiac", Email: "amnesiac@example.com", Password: "oldpass",
	})
	require.NoError(t, err)

	issued, err := svc.ForgotPassword(ctx, &model.ForgotPasswordRequest{Email: "amnesiac@example.com"})
	require.NoError(t, err)
	require.NotNil(t, issued)
	assert.NotEmpty(t, issued.ResetToken)

	err = svc.ResetPassword(ctx, &model.ResetPasswordRequest{Token: issued.ResetToken, Password: "newpass"})
	require.NoError(t, err)

	_, err = svc.Login(ctx, &model.LoginRequest{Email: "amnesiac@example.com", Password: "oldpass"})
	require.Error(t, err)
	_, err = svc.Login(ctx, &model.LoginRequest{Email: "amnesiac@example.com", Password: "newpass"})
	require.NoError(t, err)
}

func TestResetTokenIsSingleUse(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, &model.RegisterRequest{
		Username: "once", Email: "once@example.com", Password: "oldpass",
	})
	require.NoError(t, err)

	issued, err := svc.ForgotPassword(ctx, &model.ForgotPasswordRequest{Email: "once@example.com"})
	require.NoError(t, err)

	require.NoError(t, svc.ResetPassword(ctx, &model.ResetPasswordRequest{Token: issued.ResetToken, Password: "newpass"}))

	err = svc.ResetPassword(ctx, &model.ResetPasswordRequest{Token: issued.ResetToken, Password: "another"})
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))
}

func TestForgotPasswordInvalidatesEarlierTokens(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, &model.RegisterRequest{
		Username: "serial", Email: "serial@example.com", Password: "oldpass",
	})
	require.NoError(t, err)

	first, err := svc.ForgotPassword(ctx, &model.ForgotPasswordRequest{Email: "serial@example.com"})
	require.NoError(t, err)
	second, err := svc.ForgotPassword(ctx, &model.ForgotPasswordRequest{Email: "serial@example.com"})
	require.NoError(t, err)

	err = svc.ResetPassword(ctx, &model.ResetPasswordRequest{Token: first.ResetToken, Password: "newpass"})
	require.Error(t, err)

	err = svc.ResetPassword(ctx, &model.ResetPasswordRequest{Token: second.ResetToken, Password: "newpass"})
	require.NoError(t, err)
}

func TestResetPasswordExpiredToken(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, &model.RegisterRequest{
		Username: "late", Email: "late@example.com", Password: "oldpass",
	})
	require.NoError(t, err)

	issued, err := svc.ForgotPassword(ctx, &model.ForgotPasswordRequest{Email: "late@example.com"})
	require.NoError(t, err)

	for _, token := range store.Tokens {
		token.ExpiresAt = time.Now().Add(-time.Minute)
	}

	err = svc.ResetPassword(ctx, &model.ResetPasswordRequest{Token: issued.ResetToken, Password: "newpass"})
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))
}

func TestResetPasswordUnknownToken(t *testing.T) {
	svc, _ := newTestService(t)

	err := svc.ResetPassword(context.Background(), &model.ResetPasswordRequest{Token: "deadbeef", Password: "newpass"})
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))
}
