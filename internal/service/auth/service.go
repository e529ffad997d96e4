package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/medgate/records-api/internal/email"
	"github.com/medgate/records-api/internal/model"
	"github.com/medgate/records-api/internal/repository"
	"github.com/medgate/records-api/pkg/apperror"
	"github.com/medgate/records-api/pkg/auth"
	"github.com/medgate/records-api/pkg/logger"
	"github.com/medgate/records-api/pkg/security"
)

const resetTokenTTL = time.Hour

type Service struct {
	users    repository.UserRepository
	patients repository.PatientRepository
	tokens   repository.TokenRepository
	hasher   security.PasswordHasher
	jwt      auth.JWTService
	emails   email.Sender
	logger   *logger.Logger
}

func NewService(
	users repository.UserRepository,
	patients repository.PatientRepository,
	tokens repository.TokenRepository,
	hasher security.PasswordHasher,
	jwt auth.JWTService,
	emails email.Sender,
	logger *logger.Logger,
) *Service {
	return &Service{
		users:    users,
		patients: patients,
		tokens:   tokens,
		hasher:   hasher,
		jwt:      jwt,
		emails:   emails,
		logger:   logger,
	}
}

func (s *Service) Register(ctx context.Context, req *model.RegisterRequest) (*model.AuthResponse, error) {
	role := req.Role
	if role == "" {
		role = model.RolePatient
	}
	if !role.Valid() {
		return nil, apperror.Validation("invalid role")
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, apperror.Validation("password must be at least 6 characters")
	}

	user := &model.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         role,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	token, err := s.jwt.GenerateToken(user)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	return &model.AuthResponse{User: user.PublicView(), Token: token}, nil
}

// Login accepts email, username or both. Unknown identifier and wrong
// password are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, req *model.LoginRequest) (*model.AuthResponse, error) {
	if req.Email == "" && req.Username == "" {
		return nil, apperror.Validation("email or username is required")
	}

	user, err := s.users.GetByIdentifier(ctx, req.Email, req.Username)
	if err != nil {
		if apperror.IsKind(err, apperror.KindNotFound) {
			return nil, apperror.Unauthorized("invalid credentials")
		}
		return nil, err
	}

	if err := s.hasher.Compare(user.PasswordHash, req.Password); err != nil {
		return nil, apperror.Unauthorized("invalid credentials")
	}

	token, err := s.jwt.GenerateToken(user)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	return &model.AuthResponse{User: user.PublicView(), Token: token}, nil
}

func (s *Service) Profile(ctx context.Context, actor *model.TokenClaims) (*model.ProfileResponse, error) {
	user, err := s.users.Get(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}

	resp := &model.ProfileResponse{User: user.PublicView()}

	profile, err := s.patients.GetByUserID(ctx, user.ID)
	switch {
	case err == nil:
		resp.PatientProfile = profile
	case !apperror.IsKind(err, apperror.KindNotFound):
		return nil, err
	}

	return resp, nil
}

// ForgotPassword issues a reset token when the account exists. The
// caller cannot tell an unknown identifier apart from a successful
// issue: both return without error, only the issued payload differs.
func (s *Service) ForgotPassword(ctx context.Context, req *model.ForgotPasswordRequest) (*model.PasswordResetIssued, error) {
	if req.Email == "" && req.Username == "" {
		return nil, apperror.Validation("email or username is required")
	}

	user, err := s.users.GetByIdentifier(ctx, req.Email, req.Username)
	if err != nil {
		if apperror.IsKind(err, apperror.KindNotFound) {
			return nil, nil
		}
		return nil, err
	}

	plaintext, err := generateResetToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate reset token: %w", err)
	}

	token := &model.PasswordResetToken{
		UserID:    user.ID,
		Digest:    digest(plaintext),
		ExpiresAt: time.Now().Add(resetTokenTTL),
	}
	if err := s.tokens.Issue(ctx, token); err != nil {
		return nil, err
	}

	if err := s.emails.SendPasswordReset(user.Email, plaintext, token.ExpiresAt); err != nil {
		s.logger.Error(err, "Failed to send reset email", "user_id", user.ID.String())
	}

	return &model.PasswordResetIssued{
		ResetToken: plaintext,
		ExpiresAt:  token.ExpiresAt,
	}, nil
}

// ResetPassword consumes a token issued by ForgotPassword. Used,
// expired and unknown tokens all fail the same way.
func (s *Service) ResetPassword(ctx context.Context, req *model.ResetPasswordRequest) error {
	invalid := apperror.Validation("invalid or expired reset token")

	token, err := s.tokens.GetByDigest(ctx, digest(req.Token))
	if err != nil {
		if apperror.IsKind(err, apperror.KindNotFound) {
			return invalid
		}
		return err
	}

	if token.Used || token.Expired(time.Now()) {
		return invalid
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return apperror.Validation("password must be at least 6 characters")
	}

	if err := s.users.UpdatePassword(ctx, token.UserID, hash); err != nil {
		return err
	}

	return s.tokens.Consume(ctx, token.ID, token.UserID)
}

func generateResetToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func digest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
