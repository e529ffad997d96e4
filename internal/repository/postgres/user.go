package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/medgate/records-api/internal/model"
	"github.com/medgate/records-api/internal/repository"
	"github.com/medgate/records-api/pkg/apperror"
)

type userRepository struct {
	BaseRepository
}

func NewUserRepository(base BaseRepository) repository.UserRepository {
	return &userRepository{base}
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	query := `
		INSERT INTO users (
			id, username, email, password_hash, role, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	user.ID = uuid.New()
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt

	_, err := r.db.ExecContext(ctx, query,
		user.ID,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.Role,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return apperror.Conflict(duplicateFieldMessage(pqErr.Constraint))
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// duplicateFieldMessage names the duplicated field from the violated
// constraint (users_username_key, users_email_key).
func duplicateFieldMessage(constraint string) string {
	switch {
	case strings.Contains(constraint, "username"):
		return "username already in use"
	case strings.Contains(constraint, "email"):
		return "email already in use"
	}
	return "username or email already in use"
}

func (r *userRepository) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	query := `SELECT * FROM users WHERE id = $1`

	var user model.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user")
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

// GetByIdentifier matches on email, username or either, depending on
// which identifiers are supplied.
func (r *userRepository) GetByIdentifier(ctx context.Context, email, username string) (*model.User, error) {
	query := `SELECT * FROM users WHERE `
	args := []interface{}{}

	switch {
	case email != "" && username != "":
		query += `(email = $1 OR username = $2)`
		args = append(args, email, username)
	case email != "":
		query += `email = $1`
		args = append(args, email)
	case username != "":
		query += `username = $1`
		args = append(args, username)
	default:
		return nil, apperror.NotFound("user")
	}
	query += ` LIMIT 1`

	var user model.User
	if err := r.db.GetContext(ctx, &user, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user")
		}
		return nil, fmt.Errorf("failed to get user by identifier: %w", err)
	}

	return &user, nil
}

func (r *userRepository) List(ctx context.Context) ([]*model.User, error) {
	query := `SELECT * FROM users ORDER BY created_at DESC`

	users := []*model.User{}
	if err := r.db.SelectContext(ctx, &users, query); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	return users, nil
}

func (r *userRepository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	query := `
		UPDATE users
		SET password_hash = $1, updated_at = NOW()
		WHERE id = $2
	`

	result, err := r.db.ExecContext(ctx, query, passwordHash, id)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperror.NotFound("user")
	}

	return nil
}

// Delete removes the account and applies the cascade the schema does
// not express on its own: profile links are detached, appointments
// where the user was the doctor go away, authorship references on
// surviving rows are cleared.
func (r *userRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		steps := []string{
			`UPDATE patients SET user_id = NULL, updated_at = NOW() WHERE user_id = $1`,
			`UPDATE patients SET primary_doctor_id = NULL, updated_at = NOW() WHERE primary_doctor_id = $1`,
			`DELETE FROM appointments WHERE doctor_id = $1`,
			`UPDATE appointments SET created_by_id = NULL WHERE created_by_id = $1`,
			`UPDATE medical_records SET doctor_id = NULL WHERE doctor_id = $1`,
			`UPDATE medical_records SET created_by_id = NULL WHERE created_by_id = $1`,
			`DELETE FROM password_reset_tokens WHERE user_id = $1`,
		}
		for _, step := range steps {
			if _, err := tx.ExecContext(ctx, step, id); err != nil {
				return fmt.Errorf("failed to cascade user delete: %w", err)
			}
		}

		result, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("failed to delete user: %w", err)
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rows == 0 {
			return apperror.NotFound("user")
		}

		return nil
	})
}

func (r *userRepository) CountByRole(ctx context.Context) (map[model.Role]int64, error) {
	query := `SELECT role, COUNT(*) AS count FROM users GROUP BY role`

	rows := []struct {
		Role  model.Role `db:"role"`
		Count int64      `db:"count"`
	}{}
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to count users by role: %w", err)
	}

	counts := make(map[model.Role]int64, len(rows))
	for _, row := range rows {
		counts[row.Role] = row.Count
	}

	return counts, nil
}
