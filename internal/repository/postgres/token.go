package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/medgate/records-api/internal/model"
	"github.com/medgate/records-api/internal/repository"
	"github.com/medgate/records-api/pkg/apperror"
)

type tokenRepository struct {
	BaseRepository
}

func NewTokenRepository(base BaseRepository) repository.TokenRepository {
	return &tokenRepository{base}
}

// Issue retires every live token for the user before inserting the new
// one, keeping at most one unused token per user.
func (r *tokenRepository) Issue(ctx context.Context, token *model.PasswordResetToken) error {
	token.ID = uuid.New()
	token.CreatedAt = time.Now()

	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		invalidate := `
			UPDATE password_reset_tokens
			SET used = TRUE
			WHERE user_id = $1 AND used = FALSE
		`
		if _, err := tx.ExecContext(ctx, invalidate, token.UserID); err != nil {
			return fmt.Errorf("failed to invalidate reset tokens: %w", err)
		}

		insert := `
			INSERT INTO password_reset_tokens (
				id, user_id, token, expires_at, used, created_at
			) VALUES ($1, $2, $3, $4, $5, $6)
		`
		if _, err := tx.ExecContext(ctx, insert,
			token.ID,
			token.UserID,
			token.Digest,
			token.ExpiresAt,
			token.Used,
			token.CreatedAt,
		); err != nil {
			return fmt.Errorf("failed to insert reset token: %w", err)
		}

		return nil
	})
}

func (r *tokenRepository) GetByDigest(ctx context.Context, digest string) (*model.PasswordResetToken, error) {
	query := `SELECT * FROM password_reset_tokens WHERE token = $1`

	var token model.PasswordResetToken
	if err := r.db.GetContext(ctx, &token, query, digest); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("reset token")
		}
		return nil, fmt.Errorf("failed to get reset token: %w", err)
	}

	return &token, nil
}

// Consume marks the token used and retires any other live token for
// the same user, so a successful reset leaves nothing replayable.
func (r *tokenRepository) Consume(ctx context.Context, id, userID uuid.UUID) error {
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		mark := `
			UPDATE password_reset_tokens
			SET used = TRUE
			WHERE id = $1 AND used = FALSE
		`
		result, err := tx.ExecContext(ctx, mark, id)
		if err != nil {
			return fmt.Errorf("failed to consume reset token: %w", err)
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rows == 0 {
			return apperror.Validation("invalid or expired reset token")
		}

		retire := `
			UPDATE password_reset_tokens
			SET used = TRUE
			WHERE user_id = $1 AND used = FALSE
		`
		if _, err := tx.ExecContext(ctx, retire, userID); err != nil {
			return fmt.Errorf("failed to retire reset tokens: %w", err)
		}

		return nil
	})
}
