// AngelaMos | 2026
// repository.go

package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/carterperez-dev/cms-backend/internal/core"
)

// ErrTokenInactive means a rotate or revoke lost its compare-and-swap: the
// token was already revoked or expired when the store applied the change.
var ErrTokenInactive = errors.New("refresh token is not active")

// Repository persists refresh tokens. Rotate and Revoke are atomic
// compare-and-swap operations on the token's active state.
type Repository interface {
	Create(ctx context.Context, token *RefreshToken) error
	FindByToken(ctx context.Context, token string) (*RefreshToken, error)
	ListForAccount(ctx context.Context, accountID int64) ([]RefreshToken, error)
	Rotate(
		ctx context.Context,
		oldToken string,
		successor *RefreshToken,
		ip string,
		now time.Time,
	) error
	Revoke(ctx context.Context, token, ip string, now time.Time) error
	DeleteInactiveBefore(
		ctx context.Context,
		accountID int64,
		cutoff time.Time,
	) (int64, error)
}

type postgresRepository struct {
	db *sqlx.DB
}

func NewPostgresRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db}
}

const refreshTokenColumns = `token, account_id, created_at, created_by_ip,
		expires_at, revoked_at, revoked_by_ip, replaced_by`

func (r *postgresRepository) Create(
	ctx context.Context,
	token *RefreshToken,
) error {
	if err := insertRefreshToken(ctx, r.db, token); err != nil {
		return fmt.Errorf("create refresh token: %w", err)
	}
	return nil
}

func insertRefreshToken(
	ctx context.Context,
	db sqlx.ExecerContext,
	token *RefreshToken,
) error {
	query := `
		INSERT INTO refresh_tokens (
			token, account_id, created_at, created_by_ip, expires_at
		) VALUES ($1, $2, $3, $4, $5)`

	_, err := db.ExecContext(ctx, query,
		token.Token,
		token.AccountID,
		token.CreatedAt,
		token.CreatedByIP,
		token.ExpiresAt,
	)
	if err != nil {
		if core.IsUniqueViolation(err) {
			return core.ErrDuplicateKey
		}
		return err
	}

	return nil
}

func (r *postgresRepository) FindByToken(
	ctx context.Context,
	token string,
) (*RefreshToken, error) {
	query := `SELECT ` + refreshTokenColumns + `
		FROM refresh_tokens
		WHERE token = $1`

	var rt RefreshToken
	err := r.db.GetContext(ctx, &rt, query, token)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("find refresh token: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find refresh token: %w", err)
	}

	return &rt, nil
}

func (r *postgresRepository) ListForAccount(
	ctx context.Context,
	accountID int64,
) ([]RefreshToken, error) {
	query := `SELECT ` + refreshTokenColumns + `
		FROM refresh_tokens
		WHERE account_id = $1
		ORDER BY id`

	tokens := []RefreshToken{}
	if err := r.db.SelectContext(ctx, &tokens, query, accountID); err != nil {
		return nil, fmt.Errorf("list refresh tokens: %w", err)
	}

	return tokens, nil
}

func (r *postgresRepository) Rotate(
	ctx context.Context,
	oldToken string,
	successor *RefreshToken,
	ip string,
	now time.Time,
) error {
	err := core.InTx(ctx, r.db, func(tx *sqlx.Tx) error {
		query := `
			UPDATE refresh_tokens
			SET revoked_at = $2, revoked_by_ip = $3, replaced_by = $4
			WHERE token = $1 AND revoked_at IS NULL AND expires_at > $2`

		result, err := tx.ExecContext(ctx, query, oldToken, now, ip, successor.Token)
		if err != nil {
			return err
		}

		if err := core.RowsAffectedOrNotFound(result); err != nil {
			if errors.Is(err, core.ErrNotFound) {
				return ErrTokenInactive
			}
			return err
		}

		return insertRefreshToken(ctx, tx, successor)
	})
	if err != nil {
		return fmt.Errorf("rotate refresh token: %w", err)
	}

	return nil
}

func (r *postgresRepository) Revoke(
	ctx context.Context,
	token, ip string,
	now time.Time,
) error {
	query := `
		UPDATE refresh_tokens
		SET revoked_at = $2, revoked_by_ip = $3
		WHERE token = $1 AND revoked_at IS NULL AND expires_at > $2`

	result, err := r.db.ExecContext(ctx, query, token, now, ip)
	if err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}

	if err := core.RowsAffectedOrNotFound(result); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return fmt.Errorf("revoke refresh token: %w", ErrTokenInactive)
		}
		return fmt.Errorf("revoke refresh token: %w", err)
	}

	return nil
}

func (r *postgresRepository) DeleteInactiveBefore(
	ctx context.Context,
	accountID int64,
	cutoff time.Time,
) (int64, error) {
	query := `
		DELETE FROM refresh_tokens
		WHERE account_id = $1 AND COALESCE(revoked_at, expires_at) < $2`

	result, err := r.db.ExecContext(ctx, query, accountID, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete inactive refresh tokens: %w", err)
	}

	return result.RowsAffected()
}
