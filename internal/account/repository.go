// AngelaMos | 2026
// repository.go

package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/carterperez-dev/cms-backend/internal/core"
)

type Repository interface {
	Create(ctx context.Context, acct *Account) error
	GetByID(ctx context.Context, id int64) (*Account, error)
	GetByEmail(ctx context.Context, email string) (*Account, error)
	Update(ctx context.Context, acct *Account) error
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
	SoftDelete(ctx context.Context, id int64) error
	List(ctx context.Context, params ListAccountsParams) ([]Account, int, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	ConsumeVerificationToken(ctx context.Context, token string, now time.Time) error
	SetResetToken(ctx context.Context, id int64, token string, expiresAt time.Time) error
	GetByResetToken(ctx context.Context, token string, now time.Time) (*Account, error)
	ResetPassword(ctx context.Context, token, passwordHash string, now time.Time) error
	CountByRole(ctx context.Context) ([]RoleCount, error)
}

const selectAccount = `
		SELECT a.id, a.title, a.first_name, a.last_name, a.email, a.password_hash,
		       a.role_id, r.name AS role, a.accepted_terms, a.verification_token,
		       a.verified_at, a.reset_token, a.reset_token_expires_at,
		       a.password_reset_at, a.created_at, a.updated_at, a.deleted_at
		FROM accounts a
		JOIN roles r ON r.id = a.role_id`

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

// Create inserts acct with the role named by acct.Role. An unknown role
// name reports core.ErrInvalidInput.
func (r *repository) Create(ctx context.Context, acct *Account) error {
	query := `
		INSERT INTO accounts (
			title, first_name, last_name, email, password_hash, role_id,
			accepted_terms, verification_token, verified_at
		)
		SELECT $1, $2, $3, $4, $5, roles.id, $7, $8, $9
		FROM roles
		WHERE LOWER(roles.name) = LOWER($6)
		RETURNING id, role_id, created_at, updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		acct.Title,
		acct.FirstName,
		acct.LastName,
		acct.Email,
		acct.PasswordHash,
		acct.Role,
		acct.AcceptedTerms,
		acct.VerificationToken,
		acct.VerifiedAt,
	).Scan(&acct.ID, &acct.RoleID, &acct.CreatedAt, &acct.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("create account: unknown role %q: %w", acct.Role, core.ErrInvalidInput)
	}
	if err != nil {
		if core.IsUniqueViolation(err) {
			return fmt.Errorf("create account: %w", core.ErrDuplicateKey)
		}
		return fmt.Errorf("create account: %w", err)
	}

	return nil
}

func (r *repository) GetByID(ctx context.Context, id int64) (*Account, error) {
	query := selectAccount + `
		WHERE a.id = $1 AND a.deleted_at IS NULL`

	var acct Account
	err := r.db.GetContext(ctx, &acct, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get account: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}

	return &acct, nil
}

func (r *repository) GetByEmail(ctx context.Context, email string) (*Account, error) {
	query := selectAccount + `
		WHERE a.email = $1 AND a.deleted_at IS NULL`

	var acct Account
	err := r.db.GetContext(ctx, &acct, query, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get account by email: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get account by email: %w", err)
	}

	return &acct, nil
}

// Update writes the profile fields and role of acct. The role is resolved
// by name through the roles table.
func (r *repository) Update(ctx context.Context, acct *Account) error {
	query := `
		UPDATE accounts a
		SET title = $2, first_name = $3, last_name = $4, email = $5,
		    role_id = r.id, updated_at = NOW()
		FROM roles r
		WHERE a.id = $1 AND a.deleted_at IS NULL AND LOWER(r.name) = LOWER($6)
		RETURNING a.role_id, a.updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		acct.ID,
		acct.Title,
		acct.FirstName,
		acct.LastName,
		acct.Email,
		acct.Role,
	).Scan(&acct.RoleID, &acct.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("update account: %w", core.ErrNotFound)
	}
	if err != nil {
		if core.IsUniqueViolation(err) {
			return fmt.Errorf("update account: %w", core.ErrDuplicateKey)
		}
		return fmt.Errorf("update account: %w", err)
	}

	return nil
}

func (r *repository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	query := `
		UPDATE accounts
		SET password_hash = $2, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, id, passwordHash)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	if err := core.RowsAffectedOrNotFound(result); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	return nil
}

func (r *repository) SoftDelete(ctx context.Context, id int64) error {
	query := `
		UPDATE accounts
		SET deleted_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}

	if err := core.RowsAffectedOrNotFound(result); err != nil {
		return fmt.Errorf("delete account: %w", err)
	}

	return nil
}

func (r *repository) List(
	ctx context.Context,
	params ListAccountsParams,
) ([]Account, int, error) {
	params.Normalize()

	var conditions []string
	var args []any
	argIdx := 1

	conditions = append(conditions, "a.deleted_at IS NULL")

	if params.Search != "" {
		conditions = append(conditions, fmt.Sprintf(
			"(a.email ILIKE $%d OR a.first_name ILIKE $%d OR a.last_name ILIKE $%d)",
			argIdx, argIdx, argIdx))
		args = append(args, "%"+escapeLike(params.Search)+"%")
		argIdx++
	}

	if params.Role != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(r.name) = LOWER($%d)", argIdx))
		args = append(args, params.Role)
		argIdx++
	}

	whereClause := strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf(`
		SELECT COUNT(*)
		FROM accounts a
		JOIN roles r ON r.id = a.role_id
		WHERE %s`,
		whereClause,
	)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count accounts: %w", err)
	}

	query := fmt.Sprintf(selectAccount+`
		WHERE %s
		ORDER BY a.id
		LIMIT $%d OFFSET $%d`,
		whereClause, argIdx, argIdx+1)

	args = append(args, params.PageSize, params.Offset())

	var accounts []Account
	if err := r.db.SelectContext(ctx, &accounts, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list accounts: %w", err)
	}

	return accounts, total, nil
}

func (r *repository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM accounts WHERE email = $1 AND deleted_at IS NULL)`

	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, email); err != nil {
		return false, fmt.Errorf("check email exists: %w", err)
	}

	return exists, nil
}

// ConsumeVerificationToken marks the owning account verified and clears
// the token in one statement, so a token verifies at most once.
func (r *repository) ConsumeVerificationToken(
	ctx context.Context,
	token string,
	now time.Time,
) error {
	query := `
		UPDATE accounts
		SET verified_at = $2, verification_token = NULL, updated_at = $2
		WHERE verification_token = $1 AND deleted_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, token, now)
	if err != nil {
		return fmt.Errorf("consume verification token: %w", err)
	}

	if err := core.RowsAffectedOrNotFound(result); err != nil {
		return fmt.Errorf("consume verification token: %w", err)
	}

	return nil
}

func (r *repository) SetResetToken(
	ctx context.Context,
	id int64,
	token string,
	expiresAt time.Time,
) error {
	query := `
		UPDATE accounts
		SET reset_token = $2, reset_token_expires_at = $3, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, id, token, expiresAt)
	if err != nil {
		return fmt.Errorf("set reset token: %w", err)
	}

	if err := core.RowsAffectedOrNotFound(result); err != nil {
		return fmt.Errorf("set reset token: %w", err)
	}

	return nil
}

func (r *repository) GetByResetToken(
	ctx context.Context,
	token string,
	now time.Time,
) (*Account, error) {
	query := selectAccount + `
		WHERE a.reset_token = $1 AND a.reset_token_expires_at > $2
		  AND a.deleted_at IS NULL`

	var acct Account
	err := r.db.GetContext(ctx, &acct, query, token, now)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get account by reset token: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get account by reset token: %w", err)
	}

	return &acct, nil
}

// ResetPassword consumes an unexpired reset token and sets the new hash in
// a single statement.
func (r *repository) ResetPassword(
	ctx context.Context,
	token, passwordHash string,
	now time.Time,
) error {
	query := `
		UPDATE accounts
		SET password_hash = $2, reset_token = NULL, reset_token_expires_at = NULL,
		    password_reset_at = $3, updated_at = $3
		WHERE reset_token = $1 AND reset_token_expires_at > $3
		  AND deleted_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, token, passwordHash, now)
	if err != nil {
		return fmt.Errorf("reset password: %w", err)
	}

	if err := core.RowsAffectedOrNotFound(result); err != nil {
		return fmt.Errorf("reset password: %w", err)
	}

	return nil
}

func (r *repository) CountByRole(ctx context.Context) ([]RoleCount, error) {
	query := `
		SELECT r.name AS role, COUNT(a.id) AS count
		FROM roles r
		LEFT JOIN accounts a ON a.role_id = r.id AND a.deleted_at IS NULL
		GROUP BY r.name
		ORDER BY r.name`

	var counts []RoleCount
	if err := r.db.SelectContext(ctx, &counts, query); err != nil {
		return nil, fmt.Errorf("count accounts by role: %w", err)
	}

	return counts, nil
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "%", "\\%")
	s = strings.ReplaceAll(s, "_", "\\_")
	return s
}
