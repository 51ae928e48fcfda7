// AngelaMos | 2026
// entity.go

package account

import (
	"time"

	"github.com/carterperez-dev/cms-backend/internal/role"
)

type Account struct {
	ID                  int64      `db:"id"`
	Title               string     `db:"title"`
	FirstName           string     `db:"first_name"`
	LastName            string     `db:"last_name"`
	Email               string     `db:"email"`
	PasswordHash        string     `db:"password_hash"`
	RoleID              int        `db:"role_id"`
	Role                string     `db:"role"`
	AcceptedTerms       bool       `db:"accepted_terms"`
	VerificationToken   *string    `db:"verification_token"`
	VerifiedAt          *time.Time `db:"verified_at"`
	ResetToken          *string    `db:"reset_token"`
	ResetTokenExpiresAt *time.Time `db:"reset_token_expires_at"`
	PasswordResetAt     *time.Time `db:"password_reset_at"`
	CreatedAt           time.Time  `db:"created_at"`
	UpdatedAt           time.Time  `db:"updated_at"`
	DeletedAt           *time.Time `db:"deleted_at"`
}

func (a *Account) IsDeleted() bool {
	return a.DeletedAt != nil
}

func (a *Account) IsVerified() bool {
	return a.VerifiedAt != nil
}

func (a *Account) IsAdmin() bool {
	return role.Role(a.Role).IsAdmin()
}

// RoleCount is the number of live accounts holding a role.
type RoleCount struct {
	Role  string `db:"role"  json:"role"`
	Count int    `db:"count" json:"count"`
}
