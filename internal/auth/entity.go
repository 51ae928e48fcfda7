// AngelaMos | 2026
// entity.go

package auth

import (
	"time"
)

// RefreshToken is one entry in an account's token lineage. After creation
// the only permitted change is the single transition from active to revoked.
type RefreshToken struct {
	Token       string     `db:"token"`
	AccountID   int64      `db:"account_id"`
	CreatedAt   time.Time  `db:"created_at"`
	CreatedByIP string     `db:"created_by_ip"`
	ExpiresAt   time.Time  `db:"expires_at"`
	RevokedAt   *time.Time `db:"revoked_at"`
	RevokedByIP *string    `db:"revoked_by_ip"`
	ReplacedBy  *string    `db:"replaced_by"`
}

func (t *RefreshToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

func (t *RefreshToken) IsRevoked() bool {
	return t.RevokedAt != nil
}

func (t *RefreshToken) IsActive(now time.Time) bool {
	return !t.IsRevoked() && !t.IsExpired(now)
}

// inactiveSince reports when the token stopped being usable.
func (t *RefreshToken) inactiveSince() time.Time {
	if t.RevokedAt != nil {
		return *t.RevokedAt
	}
	return t.ExpiresAt
}

func (t *RefreshToken) markRevoked(ip string, now time.Time, replacedBy *string) {
	t.RevokedAt = &now
	t.RevokedByIP = &ip
	t.ReplacedBy = replacedBy
}

// AccountInfo is the view of an account the authentication flows need,
// including its refresh tokens in insertion order.
type AccountInfo struct {
	ID            int64
	Title         string
	FirstName     string
	LastName      string
	Email         string
	PasswordHash  string
	Role          string
	VerifiedAt    *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
	RefreshTokens []RefreshToken
}

func (a *AccountInfo) IsVerified() bool {
	return a.VerifiedAt != nil
}

// Owns reports whether token was ever issued to this account, whatever its
// current state.
func (a *AccountInfo) Owns(token string) bool {
	for i := range a.RefreshTokens {
		if a.RefreshTokens[i].Token == token {
			return true
		}
	}
	return false
}

type NewAccount struct {
	Title             string
	FirstName         string
	LastName          string
	Email             string
	PasswordHash      string
	Role              string
	AcceptedTerms     bool
	VerificationToken *string
	VerifiedAt        *time.Time
}
