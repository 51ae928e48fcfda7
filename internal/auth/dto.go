// AngelaMos | 2026
// dto.go

package auth

import (
	"time"
)

type LoginRequest struct {
	Email    string `json:"email"    validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,max=128"`
}

type RegisterRequest struct {
	Title           string `json:"title"            validate:"max=20"`
	FirstName       string `json:"first_name"       validate:"required,min=1,max=100"`
	LastName        string `json:"last_name"        validate:"required,min=1,max=100"`
	Email           string `json:"email"            validate:"required,email,max=255"`
	Password        string `json:"password"         validate:"required,min=8,max=128"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
	AcceptTerms     bool   `json:"accept_terms"     validate:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required,max=256"`
}

type RevokeTokenRequest struct {
	Token string `json:"token" validate:"required,max=256"`
}

type VerifyEmailRequest struct {
	Token string `json:"token" validate:"required,max=256"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email,max=255"`
}

type ValidateResetTokenRequest struct {
	Token string `json:"token" validate:"required,max=256"`
}

type ResetPasswordRequest struct {
	Token           string `json:"token"            validate:"required,max=256"`
	Password        string `json:"password"         validate:"required,min=8,max=128"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
}

type TokenResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int       `json:"expires_in"`
	ExpiresAt    time.Time `json:"expires_at"`
}

type AccountResponse struct {
	ID         int64     `json:"id"`
	Title      string    `json:"title"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	Email      string    `json:"email"`
	Role       string    `json:"role"`
	IsVerified bool      `json:"is_verified"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type AuthResponse struct {
	Account AccountResponse `json:"account"`
	Tokens  TokenResponse   `json:"tokens"`
}

type RefreshTokenResponse struct {
	Token       string     `json:"token"`
	CreatedAt   time.Time  `json:"created_at"`
	CreatedByIP string     `json:"created_by_ip"`
	ExpiresAt   time.Time  `json:"expires_at"`
	RevokedAt   *time.Time `json:"revoked_at,omitempty"`
	RevokedByIP *string    `json:"revoked_by_ip,omitempty"`
	ReplacedBy  *string    `json:"replaced_by,omitempty"`
	IsExpired   bool       `json:"is_expired"`
	IsActive    bool       `json:"is_active"`
}

func ToAccountResponse(a *AccountInfo) AccountResponse {
	return AccountResponse{
		ID:         a.ID,
		Title:      a.Title,
		FirstName:  a.FirstName,
		LastName:   a.LastName,
		Email:      a.Email,
		Role:       a.Role,
		IsVerified: a.IsVerified(),
		CreatedAt:  a.CreatedAt,
		UpdatedAt:  a.UpdatedAt,
	}
}

func toRefreshTokenResponse(t *RefreshToken, now time.Time) RefreshTokenResponse {
	return RefreshTokenResponse{
		Token:       t.Token,
		CreatedAt:   t.CreatedAt,
		CreatedByIP: t.CreatedByIP,
		ExpiresAt:   t.ExpiresAt,
		RevokedAt:   t.RevokedAt,
		RevokedByIP: t.RevokedByIP,
		ReplacedBy:  t.ReplacedBy,
		IsExpired:   t.IsExpired(now),
		IsActive:    t.IsActive(now),
	}
}
