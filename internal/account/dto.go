// AngelaMos | 2026
// dto.go

package account

import (
	"time"
)

type CreateAccountRequest struct {
	Title           string `json:"title"            validate:"max=20"`
	FirstName       string `json:"first_name"       validate:"required,min=1,max=100"`
	LastName        string `json:"last_name"        validate:"required,min=1,max=100"`
	Email           string `json:"email"            validate:"required,email,max=255"`
	Password        string `json:"password"         validate:"required,min=8,max=128"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
	Role            string `json:"role"             validate:"required,max=50"`
}

type UpdateAccountRequest struct {
	Title           *string `json:"title,omitempty"            validate:"omitempty,max=20"`
	FirstName       *string `json:"first_name,omitempty"       validate:"omitempty,min=1,max=100"`
	LastName        *string `json:"last_name,omitempty"        validate:"omitempty,min=1,max=100"`
	Email           *string `json:"email,omitempty"            validate:"omitempty,email,max=255"`
	Password        *string `json:"password,omitempty"         validate:"omitempty,min=8,max=128"`
	ConfirmPassword *string `json:"confirm_password,omitempty" validate:"omitempty,max=128"`
	Role            *string `json:"role,omitempty"             validate:"omitempty,max=50"`
}

type AccountResponse struct {
	ID         int64      `json:"id"`
	Title      string     `json:"title"`
	FirstName  string     `json:"first_name"`
	LastName   string     `json:"last_name"`
	Email      string     `json:"email"`
	Role       string     `json:"role"`
	IsVerified bool       `json:"is_verified"`
	VerifiedAt *time.Time `json:"verified_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

type ListAccountsParams struct {
	Page     int    `json:"page"`
	PageSize int    `json:"page_size"`
	Search   string `json:"search"`
	Role     string `json:"role"`
}

func (p *ListAccountsParams) Normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = 20
	}
	if p.PageSize > 100 {
		p.PageSize = 100
	}
}

func (p *ListAccountsParams) Offset() int {
	return (p.Page - 1) * p.PageSize
}

func ToAccountResponse(a *Account) AccountResponse {
	return AccountResponse{
		ID:         a.ID,
		Title:      a.Title,
		FirstName:  a.FirstName,
		LastName:   a.LastName,
		Email:      a.Email,
		Role:       a.Role,
		IsVerified: a.IsVerified(),
		VerifiedAt: a.VerifiedAt,
		CreatedAt:  a.CreatedAt,
		UpdatedAt:  a.UpdatedAt,
	}
}

func ToAccountResponseList(accounts []Account) []AccountResponse {
	responses := make([]AccountResponse, 0, len(accounts))
	for i := range accounts {
		responses = append(responses, ToAccountResponse(&accounts[i]))
	}
	return responses
}
