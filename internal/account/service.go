// AngelaMos | 2026
// service.go

package account

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/carterperez-dev/cms-backend/internal/auth"
	"github.com/carterperez-dev/cms-backend/internal/core"
	"github.com/carterperez-dev/cms-backend/internal/middleware"
	"github.com/carterperez-dev/cms-backend/internal/role"
)

type PasswordHasher interface {
	Hash(password string) (string, error)
}

type Service struct {
	repo   Repository
	hasher PasswordHasher
	now    func() time.Time
}

func NewService(repo Repository, hasher PasswordHasher) *Service {
	return &Service{
		repo:   repo,
		hasher: hasher,
		now:    time.Now,
	}
}

func (s *Service) FindByID(ctx context.Context, id int64) (*auth.AccountInfo, error) {
	acct, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return toAccountInfo(acct), nil
}

func (s *Service) FindByEmail(ctx context.Context, email string) (*auth.AccountInfo, error) {
	acct, err := s.repo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, err
	}
	return toAccountInfo(acct), nil
}

func (s *Service) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return s.repo.ExistsByEmail(ctx, normalizeEmail(email))
}

func (s *Service) Create(ctx context.Context, n auth.NewAccount) (*auth.AccountInfo, error) {
	acct := &Account{
		Title:             n.Title,
		FirstName:         n.FirstName,
		LastName:          n.LastName,
		Email:             normalizeEmail(n.Email),
		PasswordHash:      n.PasswordHash,
		Role:              role.Canonical(n.Role).String(),
		AcceptedTerms:     n.AcceptedTerms,
		VerificationToken: n.VerificationToken,
		VerifiedAt:        n.VerifiedAt,
	}

	if err := s.repo.Create(ctx, acct); err != nil {
		return nil, err
	}

	return toAccountInfo(acct), nil
}

func (s *Service) UpdatePasswordHash(ctx context.Context, id int64, passwordHash string) error {
	return s.repo.UpdatePassword(ctx, id, passwordHash)
}

func (s *Service) ConsumeVerificationToken(ctx context.Context, token string, now time.Time) error {
	return s.repo.ConsumeVerificationToken(ctx, token, now)
}

func (s *Service) SetResetToken(
	ctx context.Context,
	id int64,
	token string,
	expiresAt time.Time,
) error {
	return s.repo.SetResetToken(ctx, id, token, expiresAt)
}

func (s *Service) FindByResetToken(
	ctx context.Context,
	token string,
	now time.Time,
) (*auth.AccountInfo, error) {
	acct, err := s.repo.GetByResetToken(ctx, token, now)
	if err != nil {
		return nil, err
	}
	return toAccountInfo(acct), nil
}

func (s *Service) ResetPassword(
	ctx context.Context,
	token, passwordHash string,
	now time.Time,
) error {
	return s.repo.ResetPassword(ctx, token, passwordHash, now)
}

func (s *Service) GetAccount(
	ctx context.Context,
	requester *middleware.Claims,
	id int64,
) (*Account, error) {
	if err := authorizeSelfOrAdmin(requester, id); err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListAccounts(
	ctx context.Context,
	params ListAccountsParams,
) ([]Account, int, error) {
	return s.repo.List(ctx, params)
}

// CreateAccount adds an account on behalf of an administrator. Such
// accounts are verified from the start.
func (s *Service) CreateAccount(
	ctx context.Context,
	req CreateAccountRequest,
) (*Account, error) {
	passwordHash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	acct := &Account{
		Title:         req.Title,
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		Email:         normalizeEmail(req.Email),
		PasswordHash:  passwordHash,
		Role:          role.Canonical(req.Role).String(),
		AcceptedTerms: true,
		VerifiedAt:    &now,
	}

	if err := s.repo.Create(ctx, acct); err != nil {
		return nil, err
	}

	return acct, nil
}

// UpdateAccount applies the non-nil fields of req. Accounts may edit
// themselves; only administrators may edit others or change a role.
func (s *Service) UpdateAccount(
	ctx context.Context,
	requester *middleware.Claims,
	id int64,
	req UpdateAccountRequest,
) (*Account, error) {
	if err := authorizeSelfOrAdmin(requester, id); err != nil {
		return nil, fmt.Errorf("update account: %w", err)
	}

	acct, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Role != nil && !role.Canonical(*req.Role).Equal(role.Role(acct.Role)) {
		if !requester.HasRole(role.Admin) {
			return nil, fmt.Errorf("update account role: %w", core.ErrForbidden)
		}
		acct.Role = role.Canonical(*req.Role).String()
	}

	if req.Title != nil {
		acct.Title = *req.Title
	}
	if req.FirstName != nil {
		acct.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		acct.LastName = *req.LastName
	}
	if req.Email != nil {
		acct.Email = normalizeEmail(*req.Email)
	}

	if req.Password != nil && *req.Password != "" {
		if req.ConfirmPassword == nil || *req.ConfirmPassword != *req.Password {
			return nil, fmt.Errorf("update account: passwords do not match: %w", core.ErrInvalidInput)
		}

		passwordHash, err := s.hasher.Hash(*req.Password)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		if err := s.repo.UpdatePassword(ctx, id, passwordHash); err != nil {
			return nil, err
		}
		acct.PasswordHash = passwordHash
	}

	if err := s.repo.Update(ctx, acct); err != nil {
		return nil, err
	}

	return acct, nil
}

func (s *Service) DeleteAccount(
	ctx context.Context,
	requester *middleware.Claims,
	id int64,
) error {
	if err := authorizeSelfOrAdmin(requester, id); err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	return s.repo.SoftDelete(ctx, id)
}

func (s *Service) CountByRole(ctx context.Context) ([]RoleCount, error) {
	return s.repo.CountByRole(ctx)
}

func authorizeSelfOrAdmin(requester *middleware.Claims, id int64) error {
	if requester == nil {
		return core.ErrUnauthorized
	}
	if requester.AccountID != id && !requester.HasRole(role.Admin) {
		return core.ErrForbidden
	}
	return nil
}

func toAccountInfo(a *Account) *auth.AccountInfo {
	return &auth.AccountInfo{
		ID:           a.ID,
		Title:        a.Title,
		FirstName:    a.FirstName,
		LastName:     a.LastName,
		Email:        a.Email,
		PasswordHash: a.PasswordHash,
		Role:         a.Role,
		VerifiedAt:   a.VerifiedAt,
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

var _ auth.AccountProvider = (*Service)(nil)
