// AngelaMos | 2026
// service.go

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/carterperez-dev/cms-backend/internal/core"
	"github.com/carterperez-dev/cms-backend/internal/middleware"
	"github.com/carterperez-dev/cms-backend/internal/role"
)

// ErrAuthentication is the single failure callers see for bad credentials
// and for unknown, expired, revoked or already rotated refresh tokens.
var ErrAuthentication = errors.New("authentication failed")

var (
	ErrInvalidVerificationToken = errors.New("invalid verification token")
	ErrInvalidResetToken        = errors.New("invalid or expired reset token")
)

const (
	eventLogin    = "login"
	eventRefresh  = "refresh"
	eventRevoke   = "revoke"
	eventRegister = "register"
	eventVerify   = "verify_email"
	eventForgot   = "forgot_password"
	eventReset    = "reset_password"
)

type AccountProvider interface {
	FindByEmail(ctx context.Context, email string) (*AccountInfo, error)
	FindByID(ctx context.Context, id int64) (*AccountInfo, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, acct NewAccount) (*AccountInfo, error)
	UpdatePasswordHash(ctx context.Context, id int64, passwordHash string) error
	ConsumeVerificationToken(ctx context.Context, token string, now time.Time) error
	SetResetToken(
		ctx context.Context,
		id int64,
		token string,
		expiresAt time.Time,
	) error
	FindByResetToken(
		ctx context.Context,
		token string,
		now time.Time,
	) (*AccountInfo, error)
	ResetPassword(
		ctx context.Context,
		token, passwordHash string,
		now time.Time,
	) error
}

type PasswordHasher interface {
	Hash(password string) (string, error)
	VerifyTimingSafe(password string, encodedHash *string) (bool, string, error)
}

type Notifier interface {
	SendVerificationEmail(ctx context.Context, to, name, token, origin string) error
	SendAlreadyRegisteredEmail(ctx context.Context, to, origin string) error
	SendPasswordResetEmail(ctx context.Context, to, name, token, origin string) error
}

type Config struct {
	AccessTokenTTL       time.Duration
	RefreshRetention     time.Duration
	ResetTokenTTL        time.Duration
	RequireVerifiedEmail bool
}

type Service struct {
	accounts  AccountProvider
	lifecycle *Lifecycle
	codec     *AccessTokenCodec
	hasher    PasswordHasher
	notifier  Notifier
	cfg       Config
	metrics   *core.Metrics
	logger    *slog.Logger
}

type ServiceOption func(*Service)

func WithMetrics(m *core.Metrics) ServiceOption {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = l
	}
}

func NewService(
	accounts AccountProvider,
	lifecycle *Lifecycle,
	codec *AccessTokenCodec,
	hasher PasswordHasher,
	notifier Notifier,
	cfg Config,
	opts ...ServiceOption,
) *Service {
	s := &Service{
		accounts:  accounts,
		lifecycle: lifecycle,
		codec:     codec,
		hasher:    hasher,
		notifier:  notifier,
		cfg:       cfg,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Login(
	ctx context.Context,
	req LoginRequest,
	ip string,
) (resp *AuthResponse, err error) {
	defer func() { s.metrics.AuthEvent(eventLogin, err) }()

	acct, err := s.accounts.FindByEmail(ctx, normalizeEmail(req.Email))
	if err != nil && !isNotFound(err) {
		return nil, fmt.Errorf("find account: %w", err)
	}

	var storedHash *string
	if acct != nil {
		storedHash = &acct.PasswordHash
	}

	valid, newHash, verifyErr := s.hasher.VerifyTimingSafe(req.Password, storedHash)
	if verifyErr != nil {
		s.logger.ErrorContext(ctx, "password verification error",
			"error", verifyErr,
		)
		return nil, ErrAuthentication
	}

	if !valid {
		s.logger.InfoContext(ctx, "login rejected", "ip", ip)
		return nil, ErrAuthentication
	}

	if s.cfg.RequireVerifiedEmail && !acct.IsVerified() {
		s.logger.InfoContext(ctx, "login rejected: unverified account",
			"account_id", acct.ID,
		)
		return nil, ErrAuthentication
	}

	if newHash != "" {
		if err := s.accounts.UpdatePasswordHash(ctx, acct.ID, newHash); err != nil {
			s.logger.WarnContext(ctx, "password rehash failed",
				"account_id", acct.ID,
				"error", err,
			)
		}
	}

	refresh := s.lifecycle.IssueRefresh(acct.ID, ip)
	if err := s.lifecycle.Attach(ctx, &refresh); err != nil {
		return nil, err
	}

	s.pruneStale(ctx, acct.ID)

	return s.authResponse(acct, &refresh)
}

// Refresh exchanges an active refresh token for a new token pair. The
// presented token is rotated away, so presenting it again fails.
func (s *Service) Refresh(
	ctx context.Context,
	token, ip string,
) (resp *AuthResponse, err error) {
	defer func() { s.metrics.AuthEvent(eventRefresh, err) }()

	current, acct, err := s.lifecycle.Lookup(ctx, token)
	if err != nil {
		return nil, s.rejectToken(ctx, eventRefresh, ip, err)
	}

	if !current.IsActive(s.lifecycle.Now()) {
		return nil, s.rejectToken(ctx, eventRefresh, ip, ErrTokenInactive)
	}

	successor := s.lifecycle.IssueRefresh(acct.ID, ip)
	if err := s.lifecycle.Rotate(ctx, current, &successor, ip); err != nil {
		return nil, s.rejectToken(ctx, eventRefresh, ip, err)
	}
	acct.RefreshTokens = append(acct.RefreshTokens, successor)

	s.pruneStale(ctx, acct.ID)

	return s.authResponse(acct, &successor)
}

func (s *Service) Revoke(ctx context.Context, token, ip string) (err error) {
	defer func() { s.metrics.AuthEvent(eventRevoke, err) }()

	current, _, err := s.lifecycle.Lookup(ctx, token)
	if err != nil {
		return s.rejectToken(ctx, eventRevoke, ip, err)
	}

	return s.revoke(ctx, current, ip)
}

// RevokeAs revokes token on behalf of requester, who must own it or be an
// administrator.
func (s *Service) RevokeAs(
	ctx context.Context,
	requester *middleware.Claims,
	token, ip string,
) (err error) {
	defer func() { s.metrics.AuthEvent(eventRevoke, err) }()

	if requester == nil {
		return ErrAuthentication
	}

	current, acct, err := s.lifecycle.Lookup(ctx, token)
	if err != nil {
		return s.rejectToken(ctx, eventRevoke, ip, err)
	}

	if !(acct.ID == requester.AccountID && acct.Owns(token)) &&
		!requester.HasRole(role.Admin) {
		return fmt.Errorf("revoke token: %w", core.ErrForbidden)
	}

	return s.revoke(ctx, current, ip)
}

func (s *Service) revoke(ctx context.Context, current *RefreshToken, ip string) error {
	if !current.IsActive(s.lifecycle.Now()) {
		return s.rejectToken(ctx, eventRevoke, ip, ErrTokenInactive)
	}

	if err := s.lifecycle.Revoke(ctx, current, ip); err != nil {
		return s.rejectToken(ctx, eventRevoke, ip, err)
	}

	s.logger.InfoContext(ctx, "refresh token revoked",
		"account_id", current.AccountID,
		"ip", ip,
	)

	return nil
}

// Register creates an unverified account with the User role. An address
// that is already registered gets a notice by email instead of an error.
// The password is hashed on both paths so response time does not depend on
// whether the address exists.
func (s *Service) Register(
	ctx context.Context,
	req RegisterRequest,
	origin string,
) (err error) {
	defer func() { s.metrics.AuthEvent(eventRegister, err) }()

	email := normalizeEmail(req.Email)

	passwordHash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	exists, err := s.accounts.ExistsByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("check email: %w", err)
	}
	if exists {
		s.sendAlreadyRegistered(ctx, email, origin)
		return nil
	}

	verificationToken := s.lifecycle.tokens.Next()

	acct, err := s.accounts.Create(ctx, NewAccount{
		Title:             req.Title,
		FirstName:         req.FirstName,
		LastName:          req.LastName,
		Email:             email,
		PasswordHash:      passwordHash,
		Role:              role.User.String(),
		AcceptedTerms:     req.AcceptTerms,
		VerificationToken: &verificationToken,
	})
	if err != nil {
		if errors.Is(err, core.ErrDuplicateKey) {
			s.sendAlreadyRegistered(ctx, email, origin)
			return nil
		}
		return fmt.Errorf("create account: %w", err)
	}

	s.logger.InfoContext(ctx, "account registered", "account_id", acct.ID)

	if err := s.notifier.SendVerificationEmail(
		ctx, acct.Email, acct.FirstName, verificationToken, origin,
	); err != nil {
		s.logger.ErrorContext(ctx, "send verification email failed",
			"account_id", acct.ID,
			"error", err,
		)
	}

	return nil
}

func (s *Service) VerifyEmail(ctx context.Context, token string) (err error) {
	defer func() { s.metrics.AuthEvent(eventVerify, err) }()

	err = s.accounts.ConsumeVerificationToken(ctx, token, s.lifecycle.Now())
	if isNotFound(err) {
		return ErrInvalidVerificationToken
	}
	if err != nil {
		return fmt.Errorf("verify email: %w", err)
	}

	return nil
}

// ForgotPassword stores a reset token and mails it. Unknown addresses get
// the same empty answer, but the write and the mail on the known path are
// not time-masked.
func (s *Service) ForgotPassword(
	ctx context.Context,
	email, origin string,
) (err error) {
	defer func() { s.metrics.AuthEvent(eventForgot, err) }()

	acct, err := s.accounts.FindByEmail(ctx, normalizeEmail(email))
	if isNotFound(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("find account: %w", err)
	}

	resetToken := s.lifecycle.tokens.Next()
	expiresAt := s.lifecycle.Now().Add(s.cfg.ResetTokenTTL)

	if err := s.accounts.SetResetToken(ctx, acct.ID, resetToken, expiresAt); err != nil {
		return fmt.Errorf("set reset token: %w", err)
	}

	if err := s.notifier.SendPasswordResetEmail(
		ctx, acct.Email, acct.FirstName, resetToken, origin,
	); err != nil {
		s.logger.ErrorContext(ctx, "send password reset email failed",
			"account_id", acct.ID,
			"error", err,
		)
	}

	return nil
}

func (s *Service) ValidateResetToken(ctx context.Context, token string) error {
	_, err := s.accounts.FindByResetToken(ctx, token, s.lifecycle.Now())
	if isNotFound(err) {
		return ErrInvalidResetToken
	}
	if err != nil {
		return fmt.Errorf("validate reset token: %w", err)
	}
	return nil
}

func (s *Service) ResetPassword(
	ctx context.Context,
	req ResetPasswordRequest,
) (err error) {
	defer func() { s.metrics.AuthEvent(eventReset, err) }()

	passwordHash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	err = s.accounts.ResetPassword(ctx, req.Token, passwordHash, s.lifecycle.Now())
	if isNotFound(err) {
		return ErrInvalidResetToken
	}
	if err != nil {
		return fmt.Errorf("reset password: %w", err)
	}

	return nil
}

func (s *Service) ListRefreshTokens(
	ctx context.Context,
	requester *middleware.Claims,
	accountID int64,
) ([]RefreshTokenResponse, error) {
	if requester == nil {
		return nil, ErrAuthentication
	}

	if requester.AccountID != accountID && !requester.HasRole(role.Admin) {
		return nil, fmt.Errorf("list refresh tokens: %w", core.ErrForbidden)
	}

	if _, err := s.accounts.FindByID(ctx, accountID); err != nil {
		return nil, fmt.Errorf("list refresh tokens: %w", err)
	}

	tokens, err := s.lifecycle.List(ctx, accountID)
	if err != nil {
		return nil, err
	}

	now := s.lifecycle.Now()
	out := make([]RefreshTokenResponse, 0, len(tokens))
	for i := range tokens {
		out = append(out, toRefreshTokenResponse(&tokens[i], now))
	}

	return out, nil
}

func (s *Service) authResponse(
	acct *AccountInfo,
	refresh *RefreshToken,
) (*AuthResponse, error) {
	accessToken, err := s.codec.Mint(acct.ID, acct.Role, s.cfg.AccessTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("mint access token: %w", err)
	}

	return &AuthResponse{
		Account: ToAccountResponse(acct),
		Tokens: TokenResponse{
			AccessToken:  accessToken,
			RefreshToken: refresh.Token,
			TokenType:    "Bearer",
			ExpiresIn:    int(s.cfg.AccessTokenTTL.Seconds()),
			ExpiresAt:    s.lifecycle.Now().Add(s.cfg.AccessTokenTTL),
		},
	}, nil
}

// rejectToken collapses token failures into ErrAuthentication. Storage
// errors other than not-found and lost compare-and-swap pass through.
func (s *Service) rejectToken(ctx context.Context, event, ip string, cause error) error {
	if !isNotFound(cause) && !errors.Is(cause, ErrTokenInactive) {
		return fmt.Errorf("%s: %w", event, cause)
	}

	core.RecordAuthRejection(ctx, event, cause)
	s.logger.InfoContext(ctx, "refresh token rejected",
		"event", event,
		"ip", ip,
		"reason", cause.Error(),
	)

	return ErrAuthentication
}

func (s *Service) pruneStale(ctx context.Context, accountID int64) {
	n, err := s.lifecycle.PruneStale(ctx, accountID, s.cfg.RefreshRetention)
	if err != nil {
		s.logger.WarnContext(ctx, "prune refresh tokens failed",
			"account_id", accountID,
			"error", err,
		)
		return
	}
	s.metrics.TokensPruned(n)
}

func (s *Service) sendAlreadyRegistered(ctx context.Context, email, origin string) {
	if err := s.notifier.SendAlreadyRegisteredEmail(ctx, email, origin); err != nil {
		s.logger.ErrorContext(ctx, "send already registered email failed",
			"error", err,
		)
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
