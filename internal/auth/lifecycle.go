// AngelaMos | 2026
// lifecycle.go

package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/carterperez-dev/cms-backend/internal/core"
)

// Lifecycle is the only writer of refresh tokens. It creates, rotates,
// revokes and prunes them, and resolves a token back to its owner.
type Lifecycle struct {
	store    Repository
	accounts AccountProvider
	tokens   TokenSource
	ttl      time.Duration
	now      func() time.Time
}

type LifecycleOption func(*Lifecycle)

func WithLifecycleClock(now func() time.Time) LifecycleOption {
	return func(l *Lifecycle) {
		l.now = now
	}
}

func WithTokenSource(src TokenSource) LifecycleOption {
	return func(l *Lifecycle) {
		l.tokens = src
	}
}

func NewLifecycle(
	store Repository,
	accounts AccountProvider,
	ttlDays int,
	opts ...LifecycleOption,
) *Lifecycle {
	l := &Lifecycle{
		store:    store,
		accounts: accounts,
		tokens:   RandomTokenSource{},
		ttl:      time.Duration(ttlDays) * 24 * time.Hour,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Lifecycle) Now() time.Time {
	return l.now()
}

// IssueRefresh builds a new token for accountID without storing it.
func (l *Lifecycle) IssueRefresh(accountID int64, ip string) RefreshToken {
	now := l.now()
	return RefreshToken{
		Token:       l.tokens.Next(),
		AccountID:   accountID,
		CreatedAt:   now,
		CreatedByIP: ip,
		ExpiresAt:   now.Add(l.ttl),
	}
}

// Attach appends a freshly issued token to its account's lineage.
func (l *Lifecycle) Attach(ctx context.Context, token *RefreshToken) error {
	if err := l.store.Create(ctx, token); err != nil {
		return fmt.Errorf("attach refresh token: %w", err)
	}
	return nil
}

// Rotate revokes old in favour of successor. The store applies the change
// only if old is still active, so concurrent rotations of the same token
// yield exactly one winner; losers get ErrTokenInactive.
func (l *Lifecycle) Rotate(
	ctx context.Context,
	old, successor *RefreshToken,
	ip string,
) error {
	now := l.now()

	if err := l.store.Rotate(ctx, old.Token, successor, ip, now); err != nil {
		core.RecordTokenEvent(ctx, core.EventTokenRotated, old.AccountID, core.OutcomeFailure)
		return err
	}

	replacedBy := successor.Token
	old.markRevoked(ip, now, &replacedBy)

	core.RecordTokenEvent(ctx, core.EventTokenRotated, old.AccountID, core.OutcomeSuccess)

	return nil
}

func (l *Lifecycle) Revoke(ctx context.Context, token *RefreshToken, ip string) error {
	now := l.now()

	if err := l.store.Revoke(ctx, token.Token, ip, now); err != nil {
		core.RecordTokenEvent(ctx, core.EventTokenRevoked, token.AccountID, core.OutcomeFailure)
		return err
	}

	token.markRevoked(ip, now, nil)

	core.RecordTokenEvent(ctx, core.EventTokenRevoked, token.AccountID, core.OutcomeSuccess)

	return nil
}

// PruneStale removes tokens that have been inactive for longer than
// retention. Active tokens are never touched.
func (l *Lifecycle) PruneStale(
	ctx context.Context,
	accountID int64,
	retention time.Duration,
) (int64, error) {
	if retention < 0 {
		retention = 0
	}

	n, err := l.store.DeleteInactiveBefore(ctx, accountID, l.now().Add(-retention))
	if err != nil {
		return 0, fmt.Errorf("prune refresh tokens: %w", err)
	}

	return n, nil
}

func (l *Lifecycle) List(ctx context.Context, accountID int64) ([]RefreshToken, error) {
	return l.store.ListForAccount(ctx, accountID)
}

// Lookup resolves a token string to the token and its owning account, with
// the account's full lineage loaded. Unknown tokens and missing or deleted
// owners both report core.ErrNotFound.
func (l *Lifecycle) Lookup(
	ctx context.Context,
	token string,
) (*RefreshToken, *AccountInfo, error) {
	rt, err := l.store.FindByToken(ctx, token)
	if err != nil {
		return nil, nil, err
	}

	acct, err := l.accounts.FindByID(ctx, rt.AccountID)
	if err != nil {
		return nil, nil, fmt.Errorf("lookup token owner: %w", err)
	}

	lineage, err := l.store.ListForAccount(ctx, acct.ID)
	if err != nil {
		return nil, nil, err
	}
	acct.RefreshTokens = lineage

	if !acct.Owns(rt.Token) {
		return nil, nil, fmt.Errorf("lookup token owner: %w", core.ErrNotFound)
	}

	return rt, acct, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, core.ErrNotFound)
}
