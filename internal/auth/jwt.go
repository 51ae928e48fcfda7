// AngelaMos | 2026
// jwt.go

package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jwt"

	"github.com/carterperez-dev/cms-backend/internal/core"
	"github.com/carterperez-dev/cms-backend/internal/middleware"
)

const (
	claimAccountID = "id"
	claimRole      = "role"
)

// AccessTokenCodec mints and validates HS256 access tokens carrying the
// account id and role. Expiry is enforced with no clock skew allowance.
type AccessTokenCodec struct {
	key   jwk.Key
	clock func() time.Time
}

type CodecOption func(*AccessTokenCodec)

func WithCodecClock(clock func() time.Time) CodecOption {
	return func(c *AccessTokenCodec) {
		c.clock = clock
	}
}

func NewAccessTokenCodec(secret string, opts ...CodecOption) (*AccessTokenCodec, error) {
	if secret == "" {
		return nil, fmt.Errorf("access token secret is empty: %w", core.ErrConfiguration)
	}

	key, err := jwk.Import([]byte(secret))
	if err != nil {
		return nil, fmt.Errorf("import signing key: %w", err)
	}

	if setErr := key.Set(jwk.AlgorithmKey, jwa.HS256()); setErr != nil {
		return nil, fmt.Errorf("set algorithm: %w", setErr)
	}

	c := &AccessTokenCodec{
		key:   key,
		clock: time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

func (c *AccessTokenCodec) Mint(
	accountID int64,
	role string,
	ttl time.Duration,
) (string, error) {
	now := c.clock()

	token, err := jwt.NewBuilder().
		IssuedAt(now).
		Expiration(now.Add(ttl)).
		Claim(claimAccountID, strconv.FormatInt(accountID, 10)).
		Claim(claimRole, role).
		Build()
	if err != nil {
		return "", fmt.Errorf("build token: %w", err)
	}

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS256(), c.key))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return string(signed), nil
}

func (c *AccessTokenCodec) Validate(
	_ context.Context,
	tokenString string,
) (*middleware.Claims, error) {
	token, err := jwt.Parse(
		[]byte(tokenString),
		jwt.WithKey(jwa.HS256(), c.key),
		jwt.WithValidate(true),
		jwt.WithClock(jwt.ClockFunc(c.clock)),
		jwt.WithAcceptableSkew(0),
	)
	if err != nil {
		if errors.Is(err, jwt.TokenExpiredError()) {
			return nil, fmt.Errorf("validate token: %w", core.ErrTokenExpired)
		}
		return nil, fmt.Errorf("validate token: %w", core.ErrTokenInvalid)
	}

	if _, ok := token.Expiration(); !ok {
		return nil, fmt.Errorf(
			"validate token: missing exp claim: %w",
			core.ErrTokenInvalid,
		)
	}

	var idStr string
	if err := token.Get(claimAccountID, &idStr); err != nil {
		return nil, fmt.Errorf(
			"validate token: missing id claim: %w",
			core.ErrTokenInvalid,
		)
	}

	accountID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf(
			"validate token: non-numeric id claim: %w",
			core.ErrTokenInvalid,
		)
	}

	var roleStr string
	if err := token.Get(claimRole, &roleStr); err != nil {
		return nil, fmt.Errorf(
			"validate token: missing role claim: %w",
			core.ErrTokenInvalid,
		)
	}

	return &middleware.Claims{
		AccountID: accountID,
		Role:      roleStr,
	}, nil
}
