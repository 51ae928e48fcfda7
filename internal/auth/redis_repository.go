// AngelaMos | 2026
// redis_repository.go

package auth

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/carterperez-dev/cms-backend/internal/core"
)

const DefaultRedisKeyPrefix = "cms:rt"

// Each token is a hash at {prefix}:tok:<token>; each account keeps its
// lineage as a list of token strings at {prefix}:acct:<id>. The braces are
// a cluster hash tag, so every key a script touches shares one slot.
const (
	fieldToken       = "token"
	fieldAccountID   = "account_id"
	fieldCreatedAt   = "created_at"
	fieldCreatedByIP = "created_by_ip"
	fieldExpiresAt   = "expires_at"
	fieldRevokedAt   = "revoked_at"
	fieldRevokedByIP = "revoked_by_ip"
	fieldReplacedBy  = "replaced_by"
)

const (
	scriptMissing  = 0
	scriptInactive = 1
	scriptApplied  = 2
	scriptConflict = 3
)

// KEYS[1] token hash, KEYS[2] account list
// ARGV[1] token, ARGV[2..] hash field/value pairs
var createTokenScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return 3
end
redis.call('HSET', KEYS[1], unpack(ARGV, 2))
redis.call('RPUSH', KEYS[2], ARGV[1])
return 2
`)

// KEYS[1] old token hash, KEYS[2] successor hash, KEYS[3] account list
// ARGV[1] now (unix ms), ARGV[2] ip, ARGV[3] successor token,
// ARGV[4..] successor field/value pairs
var rotateTokenScript = redis.NewScript(`
local state = redis.call('HMGET', KEYS[1], 'expires_at', 'revoked_at')
if not state[1] then
	return 0
end
if state[2] or tonumber(state[1]) <= tonumber(ARGV[1]) then
	return 1
end
if redis.call('EXISTS', KEYS[2]) == 1 then
	return 3
end
redis.call('HSET', KEYS[1], 'revoked_at', ARGV[1], 'revoked_by_ip', ARGV[2], 'replaced_by', ARGV[3])
redis.call('HSET', KEYS[2], unpack(ARGV, 4))
redis.call('RPUSH', KEYS[3], ARGV[3])
return 2
`)

// KEYS[1] token hash; ARGV[1] now (unix ms), ARGV[2] ip
var revokeTokenScript = redis.NewScript(`
local state = redis.call('HMGET', KEYS[1], 'expires_at', 'revoked_at')
if not state[1] then
	return 0
end
if state[2] or tonumber(state[1]) <= tonumber(ARGV[1]) then
	return 1
end
redis.call('HSET', KEYS[1], 'revoked_at', ARGV[1], 'revoked_by_ip', ARGV[2])
return 2
`)

type redisRepository struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisRepository(client redis.UniversalClient, prefix string) Repository {
	if prefix == "" {
		prefix = DefaultRedisKeyPrefix
	}
	return &redisRepository{client: client, prefix: hashTag(prefix)}
}

func hashTag(prefix string) string {
	if strings.Contains(prefix, "{") {
		return prefix
	}
	return "{" + prefix + "}"
}

func (r *redisRepository) tokenKey(token string) string {
	return r.prefix + ":tok:" + token
}

func (r *redisRepository) accountKey(accountID int64) string {
	return r.prefix + ":acct:" + strconv.FormatInt(accountID, 10)
}

func (r *redisRepository) Create(ctx context.Context, token *RefreshToken) error {
	args := append([]any{token.Token}, encodeToken(token)...)

	res, err := createTokenScript.Run(ctx, r.client,
		[]string{r.tokenKey(token.Token), r.accountKey(token.AccountID)},
		args...,
	).Int()
	if err != nil {
		return fmt.Errorf("create refresh token: %w", err)
	}

	if res == scriptConflict {
		return fmt.Errorf("create refresh token: %w", core.ErrDuplicateKey)
	}

	return nil
}

func (r *redisRepository) FindByToken(
	ctx context.Context,
	token string,
) (*RefreshToken, error) {
	fields, err := r.client.HGetAll(ctx, r.tokenKey(token)).Result()
	if err != nil {
		return nil, fmt.Errorf("find refresh token: %w", err)
	}

	if len(fields) == 0 {
		return nil, fmt.Errorf("find refresh token: %w", core.ErrNotFound)
	}

	rt, err := decodeToken(fields)
	if err != nil {
		return nil, fmt.Errorf("find refresh token: %w", err)
	}

	return rt, nil
}

func (r *redisRepository) ListForAccount(
	ctx context.Context,
	accountID int64,
) ([]RefreshToken, error) {
	values, err := r.client.LRange(ctx, r.accountKey(accountID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list refresh tokens: %w", err)
	}

	cmds := make([]*redis.MapStringStringCmd, len(values))
	_, err = r.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, v := range values {
			cmds[i] = p.HGetAll(ctx, r.tokenKey(v))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list refresh tokens: %w", err)
	}

	tokens := make([]RefreshToken, 0, len(values))
	for _, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		rt, decodeErr := decodeToken(fields)
		if decodeErr != nil {
			return nil, fmt.Errorf("list refresh tokens: %w", decodeErr)
		}
		tokens = append(tokens, *rt)
	}

	return tokens, nil
}

func (r *redisRepository) Rotate(
	ctx context.Context,
	oldToken string,
	successor *RefreshToken,
	ip string,
	now time.Time,
) error {
	args := []any{now.UnixMilli(), ip, successor.Token}
	args = append(args, encodeToken(successor)...)

	res, err := rotateTokenScript.Run(ctx, r.client,
		[]string{
			r.tokenKey(oldToken),
			r.tokenKey(successor.Token),
			r.accountKey(successor.AccountID),
		},
		args...,
	).Int()
	if err != nil {
		return fmt.Errorf("rotate refresh token: %w", err)
	}

	return scriptResult("rotate refresh token", res)
}

func (r *redisRepository) Revoke(
	ctx context.Context,
	token, ip string,
	now time.Time,
) error {
	res, err := revokeTokenScript.Run(ctx, r.client,
		[]string{r.tokenKey(token)},
		now.UnixMilli(), ip,
	).Int()
	if err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}

	return scriptResult("revoke refresh token", res)
}

// DeleteInactiveBefore reads the lineage and removes stale entries. Stale
// tokens can never become active again, so the read and the delete need not
// be atomic.
func (r *redisRepository) DeleteInactiveBefore(
	ctx context.Context,
	accountID int64,
	cutoff time.Time,
) (int64, error) {
	tokens, err := r.ListForAccount(ctx, accountID)
	if err != nil {
		return 0, fmt.Errorf("delete inactive refresh tokens: %w", err)
	}

	stale := make([]string, 0, len(tokens))
	for i := range tokens {
		if tokens[i].inactiveSince().Before(cutoff) {
			stale = append(stale, tokens[i].Token)
		}
	}

	if len(stale) == 0 {
		return 0, nil
	}

	listKey := r.accountKey(accountID)
	_, err = r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for _, tok := range stale {
			p.Del(ctx, r.tokenKey(tok))
			p.LRem(ctx, listKey, 0, tok)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("delete inactive refresh tokens: %w", err)
	}

	return int64(len(stale)), nil
}

func scriptResult(op string, res int) error {
	switch res {
	case scriptApplied:
		return nil
	case scriptMissing:
		return fmt.Errorf("%s: %w", op, core.ErrNotFound)
	case scriptInactive:
		return fmt.Errorf("%s: %w", op, ErrTokenInactive)
	case scriptConflict:
		return fmt.Errorf("%s: %w", op, core.ErrDuplicateKey)
	default:
		return fmt.Errorf("%s: unexpected script result %d", op, res)
	}
}

func encodeToken(t *RefreshToken) []any {
	return []any{
		fieldToken, t.Token,
		fieldAccountID, t.AccountID,
		fieldCreatedAt, t.CreatedAt.UnixMilli(),
		fieldCreatedByIP, t.CreatedByIP,
		fieldExpiresAt, t.ExpiresAt.UnixMilli(),
	}
}

func decodeToken(fields map[string]string) (*RefreshToken, error) {
	accountID, err := strconv.ParseInt(fields[fieldAccountID], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("decode account_id: %w", err)
	}

	createdAt, err := parseMillis(fields[fieldCreatedAt])
	if err != nil {
		return nil, fmt.Errorf("decode created_at: %w", err)
	}

	expiresAt, err := parseMillis(fields[fieldExpiresAt])
	if err != nil {
		return nil, fmt.Errorf("decode expires_at: %w", err)
	}

	rt := &RefreshToken{
		Token:       fields[fieldToken],
		AccountID:   accountID,
		CreatedAt:   createdAt,
		CreatedByIP: fields[fieldCreatedByIP],
		ExpiresAt:   expiresAt,
	}

	if v, ok := fields[fieldRevokedAt]; ok {
		revokedAt, parseErr := parseMillis(v)
		if parseErr != nil {
			return nil, fmt.Errorf("decode revoked_at: %w", parseErr)
		}
		rt.RevokedAt = &revokedAt
	}

	if v, ok := fields[fieldRevokedByIP]; ok {
		rt.RevokedByIP = &v
	}

	if v, ok := fields[fieldReplacedBy]; ok {
		rt.ReplacedBy = &v
	}

	return rt, nil
}

func parseMillis(s string) (time.Time, error) {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms).UTC(), nil
}

