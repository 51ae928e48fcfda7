// AngelaMos | 2026
// repository_test.go

package auth

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/cms-backend/internal/core"
)

func newMockRepo(t *testing.T) (Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return NewPostgresRepository(sqlx.NewDb(db, "pgx")), mock
}

var tokenCols = []string{
	"token", "account_id", "created_at", "created_by_ip",
	"expires_at", "revoked_at", "revoked_by_ip", "replaced_by",
}

func TestPostgresRepository_RotateCommits(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	successor := &RefreshToken{
		Token:       "new-token",
		AccountID:   4,
		CreatedAt:   now,
		CreatedByIP: "10.0.0.1",
		ExpiresAt:   now.Add(7 * 24 * time.Hour),
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE refresh_tokens")+`.*revoked_at IS NULL AND expires_at > \$2`).
		WithArgs("old-token", now, "10.0.0.1", "new-token").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO refresh_tokens")).
		WithArgs("new-token", int64(4), now, "10.0.0.1", successor.ExpiresAt).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Rotate(context.Background(), "old-token", successor, "10.0.0.1", now))
}

func TestPostgresRepository_RotateLostRace(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE refresh_tokens")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Rotate(context.Background(), "old", &RefreshToken{Token: "new"}, "ip", now)
	require.ErrorIs(t, err, ErrTokenInactive)
}

func TestPostgresRepository_RotateInsertFailureRollsBack(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE refresh_tokens")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO refresh_tokens")).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err := repo.Rotate(context.Background(), "old", &RefreshToken{Token: "new"}, "ip", now)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrTokenInactive)
}

func TestPostgresRepository_RevokeInactive(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE refresh_tokens")).
		WithArgs("tok", now, "1.2.3.4").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Revoke(context.Background(), "tok", "1.2.3.4", now)
	require.ErrorIs(t, err, ErrTokenInactive)
}

func TestPostgresRepository_FindByToken(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("FROM refresh_tokens")).
		WithArgs("tok").
		WillReturnRows(sqlmock.NewRows(tokenCols).
			AddRow("tok", int64(2), now, "10.0.0.9", now.Add(time.Hour), nil, nil, nil))

	rt, err := repo.FindByToken(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, int64(2), rt.AccountID)
	assert.Nil(t, rt.RevokedAt)
	assert.True(t, rt.IsActive(now))

	mock.ExpectQuery(regexp.QuoteMeta("FROM refresh_tokens")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(tokenCols))

	_, err = repo.FindByToken(context.Background(), "missing")
	require.ErrorIs(t, err, core.ErrNotFound)
}

func TestPostgresRepository_ListForAccount(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()
	replaced := "b"

	mock.ExpectQuery(regexp.QuoteMeta("WHERE account_id = $1") + `\s+ORDER BY id`).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows(tokenCols).
			AddRow("a", int64(5), now, "ip", now.Add(time.Hour), now, "ip", replaced).
			AddRow("b", int64(5), now, "ip", now.Add(time.Hour), nil, nil, nil))

	tokens, err := repo.ListForAccount(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, tokens, 2)
	assert.Equal(t, "a", tokens[0].Token)
	require.NotNil(t, tokens[0].ReplacedBy)
	assert.Equal(t, "b", *tokens[0].ReplacedBy)
	assert.Equal(t, "b", tokens[1].Token)
}

func TestPostgresRepository_DeleteInactiveBefore(t *testing.T) {
	repo, mock := newMockRepo(t)
	cutoff := time.Now()

	mock.ExpectExec(regexp.QuoteMeta("COALESCE(revoked_at, expires_at) < $2")).
		WithArgs(int64(5), cutoff).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.DeleteInactiveBefore(context.Background(), 5, cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}
