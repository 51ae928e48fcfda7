// AngelaMos | 2026
// fakes_test.go

package auth

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/cms-backend/internal/core"
)

type fakeAccount struct {
	info              AccountInfo
	verificationToken string
	resetToken        string
	resetExpires      time.Time
	deleted           bool
}

type fakeAccounts struct {
	mu       sync.Mutex
	byID     map[int64]*fakeAccount
	nextID   int64
	rehashed map[int64]string
}

func newFakeAccounts() *fakeAccounts {
	return &fakeAccounts{
		byID:     make(map[int64]*fakeAccount),
		rehashed: make(map[int64]string),
	}
}

func (f *fakeAccounts) add(info AccountInfo) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	info.ID = f.nextID
	f.byID[info.ID] = &fakeAccount{info: info}
	return info.ID
}

func (f *fakeAccounts) softDelete(id int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[id].deleted = true
}

func (f *fakeAccounts) live(id int64) (*fakeAccount, bool) {
	a, ok := f.byID[id]
	if !ok || a.deleted {
		return nil, false
	}
	return a, true
}

func (f *fakeAccounts) FindByEmail(_ context.Context, email string) (*AccountInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.byID {
		if a.info.Email == email && !a.deleted {
			info := a.info
			return &info, nil
		}
	}
	return nil, fmt.Errorf("find by email: %w", core.ErrNotFound)
}

func (f *fakeAccounts) FindByID(_ context.Context, id int64) (*AccountInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.live(id)
	if !ok {
		return nil, fmt.Errorf("find by id: %w", core.ErrNotFound)
	}
	info := a.info
	return &info, nil
}

func (f *fakeAccounts) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := f.FindByEmail(ctx, email)
	return err == nil, nil
}

func (f *fakeAccounts) Create(ctx context.Context, n NewAccount) (*AccountInfo, error) {
	if exists, _ := f.ExistsByEmail(ctx, n.Email); exists {
		return nil, fmt.Errorf("create: %w", core.ErrDuplicateKey)
	}

	id := f.add(AccountInfo{
		Title:        n.Title,
		FirstName:    n.FirstName,
		LastName:     n.LastName,
		Email:        n.Email,
		PasswordHash: n.PasswordHash,
		Role:         n.Role,
		VerifiedAt:   n.VerifiedAt,
	})

	f.mu.Lock()
	defer f.mu.Unlock()
	if n.VerificationToken != nil {
		f.byID[id].verificationToken = *n.VerificationToken
	}
	info := f.byID[id].info
	return &info, nil
}

func (f *fakeAccounts) UpdatePasswordHash(_ context.Context, id int64, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.live(id)
	if !ok {
		return core.ErrNotFound
	}
	a.info.PasswordHash = hash
	f.rehashed[id] = hash
	return nil
}

func (f *fakeAccounts) ConsumeVerificationToken(_ context.Context, token string, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.byID {
		if token != "" && a.verificationToken == token && !a.deleted {
			a.info.VerifiedAt = &now
			a.verificationToken = ""
			return nil
		}
	}
	return core.ErrNotFound
}

func (f *fakeAccounts) SetResetToken(_ context.Context, id int64, token string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.live(id)
	if !ok {
		return core.ErrNotFound
	}
	a.resetToken = token
	a.resetExpires = expiresAt
	return nil
}

func (f *fakeAccounts) findReset(token string, now time.Time) *fakeAccount {
	for _, a := range f.byID {
		if token != "" && a.resetToken == token && now.Before(a.resetExpires) && !a.deleted {
			return a
		}
	}
	return nil
}

func (f *fakeAccounts) FindByResetToken(_ context.Context, token string, now time.Time) (*AccountInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a := f.findReset(token, now)
	if a == nil {
		return nil, core.ErrNotFound
	}
	info := a.info
	return &info, nil
}

func (f *fakeAccounts) ResetPassword(_ context.Context, token, hash string, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a := f.findReset(token, now)
	if a == nil {
		return core.ErrNotFound
	}
	a.info.PasswordHash = hash
	a.resetToken = ""
	return nil
}

type sentMail struct {
	kind  string
	to    string
	token string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentMail
}

func (n *fakeNotifier) record(m sentMail) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, m)
	return nil
}

func (n *fakeNotifier) SendVerificationEmail(_ context.Context, to, _, token, _ string) error {
	return n.record(sentMail{kind: "verify", to: to, token: token})
}

func (n *fakeNotifier) SendAlreadyRegisteredEmail(_ context.Context, to, _ string) error {
	return n.record(sentMail{kind: "already_registered", to: to})
}

func (n *fakeNotifier) SendPasswordResetEmail(_ context.Context, to, _, token, _ string) error {
	return n.record(sentMail{kind: "reset", to: to, token: token})
}

func (n *fakeNotifier) last() sentMail {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.sent) == 0 {
		return sentMail{}
	}
	return n.sent[len(n.sent)-1]
}

type seqTokenSource struct {
	n atomic.Int64
}

func (s *seqTokenSource) Next() string {
	return fmt.Sprintf("tok-%04d", s.n.Add(1))
}

type countingHasher struct {
	*core.PasswordHasher
	hashes atomic.Int32
}

func (h *countingHasher) Hash(password string) (string, error) {
	h.hashes.Add(1)
	return h.PasswordHasher.Hash(password)
}

type testEnv struct {
	svc      *Service
	codec    *AccessTokenCodec
	accounts *fakeAccounts
	notifier *fakeNotifier
	clock    *fakeClock
	store    Repository
	hasher   *core.PasswordHasher
	counting *countingHasher
	metrics  *core.Metrics
}

func newTestEnv(t *testing.T, cfgs ...func(*Config)) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	clock := newFakeClock()
	accounts := newFakeAccounts()
	notifier := &fakeNotifier{}
	store := NewRedisRepository(rdb, "test:rt")

	hasher, err := core.NewPasswordHasherWithParams(core.ArgonParams{
		Time: 1, Memory: 1024, Threads: 1, KeyLen: 32,
	})
	require.NoError(t, err)

	codec, err := NewAccessTokenCodec(testSecret, WithCodecClock(clock.Now))
	require.NoError(t, err)

	lifecycle := NewLifecycle(store, accounts, 7,
		WithLifecycleClock(clock.Now),
		WithTokenSource(&seqTokenSource{}),
	)

	cfg := Config{
		AccessTokenTTL:   15 * time.Minute,
		RefreshRetention: 2 * 24 * time.Hour,
		ResetTokenTTL:    24 * time.Hour,
	}
	for _, fn := range cfgs {
		fn(&cfg)
	}

	counting := &countingHasher{PasswordHasher: hasher}
	metrics := core.NewMetrics()
	svc := NewService(accounts, lifecycle, codec, counting, notifier, cfg,
		WithMetrics(metrics),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)

	return &testEnv{
		svc:      svc,
		codec:    codec,
		accounts: accounts,
		notifier: notifier,
		clock:    clock,
		store:    store,
		hasher:   hasher,
		counting: counting,
		metrics:  metrics,
	}
}

// seedAccount stores a verified account with the given password.
func (e *testEnv) seedAccount(t *testing.T, email, password, roleName string) int64 {
	t.Helper()
	hash, err := e.hasher.Hash(password)
	require.NoError(t, err)
	verified := e.clock.Now()
	return e.accounts.add(AccountInfo{
		FirstName:    "Test",
		LastName:     "Account",
		Email:        email,
		PasswordHash: hash,
		Role:         roleName,
		VerifiedAt:   &verified,
	})
}
