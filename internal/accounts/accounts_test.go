package accounts_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/geocoder89/inventoryhub/internal/accounts"
	"github.com/geocoder89/inventoryhub/internal/auth"
	"github.com/geocoder89/inventoryhub/internal/domain/user"
	"github.com/geocoder89/inventoryhub/internal/repo/memory"
	"github.com/geocoder89/inventoryhub/internal/security"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKey *rsa.PrivateKey

func key(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	if testKey == nil {
		k, err := rsa.GenerateKey(rand.Reader, 2048)
		require.NoError(t, err)
		testKey = k
	}
	return testKey
}

type env struct {
	store  *memory.Store
	svc    *accounts.Service
	tokens *auth.Manager
	now    *time.Time
}

func newEnv(t *testing.T) env {
	t.Helper()
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	k := key(t)
	tokens := auth.NewManager(k, &k.PublicKey, 10*time.Hour).WithClock(func() time.Time { return now })
	store := memory.NewStore()
	svc := accounts.NewService(store, tokens, accounts.Options{
		TOTPIssuer: "ExDateMan",
		Now:        func() time.Time { return now },
	})
	return env{store: store, svc: svc, tokens: tokens, now: &now}
}

func TestRegister_HashesPasswordAndNormalizesEmail(t *testing.T) {
	e := newEnv(t)

	u, err := e.svc.Register(context.Background(), "  Ann@Example.COM ", "Ann", "s3cret-pass")
	require.NoError(t, err)
	assert.Equal(t, "ann@example.com", u.Email)
	assert.NotEqual(t, "s3cret-pass", u.PasswordHash)
	assert.NoError(t, security.CheckPassword(u.PasswordHash, "s3cret-pass"))
}

func TestRegister_DuplicateEmailConflicts(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	first, err := e.svc.Register(ctx, "ann@example.com", "Ann", "pw-one")
	require.NoError(t, err)

	_, err = e.svc.Register(ctx, "ANN@example.com", "Other Ann", "pw-two")
	require.ErrorIs(t, err, user.ErrEmailTaken)

	// the original row is untouched
	got, err := e.store.GetByEmail(ctx, "ann@example.com")
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
	assert.Equal(t, "Ann", got.Name)
}

func TestLogin_DistinguishesFailures(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.svc.Register(ctx, "ann@example.com", "Ann", "right")
	require.NoError(t, err)

	_, _, err = e.svc.Login(ctx, "nobody@example.com", "right", "")
	assert.ErrorIs(t, err, user.ErrNotFound)

	_, _, err = e.svc.Login(ctx, "ann@example.com", "wrong", "")
	assert.ErrorIs(t, err, accounts.ErrInvalidCredentials)

	u, sess, err := e.svc.Login(ctx, "ANN@example.com", "right", "")
	require.NoError(t, err)
	assert.True(t, e.now.Add(10*time.Hour).Equal(sess.ExpiresAt))

	id, err := e.tokens.Verify(sess.Token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, id)
}

func enableTwoFactor(t *testing.T, e env, email string) user.User {
	t.Helper()
	ctx := context.Background()

	u, err := e.store.GetByEmail(ctx, email)
	require.NoError(t, err)

	u, err = e.svc.EnrollTwoFactor(ctx, u)
	require.NoError(t, err)
	require.True(t, u.HasTwoFactorSecret())

	code, err := security.TOTPCode(*u.TFASecret, *e.now)
	require.NoError(t, err)

	u, err = e.svc.EnableTwoFactor(ctx, u, code)
	require.NoError(t, err)
	require.True(t, u.TFAEnabled)
	return u
}

func TestLogin_TwoFactor(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.svc.Register(ctx, "ann@example.com", "Ann", "right")
	require.NoError(t, err)
	u := enableTwoFactor(t, e, "ann@example.com")

	_, _, err = e.svc.Login(ctx, "ann@example.com", "right", "")
	assert.ErrorIs(t, err, accounts.ErrInvalidTOTP)

	stale, err := security.TOTPCode(*u.TFASecret, e.now.Add(-5*time.Minute))
	require.NoError(t, err)
	_, sess, err := e.svc.Login(ctx, "ann@example.com", "right", stale)
	assert.ErrorIs(t, err, accounts.ErrInvalidTOTP)
	assert.Empty(t, sess.Token)

	// one step of drift either way is accepted
	for _, at := range []time.Time{e.now.Add(-30 * time.Second), *e.now, e.now.Add(30 * time.Second)} {
		code, err := security.TOTPCode(*u.TFASecret, at)
		require.NoError(t, err)
		_, sess, err := e.svc.Login(ctx, "ann@example.com", "right", code)
		require.NoError(t, err, "code for %s", at)
		assert.NotEmpty(t, sess.Token)
	}

	// the password is checked before the code
	good, err := security.TOTPCode(*u.TFASecret, *e.now)
	require.NoError(t, err)
	_, _, err = e.svc.Login(ctx, "ann@example.com", "wrong", good)
	assert.ErrorIs(t, err, accounts.ErrInvalidCredentials)
}

func TestLogin_DoesNotMutateUser(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.svc.Register(ctx, "ann@example.com", "Ann", "right")
	require.NoError(t, err)
	before, err := e.store.GetByEmail(ctx, "ann@example.com")
	require.NoError(t, err)

	_, _, _ = e.svc.Login(ctx, "ann@example.com", "wrong", "")
	_, _, err = e.svc.Login(ctx, "ann@example.com", "right", "")
	require.NoError(t, err)

	after, err := e.store.GetByEmail(ctx, "ann@example.com")
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestAuthenticate(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	u, err := e.svc.Register(ctx, "ann@example.com", "Ann", "right")
	require.NoError(t, err)
	sess, err := e.svc.IssueSession(u)
	require.NoError(t, err)

	got, err := e.svc.Authenticate(ctx, sess.Token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = e.svc.Authenticate(ctx, "")
	assert.ErrorIs(t, err, accounts.ErrInvalidSession)

	_, err = e.svc.Authenticate(ctx, sess.Token+"x")
	assert.ErrorIs(t, err, accounts.ErrInvalidSession)
	assert.ErrorIs(t, err, auth.ErrTokenInvalid)
}

func TestAuthenticate_Expired(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	u, err := e.svc.Register(ctx, "ann@example.com", "Ann", "right")
	require.NoError(t, err)
	sess, err := e.svc.IssueSession(u)
	require.NoError(t, err)

	*e.now = e.now.Add(10*time.Hour + time.Second)

	_, err = e.svc.Authenticate(ctx, sess.Token)
	assert.ErrorIs(t, err, accounts.ErrInvalidSession)
	assert.ErrorIs(t, err, auth.ErrTokenExpired)
}

func TestAuthenticate_AccountGone(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	u, err := e.svc.Register(ctx, "ann@example.com", "Ann", "right")
	require.NoError(t, err)
	sess, err := e.svc.IssueSession(u)
	require.NoError(t, err)

	require.NoError(t, e.store.DeleteUser(ctx, u.ID))

	_, err = e.svc.Authenticate(ctx, sess.Token)
	assert.ErrorIs(t, err, accounts.ErrAccountGone)
}

func TestEnrollTwoFactor_KeepsExistingSecret(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	u, err := e.svc.Register(ctx, "ann@example.com", "Ann", "right")
	require.NoError(t, err)

	first, err := e.svc.EnrollTwoFactor(ctx, u)
	require.NoError(t, err)
	require.NotNil(t, first.TFASecret)
	assert.Contains(t, *first.TFAURL, "otpauth://totp/")
	assert.Contains(t, *first.TFAURL, "ExDateMan")

	second, err := e.svc.EnrollTwoFactor(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, *first.TFASecret, *second.TFASecret)

	stored, err := e.store.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, *first.TFASecret, *stored.TFASecret)
	assert.False(t, stored.TFAEnabled)
}

func TestEnrollTwoFactor_OverlappingRequestsShareOneSecret(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	u, err := e.svc.Register(ctx, "ann@example.com", "Ann", "right")
	require.NoError(t, err)

	// both requests loaded the user before either enrolled
	snapA, err := e.store.GetByID(ctx, u.ID)
	require.NoError(t, err)
	snapB, err := e.store.GetByID(ctx, u.ID)
	require.NoError(t, err)

	a, err := e.svc.EnrollTwoFactor(ctx, snapA)
	require.NoError(t, err)
	b, err := e.svc.EnrollTwoFactor(ctx, snapB)
	require.NoError(t, err)

	stored, err := e.store.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, *stored.TFASecret, *a.TFASecret)
	assert.Equal(t, *stored.TFASecret, *b.TFASecret)
	assert.Equal(t, *stored.TFAURL, *b.TFAURL)
}

func TestEnableTwoFactor_Errors(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	u, err := e.svc.Register(ctx, "ann@example.com", "Ann", "right")
	require.NoError(t, err)

	_, err = e.svc.EnableTwoFactor(ctx, u, "123456")
	assert.ErrorIs(t, err, accounts.ErrTwoFactorNotEnrolled)

	u, err = e.svc.EnrollTwoFactor(ctx, u)
	require.NoError(t, err)

	_, err = e.svc.EnableTwoFactor(ctx, u, "000000x")
	assert.ErrorIs(t, err, accounts.ErrInvalidTOTP)

	stored, err := e.store.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, stored.TFAEnabled)
}
