package accounts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/geocoder89/inventoryhub/internal/auth"
	"github.com/geocoder89/inventoryhub/internal/domain/user"
	"github.com/geocoder89/inventoryhub/internal/observability"
	"github.com/geocoder89/inventoryhub/internal/security"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("inventoryhub/accounts")

var (
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrInvalidTOTP          = errors.New("invalid TOTP token")
	ErrInvalidSession       = errors.New("invalid session")
	ErrAccountGone          = errors.New("account no longer exists")
	ErrTwoFactorNotEnrolled = errors.New("two-factor authentication has not been set up")
)

type UserStore interface {
	Create(ctx context.Context, u user.User) (user.User, error)
	GetByEmail(ctx context.Context, email string) (user.User, error)
	GetByID(ctx context.Context, id int64) (user.User, error)
	SetTwoFactor(ctx context.Context, id int64, secret, url *string, enabled bool) error
	// EnrollTwoFactor sets the secret only if none is stored and returns the stored row.
	EnrollTwoFactor(ctx context.Context, id int64, secret, url string) (user.User, error)
}

// Session is a freshly issued session token.
type Session struct {
	Token     string
	ExpiresAt time.Time
}

type Service struct {
	users  UserStore
	tokens *auth.Manager
	issuer string
	now    func() time.Time
	logger *slog.Logger
	prom   *observability.Prom
}

type Options struct {
	TOTPIssuer string
	Logger     *slog.Logger
	Prom       *observability.Prom
	Now        func() time.Time
}

func NewService(users UserStore, tokens *auth.Manager, opts Options) *Service {
	s := &Service{
		users:  users,
		tokens: tokens,
		issuer: opts.TOTPIssuer,
		now:    opts.Now,
		logger: opts.Logger,
		prom:   opts.Prom,
	}
	if s.issuer == "" {
		s.issuer = "ExDateMan"
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Register creates an account. The password is hashed before anything is stored.
func (s *Service) Register(ctx context.Context, email, name, rawPassword string) (user.User, error) {
	ctx, span := tracer.Start(ctx, "Accounts.Register")
	defer span.End()

	hash, err := security.HashPassword(rawPassword)
	if err != nil {
		fail(span, err, "hash password")
		return user.User{}, fmt.Errorf("hash password: %w", err)
	}

	u, err := s.users.Create(ctx, user.User{
		Email:        user.NormalizeEmail(email),
		Name:         name,
		PasswordHash: hash,
		CreatedAt:    s.now().UTC(),
	})
	if err != nil {
		if errors.Is(err, user.ErrEmailTaken) {
			s.prom.ObserveAuth("register", "conflict")
			return user.User{}, err
		}
		fail(span, err, "create user")
		s.prom.ObserveAuth("register", "error")
		return user.User{}, fmt.Errorf("create user: %w", err)
	}

	span.SetAttributes(attribute.Int64("user.id", u.ID))
	s.prom.ObserveAuth("register", "ok")
	s.logger.InfoContext(ctx, "user.registered", "user_id", u.ID)

	return u, nil
}

// Login verifies the password and, when 2FA is on, the TOTP code, then issues
// a session. It never changes stored state.
func (s *Service) Login(ctx context.Context, email, rawPassword, totpCode string) (user.User, Session, error) {
	ctx, span := tracer.Start(ctx, "Accounts.Login")
	defer span.End()

	u, err := s.users.GetByEmail(ctx, user.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			s.prom.ObserveAuth("login", "unknown_email")
			return user.User{}, Session{}, err
		}
		fail(span, err, "load user")
		return user.User{}, Session{}, fmt.Errorf("load user: %w", err)
	}

	span.SetAttributes(attribute.Int64("user.id", u.ID), attribute.Bool("user.tfa_enabled", u.TFAEnabled))

	if err := security.CheckPassword(u.PasswordHash, rawPassword); err != nil {
		if !errors.Is(err, security.ErrPasswordMismatch) {
			fail(span, err, "verify password")
			return user.User{}, Session{}, fmt.Errorf("verify password: %w", err)
		}
		s.prom.ObserveAuth("login", "bad_password")
		return user.User{}, Session{}, ErrInvalidCredentials
	}

	if u.TFAEnabled {
		if u.TFASecret == nil || !security.ValidateTOTP(totpCode, *u.TFASecret, s.now()) {
			s.prom.ObserveAuth("login", "bad_totp")
			return user.User{}, Session{}, ErrInvalidTOTP
		}
	}

	sess, err := s.issue(u.ID)
	if err != nil {
		fail(span, err, "issue session")
		return user.User{}, Session{}, err
	}

	s.prom.ObserveAuth("login", "ok")
	s.logger.InfoContext(ctx, "user.logged_in", "user_id", u.ID)

	return u, sess, nil
}

// IssueSession signs a session for an already verified user, e.g. right after registration.
func (s *Service) IssueSession(u user.User) (Session, error) {
	return s.issue(u.ID)
}

func (s *Service) issue(userID int64) (Session, error) {
	token, exp, err := s.tokens.Issue(userID)
	if err != nil {
		return Session{}, fmt.Errorf("issue session: %w", err)
	}
	return Session{Token: token, ExpiresAt: exp}, nil
}

// Authenticate resolves a session token to the user it names.
// Expired and forged tokens both yield ErrInvalidSession; a deleted user yields ErrAccountGone.
func (s *Service) Authenticate(ctx context.Context, token string) (user.User, error) {
	ctx, span := tracer.Start(ctx, "Accounts.Authenticate")
	defer span.End()

	id, err := s.tokens.Verify(token)
	if err != nil {
		result := "invalid"
		if errors.Is(err, auth.ErrTokenExpired) {
			result = "expired"
		}
		s.prom.ObserveAuth("session", result)
		s.logger.DebugContext(ctx, "session.rejected", "reason", err.Error())
		return user.User{}, fmt.Errorf("%w: %w", ErrInvalidSession, err)
	}

	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			s.prom.ObserveAuth("session", "account_gone")
			return user.User{}, ErrAccountGone
		}
		fail(span, err, "load user")
		return user.User{}, fmt.Errorf("load user: %w", err)
	}

	span.SetAttributes(attribute.Int64("user.id", u.ID))
	return u, nil
}

// EnrollTwoFactor makes sure a user without 2FA has a provisioning secret.
// An existing secret is never replaced.
func (s *Service) EnrollTwoFactor(ctx context.Context, u user.User) (user.User, error) {
	if u.TFAEnabled || u.HasTwoFactorSecret() {
		return u, nil
	}

	ctx, span := tracer.Start(ctx, "Accounts.EnrollTwoFactor", trace.WithAttributes(attribute.Int64("user.id", u.ID)))
	defer span.End()

	key, err := security.GenerateTOTP(s.issuer, u.Email)
	if err != nil {
		fail(span, err, "generate totp")
		return user.User{}, fmt.Errorf("generate totp: %w", err)
	}

	stored, err := s.users.EnrollTwoFactor(ctx, u.ID, key.Secret, key.URL)
	if err != nil {
		fail(span, err, "store totp")
		return user.User{}, fmt.Errorf("store totp: %w", err)
	}

	// another request may have enrolled first; its secret is the one kept
	return stored, nil
}

// EnableTwoFactor switches 2FA on once the user proves they hold the enrolled secret.
func (s *Service) EnableTwoFactor(ctx context.Context, u user.User, code string) (user.User, error) {
	if u.TFAEnabled {
		return u, nil
	}
	if !u.HasTwoFactorSecret() {
		return user.User{}, ErrTwoFactorNotEnrolled
	}
	if !security.ValidateTOTP(code, *u.TFASecret, s.now()) {
		s.prom.ObserveAuth("enable_2fa", "bad_totp")
		return user.User{}, ErrInvalidTOTP
	}

	if err := s.users.SetTwoFactor(ctx, u.ID, u.TFASecret, u.TFAURL, true); err != nil {
		return user.User{}, fmt.Errorf("enable 2fa: %w", err)
	}

	s.prom.ObserveAuth("enable_2fa", "ok")
	s.logger.InfoContext(ctx, "user.2fa_enabled", "user_id", u.ID)

	u.TFAEnabled = true
	return u, nil
}

func fail(span trace.Span, err error, msg string) {
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)
}
