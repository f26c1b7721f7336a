package auth

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"balanceguard/internal/types"
)

// AccountRepo defines the data access methods needed by the LoginService.
type AccountRepo interface {
	GetByEmail(ctx context.Context, surface types.Surface, email string) (*types.Account, error)
	UpdateLastLogin(ctx context.Context, surface types.Surface, accountID uuid.UUID, at time.Time) error
}

// PasswordHasher abstracts bcrypt operations for testability.
type PasswordHasher interface {
	CompareHashAndPassword(hashedPassword, password string) error
}

type bcryptHasher struct{}

func (bcryptHasher) CompareHashAndPassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

// dummyBcryptHash is compared against when no account exists so the
// unknown-email path costs the same as a wrong password. Hash of an
// unguessable constant.
const dummyBcryptHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// LoginService verifies credentials and issues sessions.
type LoginService struct {
	accounts AccountRepo
	sessions *SessionService
	hasher   PasswordHasher
	clock    types.Clock
	logger   *slog.Logger
}

// NewLoginService creates a LoginService. Nil hasher, clock, and logger fall
// back to the production implementations.
func NewLoginService(accounts AccountRepo, sessions *SessionService, hasher PasswordHasher, clock types.Clock, logger *slog.Logger) *LoginService {
	if hasher == nil {
		hasher = bcryptHasher{}
	}
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LoginService{
		accounts: accounts,
		sessions: sessions,
		hasher:   hasher,
		clock:    clock,
		logger:   logger,
	}
}

// errInvalidCredentials is the single rejection both unknown-email and
// wrong-password collapse to. Returning anything more specific would let a
// caller enumerate which emails hold accounts.
func errInvalidCredentials() *types.AppError {
	return types.NewAppError(types.ErrCodeAuthRequired, "invalid email or password", nil)
}

// Login verifies credentials for a surface and issues a session.
//
// Flow:
//  1. Fetch the account by canonicalized email.
//  2. Verify the password with bcrypt. A missing account still burns a
//     bcrypt comparison against a dummy hash so response timing does not
//     reveal whether the email exists.
//  3. Issue the session, stamp last_login_at, and lazily clean the
//     account's expired session rows.
func (s *LoginService) Login(ctx context.Context, surface types.Surface, email, password, ip, userAgent string) (*IssuedSession, *types.Account, error) {
	account, err := s.accounts.GetByEmail(ctx, surface, CanonicalizeEmail(email))
	if err != nil {
		return nil, nil, err
	}

	if account == nil {
		_ = s.hasher.CompareHashAndPassword(dummyBcryptHash, password)
		s.logger.Info("login rejected",
			slog.String("surface", string(surface)),
			slog.String("reason", "unknown_email"),
			slog.String("ip", ip),
		)
		return nil, nil, errInvalidCredentials()
	}

	if err := s.hasher.CompareHashAndPassword(account.PasswordHash, password); err != nil {
		s.logger.Info("login rejected",
			slog.String("surface", string(surface)),
			slog.String("reason", "bad_password"),
			slog.String("ip", ip),
		)
		return nil, nil, errInvalidCredentials()
	}

	issued, err := s.sessions.Issue(ctx, surface, account.ID, ip, userAgent)
	if err != nil {
		return nil, nil, err
	}

	if err := s.accounts.UpdateLastLogin(ctx, surface, account.ID, s.clock.Now()); err != nil {
		// Best effort: the login already succeeded.
		s.logger.Warn("failed to stamp last login",
			slog.String("account_id", account.ID.String()),
			slog.String("error", err.Error()),
		)
	}

	s.sessions.CleanExpired(ctx, account.ID, surface)

	return issued, account, nil
}
