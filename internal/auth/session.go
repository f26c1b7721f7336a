package auth

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"balanceguard/internal/types"
)

// SessionRepo defines the data access methods needed by the SessionService.
type SessionRepo interface {
	Create(ctx context.Context, session *types.Session) error
	GetByTokenHash(ctx context.Context, tokenHash string) (*types.Session, error)
	Revoke(ctx context.Context, tokenHash, reason string) error
	TouchLastSeen(ctx context.Context, sessionID uuid.UUID, at time.Time) error
	DeleteExpiredByUser(ctx context.Context, userID uuid.UUID, surface types.Surface) (int64, error)
}

// SessionConfig holds session lifetime settings.
type SessionConfig struct {
	// TTL is the lifetime of a new session.
	TTL time.Duration
}

// DefaultSessionConfig returns the reference policy: 14-day sessions.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{TTL: 14 * 24 * time.Hour}
}

// IssuedSession carries everything a login handler needs to set cookies: the
// persisted row plus the two raw tokens, which exist only in this value and
// in the browser.
type IssuedSession struct {
	Session   *types.Session
	RawToken  string
	CSRFToken string
}

// SessionService issues, resolves, and revokes sessions.
type SessionService struct {
	repo     SessionRepo
	tokenGen TokenGenerator
	config   SessionConfig
	clock    types.Clock
	logger   *slog.Logger
}

// NewSessionService creates a SessionService. Nil tokenGen, clock, and
// logger fall back to the production implementations.
func NewSessionService(repo SessionRepo, tokenGen TokenGenerator, config SessionConfig, clock types.Clock, logger *slog.Logger) *SessionService {
	if tokenGen == nil {
		tokenGen = CryptoTokenGenerator{}
	}
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if config.TTL <= 0 {
		config = DefaultSessionConfig()
	}
	return &SessionService{
		repo:     repo,
		tokenGen: tokenGen,
		config:   config,
		clock:    clock,
		logger:   logger,
	}
}

// Issue creates one session row for a fresh login and returns the raw tokens
// for cookie setting. The CSRF token is minted independently of the session
// token and never persisted.
func (s *SessionService) Issue(ctx context.Context, surface types.Surface, userID uuid.UUID, ip, userAgent string) (*IssuedSession, error) {
	rawToken, err := s.tokenGen.GenerateSessionToken()
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternal, "failed to generate session token", err)
	}
	csrfToken, err := s.tokenGen.GenerateCSRFToken()
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternal, "failed to generate csrf token", err)
	}

	now := s.clock.Now()
	session := &types.Session{
		ID:              uuid.New(),
		UserID:          userID,
		Surface:         surface,
		AuthLevel:       "standard",
		SessionFamilyID: uuid.New(),
		RotationCounter: 0,
		TokenHash:       HashToken(rawToken),
		CreatedAt:       now,
		LastSeenAt:      now,
		ExpiresAt:       now.Add(s.config.TTL),
	}
	if ip != "" {
		session.IPCreated = &ip
	}
	if userAgent != "" {
		session.UserAgentSnapshot = &userAgent
	}

	if err := s.repo.Create(ctx, session); err != nil {
		return nil, err
	}

	s.logger.Info("session issued",
		slog.String("session_id", session.ID.String()),
		slog.String("user_id", userID.String()),
		slog.String("surface", string(surface)),
	)

	return &IssuedSession{Session: session, RawToken: rawToken, CSRFToken: csrfToken}, nil
}

// Resolve maps a raw cookie value to an Actor for the given surface.
//
// The lookup is by token hash without a surface filter: a session that exists
// but belongs to the other surface yields WRONG_SURFACE rather than silently
// authenticating or silently failing. Unknown, expired, and revoked tokens
// all collapse to the anonymous actor with no distinction surfaced.
func (s *SessionService) Resolve(ctx context.Context, surface types.Surface, rawToken string) (types.Actor, error) {
	anon := types.Actor{Kind: types.ActorAnon, Surface: surface}
	if rawToken == "" {
		return anon, nil
	}

	session, err := s.repo.GetByTokenHash(ctx, HashToken(rawToken))
	if err != nil {
		return anon, err
	}
	if session == nil || !session.Active(s.clock.Now()) {
		return anon, nil
	}

	if session.Surface != surface {
		return anon, types.NewAppError(
			types.ErrCodeWrongSurface,
			"session belongs to a different surface",
			nil,
		)
	}

	// Best effort: a failed touch must not fail the request.
	if err := s.repo.TouchLastSeen(ctx, session.ID, s.clock.Now()); err != nil {
		s.logger.Warn("failed to touch session",
			slog.String("session_id", session.ID.String()),
			slog.String("error", err.Error()),
		)
	}

	actor := types.Actor{
		Surface:   surface,
		AccountID: &session.UserID,
		SessionID: &session.ID,
	}
	switch surface {
	case types.SurfaceClient:
		actor.Kind = types.ActorClient
	case types.SurfaceAdmin:
		actor.Kind = types.ActorAdmin
	default:
		return anon, nil
	}
	return actor, nil
}

// Revoke soft-revokes the session holding the raw token. Idempotent: revoking
// an already-revoked or unknown token succeeds.
func (s *SessionService) Revoke(ctx context.Context, rawToken, reason string) error {
	if rawToken == "" {
		return nil
	}
	return s.repo.Revoke(ctx, HashToken(rawToken), reason)
}

// CleanExpired lazily removes a user's expired session rows. Called during
// login so dead rows do not accumulate per account.
func (s *SessionService) CleanExpired(ctx context.Context, userID uuid.UUID, surface types.Surface) {
	deleted, err := s.repo.DeleteExpiredByUser(ctx, userID, surface)
	if err != nil {
		s.logger.Warn("expired session cleanup failed",
			slog.String("user_id", userID.String()),
			slog.String("error", err.Error()),
		)
		return
	}
	if deleted > 0 {
		s.logger.Info("expired sessions cleaned",
			slog.String("user_id", userID.String()),
			slog.Int64("deleted", deleted),
		)
	}
}
