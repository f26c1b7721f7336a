package db

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"balanceguard/internal/types"
)

// SessionRepo persists login sessions. Sessions are soft-revoked, never
// hard-deleted, except for the lazy expired-row cleanup at login.
type SessionRepo struct {
	db DBTX
}

// NewSessionRepo creates a SessionRepo backed by the given database
// connection (pool or transaction).
func NewSessionRepo(db DBTX) *SessionRepo {
	return &SessionRepo{db: db}
}

// sessionColumns is the canonical scan order for session rows.
const sessionColumns = `id, user_id, surface, auth_level, session_family_id, rotation_counter,
	token_hash, created_at, last_seen_at, expires_at, revoked_at, revoke_reason,
	user_agent_snapshot, device_id_hash, ip_created`

// Create inserts a new session row. One row per login.
func (r *SessionRepo) Create(ctx context.Context, s *types.Session) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO sessions (id, user_id, surface, auth_level, session_family_id,
		     rotation_counter, token_hash, created_at, last_seen_at, expires_at,
		     user_agent_snapshot, device_id_hash, ip_created)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		s.ID, s.UserID, s.Surface, s.AuthLevel, s.SessionFamilyID,
		s.RotationCounter, s.TokenHash, s.CreatedAt, s.LastSeenAt, s.ExpiresAt,
		s.UserAgentSnapshot, s.DeviceIDHash, s.IPCreated,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternal, "failed to create session", err)
	}
	return nil
}

// GetByTokenHash looks up a session by its token hash regardless of surface.
// The caller compares the row's surface against the resolving surface; that
// is how a valid session presented to the wrong surface is distinguished from
// an unknown token. Returns (nil, nil) when no row matches.
func (r *SessionRepo) GetByTokenHash(ctx context.Context, tokenHash string) (*types.Session, error) {
	var s types.Session
	err := r.db.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE token_hash = $1`,
		tokenHash,
	).Scan(
		&s.ID, &s.UserID, &s.Surface, &s.AuthLevel, &s.SessionFamilyID, &s.RotationCounter,
		&s.TokenHash, &s.CreatedAt, &s.LastSeenAt, &s.ExpiresAt, &s.RevokedAt, &s.RevokeReason,
		&s.UserAgentSnapshot, &s.DeviceIDHash, &s.IPCreated,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, types.NewAppError(types.ErrCodeInternal, "failed to load session", err)
	}
	return &s, nil
}

// Revoke soft-revokes the session holding the given token hash. Revoking an
// already-revoked or nonexistent session is a successful no-op.
func (r *SessionRepo) Revoke(ctx context.Context, tokenHash, reason string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE sessions
		 SET revoked_at = NOW(), revoke_reason = $1
		 WHERE token_hash = $2 AND revoked_at IS NULL`,
		reason, tokenHash,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternal, "failed to revoke session", err)
	}
	return nil
}

// TouchLastSeen bumps last_seen_at for an active session. Best effort: the
// resolver ignores failures here rather than failing the request.
func (r *SessionRepo) TouchLastSeen(ctx context.Context, sessionID uuid.UUID, at time.Time) error {
	_, err := r.db.Exec(ctx,
		`UPDATE sessions SET last_seen_at = $1 WHERE id = $2`,
		at, sessionID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternal, "failed to touch session", err)
	}
	return nil
}

// DeleteExpiredByUser removes long-expired sessions for a user on one
// surface. Called lazily at login so dead rows do not accumulate per account.
func (r *SessionRepo) DeleteExpiredByUser(ctx context.Context, userID uuid.UUID, surface types.Surface) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM sessions
		 WHERE user_id = $1 AND surface = $2 AND expires_at < NOW()`,
		userID, surface,
	)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternal, "failed to delete expired sessions", err)
	}
	return tag.RowsAffected(), nil
}
