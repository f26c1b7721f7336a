package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"balanceguard/internal/types"
)

// AccountRepo reads credential-bearing accounts. Client and admin accounts
// live in separate tables; the site surface has no accounts at all.
type AccountRepo struct {
	db DBTX
}

// NewAccountRepo creates an AccountRepo backed by the given database
// connection (pool or transaction).
func NewAccountRepo(db DBTX) *AccountRepo {
	return &AccountRepo{db: db}
}

// accountTable maps a surface to its account table. Only client and admin
// carry accounts.
func accountTable(surface types.Surface) (string, error) {
	switch surface {
	case types.SurfaceClient:
		return "client_accounts", nil
	case types.SurfaceAdmin:
		return "admin_accounts", nil
	}
	return "", fmt.Errorf("surface %q has no account table", surface)
}

// GetByEmail loads the account for an email on one surface. Returns
// (nil, nil) when no account exists; the caller is responsible for keeping
// that outcome indistinguishable from a bad password.
func (r *AccountRepo) GetByEmail(ctx context.Context, surface types.Surface, email string) (*types.Account, error) {
	table, err := accountTable(surface)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternal, "invalid login surface", err)
	}

	var a types.Account
	err = r.db.QueryRow(ctx,
		`SELECT id, email, password_hash, display_name, last_login_at, created_at
		 FROM `+table+` WHERE lower(email) = lower($1)`,
		email,
	).Scan(&a.ID, &a.Email, &a.PasswordHash, &a.DisplayName, &a.LastLoginAt, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, types.NewAppError(types.ErrCodeInternal, "failed to load account", err)
	}
	return &a, nil
}

// UpdateLastLogin stamps the successful login time.
func (r *AccountRepo) UpdateLastLogin(ctx context.Context, surface types.Surface, accountID uuid.UUID, at time.Time) error {
	table, err := accountTable(surface)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternal, "invalid login surface", err)
	}

	_, err = r.db.Exec(ctx,
		`UPDATE `+table+` SET last_login_at = $1 WHERE id = $2`,
		at, accountID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternal, "failed to update last login", err)
	}
	return nil
}
