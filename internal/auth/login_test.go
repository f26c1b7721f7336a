package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"balanceguard/internal/types"
)

type mockAccountRepo struct {
	mock.Mock
}

func (m *mockAccountRepo) GetByEmail(ctx context.Context, surface types.Surface, email string) (*types.Account, error) {
	args := m.Called(ctx, surface, email)
	if a := args.Get(0); a != nil {
		return a.(*types.Account), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAccountRepo) UpdateLastLogin(ctx context.Context, surface types.Surface, accountID uuid.UUID, at time.Time) error {
	return m.Called(ctx, surface, accountID, at).Error(0)
}

// recordingHasher tracks comparisons and accepts one password.
type recordingHasher struct {
	accepted    string
	comparisons int
}

func (h *recordingHasher) CompareHashAndPassword(_, password string) error {
	h.comparisons++
	if password == h.accepted {
		return nil
	}
	return errors.New("mismatch")
}

func newTestLoginService(accounts AccountRepo, sessions SessionRepo, hasher PasswordHasher) *LoginService {
	svc := newTestSessionService(sessions)
	return NewLoginService(accounts, svc, hasher, fixedClock{now: testNow}, nil)
}

func TestLoginService_Login_Success(t *testing.T) {
	accounts := new(mockAccountRepo)
	sessions := new(mockSessionRepo)
	hasher := &recordingHasher{accepted: "correct horse"}
	svc := newTestLoginService(accounts, sessions, hasher)

	accountID := uuid.New()
	accounts.On("GetByEmail", mock.Anything, types.SurfaceClient, "user@example.com").
		Return(&types.Account{ID: accountID, Email: "user@example.com", PasswordHash: "$2a$10$stored"}, nil)
	accounts.On("UpdateLastLogin", mock.Anything, types.SurfaceClient, accountID, testNow).Return(nil)
	sessions.On("Create", mock.Anything, mock.Anything).Return(nil)
	sessions.On("DeleteExpiredByUser", mock.Anything, accountID, types.SurfaceClient).Return(int64(0), nil)

	issued, account, err := svc.Login(context.Background(), types.SurfaceClient, "  User@Example.COM ", "correct horse", "1.2.3.4", "UA")
	require.NoError(t, err)
	assert.Equal(t, accountID, account.ID)
	assert.NotEmpty(t, issued.RawToken)
	assert.NotEmpty(t, issued.CSRFToken)
	accounts.AssertExpectations(t)
	sessions.AssertExpectations(t)
}

func TestLoginService_Login_WrongPassword(t *testing.T) {
	accounts := new(mockAccountRepo)
	sessions := new(mockSessionRepo)
	hasher := &recordingHasher{accepted: "right"}
	svc := newTestLoginService(accounts, sessions, hasher)

	accounts.On("GetByEmail", mock.Anything, mock.Anything, mock.Anything).
		Return(&types.Account{ID: uuid.New(), PasswordHash: "$2a$10$stored"}, nil)

	_, _, err := svc.Login(context.Background(), types.SurfaceClient, "user@example.com", "wrong", "", "")
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeAuthRequired, appErr.Code)
	assert.Equal(t, "invalid email or password", appErr.Message)
	sessions.AssertNotCalled(t, "Create")
}

func TestLoginService_Login_UnknownEmailBurnsComparison(t *testing.T) {
	accounts := new(mockAccountRepo)
	sessions := new(mockSessionRepo)
	hasher := &recordingHasher{accepted: "anything"}
	svc := newTestLoginService(accounts, sessions, hasher)

	accounts.On("GetByEmail", mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)

	_, _, err := svc.Login(context.Background(), types.SurfaceAdmin, "ghost@example.com", "pw", "", "")
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	// Same code and message as the wrong-password path.
	assert.Equal(t, types.ErrCodeAuthRequired, appErr.Code)
	assert.Equal(t, "invalid email or password", appErr.Message)
	// The dummy comparison ran, keeping timing uniform.
	assert.Equal(t, 1, hasher.comparisons)
}

func TestLoginService_Login_LastLoginFailureIsNonFatal(t *testing.T) {
	accounts := new(mockAccountRepo)
	sessions := new(mockSessionRepo)
	hasher := &recordingHasher{accepted: "pw"}
	svc := newTestLoginService(accounts, sessions, hasher)

	accountID := uuid.New()
	accounts.On("GetByEmail", mock.Anything, mock.Anything, mock.Anything).
		Return(&types.Account{ID: accountID, PasswordHash: "$2a$10$stored"}, nil)
	accounts.On("UpdateLastLogin", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("write failed"))
	sessions.On("Create", mock.Anything, mock.Anything).Return(nil)
	sessions.On("DeleteExpiredByUser", mock.Anything, mock.Anything, mock.Anything).Return(int64(2), nil)

	issued, _, err := svc.Login(context.Background(), types.SurfaceClient, "user@example.com", "pw", "", "")
	require.NoError(t, err)
	assert.NotNil(t, issued)
}
