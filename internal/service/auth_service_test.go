package service

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"case-console/internal/model"
	"case-console/pkg/apierror"
)

func newTestAuthService(t *testing.T) (*AuthService, *mockUserStore, *mockTokenStore) {
	t.Helper()

	users := new(mockUserStore)
	tokens := new(mockTokenStore)
	svc, err := NewAuthService("test-secret", 15*time.Minute, time.Hour, LockoutPolicy{MaxAttempts: 3, Duration: 10 * time.Minute}, users, tokens)
	require.NoError(t, err)
	svc.hashCost = bcrypt.MinCost

	return svc, users, tokens
}

func testUser(t *testing.T, password string) model.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)

	return model.User{ID: "user-1", Username: "admin", PasswordHash: string(hash), Role: model.RoleAdmin}
}

func requireAPIError(t *testing.T, err error, code string, status int) {
	t.Helper()

	var apiErr *apierror.APIError
	require.True(t, errors.As(err, &apiErr), "expected APIError, got %v", err)
	assert.Equal(t, code, apiErr.Code)
	assert.Equal(t, status, apiErr.HTTPStatus)
}

func TestNewAuthService_RequiresSecret(t *testing.T) {
	_, err := NewAuthService(" ", time.Minute, time.Hour, LockoutPolicy{}, new(mockUserStore), new(mockTokenStore))
	require.Error(t, err)
}

func TestAuthService_Login(t *testing.T) {
	ctx := context.Background()

	t.Run("success issues access and refresh tokens", func(t *testing.T) {
		svc, users, tokens := newTestAuthService(t)
		user := testUser(t, "s3cret")
		users.On("FindByUsername", ctx, "admin").Return(user, nil)
		tokens.On("Store", ctx, mock.AnythingOfType("string"), "user-1", mock.AnythingOfType("time.Time")).Return(nil)

		pair, err := svc.Login(ctx, " admin ", "s3cret")
		require.NoError(t, err)
		assert.Equal(t, "Bearer", pair.TokenType)
		assert.Equal(t, int64(900), pair.ExpiresIn)
		assert.Equal(t, "admin", pair.User.Username)

		claims, err := svc.ValidateToken(pair.AccessToken, "access")
		require.NoError(t, err)
		assert.Equal(t, "user-1", claims.UserID)
		assert.Equal(t, model.RoleAdmin, claims.Role)

		_, err = svc.ValidateToken(pair.RefreshToken, "access")
		requireAPIError(t, err, "UNAUTHORIZED", http.StatusUnauthorized)

		users.AssertNotCalled(t, "ResetFailedAttempts", mock.Anything, mock.Anything)
		tokens.AssertExpectations(t)
	})

	t.Run("unknown user is invalid credentials", func(t *testing.T) {
		svc, users, _ := newTestAuthService(t)
		users.On("FindByUsername", ctx, "ghost").Return(model.User{}, model.ErrUserNotFound)

		_, err := svc.Login(ctx, "ghost", "whatever")
		requireAPIError(t, err, "UNAUTHORIZED", http.StatusUnauthorized)
	})

	t.Run("missing fields are rejected without lookup", func(t *testing.T) {
		svc, users, _ := newTestAuthService(t)

		_, err := svc.Login(ctx, "", "pw")
		requireAPIError(t, err, "BAD_REQUEST", http.StatusBadRequest)
		users.AssertNotCalled(t, "FindByUsername", mock.Anything, mock.Anything)
	})

	t.Run("wrong password records a failure", func(t *testing.T) {
		svc, users, _ := newTestAuthService(t)
		users.On("FindByUsername", ctx, "admin").Return(testUser(t, "s3cret"), nil)
		users.On("RecordFailedLogin", ctx, "user-1", 3, 10*time.Minute).Return(1, nil)

		_, err := svc.Login(ctx, "admin", "nope")
		requireAPIError(t, err, "UNAUTHORIZED", http.StatusUnauthorized)
		users.AssertExpectations(t)
	})

	t.Run("reaching the limit locks the account", func(t *testing.T) {
		svc, users, _ := newTestAuthService(t)
		users.On("FindByUsername", ctx, "admin").Return(testUser(t, "s3cret"), nil)
		users.On("RecordFailedLogin", ctx, "user-1", 3, 10*time.Minute).Return(3, nil)

		_, err := svc.Login(ctx, "admin", "nope")
		requireAPIError(t, err, "ACCOUNT_LOCKED", http.StatusLocked)
	})

	t.Run("locked account is refused even with the right password", func(t *testing.T) {
		svc, users, tokens := newTestAuthService(t)
		user := testUser(t, "s3cret")
		until := time.Now().UTC().Add(5 * time.Minute)
		user.LockedUntil = &until
		users.On("FindByUsername", ctx, "admin").Return(user, nil)

		_, err := svc.Login(ctx, "admin", "s3cret")
		requireAPIError(t, err, "ACCOUNT_LOCKED", http.StatusLocked)
		users.AssertNotCalled(t, "RecordFailedLogin", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		tokens.AssertNotCalled(t, "Store", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("expired lock is cleared on success", func(t *testing.T) {
		svc, users, tokens := newTestAuthService(t)
		user := testUser(t, "s3cret")
		until := time.Now().UTC().Add(-time.Minute)
		user.LockedUntil = &until
		user.FailedLoginAttempts = 3
		users.On("FindByUsername", ctx, "admin").Return(user, nil)
		users.On("ResetFailedAttempts", ctx, "user-1").Return(nil)
		tokens.On("Store", ctx, mock.Anything, "user-1", mock.Anything).Return(nil)

		_, err := svc.Login(ctx, "admin", "s3cret")
		require.NoError(t, err)
		users.AssertExpectations(t)
	})
}

func TestAuthService_Refresh(t *testing.T) {
	ctx := context.Background()

	t.Run("rotates the refresh token", func(t *testing.T) {
		svc, users, tokens := newTestAuthService(t)
		user := testUser(t, "s3cret")
		users.On("FindByUsername", ctx, "admin").Return(user, nil)
		users.On("FindByID", ctx, "user-1").Return(user, nil)
		tokens.On("Store", ctx, mock.Anything, "user-1", mock.Anything).Return(nil)

		first, err := svc.Login(ctx, "admin", "s3cret")
		require.NoError(t, err)

		tokens.On("Consume", ctx, first.RefreshToken).Return("user-1", nil).Once()

		second, err := svc.Refresh(ctx, first.RefreshToken)
		require.NoError(t, err)
		assert.NotEqual(t, first.RefreshToken, second.RefreshToken)
		tokens.AssertNumberOfCalls(t, "Store", 2)
	})

	t.Run("reused token revokes every session", func(t *testing.T) {
		svc, users, tokens := newTestAuthService(t)
		users.On("FindByUsername", ctx, "admin").Return(testUser(t, "s3cret"), nil)
		tokens.On("Store", ctx, mock.Anything, "user-1", mock.Anything).Return(nil)

		pair, err := svc.Login(ctx, "admin", "s3cret")
		require.NoError(t, err)

		tokens.On("Consume", ctx, pair.RefreshToken).Return("", model.ErrTokenNotFound)
		tokens.On("RevokeAllForUser", ctx, "user-1").Return(int64(2), nil).Once()

		_, err = svc.Refresh(ctx, pair.RefreshToken)
		requireAPIError(t, err, "UNAUTHORIZED", http.StatusUnauthorized)
		tokens.AssertCalled(t, "RevokeAllForUser", ctx, "user-1")
	})

	t.Run("access token cannot be used to refresh", func(t *testing.T) {
		svc, users, tokens := newTestAuthService(t)
		users.On("FindByUsername", ctx, "admin").Return(testUser(t, "s3cret"), nil)
		tokens.On("Store", ctx, mock.Anything, "user-1", mock.Anything).Return(nil)

		pair, err := svc.Login(ctx, "admin", "s3cret")
		require.NoError(t, err)

		_, err = svc.Refresh(ctx, pair.AccessToken)
		requireAPIError(t, err, "UNAUTHORIZED", http.StatusUnauthorized)
		tokens.AssertNotCalled(t, "Consume", mock.Anything, mock.Anything)
	})
}

func TestAuthService_Logout(t *testing.T) {
	ctx := context.Background()
	svc, _, tokens := newTestAuthService(t)

	require.NoError(t, svc.Logout(ctx, ""))
	tokens.AssertNotCalled(t, "Revoke", mock.Anything, mock.Anything)

	tokens.On("Revoke", ctx, "refresh-token").Return(nil)
	require.NoError(t, svc.Logout(ctx, "refresh-token"))
	tokens.AssertExpectations(t)
}

func TestAuthService_EnsureAdmin(t *testing.T) {
	ctx := context.Background()

	t.Run("seeds when no users exist", func(t *testing.T) {
		svc, users, _ := newTestAuthService(t)
		users.On("Count", ctx).Return(0, nil)
		users.On("Create", ctx, mock.MatchedBy(func(u model.User) bool {
			return u.Username == "root" && u.Role == model.RoleAdmin &&
				bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("pw")) == nil
		})).Return(nil)

		require.NoError(t, svc.EnsureAdmin(ctx, "root", "pw"))
		users.AssertExpectations(t)
	})

	t.Run("skips when users exist", func(t *testing.T) {
		svc, users, _ := newTestAuthService(t)
		users.On("Count", ctx).Return(2, nil)

		require.NoError(t, svc.EnsureAdmin(ctx, "root", ""))
		users.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("requires a password for the first admin", func(t *testing.T) {
		svc, users, _ := newTestAuthService(t)
		users.On("Count", ctx).Return(0, nil)

		require.Error(t, svc.EnsureAdmin(ctx, "root", ""))
	})
}
