package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"case-console/internal/model"
	"case-console/pkg/apierror"
)

type mockAuthService struct {
	mock.Mock
}

func (m *mockAuthService) Login(ctx context.Context, username string, password string) (model.TokenPair, error) {
	args := m.Called(ctx, username, password)
	return args.Get(0).(model.TokenPair), args.Error(1)
}

func (m *mockAuthService) Refresh(ctx context.Context, refreshToken string) (model.TokenPair, error) {
	args := m.Called(ctx, refreshToken)
	return args.Get(0).(model.TokenPair), args.Error(1)
}

func (m *mockAuthService) Logout(ctx context.Context, refreshToken string) error {
	args := m.Called(ctx, refreshToken)
	return args.Error(0)
}

func (m *mockAuthService) GetUserByID(ctx context.Context, userID string) (model.AuthUser, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(model.AuthUser), args.Error(1)
}

func TestAuthHandler_Login(t *testing.T) {
	t.Run("returns the token pair", func(t *testing.T) {
		svc := new(mockAuthService)
		svc.On("Login", mock.Anything, "admin", "pw").
			Return(model.TokenPair{AccessToken: "a", RefreshToken: "r", TokenType: "Bearer"}, nil)

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{"username":"admin","password":"pw"}`))
		NewAuthHandler(svc).Login(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
		data := decodeEnvelope(t, rec).Data.(map[string]any)
		assert.Equal(t, "a", data["access_token"])
		assert.Equal(t, "r", data["refresh_token"])
	})

	t.Run("locked account maps to 423", func(t *testing.T) {
		svc := new(mockAuthService)
		svc.On("Login", mock.Anything, "admin", "pw").
			Return(model.TokenPair{}, apierror.New("ACCOUNT_LOCKED", "locked", "", http.StatusLocked))

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{"username":"admin","password":"pw"}`))
		NewAuthHandler(svc).Login(rec, req)

		assert.Equal(t, http.StatusLocked, rec.Code)
		assert.Equal(t, "ACCOUNT_LOCKED", decodeEnvelope(t, rec).Error.Code)
	})

	t.Run("invalid JSON", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`nope`))
		NewAuthHandler(new(mockAuthService)).Login(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestAuthHandler_Refresh_RequiresToken(t *testing.T) {
	svc := new(mockAuthService)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", strings.NewReader(`{"refresh_token":"  "}`))
	NewAuthHandler(svc).Refresh(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertNotCalled(t, "Refresh", mock.Anything, mock.Anything)
}

func TestAuthHandler_Logout(t *testing.T) {
	svc := new(mockAuthService)
	svc.On("Logout", mock.Anything, "r").Return(nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", strings.NewReader(`{"refresh_token":" r "}`))
	NewAuthHandler(svc).Logout(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	svc.AssertExpectations(t)
}

func TestAuthHandler_Me_RequiresClaims(t *testing.T) {
	rec := httptest.NewRecorder()
	NewAuthHandler(new(mockAuthService)).Me(rec, httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
