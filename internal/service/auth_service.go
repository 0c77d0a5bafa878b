package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"case-console/internal/metrics"
	"case-console/internal/model"
	"case-console/pkg/apierror"
)

type userStore interface {
	FindByID(ctx context.Context, id string) (model.User, error)
	FindByUsername(ctx context.Context, username string) (model.User, error)
	Create(ctx context.Context, u model.User) error
	RecordFailedLogin(ctx context.Context, userID string, maxAttempts int, lockout time.Duration) (int, error)
	ResetFailedAttempts(ctx context.Context, userID string) error
	Count(ctx context.Context) (int, error)
}

type refreshTokenStore interface {
	Store(ctx context.Context, token string, userID string, expiresAt time.Time) error
	Consume(ctx context.Context, token string) (string, error)
	Revoke(ctx context.Context, token string) error
	RevokeAllForUser(ctx context.Context, userID string) (int64, error)
	CleanExpired(ctx context.Context) (int64, error)
}

type LockoutPolicy struct {
	MaxAttempts int
	Duration    time.Duration
}

type AuthService struct {
	users      userStore
	tokens     refreshTokenStore
	jwtSecret  []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	lockout    LockoutPolicy
	hashCost   int
	now        func() time.Time
}

func NewAuthService(jwtSecret string, accessTTL time.Duration, refreshTTL time.Duration, lockout LockoutPolicy, users userStore, tokens refreshTokenStore) (*AuthService, error) {
	if strings.TrimSpace(jwtSecret) == "" {
		return nil, errors.New("jwt secret is required")
	}
	if lockout.MaxAttempts <= 0 {
		lockout.MaxAttempts = 5
	}

	return &AuthService{
		users:      users,
		tokens:     tokens,
		jwtSecret:  []byte(jwtSecret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		lockout:    lockout,
		hashCost:   12,
		now:        func() time.Time { return time.Now().UTC() },
	}, nil
}

func invalidCredentials() error {
	return apierror.New("UNAUTHORIZED", "invalid credentials", "", http.StatusUnauthorized)
}

func accountLocked(until time.Time) error {
	return apierror.New("ACCOUNT_LOCKED", "account temporarily locked after repeated failed logins",
		until.UTC().Format(time.RFC3339), http.StatusLocked)
}

func (s *AuthService) Login(ctx context.Context, username string, password string) (model.TokenPair, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return model.TokenPair{}, apierror.BadRequest("username and password are required", "")
	}

	user, err := s.users.FindByUsername(ctx, username)
	if errors.Is(err, model.ErrUserNotFound) {
		metrics.RecordLogin("failure")
		return model.TokenPair{}, invalidCredentials()
	}
	if err != nil {
		return model.TokenPair{}, err
	}

	now := s.now()
	if user.LockedUntil != nil && now.Before(*user.LockedUntil) {
		metrics.RecordLogin("locked")
		return model.TokenPair{}, accountLocked(*user.LockedUntil)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		attempts, recordErr := s.users.RecordFailedLogin(ctx, user.ID, s.lockout.MaxAttempts, s.lockout.Duration)
		if recordErr != nil {
			return model.TokenPair{}, recordErr
		}
		if attempts >= s.lockout.MaxAttempts {
			slog.Warn("account locked", "user_id", user.ID, "attempts", attempts)
			metrics.RecordLogin("locked")
			return model.TokenPair{}, accountLocked(now.Add(s.lockout.Duration))
		}
		metrics.RecordLogin("failure")
		return model.TokenPair{}, invalidCredentials()
	}

	if user.FailedLoginAttempts > 0 || user.LockedUntil != nil {
		if err := s.users.ResetFailedAttempts(ctx, user.ID); err != nil {
			return model.TokenPair{}, err
		}
	}

	metrics.RecordLogin("success")
	return s.issueTokenPair(ctx, user)
}

// Refresh consumes the presented refresh token and issues a new pair. A
// correctly signed token that is no longer stored has already been used,
// so every session of its owner is revoked.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (model.TokenPair, error) {
	claims, err := s.ValidateToken(refreshToken, "refresh")
	if err != nil {
		return model.TokenPair{}, err
	}

	ownerID, err := s.tokens.Consume(ctx, refreshToken)
	if errors.Is(err, model.ErrTokenNotFound) {
		revoked, revokeErr := s.tokens.RevokeAllForUser(ctx, claims.UserID)
		if revokeErr != nil {
			slog.Error("revoke sessions after refresh reuse failed", "user_id", claims.UserID, "error", revokeErr)
		} else {
			slog.Warn("refresh token reused; sessions revoked", "user_id", claims.UserID, "revoked", revoked)
		}
		return model.TokenPair{}, apierror.Unauthorized("refresh token is invalid")
	}
	if err != nil {
		return model.TokenPair{}, err
	}
	if ownerID != claims.UserID {
		return model.TokenPair{}, apierror.Unauthorized("refresh token is invalid")
	}

	user, err := s.users.FindByID(ctx, claims.UserID)
	if errors.Is(err, model.ErrUserNotFound) {
		return model.TokenPair{}, apierror.Unauthorized("user not found")
	}
	if err != nil {
		return model.TokenPair{}, err
	}

	return s.issueTokenPair(ctx, user)
}

// Logout revokes the refresh token. Unknown tokens are not an error.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if strings.TrimSpace(refreshToken) == "" {
		return nil
	}
	return s.tokens.Revoke(ctx, refreshToken)
}

func (s *AuthService) ValidateToken(tokenString string, expectedType string) (*model.AuthClaims, error) {
	parsed, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, apierror.New("UNAUTHORIZED", "invalid token signing method", "", http.StatusUnauthorized)
		}
		return s.jwtSecret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, apierror.New("UNAUTHORIZED", "invalid token", "", http.StatusUnauthorized)
	}

	claimsMap, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, apierror.New("UNAUTHORIZED", "invalid token claims", "", http.StatusUnauthorized)
	}

	typ, _ := claimsMap["typ"].(string)
	if expectedType != "" && typ != expectedType {
		return nil, apierror.New("UNAUTHORIZED", "invalid token type", "", http.StatusUnauthorized)
	}

	claims := &model.AuthClaims{Type: typ}
	claims.UserID, _ = claimsMap["sub"].(string)
	claims.Username, _ = claimsMap["username"].(string)
	claims.Role, _ = claimsMap["role"].(string)
	claims.TokenID, _ = claimsMap["jti"].(string)

	if claims.UserID == "" {
		return nil, apierror.New("UNAUTHORIZED", "invalid token subject", "", http.StatusUnauthorized)
	}

	return claims, nil
}

func (s *AuthService) GetUserByID(ctx context.Context, userID string) (model.AuthUser, error) {
	user, err := s.users.FindByID(ctx, userID)
	if errors.Is(err, model.ErrUserNotFound) {
		return model.AuthUser{}, apierror.NotFound("user not found", userID)
	}
	if err != nil {
		return model.AuthUser{}, err
	}

	return model.AuthUser{ID: user.ID, Username: user.Username, Role: user.Role}, nil
}

// EnsureAdmin seeds an admin account when the users table is empty.
func (s *AuthService) EnsureAdmin(ctx context.Context, username string, password string) error {
	count, err := s.users.Count(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return errors.New("no users exist: ADMIN_USERNAME and ADMIN_PASSWORD are required to seed an admin")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	now := s.now()
	if err := s.users.Create(ctx, model.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: string(hash),
		Role:         model.RoleAdmin,
		CreatedAt:    now,
		UpdatedAt:    now,
	}); err != nil {
		return err
	}

	slog.Info("seeded admin account", "username", username)
	return nil
}

// StartTokenJanitor deletes expired refresh tokens on a regular interval
// until ctx is cancelled.
func (s *AuthService) StartTokenJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := s.tokens.CleanExpired(ctx)
			if err != nil {
				slog.Warn("refresh token cleanup failed", "error", err)
				continue
			}
			if removed > 0 {
				slog.Info("expired refresh tokens removed", "count", removed)
			}
		}
	}
}

func (s *AuthService) issueTokenPair(ctx context.Context, user model.User) (model.TokenPair, error) {
	now := s.now()

	accessToken, err := s.signToken(jwt.MapClaims{
		"sub":      user.ID,
		"username": user.Username,
		"role":     user.Role,
		"typ":      "access",
		"jti":      uuid.NewString(),
		"iat":      now.Unix(),
		"exp":      now.Add(s.accessTTL).Unix(),
	})
	if err != nil {
		return model.TokenPair{}, err
	}

	refreshExpiry := now.Add(s.refreshTTL)
	refreshToken, err := s.signToken(jwt.MapClaims{
		"sub":      user.ID,
		"username": user.Username,
		"role":     user.Role,
		"typ":      "refresh",
		"jti":      uuid.NewString(),
		"iat":      now.Unix(),
		"exp":      refreshExpiry.Unix(),
	})
	if err != nil {
		return model.TokenPair{}, err
	}

	if err := s.tokens.Store(ctx, refreshToken, user.ID, refreshExpiry); err != nil {
		return model.TokenPair{}, err
	}

	return model.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.accessTTL.Seconds()),
		User:         model.AuthUser{ID: user.ID, Username: user.Username, Role: user.Role},
	}, nil
}

func (s *AuthService) signToken(claims jwt.MapClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}
