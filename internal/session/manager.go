// Package session owns the console's authentication state: the token pair,
// the identity decoded from the access token and the persisted copy of both.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"case-console/internal/model"
	"case-console/internal/tokenstore"
)

// AuthAPI is the server side of login, refresh and revoke.
type AuthAPI interface {
	Login(ctx context.Context, username string, password string) (model.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (model.TokenPair, error)
	Revoke(ctx context.Context, refreshToken string) error
}

// State is a snapshot of the session. IsAuthenticated holds exactly when an
// access token is present and decoded into User.
type State struct {
	AccessToken     string
	RefreshToken    string
	User            *User
	IsAuthenticated bool
	IsLoading       bool
}

type Manager struct {
	store tokenstore.Store
	api   AuthAPI
	now   func() time.Time

	// opMu serializes login, refresh and logout so their store writes and
	// state updates cannot interleave.
	opMu sync.Mutex

	mu           sync.RWMutex
	accessToken  string
	refreshToken string
	user         *User
	loading      bool

	initOnce sync.Once
	ready    chan struct{}
}

type Option func(*Manager)

func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

func NewManager(store tokenstore.Store, api AuthAPI, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		api:     api,
		now:     time.Now,
		loading: true,
		ready:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Initialize restores the session from the persisted store. It makes no
// network call. Loading ends exactly once, after the first call, whatever
// the outcome; later calls do nothing.
func (m *Manager) Initialize(ctx context.Context) error {
	var initErr error
	m.initOnce.Do(func() {
		defer m.finishLoading()
		initErr = m.restore(ctx)
	})
	return initErr
}

func (m *Manager) restore(ctx context.Context) error {
	tokens, err := m.store.Load(ctx)
	switch {
	case errors.Is(err, tokenstore.ErrCorrupt):
		return m.discard(ctx, err)
	case err != nil:
		return fmt.Errorf("load persisted session: %w", err)
	case tokens.Empty():
		return nil
	case tokens.Access == "":
		return m.discard(ctx, errors.New("refresh token without access token"))
	}

	user, err := DecodeToken(tokens.Access, m.now())
	if err != nil {
		return m.discard(ctx, err)
	}

	m.mu.Lock()
	m.accessToken = tokens.Access
	m.refreshToken = tokens.Refresh
	m.user = &user
	m.mu.Unlock()
	return nil
}

// discard drops unusable persisted state so startup continues signed out.
func (m *Manager) discard(ctx context.Context, reason error) error {
	slog.Info("discarding persisted session", "reason", reason)
	if err := m.store.Clear(ctx); err != nil {
		return fmt.Errorf("clear invalid session: %w", err)
	}
	return nil
}

func (m *Manager) finishLoading() {
	m.mu.Lock()
	m.loading = false
	m.mu.Unlock()
	close(m.ready)
}

// Ready is closed once loading has finished.
func (m *Manager) Ready() <-chan struct{} {
	return m.ready
}

// Login exchanges credentials for a token pair. The session changes only
// if the access token decodes and both tokens were persisted.
func (m *Manager) Login(ctx context.Context, username string, password string) (User, error) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	pair, err := m.api.Login(ctx, username, password)
	if err != nil {
		return User{}, err
	}
	return m.apply(ctx, pair)
}

// Refresh trades the refresh token for a new pair. A rejected refresh ends
// the session.
func (m *Manager) Refresh(ctx context.Context) (User, error) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.mu.RLock()
	refreshToken := m.refreshToken
	m.mu.RUnlock()
	if refreshToken == "" {
		return User{}, errors.New("no refresh token in session")
	}

	pair, err := m.api.Refresh(ctx, refreshToken)
	if err != nil {
		var rejected interface{ Unauthorized() bool }
		if errors.As(err, &rejected) && rejected.Unauthorized() {
			m.clear(ctx, "refresh rejected")
		}
		return User{}, err
	}
	return m.apply(ctx, pair)
}

func (m *Manager) apply(ctx context.Context, pair model.TokenPair) (User, error) {
	user, err := DecodeToken(pair.AccessToken, m.now())
	if err != nil {
		return User{}, err
	}

	if err := m.store.Save(ctx, tokenstore.Tokens{Access: pair.AccessToken, Refresh: pair.RefreshToken}); err != nil {
		// The store may hold a partial write; memory and store end signed out together.
		if clearErr := m.clear(ctx, "persist failed"); clearErr != nil {
			slog.Warn("failed to clear token store after failed save", "error", clearErr)
		}
		return User{}, fmt.Errorf("persist session: %w", err)
	}

	m.mu.Lock()
	m.accessToken = pair.AccessToken
	m.refreshToken = pair.RefreshToken
	m.user = &user
	m.mu.Unlock()

	return user, nil
}

// Logout revokes the refresh token on a best-effort basis while the access
// token is still attached, then ends the session locally. Calling it
// without a session is a no-op.
func (m *Manager) Logout(ctx context.Context) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.mu.RLock()
	refreshToken := m.refreshToken
	m.mu.RUnlock()

	if refreshToken != "" && m.api != nil {
		if err := m.api.Revoke(ctx, refreshToken); err != nil {
			slog.Warn("refresh token revoke failed", "error", err)
		}
	}

	return m.clear(ctx, "logout")
}

// Invalidate drops a session the server no longer accepts. No revoke is
// attempted.
func (m *Manager) Invalidate(reason string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = m.clear(ctx, reason)
}

func (m *Manager) clear(ctx context.Context, reason string) error {
	m.mu.Lock()
	hadSession := m.accessToken != "" || m.refreshToken != ""
	m.accessToken = ""
	m.refreshToken = ""
	m.user = nil
	m.mu.Unlock()

	if hadSession {
		slog.Info("session cleared", "reason", reason)
	}

	if err := m.store.Clear(ctx); err != nil {
		return fmt.Errorf("clear persisted session: %w", err)
	}
	return nil
}

func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state := State{
		AccessToken:     m.accessToken,
		RefreshToken:    m.refreshToken,
		IsAuthenticated: m.accessToken != "" && m.user != nil,
		IsLoading:       m.loading,
	}
	if m.user != nil {
		user := *m.user
		state.User = &user
	}
	return state
}

// AccessToken lets the remote client attach the bearer token.
func (m *Manager) AccessToken() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.accessToken
}
