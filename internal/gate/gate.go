// Package gate decides whether the protected part of the console may be
// entered for the current session.
package gate

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"case-console/internal/session"
)

type Decision int

const (
	// Pending means the session is still loading and nothing should render.
	Pending Decision = iota
	Admit
	Redirect
)

func (d Decision) String() string {
	switch d {
	case Pending:
		return "pending"
	case Admit:
		return "admit"
	case Redirect:
		return "redirect"
	default:
		return "unknown"
	}
}

type sessionView interface {
	State() session.State
	Ready() <-chan struct{}
}

type Gate struct {
	session    sessionView
	loginPath  string
	retryAfter time.Duration
}

func New(s sessionView, loginPath string) *Gate {
	if loginPath == "" {
		loginPath = "/login"
	}
	return &Gate{session: s, loginPath: loginPath, retryAfter: time.Second}
}

func (g *Gate) LoginPath() string {
	return g.loginPath
}

func (g *Gate) Authorize() Decision {
	state := g.session.State()
	switch {
	case state.IsLoading:
		return Pending
	case state.IsAuthenticated:
		return Admit
	default:
		return Redirect
	}
}

// Wait blocks until the session has finished loading, then decides.
func (g *Gate) Wait(ctx context.Context) (Decision, error) {
	select {
	case <-g.session.Ready():
		return g.Authorize(), nil
	case <-ctx.Done():
		return Pending, ctx.Err()
	}
}

// Middleware guards next. Pending answers 503 with Retry-After, Redirect
// sends the client to the login path.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch g.Authorize() {
		case Admit:
			next.ServeHTTP(w, r)
		case Pending:
			w.Header().Set("Retry-After", strconv.Itoa(int(g.retryAfter/time.Second)))
			w.Header().Set("Cache-Control", "no-store")
			http.Error(w, "loading session", http.StatusServiceUnavailable)
		default:
			http.Redirect(w, r, g.loginPath, http.StatusSeeOther)
		}
	})
}
