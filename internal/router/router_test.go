package router

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"case-console/internal/config"
	"case-console/internal/event"
	"case-console/internal/handler"
	"case-console/internal/middleware"
	"case-console/internal/model"
	"case-console/internal/websocket"
)

type viewerValidator struct{}

func (viewerValidator) ValidateToken(token string, _ string) (*model.AuthClaims, error) {
	if token != "viewer-token" {
		return nil, errors.New("invalid")
	}
	return &model.AuthClaims{UserID: "v1", Role: model.RoleViewer}, nil
}

func newTestRouter() http.Handler {
	cfg := &config.Config{
		CORSOrigins:      []string{"*"},
		RateLimitRPM:     1000,
		AuthRateLimitRPM: 1000,
		RequestTimeout:   5 * time.Second,
	}

	return New(cfg, middleware.NewAuthMiddleware(viewerValidator{}), Handlers{
		Auth: handler.NewAuthHandler(nil),
		Case: handler.NewCaseHandler(nil, 1<<20),
	}, websocket.NewHub(event.NewBus()))
}

func TestRouter_PublicHealthEndpoints(t *testing.T) {
	r := newTestRouter()

	for _, path := range []string{"/health", "/metrics"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	}
}

func TestRouter_MutationsRequireEditor(t *testing.T) {
	r := newTestRouter()

	requests := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/v1/cases"},
		{http.MethodPatch, "/api/v1/cases/reorder"},
		{http.MethodDelete, "/api/v1/cases/3f2b8f5e-3f6b-4d8e-9d8a-0a6c2f1b7e11"},
	}

	for _, tc := range requests {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s anonymous", tc.method, tc.path)

		req := httptest.NewRequest(tc.method, tc.path, nil)
		req.Header.Set("Authorization", "Bearer viewer-token")
		rec = httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code, "%s %s as viewer", tc.method, tc.path)
	}
}

func TestRouter_UnknownRoute(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
