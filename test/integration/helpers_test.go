//go:build integration

package integration

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"case-console/internal/config"
	"case-console/internal/database"
	"case-console/internal/event"
	"case-console/internal/handler"
	"case-console/internal/middleware"
	"case-console/internal/repository"
	"case-console/internal/router"
	"case-console/internal/service"
	"case-console/internal/storage"
	"case-console/internal/websocket"
)

const (
	adminUser     = "admin"
	adminPassword = "integration-pass"
)

type stack struct {
	server *httptest.Server
	images *storage.LocalStore
	db     *database.DB
}

// newStack starts the catalog server on a clean database. It needs
// DATABASE_URL to point at a disposable PostgreSQL database.
func newStack(t *testing.T, maxLoginAttempts int) *stack {
	t.Helper()

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		t.Skip("DATABASE_URL is not set")
	}

	ctx := context.Background()
	db, err := database.New(ctx, databaseURL, 4, 1)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	require.NoError(t, db.EnsureSchema(ctx))
	_, err = db.Pool.Exec(ctx, "TRUNCATE cases, refresh_tokens, users")
	require.NoError(t, err)

	images, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	cfg := &config.Config{
		RequestTimeout:    10 * time.Second,
		JWTSecret:         "integration-secret",
		JWTAccessTTL:      15 * time.Minute,
		JWTRefreshTTL:     time.Hour,
		MaxLoginAttempts:  maxLoginAttempts,
		LockoutDuration:   time.Minute,
		CORSOrigins:       []string{"*"},
		RateLimitRPM:      10000,
		AuthRateLimitRPM:  10000,
		MaxUploadSize:     5 << 20,
		AllowedImageTypes: []string{"image/png", "image/jpeg"},
	}

	authService, err := service.NewAuthService(cfg.JWTSecret, cfg.JWTAccessTTL, cfg.JWTRefreshTTL,
		service.LockoutPolicy{MaxAttempts: cfg.MaxLoginAttempts, Duration: cfg.LockoutDuration},
		repository.NewUserRepository(db.Pool), repository.NewTokenRepository(db.Pool))
	require.NoError(t, err)
	require.NoError(t, authService.EnsureAdmin(ctx, adminUser, adminPassword))

	bus := event.NewBus()
	hub := websocket.NewHub(bus)
	hubCtx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(hubCtx)

	caseService := service.NewCaseService(repository.NewCaseRepository(db.Pool), images, cfg.AllowedImageTypes, bus)

	srv := httptest.NewServer(router.New(cfg, middleware.NewAuthMiddleware(authService), router.Handlers{
		Auth: handler.NewAuthHandler(authService),
		Case: handler.NewCaseHandler(caseService, cfg.MaxUploadSize),
	}, hub))
	t.Cleanup(srv.Close)

	return &stack{server: srv, images: images, db: db}
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 200, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}
