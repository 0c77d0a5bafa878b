package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"case-console/internal/config"
	"case-console/internal/handler"
	"case-console/internal/metrics"
	"case-console/internal/middleware"
	"case-console/internal/model"
	"case-console/internal/websocket"
)

type Handlers struct {
	Auth *handler.AuthHandler
	Case *handler.CaseHandler
}

func New(cfg *config.Config, authMiddleware *middleware.AuthMiddleware, handlers Handlers, hub *websocket.Hub) http.Handler {
	r := chi.NewRouter()
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(cfg.RateLimitRPM, cfg.AuthRateLimitRPM)
	editors := authMiddleware.RequireRoles(model.RoleEditor, model.RoleAdmin)

	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	r.Use(metrics.Middleware)
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.SecurityHeaders)
	r.Use(rateLimitMiddleware.Handler)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", metrics.Handler())
	r.With(middleware.StreamTimeout(5*time.Minute, 30*time.Second)).Get(model.UploadsPrefix+"{key}", handlers.Case.Image)

	r.Route("/api/v1", func(api chi.Router) {
		api.Get("/ws", hub.ServeWS(cfg.CORSOrigins))

		api.Group(func(timed chi.Router) {
			timed.Use(middleware.Timeout(cfg.RequestTimeout, cfg.UploadTimeout))

			timed.Route("/auth", func(auth chi.Router) {
				auth.Post("/login", handlers.Auth.Login)
				auth.Post("/refresh", handlers.Auth.Refresh)
				auth.With(authMiddleware.RequireAuth).Post("/logout", handlers.Auth.Logout)
				auth.With(authMiddleware.RequireAuth).Get("/me", handlers.Auth.Me)
			})

			timed.Route("/cases", func(cases chi.Router) {
				cases.Get("/", handlers.Case.List)
				cases.With(authMiddleware.RequireAuth, editors).Post("/", handlers.Case.Create)
				cases.With(authMiddleware.RequireAuth, editors).Patch("/reorder", handlers.Case.Reorder)
				cases.With(authMiddleware.RequireAuth, editors).Delete("/{id}", handlers.Case.Delete)
			})
		})
	})

	return r
}
