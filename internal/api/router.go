package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/baechuer/user-console/internal/api/handlers"
	"github.com/baechuer/user-console/internal/audit"
	"github.com/baechuer/user-console/internal/authscreen"
	"github.com/baechuer/user-console/internal/config"
	"github.com/baechuer/user-console/internal/directory"
	"github.com/baechuer/user-console/internal/logger"
	"github.com/baechuer/user-console/internal/proxy"
	"github.com/baechuer/user-console/internal/session"
	"github.com/baechuer/user-console/internal/views"
	"github.com/baechuer/user-console/middleware"
)

// Deps are the collaborators the router wires into handlers.
type Deps struct {
	Config   *config.Config
	Sessions *session.Manager
	Auth     authscreen.AuthAPI
	Users    directory.UserAPI
	Views    *views.Renderer
	Audit    audit.Publisher
	// Redis backs the auth rate limiter; nil falls back to in-process limits.
	Redis    *redis.Client
	Checkers []handlers.ReadinessChecker
}

func NewRouter(d Deps) (http.Handler, error) {
	cfg := d.Config

	registry := directory.NewRegistry(d.Users, d.Sessions, cfg.SessionTTL, directory.Options{
		NoFileTTL:   cfg.ImportNoticeTTL,
		SnackbarTTL: cfg.SnackbarTTL,
		Audit:       d.Audit,
	})

	authH := handlers.NewAuthHandler(d.Auth, d.Sessions, d.Views, d.Audit)
	usersH := handlers.NewUsersHandler(registry, d.Sessions, d.Views, d.Audit, cfg.MaxUploadBytes)
	readyH := handlers.NewReadinessHandler(d.Checkers...)

	usersProxy, err := proxy.New(cfg.UserAPIBaseURL, "/api/users", "/users")
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Tracing(cfg.ServiceName))
	r.Use(middleware.RequestLogger(logger.Log))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Metrics)
	r.Use(middleware.SecurityHeaders)

	// Operational endpoints
	r.Get("/healthz", readyH.Healthz)
	r.Get("/readyz", readyH.Readyz)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.CSRFProtection(cfg.AllowedOrigins))
		r.Use(middleware.Session(d.Sessions))

		// Auth screen (public)
		authLimit := middleware.AuthRateLimit(d.Redis, cfg.AuthRateLimit, cfg.AuthRateWindow)
		r.Get(middleware.LoginPath, authH.Page)
		r.With(authLimit).Post(middleware.LoginPath, authH.Login)
		r.With(authLimit).Post("/register", authH.Register)

		// User directory (gated)
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireSession)

			r.Get("/users", usersH.List)
			r.Post("/users/import", usersH.Import)
			r.Post("/users/snackbar/dismiss", usersH.DismissSnackbar)
			r.Get("/users/export", usersH.Export)
			r.Post("/users/{id}/edit", usersH.Edit)
			r.Post("/users/{id}", usersH.Save)
			r.Post("/users/{id}/cancel", usersH.Cancel)
			r.Post("/users/{id}/delete", usersH.Delete)
			r.Post("/logout", usersH.Logout)

			r.Mount("/api/users", usersProxy)
		})
	})

	r.MethodNotAllowed(handlers.MethodNotAllowed)
	// every other path lands on the login screen
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, middleware.LoginPath, http.StatusSeeOther)
	})

	logger.Log.Info().
		Str("user_api", cfg.UserAPIBaseURL).
		Str("auth_api", cfg.AuthAPIBaseURL).
		Msg("routes_mounted")

	return r, nil
}
