package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	appMiddleware "github.com/FACorreiaa/go-user-identity/app/middleware"
	"github.com/FACorreiaa/go-user-identity/internal/api"
	"github.com/FACorreiaa/go-user-identity/internal/api/auth"
	"github.com/FACorreiaa/go-user-identity/internal/api/user"
)

// Config contains dependencies needed for the router setup
type Config struct {
	UserHandler user.Handler
	AuthHandler *auth.AuthHandler
	// LoginRequestsPerMinute limits login attempts per client IP. Zero disables the limit.
	LoginRequestsPerMinute int
	// TrustProxyHeaders takes the client IP from X-Forwarded-For / X-Real-IP.
	// Only enable it behind a proxy that overwrites those headers.
	TrustProxyHeaders bool
}

// SetupRouter initializes and configures the main application router.
// Server-wide middleware (request id, logging, recoverer) is applied by the
// caller before mounting it.
func SetupRouter(cfg *Config) chi.Router {
	r := chi.NewRouter()

	if cfg.TrustProxyHeaders {
		r.Use(middleware.RealIP)
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:3000"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("pong"))
	})

	r.Route("/api/users", func(r chi.Router) {
		r.Use(appMiddleware.NoStore)

		r.Post("/", cfg.UserHandler.CreateUser)
		r.Get("/", cfg.UserHandler.ListUsers)

		r.Group(func(r chi.Router) {
			if cfg.LoginRequestsPerMinute > 0 {
				r.Use(httprate.Limit(cfg.LoginRequestsPerMinute, time.Minute,
					httprate.WithKeyFuncs(httprate.KeyByIP),
					httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
						api.ErrorResponse(w, r, http.StatusTooManyRequests, "Too many login attempts, try again later")
					}),
				))
			}
			r.Post("/login", cfg.AuthHandler.Login)
		})

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", cfg.UserHandler.GetUser)
			r.Put("/", cfg.UserHandler.UpdateUsername)
			r.Delete("/", cfg.UserHandler.DeleteUser)
			r.Put("/password", cfg.UserHandler.UpdatePassword)
		})
	})

	return r
}
