package http

import (
	"net/http"
	"strings"
	"time"

	"intake/internal/observability/middleware"
	"intake/internal/service"
	"intake/internal/transport/ws"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Deps struct {
	Auth      service.AuthService
	Sessions  service.SessionService
	Migration service.MigrationService
	Gateway   *ws.Gateway

	CookieName    string
	SecureCookies bool
	CORSOrigins   string // comma separated; empty means allow all
}

func NewRouter(deps Deps) http.Handler {
	h := &handler{deps: deps}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.WithMetrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   splitOrigins(deps.CORSOrigins),
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/auth", func(r chi.Router) {
		// Request timeout stays off the root so it never wraps the
		// long-lived notification socket.
		r.Use(chimw.Timeout(30 * time.Second))
		r.Group(func(r chi.Router) {
			r.Use(httprate.LimitByIP(3, 5*time.Minute))
			r.Post("/request-otp", h.requestOTP)
		})
		r.Group(func(r chi.Router) {
			r.Use(httprate.LimitByIP(5, 15*time.Minute))
			r.Post("/verify-otp", h.verifyOTP)
			r.Post("/password/login", h.passwordLogin)
		})
		r.Group(func(r chi.Router) {
			r.Use(requireSession(deps.Sessions, deps.CookieName))
			r.Post("/password/setup-password", h.setupPassword)
			r.Post("/password/change-auth-method", h.changeAuthMethod)
			r.Get("/password/migration-status", h.migrationStatus)
			r.Post("/logout", h.logout)
		})
	})

	// The gateway does its own cookie check; rate limiting an upgrade
	// endpoint would only hurt reconnect storms.
	r.Handle(ws.Path, deps.Gateway)

	return r
}

func splitOrigins(raw string) []string {
	out := []string{}
	for _, o := range strings.Split(raw, ",") {
		if s := strings.TrimSpace(o); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
