package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"example.com/performance/internal/auth"
	"example.com/performance/internal/logging"
)

// RouterConfig carries the cross-cutting settings of the router.
type RouterConfig struct {
	Auth           auth.Config
	AllowedOrigins []string
	Logger         *slog.Logger
}

// NewRouter wires every route behind request logging, CORS and bearer auth.
// /healthz and /metrics are public.
func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", "no route for "+r.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	})

	r.Get("/healthz", healthz)
	r.Handle("/metrics", promhttp.Handler())

	authn := auth.NewMiddleware(cfg.Auth)
	authn.OnError = func(w http.ResponseWriter, r *http.Request, err error) {
		writeError(w, http.StatusUnauthorized, "unauthorized", err.Error())
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(authn.Wrap)

		r.Group(func(r chi.Router) {
			r.Use(requireScope(auth.ScopeResultsRead))
			r.Get("/leaderboards", h.getLeaderboard)
			r.Post("/leaderboards/refresh", h.refreshLeaderboard)
			r.Get("/leaderboards/{activity}", h.getActivityLeaderboard)
			r.Get("/results", h.listResults)
			r.Get("/athletes/{name}/records", h.athleteRecords)
			r.Get("/activities", h.getActivities)
		})

		r.With(requireScope(auth.ScopeResultsWrite)).Post("/results", h.recordResult)

		r.Group(func(r chi.Router) {
			r.Use(requireAdmin)
			r.Patch("/results/{id}", h.updateResult)
			r.Delete("/results/{id}", h.deleteResult)
			r.Get("/users", h.listUsers)
			r.Post("/users", h.registerUser)
			r.Delete("/users/{id}", h.deleteUser)
			r.Put("/activities", h.putActivities)
			r.Post("/activities/rename", h.renameActivity)
		})
	})

	return r
}

func requireScope(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := auth.FromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
				return
			}
			if !claims.HasScope(scope) {
				writeError(w, http.StatusForbidden, "forbidden", "scope "+scope+" required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := auth.FromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
			return
		}
		if !claims.Admin {
			writeError(w, http.StatusForbidden, "forbidden", "admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
