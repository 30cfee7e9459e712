package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/eldtechnologies/landchat/internal/api/middleware"
	"github.com/eldtechnologies/landchat/internal/auth"
	"github.com/eldtechnologies/landchat/internal/handlers"
	"github.com/eldtechnologies/landchat/internal/store"
)

const maxBodyBytes = 100 * 1024

// RouterConfig wires the router's collaborators.
type RouterConfig struct {
	Handlers  handlers.Deps
	Socket    http.Handler   // websocket hub, mounted at /socket
	Verifier  *auth.Verifier // nil disables bearer verification
	Redis     *store.RedisStore
	RateLimit middleware.RateLimiterConfig

	// TrustProxy takes the client address from X-Forwarded-For and friends.
	TrustProxy bool
}

// NewRouter creates and configures the HTTP router.
func NewRouter(logger zerolog.Logger, cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	if cfg.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(chimw.Recoverer)

	// Rate limiting needs Redis; single-instance dev runs go without.
	if cfg.Redis != nil {
		limiter := middleware.NewRateLimiter(cfg.Redis.Client(), logger, cfg.RateLimit)
		r.Use(limiter.Middleware)
	}

	// The socket upgrade hijacks the connection, so it stays outside the
	// response-wrapping middleware below.
	if cfg.Socket != nil {
		r.Method(http.MethodGet, "/socket", cfg.Socket)
	}

	h := handlers.NewHandler(cfg.Handlers)
	authMw := middleware.NewAuthMiddleware(cfg.Verifier, logger)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Metrics)
		r.Use(middleware.SecurityHeaders)
		r.Use(middleware.MaxBodySize(maxBodyBytes))
		r.Use(middleware.ValidateRequest)
		r.Use(middleware.Logger(logger))
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
			AllowCredentials: false,
			MaxAge:           300,
		}))

		r.Handle("/metrics", promhttp.Handler())
		r.Get("/", h.Root)
		r.Get("/health", h.Health)

		r.Route("/api/v1", func(r chi.Router) {
			r.Get("/users/admin", h.GetAdminProfile)

			r.Route("/messages", func(r chi.Router) {
				r.Get("/chats", h.GetAdminChats)
				r.Get("/latest/{senderId}/{receiverId}", h.GetLatestMessage)
				r.Get("/{senderId}/{receiverId}", h.GetMessages)

				r.Group(func(r chi.Router) {
					r.Use(authMw.RequireAuth)

					r.Post("/", h.SendMessage)
					r.Get("/chats/{recipientId}", h.GetChats)
				})
			})
		})
	})

	return r
}
