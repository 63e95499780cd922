package handler

import (
	"net/http"
	"time"

	"portal-agent/internal/container"
	"portal-agent/internal/middleware"
	"portal-agent/pkg/errors"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
)

// NewRouter configures the local control API
func NewRouter(c *container.Container) *chi.Mux {
	cfg := c.GetConfig()
	log := c.GetLogger()

	r := chi.NewRouter()

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowedOrigins = cfg.AllowedOrigins

	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(corsConfig, log))
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(60 * time.Second))
	r.Use(httprate.LimitByIP(200, time.Minute))

	healthHandler := NewHealthHandler(c)
	sessionHandler := NewSessionHandler(c)
	vettingHandler := NewVettingHandler(c)
	notificationHandler := NewNotificationHandler(c)

	r.Get("/health", healthHandler.Check)

	r.Route("/api/v1", func(r chi.Router) {
		// Session routes stay reachable with an expired token so it can be
		// replaced
		sessionHandler.RegisterRoutes(r)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireSession(c.Session, log))

			vettingHandler.RegisterRoutes(r)
			notificationHandler.RegisterRoutes(r)
		})
	})

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		respondError(w, req, errors.NewNotFoundError("Endpoint not found"), log)
	})

	log.Info("Router configured successfully")
	return r
}
