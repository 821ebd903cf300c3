// Package api provides the HTTP API for the push gateway.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/pushgate/pushgate/internal/api/handler"
	"github.com/pushgate/pushgate/internal/api/middleware"
	"github.com/pushgate/pushgate/internal/api/response"
	"github.com/pushgate/pushgate/internal/device"
	"github.com/pushgate/pushgate/internal/dispatch"
	"github.com/pushgate/pushgate/internal/provider/resilience"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version         string
	BuildTime       string
	Logger          zerolog.Logger
	ServiceName     string
	Metrics         *middleware.Metrics
	DeviceService   *device.Service
	DispatchService *dispatch.Service
	DB              handler.Pinger
	Providers       *resilience.Registry
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "pushgate-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)            // Generate/propagate request ID first
	r.Use(middleware.Tracing(serviceName)) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))   // Structured logging
	r.Use(middleware.Recovery(cfg.Logger)) // Panic recovery
	r.Use(chimiddleware.RealIP)            // Real IP extraction
	r.Use(middleware.CORS)                 // CORS headers, preflight short-circuit
	r.Use(middleware.ContentTypeJSON)      // JSON content type

	// Envelope-shaped 404/405 instead of chi's plain-text defaults
	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		response.NotFound(w, req, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		response.MethodNotAllowed(w, req)
	})

	deviceHandler := handler.NewDeviceHandler(cfg.DeviceService)
	notifyHandler := handler.NewNotifyHandler(cfg.DispatchService)
	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.DB, cfg.Providers)

	registrationRateLimit := middleware.RateLimitByIP(middleware.RegistrationRateLimit)
	dispatchRateLimit := middleware.RateLimitByIP(middleware.DispatchRateLimit)
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit)

	r.Route("/api", func(r chi.Router) {
		r.Route("/device", func(r chi.Router) {
			r.With(registrationRateLimit).Post("/register", deviceHandler.Register)
			r.With(standardRateLimit).Get("/list/{userID}", deviceHandler.List)
		})

		r.Route("/notify", func(r chi.Router) {
			r.Use(dispatchRateLimit)
			r.Post("/user", notifyHandler.NotifyUser)
		})
	})

	// Ops endpoints (public, unlimited)
	r.Route("/ops", func(r chi.Router) {
		r.Get("/health", opsHandler.HealthCheck)
		r.Get("/ready", opsHandler.ReadinessCheck)
		r.Get("/status", opsHandler.SystemStatus)
	})

	return r
}
