package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sai-assistant/sai/internal/config"
	"github.com/sai-assistant/sai/internal/events"
	"github.com/sai-assistant/sai/pkg/logger"
)

// Router is the API router
type Router struct {
	handler    *Handler
	middleware *Middleware
	wsBridge   *events.WSBridge
	config     *config.Config
	logger     *logger.Logger
}

// NewRouter creates a new API router
func NewRouter(handler *Handler, wsBridge *events.WSBridge, cfg *config.Config, log *logger.Logger) *Router {
	return &Router{
		handler:    handler,
		middleware: NewMiddleware(log),
		wsBridge:   wsBridge,
		config:     cfg,
		logger:     log.Named("api-router"),
	}
}

// Routes returns the API routes
func (r *Router) Routes() http.Handler {
	router := chi.NewRouter()

	// Middleware
	router.Use(r.middleware.RequestID)
	router.Use(r.middleware.Logger)
	router.Use(r.middleware.Recoverer)
	router.Use(r.middleware.CORS(r.config.Server.CORSAllowedOrigins))

	// API routes
	router.Route("/api/v1", func(router chi.Router) {
		// Health check
		router.Get("/health", r.handler.GetHealth)

		// Configuration
		router.Get("/config", r.handler.GetConfig)

		// Capture devices
		router.Get("/devices", r.handler.GetDevices)
		router.Post("/devices/select", r.handler.SelectDevice)

		// Listening toggle
		router.Get("/listening", r.handler.GetListening)
		router.Post("/listening", r.handler.SetListening)

		// Assistant mode
		router.Get("/mode", r.handler.GetMode)
		router.Post("/mode", r.handler.SetMode)

		// Exchange history
		router.Get("/history", r.handler.GetHistory)
		router.Delete("/history", r.handler.DeleteHistory)
		router.Get("/export", r.handler.Export)

		// Cache statistics
		router.Get("/cache/stats", r.handler.GetCacheStats)

		// UI event stream
		router.Get("/ws", r.wsBridge.ServeHTTP)
	})

	return router
}
