package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"pms-assistant/internal/correlation"
	"pms-assistant/internal/handlers"
	"pms-assistant/internal/middleware"
	"pms-assistant/internal/websocket"
)

type Options struct {
	Logger         zerolog.Logger
	FrontendURL    string
	ChatRatePerMin int
	RequestCeiling time.Duration
	JWTAuth        *middleware.JWTAuth
	ChatHandler    *handlers.ChatHandler
	HealthHandler  *handlers.HealthHandler
	WSHub          *websocket.Hub
}

// New builds the HTTP surface. The returned stop func ends the background
// work owned by the router's middleware.
func New(opts Options) (http.Handler, func()) {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Correlation(opts.Logger))
	r.Use(middleware.Logger())
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Metrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{opts.FrontendURL},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", correlation.HeaderName},
		ExposedHeaders:   []string{correlation.HeaderName},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	chatLimiter := middleware.NewRateLimiter("chat_message", opts.ChatRatePerMin, time.Minute)

	r.Get("/health", opts.HealthHandler.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket authenticates with ?token=
		r.Get("/ws", opts.WSHub.HandleWebSocket)

		// ──── Chat Routes ────
		r.Route("/chat", func(r chi.Router) {
			r.Use(opts.JWTAuth.Middleware)

			r.With(chatLimiter.Middleware, chimiddleware.Timeout(opts.RequestCeiling)).
				Post("/message", opts.ChatHandler.SendMessage)
			r.Get("/history/{sessionId}", opts.ChatHandler.GetHistory)
			r.Delete("/session/{sessionId}", opts.ChatHandler.DeleteSession)
			r.Put("/session/{sessionId}/title", opts.ChatHandler.RenameSession)
			r.Get("/sessions", opts.ChatHandler.ListSessions)
			r.Post("/sessions", opts.ChatHandler.CreateSession)
		})
	})

	return r, chatLimiter.Stop
}
