// Package api exposes ingestion webhooks and read queries over HTTP.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sells-group/callscore/internal/ingest"
)

// Config holds HTTP surface settings.
type Config struct {
	CORSOrigins    []string
	RateLimitRPS   float64 // 0 disables webhook rate limiting
	RateLimitBurst int
}

// Deps are the collaborators the router serves.
type Deps struct {
	Coordinator *ingest.Coordinator
	WebSocket   http.Handler // mounted at /ws when set
	Metrics     http.Handler // mounted at /metrics when set
	Now         func() time.Time
}

// maxBodyBytes bounds webhook payloads.
const maxBodyBytes = 5 << 20

// NewRouter builds the chi router.
func NewRouter(cfg Config, d Deps) http.Handler {
	if d.Now == nil {
		d.Now = time.Now
	}
	h := &handler{coord: d.Coordinator, state: d.Coordinator.State(), now: d.Now}

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "Authorization"},
		MaxAge:         300,
	}))

	r.Get("/health", h.health)

	r.Group(func(r chi.Router) {
		r.Use(rateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))
		r.Use(middleware.AllowContentType("application/json"))
		r.Post("/webhook/elevenlabs", h.elevenLabsWebhook)
		r.Post("/webhook/xelion", h.xelionWebhook)
		r.Post("/api/calls", h.submitCall)
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/stats", h.stats)
		r.Get("/stats/daily", h.dailyStats)
		r.Get("/calls", h.listCalls)
		r.Get("/calls/{id}", h.getCall)
	})

	if d.WebSocket != nil {
		r.Handle("/ws", d.WebSocket)
	}
	if d.Metrics != nil {
		r.Handle("/metrics", d.Metrics)
	}
	return r
}
