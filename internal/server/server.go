package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/prite36/smart-irrigation/internal/irrigation"
	"github.com/prite36/smart-irrigation/internal/models"
)

const Version = "1.0.0"

// Controller is the irrigation state the API exposes.
type Controller interface {
	View() irrigation.View
	Ingest(update models.SensorUpdate) (models.SensorSnapshot, error)
	Touch() models.SensorSnapshot
	Analyze(ctx context.Context) irrigation.AnalysisResult
	RainAlert(ctx context.Context) bool
	RainStopped(ctx context.Context, soilMoisture *float64) (irrigation.RainStoppedResult, error)
	ManualStart(ctx context.Context, durationMinutes int) error
	ManualStop(ctx context.Context) error
	RecentLog(n int) []models.LogEntry
}

type Options struct {
	Port        int
	CORSOrigins []string
	// Metrics and WebSocket are mounted when set.
	Metrics   http.Handler
	WebSocket http.HandlerFunc
}

// NewRouter builds the API routes.
func NewRouter(ctrl Controller, opts Options) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/", InfoHandler(ctrl))
	r.Get("/health", HealthHandler())
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}
	if opts.WebSocket != nil {
		r.Get("/ws", opts.WebSocket)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/sensors", GetSensorsHandler(ctrl))
		r.Post("/sensors", UpdateSensorsHandler(ctrl))
		r.Get("/ai/analyze", AnalyzeHandler(ctrl))
		r.Post("/rain/alert", RainAlertHandler(ctrl))
		r.Post("/rain/stopped", RainStoppedHandler(ctrl))
		r.Post("/irrigation/control", ControlHandler(ctrl))
		r.Get("/motor-log", MotorLogHandler(ctrl))
	})

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: false,
	})
	return c.Handler(r)
}

// New creates the HTTP server. Timeouts leave room for the actuator call.
func New(ctrl Controller, opts Options) *http.Server {
	addr := fmt.Sprintf(":%d", opts.Port)
	log.Printf("[INFO] API Server configured to listen on %s", addr)

	return &http.Server{
		Addr:              addr,
		Handler:           NewRouter(ctrl, opts),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
}
