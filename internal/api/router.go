package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wonny/salescast/internal/api/handlers"
	"github.com/wonny/salescast/pkg/logger"
)

// RouterDeps handlers and middleware of the API
type RouterDeps struct {
	Predictions    *handlers.PredictionHandler
	Health         *handlers.HealthHandler
	Limiter        Limiter // nil = unlimited
	Stream         *Hub    // nil = no /ws/runs
	MetricsEnabled bool
	Logger         *logger.Logger
}

// NewRouter creates and configures the HTTP router
// ⭐ SSOT: 라우팅 설정은 이 함수에서만
func NewRouter(deps RouterDeps) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", deps.Health.Health).Methods("GET")

	// Prometheus
	if deps.MetricsEnabled {
		r.Handle("/metrics", promhttp.Handler()).Methods("GET")
	}

	// Run progress stream
	if deps.Stream != nil {
		r.HandleFunc("/ws/runs", deps.Stream.ServeWS).Methods("GET")
	}

	// API
	api := r.PathPrefix("/api").Subrouter()
	if deps.Limiter != nil {
		api.Use(rateLimitMiddleware(deps.Limiter, deps.Logger))
	}

	api.HandleFunc("/runs/latest", deps.Predictions.GetLatestRun).Methods("GET")
	api.HandleFunc("/predictions", deps.Predictions.FindPredictions).Methods("GET")
	api.HandleFunc("/predictions/{id:[0-9]+}", deps.Predictions.GetPrediction).Methods("GET")

	// Apply middleware
	r.Use(loggingMiddleware(deps.Logger))
	r.Use(recoveryMiddleware(deps.Logger))

	return r
}
