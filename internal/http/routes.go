package http

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/rain-route-planner/internal/observability"
)

// NewRouter mounts the API. limiter may be nil; requestTimeout bounds /api/check-route.
func NewRouter(h *Handler, logger *zap.Logger, limiter *rate.Limiter, requestTimeout time.Duration) *mux.Router {
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(logger))
	router.Use(MetricsMiddleware)
	router.Use(GzipMiddleware(1024))

	router.HandleFunc("/health", h.GetHealth).Methods(http.MethodGet)
	router.Handle("/metrics", observability.MetricsHandler()).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", h.APIHealth).Methods(http.MethodGet)

	var check http.Handler = http.HandlerFunc(h.CheckRoute)
	check = TimeoutMiddleware(requestTimeout)(check)
	check = RateLimitMiddleware(limiter)(check)
	api.Handle("/check-route", check).Methods(http.MethodPost)

	return router
}
