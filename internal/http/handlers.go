package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/rain-route-planner/internal/circuitbreaker"
	"github.com/kjstillabower/rain-route-planner/internal/export"
	"github.com/kjstillabower/rain-route-planner/internal/lifecycle"
	"github.com/kjstillabower/rain-route-planner/internal/models"
	"github.com/kjstillabower/rain-route-planner/internal/observability"
	"github.com/kjstillabower/rain-route-planner/internal/service"
	"github.com/kjstillabower/rain-route-planner/internal/traffic"
)

// maxBodyBytes bounds the check-route request body.
const maxBodyBytes = 64 << 10

// RouteChecker is the pipeline the handler drives.
type RouteChecker interface {
	CheckRoute(ctx context.Context, req models.RouteRequest) (models.RouteCheck, error)
}

// HealthConfig holds thresholds and probes for the health handler.
type HealthConfig struct {
	Window               time.Duration
	OverloadThresholdPct int
	RateLimitRPS         int
	DegradedErrorPct     int
	StartTime            time.Time
	// Providers maps provider name to whether it is configured (credential or enabled flag).
	Providers map[string]bool
	Breakers  map[string]*circuitbreaker.CircuitBreaker
	// CachePing, when set, is called to check cache reachability. Used for shared backends.
	CachePing func() error
	// AlertsConnected, when set, reports the alert publisher connection.
	AlertsConnected func() bool
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	checker          RouteChecker
	healthConfig     *HealthConfig
	logger           *zap.Logger
	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler. healthConfig may be nil.
func NewHandler(checker RouteChecker, healthConfig *HealthConfig, logger *zap.Logger) *Handler {
	return &Handler{
		checker:      checker,
		healthConfig: healthConfig,
		logger:       logger,
	}
}

// CheckRoute handles POST /api/check-route. The optional format query selects
// json (default), kml or xlsx output.
func (h *Handler) CheckRoute(w http.ResponseWriter, r *http.Request) {
	format := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format")))
	switch format {
	case "", "json", "kml", "xlsx":
	default:
		writeError(w, r, http.StatusBadRequest, "INVALID_FORMAT", "format must be json, kml or xlsx")
		return
	}

	var req models.RouteRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_JSON", "request body must be a JSON object")
		return
	}

	check, err := h.checker.CheckRoute(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	traffic.RecordSuccess()

	switch format {
	case "kml":
		body, err := export.KML(check)
		if err != nil {
			writeExportError(w, r, err)
			return
		}
		writeAttachment(w, "application/vnd.google-earth.kml+xml", "route.kml", body)
	case "xlsx":
		body, err := export.XLSX(check)
		if err != nil {
			writeExportError(w, r, err)
			return
		}
		writeAttachment(w, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "route.xlsx", body)
	default:
		writeJSON(w, http.StatusOK, check)
	}
}

// APIHealth handles GET /api/health, the liveness contract existing clients poll.
func (h *Handler) APIHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "OK",
		"message": "Rain Route Planner API is running",
	})
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result := h.computeHealthStatus()

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	resp := map[string]interface{}{
		"status":    result.status,
		"service":   "rain-route-planner",
		"version":   "dev",
		"checks":    h.checks(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if h.healthConfig != nil && h.healthConfig.Window > 0 {
		fallbacks, total := traffic.FallbackRate(h.healthConfig.Window)
		rate := 0.0
		if total > 0 {
			rate = float64(fallbacks) / float64(total)
		}
		resp["fallbackRate"] = rate
		if !h.healthConfig.StartTime.IsZero() {
			resp["uptime"] = time.Since(h.healthConfig.StartTime).Round(time.Second).String()
		}
	}
	writeJSON(w, result.statusCode, resp)
}

func (h *Handler) checks() map[string]interface{} {
	checks := make(map[string]interface{})
	if h.healthConfig == nil {
		return checks
	}
	if len(h.healthConfig.Providers) > 0 {
		providers := make(map[string]string, len(h.healthConfig.Providers))
		for name, ok := range h.healthConfig.Providers {
			if ok {
				providers[name] = "configured"
			} else {
				providers[name] = "disabled"
			}
		}
		checks["providers"] = providers
	}
	if len(h.healthConfig.Breakers) > 0 {
		states := make(map[string]string, len(h.healthConfig.Breakers))
		for name, cb := range h.healthConfig.Breakers {
			states[name] = cb.State().String()
		}
		checks["circuitBreakers"] = states
	}
	if h.healthConfig.CachePing != nil {
		if h.healthConfig.CachePing() == nil {
			checks["cache"] = "healthy"
		} else {
			checks["cache"] = "unhealthy"
		}
	}
	if h.healthConfig.AlertsConnected != nil {
		if h.healthConfig.AlertsConnected() {
			checks["alerts"] = "connected"
		} else {
			checks["alerts"] = "disconnected"
		}
	}
	return checks
}

// computeHealthStatus evaluates conditions in priority order:
// shutting-down > starting > overloaded > degraded (error rate) > degraded (open breaker) > healthy.
// Open breakers report degraded with 200 because the fallback chains still answer.
func (h *Handler) computeHealthStatus() healthResult {
	if lifecycle.IsShuttingDown() {
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal"}
	}
	if lifecycle.IsStarting() {
		return healthResult{"starting", http.StatusServiceUnavailable, "ready_delay"}
	}
	if h.healthConfig == nil {
		return healthResult{"healthy", http.StatusOK, ""}
	}
	cfg := h.healthConfig
	if cfg.Window > 0 && cfg.RateLimitRPS > 0 && cfg.OverloadThresholdPct > 0 {
		threshold := float64(cfg.RateLimitRPS) * cfg.Window.Seconds() * float64(cfg.OverloadThresholdPct) / 100
		if float64(traffic.RequestCount(cfg.Window)) > threshold {
			return healthResult{"overloaded", http.StatusServiceUnavailable, "overload_threshold"}
		}
	}
	if cfg.Window > 0 && cfg.DegradedErrorPct > 0 {
		errs, total := traffic.ErrorRate(cfg.Window)
		if total > 0 && float64(errs)*100/float64(total) >= float64(cfg.DegradedErrorPct) {
			return healthResult{"degraded", http.StatusServiceUnavailable, "error_rate_breach"}
		}
	}
	if open := openBreakers(cfg.Breakers); len(open) > 0 {
		return healthResult{"degraded", http.StatusOK, "breaker_open:" + strings.Join(open, ",")}
	}
	return healthResult{"healthy", http.StatusOK, ""}
}

func openBreakers(breakers map[string]*circuitbreaker.CircuitBreaker) []string {
	var open []string
	for name, cb := range breakers {
		if cb.State() == circuitbreaker.StateOpen {
			open = append(open, name)
		}
	}
	sort.Strings(open)
	return open
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeAttachment(w http.ResponseWriter, contentType, filename string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// writeError writes an error response in the standard error format with code, message,
// and requestId (correlation ID) if available in request context.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": observability.CorrelationID(r.Context()),
		},
	})
}

// writeServiceError maps pipeline errors to status codes. Input errors are not
// counted against the error rate.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	logger := observability.LoggerFromContext(r.Context())
	switch {
	case errors.Is(err, service.ErrInvalidRequest):
		writeError(w, r, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	case errors.Is(err, service.ErrRouteUnavailable):
		traffic.RecordError()
		logger.Warn("route unavailable", zap.Error(err))
		writeError(w, r, http.StatusBadGateway, "ROUTE_UNAVAILABLE", "Unable to compute a route between the given places")
	case errors.Is(err, context.DeadlineExceeded):
		traffic.RecordError()
		logger.Warn("route check timed out", zap.Error(err))
		writeError(w, r, http.StatusGatewayTimeout, "TIMEOUT", "Route check timed out")
	case errors.Is(err, context.Canceled):
		logger.Debug("client went away", zap.Error(err))
	default:
		traffic.RecordError()
		logger.Error("route check failed", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "INTERNAL", "Internal server error")
	}
}

func writeExportError(w http.ResponseWriter, r *http.Request, err error) {
	observability.LoggerFromContext(r.Context()).Error("export failed", zap.Error(err))
	writeError(w, r, http.StatusInternalServerError, "EXPORT_FAILED", "Unable to render export")
}
