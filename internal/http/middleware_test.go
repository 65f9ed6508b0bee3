package http

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/rain-route-planner/internal/observability"
	"github.com/kjstillabower/rain-route-planner/internal/traffic"
)

func counterValue(c prometheus.Counter) float64 {
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		return 0
	}
	return m.GetCounter().GetValue()
}

func TestCorrelationIDMiddleware_PropagatesHeaderAndContext(t *testing.T) {
	var gotID string
	var gotLogger *zap.Logger
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(zap.NewNop()))
	router.HandleFunc("/x", func(w http.ResponseWriter, r *http.Request) {
		gotID = observability.CorrelationID(r.Context())
		gotLogger = observability.LoggerFromContext(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Correlation-ID", "abc-123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if gotID != "abc-123" {
		t.Errorf("context correlation id = %q, want abc-123", gotID)
	}
	if w.Header().Get("X-Correlation-ID") != "abc-123" {
		t.Errorf("response header = %q", w.Header().Get("X-Correlation-ID"))
	}
	if gotLogger == nil {
		t.Error("logger not stored in context")
	}
}

func TestCorrelationIDMiddleware_GeneratesID(t *testing.T) {
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(zap.NewNop()))
	router.HandleFunc("/x", func(w http.ResponseWriter, r *http.Request) {})

	w1, w2 := httptest.NewRecorder(), httptest.NewRecorder()
	router.ServeHTTP(w1, httptest.NewRequest(http.MethodGet, "/x", nil))
	router.ServeHTTP(w2, httptest.NewRequest(http.MethodGet, "/x", nil))

	id1, id2 := w1.Header().Get("X-Correlation-ID"), w2.Header().Get("X-Correlation-ID")
	if len(id1) != 36 || id1 == id2 {
		t.Errorf("generated ids %q and %q, want distinct UUIDs", id1, id2)
	}
}

func TestMetricsMiddleware_LabelsByRouteTemplate(t *testing.T) {
	router := newTestRouter(&fakeChecker{check: sampleCheck()}, nil)
	counter := observability.HTTPRequestsTotal.WithLabelValues(http.MethodPost, "/api/check-route", "2xx")
	before := counterValue(counter)

	postRoute(t, router, "", validBody)

	if got := counterValue(counter) - before; got != 1 {
		t.Errorf("requests counted = %v, want 1", got)
	}
	if InFlightCount() != 0 {
		t.Errorf("InFlightCount() = %d after request, want 0", InFlightCount())
	}
}

func TestMetricsMiddleware_InFlightDuringRequest(t *testing.T) {
	var during int64
	router := mux.NewRouter()
	router.Use(MetricsMiddleware)
	router.HandleFunc("/x", func(w http.ResponseWriter, r *http.Request) {
		during = InFlightCount()
	})
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))
	if during < 1 {
		t.Errorf("InFlightCount() inside handler = %d, want >= 1", during)
	}
}

func TestRateLimitMiddleware_Denies(t *testing.T) {
	traffic.Reset()
	h := NewHandler(&fakeChecker{check: sampleCheck()}, nil, zap.NewNop())
	router := NewRouter(h, zap.NewNop(), rate.NewLimiter(rate.Every(time.Hour), 1), 5*time.Second)
	deniedBefore := counterValue(observability.RateLimitDeniedTotal)

	first := postRoute(t, router, "", validBody)
	second := postRoute(t, router, "", validBody)

	if first.Code != http.StatusOK {
		t.Fatalf("first status = %d, want 200", first.Code)
	}
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("second status = %d, want 429", second.Code)
	}
	if e := decodeError(t, second); e["code"] != "RATE_LIMITED" {
		t.Errorf("code = %q", e["code"])
	}
	if n := traffic.DenialCount(time.Minute); n != 1 {
		t.Errorf("DenialCount = %d, want 1", n)
	}
	if got := counterValue(observability.RateLimitDeniedTotal) - deniedBefore; got != 1 {
		t.Errorf("RateLimitDeniedTotal delta = %v, want 1", got)
	}
}

func TestRateLimitMiddleware_HealthNotLimited(t *testing.T) {
	h := NewHandler(&fakeChecker{}, nil, zap.NewNop())
	router := NewRouter(h, zap.NewNop(), rate.NewLimiter(rate.Every(time.Hour), 1), time.Second)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("request %d status = %d", i, w.Code)
		}
	}
}

func TestGzipMiddleware_CompressesLargeResponses(t *testing.T) {
	big := strings.Repeat(`{"lat":19.076,"lng":72.8777},`, 200)
	router := mux.NewRouter()
	router.Use(GzipMiddleware(1024))
	router.HandleFunc("/big", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, big)
	})

	req := httptest.NewRequest(http.MethodGet, "/big", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Header().Get("Content-Encoding") != "gzip" {
		t.Fatalf("Content-Encoding = %q, want gzip", w.Header().Get("Content-Encoding"))
	}
	zr, err := gzip.NewReader(w.Body)
	if err != nil {
		t.Fatalf("gzip reader: %v", err)
	}
	plain, err := io.ReadAll(zr)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(plain) != big {
		t.Error("decompressed body differs")
	}
}

func TestTimeoutMiddleware_SetsDeadline(t *testing.T) {
	var hasDeadline bool
	h := TimeoutMiddleware(time.Second)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hasDeadline = r.Context().Deadline()
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if !hasDeadline {
		t.Error("request context has no deadline")
	}
}

func TestStatusCodeString(t *testing.T) {
	for code, want := range map[int]string{200: "2xx", 404: "4xx", 502: "5xx"} {
		if got := statusCodeString(code); got != want {
			t.Errorf("statusCodeString(%d) = %q, want %q", code, got, want)
		}
	}
}
