package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wrensec/keygate/internal/interfaces/http/middleware"
	"github.com/wrensec/keygate/pkg/constants"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// newObservedRouter builds a router with the observability middleware over
// an in-process tracer provider and unregistered metric vecs.
func newObservedRouter() (*gin.Engine, *prometheus.CounterVec, *prometheus.HistogramVec, *observedContext) {
	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total_test"},
		[]string{"method", "path", "status"},
	)
	durations := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds_test"},
		[]string{"method", "path"},
	)
	tracer := sdktrace.NewTracerProvider().Tracer("test")

	captured := &observedContext{}
	r := gin.New()
	r.Use(middleware.Observability(tracer, requests, durations))
	r.GET("/ping", func(c *gin.Context) {
		captured.requestID, _ = c.Get(string(constants.ContextKeyRequestID))
		captured.traceID, _ = c.Get(string(constants.ContextKeyTraceID))
		c.Status(http.StatusOK)
	})
	return r, requests, durations, captured
}

type observedContext struct {
	requestID interface{}
	traceID   interface{}
}

func TestObservability_AssignsRequestID(t *testing.T) {
	r, _, _, captured := newObservedRouter()

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	assert.Equal(t, w.Header().Get("X-Request-ID"), captured.requestID)
}

func TestObservability_PreservesInboundRequestID(t *testing.T) {
	r, _, _, captured := newObservedRouter()

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Request-ID", "upstream-42")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "upstream-42", w.Header().Get("X-Request-ID"))
	assert.Equal(t, "upstream-42", captured.requestID)
}

func TestObservability_SetsTraceID(t *testing.T) {
	r, _, _, captured := newObservedRouter()

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	traceID, ok := captured.traceID.(string)
	require.True(t, ok)
	assert.Len(t, traceID, 32)
}

func TestObservability_RecordsHTTPMetrics(t *testing.T) {
	r, requests, _, _ := newObservedRouter()

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		r.ServeHTTP(httptest.NewRecorder(), req)
	}
	// Unmatched routes collapse into one label value.
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, float64(3),
		testutil.ToFloat64(requests.WithLabelValues(http.MethodGet, "/ping", "200")))
	assert.Equal(t, float64(1),
		testutil.ToFloat64(requests.WithLabelValues(http.MethodGet, "not_found", "404")))
}
