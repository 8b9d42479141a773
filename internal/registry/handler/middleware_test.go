package handler_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/starregistry/internal/registry/handler"
	"go.uber.org/zap"
)

func pingRouter(mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(mw...)
	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})
	r.GET("/metrics", handler.MetricsHandler())
	return r
}

func TestRateLimiter_429AfterBurst(t *testing.T) {
	router := pingRouter(handler.RateLimiter(1, 2))

	codes := make([]int, 3)
	for i := range codes {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		codes[i] = w.Code
	}

	if codes[0] != http.StatusOK || codes[1] != http.StatusOK {
		t.Errorf("burst requests: got %v, want 200s", codes[:2])
	}
	if codes[2] != http.StatusTooManyRequests {
		t.Errorf("expected 429 after burst, got %d", codes[2])
	}
}

func TestRateLimiter_perClient(t *testing.T) {
	router := pingRouter(handler.RateLimiter(1, 1))

	for _, addr := range []string{"10.0.0.1:1", "10.0.0.2:1"} {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.RemoteAddr = addr
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Errorf("client %s: expected 200, got %d", addr, w.Code)
		}
	}
}

func TestRequestLogger_assignsRequestID(t *testing.T) {
	router := pingRouter(handler.RequestLogger(zap.NewNop()))

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if id := w.Header().Get(handler.RequestIDHeader); len(id) != 36 {
		t.Errorf("expected a UUID request ID, got %q", id)
	}
}

func TestRequestLogger_keepsIncomingID(t *testing.T) {
	router := pingRouter(handler.RequestLogger(zap.NewNop()))

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(handler.RequestIDHeader, "trace-42")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if id := w.Header().Get(handler.RequestIDHeader); id != "trace-42" {
		t.Errorf("got %q, want trace-42", id)
	}
}

func TestMetrics_exposesStarRegistryCounters(t *testing.T) {
	router := pingRouter(handler.PrometheusMiddleware())
	handler.RecordBlockAppended(3)
	handler.RecordRejection("expired")
	handler.RecordAudit(3, true)
	handler.RecordArchiveFailure()

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ping", nil))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	body := w.Body.String()
	for _, name := range []string{
		"starregistry_requests_total",
		"starregistry_blocks_appended_total",
		`starregistry_submissions_rejected_total{reason="expired"}`,
		"starregistry_chain_height 3",
		"starregistry_chain_valid 1",
		"starregistry_archive_failures_total",
	} {
		if !strings.Contains(body, name) {
			t.Errorf("metrics output missing %s", name)
		}
	}
}
