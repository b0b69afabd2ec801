package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestPrometheusMiddleware_RecordsMetrics(t *testing.T) {
	// Reset metrics
	prometheus.DefaultRegisterer = prometheus.NewRegistry()

	nextHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	handler := PrometheusMiddleware(nextHandler)

	req := httptest.NewRequest("GET", "/test", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPrometheusMiddleware_DifferentStatusCodes(t *testing.T) {
	prometheus.DefaultRegisterer = prometheus.NewRegistry()

	testCases := []struct {
		name       string
		statusCode int
	}{
		{"success_200", http.StatusOK},
		{"created_201", http.StatusCreated},
		{"bad_request_400", http.StatusBadRequest},
		{"unauthorized_401", http.StatusUnauthorized},
		{"not_found_404", http.StatusNotFound},
		{"server_error_500", http.StatusInternalServerError},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			nextHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.statusCode)
			})

			handler := PrometheusMiddleware(nextHandler)

			req := httptest.NewRequest("GET", "/api/endpoint", nil)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tc.statusCode, rec.Code)
		})
	}
}

func TestPrometheusMiddleware_DifferentMethods(t *testing.T) {
	prometheus.DefaultRegisterer = prometheus.NewRegistry()

	methods := []string{"GET", "POST", "PUT", "PATCH", "DELETE"}

	for _, method := range methods {
		t.Run(method, func(t *testing.T) {
			nextHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			})

			handler := PrometheusMiddleware(nextHandler)

			req := httptest.NewRequest(method, "/api/test", nil)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusOK, rec.Code)
		})
	}
}

func TestPrometheusMiddleware_PassesThroughFlush(t *testing.T) {
	nextHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("data: x\n\n"))
		assert.NoError(t, http.NewResponseController(w).Flush())
	})

	rec := httptest.NewRecorder()
	PrometheusMiddleware(nextHandler).ServeHTTP(rec, httptest.NewRequest("GET", "/notifications/stream", nil))

	assert.True(t, rec.Flushed)
}

func TestPrometheusMiddleware_HijackUnsupported(t *testing.T) {
	nextHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _, err := w.(http.Hijacker).Hijack()
		assert.Error(t, err)
	})

	PrometheusMiddleware(nextHandler).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/ws", nil))
}

func TestPrometheusMiddleware_LabelsByRoutePattern(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("PATCH /notifications/{id}/read", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	handler := PrometheusMiddleware(mux)

	routed := httpRequestsTotal.WithLabelValues(http.MethodPatch, "/notifications/{id}/read", "204")
	unmatched := httpRequestsTotal.WithLabelValues(http.MethodGet, "unmatched", "404")
	beforeRouted, beforeUnmatched := testutil.ToFloat64(routed), testutil.ToFloat64(unmatched)

	for _, id := range []string{uuid.NewString(), uuid.NewString()} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/notifications/"+id+"/read", nil))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope/"+uuid.NewString(), nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	assert.Equal(t, beforeRouted+2, testutil.ToFloat64(routed))
	assert.Equal(t, beforeUnmatched+1, testutil.ToFloat64(unmatched))
}
