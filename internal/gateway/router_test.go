package gateway

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func tag(name string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Add("X-Chain", name)
			next.ServeHTTP(w, r)
		})
	}
}

func serve(r *Router, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.Mux().ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestRouter_HandleAndHandleFunc(t *testing.T) {
	router := NewRouter()

	router.Handle("GET /healthz", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	router.HandleFunc("GET /ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	assert.Equal(t, http.StatusNoContent, serve(router, http.MethodGet, "/healthz").Code)
	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/ping").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, serve(router, http.MethodPost, "/ping").Code)
}

func TestRouter_With(t *testing.T) {
	root := NewRouter()
	authed := root.With(tag("a"))
	admin := authed.With(tag("b"))

	ok := func(w http.ResponseWriter, r *http.Request) {}
	root.HandleFunc("GET /open", ok)
	authed.HandleFunc("GET /user", ok)
	admin.HandleFunc("GET /admin", ok)

	assert.Empty(t, serve(root, http.MethodGet, "/open").Header().Values("X-Chain"))
	assert.Equal(t, []string{"a"}, serve(root, http.MethodGet, "/user").Header().Values("X-Chain"))
	assert.Equal(t, "a,b", strings.Join(serve(root, http.MethodGet, "/admin").Header().Values("X-Chain"), ","))

	assert.Same(t, root.Mux(), admin.Mux())
}
