package gateway

import (
	"net/http"
)

// Middleware decorates a handler.
type Middleware func(http.Handler) http.Handler

// Router wraps http.ServeMux. Routes registered through a Router pass through
// its middleware chain, outermost first.
type Router struct {
	mux   *http.ServeMux
	chain []Middleware
}

func NewRouter() *Router {
	return &Router{
		mux: http.NewServeMux(),
	}
}

func (r *Router) Mux() *http.ServeMux {
	return r.mux
}

// With returns a router sharing the same mux whose routes are additionally
// wrapped by mw.
func (r *Router) With(mw ...Middleware) *Router {
	chain := make([]Middleware, 0, len(r.chain)+len(mw))
	chain = append(chain, r.chain...)
	chain = append(chain, mw...)
	return &Router{mux: r.mux, chain: chain}
}

func (r *Router) Handle(pattern string, handler http.Handler) {
	for i := len(r.chain) - 1; i >= 0; i-- {
		handler = r.chain[i](handler)
	}
	r.mux.Handle(pattern, handler)
}

func (r *Router) HandleFunc(pattern string, handler http.HandlerFunc) {
	r.Handle(pattern, handler)
}
