package server

import (
	"net/http"
	"slices"
)

// Chain wraps h with mw. The first middleware is the outermost.
func Chain(h http.Handler, mw ...Middleware) http.Handler {
	for _, m := range slices.Backward(mw) {
		h = m(h)
	}
	return h
}

// NewCallbackMux serves handler on each of its routes for GET requests.
//
// Other methods on those paths get 405 from [http.ServeMux]; unknown paths get 404.
func NewCallbackMux(handler Handler, mw ...Middleware) *http.ServeMux {
	mux := http.NewServeMux()
	wrapped := Chain(handler, mw...)
	for _, route := range handler.Routes() {
		mux.Handle(http.MethodGet+" "+route, wrapped)
	}
	return mux
}
