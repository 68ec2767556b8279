package utils

import (
	"net/http"
	"reflect"

	"github.com/go-chi/chi/v5"
)

// GetRoutePattern gets the route pattern an incoming request resolved to, so
// metrics are labeled per route and not per raw URL.
func GetRoutePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return "undefined"
	}
	if pattern := rctx.RoutePattern(); pattern != "" {
		return pattern
	}

	// The pattern is only filled in after routing completes; for requests
	// short-circuited by middleware, replay the match against the router.
	tctx := chi.NewRouteContext()
	if rctx.Routes == nil || !rctx.Routes.Match(tctx, r.Method, r.URL.Path) {
		return "undefined"
	}
	return tctx.RoutePattern()
}

// UnwrapInterfaceToPointer unwraps an interface value to a pointer of the
// given type, or nil if the underlying type doesn't match.
func UnwrapInterfaceToPointer[T any](i interface{}) *T {
	if t, ok := i.(*T); ok {
		return t
	}
	return nil
}

// IsEmpty reports whether v is its type's zero value.
func IsEmpty[T any](v T) bool {
	return reflect.DeepEqual(v, *new(T))
}

func StringPtr(s string) *string {
	return &s
}
