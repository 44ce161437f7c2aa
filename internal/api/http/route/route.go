// Package route names HTTP requests by the path template of the route they
// target, so that logs and spans never carry path parameters such as tokens.
package route

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
)

type nameKey struct{}

var errFound = errors.New("route found")

// Middleware resolves the name of every request against router once and
// stores it on the request context for Name.
func Middleware(router *mux.Router) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), nameKey{}, resolve(router, r))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Name returns the path template of the route r targets, ignoring the method.
// Requests that match no route are named by their raw path.
func Name(r *http.Request) string {
	if name, ok := r.Context().Value(nameKey{}).(string); ok {
		return name
	}
	if tmpl, ok := template(mux.CurrentRoute(r)); ok {
		return tmpl
	}
	return r.URL.Path
}

func resolve(router *mux.Router, r *http.Request) string {
	name := r.URL.Path
	_ = router.Walk(func(rt *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		var match mux.RouteMatch
		if !rt.Match(r, &match) && !errors.Is(match.MatchErr, mux.ErrMethodMismatch) {
			return nil
		}
		if tmpl, ok := template(rt); ok {
			name = tmpl
			return errFound
		}
		return nil
	})
	return name
}

func template(rt *mux.Route) (string, bool) {
	if rt == nil {
		return "", false
	}
	tmpl, err := rt.GetPathTemplate()
	return tmpl, err == nil
}
