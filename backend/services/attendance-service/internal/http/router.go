package httpserver

import (
	"net/http"
	"sort"
	"strings"
)

// Routes groups handlers.
type Routes struct {
	ReportLocation http.HandlerFunc
	ForgetLocation http.HandlerFunc
	ClockIn        http.HandlerFunc
	ClockOut       http.HandlerFunc
	Status         http.HandlerFunc
	History        http.HandlerFunc
	ActiveSessions http.HandlerFunc
	Feed           http.HandlerFunc
	Health         http.HandlerFunc
	Register       http.HandlerFunc
	Login          http.HandlerFunc

	// Auth wraps every /attendance endpoint when set.
	Auth func(http.Handler) http.Handler
	// Supervisor additionally wraps supervisor-only endpoints.
	Supervisor func(http.Handler) http.Handler
}

// NewRouter registers endpoints.
func NewRouter(routes Routes) http.Handler {
	mux := http.NewServeMux()
	protect := func(h http.Handler) http.Handler {
		if routes.Auth == nil {
			return h
		}
		return routes.Auth(h)
	}
	supervise := func(h http.Handler) http.Handler {
		if routes.Supervisor != nil {
			h = routes.Supervisor(h)
		}
		return protect(h)
	}

	location := map[string]http.HandlerFunc{}
	if routes.ReportLocation != nil {
		location[http.MethodPost] = routes.ReportLocation
	}
	if routes.ForgetLocation != nil {
		location[http.MethodDelete] = routes.ForgetLocation
	}
	if len(location) > 0 {
		mux.Handle("/attendance/location", protect(methods(location)))
	}
	if routes.ClockIn != nil {
		mux.Handle("/attendance/clock-in", protect(method(http.MethodPost, routes.ClockIn)))
	}
	if routes.ClockOut != nil {
		mux.Handle("/attendance/clock-out", protect(method(http.MethodPost, routes.ClockOut)))
	}
	if routes.Status != nil {
		mux.Handle("/attendance/status", protect(method(http.MethodGet, routes.Status)))
	}
	if routes.History != nil {
		mux.Handle("/attendance/history", protect(method(http.MethodGet, routes.History)))
	}
	if routes.ActiveSessions != nil {
		mux.Handle("/attendance/active", supervise(method(http.MethodGet, routes.ActiveSessions)))
	}
	if routes.Feed != nil {
		mux.Handle("/attendance/feed", protect(method(http.MethodGet, routes.Feed)))
	}
	if routes.Register != nil {
		mux.Handle("/auth/register", method(http.MethodPost, routes.Register))
	}
	if routes.Login != nil {
		mux.Handle("/auth/login", method(http.MethodPost, routes.Login))
	}
	if routes.Health != nil {
		mux.Handle("/health", method(http.MethodGet, routes.Health))
	}
	return mux
}

func method(expected string, handler http.HandlerFunc) http.HandlerFunc {
	return methods(map[string]http.HandlerFunc{expected: handler})
}

func methods(handlers map[string]http.HandlerFunc) http.HandlerFunc {
	allowed := make([]string, 0, len(handlers))
	for m := range handlers {
		allowed = append(allowed, m)
	}
	sort.Strings(allowed)
	allow := strings.Join(allowed, ", ")

	return func(w http.ResponseWriter, r *http.Request) {
		handler, ok := handlers[r.Method]
		if !ok {
			w.Header().Set("Allow", allow)
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		handler(w, r)
	}
}
