// v1
// internal/httpserver/router.go
package httpserver

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/swapsCAPS/bme680-exporter/internal/logging"
)

// Probe paths. Every other path, with any method, reaches the exposer.
const (
	PathLive  = "/healthz"
	PathReady = "/readyz"
)

// NewRouter wires the probes and the catch-all exposer route.
func NewRouter(health *HealthState, exposer http.Handler) *mux.Router {
	r := mux.NewRouter()
	r.Handle(PathLive, methodGuard(http.MethodGet, healthLiveHandler()))
	r.Handle(PathReady, methodGuard(http.MethodGet, healthReadyHandler(health)))
	r.PathPrefix("/").Handler(exposer)
	return r
}

// WrapWithLogging adds a combined-format access log, which carries the
// client address, and converts handler panics into 500 responses.
func WrapWithLogging(logger *slog.Logger, next http.Handler) http.Handler {
	recovery := handlers.RecoveryHandler(
		handlers.RecoveryLogger(slog.NewLogLogger(logger.Handler(), slog.LevelError)),
		handlers.PrintRecoveryStack(false),
	)
	access := logging.Writer(logger.With(slog.String("component", "http")), slog.LevelInfo, "http_request")
	return handlers.CombinedLoggingHandler(access, recovery(next))
}

func healthLiveHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
}

func healthReadyHandler(health *HealthState) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if !health.Ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("NOT_READY"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
}

func methodGuard(method string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method && r.Method != http.MethodHead {
			w.Header().Set("Allow", method)
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.WriteHeader(http.StatusMethodNotAllowed)
			_, _ = w.Write([]byte("method not allowed"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
