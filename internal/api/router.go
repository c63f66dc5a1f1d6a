package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/stockcast/internal/daemon"
	"github.com/wonny/stockcast/pkg/logger"
)

// Pinger checks a backing store (database pool, redis)
type Pinger interface {
	Ping(ctx context.Context) error
}

// StatusProvider exposes the control loop state
type StatusProvider interface {
	Snapshot() daemon.Snapshot
}

// Deps are the handlers' collaborators; nil members disable their endpoint
type Deps struct {
	DB      Pinger
	Cache   Pinger // redis 장애는 degraded 아님 (cache 없이 동작)
	Status  StatusProvider
	Metrics http.Handler
}

// NewRouter creates and configures the HTTP router
// ⭐ SSOT: 라우팅 설정은 이 함수에서만
func NewRouter(deps Deps, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", healthCheckHandler(deps.DB, deps.Cache)).Methods("GET")

	if deps.Status != nil {
		r.HandleFunc("/status", statusHandler(deps.Status)).Methods("GET")
	}
	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics).Methods("GET")
	}

	// Apply middleware
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// healthCheckHandler returns server health status
func healthCheckHandler(db, cache Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := map[string]interface{}{
			"status":  "ok",
			"service": "stockcast",
		}
		code := http.StatusOK

		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
			defer cancel()
			if err := db.Ping(ctx); err != nil {
				body["status"] = "degraded"
				body["database"] = err.Error()
				code = http.StatusServiceUnavailable
			} else {
				body["database"] = "ok"
			}
		}

		if cache != nil {
			ctx, cancel := context.WithTimeout(r.Context(), time.Second)
			defer cancel()
			if err := cache.Ping(ctx); err != nil {
				body["cache"] = "unavailable: " + err.Error()
			} else {
				body["cache"] = "ok"
			}
		}

		writeJSON(w, code, body)
	}
}

// statusHandler returns the daemon snapshot
func statusHandler(p StatusProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, p.Snapshot())
	}
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Call next handler
			next.ServeHTTP(w, r)

			// Log request
			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					writeJSON(w, http.StatusInternalServerError, map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
