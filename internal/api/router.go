// Package api exposes the library and its query layer over HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"librag/internal/logging"
	"librag/internal/metrics"
)

// RequestIDHeader carries the per-request correlation id.
const RequestIDHeader = "X-Request-ID"

type ctxKey struct{}

// RequestID returns the id assigned to the request carried by ctx.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// requestIDMiddleware reuses an inbound X-Request-ID or assigns a new one.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.Must(uuid.NewV7()).String()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// loggingMiddleware logs request details and latency.
func loggingMiddleware(logger *slog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			logger.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"took", time.Since(start),
				"request_id", RequestID(r.Context()),
			)
		})
	}
}

// NewRouter creates and configures the HTTP router.
func NewRouter(h *Handler, logger *slog.Logger) *mux.Router {
	logger = logging.Default(logger).With("component", "http")
	r := mux.NewRouter()

	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))

	r.HandleFunc("/books", h.HandleListBooks).Methods("GET")
	r.HandleFunc("/books", h.HandleAddBook).Methods("POST")
	r.HandleFunc("/books/{id:[0-9]+}", h.HandleGetBook).Methods("GET")
	r.HandleFunc("/books/{id:[0-9]+}", h.HandleEditBook).Methods("PATCH")
	r.HandleFunc("/books/{id:[0-9]+}/borrow", h.HandleBorrow).Methods("POST")
	r.HandleFunc("/books/{id:[0-9]+}/return", h.HandleReturn).Methods("POST")
	r.HandleFunc("/transactions", h.HandleListTransactions).Methods("GET")
	r.HandleFunc("/transactions.csv", h.HandleExportTransactions).Methods("GET")
	r.HandleFunc("/index/refresh", h.HandleRefresh).Methods("POST")
	r.HandleFunc("/query/context", h.HandleContext).Methods("POST")
	r.HandleFunc("/query/answer", h.HandleAnswer).Methods("POST")
	r.HandleFunc("/health", h.HandleHealth).Methods("GET")
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})).Methods("GET")

	return r
}
