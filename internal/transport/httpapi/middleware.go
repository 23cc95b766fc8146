package httpapi

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"
)

// instrument пишет access-лог и метрики по шаблону маршрута.
func (h *handler) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		elapsed := time.Since(start)
		h.metrics.Observe(r.Method, route, status, elapsed)

		entry := h.logger.WithFields(log.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"route":       route,
			"status":      status,
			"bytes":       ww.BytesWritten(),
			"duration_ms": elapsed.Milliseconds(),
			"request_id":  middleware.GetReqID(r.Context()),
		})
		if status >= http.StatusInternalServerError {
			entry.Warn("http request")
			return
		}
		entry.Debug("http request")
	})
}

// recoverer превращает панику обработчика в 500 с общим сообщением.
func (h *handler) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			h.logger.WithFields(log.Fields{
				"panic":      describe(rec),
				"path":       r.URL.Path,
				"request_id": middleware.GetReqID(r.Context()),
				"stack":      string(debug.Stack()),
			}).Error("panic recovered")
			respondError(w, http.StatusInternalServerError, "internal server error")
		}()
		next.ServeHTTP(w, r)
	})
}
