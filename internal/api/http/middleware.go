package apihttp

import (
	"log/slog"
	"net"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"showcase/catalogservice/internal/metrics"
)

// statusRecorder captures what a catalog handler wrote for the request log
// and the HTTP metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

func (rec *statusRecorder) Write(b []byte) (int, error) {
	n, err := rec.ResponseWriter.Write(b)
	rec.bytes += n
	return n, err
}

// observe records one metrics sample and one log line per request. Both are
// labelled by the route table so unknown paths collapse into a single label.
// Catalog requests also log the locale they were served for.
func (s *Server) observe(routes routeTable, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		elapsed := time.Since(start)

		label := routes.label(r.URL.Path)
		if r.URL.Path != "/metrics" {
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, label, strconv.Itoa(rec.status)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, label).Observe(elapsed.Seconds())
		}

		attrs := []slog.Attr{
			slog.String("method", r.Method),
			slog.String("route", label),
			slog.Int("status", rec.status),
			slog.Int("bytes", rec.bytes),
			slog.Int64("durationMs", elapsed.Milliseconds()),
			slog.String("clientIP", clientIP(r)),
		}
		if !routes.operational(r.URL.Path) {
			attrs = append(attrs, slog.String("locale", s.localeFrom(r).String()))
		}
		if label != r.URL.Path {
			attrs = append(attrs, slog.String("path", truncate(r.URL.Path, 120)))
		}
		if rawQuery := strings.TrimSpace(r.URL.RawQuery); rawQuery != "" {
			attrs = append(attrs, slog.String("query", truncate(rawQuery, 180)))
		}
		s.logger.LogAttrs(r.Context(), requestLogLevel(routes, r.URL.Path, rec.status), "http request", attrs...)
	})
}

func requestLogLevel(routes routeTable, path string, status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	case routes.operational(path):
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

// throttle applies one token bucket to the catalog routes. Operational routes
// are never throttled so health checks and scrapes keep working under load.
func (s *Server) throttle(routes routeTable, next http.Handler) http.Handler {
	bucket := rate.NewLimiter(rate.Limit(s.rateRPS), s.rateBurst)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if routes.operational(r.URL.Path) || bucket.Allow() {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusTooManyRequests, "rate_limited", "too many catalog requests")
	})
}

func recoverPanics(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			recovered := recover()
			if recovered == nil {
				return
			}
			logger.Error("catalog handler panic",
				slog.Any("error", recovered),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("stack", string(debug.Stack())),
			)
			writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		}()
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	if forwarded, _, _ := strings.Cut(r.Header.Get("X-Forwarded-For"), ","); strings.TrimSpace(forwarded) != "" {
		return strings.TrimSpace(forwarded)
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}

func truncate(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	if limit <= 3 {
		return value[:limit]
	}
	return value[:limit-3] + "..."
}
