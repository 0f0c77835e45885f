// Package logging writes one structured access-log entry per request.
package logging

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/nimburion/docroute/pkg/observability/logger"
)

// Log field names.
const (
	FieldRequestID  = "request_id"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatus     = "status"
	FieldDurationMS = "duration_ms"
	FieldRemoteAddr = "remote_addr"
	FieldUserAgent  = "http_user_agent"
)

// requestIDHeader is read from the response first, where the dispatcher
// echoes the ID it settled on, then from the request.
const requestIDHeader = "X-Request-ID"

// Config configures request logging middleware behavior.
type Config struct {
	// LogStart adds a "request started" entry before the handler runs.
	LogStart bool
	// ExcludedPathPrefixes are not logged at all.
	ExcludedPathPrefixes []string
}

// DefaultConfig logs every request on completion only.
func DefaultConfig() Config {
	return Config{}
}

// Logging creates middleware with DefaultConfig.
func Logging(log logger.Logger) func(http.Handler) http.Handler {
	return WithConfig(log, DefaultConfig())
}

// WithConfig creates request logging middleware with custom configuration.
// 5xx answers are logged at error level, everything else at info.
func WithConfig(log logger.Logger, cfg Config) func(http.Handler) http.Handler {
	if log == nil {
		log = logger.Nop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.excluded(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			if cfg.LogStart {
				log.Info("request started", FieldMethod, r.Method, FieldPath, r.URL.Path)
			}

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			fields := []any{
				FieldMethod, r.Method,
				FieldPath, r.URL.Path,
				FieldStatus, rec.status,
				FieldDurationMS, time.Since(start).Milliseconds(),
				FieldRemoteAddr, remoteHost(r.RemoteAddr),
			}
			if id := requestID(w, r); id != "" {
				fields = append(fields, FieldRequestID, id)
			}
			if ua := r.UserAgent(); ua != "" {
				fields = append(fields, FieldUserAgent, ua)
			}

			if rec.status >= http.StatusInternalServerError {
				log.Error("request failed", fields...)
				return
			}
			log.Info("request completed", fields...)
		})
	}
}

func (c Config) excluded(path string) bool {
	for _, prefix := range c.ExcludedPathPrefixes {
		if prefix != "" && strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func requestID(w http.ResponseWriter, r *http.Request) string {
	if id := w.Header().Get(requestIDHeader); id != "" {
		return id
	}
	if id := r.Header.Get(requestIDHeader); id != "" {
		return id
	}
	return logger.RequestIDFromContext(r.Context())
}

func remoteHost(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (s *statusRecorder) WriteHeader(code int) {
	if !s.wroteHeader {
		s.status = code
		s.wroteHeader = true
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	s.wroteHeader = true
	return s.ResponseWriter.Write(b)
}
