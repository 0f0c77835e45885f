// Package cors writes the fixed CORS preflight answer used by the dispatcher
// and offers the same behaviour as net/http middleware.
package cors

import (
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Header names.
const (
	HeaderAllowOrigin  = "Access-Control-Allow-Origin"
	HeaderAllowMethods = "Access-Control-Allow-Methods"
	HeaderMaxAge       = "Access-Control-Max-Age"
	HeaderAllowHeaders = "Access-Control-Allow-Headers"
)

// Config configures the preflight answer.
type Config struct {
	AllowOrigin               string
	AllowMethods              []string
	MaxAge                    time.Duration
	OptionsResponseStatusCode int
}

// DefaultConfig allows every origin, the five dispatchable verbs and a
// one-week cache.
func DefaultConfig() Config {
	return Config{
		AllowOrigin:               "*",
		AllowMethods:              []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		MaxAge:                    7 * 24 * time.Hour,
		OptionsResponseStatusCode: http.StatusOK,
	}
}

func normalize(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.AllowOrigin == "" {
		cfg.AllowOrigin = defaults.AllowOrigin
	}
	if cfg.AllowMethods == nil {
		cfg.AllowMethods = defaults.AllowMethods
	}
	if cfg.MaxAge == 0 {
		cfg.MaxAge = defaults.MaxAge
	}
	if cfg.OptionsResponseStatusCode == 0 {
		cfg.OptionsResponseStatusCode = defaults.OptionsResponseStatusCode
	}
	methods := make([]string, len(cfg.AllowMethods))
	for i, m := range cfg.AllowMethods {
		methods[i] = strings.ToUpper(strings.TrimSpace(m))
	}
	cfg.AllowMethods = methods
	return cfg
}

// WritePreflight answers a preflight request: it sets the four CORS headers,
// echoing the request's header names, and writes the status with no body.
func WritePreflight(w http.ResponseWriter, r *http.Request, cfg Config) {
	cfg = normalize(cfg)
	h := w.Header()
	h.Set(HeaderAllowOrigin, cfg.AllowOrigin)
	h.Set(HeaderAllowMethods, strings.Join(cfg.AllowMethods, ", "))
	h.Set(HeaderMaxAge, formatMaxAge(cfg.MaxAge))
	h.Set(HeaderAllowHeaders, AllowHeaders(r))
	w.WriteHeader(cfg.OptionsResponseStatusCode)
}

// AllowHeaders lists the request's header names, sorted, followed by
// Access-Control-Allow-Origin.
func AllowHeaders(r *http.Request) string {
	names := make([]string, 0, len(r.Header)+2)
	if r.Host != "" {
		names = append(names, "Host")
	}
	for name := range r.Header {
		names = append(names, name)
	}
	sort.Strings(names)
	names = append(names, HeaderAllowOrigin)
	return strings.Join(names, ", ")
}

// Middleware sets Access-Control-Allow-Origin on every response and answers
// OPTIONS and HEAD requests itself.
func Middleware(cfg Config) func(http.Handler) http.Handler {
	cfg = normalize(cfg)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if IsPreflight(r.Method) {
				WritePreflight(w, r, cfg)
				return
			}
			w.Header().Set(HeaderAllowOrigin, cfg.AllowOrigin)
			next.ServeHTTP(w, r)
		})
	}
}

// IsPreflight reports whether method is answered with the preflight headers.
func IsPreflight(method string) bool {
	return method == http.MethodOptions || method == http.MethodHead
}

func formatMaxAge(duration time.Duration) string {
	seconds := int(duration / time.Second)
	if seconds < 0 {
		return "0"
	}
	return strconv.Itoa(seconds)
}
