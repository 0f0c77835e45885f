// Package compression negotiates Brotli or gzip response encoding.
package compression

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/andybalholm/brotli"
)

const (
	encodingBrotli = "br"
	encodingGzip   = "gzip"
)

// Config controls response compression behavior.
type Config struct {
	Enabled     bool
	GzipLevel   int
	BrotliLevel int
	// MinSize is the smallest body, in bytes, worth compressing. Smaller
	// responses are sent as they are.
	MinSize                  int
	CompressibleContentTypes []string
}

// DefaultConfig compresses JSON and text bodies of 1KiB and more.
func DefaultConfig() Config {
	return Config{
		Enabled:     true,
		GzipLevel:   gzip.DefaultCompression,
		BrotliLevel: 4,
		MinSize:     1024,
		CompressibleContentTypes: []string{
			"application/json",
			"text/",
		},
	}
}

// Middleware compresses responses according to Accept-Encoding. Brotli wins
// over gzip at equal quality.
func Middleware(cfg Config) func(http.Handler) http.Handler {
	def := DefaultConfig()
	if cfg.GzipLevel == 0 {
		cfg.GzipLevel = def.GzipLevel
	}
	if cfg.BrotliLevel <= 0 {
		cfg.BrotliLevel = def.BrotliLevel
	}
	if cfg.MinSize < 0 {
		cfg.MinSize = 0
	}
	if len(cfg.CompressibleContentTypes) == 0 {
		cfg.CompressibleContentTypes = def.CompressibleContentTypes
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Enabled || r.Method == http.MethodHead || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}
			encoding := negotiateEncoding(r.Header.Get("Accept-Encoding"))
			if encoding == "" {
				next.ServeHTTP(w, r)
				return
			}

			appendVary(w.Header(), "Accept-Encoding")
			cw := &compressWriter{base: w, encoding: encoding, cfg: cfg}
			defer func() { _ = cw.Close() }()
			next.ServeHTTP(cw, r)
		})
	}
}

func negotiateEncoding(acceptEncoding string) string {
	if acceptEncoding == "" {
		return ""
	}
	qBr, hasBr := qualityForEncoding(acceptEncoding, encodingBrotli)
	qGzip, hasGzip := qualityForEncoding(acceptEncoding, encodingGzip)
	if qAny, hasAny := qualityForEncoding(acceptEncoding, "*"); hasAny {
		if !hasBr {
			qBr, hasBr = qAny, true
		}
		if !hasGzip {
			qGzip, hasGzip = qAny, true
		}
	}

	best, bestQ := "", 0.0
	if hasBr && qBr > 0 {
		best, bestQ = encodingBrotli, qBr
	}
	if hasGzip && qGzip > bestQ {
		best = encodingGzip
	}
	return best
}

func qualityForEncoding(acceptEncoding, encoding string) (float64, bool) {
	for _, part := range strings.Split(acceptEncoding, ",") {
		sections := strings.Split(strings.TrimSpace(part), ";")
		if !strings.EqualFold(strings.TrimSpace(sections[0]), encoding) {
			continue
		}
		q := 1.0
		for _, section := range sections[1:] {
			kv := strings.SplitN(strings.TrimSpace(section), "=", 2)
			if len(kv) != 2 || !strings.EqualFold(kv[0], "q") {
				continue
			}
			if parsed, err := strconv.ParseFloat(kv[1], 64); err == nil {
				q = parsed
			}
		}
		return q, true
	}
	return 0, false
}

// compressWriter buffers up to MinSize bytes before deciding whether to
// compress, so the status line goes out only once the decision is made.
type compressWriter struct {
	base     http.ResponseWriter
	encoding string
	cfg      Config

	status  int
	decided bool
	out     io.WriteCloser
	buffer  bytes.Buffer
}

func (w *compressWriter) Header() http.Header { return w.base.Header() }

func (w *compressWriter) WriteHeader(code int) {
	if w.status != 0 {
		return
	}
	w.status = code
	if noBodyStatus(code) {
		w.decided = true
		w.base.WriteHeader(code)
	}
}

func (w *compressWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.WriteHeader(http.StatusOK)
	}
	if w.decided {
		if w.out != nil {
			return w.out.Write(p)
		}
		return w.base.Write(p)
	}

	w.buffer.Write(p)
	if w.buffer.Len() < w.cfg.MinSize {
		return len(p), nil
	}
	if err := w.decide(); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *compressWriter) decide() error {
	w.decided = true
	h := w.Header()
	contentType := strings.ToLower(h.Get("Content-Type"))
	if w.buffer.Len() < w.cfg.MinSize || h.Get("Content-Encoding") != "" || !compressible(contentType, w.cfg.CompressibleContentTypes) {
		w.base.WriteHeader(w.status)
		_, err := w.base.Write(w.buffer.Bytes())
		w.buffer.Reset()
		return err
	}

	h.Del("Content-Length")
	h.Set("Content-Encoding", w.encoding)
	w.base.WriteHeader(w.status)

	switch w.encoding {
	case encodingBrotli:
		w.out = brotli.NewWriterLevel(w.base, w.cfg.BrotliLevel)
	default:
		gz, err := gzip.NewWriterLevel(w.base, w.cfg.GzipLevel)
		if err != nil {
			return fmt.Errorf("create gzip writer: %w", err)
		}
		w.out = gz
	}
	_, err := w.out.Write(w.buffer.Bytes())
	w.buffer.Reset()
	return err
}

// Close flushes a buffered body and finishes the compressed stream.
func (w *compressWriter) Close() error {
	if w.status == 0 {
		return nil
	}
	if !w.decided {
		if err := w.decide(); err != nil {
			return err
		}
	}
	if w.out != nil {
		return w.out.Close()
	}
	return nil
}

// Flush sends buffered data to the client immediately.
func (w *compressWriter) Flush() {
	if !w.decided && w.status != 0 {
		_ = w.decide()
	}
	if f, ok := w.out.(interface{ Flush() error }); ok {
		_ = f.Flush()
	}
	if f, ok := w.base.(http.Flusher); ok {
		f.Flush()
	}
}

func noBodyStatus(code int) bool {
	return code == http.StatusNoContent || code == http.StatusNotModified || (code >= 100 && code < 200)
}

func compressible(contentType string, allow []string) bool {
	if contentType == "" {
		return false
	}
	for _, prefix := range allow {
		if strings.HasPrefix(contentType, strings.ToLower(prefix)) {
			return true
		}
	}
	return false
}

func appendVary(header http.Header, value string) {
	current := header.Get("Vary")
	if current == "" {
		header.Set("Vary", value)
		return
	}
	for _, part := range strings.Split(current, ",") {
		if strings.EqualFold(strings.TrimSpace(part), value) {
			return
		}
	}
	header.Set("Vary", current+", "+value)
}
