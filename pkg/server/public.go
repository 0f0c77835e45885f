package server

import (
	"net/http"

	"github.com/nimburion/docroute/pkg/config"
	"github.com/nimburion/docroute/pkg/middleware/compression"
	"github.com/nimburion/docroute/pkg/middleware/logging"
	"github.com/nimburion/docroute/pkg/middleware/recovery"
	"github.com/nimburion/docroute/pkg/middleware/requestsize"
	"github.com/nimburion/docroute/pkg/observability/logger"
)

// NewPublicServer serves application traffic through h, usually the
// dispatcher. The stack is, outermost first: access logging, response
// compression, the body size limit, then panic recovery.
func NewPublicServer(cfg config.HTTPConfig, h http.Handler, log logger.Logger) *Server {
	handler := recovery.Recovery(log)(h)
	handler = requestsize.Middleware(cfg.MaxBodyBytes)(handler)
	if cfg.Compression {
		handler = compression.Middleware(compression.DefaultConfig())(handler)
	}
	handler = logging.Logging(log)(handler)

	return NewServer("public", Config{
		Port:            cfg.Port,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		IdleTimeout:     cfg.IdleTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, handler, log)
}
