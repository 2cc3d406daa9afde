package handler

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/rl1809/storefront/internal/logger"
)

type RouterConfig struct {
	ServiceName string
	Tracing     bool
	Debug       bool
}

func NewRouter(h *HTTPHandler, log *zap.Logger, cfg RouterConfig) *gin.Engine {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Tracing {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(
		logger.RequestID(),
		logger.GinMiddleware(log.Named("http")),
		logger.Recovery(log),
	)

	h.Register(r)
	return r
}
