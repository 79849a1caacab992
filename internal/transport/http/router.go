package http

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/emivaldigle/plate-recon-rp/internal/config"
)

func NewRouter(h Handlers, rl config.RateLimitConfig, log *zap.SugaredLogger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware(log))
	r.Use(RateLimitMiddleware(rl.RPS, rl.Burst))
	RegisterHandlers(r, h)
	return r
}
