package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/richardliu001/board-service/internal/config"
	"github.com/richardliu001/board-service/internal/push"
	"github.com/richardliu001/board-service/internal/registry"
	"github.com/richardliu001/board-service/internal/service"
	"go.uber.org/zap"
)

// Options are the router settings that come from configuration.
type Options struct {
	RateLimit config.RateLimitConfig
	// Gateway is the URL processors use to reach this server's push gateway.
	Gateway string
	// RegistryRefresh is how often open connections renew their registry TTL.
	RegistryRefresh time.Duration
}

// NewRouter wires the intake API behind the rate limiter. The websocket and
// gateway routes are not rate limited.
func NewRouter(svc *service.BoardService, reg registry.Registry, hub *push.Hub, opts Options, log *zap.SugaredLogger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware(log))

	v1 := r.Group("/v1", RateLimitMiddleware(opts.RateLimit.RPS, opts.RateLimit.Burst))
	RegisterHandlers(v1, svc, log)
	RegisterPushHandlers(r, PushDeps{
		Service:  svc,
		Registry: reg,
		Hub:      hub,
		Log:      log,
		Gateway:  opts.Gateway,
		Refresh:  opts.RegistryRefresh,
	})
	return r
}
