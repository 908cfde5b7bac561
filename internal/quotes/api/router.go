package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	ginprom "github.com/zsais/go-gin-prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/time/rate"
	"quotebridge.com/pkg/metrics"
	"quotebridge.com/pkg/middleware"
	"quotebridge.com/pkg/ratelimit"
)

type Options struct {
	ServiceName string
	Addr        string
	// 每个 IP+路由 的限流；RPS<=0 表示不限流
	RPS   float64
	Burst int
	Trace bool
}

// NewRouter 组装 gin engine。ctx 结束时限流器的清理协程退出
func NewRouter(ctx context.Context, opt Options, h *Handler) *gin.Engine {
	r := gin.New()
	// 监控：/metrics
	p := ginprom.NewPrometheus(metrics.Namespace)
	p.Use(r)

	mws := make([]gin.HandlerFunc, 0, 5)
	if opt.Trace {
		mws = append(mws, otelgin.Middleware(opt.ServiceName))
	}
	mws = append(mws,
		middleware.ReqId(),
		cors.Default(),
		middleware.Recover(),
	)
	if opt.RPS > 0 {
		burst := opt.Burst
		if burst <= 0 {
			burst = int(opt.RPS) * 2
		}
		store := ratelimit.NewStore(rate.Limit(opt.RPS), burst, 10*time.Minute)
		store.StartJanitor(ctx, time.Minute)
		mws = append(mws, middleware.RateLimit(store))
	}
	r.Use(mws...)

	r.GET("/health", h.Health)
	r.GET("/tick/:symbol", h.Tick)
	return r
}

func NewServer(ctx context.Context, opt Options, h *Handler) *http.Server {
	return &http.Server{
		Addr:           opt.Addr,
		Handler:        NewRouter(ctx, opt, h),
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}
}
