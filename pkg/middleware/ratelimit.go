package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"quotebridge.com/pkg/common"
	"quotebridge.com/pkg/logger"
	"quotebridge.com/pkg/metrics"
	"quotebridge.com/pkg/ratelimit"
)

const CodeTooManyRequests = 4290

func RateLimit(store *ratelimit.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		key := c.ClientIP() + ":" + route

		if !store.Allow(key) {
			// 限流属于“可控拒绝”，不打堆栈
			logger.Warn(c, "http rate limited",
				zap.String("ip", c.ClientIP()),
				zap.String("route", route),
			)
			metrics.RateLimitBlockTotal.WithLabelValues(route).Inc()
			common.Fail(c, http.StatusTooManyRequests, CodeTooManyRequests, "too many requests")
			c.Abort()
			return
		}
		c.Next()
	}
}
