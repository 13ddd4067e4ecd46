package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/antarex-ai/dashboard/logger"
	"github.com/antarex-ai/dashboard/util/metrics"
	"github.com/antarex-ai/dashboard/web/entity"
	"github.com/antarex-ai/dashboard/web/locale"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
)

// RateLimitConfig configures rate limiting.
type RateLimitConfig struct {
	// Requests allowed per key within Window. Zero disables the limit.
	Requests int
	Window   time.Duration
	KeyFunc  func(c *gin.Context) string
}

// DefaultRateLimitConfig limits by client address.
func DefaultRateLimitConfig(requests int) RateLimitConfig {
	return RateLimitConfig{
		Requests: requests,
		Window:   time.Minute,
		KeyFunc:  RemoteIP,
	}
}

// RateLimitMiddleware counts requests per key in fixed windows and answers
// 429 once a key is over its budget. Counters live in process memory.
func RateLimitMiddleware(config RateLimitConfig) gin.HandlerFunc {
	if config.Requests <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	if config.Window <= 0 {
		config.Window = time.Minute
	}
	if config.KeyFunc == nil {
		config.KeyFunc = RemoteIP
	}
	counters := cache.New(config.Window, 2*config.Window)

	return func(c *gin.Context) {
		key := config.KeyFunc(c) + ":" + c.Request.URL.Path

		count := 1
		if err := counters.Add(key, 1, config.Window); err != nil {
			n, err := counters.IncrementInt(key, 1)
			if err != nil {
				// Expired between Add and Increment; start a new window.
				counters.Set(key, 1, config.Window)
				n = 1
			}
			count = n
		}

		if count > config.Requests {
			if count == config.Requests+1 {
				logger.Warningf("rate limit exceeded for %s on %s", config.KeyFunc(c), c.Request.URL.Path)
			}
			metrics.RateLimited.WithLabelValues(c.FullPath()).Inc()
			c.Header("Retry-After", strconv.Itoa(int(config.Window.Seconds())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, entity.Msg{Msg: locale.I18n(c, "errors.rateLimited")})
			return
		}
		c.Next()
	}
}
