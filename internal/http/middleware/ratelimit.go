package middleware

import (
	"net/http"
	"strconv"
	"time"

	echo "github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

// RateLimitConfig sizes the per-tenant fixed window kept in redis.
type RateLimitConfig struct {
	Redis          *redis.Client
	DefaultRPS     int              // sustained requests per second per tenant
	Burst          int              // requests allowed back to back; <= DefaultRPS means none extra
	KeyPrefix      string           // e.g. "rl:tenant:"
	Window         time.Duration    // window used when there is no burst, usually 1s
	RetryAfterHint bool             // set Retry-After header when limited
	Now            func() time.Time // nil means time.Now
}

// limits returns how many requests one window admits and how long the window is. A
// burst stretches the window so the average stays at DefaultRPS.
func (c RateLimitConfig) limits() (int, time.Duration) {
	window := c.Window
	if window <= 0 {
		window = time.Second
	}
	if c.Burst <= c.DefaultRPS || c.DefaultRPS <= 0 {
		return c.DefaultRPS, window
	}
	return c.Burst, time.Duration(c.Burst) * time.Second / time.Duration(c.DefaultRPS)
}

// windowKey names the counter for tenantID's window containing now, and how much of
// that window is left.
func windowKey(prefix string, tenantID int64, now time.Time, window time.Duration) (string, time.Duration) {
	bucket := now.UnixNano() / int64(window)
	remain := window - time.Duration(now.UnixNano()%int64(window))
	return prefix + strconv.FormatInt(tenantID, 10) + ":" + strconv.FormatInt(bucket, 10), remain
}

// RateLimitMiddleware sheds load per tenant. It runs after the auth middlewares and
// lets the request through when redis is missing or unreachable. Replay protection
// keeps its own state and is not affected by this limit.
func RateLimitMiddleware(cfg RateLimitConfig) echo.MiddlewareFunc {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "rl:tenant:"
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	limit, window := cfg.limits()

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tenantID, ok := c.Get(ctxTenantID).(int64)
			if !ok || tenantID <= 0 || limit <= 0 || cfg.Redis == nil {
				return next(c)
			}

			ctx := c.Request().Context()
			key, remain := windowKey(cfg.KeyPrefix, tenantID, cfg.Now(), window)

			pipe := cfg.Redis.Pipeline()
			cnt := pipe.Incr(ctx, key)
			pipe.Expire(ctx, key, window*2)
			if _, err := pipe.Exec(ctx); err != nil {
				c.Logger().Warnf("rate limit store unavailable: %v", err)
				return next(c)
			}

			if cnt.Val() > int64(limit) {
				if cfg.RetryAfterHint {
					secs := int((remain + time.Second - 1) / time.Second)
					c.Response().Header().Set("Retry-After", strconv.Itoa(secs))
				}
				return c.JSON(http.StatusTooManyRequests, map[string]string{"error": "rate_limited"})
			}
			return next(c)
		}
	}
}
