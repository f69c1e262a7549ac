package ratelimit

import (
	"net/http"
	"sync"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Config holds the per-user rate limit settings for an endpoint group.
type Config struct {
	// Rate is the sustained allowance in requests per second.
	Rate rate.Limit
	// Burst is the number of requests allowed to exceed the sustained rate.
	Burst  int
	Logger *zap.Logger
}

// limiterSet keeps one token bucket per key. Entries live for the process
// lifetime; the key space is bounded by the authenticated user population.
type limiterSet struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

func (s *limiterSet) get(key string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	limiter, ok := s.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(s.limit, s.burst)
		s.limiters[key] = limiter
	}
	return limiter
}

// PerUser limits requests per authenticated user. Requests without an
// authenticated user fall back to the client address, so the public surface
// is still bounded.
func PerUser(config Config) echo.MiddlewareFunc {
	set := &limiterSet{
		limiters: make(map[string]*rate.Limiter),
		limit:    config.Rate,
		burst:    config.Burst,
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key, _ := c.Get("user_id").(string)
			if key == "" {
				key = c.RealIP()
			}

			if !set.get(key).Allow() {
				config.Logger.Warn("Rate limit exceeded",
					zap.String("key", key),
					zap.String("path", c.Request().URL.Path))
				return c.JSON(http.StatusTooManyRequests, echo.Map{
					"error": "Too many requests, slow down",
					"code":  "RATE_LIMITED",
				})
			}

			return next(c)
		}
	}
}
