package middleware

import (
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"
)

const (
	limiterCacheSize = 4096
	limiterIdleTTL   = 10 * time.Minute
)

// limiterSet hands out one token bucket per client key. An entry expires only
// after idleTTL without requests; every lookup pushes its expiry forward.
type limiterSet struct {
	mu       sync.Mutex
	limiters *expirable.LRU[string, *rate.Limiter]
	limit    rate.Limit
	burst    int
}

func newLimiterSet(size int, idleTTL time.Duration, limit rate.Limit, burst int) *limiterSet {
	return &limiterSet{
		limiters: expirable.NewLRU[string, *rate.Limiter](size, nil, idleTTL),
		limit:    limit,
		burst:    burst,
	}
}

// get returns the client's limiter, creating it on first use. The lookup and the
// insert share one critical section so concurrent first requests get the same bucket.
func (s *limiterSet) get(key string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	lim, ok := s.limiters.Get(key)
	if !ok {
		lim = rate.NewLimiter(s.limit, s.burst)
	}
	// Re-adding refreshes the expiry; Get alone does not.
	s.limiters.Add(key, lim)
	return lim
}

// RateLimit throttles each client with its own token bucket. Clients are keyed by
// authenticated user id when present, otherwise by remote IP.
func RateLimit(rps float64, burst int) fiber.Handler {
	if burst <= 0 {
		burst = 1
	}
	limiters := newLimiterSet(limiterCacheSize, limiterIdleTTL, rate.Limit(rps), burst)

	return func(c *fiber.Ctx) error {
		if rps <= 0 {
			return c.Next()
		}

		key := c.IP()
		if u := CurrentUser(c); u != nil {
			key = "user:" + u.ID
		}

		r := limiters.get(key).Reserve()
		if delay := r.Delay(); delay > 0 {
			r.Cancel()
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(math.Ceil(delay.Seconds()))))
			return fiber.NewError(fiber.StatusTooManyRequests, "rate limit exceeded")
		}
		return c.Next()
	}
}
