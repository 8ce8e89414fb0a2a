package server

import (
	"math"
	"net/http"
	"strconv"
	"sync"

	"golang.org/x/time/rate"

	"github.com/tjfontaine/markdown-notes/internal/domain"
)

// maxIdleLimiters bounds the limiter map before full (idle) buckets are pruned.
const maxIdleLimiters = 10000

// UserRateLimiter keeps one token bucket per authenticated user.
type UserRateLimiter struct {
	mu       sync.Mutex
	limiters map[int64]*rate.Limiter
	limit    rate.Limit
	burst    int
}

// NewUserRateLimiter creates a limiter allowing rps sustained requests per
// user with the given burst. A non-positive rps disables limiting.
func NewUserRateLimiter(rps float64, burst int) *UserRateLimiter {
	if burst < 1 {
		burst = 1
	}
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	return &UserRateLimiter{
		limiters: make(map[int64]*rate.Limiter),
		limit:    limit,
		burst:    burst,
	}
}

func (l *UserRateLimiter) limiter(userID int64) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if lim, ok := l.limiters[userID]; ok {
		return lim
	}
	if len(l.limiters) >= maxIdleLimiters {
		for id, lim := range l.limiters {
			if lim.Tokens() >= float64(l.burst) {
				delete(l.limiters, id)
			}
		}
	}
	lim := rate.NewLimiter(l.limit, l.burst)
	l.limiters[userID] = lim
	return lim
}

// Middleware rejects requests over the caller's budget with 429. It must run
// after AuthMiddleware; anonymous requests share user id 0.
func (l *UserRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if l.limit == rate.Inf {
			next.ServeHTTP(w, r)
			return
		}

		var userID int64
		if u := CurrentUser(r.Context()); u != nil {
			userID = u.ID
		}
		lim := l.limiter(userID)

		h := w.Header()
		h.Set("x-ratelimit-limit-requests", strconv.Itoa(l.burst))

		res := lim.Reserve()
		if delay := res.Delay(); delay > 0 {
			res.Cancel()
			h.Set("x-ratelimit-remaining-requests", "0")
			h.Set("Retry-After", strconv.Itoa(int(math.Ceil(delay.Seconds()))))
			AddLogField(r.Context(), "rate_limited", "true")
			writeAPIError(w, domain.ErrRateLimit("Too many AI requests, slow down"))
			return
		}
		h.Set("x-ratelimit-remaining-requests", strconv.Itoa(int(math.Max(0, math.Floor(lim.Tokens())))))

		next.ServeHTTP(w, r)
	})
}
