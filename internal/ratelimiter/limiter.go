package ratelimiter

import (
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

// Limiter is a token bucket guarding an endpoint that reaches the remote
// notification service, so a misbehaving local caller cannot hammer it.
type Limiter struct {
	l *rate.Limiter
}

// New allows one request every interval with the given burst.
// A non-positive interval disables limiting.
func New(interval time.Duration, burst int) *Limiter {
	if interval <= 0 {
		return &Limiter{l: rate.NewLimiter(rate.Inf, 0)}
	}
	if burst < 1 {
		burst = 1
	}
	return &Limiter{l: rate.NewLimiter(rate.Every(interval), burst)}
}

// Allow reports whether a request may proceed now, consuming a token if so.
func (lim *Limiter) Allow() bool {
	return lim.l.Allow()
}

// Middleware rejects requests with 429 and a Retry-After header once the
// bucket is empty.
func (lim *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res := lim.l.Reserve()
		delay := res.Delay()
		if res.OK() && delay == 0 {
			next.ServeHTTP(w, r)
			return
		}
		res.Cancel()

		if res.OK() {
			w.Header().Set("Retry-After", strconv.Itoa(int(delay/time.Second)+1))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"too many connection attempts"}` + "\n"))
	})
}
