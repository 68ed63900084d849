package server

import (
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

type ipLimiter struct {
	limiter *rate.Limiter
	last    atomic.Int64
}

// RateLimiter applies a per-IP token bucket to the API routes. Entries idle
// for over 30 minutes are dropped by a background sweep.
type RateLimiter struct {
	rps      rate.Limit
	burst    int
	limiters sync.Map
	sweep    sync.Once
}

func NewRateLimiter(rps float64, burst int) *RateLimiter {
	return &RateLimiter{
		rps:   rate.Limit(rps),
		burst: burst,
	}
}

func (rl *RateLimiter) limiterFor(ip string) *rate.Limiter {
	now := time.Now().Unix()
	if v, ok := rl.limiters.Load(ip); ok {
		entry := v.(*ipLimiter)
		entry.last.Store(now)
		return entry.limiter
	}
	entry := &ipLimiter{limiter: rate.NewLimiter(rl.rps, rl.burst)}
	entry.last.Store(now)
	actual, _ := rl.limiters.LoadOrStore(ip, entry)
	rl.sweep.Do(func() { go rl.sweepIdle() })
	return actual.(*ipLimiter).limiter
}

func (rl *RateLimiter) sweepIdle() {
	t := time.NewTicker(5 * time.Minute)
	defer t.Stop()
	for range t.C {
		cutoff := time.Now().Add(-30 * time.Minute).Unix()
		rl.limiters.Range(func(key, val any) bool {
			if val.(*ipLimiter).last.Load() < cutoff {
				rl.limiters.Delete(key)
			}
			return true
		})
	}
}

func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}
		if !rl.limiterFor(ip).Allow() {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"Too many requests, please try again later."}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequestLogger assigns each request an id and writes one access-log line
// when it completes.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := uuid.New().String()
			w.Header().Set("X-Request-Id", requestID)

			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			logger.Info("request handled",
				"request_id", requestID,
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration_ms", time.Since(start).Milliseconds(),
			)
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
