package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/alanyoungcy/genmarket/internal/domain"
)

// RateLimit admits at most limit requests per window for each client IP, as
// resolved by proxies. When the limiter itself fails the request is let
// through.
func RateLimit(limiter domain.RateLimiter, limit int, window time.Duration, proxies TrustedProxies, logger *slog.Logger) Middleware {
	retryAfter := strconv.Itoa(max(1, int(window.Seconds())))
	limitHeader := strconv.Itoa(limit)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := proxies.ClientIP(r)
			ok, err := limiter.Allow(r.Context(), domain.ClientRateKey(ip), limit, window)
			if err != nil {
				logger.WarnContext(r.Context(), "rate limiter unavailable", slog.String("error", err.Error()))
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("X-RateLimit-Limit", limitHeader)
			if !ok {
				logger.DebugContext(r.Context(), "rate limited", slog.String("client_ip", ip))
				w.Header().Set("Retry-After", retryAfter)
				deny(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
