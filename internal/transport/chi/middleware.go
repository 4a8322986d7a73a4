package chi

import (
	"net"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/physical-ai/tutor-api/internal/domain"
	"github.com/physical-ai/tutor-api/internal/metrics"
	"github.com/physical-ai/tutor-api/internal/ratelimit"
)

// rateLimitExemptPaths bypass admission control so probes and scrapes
// stay unthrottled.
var rateLimitExemptPaths = map[string]struct{}{
	"/":           {},
	"/api/health": {},
	"/metrics":    {},
}

// RateLimitMiddleware enforces per-client admission control. Clients are
// keyed by IP; rejected requests get 429 with a Retry-After hint and do
// not consume quota.
func RateLimitMiddleware(limiter *ratelimit.Limiter, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := rateLimitExemptPaths[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			identifier := clientIP(r)
			if !limiter.Admit(identifier) {
				metrics.RateLimitRejectedTotal.Inc()
				log.Warn("rate limit exceeded",
					zap.String("client", identifier), zap.String("path", r.URL.Path))
				retryAfter := int(limiter.Window().Seconds())
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				writeError(w, http.StatusTooManyRequests, codeRateLimited, domain.ErrRateLimited.Error())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientIP strips the port from the remote address. chi's RealIP
// middleware has already folded in X-Forwarded-For / X-Real-IP.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
