package httppresentation

import (
	"net/http"

	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability/logctx"
	"golang.org/x/time/rate"
)

// withRateLimit answers 429 with the route's failure body once the shared
// bucket is empty. A nil limiter disables the check.
func (h *Handler) withRateLimit(rejected any, next http.Handler) http.Handler {
	if h.limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.limiter.Allow() {
			logctx.FromOr(r.Context(), h.log).Warn("rate_limited",
				observability.F("route", routeFromContext(r.Context())),
			)
			writeJSON(w, http.StatusTooManyRequests, rejected)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// NewLimiter builds the token bucket shared by the checkout API routes.
func NewLimiter(rps float64, burst int) *rate.Limiter {
	return rate.NewLimiter(rate.Limit(rps), burst)
}
