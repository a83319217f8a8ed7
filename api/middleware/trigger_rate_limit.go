package middleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/siva27neelam/story-telling/api/responses"
	pkgerrors "github.com/siva27neelam/story-telling/pkg/errors"
	"github.com/siva27neelam/story-telling/pkg/logger"
	"github.com/siva27neelam/story-telling/pkg/redis"
)

type rateLimiterStore interface {
	FixedWindow(ctx context.Context, scope string, limit int64, window time.Duration) (redis.Window, error)
}

// TriggerRateLimit caps how often one operator may start pipeline runs within
// window. Requests without an operator fall back to the client IP. A nil store
// or non-positive limit disables the check.
func TriggerRateLimit(store rateLimiterStore, limit int, window time.Duration, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if store == nil || limit <= 0 || window <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			subject := OperatorFromContext(ctx)
			if subject == "" {
				subject = "ip:" + clientIP(r)
			}
			state, err := store.FixedWindow(ctx, "trigger:"+subject, int64(limit), window)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
				return
			}
			if !state.Allowed {
				if logg != nil {
					logg.Warn(logg.WithFields(ctx, map[string]any{
						"subject":        subject,
						"attempts":       state.Count,
						"limit":          limit,
						"window_seconds": int(window.Seconds()),
					}), "admin.trigger.rate_limited")
				}
				if state.RetryAfter > 0 {
					w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(state.RetryAfter.Seconds()))))
				}
				responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "rate limit exceeded"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	if header := r.Header.Get("X-Forwarded-For"); header != "" {
		for _, part := range strings.Split(header, ",") {
			if ip := strings.TrimSpace(part); ip != "" {
				return ip
			}
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}
