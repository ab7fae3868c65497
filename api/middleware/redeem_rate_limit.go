package middleware

import (
	"context"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/angelmondragon/promoredeem/api/responses"
	"github.com/angelmondragon/promoredeem/pkg/config"
	pkgerrors "github.com/angelmondragon/promoredeem/pkg/errors"
	"github.com/angelmondragon/promoredeem/pkg/logger"
)

type rateLimiterStore interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// limitRule names one counter. scope returns "" when the request has
// nothing to count against.
type limitRule struct {
	kind  string
	limit int
	scope func(*http.Request) string
}

func redeemRules(cfg config.RedeemRateLimitConfig) []limitRule {
	var rules []limitRule
	if cfg.ActorLimit > 0 {
		rules = append(rules, limitRule{kind: "actor", limit: cfg.ActorLimit, scope: func(r *http.Request) string {
			if id := UserIDFromContext(r.Context()); id > 0 {
				return "redeem:actor:" + strconv.FormatInt(id, 10)
			}
			return ""
		}})
	}
	if cfg.IPLimit > 0 {
		rules = append(rules, limitRule{kind: "ip", limit: cfg.IPLimit, scope: func(r *http.Request) string {
			if ip := clientIP(r); ip != "" {
				return "redeem:ip:" + ip
			}
			return ""
		}})
	}
	return rules
}

// RedeemRateLimit throttles redemption attempts per actor and per client IP
// in fixed windows. Mount it after Auth.
func RedeemRateLimit(cfg config.RedeemRateLimitConfig, store rateLimiterStore, logg *logger.Logger) func(http.Handler) http.Handler {
	rules := redeemRules(cfg)
	return func(next http.Handler) http.Handler {
		if store == nil || cfg.Window <= 0 || len(rules) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			for _, rule := range rules {
				scope := rule.scope(r)
				if scope == "" {
					continue
				}
				allowed, count, err := store.FixedWindowAllow(ctx, scope, int64(rule.limit), cfg.Window)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiter unavailable"))
					return
				}
				if !allowed {
					if logg != nil {
						logg.Warn(logg.WithFields(ctx, map[string]any{
							"limit_kind": rule.kind,
							"attempts":   count,
							"limit":      rule.limit,
						}), "redeem.rate_limited")
					}
					w.Header().Set("Retry-After", strconv.Itoa(int(cfg.Window.Round(time.Second).Seconds())))
					responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "too many redemption attempts"))
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP takes the first valid address in X-Forwarded-For, then
// X-Real-IP, then the socket peer.
func clientIP(r *http.Request) string {
	first, _, _ := strings.Cut(r.Header.Get("X-Forwarded-For"), ",")
	for _, candidate := range []string{first, r.Header.Get("X-Real-IP")} {
		if addr, err := netip.ParseAddr(strings.TrimSpace(candidate)); err == nil {
			return addr.String()
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
