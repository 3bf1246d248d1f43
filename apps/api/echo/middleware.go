package echoapi

import (
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/atelierhq/atelier/core"
	"github.com/atelierhq/atelier/core/client"
	"github.com/atelierhq/atelier/core/staff"
	"github.com/atelierhq/atelier/core/user"
)

// userMiddleware loads the authenticated user, and their staff or client profile, into the context.
func userMiddleware(usrSvc *user.Service, staffSvc *staff.Service, clientSvc *client.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return err
			}
			reqCtx := ctx.Request().Context()
			usr, err := usrSvc.GetByID(reqCtx, claims.Subject)
			if err != nil {
				if errors.Cause(err) == user.ErrNotFound {
					return errUnauthorized
				}
				return errors.Wrap(err, "finding user by ID")
			}
			if !usr.IsActive {
				return errAccountDeactivated
			}
			ctx.Set(contextUserKey, usr)

			switch {
			case usr.IsStaff():
				s, err := staffSvc.GetByUserID(reqCtx, usr.ID)
				if err == nil {
					ctx.Set(contextStaffKey, s)
				} else if errors.Cause(err) != staff.ErrNotFound {
					return errors.Wrap(err, "finding staff profile")
				}
			case usr.IsClient():
				c, err := clientSvc.GetByUserID(reqCtx, usr.ID)
				if err == nil {
					ctx.Set(contextClientKey, c)
				} else if errors.Cause(err) != client.ErrNotFound {
					return errors.Wrap(err, "finding client profile")
				}
			}
			return next(ctx)
		}
	}
}

// roleMiddleware only lets through users whose claims pass check.
func roleMiddleware(check func(Claims) bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if check(claims) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

func adminMiddleware() echo.MiddlewareFunc  { return roleMiddleware(Claims.IsAdmin) }
func staffMiddleware() echo.MiddlewareFunc  { return roleMiddleware(Claims.IsStaff) }
func clientMiddleware() echo.MiddlewareFunc { return roleMiddleware(Claims.IsClient) }

// Rate limiting

// newIPExtractor returns how RealIP finds the client address. Without trusted proxies the socket
// address is used; otherwise X-Forwarded-For is honoured for hops inside the listed ranges only.
func newIPExtractor(proxies []string, logger core.Logger) echo.IPExtractor {
	var opts []echo.TrustOption
	for _, cidr := range proxies {
		_, ipNet, err := net.ParseCIDR(cidr)
		if err != nil {
			logger.Warn(fmt.Sprintf("ignoring trusted proxy %q: %v", cidr, err))
			continue
		}
		opts = append(opts, echo.TrustIPRange(ipNet))
	}
	if len(opts) == 0 {
		return echo.ExtractIPDirect()
	}
	opts = append(opts, echo.TrustLoopback(false), echo.TrustLinkLocal(false), echo.TrustPrivateNet(false))
	return echo.ExtractIPFromXFFHeader(opts...)
}


type visitor struct {
	lim  *rate.Limiter
	seen time.Time
}

// ipRateLimiter hands out one token bucket per client IP.
type ipRateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
	swept    time.Time
}

func newIPRateLimiter(rps float64, burst int) *ipRateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &ipRateLimiter{
		visitors: make(map[string]*visitor),
		limit:    rate.Limit(rps),
		burst:    burst,
		swept:    time.Now(),
	}
}

func (rl *ipRateLimiter) get(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	if now.Sub(rl.swept) > time.Minute {
		for k, v := range rl.visitors {
			if now.Sub(v.seen) > 3*time.Minute {
				delete(rl.visitors, k)
			}
		}
		rl.swept = now
	}

	if v, ok := rl.visitors[ip]; ok {
		v.seen = now
		return v.lim
	}
	lim := rate.NewLimiter(rl.limit, rl.burst)
	rl.visitors[ip] = &visitor{lim: lim, seen: now}
	return lim
}

func (rl *ipRateLimiter) middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if rl.limit <= 0 {
				return next(ctx)
			}
			if !rl.get(ctx.RealIP()).Allow() {
				return errTooManyRequests
			}
			return next(ctx)
		}
	}
}

// Metrics

type httpMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newHTTPMetrics(reg prometheus.Registerer) *httpMetrics {
	m := &httpMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "atelier",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route, method and status code.",
		}, []string{"method", "route", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "atelier",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latencies by route and method.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	reg.MustRegister(m.requests, m.duration)
	return m
}

func (m *httpMetrics) middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			start := time.Now()
			err := next(ctx)
			if err != nil {
				ctx.Error(err) // commit the response so its status is known
			}
			route := ctx.Path()
			if route == "" {
				route = "unmatched"
			}
			method := ctx.Request().Method
			m.requests.WithLabelValues(method, route, strconv.Itoa(ctx.Response().Status)).Inc()
			m.duration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			return nil
		}
	}
}
