package httpserver

import (
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"storefront/internal/domain"
	"storefront/internal/service/identity"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const resolutionKey = "identity.resolution"

// identityMiddleware resolves the cart owner for routes open to guests. A new
// guest id is persisted as an HttpOnly cookie.
func identityMiddleware(resolver IdentityResolver, opts Options, logger *log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		bearer, ok := bearerToken(c)
		if !ok {
			abortMessage(c, http.StatusUnauthorized, "malformed authorization header")
			return
		}
		cookie, _ := c.Cookie(opts.GuestCookieName)

		res, err := resolver.Resolve(c.Request.Context(), bearer, cookie)
		if err != nil {
			writeError(c, logger, err)
			return
		}
		if res.IssueCookie {
			http.SetCookie(c.Writer, &http.Cookie{
				Name:     opts.GuestCookieName,
				Value:    res.Owner.ID(),
				Path:     "/",
				MaxAge:   int(res.CookieTTL.Seconds()),
				Expires:  time.Now().Add(res.CookieTTL),
				HttpOnly: true,
				Secure:   opts.CookieSecure,
				SameSite: http.SameSiteLaxMode,
			})
		}
		c.Set(resolutionKey, res)
		c.Next()
	}
}

// authMiddleware admits only requests carrying a valid bearer token.
func authMiddleware(resolver IdentityResolver, logger *log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		bearer, ok := bearerToken(c)
		if !ok {
			abortMessage(c, http.StatusUnauthorized, "malformed authorization header")
			return
		}
		if bearer == "" {
			abortMessage(c, http.StatusUnauthorized, "authentication required")
			return
		}
		res, err := resolver.Resolve(c.Request.Context(), bearer, "")
		if err != nil {
			writeError(c, logger, err)
			return
		}
		if res.Claims == nil {
			abortMessage(c, http.StatusUnauthorized, "authentication required")
			return
		}
		c.Set(resolutionKey, res)
		c.Next()
	}
}

func requireAdmin(c *gin.Context) {
	if !resolution(c).IsAdmin() {
		writeError(c, nil, domain.ErrForbidden)
		return
	}
	c.Next()
}

func resolution(c *gin.Context) identity.Resolution {
	if v, ok := c.Get(resolutionKey); ok {
		if res, ok := v.(identity.Resolution); ok {
			return res
		}
	}
	return identity.Resolution{}
}

// bearerToken returns the token from an "Authorization: Bearer" header, or ""
// when the header is absent. ok is false for any other scheme.
func bearerToken(c *gin.Context) (string, bool) {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if header == "" {
		return "", true
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(token) == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}

type ipLimiter struct {
	limiter *rate.Limiter
	last    time.Time
}

// ipRateLimiter keeps one token bucket per client IP and forgets clients idle
// for longer than idleTTL.
type ipRateLimiter struct {
	rps     rate.Limit
	burst   int
	idleTTL time.Duration

	mu        sync.Mutex
	limiters  map[string]*ipLimiter
	lastSweep time.Time
	now       func() time.Time
}

func newIPRateLimiter(rps float64, burst int, idleTTL time.Duration) *ipRateLimiter {
	if rps <= 0 {
		rps = 1
	}
	if burst <= 0 {
		burst = 5
	}
	return &ipRateLimiter{
		rps:      rate.Limit(rps),
		burst:    burst,
		idleTTL:  idleTTL,
		limiters: make(map[string]*ipLimiter),
		now:      time.Now,
	}
}

func (l *ipRateLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) > l.idleTTL {
		for key, il := range l.limiters {
			if now.Sub(il.last) > l.idleTTL {
				delete(l.limiters, key)
			}
		}
		l.lastSweep = now
	}

	il, ok := l.limiters[ip]
	if !ok {
		il = &ipLimiter{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.limiters[ip] = il
	}
	il.last = now
	return il.limiter.AllowN(now, 1)
}

func (l *ipRateLimiter) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.allow(c.ClientIP()) {
			abortMessage(c, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		c.Next()
	}
}

func abortMessage(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"message": message})
}
