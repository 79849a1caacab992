package http

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// LoggingMiddleware emits one structured line per request, keyed the same
// way the daemon's services log.
func LoggingMiddleware(log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Infow("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"client", c.ClientIP(),
			"duration", time.Since(start),
		)
	}
}

// The daemon runs for months between restarts, so the per-client limiter
// map must not grow with every IP ever seen. Once it reaches sweepThreshold
// entries, clients idle past idleTTL are dropped before a new one is added.
const (
	clientIdleTTL        = 10 * time.Minute
	clientSweepThreshold = 256
)

type clientEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

type clientLimiters struct {
	mu      sync.Mutex
	rps     rate.Limit
	burst   int
	clients map[string]*clientEntry
}

func newClientLimiters(rps, burst int) *clientLimiters {
	return &clientLimiters{
		rps:     rate.Limit(rps),
		burst:   burst,
		clients: make(map[string]*clientEntry),
	}
}

func (cl *clientLimiters) allow(ip string, now time.Time) bool {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	e, ok := cl.clients[ip]
	if !ok {
		if len(cl.clients) >= clientSweepThreshold {
			cl.sweep(now)
		}
		e = &clientEntry{lim: rate.NewLimiter(cl.rps, cl.burst)}
		cl.clients[ip] = e
	}
	e.lastSeen = now
	return e.lim.Allow()
}

// sweep drops idle clients. Caller holds mu.
func (cl *clientLimiters) sweep(now time.Time) {
	for ip, e := range cl.clients {
		if now.Sub(e.lastSeen) > clientIdleTTL {
			delete(cl.clients, ip)
		}
	}
}

// RateLimitMiddleware is a per-client token bucket in front of the local
// admin and detection surface.
func RateLimitMiddleware(rps, burst int) gin.HandlerFunc {
	cl := newClientLimiters(rps, burst)
	return func(c *gin.Context) {
		ip, _, err := net.SplitHostPort(c.Request.RemoteAddr)
		if err != nil {
			ip = c.Request.RemoteAddr
		}
		if !cl.allow(ip, time.Now()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
