package api

import (
	"context"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/okian/wpmrank/pkg/metrics"
)

const (
	visitorIdleTTL    = 3 * time.Minute
	visitorSweepEvery = time.Minute
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimiter holds one token bucket per client address. A nil rateLimiter
// lets everything through.
type rateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rps      rate.Limit
	burst    int
	trusted  []netip.Prefix
}

func newRateLimiter(rps float64, burst int, trusted []netip.Prefix) *rateLimiter {
	if rps <= 0 {
		return nil
	}
	return &rateLimiter{
		visitors: make(map[string]*visitor),
		rps:      rate.Limit(rps),
		burst:    burst,
		trusted:  trusted,
	}
}

func (l *rateLimiter) allow(client string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	v, ok := l.visitors[client]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.visitors[client] = v
	}
	v.lastSeen = time.Now()
	return v.limiter.Allow()
}

// wrap refuses requests over the client's budget with 429.
func (l *rateLimiter) wrap(next http.HandlerFunc) http.HandlerFunc {
	if l == nil {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if !l.allow(clientAddr(r, l.trusted)) {
			metrics.RecordRateLimited()
			writeError(w, http.StatusTooManyRequests, codeRateLimited, ErrRateLimited)
			return
		}
		next(w, r)
	}
}

// sweep forgets clients idle for longer than visitorIdleTTL.
func (l *rateLimiter) sweep(ctx context.Context) {
	if l == nil {
		return
	}
	ticker := time.NewTicker(visitorSweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			l.forgetIdle(now)
		}
	}
}

func (l *rateLimiter) forgetIdle(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for addr, v := range l.visitors {
		if now.Sub(v.lastSeen) > visitorIdleTTL {
			delete(l.visitors, addr)
		}
	}
}

// clientAddr identifies the caller by its remote host. X-Forwarded-For is
// only believed when the remote host is one of the trusted proxies, in which
// case its first hop is the client.
func clientAddr(r *http.Request, trusted []netip.Prefix) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" && isTrusted(host, trusted) {
		first, _, _ := strings.Cut(fwd, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	return host
}

func isTrusted(host string, trusted []netip.Prefix) bool {
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
