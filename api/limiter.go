package api

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/nspcc-dev/neo-go/pkg/util"
	"golang.org/x/time/rate"
)

const limiterIdleTTL = 10 * time.Minute

// callerLimiter applies a token bucket per caller and periodically evicts
// idle entries.
type callerLimiter struct {
	limit rate.Limit
	burst int

	mu      sync.Mutex
	byKey   map[string]*limiterEntry
	hits    uint64
	idleTTL time.Duration
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// newCallerLimiter returns nil, which allows everything, if rps or burst is
// not positive.
func newCallerLimiter(rps float64, burst int) *callerLimiter {
	if rps <= 0 || burst <= 0 {
		return nil
	}
	return &callerLimiter{
		limit:   rate.Limit(rps),
		burst:   burst,
		byKey:   make(map[string]*limiterEntry),
		idleTTL: limiterIdleTTL,
	}
}

func (l *callerLimiter) allow(key string, now time.Time) bool {
	if l == nil {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.byKey[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.byKey[key] = e
	}
	e.lastSeen = now
	allowed := e.limiter.AllowN(now, 1)

	l.hits++
	if l.hits%512 == 0 {
		cutoff := now.Add(-l.idleTTL)
		for k, v := range l.byKey {
			if v.lastSeen.Before(cutoff) {
				delete(l.byKey, k)
			}
		}
	}

	return allowed
}

// hostKey identifies the request by the remote host. Callers are identified
// only after the signature check, see callerKey.
func hostKey(r *http.Request) string {
	remote := strings.TrimSpace(r.RemoteAddr)
	host, _, err := net.SplitHostPort(remote)
	if err != nil {
		host = remote
	}
	if host == "" {
		return "ip:unknown"
	}
	return "ip:" + host
}

func callerKey(caller util.Uint160) string {
	return "caller:" + caller.StringLE()
}
