// components/account/throttle.go
//
// Per-address rate limit on POST /login.
//
// Notes
//   •  The address comes from r.RemoteAddr, which chi's RealIP has already
//      rewritten behind the proxy.
//   •  Limiters live in a bounded LRU, so the table cannot grow without
//      limit under a spray of addresses.
//
//------------------------------------------------------------------------------

package account

import (
	"net"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/yanizio/ingenius/internal/cache"
)

// Sign-in attempts allowed per client address: a burst of five, then one
// every twelve seconds.
const (
	loginBurst    = 5
	loginInterval = 12 * time.Second
	throttleSlots = 4096
)

// throttle hands out one token bucket per client address.  Buckets for
// quiet addresses fall out of the LRU.
type throttle struct {
	buckets *cache.LRU[string, *rate.Limiter]
	every   rate.Limit
	burst   int
}

func newThrottle(every time.Duration, burst int) *throttle {
	return &throttle{
		buckets: cache.New[string, *rate.Limiter](throttleSlots),
		every:   rate.Every(every),
		burst:   burst,
	}
}

// allow spends one attempt for r's client address.
func (t *throttle) allow(r *http.Request) bool {
	key := clientAddr(r)
	lim, ok := t.buckets.Get(key)
	if !ok {
		lim = rate.NewLimiter(t.every, t.burst)
		t.buckets.Add(key, lim)
	}
	return lim.Allow()
}

// clientAddr strips the port; chi's RealIP has already rewritten
// RemoteAddr when a proxy header was present.
func clientAddr(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
