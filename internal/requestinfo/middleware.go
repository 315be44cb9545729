// internal/requestinfo/middleware.go
//
// Enrich attaches a *RequestInfo to every request.
//
// Ordering
// --------
// cmd/web mounts chi's RealIP ahead of this handler, so r.RemoteAddr
// already carries the proxy-reported client address (bare IP) or the
// socket peer ("ip:port").  Enrich never reads forwarding headers itself.
//
// Cost is one uasurfer parse and, when InitGeo loaded a database, one
// MaxMind lookup.  Both are read-only and safe under concurrency.

package requestinfo

import (
	"context"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Enrich parses the user agent and geolocates the client address.
func Enrich(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info := &RequestInfo{
			UA:        parseUA(r.UserAgent(), r.Header.Get("Accept-Language")),
			Geo:       lookupGeo(remoteIP(r.RemoteAddr)),
			URL:       r.URL,
			Timestamp: time.Now().UTC(),
		}
		if zap.L().Core().Enabled(zap.DebugLevel) {
			zap.S().Debugw("request info", append(info.Fields(), "path", r.URL.Path)...)
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, info)))
	})
}

// remoteIP accepts both "ip:port" and a bare IP.
func remoteIP(addr string) net.IP {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}
	return net.ParseIP(addr)
}
