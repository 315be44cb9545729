// internal/middleware/security.go
//
// Response security headers.
//
// The policy allows cover art from any https origin (the add-song preview
// loads art_url directly) and nothing else off-site.  HSTS is sent only
// when the deployment forces HTTPS, so a plain-HTTP dev server never pins
// a browser to TLS.
//
// Headers are set before next runs and only when absent, so a handler may
// replace any of them.

package middleware

import "net/http"

const hstsValue = "max-age=63072000; includeSubDomains"

var securityHeaders = [...][2]string{
	{"Content-Security-Policy", "default-src 'self'; img-src 'self' data: https:; " +
		"object-src 'none'; base-uri 'self'; form-action 'self'; frame-ancestors 'none'"},
	{"X-Frame-Options", "DENY"},
	{"X-Content-Type-Options", "nosniff"},
	{"Referrer-Policy", "strict-origin-when-cross-origin"},
	{"Permissions-Policy", "geolocation=(), microphone=(), camera=()"},
}

// Security sets the header table, plus HSTS when hsts is true.
func Security(hsts bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			for _, kv := range securityHeaders {
				if h.Get(kv[0]) == "" {
					h.Set(kv[0], kv[1])
				}
			}
			if hsts && h.Get("Strict-Transport-Security") == "" {
				h.Set("Strict-Transport-Security", hstsValue)
			}
			next.ServeHTTP(w, r)
		})
	}
}
