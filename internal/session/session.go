// internal/session/session.go
//
// Signed session cookie.
//
// Context
//   Authentication persists a small identity payload between requests in a
//   cookie named "ingenius_session", signed (HMAC) by gorilla/securecookie.
//   Nothing else is stored server-side, so a restart never logs anyone out.
//
//   Middleware decodes the cookie once per request and attaches the user to
//   the request context (auth.WithUser).  Handlers never read the cookie
//   themselves.
//
// Workflow
//   •  Login      – after credential verification, writes the cookie.
//   •  Logout     – expires the cookie.
//   •  Middleware – decodes, attaches auth.User; bad cookies are ignored.
//   •  RequireUser / RequireUserAPI – gate routes on a user being present.
//
// Style
//   Two-space sentence spacing, Oxford comma, terse inline notes.
//
//------------------------------------------------------------------------------

package session

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/securecookie"
	"go.uber.org/zap"

	"github.com/yanizio/ingenius/internal/auth"
)

// CookieName is the session cookie key.
const CookieName = "ingenius_session"

const defaultMaxAge = 14 * 24 * time.Hour

// Manager signs and verifies session cookies.
type Manager struct {
	sc     *securecookie.SecureCookie
	maxAge time.Duration
	secure bool
}

// New returns a Manager signing with hashKey.  A short key is replaced with
// a random one, which invalidates sessions on every restart.
func New(hashKey []byte, maxAge time.Duration, secure bool) *Manager {
	if len(hashKey) < 32 {
		zap.S().Warnw("session hash key too short; using an ephemeral key", "len", len(hashKey))
		hashKey = securecookie.GenerateRandomKey(32)
	}
	if maxAge <= 0 {
		maxAge = defaultMaxAge
	}
	sc := securecookie.New(hashKey, nil)
	sc.MaxAge(int(maxAge / time.Second))
	return &Manager{sc: sc, maxAge: maxAge, secure: secure}
}

// Login writes a session for u.
func (m *Manager) Login(w http.ResponseWriter, r *http.Request, u auth.User) error {
	enc, err := m.sc.Encode(CookieName, u)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    enc,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.secure || r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(m.maxAge),
	})
	return nil
}

// Logout clears the session cookie.
func (m *Manager) Logout(w http.ResponseWriter, _ *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}

// Current decodes the session on r.  ok == false when the cookie is missing,
// expired, or tampered with.
func (m *Manager) Current(r *http.Request) (u auth.User, ok bool) {
	c, err := r.Cookie(CookieName)
	if err != nil || c.Value == "" {
		return auth.User{}, false
	}
	if err := m.sc.Decode(CookieName, c.Value, &u); err != nil {
		return auth.User{}, false
	}
	return u, u.ID != 0
}

// Middleware attaches the session user, if any, to the request context.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if u, ok := m.Current(r); ok {
			r = r.WithContext(auth.WithUser(r.Context(), u))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireUser redirects anonymous requests to "/" and renders nothing else.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.UserFromContext(r.Context()); !ok {
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireUserAPI answers anonymous requests with 401 JSON.
func RequireUserAPI(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.UserFromContext(r.Context()); !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string][]string{"errors": {"Authentication required"}})
			return
		}
		next.ServeHTTP(w, r)
	})
}
