// components/tracks/api.go
//
// JSON store API: POST /api/tracks and GET /api/tracks/{id}.
//
// Context
//   This is the server side of the contract track.Client speaks, so one
//   instance can act as the store for another.  Callers authenticate with
//   a session cookie or the configured bearer token.
//
// Notes
//   •  Creates run the same form definition and Validator as the page, so
//      an API caller cannot store what the form would refuse.
//   •  Rejections answer 400 {"errors": [...]}; internal failures answer
//      500 without detail and are logged.
//
//------------------------------------------------------------------------------

package tracks

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/yanizio/ingenius/internal/auth"
	"github.com/yanizio/ingenius/internal/logger"
	"github.com/yanizio/ingenius/internal/session"
	"github.com/yanizio/ingenius/internal/track"
)

const maxAPIBytes = 256 << 10

// apiAuth admits a session user, or a caller presenting the configured
// bearer token.  Token callers may name the acting user in
// X-Ingenius-User.
func (c *Component) apiAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.UserFromContext(r.Context()); ok {
			next.ServeHTTP(w, r)
			return
		}
		if c.validToken(r) {
			ctx := r.Context()
			if id, err := strconv.ParseInt(r.Header.Get(track.HeaderActingUser), 10, 64); err == nil && id > 0 {
				ctx = auth.WithUser(ctx, auth.User{ID: id})
			}
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}
		session.RequireUserAPI(next).ServeHTTP(w, r)
	})
}

func (c *Component) validToken(r *http.Request) bool {
	tok, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || c.APIToken == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(tok), []byte(c.APIToken)) == 1
}

// handleAPICreate validates with the same definition as the page, then
// creates.  Every rejection answers 400 {"errors": [...]}.
func (c *Component) handleAPICreate(w http.ResponseWriter, r *http.Request) {
	var rec track.Record
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxAPIBytes)).Decode(&rec); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string][]string{"errors": {"Malformed request body"}})
		return
	}

	if errs := c.Validator.Validate(c.Def, rec.Values(), c.Clock()); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, map[string][]string{"errors": errs})
		return
	}

	t, err := c.Store.Create(r.Context(), rec)
	var rej *track.RejectedError
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, t)
	case errors.As(err, &rej):
		writeJSON(w, http.StatusBadRequest, map[string][]string{"errors": rej.Messages})
	default:
		logger.FromContext(r.Context()).Errorw("api track create failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func (c *Component) handleAPIGet(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	t, err := c.Reader.Get(r.Context(), id)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, t)
	case errors.Is(err, track.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string][]string{"errors": {"Track not found"}})
	default:
		logger.FromContext(r.Context()).Errorw("api track get failed", "id", id, "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}
