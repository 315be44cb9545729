// components/tracks/pages.go
//
// HTML handlers for the add-song flow and the detail page.
//
// Context
//   Every POST names its draft by the hidden draft_id and carries the CSRF
//   token bound to the signed-in user.  A draft lost to eviction, the idle
//   sweep, or a restart is reopened from the posted values.
//
// Workflow
//   POST /tracks/new           ApplyFinal → Submit → 303 | 409 | 422 | 502
//   POST /tracks/new/validate  ApplyRev   → {errors, display_errors, rev}
//
// Notes
//   •  Both posts are capped at maxFormBytes.
//   •  The hidden rev input orders live edits; see track.Form.ApplyRev.
//   •  Store failures without messages are logged with request info and
//      leave the page as it was.
//
//------------------------------------------------------------------------------

package tracks

import (
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/yanizio/ingenius/internal/auth"
	"github.com/yanizio/ingenius/internal/form"
	"github.com/yanizio/ingenius/internal/logger"
	"github.com/yanizio/ingenius/internal/metrics"
	"github.com/yanizio/ingenius/internal/requestinfo"
	"github.com/yanizio/ingenius/internal/routing"
	"github.com/yanizio/ingenius/internal/track"
)

// maxFormBytes caps posted drafts; lyrics dominate at 10 000 characters.
const maxFormBytes = 256 << 10

// transcriptionTips are shown beside the lyrics field.
var transcriptionTips = []string{
	"Type out all lyrics, even when a section of the song is repeated. Everything in the song should be transcribed, including adlibs, producer tags, etc. If you don’t understand a lyric, use “[?]” instead.",
	"Make sure to break transcriptions up into individual lines and use section headers above different song parts.",
	"Only add a song to Ingenius if it has been officially released. Fan-made mashups, songs that leak pre-release, and songs that violate our community policy are not allowed on Ingenius.",
}

// newPage is the data behind templates/new.html.
type newPage struct {
	Fields        template.HTML
	Errors        []string
	DisplayErrors bool
	Spellcheck    bool
	Tips          []string
}

// detailPage is the data behind templates/detail.html.
type detailPage struct {
	Track     *track.Track
	Permalink string
}

// validateResponse is the live re-validation payload.  Rev is the draft's
// revision after the request; a client that sent a lower one lost the race.
type validateResponse struct {
	Errors        []string `json:"errors"`
	DisplayErrors bool     `json:"display_errors"`
	Rev           uint64   `json:"rev"`
}

// redirectNavigator turns a successful submission into a 303.
type redirectNavigator struct {
	w http.ResponseWriter
	r *http.Request
}

func (n redirectNavigator) Navigate(path string) {
	http.Redirect(n.w, n.r, path, http.StatusSeeOther)
}

/*──────────────────────────── Handlers ─────────────────────────────────────*/

func (c *Component) handleIndex(w http.ResponseWriter, r *http.Request) {
	c.render(w, r, http.StatusOK, "index", "", nil)
}

func (c *Component) handleNewGET(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.UserFromContext(r.Context())
	f, err := c.Drafts.Open(u.ID)
	if err != nil {
		c.fail(w, r, "draft open failed", err)
		return
	}
	c.renderForm(w, r, http.StatusOK, f)
}

func (c *Component) handleNewPOST(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.UserFromContext(r.Context())
	f, ok := c.draftFromPost(w, r, u)
	if !ok {
		return
	}
	f.ApplyFinal(postedRev(r), postedValues(r))

	// The store call outlives a client that navigates away.
	ctx := context.WithoutCancel(r.Context())
	err := f.Submit(ctx, redirectNavigator{w: w, r: r})

	var rej *track.RejectedError
	switch {
	case err == nil:
		c.Drafts.Discard(f.ID())
	case errors.Is(err, track.ErrInvalid), errors.As(err, &rej):
		c.renderForm(w, r, http.StatusUnprocessableEntity, f)
	case errors.Is(err, track.ErrSubmitInFlight):
		c.renderForm(w, r, http.StatusConflict, f)
	default:
		// Unstructured store failure: logged here, the page is unchanged.
		log := logger.FromContext(r.Context())
		log.With(requestinfo.FromContext(r.Context()).Fields()...).
			Errorw("track submit failed", "draft", f.ID(), "user", u.ID, "err", err)
		c.renderForm(w, r, http.StatusBadGateway, f)
	}
}

func (c *Component) handleValidatePOST(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.UserFromContext(r.Context())
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string][]string{"errors": {http.StatusText(http.StatusBadRequest)}})
		return
	}
	if !c.CSRF.Verify(subject(u), r.PostForm.Get("csrf_token")) {
		writeJSON(w, http.StatusForbidden, map[string][]string{"errors": {"Form expired, please reload the page"}})
		return
	}
	f, ok := c.Drafts.Get(r.PostForm.Get("draft_id"), u.ID)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string][]string{"errors": {"Draft not found"}})
		return
	}

	if rev := postedRev(r); rev == 0 {
		f.Apply(postedValues(r))
	} else if !f.ApplyRev(rev, postedValues(r)) {
		logger.FromContext(r.Context()).Debugw("stale live edit dropped", "draft", f.ID(), "rev", rev)
	}
	metrics.ValidationRunsTotal.Inc()

	resp := validateResponse{Errors: f.Errors(), DisplayErrors: f.DisplayErrors(), Rev: f.Rev()}
	if resp.Errors == nil {
		resp.Errors = []string{}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (c *Component) handleDetail(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		c.render(w, r, http.StatusNotFound, "notfound", "Not found", nil)
		return
	}

	t, err := c.Reader.Get(r.Context(), id)
	switch {
	case errors.Is(err, track.ErrNotFound):
		c.render(w, r, http.StatusNotFound, "notfound", "Not found", nil)
		return
	case err != nil:
		c.fail(w, r, "track load failed", err)
		return
	}

	permalink := Permalink(t)
	if !routing.Canonical(r.URL.Path, track.DetailPath(t.ID), permalink) {
		http.Redirect(w, r, permalink, http.StatusMovedPermanently)
		return
	}
	c.render(w, r, http.StatusOK, "detail", t.Title, detailPage{Track: t, Permalink: permalink})
}

/*──────────────────────────── helpers ──────────────────────────────────────*/

// Permalink is the canonical detail path including the cosmetic slug.
func Permalink(t *track.Track) string {
	return routing.Permalink(track.DetailPath(t.ID), t.Artist, t.Title)
}

// draftFromPost parses the body, checks the CSRF token, and resolves the
// posted draft.  A draft lost to eviction or restart is reopened so the
// posted values are not thrown away.
func (c *Component) draftFromPost(w http.ResponseWriter, r *http.Request, u auth.User) (*track.Form, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return nil, false
	}
	if !c.CSRF.Verify(subject(u), r.PostForm.Get("csrf_token")) {
		http.Error(w, "Form expired, please reload the page", http.StatusForbidden)
		return nil, false
	}
	if f, ok := c.Drafts.Get(r.PostForm.Get("draft_id"), u.ID); ok {
		return f, true
	}
	f, err := c.Drafts.Open(u.ID)
	if err != nil {
		c.fail(w, r, "draft open failed", err)
		return nil, false
	}
	return f, true
}

// postedRev reads the client revision; absent or malformed is 0.
func postedRev(r *http.Request) uint64 {
	rev, _ := strconv.ParseUint(r.PostForm.Get("rev"), 10, 64)
	return rev
}

// postedValues picks the track fields out of the parsed body.
func postedValues(r *http.Request) map[string]string {
	vals := make(map[string]string, len(track.Fields))
	for _, name := range track.Fields {
		if vs, ok := r.PostForm[name]; ok && len(vs) > 0 {
			vals[name] = vs[0]
		}
	}
	return vals
}

func (c *Component) renderForm(w http.ResponseWriter, r *http.Request, status int, f *track.Form) {
	u, _ := auth.UserFromContext(r.Context())
	tok, err := c.CSRF.Generate(subject(u))
	if err != nil {
		c.fail(w, r, "csrf generate failed", err)
		return
	}
	fields, err := form.Render(f.Def(), form.RenderOptions{
		Values:    f.Values(),
		CSRFToken: tok,
		Hidden: map[string]string{
			"draft_id": f.ID(),
			"rev":      strconv.FormatUint(f.Rev(), 10),
		},
	})
	if err != nil {
		c.fail(w, r, "form render failed", err)
		return
	}

	def := f.Def()
	c.render(w, r, status, "new", def.Title, newPage{
		Fields:        fields,
		Errors:        f.Errors(),
		DisplayErrors: f.DisplayErrors(),
		Spellcheck:    def.Spellcheck == nil || *def.Spellcheck,
		Tips:          transcriptionTips,
	})
}

func (c *Component) render(w http.ResponseWriter, r *http.Request, status int, name, title string, data any) {
	if err := c.View.Render(w, r, status, "tracks", name, title, data); err != nil {
		c.fail(w, r, "render failed", err)
	}
}

// fail logs err and answers 500.
func (c *Component) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	logger.FromContext(r.Context()).Errorw(msg, "path", r.URL.Path, "err", err)
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

func subject(u auth.User) string { return strconv.FormatInt(u.ID, 10) }

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
