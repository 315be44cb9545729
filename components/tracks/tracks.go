// components/tracks/tracks.go
//
// Tracks component – add-song form, live validation, detail page, and the
// JSON store API.
//
// Context
//   The add-song page is a server-rendered form.  Each visit opens a draft
//   (track.Form) held in memory for the signed-in user; posted edits flow
//   through the draft's setters, so validation, the display-errors latch,
//   and the single in-flight submission all live in internal/track.  The
//   page ships a small script that, once errors are showing, posts every
//   edit to /tracks/new/validate and redraws the error list.
//
// Routes
//   GET  /                          landing page
//   GET  /tracks/new                open draft, render form      (session)
//   POST /tracks/new                submit draft                 (session)
//   POST /tracks/new/validate       live re-validation JSON      (session)
//   GET  /tracks/{id}[/{slug}]      detail page
//   POST /api/tracks                create, {errors} on reject   (session|token)
//   GET  /api/tracks/{id}           track JSON                   (session|token)
//   GET  /static/*                  embedded assets
//
//------------------------------------------------------------------------------

package tracks

import (
	"context"
	"embed"
	"io/fs"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/yanizio/ingenius/internal/component"
	"github.com/yanizio/ingenius/internal/form"
	"github.com/yanizio/ingenius/internal/session"
	"github.com/yanizio/ingenius/internal/track"
	"github.com/yanizio/ingenius/internal/view"
)

// FormID is the definition the add-song page renders.
const FormID = "tracks/new"

// Definitions holds the embedded form definitions (forms/*.yaml).
//
//go:embed forms/*.yaml
var Definitions embed.FS

//go:embed templates/*.html
var templatesFS embed.FS

//go:embed static
var staticFS embed.FS

// Compile-time assertions.
var (
	_ component.Component   = (*Component)(nil)
	_ component.Initializer = (*Component)(nil)
)

// Deps are the collaborators injected by cmd/web.
type Deps struct {
	Def       *form.FormDef
	Validator *form.Validator
	Drafts    *track.Drafts
	Store     track.Store
	Reader    *track.Reader
	CSRF      *form.CSRF
	View      *view.Engine
	APIToken  string
	Clock     func() time.Time

	// Idle drafts are swept every SweepEvery once untouched for DraftTTL.
	// Zero SweepEvery disables the sweeper.
	DraftTTL   time.Duration
	SweepEvery time.Duration
}

// Component encapsulates the track pages and API.
type Component struct {
	Deps
}

// New wires the component and mounts its templates on the view engine.
func New(d Deps) *Component {
	if d.Clock == nil {
		d.Clock = time.Now
	}
	d.View.Mount("tracks", templatesFS)
	return &Component{Deps: d}
}

/*────────────────── component.Component methods ───────────────────────────*/

// Name returns the canonical component key.
func (c *Component) Name() string { return "tracks" }

// Migrations returns the tracks table schema.
func (c *Component) Migrations() []string { return track.Schema }

// Init starts the idle-draft sweeper, bound to ctx.
func (c *Component) Init(ctx context.Context) error {
	if c.SweepEvery > 0 {
		go c.Drafts.Run(ctx, c.SweepEvery, c.DraftTTL)
	}
	return nil
}

// Routes attaches page, API, and static routes.
func (c *Component) Routes(r chi.Router) {
	static, _ := fs.Sub(staticFS, "static")
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(static))))

	r.Get("/", c.handleIndex)

	r.Group(func(r chi.Router) {
		r.Use(session.RequireUser)
		r.Get("/tracks/new", c.handleNewGET)
		r.Post("/tracks/new", c.handleNewPOST)
		r.Post("/tracks/new/validate", c.handleValidatePOST)
	})

	r.Get("/tracks/{id:[0-9]+}", c.handleDetail)
	r.Get("/tracks/{id:[0-9]+}/{slug}", c.handleDetail)

	r.Route("/api/tracks", func(api chi.Router) {
		api.Use(c.apiAuth)
		api.Post("/", c.handleAPICreate)
		api.Get("/{id:[0-9]+}", c.handleAPIGet)
	})
}
