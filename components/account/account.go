// components/account/account.go
//
// Account component – sign-in and sign-out.
//
// Context
//   Credentials live in the users table as bcrypt hashes.  A successful
//   sign-in writes the signed session cookie (internal/session); every
//   other component reads the user back from the request context.  Accounts
//   are created out of band with cmd/useradd.
//
// Routes
//   GET  /login     sign-in form
//   POST /login     verify credentials, set cookie, 303 to /tracks/new
//                   (throttled per client address)
//   POST /logout    clear cookie, 303 to /
//
//------------------------------------------------------------------------------

package account

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/yanizio/ingenius/internal/auth"
	"github.com/yanizio/ingenius/internal/component"
	"github.com/yanizio/ingenius/internal/form"
	"github.com/yanizio/ingenius/internal/logger"
	"github.com/yanizio/ingenius/internal/session"
	"github.com/yanizio/ingenius/internal/view"
)

// FormID is the sign-in definition.
const FormID = "account/login"

// AfterLogin is where a fresh session lands.
const AfterLogin = "/tracks/new"

// csrfSubject binds sign-in tokens; there is no user yet.
const csrfSubject = "login"

// Definitions holds the embedded form definitions (forms/*.yaml).
//
//go:embed forms/*.yaml
var Definitions embed.FS

//go:embed templates/*.html
var templatesFS embed.FS

var _ component.Component = (*Component)(nil)

// Authenticator verifies credentials.  *Users satisfies it.
type Authenticator interface {
	Authenticate(ctx context.Context, email, password string) (auth.User, error)
}

// Deps are the collaborators injected by cmd/web.
type Deps struct {
	Def       *form.FormDef
	Validator *form.Validator
	Users     Authenticator
	Sessions  *session.Manager
	CSRF      *form.CSRF
	View      *view.Engine
	Clock     func() time.Time
}

// Component serves the sign-in pages.
type Component struct {
	Deps
	throttle *throttle
}

// New wires the component and mounts its templates.
func New(d Deps) *Component {
	if d.Clock == nil {
		d.Clock = time.Now
	}
	d.View.Mount("account", templatesFS)
	return &Component{Deps: d, throttle: newThrottle(loginInterval, loginBurst)}
}

// Name returns the canonical component key.
func (c *Component) Name() string { return "account" }

// Migrations returns the users table schema.
func (c *Component) Migrations() []string { return Schema }

// Routes attaches the sign-in routes.
func (c *Component) Routes(r chi.Router) {
	r.Get("/login", c.handleLoginGET)
	r.Post("/login", c.handleLoginPOST)
	r.Post("/logout", c.handleLogout)
}

/*──────────────────────────── Handlers ─────────────────────────────────────*/

type loginPage struct {
	Fields template.HTML
	Errors []string
}

func (c *Component) handleLoginGET(w http.ResponseWriter, r *http.Request) {
	c.renderLogin(w, r, http.StatusOK, nil, nil)
}

func (c *Component) handleLoginPOST(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 16<<10)
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if !c.CSRF.Verify(csrfSubject, r.PostForm.Get("csrf_token")) {
		http.Error(w, "Form expired, please reload the page", http.StatusForbidden)
		return
	}

	if !c.throttle.allow(r) {
		logger.FromContext(r.Context()).Warnw("sign-in throttled", "addr", clientAddr(r))
		c.renderLogin(w, r, http.StatusTooManyRequests, nil, []string{"Too many sign-in attempts, try again shortly."})
		return
	}

	vals := form.Values{
		"email":    r.PostForm.Get("email"),
		"password": r.PostForm.Get("password"),
	}
	if errs := c.Validator.Validate(c.Def, vals, c.Clock()); len(errs) > 0 {
		c.renderLogin(w, r, http.StatusUnprocessableEntity, vals, errs)
		return
	}

	u, err := c.Users.Authenticate(r.Context(), vals["email"], vals["password"])
	switch {
	case errors.Is(err, ErrBadCredentials):
		logger.FromContext(r.Context()).Infow("sign-in rejected", "email", vals["email"])
		c.renderLogin(w, r, http.StatusUnauthorized, vals, []string{"Incorrect email or password."})
		return
	case err != nil:
		c.fail(w, r, "sign-in lookup failed", err)
		return
	}

	if err := c.Sessions.Login(w, r, u); err != nil {
		c.fail(w, r, "session write failed", err)
		return
	}
	logger.FromContext(r.Context()).Infow("signed in", "user", u.ID)
	http.Redirect(w, r, AfterLogin, http.StatusSeeOther)
}

func (c *Component) handleLogout(w http.ResponseWriter, r *http.Request) {
	c.Sessions.Logout(w, r)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (c *Component) renderLogin(w http.ResponseWriter, r *http.Request, status int, vals form.Values, errs []string) {
	tok, err := c.CSRF.Generate(csrfSubject)
	if err != nil {
		c.fail(w, r, "csrf generate failed", err)
		return
	}
	fields, err := form.Render(c.Def, form.RenderOptions{Values: vals, CSRFToken: tok})
	if err != nil {
		c.fail(w, r, "form render failed", err)
		return
	}
	if err := c.View.Render(w, r, status, "account", "login", c.Def.Title, loginPage{Fields: fields, Errors: errs}); err != nil {
		c.fail(w, r, "render failed", err)
	}
}

func (c *Component) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	logger.FromContext(r.Context()).Errorw(msg, "path", r.URL.Path, "err", err)
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}
