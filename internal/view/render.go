// internal/view/render.go
//
// Central view engine: template lookup, override chain, func-map injection,
// and an LRU of parsed *template.Template* sets.
//
// Public helpers
// --------------
//   - Engine.Mount   – register a component's embedded templates.
//   - Engine.Render  – render into a buffer, then write status + HTML.
//
// Lookup precedence (first hit wins):
//   1. <override_dir>/components/<comp>/templates/<name>.html
//   2. templates/<name>.html inside the component's mounted fs.FS
//
// Each page is parsed as one set together with the shared layout, so a page
// file only defines the "title", "content", and optional "scripts" blocks.
//
// Style
// -----
// • Oxford commas, two spaces after periods.

package view

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"os"
	"path"
	"strings"
	"sync"

	"github.com/yanizio/ingenius/internal/auth"
	"github.com/yanizio/ingenius/internal/cache"
	"github.com/yanizio/ingenius/internal/routing"
)

//go:embed templates/layout.html
var layoutFS embed.FS

//
// cache definitions
//

// CachePolicy hints how the caller wants this template cached.
type CachePolicy int

const (
	CacheDefault CachePolicy = iota // reuse parsed sets
	CacheSkip                       // re-parse every time (development)
)

// ErrTemplateNotFound is returned when no source holds the page.
var ErrTemplateNotFound = errors.New("view: template not found")

//
// engine
//

// Page is the value every template executes against.
type Page struct {
	Title    string
	User     auth.User
	LoggedIn bool
	Data     any
}

// Engine renders component templates.  Safe for concurrent use.
type Engine struct {
	overrides fs.FS // nil when no override dir
	policy    CachePolicy
	sets      *cache.LRU[string, *template.Template]

	mu    sync.RWMutex
	comps map[string]fs.FS
}

// New returns an Engine.  overrideDir may be empty.
func New(overrideDir string, policy CachePolicy) *Engine {
	e := &Engine{
		policy: policy,
		sets:   cache.New[string, *template.Template](256),
		comps:  make(map[string]fs.FS),
	}
	if overrideDir != "" {
		e.overrides = os.DirFS(overrideDir)
	}
	return e
}

// Mount registers fsys (holding templates/*.html) for comp.
func (e *Engine) Mount(comp string, fsys fs.FS) {
	e.mu.Lock()
	e.comps[comp] = fsys
	e.mu.Unlock()
}

// Render executes comp/name with data wrapped in a Page and writes it with
// status.  Nothing is written when execution fails.
func (e *Engine) Render(w http.ResponseWriter, r *http.Request, status int, comp, name, title string, data any) error {
	t, err := e.load(comp, name)
	if err != nil {
		return err
	}

	p := Page{Title: title, Data: data}
	p.User, p.LoggedIn = auth.UserFromContext(r.Context())

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", p); err != nil {
		return fmt.Errorf("view: execute %s/%s: %w", comp, name, err)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err = buf.WriteTo(w)
	return err
}

//
// internal: load
//

func (e *Engine) load(comp, name string) (*template.Template, error) {
	key := comp + "::" + name
	if e.policy != CacheSkip {
		if t, ok := e.sets.Get(key); ok {
			return t, nil
		}
	}

	page, err := e.find(comp, name)
	if err != nil {
		return nil, err
	}

	t, err := template.New(name).Funcs(funcMap()).ParseFS(layoutFS, "templates/layout.html")
	if err != nil {
		return nil, err
	}
	if _, err := t.New(name + ".html").Parse(string(page)); err != nil {
		return nil, fmt.Errorf("view: parse %s/%s: %w", comp, name, err)
	}

	if e.policy != CacheSkip {
		e.sets.Add(key, t)
	}
	return t, nil
}

// find returns the raw page source following the override chain.
func (e *Engine) find(comp, name string) ([]byte, error) {
	if e.overrides != nil {
		p := path.Join("components", comp, "templates", name+".html")
		if b, err := fs.ReadFile(e.overrides, p); err == nil {
			return b, nil
		}
	}

	e.mu.RLock()
	fsys, ok := e.comps[comp]
	e.mu.RUnlock()
	if ok {
		if b, err := fs.ReadFile(fsys, path.Join("templates", name+".html")); err == nil {
			return b, nil
		}
	}
	return nil, fmt.Errorf("%w: %s/%s", ErrTemplateNotFound, comp, name)
}

//
// func-map
//

func funcMap() template.FuncMap {
	return template.FuncMap{
		"dict":  dict,
		"slug":  routing.Slug,
		"lines": func(s string) []string { return strings.Split(s, "\n") },
	}
}

// dict builds a map in templates: {{ dict "k" 1 "k2" "v" }}.
func dict(kv ...any) map[string]any {
	m := make(map[string]any, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, _ := kv[i].(string)
		m[key] = kv[i+1]
	}
	return m
}
