// internal/form/definition.go
//
// Forms subsystem: YAML definition loader.
//
// Context
//   Each HTML form is declared in a YAML file.  The file defines the form's
//   identifier, title, and an ordered field list.  Every check the server
//   runs (required, length, named pattern rule, date ceiling) lives inline
//   on the field together with its user-facing message, so the order of
//   fields in the file is the order of messages the Validator produces.
//
// Workflow
//   •  ParseDef parses one YAML document and validates structural rules.
//   •  Registry.LoadFS walks one or more file systems (embedded defaults or
//      on-disk overrides), discovers "*.yaml" under "forms/", and registers
//      them.  Sources are passed highest precedence first; the first
//      definition seen for an ID wins.
//   •  Registry.Get offers read-only access to a parsed form by ID.
//
// Style
//   Full sentences, two spaces after periods, Oxford commas.
//
//------------------------------------------------------------------------------

package form

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// -----------------------------------------------------------------------------
// Data structures
// -----------------------------------------------------------------------------

// FormDef represents one form definition loaded from YAML.
//
// ID is namespaced by component, e.g. "tracks/new".
type FormDef struct {
	ID         string     `yaml:"id"`
	Title      string     `yaml:"title"`
	Spellcheck *bool      `yaml:"spellcheck"` // nil leaves the browser default.
	Fields     []FieldDef `yaml:"fields"`
}

// FieldDef describes a single input control and the checks run against it.
type FieldDef struct {
	Name        string `yaml:"name"`        // Submission key.  Required.
	Label       string `yaml:"label"`       // Human-readable label.  Required.
	Type        string `yaml:"type"`        // text, textarea, url, date, email, or password.
	Placeholder string `yaml:"placeholder"` // Optional placeholder text.

	Required    bool   `yaml:"required"`
	RequiredMsg string `yaml:"required_error"`
	MaxLength   int    `yaml:"maxlength"` // Characters, 0 means unset.
	LengthMsg   string `yaml:"length_error"`

	Rule     string `yaml:"rule"`    // Named entry in the RuleSet.
	Pattern  string `yaml:"pattern"` // Inline regex, used when Rule is blank.
	ErrorMsg string `yaml:"error"`   // Pattern or date failure message.

	// Date fields only.  Offsets are whole days relative to "today".
	DefaultOffsetDays *int `yaml:"default_offset_days"`
	MaxOffsetDays     *int `yaml:"max_offset_days"`
}

// Field returns the named field definition.
func (fd *FormDef) Field(name string) (*FieldDef, bool) {
	for i := range fd.Fields {
		if fd.Fields[i].Name == name {
			return &fd.Fields[i], true
		}
	}
	return nil, false
}

// -----------------------------------------------------------------------------
// Registry
// -----------------------------------------------------------------------------

// Registry maps form ID to *FormDef.  Safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	forms map[string]*FormDef
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{forms: make(map[string]*FormDef)}
}

// Get returns a parsed FormDef by ID.  The boolean is false when the ID is
// unknown.
func (r *Registry) Get(id string) (*FormDef, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fd, ok := r.forms[id]
	return fd, ok
}

// Register inserts fd unless a definition with the same ID is already
// present.  It reports whether fd was stored.
func (r *Registry) Register(fd *FormDef) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.forms[fd.ID]; dup {
		return false
	}
	r.forms[fd.ID] = fd
	return true
}

// LoadFS walks every source and registers each "*.yaml" found under a
// "forms" directory.  Sources must be ordered by precedence, overrides
// first.  A missing root is not an error.
func (r *Registry) LoadFS(sources ...fs.FS) error {
	if len(sources) == 0 {
		return errors.New("LoadFS: no sources provided")
	}

	for _, fsys := range sources {
		err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if d.IsDir() || !strings.HasSuffix(d.Name(), ".yaml") {
				return nil
			}
			if path.Base(path.Dir(p)) != "forms" {
				return nil
			}

			raw, err := fs.ReadFile(fsys, p)
			if err != nil {
				return fmt.Errorf("read form file %s: %w", p, err)
			}
			fd, err := ParseDef(raw, p)
			if err != nil {
				return err // fail fast so issues surface loudly.
			}
			r.Register(fd)
			return nil
		})
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

// -----------------------------------------------------------------------------
// Parsing and structural checks
// -----------------------------------------------------------------------------

// ParseDef parses one YAML document, validates its structure, and returns a
// populated FormDef.  src names the document in error messages.
func ParseDef(raw []byte, src string) (*FormDef, error) {
	var fd FormDef
	if err := yaml.Unmarshal(raw, &fd); err != nil {
		return nil, fmt.Errorf("parse YAML %s: %w", src, err)
	}
	if err := validateFormDef(&fd, src); err != nil {
		return nil, err
	}
	return &fd, nil
}

var fieldTypes = map[string]bool{
	"text":     true,
	"textarea": true,
	"url":      true,
	"date":     true,
	"email":    true,
	"password": true,
}

func validateFormDef(fd *FormDef, src string) error {
	if fd.ID == "" {
		return fmt.Errorf("form definition %s: missing required 'id'", src)
	}
	if len(fd.Fields) == 0 {
		return fmt.Errorf("form definition %s: must have 'fields'", src)
	}

	seen := make(map[string]struct{}, len(fd.Fields))
	for i := range fd.Fields {
		f := &fd.Fields[i]
		if err := validateField(f, src); err != nil {
			return err
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("form %s: duplicate field name '%s'", src, f.Name)
		}
		seen[f.Name] = struct{}{}
	}
	return nil
}

// validateField confirms that essential attributes are present and sane.
func validateField(f *FieldDef, src string) error {
	if f.Name == "" {
		return fmt.Errorf("form %s: field missing 'name'", src)
	}
	if f.Label == "" {
		return fmt.Errorf("form %s: field '%s' missing 'label'", src, f.Name)
	}
	if !fieldTypes[f.Type] {
		return fmt.Errorf("form %s: field '%s' has unsupported type %q", src, f.Name, f.Type)
	}
	if f.MaxLength < 0 {
		return fmt.Errorf("form %s: field '%s' maxlength cannot be negative", src, f.Name)
	}
	if f.Rule != "" && f.Pattern != "" {
		return fmt.Errorf("form %s: field '%s' cannot have both 'rule' and 'pattern'", src, f.Name)
	}
	if f.Pattern != "" {
		if _, err := regexp.Compile(f.Pattern); err != nil {
			return fmt.Errorf("form %s: field '%s' invalid regex pattern: %v", src, f.Name, err)
		}
	}
	if f.Type != "date" && (f.DefaultOffsetDays != nil || f.MaxOffsetDays != nil) {
		return fmt.Errorf("form %s: field '%s' day offsets apply to date fields only", src, f.Name)
	}
	return nil
}
