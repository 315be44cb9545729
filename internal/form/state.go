// internal/form/state.go
//
// Forms subsystem: field store with a display-errors latch.
//
// Context
//   A State holds the current values of one open form, the last computed
//   error list, and a one-way latch.  The latch is off until a validation
//   pass first reports errors; after that every Set re-runs the Validator so
//   feedback stays live while the user edits.
//
// Notes
//   •  State is not safe for concurrent use.  Owners serialise access.
//   •  Errors are always replaced wholesale, never appended.
//
//------------------------------------------------------------------------------

package form

import (
	"errors"
	"fmt"
	"time"
)

// ErrUnknownField is returned by State.Set for names absent from the
// definition.
var ErrUnknownField = errors.New("unknown form field")

// State is the mutable field store for one form instance.
type State struct {
	def   *FormDef
	v     *Validator
	clock func() time.Time

	values  Values
	errs    []string
	display bool
}

// NewState opens a State with definition defaults computed from clock().
func NewState(def *FormDef, v *Validator, clock func() time.Time) *State {
	if clock == nil {
		clock = time.Now
	}
	return &State{
		def:    def,
		v:      v,
		clock:  clock,
		values: Defaults(def, clock()),
	}
}

// Defaults returns the initial values of fd.  Date fields with a default
// offset are set to today plus that many days; everything else is empty.
func Defaults(fd *FormDef, now time.Time) Values {
	vals := make(Values, len(fd.Fields))
	for _, f := range fd.Fields {
		vals[f.Name] = ""
		if f.Type == "date" && f.DefaultOffsetDays != nil {
			vals[f.Name] = startOfDay(now).AddDate(0, 0, *f.DefaultOffsetDays).Format(DateLayout)
		}
	}
	return vals
}

// Def returns the definition backing the state.
func (s *State) Def() *FormDef { return s.def }

// Set assigns one field.  Any string is accepted.  When the latch is on the
// Validator runs against the updated values.
func (s *State) Set(name, value string) error {
	if _, ok := s.def.Field(name); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
	s.values[name] = value
	if s.display {
		s.Validate()
	}
	return nil
}

// Update assigns several fields as one edit.  Unknown names abort the whole
// update before anything is written.  When the latch is on the Validator
// runs once, after every value is committed.
func (s *State) Update(vals Values) error {
	for name := range vals {
		if _, ok := s.def.Field(name); !ok {
			return fmt.Errorf("%w: %q", ErrUnknownField, name)
		}
	}
	for name, value := range vals {
		s.values[name] = value
	}
	if s.display {
		s.Validate()
	}
	return nil
}

// Get returns the current value of name.
func (s *State) Get(name string) string { return s.values[name] }

// Values returns a snapshot of every field.
func (s *State) Values() Values { return s.values.Clone() }

// Errors returns a copy of the current error list.
func (s *State) Errors() []string {
	out := make([]string, len(s.errs))
	copy(out, s.errs)
	return out
}

// SetErrors replaces the error list with msgs.
func (s *State) SetErrors(msgs []string) {
	s.errs = append([]string(nil), msgs...)
}

// DisplayErrors reports whether the latch is on.
func (s *State) DisplayErrors() bool { return s.display }

// Reset clears the error list and the latch.
func (s *State) Reset() {
	s.errs = nil
	s.display = false
}

// Validate recomputes the error list from the current values, stores it, and
// turns the latch on when it is non-empty.
func (s *State) Validate() []string {
	errs := s.v.Validate(s.def, s.values, s.clock())
	s.SetErrors(errs)
	if len(errs) > 0 {
		s.display = true
	}
	return s.Errors()
}
