// internal/form/validate.go
//
// Forms subsystem: server-side validation.
//
// Context
//   The Validator is a pure function of (definition, values, now).  It walks
//   fields in definition order and, per field, runs every applicable check
//   independently: required, length, pattern, and date ceiling.  Nothing
//   short-circuits, so one field can contribute more than one message.  The
//   result is rebuilt from scratch on every call and never patched.
//
// Workflow
//   •  Check verifies that every rule a definition references exists.  Call
//      it once at startup.
//   •  Validate returns the ordered list of user-facing messages.  An empty
//      slice means the values are acceptable.
//
// Notes
//   •  Lengths count characters (runes), not bytes.
//   •  A whitespace-only value fails a required check.
//   •  Date fields parse as YYYY-MM-DD in now's location.
//
//------------------------------------------------------------------------------

package form

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

// DateLayout is the wire format of date inputs.
const DateLayout = "2006-01-02"

// Values holds submitted field values keyed by field name.
type Values map[string]string

// Clone returns an independent copy.
func (v Values) Clone() Values {
	out := make(Values, len(v))
	for k, s := range v {
		out[k] = s
	}
	return out
}

// Validator runs definition checks against a RuleSet.
type Validator struct {
	rules RuleSet
}

// NewValidator returns a Validator bound to rules.  A nil RuleSet means the
// built-in defaults.
func NewValidator(rules RuleSet) *Validator {
	if rules == nil {
		rules = DefaultRules()
	}
	return &Validator{rules: rules}
}

// Check reports the first field in fd that references an unknown rule.
func (v *Validator) Check(fd *FormDef) error {
	for _, f := range fd.Fields {
		if f.Rule == "" {
			continue
		}
		if _, ok := v.rules[f.Rule]; !ok {
			return fmt.Errorf("form %s: field '%s' references unknown rule %q", fd.ID, f.Name, f.Rule)
		}
	}
	return nil
}

// Validate returns every violation in fd order.  It has no side effects.
func (v *Validator) Validate(fd *FormDef, vals Values, now time.Time) []string {
	errs := make([]string, 0, 4)
	for i := range fd.Fields {
		f := &fd.Fields[i]
		errs = append(errs, v.checkField(f, vals[f.Name], now)...)
	}
	return errs
}

// -----------------------------------------------------------------------------
// Field-level checks
// -----------------------------------------------------------------------------

func (v *Validator) checkField(f *FieldDef, raw string, now time.Time) []string {
	var errs []string

	if f.Required && strings.TrimSpace(raw) == "" {
		errs = append(errs, requiredMsg(f))
	}
	if f.MaxLength > 0 && utf8.RuneCountInString(raw) > f.MaxLength {
		errs = append(errs, lengthMsg(f))
	}

	if raw == "" {
		return errs
	}

	switch {
	case f.Rule != "":
		// Unknown rules were rejected by Check; treat a miss as a failure.
		if ok, err := v.rules.Match(f.Rule, raw); err != nil || !ok {
			errs = append(errs, patternMsg(f))
		}
	case f.Pattern != "":
		if !regexMatch(f.Pattern, raw) {
			errs = append(errs, patternMsg(f))
		}
	}

	if f.Type == "date" && !dateAllowed(f, raw, now) {
		errs = append(errs, invalidMsg(f))
	}
	return errs
}

// dateAllowed parses raw and compares it with today plus MaxOffsetDays.
func dateAllowed(f *FieldDef, raw string, now time.Time) bool {
	d, err := time.ParseInLocation(DateLayout, raw, now.Location())
	if err != nil {
		return false
	}
	if f.MaxOffsetDays == nil {
		return true
	}
	ceiling := startOfDay(now).AddDate(0, 0, *f.MaxOffsetDays)
	return !d.After(ceiling)
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func regexMatch(pattern, s string) bool {
	re, err := regexp.Compile(pattern) // pattern pre-validated at load
	return err == nil && re.MatchString(s)
}

// user-friendly default messages
func requiredMsg(f *FieldDef) string {
	if f.RequiredMsg != "" {
		return f.RequiredMsg
	}
	return f.Label + " is required"
}
func lengthMsg(f *FieldDef) string {
	if f.LengthMsg != "" {
		return f.LengthMsg
	}
	return fmt.Sprintf("%s must not exceed %d characters", f.Label, f.MaxLength)
}
func invalidMsg(f *FieldDef) string {
	if f.ErrorMsg != "" {
		return f.ErrorMsg
	}
	return "Please provide a valid " + f.Label
}
func patternMsg(f *FieldDef) string {
	if f.ErrorMsg != "" {
		return f.ErrorMsg
	}
	return f.Label + " does not match the required format"
}
