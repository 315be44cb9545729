// internal/form/rules.go
//
// Forms subsystem: named pattern rules.
//
// Context
//   Format checks that are shared between forms (image links, video links)
//   live in a RuleSet instead of being inlined in each definition.  Fields
//   reference a rule by name; operators may replace or extend the table via
//   the "forms.rules" configuration map.
//
//------------------------------------------------------------------------------

package form

import (
	"fmt"
	"regexp"
)

// Built-in rule names.
const (
	RuleImageURL   = "image_url"
	RuleYouTubeURL = "youtube_url"
)

var builtinRules = map[string]string{
	RuleImageURL:   `(?i)^https?://.*/.*\.(png|gif|webp|jpeg|jpg)\??.*$`,
	RuleYouTubeURL: `^https?://(?:www\.)?youtu(?:be\.com/watch\?v=|\.be/)[\w-]+(?:[&?#]\S*)?$`,
}

// RuleSet maps rule name to compiled pattern.  Treat as read-only once
// handed to a Validator.
type RuleSet map[string]*regexp.Regexp

// DefaultRules returns a fresh copy of the built-in rules.
func DefaultRules() RuleSet {
	rs := make(RuleSet, len(builtinRules))
	for name, pat := range builtinRules {
		rs[name] = regexp.MustCompile(pat)
	}
	return rs
}

// With returns a copy of rs with overrides compiled on top.  An invalid
// pattern aborts the whole merge.
func (rs RuleSet) With(overrides map[string]string) (RuleSet, error) {
	out := make(RuleSet, len(rs)+len(overrides))
	for name, re := range rs {
		out[name] = re
	}
	for name, pat := range overrides {
		re, err := regexp.Compile(pat)
		if err != nil {
			return nil, fmt.Errorf("rule %q: %w", name, err)
		}
		out[name] = re
	}
	return out, nil
}

// Match reports whether s satisfies the named rule.
func (rs RuleSet) Match(name, s string) (bool, error) {
	re, ok := rs[name]
	if !ok {
		return false, fmt.Errorf("unknown rule %q", name)
	}
	return re.MatchString(s), nil
}
