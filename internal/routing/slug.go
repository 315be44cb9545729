// internal/routing/slug.go
//
// Permalink helpers for detail pages.
//
// A permalink is `base/{slug}`, where the slug is derived from display
// text (artist and title for tracks).  The slug is cosmetic: handlers
// resolve on the base alone and redirect to the canonical form.
//
// Slug rules
// ----------
//   • Parts are joined with a space, then lower-cased.
//   • Every run of characters outside [a-z0-9] becomes one "-".  Non-ASCII
//     is dropped, there is no transliteration.
//   • Leading and trailing "-" are trimmed, and the result is capped at
//     maxSlug bytes without ending on "-".
//   • Empty input yields fallbackSlug so the path never ends in "/".

package routing

import "strings"

const (
	maxSlug      = 100
	fallbackSlug = "item"
)

// Slug reduces parts to lower-kebab ASCII.
func Slug(parts ...string) string {
	src := strings.ToLower(strings.Join(parts, " "))

	out := make([]byte, 0, min(len(src), maxSlug))
	dash := true // suppresses a leading "-"
	for _, r := range src {
		if len(out) >= maxSlug {
			break
		}
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			out = append(out, byte(r))
			dash = false
			continue
		}
		if !dash {
			out = append(out, '-')
			dash = true
		}
	}

	s := strings.TrimRight(string(out), "-")
	if s == "" {
		return fallbackSlug
	}
	return s
}

// Permalink appends the slug of parts to base.
func Permalink(base string, parts ...string) string {
	return "/" + strings.Trim(base, "/") + "/" + Slug(parts...)
}

// Canonical reports whether path already is the permalink.  A path of
// exactly base (no slug segment) also counts, since the slug is optional.
func Canonical(path, base, permalink string) bool {
	path = strings.TrimRight(path, "/")
	return path == permalink || path == "/"+strings.Trim(base, "/")
}
