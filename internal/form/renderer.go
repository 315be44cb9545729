// internal/form/renderer.go
//
// Forms subsystem: HTML renderer.
//
// Context
//   Given a parsed FormDef this file converts the definition into safe,
//   accessible field markup.  The surrounding <form> element, the error list,
//   and the submit button belong to the page template; the renderer only
//   emits the inputs plus hidden meta inputs (CSRF token and any caller
//   supplied values such as a draft ID).
//
// Style
//   Output HTML is plain; the stylesheet hooks on .form-field.
//   Each input gets id="fld-{name}" and is wrapped in <div class="form-field">.
//
//------------------------------------------------------------------------------

package form

import (
	"bytes"
	"fmt"
	"html"
	"html/template"
	"sort"
	"strconv"
)

// RenderOptions bundles optional parameters influencing HTML output.
type RenderOptions struct {
	// Values pre-populates inputs, keyed by field name.
	Values Values
	// CSRFToken is written as a hidden "csrf_token" input when non-empty.
	CSRFToken string
	// Hidden holds extra hidden inputs, written in key order.
	Hidden map[string]string
}

// Render returns the field markup for fd.
func Render(fd *FormDef, opts RenderOptions) (template.HTML, error) {
	var buf bytes.Buffer
	buf.WriteString(`<div class="ingenius-form" data-form="` + html.EscapeString(fd.ID) + `">` + "\n")

	for i := range fd.Fields {
		if err := writeField(&buf, &fd.Fields[i], opts.Values[fd.Fields[i].Name]); err != nil {
			return "", err
		}
	}

	if opts.CSRFToken != "" {
		writeHidden(&buf, "csrf_token", opts.CSRFToken)
	}
	keys := make([]string, 0, len(opts.Hidden))
	for k := range opts.Hidden {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		writeHidden(&buf, k, opts.Hidden[k])
	}

	buf.WriteString(`</div>`)
	return template.HTML(buf.String()), nil
}

// writeField emits HTML for an individual field, applying the current value
// and validation hint attributes.
func writeField(buf *bytes.Buffer, f *FieldDef, val string) error {
	name := html.EscapeString(f.Name)
	buf.WriteString(`<div class="form-field">` + "\n")

	label := html.EscapeString(f.Label)
	if f.Required {
		label += " *"
	}
	buf.WriteString(`<label for="fld-` + name + `">` + label + `</label>` + "\n")

	switch f.Type {
	case "text", "url", "date", "email":
		buf.WriteString(`<input id="fld-` + name + `" name="` + name + `" type="` + f.Type + `"`)
		writeHints(buf, f)
		buf.WriteString(` value="` + html.EscapeString(val) + `">` + "\n")

	case "password":
		// Never echoed back.
		buf.WriteString(`<input id="fld-` + name + `" name="` + name + `" type="password"`)
		writeHints(buf, f)
		buf.WriteString(`>` + "\n")

	case "textarea":
		buf.WriteString(`<textarea id="fld-` + name + `" name="` + name + `"`)
		writeHints(buf, f)
		buf.WriteString(`>` + html.EscapeString(val) + `</textarea>` + "\n")

	default:
		return fmt.Errorf("writeField: unsupported field type %q in form field %s", f.Type, f.Name)
	}

	buf.WriteString(`</div>` + "\n")
	return nil
}

// writeHints adds placeholder and maxlength hints.  Browser-side "required"
// is never emitted; the server owns the messages and their order.
func writeHints(buf *bytes.Buffer, f *FieldDef) {
	if f.Placeholder != "" {
		buf.WriteString(` placeholder="` + html.EscapeString(f.Placeholder) + `"`)
	}
	if f.MaxLength > 0 {
		buf.WriteString(` data-maxlength="` + strconv.Itoa(f.MaxLength) + `"`)
	}
}

func writeHidden(buf *bytes.Buffer, name, val string) {
	buf.WriteString(`<input type="hidden" name="` + html.EscapeString(name) + `" value="` + html.EscapeString(val) + `">` + "\n")
}
