package form

import (
	"strings"
	"testing"
	"testing/fstest"
	"time"
)

func TestRender_FieldsAndHidden(t *testing.T) {
	fd := mustTrackDef(t)
	vals := Defaults(fd, fixedNow)
	vals["artist"] = `Jane "JJ" <Doe>`

	out, err := Render(fd, RenderOptions{
		Values:    vals,
		CSRFToken: "tok",
		Hidden:    map[string]string{"draft_id": "d-1"},
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	html := string(out)

	for _, want := range []string{
		`<label for="fld-artist">BY *</label>`,
		`value="Jane &#34;JJ&#34; &lt;Doe&gt;"`,
		`<textarea id="fld-lyrics" name="lyrics"`,
		`type="date" value="2024-03-13"`,
		`<input type="hidden" name="csrf_token" value="tok">`,
		`<input type="hidden" name="draft_id" value="d-1">`,
	} {
		if !strings.Contains(html, want) {
			t.Errorf("output missing %q", want)
		}
	}
	if strings.Contains(html, " required") {
		t.Error("browser-side required must not be emitted")
	}
}

func TestRegistry_LoadFSPrecedence(t *testing.T) {
	override := fstest.MapFS{
		"tracks/forms/new.yaml": {Data: []byte("id: tracks/new\ntitle: Override\nfields: [{name: a, label: A, type: text}]")},
	}
	defaults := fstest.MapFS{
		"components/tracks/forms/new.yaml": {Data: []byte(trackYAML)},
		"components/tracks/forms/README":   {Data: []byte("ignored")},
		"components/tracks/other.yaml":     {Data: []byte("not: a form")},
	}

	reg := NewRegistry()
	if err := reg.LoadFS(override, defaults); err != nil {
		t.Fatalf("LoadFS: %v", err)
	}
	fd, ok := reg.Get("tracks/new")
	if !ok || fd.Title != "Override" {
		t.Fatalf("Get = %+v, %v; want override", fd, ok)
	}
}

func TestCSRF_RoundTrip(t *testing.T) {
	c := NewCSRF([]byte(strings.Repeat("k", 32)))
	tok, err := c.Generate("7")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !c.Verify("7", tok) {
		t.Fatal("token rejected for its subject")
	}
	if c.Verify("8", tok) {
		t.Fatal("token accepted for another subject")
	}
	swap := "A"
	if tok[10] == 'A' {
		swap = "B"
	}
	if c.Verify("7", tok[:10]+swap+tok[11:]) {
		t.Fatal("tampered token accepted")
	}

	c.now = func() time.Time { return time.Now().Add(3 * time.Hour) }
	if c.Verify("7", tok) {
		t.Fatal("expired token accepted")
	}
}
