// internal/track/form_test.go
//
// Coordinator scenarios against a fake Creator.

package track

import (
	"context"
	"errors"
	"os"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/yanizio/ingenius/internal/form"
	"github.com/yanizio/ingenius/internal/metrics"
)

var fixedNow = time.Date(2024, time.March, 10, 9, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func mustDef(t *testing.T) *form.FormDef {
	t.Helper()
	raw, err := os.ReadFile("../../components/tracks/forms/new.yaml")
	if err != nil {
		t.Fatalf("read form: %v", err)
	}
	fd, err := form.ParseDef(raw, "new.yaml")
	if err != nil {
		t.Fatalf("ParseDef: %v", err)
	}
	return fd
}

// fakeCreator records calls and answers with a canned result.  When block
// is non-nil Create waits on it.
type fakeCreator struct {
	mu      sync.Mutex
	calls   []Record
	track   *Track
	err     error
	block   chan struct{}
	entered chan struct{}
}

func (f *fakeCreator) Create(_ context.Context, rec Record) (*Track, error) {
	f.mu.Lock()
	f.calls = append(f.calls, rec)
	f.mu.Unlock()
	if f.entered != nil {
		close(f.entered)
	}
	if f.block != nil {
		<-f.block
	}
	return f.track, f.err
}

func (f *fakeCreator) Calls() []Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Record(nil), f.calls...)
}

type recordingNav struct{ paths []string }

func (n *recordingNav) Navigate(p string) { n.paths = append(n.paths, p) }

func newForm(t *testing.T, c Creator) *Form {
	t.Helper()
	f, err := NewForm(7, mustDef(t), form.NewValidator(nil), c, clock)
	if err != nil {
		t.Fatalf("NewForm: %v", err)
	}
	return f
}

func TestSubmit_EmptyDraft(t *testing.T) {
	c := &fakeCreator{}
	nav := &recordingNav{}
	f := newForm(t, c)

	if err := f.Submit(context.Background(), nav); !errors.Is(err, ErrInvalid) {
		t.Fatalf("Submit = %v, want ErrInvalid", err)
	}
	want := []string{
		"Track must have an artist",
		"Track must have a title",
		"You must enter lyrics for the track",
	}
	if got := f.Errors(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Errors = %#v, want %#v", got, want)
	}
	if !f.DisplayErrors() {
		t.Fatal("latch should be on after a failed submit")
	}
	if len(c.Calls()) != 0 || len(nav.paths) != 0 {
		t.Fatal("invalid draft reached the store")
	}
}

func TestSubmit_Success(t *testing.T) {
	c := &fakeCreator{track: &Track{ID: 42}}
	nav := &recordingNav{}
	f := newForm(t, c)
	f.SetArtist("Jane")
	f.SetTitle("Song")
	f.SetLyrics("La la la")

	if err := f.Submit(context.Background(), nav); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !reflect.DeepEqual(nav.paths, []string{"/tracks/42"}) {
		t.Fatalf("navigated to %v", nav.paths)
	}
	calls := c.Calls()
	if len(calls) != 1 {
		t.Fatalf("Create called %d times", len(calls))
	}
	want := Record{Title: "Song", Artist: "Jane", Lyrics: "La la la", ReleaseDate: "2024-03-13"}
	if calls[0] != want {
		t.Fatalf("record = %+v, want %+v", calls[0], want)
	}
}

func TestSubmit_Rejected(t *testing.T) {
	c := &fakeCreator{err: &RejectedError{Messages: []string{MsgDuplicateTitle}}}
	nav := &recordingNav{}
	f := newForm(t, c)
	f.Apply(map[string]string{"artist": "Jane", "track_title": "Song", "lyrics": "La"})

	err := f.Submit(context.Background(), nav)
	var rej *RejectedError
	if !errors.As(err, &rej) {
		t.Fatalf("Submit = %v, want RejectedError", err)
	}
	if got := f.Errors(); !reflect.DeepEqual(got, []string{MsgDuplicateTitle}) {
		t.Fatalf("Errors = %#v", got)
	}
	if len(nav.paths) != 0 {
		t.Fatal("rejected submit navigated")
	}
	if f.Submitting() {
		t.Fatal("form stuck in Submitting")
	}
}

func TestSubmit_UnstructuredFailureLeavesStateAlone(t *testing.T) {
	boom := errors.New("connection reset")
	c := &fakeCreator{err: boom}
	f := newForm(t, c)
	f.Apply(map[string]string{"artist": "Jane", "track_title": "Song", "lyrics": "La"})

	if err := f.Submit(context.Background(), &recordingNav{}); !errors.Is(err, boom) {
		t.Fatalf("Submit = %v, want %v", err, boom)
	}
	if len(f.Errors()) != 0 || f.DisplayErrors() {
		t.Fatal("unstructured failure changed visible state")
	}
}

func TestSubmit_CreatedWithoutIDIsFailure(t *testing.T) {
	for name, created := range map[string]*Track{"nil": nil, "zero id": {Record: Record{Title: "Song"}}} {
		t.Run(name, func(t *testing.T) {
			f := newForm(t, &fakeCreator{track: created})
			f.Apply(map[string]string{"artist": "Jane", "track_title": "Song", "lyrics": "La"})

			nav := &recordingNav{}
			err := f.Submit(context.Background(), nav)
			var rej *RejectedError
			if err == nil || errors.Is(err, ErrInvalid) || errors.As(err, &rej) {
				t.Fatalf("Submit = %v, want unstructured failure", err)
			}
			if len(nav.paths) != 0 {
				t.Fatalf("navigated to %v", nav.paths)
			}
			if len(f.Errors()) != 0 || f.DisplayErrors() || f.Submitting() {
				t.Fatal("failure changed visible state")
			}
		})
	}
}

func TestSubmit_SecondSubmitWhileInFlight(t *testing.T) {
	c := &fakeCreator{
		track:   &Track{ID: 1},
		block:   make(chan struct{}),
		entered: make(chan struct{}),
	}
	f := newForm(t, c)
	f.Apply(map[string]string{"artist": "Jane", "track_title": "Song", "lyrics": "La"})

	done := make(chan error, 1)
	go func() { done <- f.Submit(context.Background(), &recordingNav{}) }()
	<-c.entered

	if err := f.Submit(context.Background(), &recordingNav{}); !errors.Is(err, ErrSubmitInFlight) {
		t.Fatalf("second Submit = %v, want ErrSubmitInFlight", err)
	}
	// Edits still land while the store call is pending.
	f.SetAlbum("Live")

	close(c.block)
	if err := <-done; err != nil {
		t.Fatalf("first Submit: %v", err)
	}
	if len(c.Calls()) != 1 {
		t.Fatalf("Create called %d times, want 1", len(c.Calls()))
	}
	if f.Draft().Album != "Live" {
		t.Fatal("edit during submit was lost")
	}
}

func TestSubmit_StaleErrorsDoNotBlock(t *testing.T) {
	c := &fakeCreator{track: &Track{ID: 9}}
	nav := &recordingNav{}
	f := newForm(t, c)

	_ = f.Submit(context.Background(), nav) // latch on, three errors
	f.SetArtist("Jane")
	f.SetTitle("Song")
	f.SetLyrics("La")
	if len(f.Errors()) != 0 {
		t.Fatalf("live re-validation left %#v", f.Errors())
	}
	if err := f.Submit(context.Background(), nav); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if len(nav.paths) != 1 || nav.paths[0] != "/tracks/9" {
		t.Fatalf("navigated to %v", nav.paths)
	}
}

func TestNewForm_MissingField(t *testing.T) {
	fd, err := form.ParseDef([]byte("id: x\nfields: [{name: artist, label: A, type: text}]"), "x")
	if err != nil {
		t.Fatalf("ParseDef: %v", err)
	}
	if _, err := NewForm(1, fd, form.NewValidator(nil), &fakeCreator{}, clock); err == nil {
		t.Fatal("expected error for incomplete definition")
	}
}

func TestDrafts_OwnerAndDiscard(t *testing.T) {
	d := NewDrafts(2, 0, mustDef(t), form.NewValidator(nil), &fakeCreator{}, clock)

	f, err := d.Open(7)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, ok := d.Get(f.ID(), 8); ok {
		t.Fatal("draft visible to another user")
	}
	if got, ok := d.Get(f.ID(), 7); !ok || got != f {
		t.Fatal("owner cannot see own draft")
	}

	d.Discard(f.ID())
	if _, ok := d.Get(f.ID(), 7); ok {
		t.Fatal("discarded draft still present")
	}

	evicted := testutil.ToFloat64(metrics.DraftEvictTotal.WithLabelValues(evictCapacity))
	a, _ := d.Open(7)
	_, _ = d.Open(7)
	_, _ = d.Open(7)
	if _, ok := d.Get(a.ID(), 7); ok {
		t.Fatal("oldest draft should be evicted at capacity")
	}
	if got := testutil.ToFloat64(metrics.DraftEvictTotal.WithLabelValues(evictCapacity)) - evicted; got != 1 {
		t.Fatalf("capacity evictions = %v, want 1", got)
	}
	if d.Len() != 2 {
		t.Fatalf("Len = %d, want 2", d.Len())
	}
}

func TestDrafts_OwnerLimit(t *testing.T) {
	d := NewDrafts(8, 2, mustDef(t), form.NewValidator(nil), &fakeCreator{}, clock)
	before := testutil.ToFloat64(metrics.DraftEvictTotal.WithLabelValues(evictOwner))

	a, _ := d.Open(7)
	b, _ := d.Open(7)
	other, _ := d.Open(8)
	c, _ := d.Open(7)

	if _, ok := d.Get(a.ID(), 7); ok {
		t.Fatal("oldest draft of the owner survived the per-owner limit")
	}
	for _, f := range []*Form{b, c, other} {
		if _, ok := d.Get(f.ID(), f.Owner()); !ok {
			t.Fatalf("draft of user %d evicted", f.Owner())
		}
	}
	if d.Len() != 3 {
		t.Fatalf("Len = %d, want 3", d.Len())
	}
	if got := testutil.ToFloat64(metrics.DraftEvictTotal.WithLabelValues(evictOwner)) - before; got != 1 {
		t.Fatalf("owner_limit evictions = %v, want 1", got)
	}
}

func TestForm_ApplyRevDropsStaleEdits(t *testing.T) {
	f := newForm(t, &fakeCreator{})

	if !f.ApplyRev(2, map[string]string{FieldArtist: "Newer"}) {
		t.Fatal("rev 2 not applied")
	}
	if f.ApplyRev(1, map[string]string{FieldArtist: "Older"}) {
		t.Fatal("rev 1 applied after rev 2")
	}
	if f.ApplyRev(2, map[string]string{FieldArtist: "Again"}) {
		t.Fatal("repeated rev applied")
	}
	if got := f.Draft().Artist; got != "Newer" {
		t.Fatalf("artist = %q, want Newer", got)
	}

	f.ApplyFinal(5, map[string]string{FieldArtist: "Posted"})
	if f.Rev() != 5 || f.ApplyRev(4, map[string]string{FieldArtist: "Late"}) {
		t.Fatalf("rev = %d; live edit sent before the post was applied", f.Rev())
	}
	f.ApplyFinal(3, map[string]string{FieldArtist: "Final"})
	if f.Rev() != 5 || f.Draft().Artist != "Final" {
		t.Fatalf("ApplyFinal: rev = %d, artist = %q", f.Rev(), f.Draft().Artist)
	}
}

func TestDrafts_SweepIdle(t *testing.T) {
	now := fixedNow
	tick := func() time.Time { return now }
	c := &fakeCreator{track: &Track{ID: 1}, block: make(chan struct{}), entered: make(chan struct{})}
	d := NewDrafts(8, 0, mustDef(t), form.NewValidator(nil), c, tick)

	stale, _ := d.Open(7)
	busy, _ := d.Open(7)
	busy.Apply(map[string]string{FieldArtist: "A", FieldTitle: "T", FieldLyrics: "L"})
	done := make(chan error, 1)
	go func() { done <- busy.Submit(context.Background(), NavigatorFunc(func(string) {})) }()
	<-c.entered

	now = now.Add(2 * time.Hour)
	fresh, _ := d.Open(7)

	idle := testutil.ToFloat64(metrics.DraftEvictTotal.WithLabelValues(evictIdle))
	if n := d.Sweep(time.Hour); n != 1 {
		t.Fatalf("Sweep = %d, want 1", n)
	}
	if got := testutil.ToFloat64(metrics.DraftEvictTotal.WithLabelValues(evictIdle)) - idle; got != 1 {
		t.Fatalf("idle evictions = %v, want 1", got)
	}
	if _, ok := d.Get(stale.ID(), 7); ok {
		t.Fatal("idle draft survived")
	}
	if _, ok := d.Get(busy.ID(), 7); !ok {
		t.Fatal("draft with a submission in flight was swept")
	}
	if _, ok := d.Get(fresh.ID(), 7); !ok {
		t.Fatal("fresh draft was swept")
	}

	close(c.block)
	if err := <-done; err != nil {
		t.Fatalf("Submit = %v", err)
	}
}
