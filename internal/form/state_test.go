package form

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

func newTestState(t *testing.T) *State {
	t.Helper()
	return NewState(mustTrackDef(t), NewValidator(nil), func() time.Time { return fixedNow })
}

func TestState_Defaults(t *testing.T) {
	s := newTestState(t)
	if got := s.Get("release_date"); got != "2024-03-13" {
		t.Fatalf("release_date default = %q, want 2024-03-13", got)
	}
	if s.DisplayErrors() || len(s.Errors()) != 0 {
		t.Fatal("fresh state must have no errors and the latch off")
	}
}

func TestState_SetDoesNotValidateBeforeLatch(t *testing.T) {
	s := newTestState(t)
	if err := s.Set("album", "this album name is far too long to be accepted"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if len(s.Errors()) != 0 {
		t.Fatalf("errors before latch: %#v", s.Errors())
	}
}

func TestState_LatchRevalidatesOnEdit(t *testing.T) {
	s := newTestState(t)

	errs := s.Validate()
	if len(errs) != 3 || !s.DisplayErrors() {
		t.Fatalf("Validate = %#v, latch = %v", errs, s.DisplayErrors())
	}

	_ = s.Set("artist", "Jane")
	want := []string{"Track must have a title", "You must enter lyrics for the track"}
	if got := s.Errors(); !reflect.DeepEqual(got, want) {
		t.Fatalf("after artist edit = %#v, want %#v", got, want)
	}

	_ = s.Set("track_title", "Song")
	_ = s.Set("lyrics", "La la la")
	if got := s.Errors(); len(got) != 0 {
		t.Fatalf("stale errors survived: %#v", got)
	}
	if !s.DisplayErrors() {
		t.Fatal("latch must stay on once set")
	}
}

func TestState_SetErrorsReplaces(t *testing.T) {
	s := newTestState(t)
	s.SetErrors([]string{"a", "b"})
	s.SetErrors([]string{"Title already exists"})
	if got := s.Errors(); !reflect.DeepEqual(got, []string{"Title already exists"}) {
		t.Fatalf("Errors = %#v", got)
	}

	s.Reset()
	if len(s.Errors()) != 0 || s.DisplayErrors() {
		t.Fatal("Reset must clear errors and latch")
	}
}

func TestState_UnknownField(t *testing.T) {
	s := newTestState(t)
	if err := s.Set("genre", "pop"); !errors.Is(err, ErrUnknownField) {
		t.Fatalf("err = %v, want ErrUnknownField", err)
	}
}

func TestState_UpdateIsAtomic(t *testing.T) {
	s := newTestState(t)
	s.Validate()

	err := s.Update(Values{"artist": "Jane", "genre": "pop"})
	if !errors.Is(err, ErrUnknownField) {
		t.Fatalf("err = %v, want ErrUnknownField", err)
	}
	if s.Get("artist") != "" {
		t.Fatal("partial update committed")
	}

	if err := s.Update(Values{"artist": "Jane", "track_title": "Song", "lyrics": "La"}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got := s.Errors(); len(got) != 0 {
		t.Fatalf("errors after batch fix = %#v", got)
	}
}

func TestState_ValuesIsSnapshot(t *testing.T) {
	s := newTestState(t)
	vals := s.Values()
	vals["artist"] = "mutated"
	if s.Get("artist") != "" {
		t.Fatal("Values must return a copy")
	}
}
