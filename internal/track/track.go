// internal/track/track.go
//
// Track domain types.
//
// Context
//   A Draft is what the user is composing, keyed by the form field names.
//   A Record is the normalised shape handed to the store-creation
//   collaborator.  A Track is a persisted Record with its identifier.
//
// Notes
//   •  Field names double as persistence keys and JSON names.
//   •  Two spaces after periods.
//
//------------------------------------------------------------------------------

package track

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/yanizio/ingenius/internal/form"
)

// Field names shared by the form definition, the wire record, and the table.
const (
	FieldArtist      = "artist"
	FieldTitle       = "track_title"
	FieldAlbum       = "album"
	FieldLyrics      = "lyrics"
	FieldProducedBy  = "produced_by"
	FieldArtURL      = "track_art"
	FieldReleaseDate = "release_date"
	FieldVideoURL    = "track_url"
)

// Fields lists every draft field in validation order.
var Fields = []string{
	FieldArtist, FieldTitle, FieldAlbum, FieldLyrics,
	FieldProducedBy, FieldArtURL, FieldReleaseDate, FieldVideoURL,
}

var (
	// ErrInvalid means local validation failed; the messages live on the Form.
	ErrInvalid = errors.New("track: draft is invalid")
	// ErrSubmitInFlight is returned while a previous Submit is pending.
	ErrSubmitInFlight = errors.New("track: submission already in flight")
	// ErrNotFound is returned by readers for unknown ids.
	ErrNotFound = errors.New("track: not found")
)

// RejectedError carries validation messages reported by the store.
type RejectedError struct {
	Messages []string
}

func (e *RejectedError) Error() string {
	return "track: rejected: " + strings.Join(e.Messages, "; ")
}

// Draft is a snapshot of the editable fields.
type Draft struct {
	Artist      string
	Title       string
	Album       string
	Lyrics      string
	ProducedBy  string
	ArtURL      string
	ReleaseDate string
	VideoURL    string
}

func draftFrom(v form.Values) Draft {
	return Draft{
		Artist:      v[FieldArtist],
		Title:       v[FieldTitle],
		Album:       v[FieldAlbum],
		Lyrics:      v[FieldLyrics],
		ProducedBy:  v[FieldProducedBy],
		ArtURL:      v[FieldArtURL],
		ReleaseDate: v[FieldReleaseDate],
		VideoURL:    v[FieldVideoURL],
	}
}

// Record normalises the draft to the persistence schema.
func (d Draft) Record() Record {
	return Record{
		Title:       d.Title,
		Artist:      d.Artist,
		Album:       d.Album,
		ReleaseDate: d.ReleaseDate,
		ProducedBy:  d.ProducedBy,
		Lyrics:      d.Lyrics,
		ArtURL:      d.ArtURL,
		VideoURL:    d.VideoURL,
	}
}

// Record is the payload accepted by a Creator.
type Record struct {
	Title       string `json:"track_title"  db:"track_title"`
	Artist      string `json:"artist"       db:"artist"`
	Album       string `json:"album"        db:"album"`
	ReleaseDate string `json:"release_date" db:"release_date"`
	ProducedBy  string `json:"produced_by"  db:"produced_by"`
	Lyrics      string `json:"lyrics"       db:"lyrics"`
	ArtURL      string `json:"track_art"    db:"track_art"`
	VideoURL    string `json:"track_url"    db:"track_url"`
}

// Values returns the record keyed by field name, for server-side validation.
func (r Record) Values() form.Values {
	return form.Values{
		FieldArtist:      r.Artist,
		FieldTitle:       r.Title,
		FieldAlbum:       r.Album,
		FieldLyrics:      r.Lyrics,
		FieldProducedBy:  r.ProducedBy,
		FieldArtURL:      r.ArtURL,
		FieldReleaseDate: r.ReleaseDate,
		FieldVideoURL:    r.VideoURL,
	}
}

// Track is a created record.
type Track struct {
	ID int64 `json:"id" db:"id"`
	Record
	CreatedBy int64     `json:"created_by,omitempty" db:"created_by"`
	CreatedAt time.Time `json:"created_at"           db:"created_at"`
}

// Creator is the store-creation collaborator.  Structured rejections are
// returned as *RejectedError; anything else is an unstructured failure.
type Creator interface {
	Create(ctx context.Context, rec Record) (*Track, error)
}

// Getter loads one track by id, returning ErrNotFound when absent.
type Getter interface {
	Get(ctx context.Context, id int64) (*Track, error)
}

// Store is a Creator that can also read back what it created.
type Store interface {
	Creator
	Getter
}

// Navigator transfers the user to path once a submission succeeds.
type Navigator interface {
	Navigate(path string)
}

// NavigatorFunc adapts a plain function to Navigator.
type NavigatorFunc func(path string)

func (f NavigatorFunc) Navigate(path string) { f(path) }

// DetailPath is the navigation target for a created track.
func DetailPath(id int64) string {
	return "/tracks/" + strconv.FormatInt(id, 10)
}
