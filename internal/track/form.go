// internal/track/form.go
//
// Track form: field store plus submission coordinator.
//
// Context
//   One Form exists per open draft.  Field edits go through typed setters
//   that assign and, once the display-errors latch is on, re-validate.
//   Submit re-validates from scratch and hands a Record to the Creator.
//
// Workflow
//   Idle ──Submit──► validate ──errors──► Idle (ErrInvalid)
//                        │
//                        └─clean─► Submitting ──Create──► Idle
//                                                  ├─ ok:       Navigate
//                                                  ├─ rejected: SetErrors
//                                                  └─ other:    unchanged
//
// Notes
//   •  The lock is released while Create runs so edits keep landing.
//   •  A second Submit during Create returns ErrSubmitInFlight.
//   •  Live edits carry a revision.  One at or below the last seen revision
//      arrived out of order and is dropped, so the newest snapshot wins.
//
//------------------------------------------------------------------------------

package track

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/yanizio/ingenius/internal/form"
	"github.com/yanizio/ingenius/internal/metrics"
)

// Form is safe for concurrent use.
type Form struct {
	id    string
	owner int64
	seen  atomic.Int64 // UnixNano of the last Drafts lookup

	mu         sync.Mutex
	state      *form.State
	submitting bool
	rev        uint64 // highest client revision applied
	creator    Creator
}

// NewForm opens a draft for owner.  def must declare every track field.
func NewForm(owner int64, def *form.FormDef, v *form.Validator, c Creator, clock func() time.Time) (*Form, error) {
	for _, name := range Fields {
		if _, ok := def.Field(name); !ok {
			return nil, fmt.Errorf("track: form %q lacks field %q", def.ID, name)
		}
	}
	return &Form{
		id:      uuid.NewString(),
		owner:   owner,
		state:   form.NewState(def, v, clock),
		creator: c,
	}, nil
}

// ID is the opaque draft identifier.
func (f *Form) ID() string { return f.id }

// Owner is the user id the draft belongs to.
func (f *Form) Owner() int64 { return f.owner }

// Def returns the backing form definition.
func (f *Form) Def() *form.FormDef { return f.state.Def() }

func (f *Form) set(name, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_ = f.state.Set(name, value) // NewForm guarantees the name
}

func (f *Form) SetArtist(v string)      { f.set(FieldArtist, v) }
func (f *Form) SetTitle(v string)       { f.set(FieldTitle, v) }
func (f *Form) SetAlbum(v string)       { f.set(FieldAlbum, v) }
func (f *Form) SetLyrics(v string)      { f.set(FieldLyrics, v) }
func (f *Form) SetProducedBy(v string)  { f.set(FieldProducedBy, v) }
func (f *Form) SetArtURL(v string)      { f.set(FieldArtURL, v) }
func (f *Form) SetReleaseDate(v string) { f.set(FieldReleaseDate, v) }
func (f *Form) SetVideoURL(v string)    { f.set(FieldVideoURL, v) }

// Apply commits a batch of posted edits.  Names outside the track fields
// are ignored.  With the latch on, validation runs once after the batch.
func (f *Form) Apply(vals map[string]string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.apply(vals)
}

// ApplyRev is Apply for a live edit stamped with a client revision.  A
// revision at or below Rev is stale and leaves the draft alone; the result
// reports whether the batch was applied.
func (f *Form) ApplyRev(rev uint64, vals map[string]string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rev <= f.rev {
		return false
	}
	f.rev = rev
	f.apply(vals)
	return true
}

// ApplyFinal applies a full-page post unconditionally and raises Rev to at
// least rev, so live edits sent before it are dropped if they land later.
func (f *Form) ApplyFinal(rev uint64, vals map[string]string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rev = max(f.rev, rev)
	f.apply(vals)
}

// Rev is the highest client revision applied so far.
func (f *Form) Rev() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rev
}

func (f *Form) apply(vals map[string]string) {
	edits := make(form.Values, len(Fields))
	for _, name := range Fields {
		if v, ok := vals[name]; ok {
			edits[name] = v
		}
	}
	_ = f.state.Update(edits)
}

// Draft returns a snapshot of the current values.
func (f *Form) Draft() Draft {
	f.mu.Lock()
	defer f.mu.Unlock()
	return draftFrom(f.state.Values())
}

// Values returns the current values keyed by field name.
func (f *Form) Values() form.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state.Values()
}

// Errors returns the messages currently on display.
func (f *Form) Errors() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state.Errors()
}

// DisplayErrors reports the latch.
func (f *Form) DisplayErrors() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state.DisplayErrors()
}

// Submitting reports whether a Create call is pending.
func (f *Form) Submitting() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submitting
}

// Submit validates the draft and, when clean, creates the track and calls
// nav with its detail path.
//
// Returns ErrSubmitInFlight, ErrInvalid, a *RejectedError (now on display),
// or the Creator's unstructured error (visible state untouched).
func (f *Form) Submit(ctx context.Context, nav Navigator) error {
	f.mu.Lock()
	if f.submitting {
		f.mu.Unlock()
		metrics.SubmissionsTotal.WithLabelValues(metrics.OutcomeInFlight).Inc()
		return ErrSubmitInFlight
	}

	f.state.Reset()
	if errs := f.state.Validate(); len(errs) > 0 {
		f.mu.Unlock()
		metrics.SubmissionsTotal.WithLabelValues(metrics.OutcomeInvalid).Inc()
		return ErrInvalid
	}

	rec := draftFrom(f.state.Values()).Record()
	f.submitting = true
	f.mu.Unlock()

	created, err := f.creator.Create(ctx, rec)
	if err == nil && (created == nil || created.ID <= 0) {
		err = errors.New("track: store returned no track id")
	}

	f.mu.Lock()
	f.submitting = false
	var rej *RejectedError
	switch {
	case err == nil:
	case errors.As(err, &rej):
		f.state.SetErrors(rej.Messages)
	}
	f.mu.Unlock()

	switch {
	case err == nil:
		metrics.SubmissionsTotal.WithLabelValues(metrics.OutcomeCreated).Inc()
	case rej != nil:
		metrics.SubmissionsTotal.WithLabelValues(metrics.OutcomeRejected).Inc()
		return err
	default:
		metrics.SubmissionsTotal.WithLabelValues(metrics.OutcomeFailed).Inc()
		return err
	}

	nav.Navigate(DetailPath(created.ID))
	return nil
}
