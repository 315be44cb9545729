// internal/track/reader.go
//
// Read path for detail pages and GET /api/tracks/{id}.
//
// Context
//   Right after a create the new detail page is the hot read.  Reader sits
//   in front of any Getter and collapses concurrent loads of one id into a
//   single store call via singleflight.
//
// Notes
//   •  The shared call runs detached from the first caller's context, so one
//      client disconnecting does not fail the others in the flight.
//   •  Results are shared; treat them as read-only.
//
//------------------------------------------------------------------------------

package track

import (
	"context"
	"strconv"

	"golang.org/x/sync/singleflight"
)

// Reader collapses concurrent loads of the same id into one store call.
type Reader struct {
	src   Getter
	group singleflight.Group
}

// NewReader wraps src.
func NewReader(src Getter) *Reader { return &Reader{src: src} }

// Get returns the track for id.  Callers sharing a flight share the result,
// so the returned value must be treated as read-only.
func (r *Reader) Get(ctx context.Context, id int64) (*Track, error) {
	v, err, _ := r.group.Do(strconv.FormatInt(id, 10), func() (any, error) {
		return r.src.Get(context.WithoutCancel(ctx), id)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Track), nil
}
