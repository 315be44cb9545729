// internal/track/drafts.go
//
// In-memory registry of open track drafts.
//
// Context
//   GET /tracks/new opens a draft; later posts name it by id.  Drafts are
//   held in a bounded LRU keyed by id and checked against the owner on
//   every lookup.
//
// Eviction
//   •  capacity:    the LRU is full, the least recently used draft goes.
//   •  owner_limit: one user holds perOwner drafts, their oldest goes, so a
//                   single user cannot push everyone else out.
//   •  idle:        Sweep drops drafts untouched for the idle window.
//   A draft with a submission in flight is never dropped by the last two.
//
// Notes
//   •  Lock order is LRU then Form.  Nothing here takes the LRU lock while
//      holding a Form lock.
//
//------------------------------------------------------------------------------

package track

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/yanizio/ingenius/internal/cache"
	"github.com/yanizio/ingenius/internal/form"
	"github.com/yanizio/ingenius/internal/metrics"
)

// Eviction reasons, used as the metric label.
const (
	evictCapacity = "capacity"
	evictOwner    = "owner_limit"
	evictIdle     = "idle"
)

// Drafts holds open forms in a bounded LRU.  Drafts live only in memory and
// are dropped on success, on Discard, under capacity pressure, or by Sweep
// once idle.
type Drafts struct {
	lru      *cache.LRU[string, *Form]
	perOwner int
	def      *form.FormDef
	v        *form.Validator
	creator  Creator
	clock    func() time.Time
}

// NewDrafts builds a registry that opens forms from def.  perOwner caps the
// drafts a single user may hold; zero means only capacity applies.
func NewDrafts(capacity, perOwner int, def *form.FormDef, v *form.Validator, c Creator, clock func() time.Time) *Drafts {
	lru := cache.New[string, *Form](capacity)
	lru.OnEvict(func(string, *Form) {
		metrics.DraftsOpen.Dec()
		metrics.DraftEvictTotal.WithLabelValues(evictCapacity).Inc()
	})
	return &Drafts{lru: lru, perOwner: perOwner, def: def, v: v, creator: c, clock: clock}
}

// Open starts a fresh draft for owner.
func (d *Drafts) Open(owner int64) (*Form, error) {
	f, err := NewForm(owner, d.def, d.v, d.creator, d.clock)
	if err != nil {
		return nil, err
	}
	f.seen.Store(d.clock().UnixNano())
	if d.perOwner > 0 {
		d.trimOwner(owner, d.perOwner-1)
	}
	metrics.DraftsOpen.Inc()
	d.lru.Add(f.ID(), f)
	return f, nil
}

// trimOwner drops owner's oldest drafts until at most keep remain.  Drafts
// mid-submission are skipped.
func (d *Drafts) trimOwner(owner int64, keep int) {
	excess := d.lru.Count(func(_ string, f *Form) bool { return f.Owner() == owner }) - keep
	if excess <= 0 {
		return
	}
	n := d.lru.Prune(func(_ string, f *Form) bool {
		if excess == 0 || f.Owner() != owner || f.Submitting() {
			return false
		}
		excess--
		return true
	})
	if n > 0 {
		metrics.DraftsOpen.Sub(float64(n))
		metrics.DraftEvictTotal.WithLabelValues(evictOwner).Add(float64(n))
	}
}

// Get returns the draft id if it exists and belongs to owner.
func (d *Drafts) Get(id string, owner int64) (*Form, bool) {
	f, ok := d.lru.Get(id)
	if !ok || f.Owner() != owner {
		return nil, false
	}
	f.seen.Store(d.clock().UnixNano())
	return f, true
}

// Discard drops a draft.
func (d *Drafts) Discard(id string) {
	if d.lru.Remove(id) {
		metrics.DraftsOpen.Dec()
	}
}

// Len reports how many drafts are open.
func (d *Drafts) Len() int { return d.lru.Len() }

// Sweep drops every draft untouched for longer than idle.  A draft with a
// submission in flight is kept.
func (d *Drafts) Sweep(idle time.Duration) int {
	now := d.clock().UnixNano()
	n := d.lru.Prune(func(_ string, f *Form) bool {
		return time.Duration(now-f.seen.Load()) > idle && !f.Submitting()
	})
	if n > 0 {
		metrics.DraftsOpen.Sub(float64(n))
		metrics.DraftEvictTotal.WithLabelValues(evictIdle).Add(float64(n))
	}
	return n
}

// Run sweeps every interval until ctx is done.
func (d *Drafts) Run(ctx context.Context, every, idle time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := d.Sweep(idle); n > 0 {
				zap.S().Infow("idle drafts evicted", "count", n, "idle", idle, "open", d.Len())
			}
		}
	}
}
