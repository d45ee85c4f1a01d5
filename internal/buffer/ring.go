// Package buffer implements the rotating segment buffer holding the most
// recent slice of captured traffic.
package buffer

import (
	"sync"
	"time"

	"WebReplay/WebReplay-Go-Agent/internal/flow"
)

// Segment is one fixed-duration slice of the buffer. Once Closed, its record
// slice is never appended to again.
type Segment struct {
	Index         int
	Start         time.Time
	End           time.Time
	Closed        bool
	Records       []flow.Record
	RawCaptureRef string
}

// Overlaps reports whether the segment's [Start, End) intersects
// [start, end).
func (s *Segment) Overlaps(start, end time.Time) bool {
	return s.Start.Before(end) && start.Before(s.End)
}

// Ring is a fixed-size ring of time-sliced segments. A single writer appends
// records; readers take snapshot copies and are never blocked by the writer
// beyond the append's critical section.
type Ring struct {
	mu    sync.RWMutex
	slots int
	slice time.Duration
	segs  []*Segment // oldest first, at most slots entries
	seq   int

	now    func() time.Time
	refFor func(start time.Time) string
}

// NewRing creates a ring with the given slot count and slice duration.
func NewRing(slots int, slice time.Duration) *Ring {
	if slots < 1 {
		slots = 1
	}
	return &Ring{
		slots: slots,
		slice: slice,
		now:   time.Now,
	}
}

// SetRawCaptureRef installs a hook producing the raw-capture reference
// recorded on each segment as it opens (typically the companion packet
// capture location covering the segment's interval).
func (r *Ring) SetRawCaptureRef(fn func(start time.Time) string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refFor = fn
}

// Write appends a record to the currently open segment, rolling to a new
// segment once the slice duration has elapsed and evicting the oldest
// segment when the ring is full.
func (r *Ring) Write(rec flow.Record) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ts := rec.Timestamp
	if ts.IsZero() {
		ts = r.now()
		rec.Timestamp = ts
	}

	cur := r.openLocked(ts)
	cur.Records = append(cur.Records, rec)
}

// openLocked returns the open segment for ts, rolling and evicting as
// needed. Caller holds the write lock.
func (r *Ring) openLocked(ts time.Time) *Segment {
	if n := len(r.segs); n > 0 {
		cur := r.segs[n-1]
		if !cur.Closed && ts.Sub(cur.Start) < r.slice {
			return cur
		}
		cur.Closed = true
	}

	seg := &Segment{
		Index: r.seq,
		Start: ts,
		End:   ts.Add(r.slice),
	}
	r.seq++
	if r.refFor != nil {
		seg.RawCaptureRef = r.refFor(ts)
	}
	r.segs = append(r.segs, seg)
	if len(r.segs) > r.slots {
		// Oldest segment is irrecoverably gone.
		r.segs = r.segs[1:]
	}
	return seg
}

// Overlapping returns snapshot copies, in time order, of every segment whose
// interval intersects [start, end). Closed segments share their record
// slices (read-only after close); the open segment's records are copied so
// later writes cannot affect an extraction in progress.
func (r *Ring) Overlapping(start, end time.Time) []Segment {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Segment
	for _, s := range r.segs {
		if !s.Overlaps(start, end) {
			continue
		}
		cp := *s
		if !s.Closed {
			cp.Records = append([]flow.Record(nil), s.Records...)
		}
		out = append(out, cp)
	}
	return out
}

// CoverageStart returns the start time of the oldest retained segment, or
// the zero time when nothing has been recorded yet.
func (r *Ring) CoverageStart() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.segs) == 0 {
		return time.Time{}
	}
	return r.segs[0].Start
}

// SegmentCount returns the number of retained segments.
func (r *Ring) SegmentCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.segs)
}

// Slice returns the fixed segment duration.
func (r *Ring) Slice() time.Duration { return r.slice }

// Slots returns the fixed ring capacity.
func (r *Ring) Slots() int { return r.slots }
