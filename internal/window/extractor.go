// Package window resolves and materializes time-bounded slices of the
// rotating capture buffer.
package window

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"WebReplay/WebReplay-Go-Agent/internal/buffer"
	"WebReplay/WebReplay-Go-Agent/internal/flow"
)

// Direction selects which side of the trigger time a window covers.
type Direction int

const (
	// Past extracts [trigger-duration, trigger) from already-captured data.
	Past Direction = iota
	// Future extracts [trigger, trigger+duration), which has not finished
	// recording yet and therefore resolves deferred.
	Future
)

func (d Direction) String() string {
	if d == Future {
		return "future"
	}
	return "past"
}

// CaptureWindow is the materialized result of an extraction. It holds its
// own record slice and is independent of subsequent buffer rotation.
type CaptureWindow struct {
	RequestedStart time.Time
	RequestedEnd   time.Time
	Records        []flow.Record
	RawCaptureRefs []string
	// Complete is false when the requested range is not fully covered by
	// retained segments, or when its tail is still in the future.
	Complete bool
}

// Deferred is a future-direction extraction waiting for its window to
// finish recording. The orchestrator resolves it once ResolveAt has passed.
type Deferred struct {
	ID          uuid.UUID
	TriggerTime time.Time
	Duration    time.Duration
	ResolveAt   time.Time

	ext *Extractor
}

// Resolve materializes the deferred window. Extraction runs exactly as for
// a past window, with the window end as the new reference point.
func (d *Deferred) Resolve() *CaptureWindow {
	return d.ext.extractPast(d.TriggerTime.Add(d.Duration), d.Duration)
}

// Extractor materializes capture windows from the segment ring.
type Extractor struct {
	ring *buffer.Ring
	now  func() time.Time
}

// NewExtractor creates an extractor over the given ring.
func NewExtractor(ring *buffer.Ring) *Extractor {
	return &Extractor{ring: ring, now: time.Now}
}

// Extract resolves a window around the trigger time. Past windows are
// materialized immediately and return a nil Deferred; future windows return
// a nil CaptureWindow and a Deferred handle. Ranges partially or fully
// outside retention yield a degraded but valid result, never an error.
func (e *Extractor) Extract(trigger time.Time, duration time.Duration, dir Direction) (*CaptureWindow, *Deferred) {
	if dir == Future {
		return nil, &Deferred{
			ID:          uuid.New(),
			TriggerTime: trigger,
			Duration:    duration,
			ResolveAt:   trigger.Add(duration),
			ext:         e,
		}
	}
	return e.extractPast(trigger, duration), nil
}

func (e *Extractor) extractPast(ref time.Time, duration time.Duration) *CaptureWindow {
	start := ref.Add(-duration)
	segs := e.ring.Overlapping(start, ref)

	var records []flow.Record
	var refs []string
	seenRef := map[string]bool{}
	for _, seg := range segs {
		for _, rec := range seg.Records {
			if rec.Timestamp.Before(start) || !rec.Timestamp.Before(ref) {
				continue
			}
			records = append(records, rec)
		}
		if seg.RawCaptureRef != "" && !seenRef[seg.RawCaptureRef] {
			seenRef[seg.RawCaptureRef] = true
			refs = append(refs, seg.RawCaptureRef)
		}
	}

	records = mergeRecords(records)

	complete := !ref.After(e.now())
	if complete {
		cov := e.ring.CoverageStart()
		if cov.IsZero() || cov.After(start) {
			complete = false
		}
	}

	return &CaptureWindow{
		RequestedStart: start,
		RequestedEnd:   ref,
		Records:        records,
		RawCaptureRefs: refs,
		Complete:       complete,
	}
}

// mergeRecords re-sorts concatenated segment records by timestamp and drops
// duplicates (same url, timestamp and status, possible at segment
// boundaries), keeping the first occurrence.
func mergeRecords(records []flow.Record) []flow.Record {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp.Before(records[j].Timestamp)
	})
	seen := make(map[string]bool, len(records))
	out := records[:0]
	for _, rec := range records {
		key := rec.Key()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, rec)
	}
	return out
}

// Name returns the persisted artifact stem for a window, reproducing the
// established naming convention, e.g. "http_past10_1700000000".
func Name(prefix string, dir Direction, duration time.Duration, ref time.Time) string {
	return fmt.Sprintf("%s_%s%d_%d", prefix, dir, int(duration.Minutes()), ref.Unix())
}

// WriteHTTP persists the window's records as a JSON array in the capture
// feed wire format. Returns the written file path.
func WriteHTTP(win *CaptureWindow, dir, stem string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create window output dir: %w", err)
	}
	records := win.Records
	if records == nil {
		records = []flow.Record{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode window: %w", err)
	}
	path := filepath.Join(dir, stem+".json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write window file: %w", err)
	}
	return path, nil
}

// ReadHTTP loads a persisted window file back into a CaptureWindow. Used by
// the offline reconstruction tool.
func ReadHTTP(path string) (*CaptureWindow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read window file: %w", err)
	}
	var records []flow.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse window file: %w", err)
	}
	win := &CaptureWindow{Records: records, Complete: true}
	if len(records) > 0 {
		win.RequestedStart = records[0].Timestamp
		win.RequestedEnd = records[len(records)-1].Timestamp.Add(time.Nanosecond)
	}
	return win, nil
}
