// Package orchestrator ties the capture pipeline together: it supervises
// the capture feeders, consumes trigger events, extracts the surrounding
// windows and hands them to archiving and reconstruction.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"WebReplay/WebReplay-Go-Agent/internal/capture"
	"WebReplay/WebReplay-Go-Agent/internal/reconstruct"
	"WebReplay/WebReplay-Go-Agent/internal/trigger"
	"WebReplay/WebReplay-Go-Agent/internal/window"
)

// ErrTooManyDeferred means the in-flight future-window table is full. A
// full table is a sign the trigger source is misfiring; the agent treats
// it as fatal rather than silently dropping windows.
var ErrTooManyDeferred = errors.New("too many deferred windows in flight")

const defaultMaxInFlight = 64

// Extractor materializes capture windows around a reference time.
type Extractor interface {
	Extract(triggerTime time.Time, duration time.Duration, dir window.Direction) (*window.CaptureWindow, *window.Deferred)
}

// Reconstructor turns an extracted window into browsable page artifacts.
type Reconstructor interface {
	Reconstruct(win *window.CaptureWindow) (*reconstruct.Result, error)
	WriteIndex(res *reconstruct.Result) error
}

// Config tunes the orchestrator's window sizes and backpressure limit.
type Config struct {
	PastWindow   time.Duration
	FutureWindow time.Duration
	MaxInFlight  int
}

type namedCapability struct {
	name string
	cap  capture.Capability
}

// Orchestrator is the per-trigger pipeline driver. One instance runs for
// the lifetime of the agent.
type Orchestrator struct {
	cfg  Config
	ext  Extractor
	rec  Reconstructor
	arch Archiver
	caps []namedCapability

	mu       sync.Mutex
	inflight map[uuid.UUID]*time.Timer

	wg  sync.WaitGroup
	now func() time.Time
}

// New creates an orchestrator. Reconstructor and Archiver may be nil to
// disable the respective stage.
func New(cfg Config, ext Extractor, rec Reconstructor, arch Archiver) *Orchestrator {
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = defaultMaxInFlight
	}
	return &Orchestrator{
		cfg:      cfg,
		ext:      ext,
		rec:      rec,
		arch:     arch,
		inflight: make(map[uuid.UUID]*time.Timer),
		now:      time.Now,
	}
}

// AddCapability registers a capture feeder to supervise. Must be called
// before Run.
func (o *Orchestrator) AddCapability(name string, c capture.Capability) {
	o.caps = append(o.caps, namedCapability{name: name, cap: c})
}

// Status reports each registered capability's health.
func (o *Orchestrator) Status() map[string]bool {
	status := make(map[string]bool, len(o.caps))
	for _, nc := range o.caps {
		status[nc.name] = nc.cap.Healthy()
	}
	return status
}

// InFlight returns the number of deferred future windows awaiting
// resolution.
func (o *Orchestrator) InFlight() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.inflight)
}

// OnTrigger extracts both windows around the event: the past window is
// materialized synchronously so later buffer writes cannot leak into it,
// then processed off the trigger path; the future window is scheduled for
// resolution once its range has finished recording.
func (o *Orchestrator) OnTrigger(ev trigger.Event) error {
	log.Printf("[orchestrator] Trigger from %s at %s: %s", ev.Source, ev.Timestamp.Format(time.RFC3339), ev.Detail)

	if o.cfg.PastWindow > 0 {
		win, _ := o.ext.Extract(ev.Timestamp, o.cfg.PastWindow, window.Past)
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			o.process(win, window.Past, o.cfg.PastWindow, ev.Timestamp)
		}()
	}

	if o.cfg.FutureWindow > 0 {
		_, def := o.ext.Extract(ev.Timestamp, o.cfg.FutureWindow, window.Future)
		if err := o.schedule(def); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) schedule(def *window.Deferred) error {
	o.mu.Lock()
	if len(o.inflight) >= o.cfg.MaxInFlight {
		o.mu.Unlock()
		return fmt.Errorf("%w (%d)", ErrTooManyDeferred, o.cfg.MaxInFlight)
	}

	wait := def.ResolveAt.Sub(o.now())
	if wait < 0 {
		wait = 0
	}
	o.wg.Add(1)
	o.inflight[def.ID] = time.AfterFunc(wait, func() {
		defer o.wg.Done()
		o.mu.Lock()
		delete(o.inflight, def.ID)
		o.mu.Unlock()
		o.process(def.Resolve(), window.Future, def.Duration, def.ResolveAt)
	})
	o.mu.Unlock()

	log.Printf("[orchestrator] Deferred %s window %s, resolving at %s",
		def.Duration, def.ID, def.ResolveAt.Format(time.RFC3339))
	return nil
}

func (o *Orchestrator) process(win *window.CaptureWindow, dir window.Direction, duration time.Duration, ref time.Time) {
	if !win.Complete {
		log.Printf("[orchestrator] Window %s_%s is partially outside retention, archiving what was covered",
			dir, ref.Format(time.RFC3339))
	}

	if o.arch != nil {
		out, err := o.arch.Archive(win, dir, duration, ref)
		if err != nil {
			log.Printf("[orchestrator] Failed to archive %s window: %v", dir, err)
		} else {
			log.Printf("[orchestrator] Archived %s window: %d records to %s, %d packets",
				dir, len(win.Records), out.HTTPPath, out.Packets)
		}
	}

	if o.rec != nil {
		res, err := o.rec.Reconstruct(win)
		if err != nil {
			log.Printf("[orchestrator] Failed to reconstruct %s window: %v", dir, err)
			return
		}
		if err := o.rec.WriteIndex(res); err != nil {
			log.Printf("[orchestrator] Failed to write index: %v", err)
		}
	}
}

// Run starts the capabilities and consumes trigger events until ctx is
// cancelled. In-flight deferred windows are abandoned at shutdown; their
// packet trail survives in the rotating capture for a later offline pass.
func (o *Orchestrator) Run(ctx context.Context, src trigger.Source) error {
	for _, nc := range o.caps {
		if err := nc.cap.Start(ctx); err != nil {
			return fmt.Errorf("failed to start %s: %w", nc.name, err)
		}
		log.Printf("[orchestrator] Started capability: %s", nc.name)
	}
	defer o.stopCapabilities()

	srcErr := make(chan error, 1)
	go func() { srcErr <- src.Run(ctx) }()

	for {
		select {
		case <-ctx.Done():
			o.drain()
			return ctx.Err()
		case err := <-srcErr:
			o.drain()
			if err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("trigger source failed: %w", err)
			}
			return err
		case ev := <-src.Events():
			if err := o.OnTrigger(ev); err != nil {
				o.drain()
				return err
			}
		}
	}
}

func (o *Orchestrator) stopCapabilities() {
	for _, nc := range o.caps {
		if err := nc.cap.Stop(); err != nil {
			log.Printf("[orchestrator] Error stopping %s: %v", nc.name, err)
		}
	}
}

// drain cancels pending deferred timers and waits for running window
// processing to finish.
func (o *Orchestrator) drain() {
	o.mu.Lock()
	for id, t := range o.inflight {
		if t.Stop() {
			o.wg.Done()
		}
		delete(o.inflight, id)
	}
	o.mu.Unlock()
	o.wg.Wait()
}
