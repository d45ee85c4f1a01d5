// Package trigger delivers external alert events to the orchestrator.
package trigger

import (
	"context"
	"time"
)

// Event is a single alert carrying the time it was observed.
type Event struct {
	Timestamp time.Time
	Source    string
	Detail    string
}

// Source produces alert events. The core assumes only that it fires zero or
// more times, each event carrying a timestamp.
type Source interface {
	// Events returns the channel on which alerts are delivered.
	Events() <-chan Event
	// Run watches for alerts until the context is canceled.
	Run(ctx context.Context) error
}
