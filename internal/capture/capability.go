// Package capture supervises the external subprocesses feeding the flow
// record buffer and the rotating packet capture.
package capture

import (
	"context"

	"WebReplay/WebReplay-Go-Agent/internal/flow"
)

// Capability is a supervised external capture mechanism. The orchestrator
// depends only on this interface, never on a concrete process type.
type Capability interface {
	// Start launches the capture mechanism and begins supervision. It
	// returns once the mechanism is launched; supervision continues in the
	// background until the context is canceled or Stop is called.
	Start(ctx context.Context) error
	// Stop terminates the capture mechanism.
	Stop() error
	// Healthy reports whether the mechanism is currently running. An
	// unhealthy feeder degrades capture but never aborts trigger handling.
	Healthy() bool
}

// Sink receives decoded flow records from a feeder.
type Sink interface {
	Write(rec flow.Record)
}
