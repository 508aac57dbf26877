// Package timing provides the simulated clock and the discrete event engine.
package timing

import (
	"github.com/sarchlab/schd/sim/hooking"
)

// TimeTeller can be used to get the current time.
type TimeTeller interface {
	Now() VTimeInSec
}

// EventScheduler can be used to schedule future events.
type EventScheduler interface {
	TimeTeller

	// Schedule registers an event to be handled in the future.
	Schedule(e Event)

	// Cancel removes a scheduled event that has not been handled yet. It
	// returns false if the event is not pending.
	Cancel(e Event) bool
}

// An Engine is a unit that keeps the discrete event simulation run.
type Engine interface {
	hooking.Hookable
	EventScheduler

	// Run will process all the events until the simulation finishes. The
	// first error returned by a handler stops the run.
	Run() error

	// RunUntil processes events no later than t and then advances the clock
	// to t. Later events stay queued.
	RunUntil(t VTimeInSec) error

	// Pause will pause the simulation until continue is called.
	Pause()

	// Continue will continue the paused simulation
	Continue()
}
