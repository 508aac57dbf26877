package tracing

import (
	"github.com/sarchlab/schd/sim/naming"
)

// A Signal is a named numeric value that a component exposes. Flags are
// exposed as 0 or 1.
type Signal struct {
	Name  string
	Value float64
}

// A SignalSource exposes the current values of its signals.
type SignalSource interface {
	naming.Named

	// Signals returns the signals in a stable order.
	Signals() []Signal
}

// BoolSignal converts a flag to a signal value.
func BoolSignal(b bool) float64 {
	if b {
		return 1
	}

	return 0
}
