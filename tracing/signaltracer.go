package tracing

import (
	"sync"

	"github.com/sarchlab/schd/datarecording"
	"github.com/sarchlab/schd/sim/hooking"
	"github.com/sarchlab/schd/sim/timing"
)

// SignalTable is the table that SignalTracer writes to.
const SignalTable = "signal"

type signalEntry struct {
	Time      float64
	Component string
	Signal    string
	Value     float64
}

// SignalTracer samples signal sources after every event and records the
// values that changed. It is attached to the engine.
type SignalTracer struct {
	lock       sync.Mutex
	timeTeller timing.TimeTeller
	recorder   datarecording.DataRecorder

	sources []SignalSource
	last    map[string]float64
	changes uint64
}

// NewSignalTracer creates a SignalTracer and its table.
func NewSignalTracer(
	timeTeller timing.TimeTeller,
	recorder datarecording.DataRecorder,
) *SignalTracer {
	recorder.CreateTable(SignalTable, signalEntry{})

	return &SignalTracer{
		timeTeller: timeTeller,
		recorder:   recorder,
		last:       make(map[string]float64),
	}
}

// Register adds a source. Sources are sampled in registration order.
func (t *SignalTracer) Register(src SignalSource) {
	t.lock.Lock()
	defer t.lock.Unlock()

	t.sources = append(t.sources, src)
}

// Func samples the sources after each event.
func (t *SignalTracer) Func(ctx hooking.HookCtx) {
	if ctx.Pos != timing.HookPosAfterEvent {
		return
	}

	t.Sample()
}

// Sample records every signal whose value differs from the last recorded
// one. The first sample of a signal is always recorded.
func (t *SignalTracer) Sample() {
	t.lock.Lock()
	defer t.lock.Unlock()

	now := t.timeTeller.Now()

	for _, src := range t.sources {
		comp := src.Name()

		for _, s := range src.Signals() {
			key := comp + "." + s.Name

			prev, seen := t.last[key]
			if seen && prev == s.Value {
				continue
			}

			t.last[key] = s.Value
			t.changes++
			t.recorder.InsertData(SignalTable, signalEntry{
				Time:      now,
				Component: comp,
				Signal:    s.Name,
				Value:     s.Value,
			})
		}
	}
}

// NumChanges returns how many value changes were recorded.
func (t *SignalTracer) NumChanges() uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.changes
}
