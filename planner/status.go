package planner

import (
	"github.com/sarchlab/schd/sim/timing"
	"github.com/sarchlab/schd/tracing"
)

// ThreadStatus is a snapshot of a thread.
type ThreadStatus struct {
	Name     string
	Priority float64
	State    ThreadState
	Index    int
	Runs     uint64
	Active   []string
}

// Threads returns the threads in name order.
func (c *Comp) Threads() []ThreadStatus {
	c.Lock()
	defer c.Unlock()

	out := make([]ThreadStatus, len(c.threads))
	for i, th := range c.threads {
		out[i] = ThreadStatus{
			Name:     th.name,
			Priority: th.priority,
			State:    th.state,
			Index:    th.index,
			Runs:     th.runs,
			Active:   append([]string(nil), th.active...),
		}
	}

	return out
}

// Thread returns the status of a thread.
func (c *Comp) Thread(name string) (ThreadStatus, bool) {
	for _, s := range c.Threads() {
		if s.Name == name {
			return s, true
		}
	}

	return ThreadStatus{}, false
}

// Registry returns the entries of the event registry in firing order.
func (c *Comp) Registry() []EntryStatus {
	c.Lock()
	defer c.Unlock()

	out := make([]EntryStatus, len(c.registry))
	for i, e := range c.registry {
		out[i] = e.status()
	}

	return out
}

// RegistrySize returns the number of entries in the event registry.
func (c *Comp) RegistrySize() int {
	c.Lock()
	defer c.Unlock()

	return len(c.registry)
}

// UnitStatus is what the planner knows about an execution unit.
type UnitStatus struct {
	Name   string
	Thread string
	Bound  bool
	Start  timing.VTimeInSec
	End    timing.VTimeInSec
	Jobs   uint64
}

// Units returns the execution units in name order.
func (c *Comp) Units() []UnitStatus {
	c.Lock()
	defer c.Unlock()

	out := make([]UnitStatus, len(c.units))
	for i, u := range c.units {
		out[i] = UnitStatus{
			Name:   u.name,
			Thread: u.bound.OrElse(""),
			Bound:  u.bound.Present(),
			Start:  u.start,
			End:    u.end,
			Jobs:   u.jobs,
		}
	}

	return out
}

// Latencies returns, per task, the time from dispatch to the completion of
// the last unit, in completion order.
func (c *Comp) Latencies() map[string][]timing.VTimeInSec {
	c.Lock()
	defer c.Unlock()

	out := make(map[string][]timing.VTimeInSec, len(c.latencies))
	for k, v := range c.latencies {
		out[k] = append([]timing.VTimeInSec(nil), v...)
	}

	return out
}

// Signals samples the registry size, the thread states and the unit
// bindings.
func (c *Comp) Signals() []tracing.Signal {
	c.Lock()
	defer c.Unlock()

	signals := make([]tracing.Signal, 0, 1+len(c.threads)+len(c.units))
	signals = append(signals, tracing.Signal{
		Name:  "registry",
		Value: float64(len(c.registry)),
	})

	for _, th := range c.threads {
		signals = append(signals, tracing.Signal{
			Name:  th.name + ".state",
			Value: float64(th.state),
		})
	}

	for _, u := range c.units {
		signals = append(signals, tracing.Signal{
			Name:  u.name + ".bound",
			Value: tracing.BoolSignal(u.bound.Present()),
		})
	}

	return signals
}
