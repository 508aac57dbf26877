package cres

import (
	"sort"

	"github.com/sarchlab/schd/report"
	"github.com/sarchlab/schd/sim/naming"
	"github.com/sarchlab/schd/sim/timing"
	"github.com/sarchlab/schd/xbar"
)

// Builder can build common resources.
type Builder struct {
	engine       timing.Engine
	out          xbar.Sender
	reporter     *report.Reporter
	capacity     float64
	units        []string
	portCapacity int
}

// MakeBuilder returns a builder with default parameters.
func MakeBuilder() Builder {
	return Builder{
		portCapacity: 64,
	}
}

// WithEngine sets the engine that wakes the resource.
func (b Builder) WithEngine(engine timing.Engine) Builder {
	b.engine = engine
	return b
}

// WithOutput sets where the replies to execution units are sent.
func (b Builder) WithOutput(out xbar.Sender) Builder {
	b.out = out
	return b
}

// WithReporter sets the reporter.
func (b Builder) WithReporter(r *report.Reporter) Builder {
	b.reporter = r
	return b
}

// WithCapacity sets the capacity of the resource.
func (b Builder) WithCapacity(capacity float64) Builder {
	b.capacity = capacity
	return b
}

// WithUnits sets the names of the execution units that may connect.
func (b Builder) WithUnits(units []string) Builder {
	b.units = append([]string(nil), units...)
	return b
}

// WithPortCapacity sets how many messages can wait in the input port.
func (b Builder) WithPortCapacity(n int) Builder {
	b.portCapacity = n
	return b
}

// Build creates a common resource with the given name.
func (b Builder) Build(name string) *Comp {
	if b.engine == nil {
		panic("common resource " + name + " needs an engine")
	}

	if b.out == nil {
		panic("common resource " + name + " needs an output")
	}

	if b.capacity <= 0 {
		panic("common resource " + name + " needs a positive capacity")
	}

	c := &Comp{
		NamedBase: naming.MakeNamedBase(name),
		out:       b.out,
		reporter:  b.reporter,
		capacity:  b.capacity,
		records:   make(map[string]*unitRecord),
	}

	if c.reporter == nil {
		c.reporter = report.NewNopReporter()
	}

	c.waker = timing.NewWaker(c, b.engine)
	c.InPort = xbar.NewPort(c, b.engine, b.portCapacity, name)

	c.units = append([]string(nil), b.units...)
	sort.Strings(c.units)

	for _, u := range c.units {
		c.records[u] = &unitRecord{}
	}

	return c
}
