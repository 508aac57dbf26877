package execunit

import (
	"sort"

	"github.com/sarchlab/schd/report"
	"github.com/sarchlab/schd/sim/naming"
	"github.com/sarchlab/schd/sim/timing"
	"github.com/sarchlab/schd/xbar"
)

// Builder can build execution units.
type Builder struct {
	engine       timing.Engine
	toResources  xbar.Sender
	toPlanner    xbar.Sender
	planner      string
	reporter     *report.Reporter
	resources    map[string]float64
	portCapacity int
}

// MakeBuilder returns a builder with default parameters.
func MakeBuilder() Builder {
	return Builder{
		planner:      "planner",
		resources:    map[string]float64{},
		portCapacity: 64,
	}
}

// WithEngine sets the engine that runs the unit.
func (b Builder) WithEngine(engine timing.Engine) Builder {
	b.engine = engine
	return b
}

// WithResourceOutput sets where demand messages are sent.
func (b Builder) WithResourceOutput(s xbar.Sender) Builder {
	b.toResources = s
	return b
}

// WithPlannerOutput sets where completions are sent.
func (b Builder) WithPlannerOutput(s xbar.Sender) Builder {
	b.toPlanner = s
	return b
}

// WithPlanner sets the endpoint name of the planner.
func (b Builder) WithPlanner(name string) Builder {
	b.planner = name
	return b
}

// WithReporter sets the reporter.
func (b Builder) WithReporter(r *report.Reporter) Builder {
	b.reporter = r
	return b
}

// WithResource declares a common resource that the unit may use.
func (b Builder) WithResource(name string, capacity float64) Builder {
	resources := make(map[string]float64, len(b.resources)+1)
	for k, v := range b.resources {
		resources[k] = v
	}

	resources[name] = capacity
	b.resources = resources

	return b
}

// WithPortCapacity sets how many messages can wait in each input port.
func (b Builder) WithPortCapacity(n int) Builder {
	b.portCapacity = n
	return b
}

// Build creates an execution unit.
func (b Builder) Build(name string) *Comp {
	if b.engine == nil {
		panic("execution unit " + name + " needs an engine")
	}

	if b.toResources == nil || b.toPlanner == nil {
		panic("execution unit " + name + " needs its outputs")
	}

	c := &Comp{
		NamedBase:   naming.MakeNamedBase(name),
		engine:      b.engine,
		toResources: b.toResources,
		toPlanner:   b.toPlanner,
		planner:     b.planner,
		reporter:    b.reporter,
		index:       make(map[string]*resource),
		coefficient: 1,
	}

	if c.reporter == nil {
		c.reporter = report.NewNopReporter()
	}

	names := make([]string, 0, len(b.resources))
	for n := range b.resources {
		names = append(names, n)
	}

	sort.Strings(names)

	for _, n := range names {
		if b.resources[n] <= 0 {
			panic("resource " + n + " needs a positive capacity")
		}

		r := &resource{name: n, capacity: b.resources[n]}
		c.resources = append(c.resources, r)
		c.index[n] = r
	}

	c.waker = timing.NewWaker(c, b.engine)
	c.DispatchPort = xbar.NewPort(c, b.engine, b.portCapacity, name)
	c.DemandPort = xbar.NewPort(c, b.engine, b.portCapacity, name)

	return c
}
