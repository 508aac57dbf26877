package planner

import (
	"sort"

	"github.com/sarchlab/schd/andlist"
	"github.com/sarchlab/schd/model"
	"github.com/sarchlab/schd/report"
	"github.com/sarchlab/schd/sim/naming"
	"github.com/sarchlab/schd/sim/timing"
	"github.com/sarchlab/schd/xbar"
)

// Builder can build planners.
type Builder struct {
	engine       timing.Engine
	out          xbar.Sender
	reporter     *report.Reporter
	model        *model.Model
	portCapacity int
}

// MakeBuilder returns a builder with default parameters.
func MakeBuilder() Builder {
	return Builder{
		portCapacity: 1024,
	}
}

// WithEngine sets the engine that runs the planner.
func (b Builder) WithEngine(engine timing.Engine) Builder {
	b.engine = engine
	return b
}

// WithOutput sets where dispatches are sent.
func (b Builder) WithOutput(s xbar.Sender) Builder {
	b.out = s
	return b
}

// WithReporter sets the reporter.
func (b Builder) WithReporter(r *report.Reporter) Builder {
	b.reporter = r
	return b
}

// WithModel sets the threads, tasks and execution units to plan. The model
// must be valid.
func (b Builder) WithModel(m *model.Model) Builder {
	b.model = m
	return b
}

// WithPortCapacity sets how many completions can wait in the input port.
func (b Builder) WithPortCapacity(n int) Builder {
	b.portCapacity = n
	return b
}

// Build creates a planner.
func (b Builder) Build(name string) *Comp {
	if b.engine == nil {
		panic("planner " + name + " needs an engine")
	}

	if b.out == nil {
		panic("planner " + name + " needs an output")
	}

	if b.model == nil {
		panic("planner " + name + " needs a model")
	}

	c := &Comp{
		NamedBase:   naming.MakeNamedBase(name),
		engine:      b.engine,
		out:         b.out,
		reporter:    b.reporter,
		threadIndex: make(map[string]*thread),
		tasks:       make(map[string]*task),
		unitIndex:   make(map[string]*unit),
		latencies:   make(map[string][]timing.VTimeInSec),
	}

	if c.reporter == nil {
		c.reporter = report.NewNopReporter()
	}

	b.buildTasks(c)
	b.buildThreads(c)
	b.buildUnits(c)

	c.waker = timing.NewSecondaryWaker(c, b.engine)
	c.InPort = xbar.NewPort(c, b.engine, b.portCapacity, name)

	return c
}

func (b Builder) buildTasks(c *Comp) {
	for _, t := range b.model.Tasks {
		tk := &task{Task: t}

		for _, opt := range t.Exec {
			tk.patterns = append(tk.patterns, andlist.MustCompile(opt.Run))
		}

		c.tasks[t.Name] = tk
	}
}

func (b Builder) buildThreads(c *Comp) {
	for _, t := range b.model.Threads {
		th := &thread{
			name:     t.Name,
			priority: t.Priority,
			sequence: t.Sequence,
		}

		for _, p := range t.Start {
			th.start = append(th.start, andlist.MustCompile(p))
		}

		c.threads = append(c.threads, th)
		c.threadIndex[t.Name] = th
	}

	sort.Slice(c.threads, func(i, j int) bool {
		return c.threads[i].name < c.threads[j].name
	})
}

func (b Builder) buildUnits(c *Comp) {
	for _, e := range b.model.Executors {
		u := &unit{name: e.Name}
		c.units = append(c.units, u)
		c.unitIndex[e.Name] = u
	}

	sort.Slice(c.units, func(i, j int) bool {
		return c.units[i].name < c.units[j].name
	})
}
