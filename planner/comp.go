// Package planner decides when threads start and which execution units run
// their tasks. It keeps a registry of fired events, ignites the threads
// whose start patterns all match distinct events, and admits the waiting
// threads by priority as long as the free units can serve all of them.
package planner

import (
	"log"
	"reflect"
	"regexp"
	"sort"
	"sync"

	"github.com/markphelps/optional"
	"go.uber.org/zap"

	"github.com/sarchlab/schd/andlist"
	"github.com/sarchlab/schd/model"
	"github.com/sarchlab/schd/msg"
	"github.com/sarchlab/schd/report"
	"github.com/sarchlab/schd/sim/hooking"
	"github.com/sarchlab/schd/sim/id"
	"github.com/sarchlab/schd/sim/naming"
	"github.com/sarchlab/schd/sim/timing"
	"github.com/sarchlab/schd/tracing"
	"github.com/sarchlab/schd/xbar"
)

// ThreadKind is the task kind reported for thread runs.
const ThreadKind = "thread"

// EventTag is attached to a thread run each time the thread raises an event.
const EventTag = "event"

type kickoffEvent struct {
	*timing.EventBase
}

// Comp is the planner.
type Comp struct {
	naming.NamedBase
	hooking.HookableBase
	sync.Mutex

	InPort *xbar.Port

	engine   timing.Engine
	waker    *timing.Waker
	out      xbar.Sender
	reporter *report.Reporter

	threads     []*thread
	threadIndex map[string]*thread
	tasks       map[string]*task
	units       []*unit
	unitIndex   map[string]*unit

	registry []*entry
	nextID   uint64
	started  bool

	latencies map[string][]timing.VTimeInSec
}

// Start schedules the first planning step at the current time. It can only
// be called once.
func (c *Comp) Start() {
	c.Lock()
	defer c.Unlock()

	if c.started {
		panic("planner " + c.Name() + " already started")
	}

	c.started = true

	c.engine.Schedule(&kickoffEvent{
		EventBase: timing.NewSecondaryEventBase(c.engine.Now(), c),
	})
}

// NotifyRecv wakes the planner when a completion arrives.
func (c *Comp) NotifyRecv(_ *xbar.Port) {
	c.waker.WakeNow()
}

// Handle processes the kickoff and the wake ups.
func (c *Comp) Handle(e timing.Event) error {
	c.Lock()
	defer c.Unlock()

	switch e := e.(type) {
	case *kickoffEvent:
		c.register(model.StartEvent, optional.String{})
		return c.step()
	case *timing.WakeEvent:
		c.waker.Woken()

		if err := c.drain(); err != nil {
			return err
		}

		return c.step()
	default:
		log.Panicf("cannot handle event of type %s", reflect.TypeOf(e))
	}

	return nil
}

func (c *Comp) drain() error {
	for env := c.InPort.Retrieve(); env != nil; env = c.InPort.Retrieve() {
		if err := c.complete(env); err != nil {
			return err
		}
	}

	return nil
}

func (c *Comp) register(name string, raiser optional.String) {
	c.nextID++

	e := &entry{
		id:     c.nextID,
		name:   name,
		time:   c.engine.Now(),
		raiser: raiser,
	}
	c.registry = append(c.registry, e)

	c.reporter.Debug("plan", "event registered",
		zap.String("event", name),
		zap.Uint64("entry", e.id),
		zap.String("raiser", raiser.OrElse("")))
}

func (c *Comp) findEntry(entryID uint64) *entry {
	i := sort.Search(len(c.registry), func(i int) bool {
		return c.registry[i].id >= entryID
	})

	if i < len(c.registry) && c.registry[i].id == entryID {
		return c.registry[i]
	}

	return nil
}

func (c *Comp) step() error {
	if err := c.ignite(); err != nil {
		return err
	}

	if err := c.admit(); err != nil {
		return err
	}

	c.collect()

	return nil
}

func (c *Comp) ignite() error {
	for _, th := range c.threads {
		if err := c.igniteThread(th); err != nil {
			return err
		}
	}

	return nil
}

func (c *Comp) igniteThread(th *thread) error {
	var candidates []*entry

	for _, e := range c.registry {
		if e.visibleTo(th.name) {
			candidates = append(candidates, e)
		}
	}

	names := make([]string, len(candidates))
	for i, e := range candidates {
		names[i] = e.name
	}

	res := andlist.Match(th.start, names)

	if !res.OK {
		for i, e := range candidates {
			if res.ValueMaskCount[i] == 0 {
				e.mismatch = append(e.mismatch, th.name)
			}
		}

		return nil
	}

	if th.state != Idle {
		return report.InvariantErrorf(c.Name(), th.name,
			"re-start condition for running thread")
	}

	if len(th.ignition) != 0 {
		return report.InvariantErrorf(c.Name(), th.name,
			"idle thread still holds its ignition events")
	}

	th.state = Waiting
	th.index = 0

	for i, e := range candidates {
		if res.ValueMaskCount[i] != 0 {
			e.run = append(e.run, th.name)
			th.ignition = append(th.ignition, e.id)
		}
	}

	th.runID = id.Generate()
	th.runStart = c.engine.Now()
	tracing.StartTask(th.runID, c, ThreadKind, th.name)

	c.reporter.Debug("plan", "thread ignited",
		zap.String("thread", th.name),
		zap.Int("events", len(th.ignition)))

	return nil
}

type waiting struct {
	thread *thread
	task   *task
	base   int
}

func (c *Comp) waitList() ([]waiting, error) {
	var list []waiting

	for _, th := range c.threads {
		if th.state != Waiting {
			continue
		}

		s := th.step()
		if s.IsEvent() {
			return nil, report.InvariantErrorf(c.Name(), th.name,
				"waiting on event step %d", th.index)
		}

		tk, ok := c.tasks[s.Task.Run]
		if !ok {
			return nil, report.ModelErrorf(c.Name(), th.name,
				"unknown task %s", s.Task.Run)
		}

		list = append(list, waiting{thread: th, task: tk})
	}

	sort.SliceStable(list, func(i, j int) bool {
		return list[i].thread.priority > list[j].thread.priority
	})

	return list, nil
}

// admit starts as many waiting threads as the free units allow, highest
// priority first. When the free units cannot serve the whole queue, the
// lowest priority thread leaves it.
func (c *Comp) admit() error {
	list, err := c.waitList()
	if err != nil || len(list) == 0 {
		return err
	}

	var masks []*regexp.Regexp

	for i := range list {
		list[i].base = len(masks)
		masks = append(masks, list[i].task.patterns...)
	}

	var free []*unit

	for _, u := range c.units {
		if !u.bound.Present() {
			free = append(free, u)
		}
	}

	names := make([]string, len(free))
	for i, u := range free {
		names[i] = u.name
	}

	var res andlist.Result

	for len(list) > 0 {
		res = andlist.Match(masks, names)
		if res.OK {
			break
		}

		last := list[len(list)-1]
		masks = masks[:last.base]
		list = list[:len(list)-1]
	}

	for _, w := range list {
		units := make([]*unit, len(w.task.Exec))
		for i := range w.task.Exec {
			units[i] = free[res.MaskToValue[w.base+i]]
		}

		if err := c.dispatch(w, units); err != nil {
			return err
		}
	}

	return nil
}

func (c *Comp) dispatch(w waiting, units []*unit) error {
	th := w.thread

	if len(th.active) != 0 {
		return report.InvariantErrorf(c.Name(), th.name,
			"admitted thread still has active units")
	}

	now := c.engine.Now()
	s := th.step()

	for i, u := range units {
		d := msg.Dispatch{
			Thread:  th.name,
			Task:    w.task.Name,
			Runtime: w.task.Runtime.Seconds(),
			Param:   s.Task.Param.Clone(),
			Common:  w.task.Demands(i),
			Options: w.task.Exec[i].Opt,
		}

		env := msg.NewEnvelope(c.Name(), []string{u.name}, d.Doc())
		if err := c.out.Send(env); err != nil {
			return err
		}

		u.bound = optional.NewString(th.name)
		u.start = now
		u.jobs++
		th.active = append(th.active, u.name)

		c.reporter.Debug("plan", "job dispatched",
			zap.String("unit", u.name),
			zap.String("job", d.JobTag()))
	}

	th.taskStart = now
	th.state = Running

	return nil
}

func (c *Comp) complete(env *msg.Envelope) error {
	u, ok := c.unitIndex[env.Src]
	if !ok {
		return report.ProtocolErrorf(c.Name(), env.Src,
			"completion from unknown execution unit")
	}

	name, err := u.bound.Get()
	if err != nil {
		return report.ProtocolErrorf(c.Name(), env.Src,
			"completion from an execution unit without a job")
	}

	now := c.engine.Now()
	u.bound = optional.String{}
	u.end = now

	th := c.threadIndex[name]
	if !th.removeActive(u.name) {
		return report.InvariantErrorf(c.Name(), th.name,
			"execution unit %s is not active for the thread", u.name)
	}

	if len(th.active) == 0 {
		taskName := th.step().Task.Run
		c.latencies[taskName] = append(c.latencies[taskName], now-th.taskStart)
	}

	for len(th.active) == 0 {
		th.index++

		if th.index >= len(th.sequence) {
			c.finish(th)
			break
		}

		s := th.step()
		if !s.IsEvent() {
			th.state = Waiting
			break
		}

		c.register(s.Event, optional.NewString(th.name))
		tracing.TagTask(th.runID, c, EventTag, s.Event)
	}

	return nil
}

func (c *Comp) finish(th *thread) {
	for _, entryID := range th.ignition {
		if e := c.findEntry(entryID); e != nil {
			e.ended++
		}
	}

	th.state = Idle
	th.ignition = nil
	th.runs++

	tracing.EndTask(th.runID, c)

	c.reporter.Debug("plan", "thread finished",
		zap.String("thread", th.name),
		zap.Uint64("runs", th.runs),
		zap.Float64("run_time", c.engine.Now()-th.runStart))

	c.collect()
}

// collect removes the entries that every thread has decided on and whose
// runs have all ended. No thread can be ignited by them anymore.
func (c *Comp) collect() {
	kept := c.registry[:0]

	for _, e := range c.registry {
		if e.ended == len(e.run) && e.coverage() >= len(c.threads) {
			c.reporter.Debug("plan", "event retired",
				zap.String("event", e.name),
				zap.Uint64("entry", e.id))

			continue
		}

		kept = append(kept, e)
	}

	for i := len(kept); i < len(c.registry); i++ {
		c.registry[i] = nil
	}

	c.registry = kept
}
