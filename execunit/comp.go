// Package execunit implements execution units. A unit runs one job at a time
// and negotiates with the common resources the job uses. When a resource is
// overloaded, the unit slows down and its job takes longer.
package execunit

import (
	"log"
	"math"
	"reflect"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/sarchlab/schd/msg"
	"github.com/sarchlab/schd/report"
	"github.com/sarchlab/schd/sim/hooking"
	"github.com/sarchlab/schd/sim/id"
	"github.com/sarchlab/schd/sim/naming"
	"github.com/sarchlab/schd/sim/timing"
	"github.com/sarchlab/schd/tracing"
	"github.com/sarchlab/schd/xbar"
)

// JobKind is the task kind reported for the jobs of a unit.
const JobKind = "job"

// ContentionTag is attached to a job each time its run time is rescaled.
const ContentionTag = "contention"

type completionEvent struct {
	*timing.EventBase
}

// Comp is an execution unit.
type Comp struct {
	naming.NamedBase
	hooking.HookableBase
	sync.Mutex

	DispatchPort *xbar.Port
	DemandPort   *xbar.Port

	engine      timing.Engine
	waker       *timing.Waker
	toResources xbar.Sender
	toPlanner   xbar.Sender
	planner     string
	reporter    *report.Reporter

	resources []*resource
	index     map[string]*resource

	job         *msg.Dispatch
	jobID       string
	jobHash     uint64
	timer       *completionEvent
	coefficient float64
	remaining   timing.VTimeInSec
	origin      timing.VTimeInSec
	numJobs     uint64
}

// NotifyRecv wakes the unit when a message arrives.
func (c *Comp) NotifyRecv(_ *xbar.Port) {
	c.waker.WakeNow()
}

// Handle processes wake ups and completion timers.
func (c *Comp) Handle(e timing.Event) error {
	c.Lock()
	defer c.Unlock()

	switch e := e.(type) {
	case *timing.WakeEvent:
		c.waker.Woken()
		return c.drain()
	case *completionEvent:
		return c.complete(e)
	default:
		log.Panicf("cannot handle event of type %s", reflect.TypeOf(e))
	}

	return nil
}

func (c *Comp) drain() error {
	for env := c.DispatchPort.Retrieve(); env != nil; env = c.DispatchPort.Retrieve() {
		if err := c.dispatch(env); err != nil {
			return err
		}
	}

	for env := c.DemandPort.Retrieve(); env != nil; env = c.DemandPort.Retrieve() {
		if err := c.update(env); err != nil {
			return err
		}
	}

	return nil
}

// Busy tells if the unit holds a job or is still disconnecting from the
// resources of its last job.
func (c *Comp) Busy() bool {
	if c.job != nil {
		return true
	}

	for _, r := range c.resources {
		if r.state != Idle {
			return true
		}
	}

	return false
}

func (c *Comp) dispatch(env *msg.Envelope) error {
	d, err := msg.ParseDispatch(env.Body)
	if err != nil {
		return report.ProtocolErrorf(c.Name(), env.Src,
			"malformed dispatch: %v", err)
	}

	if c.Busy() {
		return report.ProtocolErrorf(c.Name(), d.JobTag(),
			"unexpected request while running")
	}

	requested := make(map[string]bool, len(d.Common))

	for _, dm := range d.Common {
		r, ok := c.index[dm.Res]
		if !ok {
			return report.ModelErrorf(c.Name(), dm.Res,
				"unknown common resource")
		}

		if r.state != Idle || requested[dm.Res] {
			return report.ProtocolErrorf(c.Name(), dm.Res,
				"duplicate connection")
		}

		requested[dm.Res] = true
	}

	for _, dm := range d.Common {
		r := c.index[dm.Res]
		r.state = WaitConnect
		r.planDemand = dm.Demand
		r.execDemand = dm.Demand

		if err := c.sendDemand([]string{r.name}, true, dm.Demand); err != nil {
			return err
		}
	}

	now := c.engine.Now()

	c.job = &d
	c.jobID = id.Generate()
	c.jobHash = d.Hash()
	c.numJobs++
	c.coefficient = 1
	c.remaining = d.Runtime
	c.origin = now
	c.arm(now + d.Runtime)

	tracing.StartTask(c.jobID, c, JobKind, d.JobTag())

	c.reporter.Debug("exec", "job started",
		zap.String("unit", c.Name()),
		zap.String("job", d.JobTag()),
		zap.Float64("runtime", d.Runtime))

	return nil
}

func (c *Comp) arm(t timing.VTimeInSec) {
	c.timer = &completionEvent{EventBase: timing.NewEventBase(t, c)}
	c.engine.Schedule(c.timer)
}

func (c *Comp) update(env *msg.Envelope) error {
	link, err := msg.ParseLink(env.Body)
	if err != nil {
		return report.ProtocolErrorf(c.Name(), env.Src,
			"malformed resource update: %v", err)
	}

	r, ok := c.index[env.Src]
	if !ok {
		return report.ProtocolErrorf(c.Name(), env.Src,
			"update from unknown common resource")
	}

	switch {
	case link.Connected && (r.state == WaitConnect || r.state == Connected):
		r.state = Connected
		r.resDemand = link.Demand
		r.resLoad = link.Demand / r.capacity

		return c.rebalance()
	case link.Connected && r.state == WaitDisconnect:
		return nil
	case !link.Connected && r.state == WaitDisconnect:
		r.state = Idle
		r.clear()

		if c.allIdle() {
			return c.finish()
		}

		return nil
	default:
		return report.ProtocolErrorf(c.Name(), env.Src,
			"unexpected state transition from %s with connected=%t",
			r.state, link.Connected)
	}
}

// rebalance scales the advertised demands down when a resource is
// overloaded. The resource that carries the maximum load keeps the planned
// demand.
func (c *Comp) rebalance() error {
	maxLoad := 0.0

	for _, r := range c.resources {
		if r.state == Connected && r.resLoad > maxLoad {
			maxLoad = r.resLoad
		}
	}

	for _, r := range c.resources {
		if r.state != Connected {
			continue
		}

		advertised := r.planDemand
		if maxLoad > 1 && r.resLoad != maxLoad {
			advertised = r.planDemand / maxLoad
		}

		if advertised == r.execDemand {
			continue
		}

		r.execDemand = advertised

		if err := c.sendDemand([]string{r.name}, true, advertised); err != nil {
			return err
		}
	}

	coefficient := math.Max(maxLoad, 1)
	if coefficient != c.coefficient {
		c.rescale(coefficient)
	}

	return nil
}

func (c *Comp) rescale(coefficient float64) {
	now := c.engine.Now()
	old := c.coefficient

	c.remaining = (c.remaining - (now - c.origin)) / old * coefficient
	if c.remaining < 0 {
		c.remaining = 0
	}

	c.origin = now
	c.coefficient = coefficient

	if c.timer != nil {
		c.engine.Cancel(c.timer)
		c.arm(now + c.remaining)
	}

	tracing.TagTask(c.jobID, c, ContentionTag,
		strconv.FormatFloat(coefficient, 'g', -1, 64))

	c.reporter.Debug("exec", "run time rescaled",
		zap.String("unit", c.Name()),
		zap.Float64("old_coefficient", old),
		zap.Float64("coefficient", coefficient),
		zap.Float64("remaining", c.remaining))
}

func (c *Comp) complete(e *completionEvent) error {
	if e != c.timer {
		return report.InvariantErrorf(c.Name(), e.ID(),
			"stale completion timer fired")
	}

	c.timer = nil
	c.jobHash = 0
	c.coefficient = 1

	var targets []string

	for _, r := range c.resources {
		if r.state == Idle {
			continue
		}

		r.state = WaitDisconnect
		r.clear()
		targets = append(targets, r.name)
	}

	if len(targets) == 0 {
		return c.finish()
	}

	return c.sendDemand(targets, false, 0)
}

func (c *Comp) finish() error {
	if c.job == nil {
		return report.InvariantErrorf(c.Name(), "",
			"completion without a job")
	}

	tag := c.job.JobTag()

	tracing.EndTask(c.jobID, c)

	c.job = nil
	c.jobID = ""

	c.reporter.Debug("exec", "job completed",
		zap.String("unit", c.Name()),
		zap.String("job", tag))

	return c.toPlanner.Send(msg.NewEnvelope(
		c.Name(), []string{c.planner}, msg.Completion{}.Doc()))
}

func (c *Comp) allIdle() bool {
	for _, r := range c.resources {
		if r.state != Idle {
			return false
		}
	}

	return true
}

func (c *Comp) sendDemand(dst []string, connected bool, demand float64) error {
	link := msg.Link{Connected: connected, Demand: demand}
	return c.toResources.Send(msg.NewEnvelope(c.Name(), dst, link.Doc()))
}

// Job returns the running job, or nil.
func (c *Comp) Job() *msg.Dispatch {
	return c.job
}

// JobHash returns the hash of the running dispatch, or 0 when the job
// timer is not armed.
func (c *Comp) JobHash() uint64 {
	return c.jobHash
}

// Coefficient returns the current run time scaling factor.
func (c *Comp) Coefficient() float64 {
	return c.coefficient
}

// NumJobs returns the number of jobs that have been dispatched to the unit.
func (c *Comp) NumJobs() uint64 {
	return c.numJobs
}

// Resources returns the resource records in name order.
func (c *Comp) Resources() []ResourceStatus {
	out := make([]ResourceStatus, len(c.resources))
	for i, r := range c.resources {
		out[i] = r.status()
	}

	return out
}

// Signals exposes the job hash, the scaling coefficient and the records of
// all resources.
func (c *Comp) Signals() []tracing.Signal {
	signals := []tracing.Signal{
		{Name: "busy", Value: tracing.BoolSignal(c.Busy())},
		{Name: "job_hash", Value: float64(c.jobHash)},
		{Name: "coefficient", Value: c.coefficient},
	}

	for _, r := range c.resources {
		signals = append(signals,
			tracing.Signal{Name: r.name + ".capacity", Value: r.capacity},
			tracing.Signal{Name: r.name + ".connected", Value: tracing.BoolSignal(r.state == Connected)},
			tracing.Signal{Name: r.name + ".cres_demand", Value: r.resDemand},
			tracing.Signal{Name: r.name + ".cres_load", Value: r.resLoad},
			tracing.Signal{Name: r.name + ".plan_demand", Value: r.planDemand},
			tracing.Signal{Name: r.name + ".exec_demand", Value: r.execDemand},
		)
	}

	return signals
}
