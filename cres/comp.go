// Package cres implements common resources. A common resource adds up the
// demands of the execution units connected to it and tells them the total.
package cres

import (
	"log"
	"reflect"
	"sync"

	"go.uber.org/zap"

	"github.com/sarchlab/schd/msg"
	"github.com/sarchlab/schd/report"
	"github.com/sarchlab/schd/sim/naming"
	"github.com/sarchlab/schd/sim/timing"
	"github.com/sarchlab/schd/tracing"
	"github.com/sarchlab/schd/xbar"
)

type unitRecord struct {
	connected bool
	demand    float64
}

// Comp is a common resource.
type Comp struct {
	naming.NamedBase
	sync.Mutex

	InPort *xbar.Port

	out      xbar.Sender
	waker    *timing.Waker
	reporter *report.Reporter

	capacity float64
	demand   float64
	units    []string
	records  map[string]*unitRecord
}

// NotifyRecv wakes the resource when a message arrives.
func (c *Comp) NotifyRecv(_ *xbar.Port) {
	c.waker.WakeNow()
}

// Handle processes the messages that arrived since the last wake up.
func (c *Comp) Handle(e timing.Event) error {
	c.Lock()
	defer c.Unlock()

	switch e.(type) {
	case *timing.WakeEvent:
		c.waker.Woken()
		return c.drain()
	default:
		log.Panicf("cannot handle event of type %s", reflect.TypeOf(e))
	}

	return nil
}

func (c *Comp) drain() error {
	for {
		env := c.InPort.Retrieve()
		if env == nil {
			return nil
		}

		if err := c.process(env); err != nil {
			return err
		}
	}
}

func (c *Comp) process(env *msg.Envelope) error {
	link, err := msg.ParseLink(env.Body)
	if err != nil {
		return report.ProtocolErrorf(c.Name(), env.Src,
			"malformed demand message: %v", err)
	}

	rec, ok := c.records[env.Src]
	if !ok {
		return report.ProtocolErrorf(c.Name(), env.Src, "unknown execution unit")
	}

	if link.Demand < 0 || (!link.Connected && link.Demand != 0) {
		return report.ProtocolErrorf(c.Name(), env.Src,
			"invalid demand %g with connected=%t", link.Demand, link.Connected)
	}

	wasConnected := rec.connected
	rec.connected = link.Connected
	rec.demand = link.Demand

	aggregate := c.sum()
	changed := aggregate != c.demand
	c.demand = aggregate

	c.reporter.Debug("cres", "demand update",
		zap.String("resource", c.Name()),
		zap.String("unit", env.Src),
		zap.Bool("connected", link.Connected),
		zap.Float64("unit_demand", link.Demand),
		zap.Float64("aggregate", aggregate))

	switch {
	case changed:
		if err := c.broadcast(); err != nil {
			return err
		}
	case !wasConnected && link.Connected:
		if err := c.send([]string{env.Src}, msg.Link{
			Connected: true,
			Demand:    c.demand,
		}); err != nil {
			return err
		}
	}

	if wasConnected && !link.Connected {
		return c.send([]string{env.Src}, msg.Link{
			Connected: false,
			Demand:    c.demand,
		})
	}

	return nil
}

func (c *Comp) sum() float64 {
	total := 0.0

	for _, u := range c.units {
		rec := c.records[u]
		if rec.connected {
			total += rec.demand
		}
	}

	return total
}

func (c *Comp) broadcast() error {
	dst := c.ConnectedUnits()
	if len(dst) == 0 {
		return nil
	}

	return c.send(dst, msg.Link{Connected: true, Demand: c.demand})
}

func (c *Comp) send(dst []string, link msg.Link) error {
	return c.out.Send(msg.NewEnvelope(c.Name(), dst, link.Doc()))
}

// Capacity returns the capacity of the resource.
func (c *Comp) Capacity() float64 {
	return c.capacity
}

// Demand returns the aggregate demand of the connected units.
func (c *Comp) Demand() float64 {
	return c.demand
}

// Load returns the aggregate demand relative to the capacity.
func (c *Comp) Load() float64 {
	return c.demand / c.capacity
}

// Units returns the known execution units in name order.
func (c *Comp) Units() []string {
	return append([]string(nil), c.units...)
}

// ConnectedUnits returns the connected units in name order.
func (c *Comp) ConnectedUnits() []string {
	var out []string

	for _, u := range c.units {
		if c.records[u].connected {
			out = append(out, u)
		}
	}

	return out
}

// UnitDemand returns the last demand reported by a unit and whether it is
// connected.
func (c *Comp) UnitDemand(unit string) (demand float64, connected bool) {
	rec, ok := c.records[unit]
	if !ok {
		return 0, false
	}

	return rec.demand, rec.connected
}

// Signals exposes the capacity, the aggregate demand and the state of every
// unit.
func (c *Comp) Signals() []tracing.Signal {
	signals := make([]tracing.Signal, 0, 3+2*len(c.units))
	signals = append(signals,
		tracing.Signal{Name: "capacity", Value: c.capacity},
		tracing.Signal{Name: "demand", Value: c.demand},
		tracing.Signal{Name: "load", Value: c.Load()},
	)

	for _, u := range c.units {
		rec := c.records[u]
		signals = append(signals,
			tracing.Signal{Name: u + ".connected", Value: tracing.BoolSignal(rec.connected)},
			tracing.Signal{Name: u + ".demand", Value: rec.demand},
		)
	}

	return signals
}
