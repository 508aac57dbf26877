// Package xbar routes envelopes between named endpoints. A destination is
// resolved as an exact endpoint name first and as a full-match pattern
// otherwise.
package xbar

import (
	"github.com/sarchlab/schd/msg"
	"github.com/sarchlab/schd/report"
	"github.com/sarchlab/schd/sim/hooking"
	"github.com/sarchlab/schd/sim/queueing"
	"github.com/sarchlab/schd/sim/timing"
)

// HookPosMsgSend marks when an envelope enters a crossbar.
var HookPosMsgSend = &hooking.HookPos{Name: "Xbar Msg Send"}

// HookPosMsgRecvd marks when an envelope arrives at a port.
var HookPosMsgRecvd = &hooking.HookPos{Name: "Xbar Msg Recv"}

// HookPosMsgRetrieve marks when the owner takes an envelope from a port.
var HookPosMsgRetrieve = &hooking.HookPos{Name: "Xbar Msg Retrieve"}

// A PortOwner is notified when its ports receive envelopes.
type PortOwner interface {
	NotifyRecv(p *Port)
}

// A Port is an input endpoint of a component. Envelopes wait in a bounded
// buffer until the owner retrieves them, in arrival order.
type Port struct {
	hooking.HookableBase

	name  string
	owner PortOwner
	clock timing.TimeTeller
	buf   queueing.Buffer
}

// NewPort creates a port.
func NewPort(
	owner PortOwner,
	clock timing.TimeTeller,
	capacity int,
	name string,
) *Port {
	return &Port{
		name:  name,
		owner: owner,
		clock: clock,
		buf: queueing.MakeBufferBuilder().
			WithCapacity(capacity).
			Build(name + ".Buf"),
	}
}

// Name returns the endpoint name.
func (p *Port) Name() string {
	return p.name
}

// Buffer exposes the incoming buffer for monitoring.
func (p *Port) Buffer() queueing.Buffer {
	return p.buf
}

// Deliver puts an envelope into the port. A full port means the model sizes
// the channels wrong, so it is reported as a model error.
func (p *Port) Deliver(env *msg.Envelope) error {
	if !p.buf.CanPush() {
		return report.ModelErrorf(p.name, env.Src,
			"channel overflow, capacity %d", p.buf.Capacity())
	}

	env.RecvTime = p.clock.Now()
	p.buf.Push(env)

	if p.NumHooks() > 0 {
		p.InvokeHook(hooking.HookCtx{
			Domain: p,
			Pos:    HookPosMsgRecvd,
			Item:   env,
		})
	}

	if p.owner != nil {
		p.owner.NotifyRecv(p)
	}

	return nil
}

// Retrieve takes the oldest envelope. It returns nil if the port is empty.
func (p *Port) Retrieve() *msg.Envelope {
	item := p.buf.Pop()
	if item == nil {
		return nil
	}

	env := item.(*msg.Envelope)

	if p.NumHooks() > 0 {
		p.InvokeHook(hooking.HookCtx{
			Domain: p,
			Pos:    HookPosMsgRetrieve,
			Item:   env,
		})
	}

	return env
}

// Peek returns the oldest envelope without removing it.
func (p *Port) Peek() *msg.Envelope {
	item := p.buf.Peek()
	if item == nil {
		return nil
	}

	return item.(*msg.Envelope)
}

// Size returns the number of waiting envelopes.
func (p *Port) Size() int {
	return p.buf.Size()
}
