package xbar

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/sarchlab/schd/andlist"
	"github.com/sarchlab/schd/msg"
	"github.com/sarchlab/schd/report"
	"github.com/sarchlab/schd/sim/hooking"
	"github.com/sarchlab/schd/sim/timing"
)

// A Sender accepts envelopes for delivery.
type Sender interface {
	Send(env *msg.Envelope) error
}

// Crossbar delivers envelopes from registered sources to registered
// destination ports. Delivery is immediate.
type Crossbar struct {
	hooking.HookableBase

	name  string
	clock timing.TimeTeller

	srcs     map[string]bool
	dsts     []*Port
	dstIndex map[string]int
	patterns map[string]*regexp.Regexp
}

// Builder creates crossbars.
type Builder struct {
	clock timing.TimeTeller
}

// MakeBuilder returns a new Builder.
func MakeBuilder() Builder {
	return Builder{}
}

// WithClock sets the clock used to stamp envelopes.
func (b Builder) WithClock(clock timing.TimeTeller) Builder {
	b.clock = clock
	return b
}

// Build creates a crossbar.
func (b Builder) Build(name string) *Crossbar {
	if b.clock == nil {
		panic("crossbar " + name + " needs a clock")
	}

	return &Crossbar{
		name:     name,
		clock:    b.clock,
		srcs:     make(map[string]bool),
		dstIndex: make(map[string]int),
		patterns: make(map[string]*regexp.Regexp),
	}
}

// Name returns the name of the crossbar.
func (c *Crossbar) Name() string {
	return c.name
}

// PlugInSource allows an endpoint to send through the crossbar.
func (c *Crossbar) PlugInSource(name string) {
	c.srcs[name] = true
}

// PlugIn registers a destination port. Ports receive broadcasts in the
// order they are plugged in.
func (c *Crossbar) PlugIn(p *Port) {
	if _, dup := c.dstIndex[p.Name()]; dup {
		panic(fmt.Sprintf("crossbar %s: duplicate destination %s",
			c.name, p.Name()))
	}

	c.dstIndex[p.Name()] = len(c.dsts)
	c.dsts = append(c.dsts, p)
}

// Sources returns the registered source names in sorted order.
func (c *Crossbar) Sources() []string {
	out := make([]string, 0, len(c.srcs))
	for s := range c.srcs {
		out = append(out, s)
	}

	sort.Strings(out)

	return out
}

// Destinations returns the destination names in registration order.
func (c *Crossbar) Destinations() []string {
	out := make([]string, len(c.dsts))
	for i, p := range c.dsts {
		out[i] = p.Name()
	}

	return out
}

// Send resolves the destinations and delivers one copy of the envelope to
// each of them.
func (c *Crossbar) Send(env *msg.Envelope) error {
	if !c.srcs[env.Src] {
		return report.ProtocolErrorf(c.name, env.Src, "unknown source")
	}

	ports, err := c.Resolve(env.Dst)
	if err != nil {
		return err
	}

	env.SendTime = c.clock.Now()

	if c.NumHooks() > 0 {
		c.InvokeHook(hooking.HookCtx{
			Domain: c,
			Pos:    HookPosMsgSend,
			Item:   env,
		})
	}

	for i, p := range ports {
		out := env
		if i > 0 {
			out = env.Clone()
		}

		if err := p.Deliver(out); err != nil {
			return err
		}
	}

	return nil
}

// Resolve turns a destination list into ports. Each port appears once, in
// registration order.
func (c *Crossbar) Resolve(dst []string) ([]*Port, error) {
	if len(dst) == 0 {
		return nil, report.ProtocolErrorf(c.name, "", "empty destination list")
	}

	selected := make([]bool, len(c.dsts))

	for _, d := range dst {
		if idx, ok := c.dstIndex[d]; ok {
			selected[idx] = true
			continue
		}

		re, err := c.pattern(d)
		if err != nil {
			return nil, err
		}

		found := false

		for i, p := range c.dsts {
			if re.MatchString(p.Name()) {
				selected[i] = true
				found = true
			}
		}

		if !found {
			return nil, report.ProtocolErrorf(c.name, d,
				"destination matches no endpoint")
		}
	}

	ports := make([]*Port, 0, len(dst))

	for i, sel := range selected {
		if sel {
			ports = append(ports, c.dsts[i])
		}
	}

	return ports, nil
}

func (c *Crossbar) pattern(p string) (*regexp.Regexp, error) {
	if re, ok := c.patterns[p]; ok {
		return re, nil
	}

	re, err := andlist.Compile(p)
	if err != nil {
		return nil, report.ProtocolErrorf(c.name, p,
			"invalid destination pattern: %v", err)
	}

	c.patterns[p] = re

	return re, nil
}
