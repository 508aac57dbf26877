package execunit_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/schd/cres"
	"github.com/sarchlab/schd/execunit"
	"github.com/sarchlab/schd/msg"
	"github.com/sarchlab/schd/sim/timing"
	"github.com/sarchlab/schd/xbar"
)

type completionLog struct {
	engine timing.Engine
	times  map[string]timing.VTimeInSec
}

func (l *completionLog) NotifyRecv(p *xbar.Port) {
	for env := p.Retrieve(); env != nil; env = p.Retrieve() {
		l.times[env.Src] = l.engine.Now()
	}
}

type fabric struct {
	engine    *timing.SerialEngine
	toUnits   *xbar.Crossbar
	toRes     *xbar.Crossbar
	fromRes   *xbar.Crossbar
	toPlanner *xbar.Crossbar
	units     map[string]*execunit.Comp
	resources map[string]*cres.Comp
	done      *completionLog
}

func newFabric(units []string, capacities map[string]float64) *fabric {
	engine := timing.NewSerialEngine()
	f := &fabric{
		engine:    engine,
		toUnits:   xbar.MakeBuilder().WithClock(engine).Build("PlanToExec"),
		toRes:     xbar.MakeBuilder().WithClock(engine).Build("ExecToCres"),
		fromRes:   xbar.MakeBuilder().WithClock(engine).Build("CresToExec"),
		toPlanner: xbar.MakeBuilder().WithClock(engine).Build("ExecToPlan"),
		units:     map[string]*execunit.Comp{},
		resources: map[string]*cres.Comp{},
		done: &completionLog{
			engine: engine,
			times:  map[string]timing.VTimeInSec{},
		},
	}

	f.toUnits.PlugInSource("planner")
	f.toPlanner.PlugIn(xbar.NewPort(f.done, engine, 16, "planner"))

	for name, capacity := range capacities {
		r := cres.MakeBuilder().
			WithEngine(engine).
			WithOutput(f.fromRes).
			WithCapacity(capacity).
			WithUnits(units).
			Build(name)
		f.resources[name] = r
		f.toRes.PlugIn(r.InPort)
		f.fromRes.PlugInSource(name)
	}

	for _, name := range units {
		b := execunit.MakeBuilder().
			WithEngine(engine).
			WithResourceOutput(f.toRes).
			WithPlannerOutput(f.toPlanner)

		for res, capacity := range capacities {
			b = b.WithResource(res, capacity)
		}

		u := b.Build(name)
		f.units[name] = u
		f.toUnits.PlugIn(u.DispatchPort)
		f.fromRes.PlugIn(u.DemandPort)
		f.toRes.PlugInSource(name)
		f.toPlanner.PlugInSource(name)
	}

	return f
}

func (f *fabric) dispatch(unit, thread string, runtime float64, common ...msg.Demand) {
	d := msg.Dispatch{
		Thread:  thread,
		Task:    "a",
		Runtime: runtime,
		Param:   msg.Doc{"id": "p"},
		Common:  common,
	}

	Expect(f.toUnits.Send(msg.NewEnvelope("planner", []string{unit}, d.Doc()))).
		To(Succeed())
}

var _ = Describe("Units sharing common resources", func() {
	It("should run at the nominal speed below capacity", func() {
		f := newFabric([]string{"u0"}, map[string]float64{"r0": 10})

		f.dispatch("u0", "t0", 10, msg.Demand{Res: "r0", Demand: 5})
		Expect(f.engine.RunUntil(1)).To(Succeed())

		status := f.units["u0"].Resources()[0]
		Expect(status.State).To(Equal(execunit.Connected))
		Expect(status.ResLoad).To(Equal(0.5))
		Expect(status.ExecDemand).To(Equal(5.0))

		Expect(f.engine.Run()).To(Succeed())
		Expect(f.done.times).To(Equal(map[string]timing.VTimeInSec{"u0": 10}))
		Expect(f.resources["r0"].Demand()).To(Equal(0.0))
	})

	It("should slow both units down by the overload factor", func() {
		f := newFabric([]string{"u0", "u1"}, map[string]float64{"r0": 10})

		f.dispatch("u0", "t0", 10, msg.Demand{Res: "r0", Demand: 8})
		f.dispatch("u1", "t1", 10, msg.Demand{Res: "r0", Demand: 8})
		Expect(f.engine.RunUntil(1)).To(Succeed())

		Expect(f.resources["r0"].Demand()).To(Equal(16.0))
		Expect(f.units["u0"].Coefficient()).To(Equal(1.6))
		Expect(f.units["u1"].Coefficient()).To(Equal(1.6))

		Expect(f.engine.Run()).To(Succeed())
		Expect(f.done.times["u0"]).To(BeNumerically("~", 16, 1e-9))
		Expect(f.done.times["u1"]).To(BeNumerically("~", 16, 1e-9))
		Expect(f.units["u0"].Busy()).To(BeFalse())
		Expect(f.resources["r0"].ConnectedUnits()).To(BeEmpty())
	})

	It("should scale down the demand on a lightly loaded resource", func() {
		f := newFabric([]string{"u0", "u1"},
			map[string]float64{"r0": 10, "r1": 10})

		f.dispatch("u0", "t0", 10,
			msg.Demand{Res: "r0", Demand: 8},
			msg.Demand{Res: "r1", Demand: 4})
		f.dispatch("u1", "t1", 10, msg.Demand{Res: "r0", Demand: 8})
		Expect(f.engine.RunUntil(1)).To(Succeed())

		Expect(f.resources["r0"].Demand()).To(Equal(16.0))
		Expect(f.resources["r1"].Demand()).To(Equal(2.5))
		Expect(f.units["u0"].Resources()[1].ExecDemand).To(Equal(2.5))

		Expect(f.engine.Run()).To(Succeed())
		Expect(f.done.times["u0"]).To(BeNumerically("~", 16, 1e-9))
		Expect(f.resources["r1"].Demand()).To(Equal(0.0))
	})

	It("should speed up again when the other unit leaves", func() {
		f := newFabric([]string{"u0", "u1"}, map[string]float64{"r0": 10})

		f.dispatch("u0", "t0", 10, msg.Demand{Res: "r0", Demand: 8})
		f.dispatch("u1", "t1", 5, msg.Demand{Res: "r0", Demand: 8})
		Expect(f.engine.Run()).To(Succeed())

		// Both run at 1/1.6 until u1 finishes at 8. u0 has 5 s of work left.
		Expect(f.done.times["u1"]).To(BeNumerically("~", 8, 1e-9))
		Expect(f.done.times["u0"]).To(BeNumerically("~", 13, 1e-9))
	})
})
