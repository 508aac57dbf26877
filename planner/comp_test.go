package planner

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/schd/model"
	"github.com/sarchlab/schd/msg"
	"github.com/sarchlab/schd/report"
	"github.com/sarchlab/schd/sim/hooking"
	"github.com/sarchlab/schd/sim/timing"
)

type dispatched struct {
	Time timing.VTimeInSec
	Unit string
	Job  msg.Dispatch
}

func taskStep(name string, paramID any) model.Step {
	return model.Step{Task: &model.TaskStep{Run: name, Param: msg.Doc{"id": paramID}}}
}

func eventStep(name string) model.Step {
	return model.Step{Event: name}
}

func simpleTask(name string, runtime float64, patterns ...string) model.Task {
	t := model.Task{Name: name, Runtime: model.Duration(runtime)}
	for _, p := range patterns {
		t.Exec = append(t.Exec, model.RunOption{Run: p})
	}

	return t
}

func executors(names ...string) []model.Executor {
	out := make([]model.Executor, len(names))
	for i, n := range names {
		out[i].Name = n
	}

	return out
}

var _ = Describe("Comp", func() {
	var (
		mockCtrl *gomock.Controller
		engine   *timing.SerialEngine
		out      *MockSender
		m        *model.Model
		comp     *Comp
		sent     []dispatched
	)

	build := func() {
		comp = MakeBuilder().
			WithEngine(engine).
			WithOutput(out).
			WithModel(m).
			Build("planner")
	}

	start := func() {
		build()
		comp.Start()
		Expect(engine.Run()).To(Succeed())
	}

	finish := func(unit string) error {
		env := msg.NewEnvelope(unit, []string{"planner"}, msg.Completion{}.Doc())
		Expect(comp.InPort.Deliver(env)).To(Succeed())

		return engine.Run()
	}

	units := func() []string {
		var names []string
		for _, d := range sent {
			names = append(names, d.Unit)
		}

		return names
	}

	threadsOf := func() []string {
		var names []string
		for _, d := range sent {
			names = append(names, d.Job.Thread)
		}

		return names
	}

	state := func(name string) ThreadState {
		s, ok := comp.Thread(name)
		Expect(ok).To(BeTrue())

		return s.State
	}

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		engine = timing.NewSerialEngine()
		out = NewMockSender(mockCtrl)
		sent = nil

		out.EXPECT().Send(gomock.Any()).DoAndReturn(func(env *msg.Envelope) error {
			Expect(env.Src).To(Equal("planner"))
			Expect(env.Dst).To(HaveLen(1))

			d, err := msg.ParseDispatch(env.Body)
			Expect(err).NotTo(HaveOccurred())

			sent = append(sent, dispatched{engine.Now(), env.Dst[0], d})

			return nil
		}).AnyTimes()
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	Context("with a single thread", func() {
		BeforeEach(func() {
			m = &model.Model{
				Threads: []model.Thread{{
					Name:     "t0",
					Priority: 1,
					Start:    []string{model.StartEvent},
					Sequence: []model.Step{taskStep("work", 7)},
				}},
				Tasks: []model.Task{{
					Name:    "work",
					Runtime: 10,
					Exec: []model.RunOption{{
						Run: "u0",
						Use: []model.Use{{Res: "mem", Demand: 5}},
						Opt: msg.Doc{"mode": "fast"},
					}},
				}},
				Executors: executors("u0", "u1"),
			}
		})

		It("should dispatch the first task at time zero", func() {
			start()

			Expect(sent).To(HaveLen(1))
			Expect(sent[0].Time).To(Equal(0.0))
			Expect(sent[0].Unit).To(Equal("u0"))
			Expect(sent[0].Job.Thread).To(Equal("t0"))
			Expect(sent[0].Job.Task).To(Equal("work"))
			Expect(sent[0].Job.Runtime).To(Equal(10.0))
			Expect(sent[0].Job.Common).To(Equal([]msg.Demand{{Res: "mem", Demand: 5}}))
			Expect(sent[0].Job.Options).To(HaveKeyWithValue("mode", "fast"))
			Expect(sent[0].Job.JobTag()).To(Equal("t0#work#7"))

			Expect(state("t0")).To(Equal(Running))
			Expect(comp.Units()[0].Bound).To(BeTrue())
			Expect(comp.Units()[0].Thread).To(Equal("t0"))
			Expect(comp.Units()[1].Bound).To(BeFalse())
		})

		It("should go idle and clean the registry on completion", func() {
			start()
			Expect(comp.RegistrySize()).To(Equal(1))

			Expect(engine.RunUntil(10)).To(Succeed())
			Expect(finish("u0")).To(Succeed())

			s, _ := comp.Thread("t0")
			Expect(s.State).To(Equal(Idle))
			Expect(s.Runs).To(Equal(uint64(1)))
			Expect(comp.RegistrySize()).To(Equal(0))
			Expect(comp.Units()[0].Bound).To(BeFalse())
			Expect(comp.Units()[0].End).To(Equal(10.0))
			Expect(comp.Latencies()).To(HaveKeyWithValue("work", []float64{10}))
			Expect(sent).To(HaveLen(1))
		})

		It("should reject a completion from an unknown unit", func() {
			start()

			err := finish("zz")

			Expect(report.IsKind(err, report.ProtocolError)).To(BeTrue())
		})

		It("should reject a completion from a unit without a job", func() {
			start()

			err := finish("u1")

			Expect(report.IsKind(err, report.ProtocolError)).To(BeTrue())
		})

		It("should not start twice", func() {
			start()

			Expect(comp.Start).To(Panic())
		})

		It("should trace the thread run", func() {
			build()

			var poses []*hooking.HookPos
			comp.AcceptHook(hooking.HookFunc(func(ctx hooking.HookCtx) {
				poses = append(poses, ctx.Pos)

				if ctx.Pos == hooking.HookPosTaskStart {
					ts := ctx.Item.(hooking.TaskStart)
					Expect(ts.Kind).To(Equal(ThreadKind))
					Expect(ts.What).To(Equal("t0"))
					Expect(ts.Where).To(Equal("planner"))
				}
			}))

			comp.Start()
			Expect(engine.Run()).To(Succeed())
			Expect(finish("u0")).To(Succeed())

			Expect(poses).To(Equal([]*hooking.HookPos{
				hooking.HookPosTaskStart,
				hooking.HookPosTaskEnd,
			}))
		})

		It("should expose signals", func() {
			start()

			Expect(comp.Signals()).To(ConsistOf(
				HaveField("Name", "registry"),
				HaveField("Name", "t0.state"),
				HaveField("Name", "u0.bound"),
				HaveField("Name", "u1.bound"),
			))
			Expect(comp.Signals()[1].Value).To(Equal(float64(Running)))
		})
	})

	Context("with competing threads", func() {
		BeforeEach(func() {
			m = &model.Model{
				Threads: []model.Thread{
					{
						Name:     "low",
						Priority: 1,
						Start:    []string{model.StartEvent},
						Sequence: []model.Step{taskStep("work", "l")},
					},
					{
						Name:     "high",
						Priority: 2,
						Start:    []string{model.StartEvent},
						Sequence: []model.Step{taskStep("work", "h")},
					},
				},
				Tasks:     []model.Task{simpleTask("work", 1, "u.*")},
				Executors: executors("u0"),
			}
		})

		It("should admit by descending priority", func() {
			start()

			Expect(threadsOf()).To(Equal([]string{"high"}))
			Expect(state("low")).To(Equal(Waiting))

			Expect(finish("u0")).To(Succeed())

			Expect(threadsOf()).To(Equal([]string{"high", "low"}))
			Expect(state("high")).To(Equal(Idle))
			Expect(state("low")).To(Equal(Running))
		})

		It("should break priority ties by name", func() {
			m.Threads[1].Priority = 1

			start()

			Expect(threadsOf()).To(Equal([]string{"high"}))
		})

		It("should admit everything when units are enough", func() {
			m.Executors = executors("u1", "u0")

			start()

			Expect(threadsOf()).To(Equal([]string{"high", "low"}))
			Expect(units()).To(Equal([]string{"u0", "u1"}))
		})

		It("should not let a lower priority thread overtake", func() {
			m.Tasks = append(m.Tasks, simpleTask("wide", 1, "u.*", "u.*"))
			m.Threads[1].Sequence = []model.Step{taskStep("wide", "h")}

			start()

			Expect(sent).To(BeEmpty())
			Expect(state("high")).To(Equal(Waiting))
			Expect(state("low")).To(Equal(Waiting))
		})

		It("should dispatch every run option of a task", func() {
			m.Executors = executors("u0", "u1", "u2")
			m.Tasks = []model.Task{{
				Name:    "work",
				Runtime: 1,
				Exec: []model.RunOption{
					{Run: "u.*", Use: []model.Use{{Res: "a", Demand: 1}}},
					{Run: "u.*", Use: []model.Use{{Res: "b", Demand: 2}}},
				},
			}}

			start()

			Expect(threadsOf()).To(Equal([]string{"high", "high"}))
			Expect(units()).To(Equal([]string{"u0", "u1"}))
			Expect(sent[0].Job.Common).To(Equal([]msg.Demand{
				{Res: "a", Demand: 1}, {Res: "b", Demand: 0},
			}))
			Expect(sent[1].Job.Common).To(Equal([]msg.Demand{
				{Res: "a", Demand: 0}, {Res: "b", Demand: 2},
			}))

			Expect(finish("u1")).To(Succeed())
			Expect(state("high")).To(Equal(Running))
			Expect(comp.Latencies()).To(BeEmpty())

			Expect(finish("u0")).To(Succeed())
			Expect(state("high")).To(Equal(Idle))
			Expect(threadsOf()).To(Equal([]string{"high", "high", "low", "low"}))
		})
	})

	Context("with events", func() {
		BeforeEach(func() {
			m = &model.Model{
				Threads: []model.Thread{
					{
						Name:     "producer",
						Priority: 2,
						Start:    []string{model.StartEvent},
						Sequence: []model.Step{
							taskStep("load", 0),
							eventStep("loaded"),
							taskStep("compute", 1),
						},
					},
					{
						Name:     "consumer",
						Priority: 1,
						Start:    []string{"load.*"},
						Sequence: []model.Step{taskStep("store", 0)},
					},
				},
				Tasks: []model.Task{
					simpleTask("load", 1, "u.*"),
					simpleTask("compute", 1, "u.*"),
					simpleTask("store", 1, "u.*"),
				},
				Executors: executors("u0", "u1"),
			}
		})

		It("should ignite a thread on a raised event", func() {
			start()

			Expect(state("consumer")).To(Equal(Idle))
			Expect(comp.Registry()[0].Mismatch).To(Equal([]string{"consumer"}))

			Expect(finish("u0")).To(Succeed())

			Expect(threadsOf()).To(Equal([]string{"producer", "producer", "consumer"}))
			Expect(units()).To(Equal([]string{"u0", "u0", "u1"}))
			Expect(sent[1].Job.Task).To(Equal("compute"))

			reg := comp.Registry()
			Expect(reg).To(HaveLen(2))
			Expect(reg[1].Name).To(Equal("loaded"))
			Expect(reg[1].Raiser).To(Equal("producer"))
			Expect(reg[1].Run).To(Equal([]string{"consumer"}))
		})

		It("should retire events once every run ended", func() {
			start()
			Expect(finish("u0")).To(Succeed())

			Expect(finish("u0")).To(Succeed())
			Expect(comp.Registry()).To(HaveLen(1))
			Expect(comp.Registry()[0].Name).To(Equal("loaded"))

			Expect(finish("u1")).To(Succeed())
			Expect(comp.RegistrySize()).To(Equal(0))
			Expect(state("consumer")).To(Equal(Idle))
		})

		It("should not restart a running thread", func() {
			m.Threads[0].Sequence = append(m.Threads[0].Sequence, eventStep("loaded"))

			start()
			Expect(finish("u0")).To(Succeed())
			Expect(state("consumer")).To(Equal(Running))

			err := finish("u0")

			Expect(report.IsKind(err, report.InvariantViolation)).To(BeTrue())
		})

		It("should wait for every start pattern", func() {
			m.Threads[1].Start = []string{"loaded", "stored"}

			start()
			Expect(finish("u0")).To(Succeed())

			Expect(state("consumer")).To(Equal(Idle))
			Expect(comp.Registry()[1].Mismatch).To(BeEmpty())
		})

		It("should tag the thread run with raised events", func() {
			build()

			tags := []string{}
			comp.AcceptHook(hooking.HookFunc(func(ctx hooking.HookCtx) {
				if ctx.Pos == hooking.HookPosTaskTag {
					tag := ctx.Item.(hooking.TaskTag)
					Expect(tag.What).To(Equal(EventTag))
					tags = append(tags, tag.Detail)
				}
			}))

			comp.Start()
			Expect(engine.Run()).To(Succeed())
			Expect(finish("u0")).To(Succeed())

			Expect(tags).To(Equal([]string{"loaded"}))
		})
	})
})
