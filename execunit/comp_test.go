package execunit

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/schd/msg"
	"github.com/sarchlab/schd/report"
	"github.com/sarchlab/schd/sim/hooking"
	"github.com/sarchlab/schd/sim/timing"
)

type sent struct {
	Time timing.VTimeInSec
	Dst  []string
	Body msg.Doc
}

func dispatchDoc(runtime float64, common ...msg.Demand) msg.Doc {
	return msg.Dispatch{
		Thread:  "t0",
		Task:    "a",
		Runtime: runtime,
		Param:   msg.Doc{"id": 1.0},
		Common:  common,
	}.Doc()
}

var _ = Describe("Comp", func() {
	var (
		mockCtrl  *gomock.Controller
		engine    *timing.SerialEngine
		toRes     *MockSender
		toPlanner *MockSender
		comp      *Comp
		resSent   []sent
		planSent  []sent
	)

	dispatch := func(doc msg.Doc) {
		env := msg.NewEnvelope("planner", []string{"u0"}, doc)
		Expect(comp.DispatchPort.Deliver(env)).To(Succeed())
	}

	reply := func(src string, connected bool, demand float64) {
		env := msg.NewEnvelope(src, []string{"u0"},
			msg.Link{Connected: connected, Demand: demand}.Doc())
		Expect(comp.DemandPort.Deliver(env)).To(Succeed())
	}

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		engine = timing.NewSerialEngine()
		toRes = NewMockSender(mockCtrl)
		toPlanner = NewMockSender(mockCtrl)
		resSent = nil
		planSent = nil

		toRes.EXPECT().Send(gomock.Any()).DoAndReturn(func(env *msg.Envelope) error {
			resSent = append(resSent, sent{engine.Now(), env.Dst, env.Body})
			return nil
		}).AnyTimes()
		toPlanner.EXPECT().Send(gomock.Any()).DoAndReturn(func(env *msg.Envelope) error {
			Expect(env.Src).To(Equal("u0"))
			planSent = append(planSent, sent{engine.Now(), env.Dst, env.Body})
			return nil
		}).AnyTimes()

		comp = MakeBuilder().
			WithEngine(engine).
			WithResourceOutput(toRes).
			WithPlannerOutput(toPlanner).
			WithResource("r1", 10).
			WithResource("r0", 10).
			Build("u0")
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should keep the resources in name order", func() {
		status := comp.Resources()

		Expect(status).To(HaveLen(2))
		Expect(status[0].Name).To(Equal("r0"))
		Expect(status[1].Name).To(Equal("r1"))
		Expect(status[0].State).To(Equal(Idle))
	})

	It("should complete a job without resources at the nominal time", func() {
		dispatch(dispatchDoc(10))
		Expect(engine.Run()).To(Succeed())

		Expect(resSent).To(BeEmpty())
		Expect(planSent).To(Equal([]sent{
			{Time: 10, Dst: []string{"planner"}, Body: msg.Doc{}},
		}))
		Expect(comp.Busy()).To(BeFalse())
		Expect(comp.NumJobs()).To(Equal(uint64(1)))
	})

	It("should complete a zero-length job at once", func() {
		dispatch(dispatchDoc(0))
		Expect(engine.Run()).To(Succeed())

		Expect(planSent).To(HaveLen(1))
		Expect(planSent[0].Time).To(Equal(0.0))
	})

	It("should connect, run and disconnect", func() {
		dispatch(dispatchDoc(10, msg.Demand{Res: "r0", Demand: 5}))
		Expect(engine.RunUntil(0)).To(Succeed())

		Expect(resSent).To(Equal([]sent{
			{Time: 0, Dst: []string{"r0"},
				Body: msg.Link{Connected: true, Demand: 5}.Doc()},
		}))
		Expect(comp.Resources()[0].State).To(Equal(WaitConnect))
		running, err := msg.ParseDispatch(
			dispatchDoc(10, msg.Demand{Res: "r0", Demand: 5}))
		Expect(err).NotTo(HaveOccurred())
		Expect(comp.JobHash()).To(Equal(running.Hash()))

		reply("r0", true, 5)
		Expect(engine.RunUntil(0)).To(Succeed())

		r0 := comp.Resources()[0]
		Expect(r0.State).To(Equal(Connected))
		Expect(r0.ResLoad).To(Equal(0.5))
		Expect(r0.ExecDemand).To(Equal(5.0))
		Expect(comp.Coefficient()).To(Equal(1.0))
		Expect(resSent).To(HaveLen(1))

		Expect(engine.RunUntil(10)).To(Succeed())

		Expect(resSent).To(HaveLen(2))
		Expect(resSent[1]).To(Equal(sent{
			Time: 10, Dst: []string{"r0"},
			Body: msg.Link{Connected: false, Demand: 0}.Doc(),
		}))
		Expect(comp.Resources()[0].State).To(Equal(WaitDisconnect))
		Expect(comp.JobHash()).To(Equal(uint64(0)))
		Expect(planSent).To(BeEmpty())

		reply("r0", false, 0)
		Expect(engine.Run()).To(Succeed())

		Expect(comp.Resources()[0].State).To(Equal(Idle))
		Expect(planSent).To(HaveLen(1))
		Expect(planSent[0].Time).To(Equal(10.0))
		Expect(comp.Busy()).To(BeFalse())
	})

	It("should send one disconnect to all the resources", func() {
		dispatch(dispatchDoc(4,
			msg.Demand{Res: "r1", Demand: 1},
			msg.Demand{Res: "r0", Demand: 0}))
		Expect(engine.Run()).To(Succeed())

		Expect(resSent).To(HaveLen(3))
		Expect(resSent[0].Dst).To(Equal([]string{"r1"}))
		Expect(resSent[1].Dst).To(Equal([]string{"r0"}))
		Expect(resSent[2]).To(Equal(sent{
			Time: 4, Dst: []string{"r0", "r1"},
			Body: msg.Link{Connected: false, Demand: 0}.Doc(),
		}))

		reply("r1", true, 1)
		reply("r0", false, 0)
		Expect(engine.Run()).To(Succeed())
		Expect(planSent).To(BeEmpty())

		reply("r1", false, 0)
		Expect(engine.Run()).To(Succeed())
		Expect(planSent).To(HaveLen(1))
	})

	It("should stretch the run time when a resource is overloaded", func() {
		dispatch(dispatchDoc(10, msg.Demand{Res: "r0", Demand: 8}))
		Expect(engine.RunUntil(0)).To(Succeed())

		reply("r0", true, 8)
		reply("r0", true, 16)
		Expect(engine.RunUntil(0)).To(Succeed())

		Expect(comp.Coefficient()).To(Equal(1.6))
		Expect(resSent).To(HaveLen(1))

		Expect(engine.RunUntil(15.9)).To(Succeed())
		Expect(resSent).To(HaveLen(1))

		Expect(engine.RunUntil(16)).To(Succeed())
		Expect(resSent).To(HaveLen(2))
		Expect(resSent[1].Time).To(Equal(16.0))
	})

	It("should rescale only the remaining time", func() {
		dispatch(dispatchDoc(10, msg.Demand{Res: "r0", Demand: 8}))
		reply("r0", true, 8)
		Expect(engine.RunUntil(5)).To(Succeed())

		reply("r0", true, 16)
		Expect(engine.RunUntil(5)).To(Succeed())
		Expect(comp.Coefficient()).To(Equal(1.6))

		Expect(engine.RunUntil(7)).To(Succeed())
		Expect(comp.Coefficient()).To(Equal(1.6))

		reply("r0", true, 8)
		Expect(engine.RunUntil(7)).To(Succeed())
		Expect(comp.Coefficient()).To(Equal(1.0))

		Expect(engine.Run()).To(Succeed())

		// 5 s at full speed, 2 s at 1/1.6 speed, then 3.75 s of work left.
		Expect(resSent[len(resSent)-1].Time).To(BeNumerically("~", 10.75, 1e-9))
	})

	It("should scale down the demand on the other resources", func() {
		dispatch(dispatchDoc(10,
			msg.Demand{Res: "r0", Demand: 8},
			msg.Demand{Res: "r1", Demand: 4}))
		reply("r0", true, 16)
		reply("r1", true, 4)
		Expect(engine.RunUntil(0)).To(Succeed())

		Expect(resSent).To(HaveLen(3))
		Expect(resSent[2]).To(Equal(sent{
			Time: 0, Dst: []string{"r1"},
			Body: msg.Link{Connected: true, Demand: 2.5}.Doc(),
		}))

		reply("r1", true, 2.5)
		Expect(engine.RunUntil(0)).To(Succeed())
		Expect(resSent).To(HaveLen(3))
		Expect(comp.Resources()[1].ExecDemand).To(Equal(2.5))
	})

	It("should not react to an unchanged load", func() {
		dispatch(dispatchDoc(10, msg.Demand{Res: "r0", Demand: 5}))
		reply("r0", true, 5)
		Expect(engine.RunUntil(0)).To(Succeed())

		before := len(resSent)
		reply("r0", true, 5)
		Expect(engine.RunUntil(1)).To(Succeed())

		Expect(resSent).To(HaveLen(before))
		Expect(comp.Coefficient()).To(Equal(1.0))
	})

	It("should ignore updates while disconnecting", func() {
		dispatch(dispatchDoc(1, msg.Demand{Res: "r0", Demand: 5}))
		Expect(engine.Run()).To(Succeed())

		reply("r0", true, 5)
		Expect(engine.Run()).To(Succeed())

		Expect(comp.Resources()[0].State).To(Equal(WaitDisconnect))
	})

	It("should report job tasks to hooks", func() {
		var positions []*hooking.HookPos

		comp.AcceptHook(hooking.HookFunc(func(ctx hooking.HookCtx) {
			positions = append(positions, ctx.Pos)
		}))

		dispatch(dispatchDoc(10, msg.Demand{Res: "r0", Demand: 8}))
		reply("r0", true, 16)
		Expect(engine.Run()).To(Succeed())
		reply("r0", false, 0)
		Expect(engine.Run()).To(Succeed())

		Expect(positions).To(Equal([]*hooking.HookPos{
			hooking.HookPosTaskStart,
			hooking.HookPosTaskTag,
			hooking.HookPosTaskEnd,
		}))
	})

	Context("when the protocol is violated", func() {
		It("should reject a dispatch while running", func() {
			dispatch(dispatchDoc(10))
			dispatch(dispatchDoc(10))

			err := engine.Run()
			Expect(report.IsKind(err, report.ProtocolError)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("unexpected request while running"))
		})

		It("should reject an unknown resource in a dispatch", func() {
			dispatch(dispatchDoc(10, msg.Demand{Res: "r9", Demand: 1}))

			err := engine.Run()
			Expect(report.IsKind(err, report.ModelError)).To(BeTrue())
		})

		It("should reject a duplicated connection", func() {
			dispatch(dispatchDoc(10,
				msg.Demand{Res: "r0", Demand: 1},
				msg.Demand{Res: "r0", Demand: 2}))

			err := engine.Run()
			Expect(report.IsKind(err, report.ProtocolError)).To(BeTrue())
		})

		It("should reject an update from an unknown resource", func() {
			reply("r9", true, 1)

			err := engine.Run()
			Expect(report.IsKind(err, report.ProtocolError)).To(BeTrue())
		})

		It("should reject an update for an idle resource", func() {
			reply("r0", true, 1)

			err := engine.Run()
			Expect(report.IsKind(err, report.ProtocolError)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("unexpected state transition"))
		})

		It("should reject a disconnect while connected", func() {
			dispatch(dispatchDoc(10, msg.Demand{Res: "r0", Demand: 1}))
			reply("r0", true, 1)
			reply("r0", false, 0)

			err := engine.Run()
			Expect(report.IsKind(err, report.ProtocolError)).To(BeTrue())
		})
	})
})
