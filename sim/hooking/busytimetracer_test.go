package hooking

import (
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/gmeasure"
)

type stubTimeTeller struct {
	now float64
}

func (t *stubTimeTeller) Now() float64 {
	return t.now
}

var _ = Describe("BusyTimeTracer", func() {
	var (
		timeTeller *stubTimeTeller
		t          *BusyTimeTracer
	)

	BeforeEach(func() {
		timeTeller = &stubTimeTeller{}

		t = NewBusyTimeTracer(timeTeller, nil)
	})

	It("should track busy time, one task", func() {
		timeTeller.now = 1
		t.StartTask(TaskStart{ID: "1"})

		timeTeller.now = 2
		t.EndTask(TaskEnd{ID: "1"})

		Expect(t.BusyTime()).To(Equal(1.0))
		Expect(t.NumTasks()).To(Equal(uint64(1)))
	})

	It("should track busy time, two tasks", func() {
		timeTeller.now = 1
		t.StartTask(TaskStart{ID: "1"})
		timeTeller.now = 2
		t.EndTask(TaskEnd{ID: "1"})

		timeTeller.now = 3
		t.StartTask(TaskStart{ID: "2"})
		timeTeller.now = 4
		t.EndTask(TaskEnd{ID: "2"})

		Expect(t.BusyTime()).To(Equal(2.0))
	})

	It("should track busy time, two tasks overlap", func() {
		timeTeller.now = 1
		t.StartTask(TaskStart{ID: "1"})

		timeTeller.now = 1.5
		t.StartTask(TaskStart{ID: "2"})

		timeTeller.now = 2
		t.EndTask(TaskEnd{ID: "1"})

		timeTeller.now = 2.5
		t.EndTask(TaskEnd{ID: "2"})

		Expect(t.BusyTime()).To(Equal(1.5))
	})

	It("should not count an interval twice when it is nested", func() {
		timeTeller.now = 1
		t.StartTask(TaskStart{ID: "a"})
		timeTeller.now = 1.5
		t.StartTask(TaskStart{ID: "c"})
		timeTeller.now = 2
		t.EndTask(TaskEnd{ID: "c"})
		timeTeller.now = 3
		t.StartTask(TaskStart{ID: "b"})
		timeTeller.now = 5
		t.EndTask(TaskEnd{ID: "a"})
		timeTeller.now = 6
		t.EndTask(TaskEnd{ID: "b"})

		Expect(t.BusyTime()).To(BeNumerically("~", 5.0))
	})

	It("should track busy time, four tasks", func() {
		timeTeller.now = 1
		t.StartTask(TaskStart{ID: "1"})
		timeTeller.now = 1.1
		t.StartTask(TaskStart{ID: "2"})
		timeTeller.now = 1.2
		t.EndTask(TaskEnd{ID: "2"})
		timeTeller.now = 1.9
		t.StartTask(TaskStart{ID: "3"})
		timeTeller.now = 2
		t.EndTask(TaskEnd{ID: "1"})
		timeTeller.now = 2.1
		t.EndTask(TaskEnd{ID: "3"})
		timeTeller.now = 3.1
		t.StartTask(TaskStart{ID: "4"})
		timeTeller.now = 3.2
		t.EndTask(TaskEnd{ID: "4"})

		Expect(t.BusyTime()).To(BeNumerically("~", 1.2))
	})

	It("should be able to terminate all the tasks", func() {
		timeTeller.now = 1
		t.StartTask(TaskStart{ID: "1"})
		timeTeller.now = 1.1
		t.StartTask(TaskStart{ID: "2"})
		timeTeller.now = 1.9
		t.StartTask(TaskStart{ID: "3"})
		timeTeller.now = 2.1
		t.EndTask(TaskEnd{ID: "3"})

		timeTeller.now = 3.5
		t.TerminateAllTasks()

		Expect(t.BusyTime()).To(BeNumerically("~", 2.5, 0.01))
	})

	It("should skip tasks rejected by the filter", func() {
		t = NewBusyTimeTracer(timeTeller, func(ts TaskStart) bool {
			return ts.Kind == "job"
		})

		timeTeller.now = 1
		t.Func(HookCtx{Pos: HookPosTaskStart, Item: TaskStart{ID: "1", Kind: "other"}})
		timeTeller.now = 2
		t.Func(HookCtx{Pos: HookPosTaskEnd, Item: TaskEnd{ID: "1"}})

		Expect(t.BusyTime()).To(Equal(0.0))
	})

	It("measure busy time tracer", func() {
		experiment := gmeasure.NewExperiment("Busy Time Tracer Performance")
		AddReportEntry(experiment.Name, experiment)

		experiment.MeasureDuration("runtime", func() {
			for i := 0; i < 10000; i++ {
				taskID := fmt.Sprintf("%d", i)

				timeTeller.now = float64(i * 2)
				t.StartTask(TaskStart{
					ID: taskID,
				})

				timeTeller.now = float64(i*2 + 1)
				t.EndTask(TaskEnd{
					ID: taskID,
				})
			}

			Expect(t.BusyTime()).To(BeNumerically("~", 10000, 0.01))
		})
	})
})

var _ = Describe("TagCountTracer", func() {
	It("should count tags per location", func() {
		t := NewTagCountTracer()

		t.Func(HookCtx{Pos: HookPosTaskTag, Item: TaskTag{What: "rescale", Where: "u0"}})
		t.Func(HookCtx{Pos: HookPosTaskTag, Item: TaskTag{What: "rescale", Where: "u1"}})
		t.Func(HookCtx{Pos: HookPosTaskTag, Item: TaskTag{What: "rescale", Where: "u0"}})
		t.Func(HookCtx{Pos: HookPosTaskStart, Item: TaskStart{ID: "x"}})

		Expect(t.GetTagNames()).To(Equal([]string{"rescale"}))
		Expect(t.GetTagCount("rescale")).To(Equal(uint64(3)))
		Expect(t.GetTagCountAt("rescale", "u0")).To(Equal(uint64(2)))
		Expect(t.GetTagCount("other")).To(Equal(uint64(0)))
	})
})

var _ = Describe("HookableBase", func() {
	It("should invoke hooks in registration order", func() {
		h := &HookableBase{}
		order := []int{}

		h.AcceptHook(HookFunc(func(HookCtx) { order = append(order, 1) }))
		h.AcceptHook(HookFunc(func(HookCtx) { order = append(order, 2) }))
		h.InvokeHook(HookCtx{})

		Expect(h.NumHooks()).To(Equal(2))
		Expect(order).To(Equal([]int{1, 2}))
	})

	It("should reject a duplicated hook", func() {
		h := &HookableBase{}
		t := NewTagCountTracer()

		h.AcceptHook(t)

		Expect(func() { h.AcceptHook(t) }).To(Panic())
	})
})
