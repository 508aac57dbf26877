package report_test

import (
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/sarchlab/schd/report"
)

type fixedClock float64

func (c fixedClock) Now() float64 {
	return float64(c)
}

var _ = Describe("Error", func() {
	It("should carry kind, component and key", func() {
		err := report.ProtocolErrorf("u0", "mem", "unexpected update from %s", "mem")

		Expect(err.Error()).To(Equal(
			"fatal protocol error: u0 [mem]: unexpected update from mem"))
		Expect(report.IsKind(err, report.ProtocolError)).To(BeTrue())
		Expect(report.IsKind(err, report.ModelError)).To(BeFalse())
	})

	It("should be found through wrapping", func() {
		err := fmt.Errorf("run: %w", report.InvariantErrorf("planner", "t0", "bad"))

		Expect(report.IsKind(err, report.InvariantViolation)).To(BeTrue())
	})

	It("should collect errors", func() {
		var es report.Errors
		Expect(es.ErrOrNil()).To(BeNil())

		es = append(es,
			report.ModelErrorf("model", "a", "first"),
			report.ModelErrorf("model", "b", "second"))

		err := es.ErrOrNil()
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("and 1 more"))
		Expect(report.IsKind(err, report.ModelError)).To(BeTrue())
	})
})

var _ = Describe("Reporter", func() {
	var (
		logs *observer.ObservedLogs
		r    *report.Reporter
	)

	BeforeEach(func() {
		core, observed := observer.New(zap.DebugLevel)
		logs = observed
		r = report.NewReporterWithLogger(zap.New(core))
		r.SetClock(fixedClock(1.5))
	})

	It("should tag records with category and time", func() {
		r.Info("planner", "dispatched", zap.String("thread", "t0"))

		Expect(logs.Len()).To(Equal(1))
		entry := logs.All()[0]
		Expect(entry.Message).To(Equal("dispatched"))
		Expect(entry.ContextMap()).To(HaveKeyWithValue("category", "planner"))
		Expect(entry.ContextMap()).To(HaveKeyWithValue("sim_time", 1.5))
		Expect(entry.ContextMap()).To(HaveKeyWithValue("thread", "t0"))
	})

	It("should report fatal errors with their key", func() {
		r.Fatal(report.ModelErrorf("model", "A", "unresolved ignition event"))

		entry := logs.All()[0]
		Expect(entry.Level).To(Equal(zap.ErrorLevel))
		Expect(entry.ContextMap()).To(HaveKeyWithValue("category", "model error"))
		Expect(entry.ContextMap()).To(HaveKeyWithValue("key", "A"))
		Expect(entry.ContextMap()).To(HaveKeyWithValue("severity", "fatal"))
	})

	It("should reject an unknown level", func() {
		_, err := report.NewReporter(report.Config{Level: "chatty"})
		Expect(err).To(HaveOccurred())
	})
})
