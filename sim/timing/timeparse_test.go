package timing

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("ParseTime", func() {
	DescribeTable("valid inputs",
		func(in string, expected VTimeInSec) {
			t, err := ParseTime(in)
			Expect(err).NotTo(HaveOccurred())
			Expect(t).To(BeNumerically("~", expected, expected*1e-9))
		},
		Entry("bare seconds", "3", 3.0),
		Entry("seconds", "1.5 s", 1.5),
		Entry("milliseconds", "2ms", 2e-3),
		Entry("microseconds", "10 us", 10e-6),
		Entry("nanoseconds", "100 ns", 100e-9),
		Entry("exponent", "1e3 ns", 1e-6),
	)

	DescribeTable("invalid inputs",
		func(in string) {
			_, err := ParseTime(in)
			Expect(err).To(HaveOccurred())
		},
		Entry("empty", ""),
		Entry("unknown unit", "3 hours"),
		Entry("negative", "-1 s"),
		Entry("garbage", "ten seconds"),
	)

	It("should format times", func() {
		Expect(FormatTime(0)).To(Equal("0 s"))
		Expect(FormatTime(2)).To(Equal("2 s"))
		Expect(FormatTime(1.5e-6)).To(Equal("1.5 us"))
	})
})
