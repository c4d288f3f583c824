package vtime_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/hwdebug/rtlserver/vtime"
)

func TestVTime(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "VTime Suite")
}

var _ = Describe("Time", func() {
	It("should round-trip simple units", func() {
		cases := []string{"0s", "1s", "10ns", "250ps", "7us", "3ms", "1fs"}
		for _, c := range cases {
			parsed, err := vtime.Parse(c)
			Expect(err).NotTo(HaveOccurred())
			Expect(vtime.Format(parsed)).To(Equal(c))
		}
	})

	It("should parse fractional units exactly", func() {
		parsed, err := vtime.Parse("1.5us")
		Expect(err).NotTo(HaveOccurred())
		Expect(parsed).To(Equal(vtime.Time(1_500_000_000)))
	})

	It("should reject malformed text", func() {
		_, err := vtime.Parse("10 ns")
		Expect(err).To(HaveOccurred())

		_, err = vtime.Parse("ns10")
		Expect(err).To(HaveOccurred())
	})

	It("should format the maximum as inf", func() {
		Expect(vtime.Format(vtime.Maximum())).To(Equal("inf"))
	})

	It("should order timestamps", func() {
		a, _ := vtime.Parse("10ns")
		b, _ := vtime.Parse("20ns")
		Expect(a.Before(b)).To(BeTrue())
		Expect(b.After(a)).To(BeTrue())
	})

	It("should add deltas", func() {
		a, _ := vtime.Parse("10ns")
		d, _ := vtime.Parse("5ns")
		Expect(a.Add(d)).To(Equal(vtime.Time(15_000_000)))
	})
})
