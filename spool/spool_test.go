package spool_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/hwdebug/rtlserver/diag"
	"github.com/hwdebug/rtlserver/model"
	"github.com/hwdebug/rtlserver/spool"
	"github.com/hwdebug/rtlserver/vtime"
)

func TestSpool(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Spool Suite")
}

func buildFixture() (*model.Model, *spool.Spool) {
	m := model.New()
	m.AddItem(model.NewNode("top clk", 0, 1, 0, nil))
	s := spool.New(m)
	return m, s
}

var _ = Describe("Spool", func() {
	It("should replay to the value at a recorded time", func() {
		m, s := buildFixture()

		Expect(s.Append(spool.Sample{
			Time: 0, Complete: true,
			Values: map[string][]uint32{"top clk": {0}},
		})).To(Succeed())

		Expect(s.Append(spool.Sample{
			Time: 10, Complete: false,
			Values: map[string][]uint32{"top clk": {1}},
		})).To(Succeed())

		Expect(s.Append(spool.Sample{
			Time: 20, Complete: false,
			Values: map[string][]uint32{"top clk": {0}},
		})).To(Succeed())

		Expect(s.RewindToOrBefore(10)).To(Succeed())
		it, _ := m.Item("top clk")
		Expect(it.Value[0]).To(Equal(uint32(1)))
		Expect(s.CurrentTime()).To(Equal(vtime.Time(10)))

		Expect(s.RewindToOrBefore(0)).To(Succeed())
		Expect(it.Value[0]).To(Equal(uint32(0)))

		Expect(s.ReplayStep()).To(BeTrue())
		Expect(it.Value[0]).To(Equal(uint32(1)))
	})

	It("should reject a timestamp earlier than the last recorded one", func() {
		_, s := buildFixture()
		Expect(s.Append(spool.Sample{Time: 10, Complete: true})).To(Succeed())
		Expect(s.Append(spool.Sample{Time: 5, Complete: false})).To(HaveOccurred())
	})

	It("should answer query_interval idempotently across repeated calls", func() {
		m, s := buildFixture()
		s.Append(spool.Sample{Time: 0, Complete: true, Values: map[string][]uint32{"top clk": {0}}})
		s.Append(spool.Sample{Time: 10, Complete: false, Values: map[string][]uint32{"top clk": {1}}})
		s.Append(spool.Sample{Time: 20, Complete: false, Values: map[string][]uint32{"top clk": {0}}})

		it, _ := m.Item("top clk")
		refs := model.NewReferences()
		refs.Define("A", []model.Window{{Item: it, First: 0, Last: 0}})
		ref, _ := refs.Lookup("A")

		first, err := s.QueryInterval(0, 20, true, ref, false, nil)
		Expect(err).NotTo(HaveOccurred())

		second, err := s.QueryInterval(0, 20, true, ref, false, nil)
		Expect(err).NotTo(HaveOccurred())

		Expect(second).To(Equal(first))
	})

	It("should accumulate diagnostics across a coalesced collapse step", func() {
		_, s := buildFixture()
		s.Append(spool.Sample{Time: 0, Complete: true, Values: map[string][]uint32{"top clk": {0}}})
		s.Append(spool.Sample{
			Time: 0, Complete: false,
			Diagnostics: []diag.Diagnostic{{Kind: diag.Print, Message: "hi"}},
		})

		results, err := s.QueryInterval(0, 0, true, nil, true, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(1))
		Expect(results[0].Diagnostics).To(HaveLen(1))
	})
})
