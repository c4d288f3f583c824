package peripherals

import (
	"bytes"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/hwdebug/rtlserver/model"
	"github.com/hwdebug/rtlserver/vtime"
)

func TestPeripherals(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Peripherals Suite")
}

type fakeLog struct {
	events []string
}

func (f *fakeLog) LogEvent(_ vtime.Time, _, event string, _ interface{}) error {
	f.events = append(f.events, event)
	return nil
}

func buildPinModel(names ...string) *model.Model {
	m := model.New()
	for _, n := range names {
		m.AddItem(model.NewNode(n, 0, 4, model.FlagOutput, nil))
	}
	return m
}

var _ = Describe("GPIO", func() {
	It("should drive the input pin from output when output-enabled, and log on change", func() {
		m := buildPinModel("gpio o", "gpio oe", "gpio i")
		log := &fakeLog{}
		g, err := NewGPIO(m, "gpio", "gpio o", "gpio oe", "gpio i", log, nil)
		Expect(err).NotTo(HaveOccurred())

		o, _ := m.Item("gpio o")
		oe, _ := m.Item("gpio oe")
		i, _ := m.Item("gpio i")

		writePin(o, 0b1010)
		writePin(oe, 0b1111)
		Expect(g.Step(vtime.Zero)).To(Succeed())
		Expect(readPin(i)).To(Equal(uint32(0b1010)))
		Expect(log.events).To(ConsistOf("change"))

		Expect(g.Step(vtime.Time(1))).To(Succeed())
		Expect(log.events).To(HaveLen(1)) // no change, no second log
	})

	It("should pass through pending input on released pins", func() {
		m := buildPinModel("gpio o", "gpio oe", "gpio i")
		oe, _ := m.Item("gpio oe")
		writePin(oe, 0b0000)

		g, err := NewGPIO(m, "gpio", "gpio o", "gpio oe", "gpio i", nil, nil)
		Expect(err).NotTo(HaveOccurred())
		g.pend = 0b0101

		i, _ := m.Item("gpio i")
		Expect(g.Step(vtime.Zero)).To(Succeed())
		Expect(readPin(i)).To(Equal(uint32(0b0101)))
	})
})

var _ = Describe("WishboneMonitor", func() {
	It("should log one CSV line per completed transaction on a clock posedge", func() {
		m := model.New()
		for _, n := range []string{"clk", "stb", "cyc", "ack", "we", "sel", "adr", "dat_w", "dat_r"} {
			m.AddItem(model.NewNode(n, 0, 32, 0, nil))
		}
		var buf bytes.Buffer
		mon, err := NewWishboneMonitor(m, WishboneMonitorPins{
			Clk: "clk", Stb: "stb", Cyc: "cyc", Ack: "ack", We: "we", Sel: "sel", Adr: "adr", DatW: "dat_w", DatR: "dat_r",
		}, &buf)
		Expect(err).NotTo(HaveOccurred())

		set := func(name string, v uint32) {
			it, _ := m.Item(name)
			writePin(it, v)
		}
		set("stb", 1)
		set("cyc", 1)
		set("ack", 1)
		set("we", 1)
		set("sel", 0xF)
		set("adr", 0x100)
		set("dat_w", 0xDEADBEEF)

		Expect(mon.Step(vtime.Zero)).To(Succeed()) // primes lastClk, no edge yet
		set("clk", 1)
		Expect(mon.Step(vtime.Time(1))).To(Succeed())

		Expect(buf.String()).To(ContainSubstring("00000400,W,deadbeef"))
	})
})

var _ = Describe("UART", func() {
	It("should receive a byte framed with a start and stop bit", func() {
		m := model.New()
		m.AddItem(model.NewNode("tx", 0, 1, 0, nil))
		m.AddItem(model.NewNode("rx", 0, 1, 0, nil))
		log := &fakeLog{}
		u, err := NewUART(m, "uart0", "tx", "rx", 4, log, nil)
		Expect(err).NotTo(HaveOccurred())

		tx, _ := m.Item("tx")
		send := func(v uint32) {
			writePin(tx, v)
			Expect(u.Step(vtime.Zero)).To(Succeed())
		}

		// idle, then start bit, then byte 0x55 (LSB first), then stop bit;
		// data and stop bits are held for baudDiv ticks each.
		bits := []uint32{1, 1, 1, 1, 0, 0, 0, 0, 0} // idle (4 ticks), start bit (5 ticks)
		for _, b := range bits {
			send(b)
		}
		frame := []uint32{1, 0, 1, 0, 1, 0, 1, 0} // 0x55 LSB first
		for _, bit := range frame {
			for i := 0; i < 4; i++ {
				send(bit)
			}
		}
		for i := 0; i < 4; i++ {
			send(1) // stop bit
		}

		Expect(log.events).To(ContainElement("rx"))
	})
})
