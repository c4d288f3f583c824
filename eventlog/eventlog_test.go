package eventlog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/hwdebug/rtlserver/vtime"
)

func TestEventLog(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "EventLog Suite")
}

var _ = Describe("Logger", func() {
	It("should write every logged event to disk on Close", func() {
		dir := GinkgoT().TempDir()
		path := filepath.Join(dir, "events.json")

		l := NewLogger(path)
		Expect(l.LogEvent(vtime.Time(0), "gpio0", "change", "10Z1")).To(Succeed())
		Expect(l.LogEvent(vtime.Time(1000), "gpio0", "change", "1111")).To(Succeed())
		Expect(l.Close()).To(Succeed())

		raw, err := os.ReadFile(path)
		Expect(err).NotTo(HaveOccurred())

		var decoded logFile
		Expect(json.Unmarshal(raw, &decoded)).To(Succeed())
		Expect(decoded.Events).To(HaveLen(2))
		Expect(decoded.Events[1].Timestamp).To(Equal(uint64(1000)))
	})

	It("should be idempotent across repeated Close calls", func() {
		dir := GinkgoT().TempDir()
		path := filepath.Join(dir, "events.json")

		l := NewLogger(path)
		Expect(l.LogEvent(vtime.Time(0), "uart0", "tx", "A")).To(Succeed())
		Expect(l.Close()).To(Succeed())
		Expect(l.Close()).To(Succeed())
	})
})

var _ = Describe("Player", func() {
	writeCommands := func(dir string, cmds []Command) string {
		path := filepath.Join(dir, "commands.json")
		raw, err := json.Marshal(commandFile{Commands: cmds})
		Expect(err).NotTo(HaveOccurred())
		Expect(os.WriteFile(path, raw, 0o644)).To(Succeed())
		return path
	}

	It("should queue the initial burst of actions up to the first wait", func() {
		dir := GinkgoT().TempDir()
		path := writeCommands(dir, []Command{
			{Type: "action", Peripheral: "gpio0", Event: "set", Payload: json.RawMessage(`"1Z1Z"`)},
			{Type: "wait", Peripheral: "uart0", Event: "rx"},
			{Type: "action", Peripheral: "gpio0", Event: "set", Payload: json.RawMessage(`"0000"`)},
		})

		p, err := LoadPlayer(path)
		Expect(err).NotTo(HaveOccurred())

		actions := p.GetPendingActions("gpio0")
		Expect(actions).To(HaveLen(1))
		Expect(p.GetPendingActions("gpio0")).To(BeEmpty())
		Expect(p.Done()).To(BeFalse())
	})

	It("should release the next burst only once the exact wait is observed", func() {
		dir := GinkgoT().TempDir()
		path := writeCommands(dir, []Command{
			{Type: "wait", Peripheral: "uart0", Event: "rx"},
			{Type: "action", Peripheral: "gpio0", Event: "set", Payload: json.RawMessage(`"1111"`)},
		})

		p, err := LoadPlayer(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(p.GetPendingActions("gpio0")).To(BeEmpty())

		p.Observe("uart0", "tx") // wrong event, barrier stays shut
		Expect(p.GetPendingActions("gpio0")).To(BeEmpty())

		p.Observe("uart0", "rx")
		Expect(p.GetPendingActions("gpio0")).To(HaveLen(1))
		Expect(p.Done()).To(BeTrue())
	})
})
