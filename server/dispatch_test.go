package server

import (
	"encoding/json"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	gomock "go.uber.org/mock/gomock"

	"github.com/hwdebug/rtlserver/agent"
	"github.com/hwdebug/rtlserver/diag"
	"github.com/hwdebug/rtlserver/model"
	"github.com/hwdebug/rtlserver/spool"
)

func TestServer(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Server Suite")
}

// nopEvaluator never changes anything, so a single Step settles
// immediately and records one complete snapshot.
type nopEvaluator struct{}

func (nopEvaluator) Eval(diag.Performer) bool { return false }
func (nopEvaluator) Commit() bool             { return false }

func buildServer() (*Server, *agent.Agent) {
	m := model.New()
	m.AddItem(model.NewNode("top clk", 0, 1, model.FlagDrivenSync, nil))
	m.AddScope(&model.Scope{Name: "top"})
	m.AddScope(&model.Scope{Name: "top sub"})

	sp := spool.New(m)
	ag := agent.New(m, sp, nopEvaluator{}, diag.NopPerformer{})
	_ = ag.Step() // transitions to running, records the first snapshot

	return New(nil, ag, nil), ag
}

var _ = Describe("handlePacket", func() {
	It("should reject a command sent before a greeting", func() {
		srv, _ := buildServer()
		raw := srv.handlePacket([]byte(`{"type":"command","command":"list_scopes","scope":null}`))
		var decoded map[string]interface{}
		Expect(json.Unmarshal(raw, &decoded)).To(Succeed())
		Expect(decoded["error"]).To(Equal("protocol_error"))
	})

	It("should advertise every command and the base64(u32) encoding on greeting", func() {
		srv, _ := buildServer()
		raw := srv.handlePacket([]byte(`{"type":"greeting","version":0}`))
		var decoded map[string]interface{}
		Expect(json.Unmarshal(raw, &decoded)).To(Succeed())

		commands := decoded["commands"].([]interface{})
		Expect(commands).To(HaveLen(7))

		features := decoded["features"].(map[string]interface{})
		encodings := features["item_values_encoding"].([]interface{})
		Expect(encodings).To(ConsistOf("base64(u32)"))
	})

	It("should list only root scopes for scope=\"\"", func() {
		srv, _ := buildServer()
		srv.handlePacket([]byte(`{"type":"greeting","version":0}`))
		raw := srv.handlePacket([]byte(`{"type":"command","command":"list_scopes","scope":""}`))
		var decoded map[string]interface{}
		Expect(json.Unmarshal(raw, &decoded)).To(Succeed())

		scopes := decoded["scopes"].(map[string]interface{})
		Expect(scopes).To(HaveKey("top"))
		Expect(scopes).NotTo(HaveKey("top sub"))
	})

	It("should define a reference then answer query_interval with base64(u32) values", func() {
		srv, _ := buildServer()
		srv.handlePacket([]byte(`{"type":"greeting","version":0}`))

		refRaw := srv.handlePacket([]byte(
			`{"type":"command","command":"reference_items","reference":"A","items":[["top clk"]]}`))
		refDecoded := decodeMap(refRaw)
		Expect(refDecoded["type"]).To(Equal("response"))

		queryRaw := srv.handlePacket([]byte(
			`{"type":"command","command":"query_interval","interval":["0s","10ns"],"collapse":true,"items":"A","item_values_encoding":"base64(u32)","diagnostics":false}`))
		queryDecoded := decodeMap(queryRaw)
		samples := queryDecoded["samples"].([]interface{})
		Expect(samples).NotTo(BeEmpty())

		first := samples[0].(map[string]interface{})
		Expect(first).To(HaveKey("item_values"))
	})

	It("should return invalid_reference for an undefined reference", func() {
		srv, _ := buildServer()
		srv.handlePacket([]byte(`{"type":"greeting","version":0}`))

		raw := srv.handlePacket([]byte(
			`{"type":"command","command":"query_interval","interval":["0s","10ns"],"collapse":true,"items":"nope","item_values_encoding":"base64(u32)","diagnostics":false}`))
		decoded := decodeMap(raw)
		Expect(decoded["error"]).To(Equal("invalid_reference"))
	})

	It("should report status via get_simulation_status and accept pause_simulation", func() {
		srv, ag := buildServer()
		srv.handlePacket([]byte(`{"type":"greeting","version":0}`))

		// pause_simulation blocks until the simulation thread's next
		// advance observes the lowered run_until_time, so a background
		// goroutine stands in for that thread here.
		stop := make(chan struct{})
		go func() {
			for {
				select {
				case <-stop:
					return
				default:
					ag.Advance(1)
				}
			}
		}()
		defer close(stop)

		pauseRaw := srv.handlePacket([]byte(`{"type":"command","command":"pause_simulation"}`))
		pauseDecoded := decodeMap(pauseRaw)
		Expect(pauseDecoded).To(HaveKey("time"))

		Expect(ag.Shared.Read().Status).To(Equal(agent.Paused))

		statusRaw := srv.handlePacket([]byte(`{"type":"command","command":"get_simulation_status"}`))
		statusDecoded := decodeMap(statusRaw)
		Expect(statusDecoded["status"]).To(Equal("paused"))
		Expect(statusDecoded).To(HaveKey("next_sample_time"))
		Expect(statusDecoded["next_sample_time"]).To(Equal(ag.Shared.Read().LatestTime.String()))
	})

	It("should not arm a pause event for an unconditional free run", func() {
		mockController := gomock.NewController(GinkgoT())
		defer mockController.Finish()
		link := NewMockLink(mockController)

		srv, ag := buildServer()
		srv.link = link
		srv.handlePacket([]byte(`{"type":"greeting","version":0}`))

		stop := make(chan struct{})
		go func() {
			for {
				select {
				case <-stop:
					return
				default:
					ag.Advance(1)
				}
			}
		}()
		defer close(stop)

		srv.handlePacket([]byte(`{"type":"command","command":"pause_simulation"}`))
		Expect(ag.Shared.Read().Status).To(Equal(agent.Paused))

		runRaw := srv.handlePacket([]byte(
			`{"type":"command","command":"run_simulation","until_time":null,"until_diagnostics":[],"sample_item_values":true}`))
		Expect(decodeMap(runRaw)).NotTo(HaveKey("error"))
		Expect(srv.pendingArmed).To(BeFalse())

		pauseRaw := srv.handlePacket([]byte(`{"type":"command","command":"pause_simulation"}`))
		Expect(decodeMap(pauseRaw)).To(HaveKey("time"))

		// No SendPacket expectation is set on the mock link: draining
		// pending events after this pause must not attempt to send
		// simulation_paused, since the run it ended was unbounded.
		srv.emitPendingEvents()
	})

	It("should still emit simulation_paused when the agent re-pauses before the next poll", func() {
		mockController := gomock.NewController(GinkgoT())
		defer mockController.Finish()
		link := NewMockLink(mockController)

		m := model.New()
		sp := spool.New(m)
		ag := agent.New(m, sp, nopEvaluator{}, diag.NopPerformer{})
		Expect(ag.Step()).To(Succeed())

		srv := New(link, ag, nil)
		srv.handlePacket([]byte(`{"type":"greeting","version":0}`))

		stop := make(chan struct{})
		go func() {
			for {
				select {
				case <-stop:
					return
				default:
					ag.Advance(1)
				}
			}
		}()
		defer close(stop)

		srv.handlePacket([]byte(`{"type":"command","command":"pause_simulation"}`))
		Expect(ag.Shared.Read().Status).To(Equal(agent.Paused))

		// run_simulation arms pendingArmed and, by the time it returns,
		// the background goroutine may already have advanced the agent
		// back to paused at the 1ns run bound — the same
		// status value as before the call, with no intervening poll
		// to observe the transient running in between.
		runRaw := srv.handlePacket([]byte(
			`{"type":"command","command":"run_simulation","until_time":"1ns","until_diagnostics":[],"sample_item_values":true}`))
		Expect(decodeMap(runRaw)).NotTo(HaveKey("error"))

		Eventually(func() agent.Status {
			return ag.Shared.Read().Status
		}, time.Second).Should(Equal(agent.Paused))

		var sent string
		link.EXPECT().SendPacket(gomock.Any()).Do(func(packet string) { sent = packet })

		srv.emitPendingEvents()

		Expect(sent).To(ContainSubstring("simulation_paused"))
	})
})

func decodeMap(raw []byte) map[string]interface{} {
	var out map[string]interface{}
	_ = json.Unmarshal(raw, &out)
	return out
}
