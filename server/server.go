// Package server implements the debug server's I/O thread: it owns the
// link, parses and dispatches JSON packets, answers queries against the
// agent's spool, and emits simulation_paused/simulation_finished events
// when the agent's shared state says to.
package server

import (
	"context"
	"encoding/json"
	"log"

	"github.com/hwdebug/rtlserver/agent"
	"github.com/hwdebug/rtlserver/model"
	"github.com/hwdebug/rtlserver/transport"
)

// Server is the debugger-facing I/O peer of an Agent.
type Server struct {
	link transport.Link
	ag   *agent.Agent
	refs *model.References

	greeted      bool
	pendingArmed bool
	sentFinished bool

	logger *log.Logger
}

// New returns a Server that will serve link on behalf of ag.
func New(link transport.Link, ag *agent.Agent, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{
		link: link, ag: ag, refs: model.NewReferences(),
		logger: logger,
	}
}

// Start blocks until the agent leaves the initializing status, then
// returns. Server construction requires this precondition before Run is
// entered.
func (s *Server) Start(ctx context.Context) {
	s.ag.Shared.WaitUntilNotInitializing(ctx)
}

// Run executes the server's main loop: poll the link with a 200ms
// timeout, drain and answer every complete packet, then emit any pending
// simulation events, until the link reports an unrecoverable failure or
// ctx is cancelled.
func (s *Server) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		if !s.link.Poll(ctx, agent.PollTimeout) {
			s.logger.Printf("server: link error: %v", s.link.PollError())
			return
		}

		for {
			packet, ok := s.link.RecvPacket()
			if !ok {
				break
			}
			if resp := s.handlePacket([]byte(packet)); resp != nil {
				s.link.SendPacket(string(resp))
			}
		}

		s.emitPendingEvents()
	}
}

// emitPendingEvents consumes the agent's pause latch, rather than diffing
// the current status against a last-seen value: a run_simulation that
// pauses again before the server's next poll would otherwise read as "no
// change" and the event would be lost for good. Finished has no such
// race (the agent never leaves it), so it is still reported the first
// time it's observed.
func (s *Server) emitPendingEvents() {
	if fired, cause, at := s.ag.Shared.ConsumePause(); fired {
		if s.pendingArmed {
			s.pendingArmed = false
			s.sendEvent("simulation_paused", map[string]interface{}{
				"time": at.String(), "cause": cause.String(),
			})
		}
	}

	if snap := s.ag.Shared.Read(); snap.Status == agent.Finished && !s.sentFinished {
		s.sentFinished = true
		s.sendEvent("simulation_finished", map[string]interface{}{
			"time": snap.LatestTime.String(),
		})
	}
}

func (s *Server) sendEvent(name string, fields map[string]interface{}) {
	raw, err := json.Marshal(mergeEvent(name, fields))
	if err != nil {
		s.logger.Printf("server: failed to marshal event %s: %v", name, err)
		return
	}
	s.link.SendPacket(string(raw))
}

func mergeEvent(name string, fields map[string]interface{}) map[string]interface{} {
	out := map[string]interface{}{"type": "event", "event": name}
	for k, v := range fields {
		out[k] = v
	}
	return out
}
