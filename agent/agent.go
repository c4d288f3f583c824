package agent

import (
	"context"
	"sync"

	"github.com/hwdebug/rtlserver/diag"
	"github.com/hwdebug/rtlserver/model"
	"github.com/hwdebug/rtlserver/spool"
	"github.com/hwdebug/rtlserver/transport"
	"github.com/hwdebug/rtlserver/vtime"
)

// Evaluator is the capability the agent drives to step the design one
// timestep: evaluate combinational logic to a fixed point, observing
// diagnostics through the supplied Performer, then commit registered
// state. This is the "existing cycle evaluator" the server's scope
// statement assumes rather than reimplements.
type Evaluator interface {
	// Eval settles combinational logic, invoking performer for any print
	// or check it encounters. It reports whether anything changed.
	Eval(performer diag.Performer) (changed bool)
	// Commit latches registered state computed by the prior Eval. It
	// reports whether anything changed.
	Commit() (changed bool)
}

// Agent owns the top-level module reference and a recorder over the
// spool. It runs on the simulation thread.
type Agent struct {
	Shared *SharedState

	model *model.Model
	spool *spool.Spool
	eval  Evaluator

	performer     diag.Performer
	recorder      *diag.RecordingPerformer
	firstStepDone bool

	serverDone sync.WaitGroup
}

// New returns an Agent driving eval against m, recording samples into sp.
// performer observes prints and checks exactly as the evaluator would
// call them outside of debugging.
func New(m *model.Model, sp *spool.Spool, eval Evaluator, performer diag.Performer) *Agent {
	a := &Agent{
		Shared: NewSharedState(), model: m, spool: sp, eval: eval, performer: performer,
	}
	a.recorder = &diag.RecordingPerformer{Inner: performer, Now: a.latestTime}
	return a
}

func (a *Agent) latestTime() vtime.Time {
	a.Shared.mu.Lock()
	defer a.Shared.mu.Unlock()
	return a.Shared.latestTime
}

// snapshotValues copies every item's current backing store, for a
// complete sample.
func (a *Agent) snapshotValues() map[string][]uint32 {
	values := make(map[string][]uint32, len(a.model.Items))
	for name, it := range a.model.Items {
		cp := make([]uint32, len(it.Value))
		copy(cp, it.Value)
		values[name] = cp
	}
	return values
}

// Step evaluates one timestep. The first call performs a full capture:
// evaluate+commit repeatedly until convergence, then records a complete
// snapshot and transitions the shared state to running. Subsequent calls
// evaluate and record incrementals until convergence. If any diagnostic
// raised during the step matches the current run_until_diagnostics mask,
// the agent pauses with cause diagnostic and blocks until the server
// unpauses it.
//
// Two spots in this method (marked below) diverge from a cleaner
// toplevel.step(performer)/eval contract and from upstream; the
// behaviour described above is kept as-is, and the markers flag where.
func (a *Agent) Step() error {
	a.recorder.Reset()

	if !a.firstStepDone {
		// XXX: not upstream — a one-shot convergence loop stands in for a
		// single toplevel.step call so that the very first snapshot is
		// guaranteed fully settled.
		for {
			evalChanged := a.eval.Eval(a.recorder)
			commitChanged := a.eval.Commit()
			if !evalChanged && !commitChanged {
				break
			}
		}

		if err := a.spool.Append(spool.Sample{
			Time: a.latestTime(), Complete: true,
			Values: a.snapshotValues(), Diagnostics: a.recorder.Diagnostics(),
		}); err != nil {
			return err
		}

		a.Shared.mu.Lock()
		a.Shared.setStatus(Running)
		a.Shared.mu.Unlock()

		a.firstStepDone = true
	} else {
		// XXX: not upstream — incremental recording happens once per
		// convergence iteration rather than once per Step call.
		for {
			evalChanged := a.eval.Eval(a.recorder)
			commitChanged := a.eval.Commit()
			if !evalChanged && !commitChanged {
				break
			}

			if err := a.spool.Append(spool.Sample{
				Time: a.latestTime(), Complete: false,
				Values: a.snapshotValues(),
			}); err != nil {
				return err
			}
		}
	}

	if mask := a.recorder.Mask(); !mask.Empty() {
		a.maybePauseForDiagnostics(mask, a.recorder.Diagnostics())
	}

	return nil
}

func (a *Agent) maybePauseForDiagnostics(mask diag.Mask, diagnostics []diag.Diagnostic) {
	a.Shared.mu.Lock()
	defer a.Shared.mu.Unlock()

	if mask&a.Shared.runUntilDiagnostics == 0 {
		return
	}

	a.Shared.latchPause(CauseDiagnostic)

	for !a.Shared.unpause {
		a.Shared.cond.Wait()
	}
	a.Shared.unpause = false
	a.Shared.setStatus(Running)
}

// Advance adds delta to the current time. If the new time reaches or
// passes run_until_time while running, the agent pauses with cause time
// and blocks until the server unpauses it — looping if, after a
// degenerate resume, the time is still past run_until_time. Nothing is
// flushed here: samples already appended are visible to the server
// through the in-memory spool, and a durable backend is written only
// when its batch fills or it is closed.
func (a *Agent) Advance(delta vtime.Time) {
	a.Shared.mu.Lock()
	defer a.Shared.mu.Unlock()

	a.Shared.latestTime = a.Shared.latestTime.Add(delta)

	for a.Shared.status == Running && a.Shared.latestTime >= a.Shared.runUntilTime {
		a.Shared.latchPause(CauseTime)

		for !a.Shared.unpause {
			a.Shared.cond.Wait()
		}
		a.Shared.unpause = false
		a.Shared.setStatus(Running)
	}
}

// Snapshot forces a complete snapshot to be recorded immediately,
// establishing a restart point independent of the regular step cadence.
func (a *Agent) Snapshot() error {
	return a.spool.Append(spool.Sample{
		Time: a.latestTime(), Complete: true, Values: a.snapshotValues(),
	})
}

func (a *Agent) recordDiagnostic(kind diag.Kind, msg string, loc diag.Location) error {
	return a.spool.Append(spool.Sample{
		Time: a.latestTime(),
		Diagnostics: []diag.Diagnostic{
			{Kind: kind, Message: msg, Loc: loc, Time: a.latestTime()},
		},
	})
}

// Print records a $display-style diagnostic at the current time.
func (a *Agent) Print(msg string, loc diag.Location) error {
	return a.recordDiagnostic(diag.Print, msg, loc)
}

// Breakpoint records a breakpoint diagnostic at the current time.
func (a *Agent) Breakpoint(msg string, loc diag.Location) error {
	return a.recordDiagnostic(diag.Breakpoint, msg, loc)
}

// Assertion records a failed-assertion diagnostic at the current time.
func (a *Agent) Assertion(msg string, loc diag.Location) error {
	return a.recordDiagnostic(diag.Assertion, msg, loc)
}

// Assumption records a failed-assumption diagnostic at the current time.
func (a *Agent) Assumption(msg string, loc diag.Location) error {
	return a.recordDiagnostic(diag.Assumption, msg, loc)
}

// Finish transitions the shared state to finished, waking the server so
// its next poll observes shutdown.
func (a *Agent) Finish() {
	a.Shared.mu.Lock()
	defer a.Shared.mu.Unlock()
	a.Shared.setStatus(Finished)
}

// StartDebugging spawns the debug server on its own goroutine against
// link, handing it serve to run (typically srv.Start followed by
// srv.Run against a Server constructed over link and this agent) and
// transferring link, the agent's spool, and its top-level model to that
// goroutine for the lifetime of ctx. It returns link's URI for the
// caller to report, mirroring agent::start_debugging's synchronous
// handshake and return value.
func (a *Agent) StartDebugging(ctx context.Context, link transport.Link, serve func(context.Context)) string {
	a.serverDone.Add(1)
	go func() {
		defer a.serverDone.Done()
		serve(ctx)
	}()
	return link.URI()
}

// Close blocks until the server goroutine started by StartDebugging has
// returned. Callers cancel the context passed to StartDebugging (or wait
// for Finish to wake the server's poll loop) before calling Close.
func (a *Agent) Close() {
	a.serverDone.Wait()
}

// Model returns the design hierarchy this agent steps.
func (a *Agent) Model() *model.Model {
	return a.model
}

// Spool returns the sample store this agent records into.
func (a *Agent) Spool() *spool.Spool {
	return a.spool
}
