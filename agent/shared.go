// Package agent implements the simulation-side half of the debug server:
// the agent that runs on the simulation thread, drives the evaluator,
// records samples into the spool, and honours the server's run/pause
// commands via a small piece of state shared across the two threads.
package agent

import (
	"context"
	"sync"
	"time"

	"github.com/hwdebug/rtlserver/diag"
	"github.com/hwdebug/rtlserver/vtime"
)

// Status is the simulation's coarse lifecycle state, observed by the
// server and advanced only by the agent.
type Status int

// The lattice a Status follows: initializing -> running -> paused (back
// and forth with running) -> finished.
const (
	Initializing Status = iota
	Running
	Paused
	Finished
)

// String renders the wire name of a status.
func (s Status) String() string {
	switch s {
	case Initializing:
		return "initializing"
	case Running:
		return "running"
	case Paused:
		return "paused"
	case Finished:
		return "finished"
	default:
		return "unknown"
	}
}

// PauseCause names why the agent last paused.
type PauseCause int

// The two reasons a pause can have; both correspond to an event the
// server may emit.
const (
	CauseNone PauseCause = iota
	CauseTime
	CauseDiagnostic
)

// String renders the wire name of a pause cause.
func (c PauseCause) String() string {
	switch c {
	case CauseTime:
		return "until_time"
	case CauseDiagnostic:
		return "until_diagnostics"
	default:
		return ""
	}
}

// SharedState is the small cross-thread record coupling the agent and
// the server, guarded by a single mutex and condition variable. No
// lock-free tricks: the wake frequency is low and the critical sections
// are tiny.
type SharedState struct {
	mu   sync.Mutex
	cond *sync.Cond

	status     Status
	latestTime vtime.Time
	cause      PauseCause

	runUntilTime        vtime.Time
	runUntilDiagnostics diag.Mask
	unpause             bool

	pausePending      bool
	pausePendingAt    vtime.Time
	pausePendingCause PauseCause

	nextSampleTime vtime.Time
}

// NewSharedState returns a SharedState in the initializing status. The
// run bound defaults to the maximum time so the agent runs freely until
// the debugger calls pause_simulation (the diagnostic mask starts empty,
// so no diagnostic pauses it before then).
func NewSharedState() *SharedState {
	s := &SharedState{status: Initializing, runUntilTime: vtime.Maximum()}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Snapshot is a point-in-time, lock-free-to-read copy of the fields
// get_simulation_status needs.
type Snapshot struct {
	Status         Status
	LatestTime     vtime.Time
	Cause          PauseCause
	NextSampleTime vtime.Time
}

// Read returns a consistent snapshot of the shared state.
func (s *SharedState) Read() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Status: s.status, LatestTime: s.latestTime, Cause: s.cause,
		NextSampleTime: s.nextSampleTime,
	}
}

// WaitUntilNotInitializing blocks the server thread's start() call until
// the agent leaves the initializing status, or ctx is cancelled.
func (s *SharedState) WaitUntilNotInitializing(ctx context.Context) {
	s.waitUntil(ctx, func() bool { return s.status != Initializing })
}

// waitUntil blocks on the condition variable until pred holds or ctx is
// cancelled. Cancellation is polled cooperatively since sync.Cond has no
// native context support.
func (s *SharedState) waitUntil(ctx context.Context, pred func() bool) {
	done := make(chan struct{})
	if ctx != nil {
		go func() {
			select {
			case <-ctx.Done():
				s.cond.Broadcast()
			case <-done:
			}
		}()
		defer close(done)
	}

	for !pred() {
		if ctx != nil && ctx.Err() != nil {
			return
		}
		s.cond.Wait()
	}
}

// setStatus transitions the status under the lock and wakes every
// waiter. Callers must hold s.mu.
func (s *SharedState) setStatus(status Status) {
	s.status = status
	s.cond.Broadcast()
}

// latchPause transitions to paused and records a durable pause event for
// the server to consume. Callers must hold s.mu. The latch is independent
// of status: if the agent is unpaused and paused again before the server
// next drains, the latch still reflects this pause rather than being lost
// to a status value that happens to read the same as before.
func (s *SharedState) latchPause(cause PauseCause) {
	s.cause = cause
	s.nextSampleTime = s.latestTime
	s.pausePending = true
	s.pausePendingAt = s.latestTime
	s.pausePendingCause = cause
	s.setStatus(Paused)
}

// ConsumePause reports whether a pause event is pending and, if so,
// clears it and returns the cause and time it was latched at. The server
// calls this once per drain cycle instead of diffing the status against
// its last-seen value, so a pause that resolves entirely between two
// polls is still reported rather than silently dropped.
func (s *SharedState) ConsumePause() (fired bool, cause PauseCause, at vtime.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.pausePending {
		return false, CauseNone, 0
	}
	s.pausePending = false
	return true, s.pausePendingCause, s.pausePendingAt
}

// RequestRun implements run_simulation's server-side half: it requires
// the current status to be paused, sets the new run bounds, signals the
// agent to unpause, and blocks until the agent acknowledges by clearing
// unpause.
func (s *SharedState) RequestRun(until vtime.Time, diagnostics diag.Mask) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != Paused {
		return errInvalidStatus
	}

	s.runUntilTime = until
	s.runUntilDiagnostics = diagnostics
	s.unpause = true
	s.cond.Broadcast()

	for s.unpause {
		s.cond.Wait()
	}

	return nil
}

// RequestPause implements pause_simulation's server-side half: it lowers
// run_until_time to the minimum representable time so the agent's very
// next advance observes it has already reached the bound, signals the
// agent, and waits until status leaves running. It returns the latest
// recorded time.
func (s *SharedState) RequestPause() vtime.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runUntilTime = vtime.Zero
	s.cond.Broadcast()

	for s.status == Running {
		s.cond.Wait()
	}

	return s.latestTime
}

// errInvalidStatus is returned by RequestRun when the agent is not
// currently paused; the server maps it to the invalid_status wire error.
var errInvalidStatus = &statusError{}

type statusError struct{}

func (*statusError) Error() string { return "agent: status is not paused" }

// IsInvalidStatus reports whether err is the "not paused" error
// RequestRun returns.
func IsInvalidStatus(err error) bool {
	_, ok := err.(*statusError)
	return ok
}

// PollTimeout is the interval the server's main loop polls its link at.
const PollTimeout = 200 * time.Millisecond
