package spool

import (
	"github.com/hwdebug/rtlserver/diag"
	"github.com/hwdebug/rtlserver/model"
	"github.com/hwdebug/rtlserver/vtime"
)

// Result is one emitted output sample of a query_interval call.
type Result struct {
	Time        vtime.Time
	Diagnostics []diag.Diagnostic
	Words       []uint32 // nil when no reference is bound
	HasWords    bool
}

// Refresher re-evaluates the top-level design to refresh non-stored
// computed items before readout, returning any diagnostics the
// re-evaluation itself raised. The agent supplies this; tests may pass a
// no-op.
type Refresher func() []diag.Diagnostic

// QueryInterval implements the heart of the server: replay the spool
// across [begin, end], optionally collapsing same-timestamp samples and
// optionally reading out a bound reference's values, exactly per the
// documented algorithm (including the collapse-fast-path
// micro-optimisation for repeated queries at a steady timestamp).
func (s *Spool) QueryInterval(
	begin, end vtime.Time,
	collapse bool,
	ref *model.Reference,
	withDiagnostics bool,
	refresh Refresher,
) ([]Result, error) {
	s.Lock()
	defer s.Unlock()

	if refresh == nil {
		refresh = func() []diag.Diagnostic { return nil }
	}

	if !s.fastPathApplies(begin, collapse, withDiagnostics) {
		if err := s.rewindToOrBefore(begin); err != nil {
			return nil, err
		}
	}

	var out []Result

	for s.currentTime() <= end {
		var diags []diag.Diagnostic
		if withDiagnostics {
			diags = append(diags, s.currentDiagnostics()...)
		}

		if collapse {
			for {
				next, ok := s.nextTime()
				if !ok || next != s.currentTime() {
					break
				}
				s.replayStep()
				if withDiagnostics {
					diags = append(diags, s.currentDiagnostics()...)
				}
			}
		}

		res := Result{Time: s.currentTime()}

		liveDiags := refresh()
		if ref != nil {
			ref.RefreshOutlines()
			res.Words = ref.EncodeWords()
			res.HasWords = true
		}

		if withDiagnostics {
			diags = append(diags, liveDiags...)
			res.Diagnostics = diags
		}

		out = append(out, res)

		next, ok := s.nextTime()
		if !ok || next > end {
			break
		}
		s.replayStep()
	}

	return out, nil
}

// fastPathApplies implements the replay-position optimisation: when the
// query is non-diagnostic, collapsing, the cursor already sits exactly on
// begin, and there is a strictly-later next sample, the rewind is
// redundant and can be skipped. This must never change the result of the
// query, only its cost.
func (s *Spool) fastPathApplies(begin vtime.Time, collapse, withDiagnostics bool) bool {
	if !collapse || withDiagnostics {
		return false
	}
	if s.cursor < 0 || s.currentTime() != begin {
		return false
	}
	next, ok := s.nextTime()
	return ok && next > begin
}
