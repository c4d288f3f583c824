// Package diag models the evaluator's diagnostic channel: the print,
// breakpoint, assertion and assumption events a running simulation emits,
// and the small capability interface ("performer") the evaluator calls
// into to report them.
package diag

import (
	"fmt"
	"os"

	"github.com/hwdebug/rtlserver/vtime"
)

// Kind identifies the class of a diagnostic event.
type Kind int

// The four diagnostic classes the wire protocol and the run_until_diagnostics
// mask both name.
const (
	Breakpoint Kind = iota
	Print
	Assertion
	Assumption
)

// String renders the wire name of a diagnostic kind ("break", "print",
// "assert", "assume").
func (k Kind) String() string {
	switch k {
	case Breakpoint:
		return "break"
	case Print:
		return "print"
	case Assertion:
		return "assert"
	case Assumption:
		return "assume"
	default:
		return "unknown"
	}
}

// ParseKind maps a wire-protocol diagnostic name back to its Kind.
func ParseKind(name string) (Kind, error) {
	switch name {
	case "break":
		return Breakpoint, nil
	case "print":
		return Print, nil
	case "assert":
		return Assertion, nil
	case "assume":
		return Assumption, nil
	default:
		return 0, fmt.Errorf("diag: unknown diagnostic kind %q", name)
	}
}

// Mask is a bitset over Kind, used by run_until_diagnostics to describe
// which classes should pause the simulation.
type Mask uint8

// Bit returns the mask bit corresponding to k.
func (k Kind) Bit() Mask {
	return Mask(1) << Mask(k)
}

// ParseMask builds a Mask from the wire protocol's array of diagnostic
// class names.
func ParseMask(names []string) (Mask, error) {
	var m Mask
	for _, n := range names {
		k, err := ParseKind(n)
		if err != nil {
			return 0, err
		}
		m |= k.Bit()
	}
	return m, nil
}

// Has reports whether the mask includes k.
func (m Mask) Has(k Kind) bool {
	return m&k.Bit() != 0
}

// Empty reports whether the mask selects no diagnostic classes.
func (m Mask) Empty() bool {
	return m == 0
}

// Location is a source file/line pair, as reported by the evaluator.
type Location struct {
	File string
	Line int
}

// Diagnostic is one recorded event: a kind, a rendered message and the
// source location that raised it.
type Diagnostic struct {
	Kind    Kind
	Message string
	Loc     Location
	Time    vtime.Time
}

// Performer is the capability interface the evaluator invokes to report
// diagnostics while stepping the design. It mirrors the evaluator's
// on_print/on_check callback pair: the agent wraps a caller-supplied
// Performer to observe diagnostics for pause-on-diagnostic handling while
// forwarding every call unchanged.
type Performer interface {
	// OnPrint is invoked for $display-style output.
	OnPrint(msg string, loc Location)
	// OnCheck is invoked for assert/assume/cover style checks. kind is
	// either Assertion or Assumption; ok reports whether the check passed.
	OnCheck(kind Kind, ok bool, msg string, loc Location)
}

// NopPerformer is a Performer that observes nothing, useful when the
// caller only wants the agent's own diagnostic bookkeeping.
type NopPerformer struct{}

// OnPrint implements Performer.
func (NopPerformer) OnPrint(string, Location) {}

// OnCheck implements Performer.
func (NopPerformer) OnCheck(Kind, bool, string, Location) {}

// StderrPerformer is the "plain performer" referenced by the error-handling
// design: it prints to standard error and never aborts the process, even
// for failed assertions, since diagnostics raised inside the debug agent
// are recorded to the timeline rather than treated as fatal.
type StderrPerformer struct {
	Writer func(format string, args ...interface{})
}

// OnPrint implements Performer.
func (p StderrPerformer) OnPrint(msg string, loc Location) {
	p.write("%s:%d: %s", loc.File, loc.Line, msg)
}

// OnCheck implements Performer.
func (p StderrPerformer) OnCheck(kind Kind, ok bool, msg string, loc Location) {
	if ok {
		return
	}
	p.write("%s:%d: %s failed: %s", loc.File, loc.Line, kind, msg)
}

func (p StderrPerformer) write(format string, args ...interface{}) {
	if p.Writer == nil {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
		return
	}
	p.Writer(format, args...)
}

// RecordingPerformer wraps an inner Performer, accumulating a per-step
// diagnostics mask and the diagnostics themselves while forwarding every
// call unchanged to Inner. The agent resets it before each step and reads
// Mask/Diagnostics after.
type RecordingPerformer struct {
	Inner Performer
	Now   func() vtime.Time

	mask        Mask
	diagnostics []Diagnostic
}

// Reset clears the accumulated mask and diagnostics, ready for a new step.
func (p *RecordingPerformer) Reset() {
	p.mask = 0
	p.diagnostics = nil
}

// Mask returns the diagnostic classes observed since the last Reset.
func (p *RecordingPerformer) Mask() Mask {
	return p.mask
}

// Diagnostics returns the diagnostics observed since the last Reset.
func (p *RecordingPerformer) Diagnostics() []Diagnostic {
	return p.diagnostics
}

func (p *RecordingPerformer) record(k Kind, msg string, loc Location) {
	now := vtime.Zero
	if p.Now != nil {
		now = p.Now()
	}
	p.mask |= k.Bit()
	p.diagnostics = append(p.diagnostics, Diagnostic{
		Kind: k, Message: msg, Loc: loc, Time: now,
	})
}

// OnPrint implements Performer.
func (p *RecordingPerformer) OnPrint(msg string, loc Location) {
	p.record(Print, msg, loc)
	if p.Inner != nil {
		p.Inner.OnPrint(msg, loc)
	}
}

// OnCheck implements Performer.
func (p *RecordingPerformer) OnCheck(kind Kind, ok bool, msg string, loc Location) {
	if !ok {
		p.record(kind, msg, loc)
	}
	if p.Inner != nil {
		p.Inner.OnCheck(kind, ok, msg, loc)
	}
}
