// Package peripherals implements the small fixed-function models that sit
// outside the design under test but still need stepping every time the
// agent settles a delta cycle: GPIO pin multiplexing, a Wishbone bus
// activity monitor, and simplified UART/SPI/I2C link models. Every model
// reads its output pins from the live model.Model, optionally logs a
// change event, and drives its input pins back in, the same step-function
// shape a Verilator-style co-simulation peripheral uses.
//
// Models are limited to pin groups of at most 32 bits; wider buses would
// need the full chunked bit-vector handling model.Item itself uses, which
// no peripheral in this package's domain requires.
package peripherals

import (
	"encoding/json"
	"fmt"

	"github.com/hwdebug/rtlserver/eventlog"
	"github.com/hwdebug/rtlserver/model"
	"github.com/hwdebug/rtlserver/vtime"
)

func errMismatchedWidth(name string, widths ...int) error {
	return fmt.Errorf("peripherals: %s: mismatched pin widths %v", name, widths)
}

func unmarshalString(raw json.RawMessage, out *string) error {
	return json.Unmarshal(raw, out)
}

func unmarshalInt(raw json.RawMessage, out *int) error {
	return json.Unmarshal(raw, out)
}

// Peripheral is anything the agent steps alongside the design's own
// evaluation, once per settled delta cycle.
type Peripheral interface {
	// Step consumes any pending input actions, drives the model's input
	// pins, and logs a change event if its observable output changed.
	Step(now vtime.Time) error
}

// pin resolves a single named item, failing fast if it is
// missing or wider than a single word.
func pin(m *model.Model, name string) (*model.Item, error) {
	it, ok := m.Item(name)
	if !ok {
		return nil, fmt.Errorf("peripherals: no such item %q", name)
	}
	if it.Width > model.ChunkBits {
		return nil, fmt.Errorf("peripherals: item %q is %d bits wide, want <= %d", name, it.Width, model.ChunkBits)
	}
	return it, nil
}

func readPin(it *model.Item) uint32 {
	return it.ElementWords(0)[0]
}

func writePin(it *model.Item, v uint32) {
	it.SetElementWords(0, []uint32{v})
}

// formatBits renders a width-bit value as a '1'/'0' string, MSB first,
// the same textual shape the GPIO model logs on every pin change.
func formatBits(v uint32, width int) string {
	buf := make([]byte, width)
	for i := 0; i < width; i++ {
		bit := (v >> uint(width-1-i)) & 1
		if bit == 1 {
			buf[i] = '1'
		} else {
			buf[i] = '0'
		}
	}
	return string(buf)
}

// formatTristate renders output/output-enable pairs as a '1'/'0'/'Z'
// string: 'Z' marks bits the driver has released (oe bit clear).
func formatTristate(o, oe uint32, width int) string {
	buf := make([]byte, width)
	for i := 0; i < width; i++ {
		shift := uint(width - 1 - i)
		if (oe>>shift)&1 == 0 {
			buf[i] = 'Z'
			continue
		}
		if (o>>shift)&1 == 1 {
			buf[i] = '1'
		} else {
			buf[i] = '0'
		}
	}
	return string(buf)
}

// parseBits parses a formatBits-shaped string back into a value, treating
// 'Z' (and anything but '1') as a zero bit.
func parseBits(s string, width int) uint32 {
	var v uint32
	for i := 0; i < len(s) && i < width; i++ {
		if s[i] == '1' {
			v |= 1 << uint(width-1-i)
		}
	}
	return v
}

// Logger and Player are the optional event-log sink and command-file
// source every peripheral in this package consults; both may be nil, in
// which case logging and action injection are simply skipped. Callers
// holding a possibly-nil *eventlog.Logger/*eventlog.Player must convert
// it to one of these explicitly through a nil check before passing it
// in: assigning a nil pointer straight into the interface parameter
// would box it into a non-nil interface value and defeat the "== nil"
// checks below.
type Logger interface {
	LogEvent(timestamp vtime.Time, peripheral, event string, payload interface{}) error
}

var _ Logger = (*eventlog.Logger)(nil)

type Player interface {
	GetPendingActions(peripheral string) []eventlog.Action
	Observe(peripheral, event string)
}

var _ Player = (*eventlog.Player)(nil)

type logger = Logger
type player = Player
