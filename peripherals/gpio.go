package peripherals

import (
	"github.com/hwdebug/rtlserver/model"
	"github.com/hwdebug/rtlserver/vtime"
)

// GPIO multiplexes a single bidirectional pin group: it drives the
// design's input pins from the design's own output on output-enabled
// bits and from a pending "set" action's payload on released bits, and
// logs a "change" event whenever
// the design's observable tristate output changes.
//
// Grounded on the models::gpio<pin_count>::step() free function: read the
// output and output-enable pins, compare against the last-seen pair,
// format and log a change, then drive the input pin as
// (pending & ~oe) | (o & oe).
type GPIO struct {
	name  string
	width int

	o, oe, i *model.Item

	log    logger
	in     player
	pend   uint32
	oLast  uint32
	oeLast uint32
	primed bool
}

// NewGPIO builds a GPIO peripheral named name, reading its output and
// output-enable pins and driving its input pin, which must all have the
// same width (at most 32 bits).
// log and in may be nil to disable event logging and action injection
// respectively.
func NewGPIO(m *model.Model, name string, outputItem, outputEnableItem, inputItem string, log logger, in player) (*GPIO, error) {
	o, err := pin(m, outputItem)
	if err != nil {
		return nil, err
	}
	oe, err := pin(m, outputEnableItem)
	if err != nil {
		return nil, err
	}
	i, err := pin(m, inputItem)
	if err != nil {
		return nil, err
	}
	if o.Width != oe.Width || o.Width != i.Width {
		return nil, errMismatchedWidth(name, o.Width, oe.Width, i.Width)
	}

	return &GPIO{name: name, width: o.Width, o: o, oe: oe, i: i, log: log, in: in}, nil
}

func (g *GPIO) Step(now vtime.Time) error {
	if g.in != nil {
		for _, action := range g.in.GetPendingActions(g.name) {
			if action.Event == "set" {
				var payload string
				if err := unmarshalString(action.Payload, &payload); err == nil {
					g.pend = parseBits(payload, g.width)
				}
			}
		}
	}

	o, oe := readPin(g.o), readPin(g.oe)
	if !g.primed || o != g.oLast || oe != g.oeLast {
		g.primed = true
		g.oLast, g.oeLast = o, oe
		if g.log != nil {
			if err := g.log.LogEvent(now, g.name, "change", formatTristate(o, oe, g.width)); err != nil {
				return err
			}
		}
		if g.in != nil {
			g.in.Observe(g.name, "change")
		}
	}

	writePin(g.i, (g.pend & ^oe) | (o & oe))
	return nil
}
