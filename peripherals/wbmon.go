package peripherals

import (
	"fmt"
	"io"

	"github.com/hwdebug/rtlserver/model"
	"github.com/hwdebug/rtlserver/vtime"
)

// stallThreshold is the number of consecutive stalled clock edges the
// monitor tolerates before logging a <STALL> line, matching the black-box
// Wishbone monitor cell's hard-coded threshold.
const stallThreshold = 100000

// WishboneMonitor is a passive bus-activity tracer for a single Wishbone
// master/slave pair: on every rising clock edge with a completed
// transaction it writes one CSV line of address, direction and
// byte-lane data; on a stalled transaction it writes a <STALL> marker
// after stallThreshold consecutive stalled edges.
//
// Grounded on the wb_mon black-box cell: same posedge-gated eval, same
// stall counter, same "%08x,%c,<bytes>" line shape with "__" standing in
// for byte lanes the select mask excludes.
type WishboneMonitor struct {
	clk, stb, cyc, ack, we, sel, adr, datW, datR *model.Item

	out      io.Writer
	lastClk  uint32
	primed   bool
	stallCnt int
}

// WishboneMonitorPins names the item paths feeding a WishboneMonitor.
type WishboneMonitorPins struct {
	Clk, Stb, Cyc, Ack, We, Sel, Adr, DatW, DatR string
}

// NewWishboneMonitor builds a monitor writing its trace lines to out.
func NewWishboneMonitor(m *model.Model, pins WishboneMonitorPins, out io.Writer) (*WishboneMonitor, error) {
	lookup := func(name string) (*model.Item, error) { return pin(m, name) }

	fields := map[string]string{
		"clk": pins.Clk, "stb": pins.Stb, "cyc": pins.Cyc, "ack": pins.Ack,
		"we": pins.We, "sel": pins.Sel, "adr": pins.Adr, "dat_w": pins.DatW, "dat_r": pins.DatR,
	}
	items := make(map[string]*model.Item, len(fields))
	for field, name := range fields {
		it, err := lookup(name)
		if err != nil {
			return nil, fmt.Errorf("peripherals: wishbone monitor: %w", err)
		}
		items[field] = it
	}

	return &WishboneMonitor{
		clk: items["clk"], stb: items["stb"], cyc: items["cyc"], ack: items["ack"],
		we: items["we"], sel: items["sel"], adr: items["adr"], datW: items["dat_w"], datR: items["dat_r"],
		out: out,
	}, nil
}

func (w *WishboneMonitor) Step(now vtime.Time) error {
	clk := readPin(w.clk)
	posedge := w.primed && w.lastClk == 0 && clk == 1
	w.lastClk, w.primed = clk, true
	if !posedge {
		return nil
	}

	stb, cyc, ack := readPin(w.stb), readPin(w.cyc), readPin(w.ack)
	if stb != 0 && cyc != 0 && ack != 0 {
		w.stallCnt = 0
		return w.logTransaction()
	}
	if stb != 0 && cyc != 0 {
		w.stallCnt++
		if w.stallCnt == stallThreshold {
			w.stallCnt = 0
			return w.logStall()
		}
		return nil
	}
	w.stallCnt = 0
	return nil
}

func (w *WishboneMonitor) direction() byte {
	if readPin(w.we) != 0 {
		return 'W'
	}
	return 'R'
}

func (w *WishboneMonitor) logTransaction() error {
	addr := readPin(w.adr) << 2
	dir := w.direction()

	var data uint32
	if dir == 'W' {
		data = readPin(w.datW)
	} else {
		data = readPin(w.datR)
	}
	sel := readPin(w.sel)

	line := fmt.Sprintf("%08x,%c,", addr, dir)
	for i := 3; i >= 0; i-- {
		if sel&(1<<uint(i)) != 0 {
			line += fmt.Sprintf("%02x", (data>>(8*uint(i)))&0xFF)
		} else {
			line += "__"
		}
	}
	_, err := fmt.Fprintln(w.out, line)
	return err
}

func (w *WishboneMonitor) logStall() error {
	addr := readPin(w.adr) << 2
	_, err := fmt.Fprintf(w.out, "%08x,%c,<STALL>\n", addr, w.direction())
	return err
}
