package main

import (
	"github.com/hwdebug/rtlserver/diag"
	"github.com/hwdebug/rtlserver/eventlog"
	"github.com/hwdebug/rtlserver/model"
	"github.com/hwdebug/rtlserver/peripherals"
)

// demoDesign is the "existing cycle evaluator" the debug core assumes
// rather than reimplements: a generated design would supply its own
// Evaluator wired to the real RTL. Standing in for it here lets this
// binary run end-to-end against something concrete (a free-running clock
// toggling an 8-bit counter mirrored onto a GPIO pin group), rather than
// serving an empty model.
type demoDesign struct {
	clk, counter, gpioO, gpioOE, gpioI *model.Item
	toggle                             bool
}

func buildDemoModel() (*model.Model, *demoDesign) {
	m := model.New()

	clk := model.NewNode("top clk", 0, 1, model.FlagDrivenSync, nil)
	counter := model.NewNode("top counter", 0, 8, model.FlagDrivenSync, nil)
	gpioO := model.NewNode("top gpio0 o", 0, 8, model.FlagOutput, nil)
	gpioOE := model.NewNode("top gpio0 oe", 0, 8, model.FlagOutput, nil)
	gpioI := model.NewNode("top gpio0 i", 0, 8, model.FlagInput|model.FlagUndriven, nil)

	for _, it := range []*model.Item{clk, counter, gpioO, gpioOE, gpioI} {
		m.AddItem(it)
	}
	m.AddScope(&model.Scope{Name: "top", Type: "demo_top"})

	gpioOE.Value[0] = 0xFF // counter always driven out

	return m, &demoDesign{clk: clk, counter: counter, gpioO: gpioO, gpioOE: gpioOE, gpioI: gpioI}
}

// Eval implements agent.Evaluator: calls alternate between arming a
// toggle (reporting no change) and toggling the clock (reporting a
// change); on the rising edge it also increments the counter and mirrors
// it onto the GPIO output pins, a minimal stand-in for a combinational
// settle pass.
func (d *demoDesign) Eval(performer diag.Performer) bool {
	if !d.toggle {
		d.toggle = true
		return false
	}
	d.toggle = false

	rising := d.clk.Value[0] == 0
	d.clk.Value[0] ^= 1
	if !rising {
		return true
	}

	d.counter.Value[0] = (d.counter.Value[0] + 1) & 0xFF
	d.gpioO.Value[0] = d.counter.Value[0]
	return true
}

// Commit implements agent.Evaluator; this design has no separate
// registered-state phase distinct from Eval's edge handling.
func (d *demoDesign) Commit() bool { return false }

// buildDemoPeripherals wires a GPIO peripheral to the demo design's pin
// group, logging through log and consuming actions from in; either may
// be nil to disable logging or action injection respectively. The
// *eventlog.Logger/*eventlog.Player values are converted to their
// peripherals-package interface parameter explicitly here rather than
// passed straight through, so a nil pointer stays a nil interface
// instead of being boxed into a non-nil one.
func buildDemoPeripherals(m *model.Model, log *eventlog.Logger, in *eventlog.Player) ([]peripherals.Peripheral, error) {
	var logIface peripherals.Logger
	if log != nil {
		logIface = log
	}
	var playerIface peripherals.Player
	if in != nil {
		playerIface = in
	}

	gpio, err := peripherals.NewGPIO(m, "top gpio0", "top gpio0 o", "top gpio0 oe", "top gpio0 i", logIface, playerIface)
	if err != nil {
		return nil, err
	}
	return []peripherals.Peripheral{gpio}, nil
}
