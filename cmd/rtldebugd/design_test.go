package main

import "testing"

func TestDemoDesignCountsUpOnClockEdges(t *testing.T) {
	_, design := buildDemoModel()

	// Each Eval call only flips the internal toggle or acts on it, so two
	// calls complete one "settle" step, and two settle steps (clk low ->
	// high -> low) make one full clock period with exactly one rising
	// edge, incrementing the counter once.
	const periods = 5
	for i := 0; i < periods; i++ {
		design.Eval(nil)
		design.Eval(nil)
		design.Eval(nil)
		design.Eval(nil)
	}

	if got, want := design.counter.Value[0], uint32(periods); got != want {
		t.Fatalf("counter = %d, want %d", got, want)
	}
	if got := design.gpioO.Value[0]; got != design.counter.Value[0] {
		t.Fatalf("gpio output %d does not mirror counter %d", got, design.counter.Value[0])
	}
}

func TestDemoDesignCommitNeverReportsChange(t *testing.T) {
	_, design := buildDemoModel()
	if design.Commit() {
		t.Fatal("Commit should always report no change for this design")
	}
}
