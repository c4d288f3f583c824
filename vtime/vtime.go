// Package vtime implements the simulated-time type used throughout the
// debug server: a totally ordered timestamp with a defined maximum value
// that parses from and formats to the textual representation the wire
// protocol consumes and emits verbatim.
package vtime

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
)

// Time is a simulated timestamp measured internally in femtoseconds. It is
// comparable with ==, <, > like any other integer-backed value.
type Time int64

// Zero is the timestamp at the start of simulation.
const Zero Time = 0

// Maximum returns the largest representable timestamp. run_simulation uses
// it as the until_time when the debugger passes until_time:null.
func Maximum() Time {
	return Time(math.MaxInt64)
}

// unit table, smallest unit first; Format walks it from the end to find
// the largest unit that divides a value evenly.
var units = []struct {
	suffix string
	fs     int64
}{
	{"fs", 1},
	{"ps", 1_000},
	{"ns", 1_000_000},
	{"us", 1_000_000_000},
	{"ms", 1_000_000_000_000},
	{"s", 1_000_000_000_000_000},
}

var timeRe = regexp.MustCompile(`^(\d+)(?:\.(\d+))?(fs|ps|ns|us|ms|s)$`)

// Parse converts a textual time, such as "10ns" or "1.5us", into a Time.
// It is the inverse of Format for any value Format produces.
func Parse(s string) (Time, error) {
	if s == "inf" {
		return Maximum(), nil
	}

	m := timeRe.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("vtime: invalid time %q", s)
	}

	whole, frac, suffix := m[1], m[2], m[3]

	var unitFs int64
	for _, u := range units {
		if u.suffix == suffix {
			unitFs = u.fs
			break
		}
	}

	wholeVal, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("vtime: invalid time %q: %w", s, err)
	}

	fs := wholeVal * unitFs

	if frac != "" {
		scale := int64(1)
		for i := 0; i < len(frac); i++ {
			scale *= 10
		}
		fracVal, err := strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("vtime: invalid time %q: %w", s, err)
		}
		fs += fracVal * unitFs / scale
	}

	return Time(fs), nil
}

// Format renders a Time using the largest unit that represents it exactly,
// falling back to femtoseconds when no larger unit divides it evenly.
func Format(t Time) string {
	if t == Maximum() {
		return "inf"
	}

	fs := int64(t)
	if fs == 0 {
		return "0s"
	}

	for i := len(units) - 1; i >= 0; i-- {
		u := units[i]
		if fs%u.fs == 0 {
			return strconv.FormatInt(fs/u.fs, 10) + u.suffix
		}
	}

	return strconv.FormatInt(fs, 10) + "fs"
}

// String implements fmt.Stringer so Time values log and format naturally.
func (t Time) String() string {
	return Format(t)
}

// MarshalText implements encoding.TextMarshaler so Time values encode as
// their textual form wherever a struct field is serialised through JSON.
func (t Time) MarshalText() ([]byte, error) {
	return []byte(Format(t)), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Time) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Add returns t advanced by delta.
func (t Time) Add(delta Time) Time {
	return t + delta
}

// Before reports whether t is strictly earlier than other.
func (t Time) Before(other Time) bool {
	return t < other
}

// After reports whether t is strictly later than other.
func (t Time) After(other Time) bool {
	return t > other
}
