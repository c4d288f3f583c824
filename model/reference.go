package model

import "errors"

// ErrItemNotFound is returned when a designator names an item the model
// does not know about.
var ErrItemNotFound = errors.New("model: item not found")

// ErrWrongItemType is returned when a designator's shape does not match
// the named item's type: a memory window on a node, or vice versa.
var ErrWrongItemType = errors.New("model: wrong item type")

// Window is one resolved designator: an item plus an inclusive element
// range. Non-memory items always have First == Last == 0.
type Window struct {
	Item  *Item
	First int
	Last  int
}

// Step returns the direction element indices move in, +1 or -1, derived
// from the sign of Last-First.
func (w Window) Step() int {
	if w.Last < w.First {
		return -1
	}
	return 1
}

// Indices returns the sequence of element indices from First to Last
// inclusive.
func (w Window) Indices() []int {
	step := w.Step()
	n := (w.Last-w.First)*step + 1
	out := make([]int, 0, n)
	for i := w.First; ; i += step {
		out = append(out, i)
		if i == w.Last {
			break
		}
	}
	return out
}

// Designator is a raw, not-yet-resolved [name], [name,first,last] triple
// as received over the wire.
type Designator struct {
	Name  string
	First int
	Last  int
	// HasRange is false for a bare [name] designator addressing a node.
	HasRange bool
}

// Resolve looks the designator's item up in m and validates its shape
// against the item's type: a bare designator must name a node, a ranged
// designator must name a memory.
func (d Designator) Resolve(m *Model) (Window, error) {
	it, ok := m.Item(d.Name)
	if !ok {
		return Window{}, ErrItemNotFound
	}

	if !d.HasRange {
		if it.Type != Node {
			return Window{}, ErrWrongItemType
		}
		return Window{Item: it, First: 0, Last: 0}, nil
	}

	if it.Type != Memory {
		return Window{}, ErrWrongItemType
	}
	return Window{Item: it, First: d.First, Last: d.Last}, nil
}

// Reference is a debugger-created named handle mapping to a materialised
// subset of items. Once defined it persists until redefined with the same
// name (replacing its contents) or erased.
type Reference struct {
	Name    string
	Windows []Window
}

// References is the registry of live named references a server keeps on
// behalf of the debugger, keyed by name.
type References struct {
	byName map[string]*Reference
}

// NewReferences returns an empty reference registry.
func NewReferences() *References {
	return &References{byName: map[string]*Reference{}}
}

// Define atomically replaces the designators of the named reference,
// creating it if it does not already exist.
func (r *References) Define(name string, windows []Window) {
	r.byName[name] = &Reference{Name: name, Windows: windows}
}

// Erase removes the named reference, if any.
func (r *References) Erase(name string) {
	delete(r.byName, name)
}

// Lookup returns the named reference, if defined.
func (r *References) Lookup(name string) (*Reference, bool) {
	ref, ok := r.byName[name]
	return ref, ok
}

// RefreshOutlines evaluates the outline, if any, of every item the
// reference touches, so readout observes fresh derived values.
func (ref *Reference) RefreshOutlines() {
	for _, w := range ref.Windows {
		if w.Item.Outline != nil {
			w.Item.Outline.Evaluate()
		}
	}
}

// EncodeWords returns, in reference order, the flattened little-endian
// words of every element this reference's windows select. It is the
// input to the base64(u32) wire encoding.
func (ref *Reference) EncodeWords() []uint32 {
	var words []uint32
	for _, w := range ref.Windows {
		for _, idx := range w.Indices() {
			words = append(words, w.Item.ElementWords(idx)...)
		}
	}
	return words
}
