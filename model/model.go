// Package model holds the read-only description of a running simulation's
// hierarchy: items (signals and memories) and scopes (module instances),
// plus the debugger-named references that group item windows for repeated
// queries. Items and scopes are arenas keyed by their hierarchical path
// string; relationships between them are lookups, not owning pointers.
package model

import (
	"fmt"
	"strings"
)

// Separator is the hierarchical path separator used by item and scope
// names, a single space as dictated by the wire protocol.
const Separator = " "

// ChunkBits is the width, in bits, of the machine word used to pack signal
// bits ("u32" in the wire protocol's base64(u32) encoding).
const ChunkBits = 32

// Chunks returns the number of ChunkBits-wide words needed to hold a value
// of the given bit width.
func Chunks(width int) int {
	return (width + ChunkBits - 1) / ChunkBits
}

// ParentPath returns the hierarchical parent of name, or "" if name is
// already a root (no separator).
func ParentPath(name string) string {
	i := strings.LastIndex(name, Separator)
	if i < 0 {
		return ""
	}
	return name[:i]
}

// IsRoot reports whether name has no enclosing scope.
func IsRoot(name string) bool {
	return !strings.Contains(name, Separator)
}

// JoinPath builds a hierarchical path from a parent path and a leaf name.
// An empty parent yields the leaf name unchanged.
func JoinPath(parent, leaf string) string {
	if parent == "" {
		return leaf
	}
	return parent + Separator + leaf
}

// ItemType discriminates the two kinds of item the protocol knows about.
type ItemType int

// The item kinds named by the wire protocol's "type" field.
const (
	Node ItemType = iota
	Memory
)

// String renders the wire name of an item type.
func (t ItemType) String() string {
	if t == Memory {
		return "memory"
	}
	return "node"
}

// Flags is a bitset of the node/memory flags the wire protocol exposes.
type Flags uint8

// The flag bits list_items and the settable heuristic consult.
const (
	FlagInput Flags = 1 << iota
	FlagOutput
	FlagDrivenSync
	FlagUndriven
)

// Has reports whether f includes bit.
func (f Flags) Has(bit Flags) bool {
	return f&bit != 0
}

// AttrKind discriminates the typed values an item or scope attribute map
// may hold.
type AttrKind int

// The attribute value kinds the typed attribute builder distinguishes.
const (
	AttrUnsignedInt AttrKind = iota
	AttrSignedInt
	AttrString
	AttrDouble
)

// String renders the wire type tag the typed attribute builder uses.
func (k AttrKind) String() string {
	switch k {
	case AttrUnsignedInt:
		return "unsigned_int"
	case AttrSignedInt:
		return "signed_int"
	case AttrString:
		return "string"
	case AttrDouble:
		return "double"
	default:
		return ""
	}
}

// Attr is a single typed attribute value.
type Attr struct {
	Kind   AttrKind
	UInt   uint64
	Int    int64
	Str    string
	Double float64
}

// UnsignedAttr builds an unsigned-integer attribute.
func UnsignedAttr(v uint64) Attr { return Attr{Kind: AttrUnsignedInt, UInt: v} }

// SignedAttr builds a signed-integer attribute.
func SignedAttr(v int64) Attr { return Attr{Kind: AttrSignedInt, Int: v} }

// StringAttr builds a string attribute.
func StringAttr(v string) Attr { return Attr{Kind: AttrString, Str: v} }

// DoubleAttr builds a double-precision attribute.
func DoubleAttr(v float64) Attr { return Attr{Kind: AttrDouble, Double: v} }

// Marshal renders an attribute the way the typed attribute builder does:
// unsigned_int as a formatted decimal string, signed_int as a signed
// integer value, string and double as-is.
func (a Attr) Marshal() interface{} {
	switch a.Kind {
	case AttrUnsignedInt:
		return fmt.Sprintf("%d", a.UInt)
	case AttrSignedInt:
		return a.Int
	case AttrString:
		return a.Str
	case AttrDouble:
		return a.Double
	default:
		return nil
	}
}

// AttrSet is a module/cell attribute map with the "src" key split out into
// a dedicated field, as the scope-listing semantics require.
type AttrSet struct {
	HasSrc bool
	Src    string
	Attrs  map[string]Attr
}

// NewAttrSet builds an AttrSet from a raw attribute map, pulling "src" out
// into its dedicated field.
func NewAttrSet(raw map[string]Attr) *AttrSet {
	set := &AttrSet{Attrs: map[string]Attr{}}
	for k, v := range raw {
		if k == "src" {
			set.HasSrc = true
			set.Src = v.Str
			continue
		}
		set.Attrs[k] = v
	}
	return set
}

// Outline is an on-demand evaluator that recomputes a derived item's value
// before the value is read out; nil for items whose value is always kept
// current by the evaluator.
type Outline interface {
	Evaluate()
}

// Item is a named signal or memory belonging to a hierarchical path.
type Item struct {
	Name    string
	Type    ItemType
	LsbAt   int
	Width   int
	Depth   int // always 1 for nodes
	ZeroAt  int // memories only
	Flags   Flags
	Attrs   map[string]Attr
	Outline Outline

	// Value is the current-value backing store: Chunks(Width) words per
	// element, Depth elements laid out contiguously.
	Value []uint32
}

// NewNode constructs a Node item with a zeroed backing store.
func NewNode(name string, lsbAt, width int, flags Flags, attrs map[string]Attr) *Item {
	return &Item{
		Name: name, Type: Node, LsbAt: lsbAt, Width: width, Depth: 1,
		Flags: flags, Attrs: attrs, Value: make([]uint32, Chunks(width)),
	}
}

// NewMemory constructs a Memory item with a zeroed backing store sized for
// depth elements.
func NewMemory(name string, lsbAt, width, depth, zeroAt int, attrs map[string]Attr) *Item {
	return &Item{
		Name: name, Type: Memory, LsbAt: lsbAt, Width: width, Depth: depth,
		ZeroAt: zeroAt, Attrs: attrs, Value: make([]uint32, Chunks(width)*depth),
	}
}

// Chunks returns the number of words per element of it.
func (it *Item) Chunks() int {
	return Chunks(it.Width)
}

// Settable reports whether a debugger may poke this item's value:
// memories always are; nodes are settable iff synchronously driven, or
// undriven and an input. The heuristic is the source's own and is known
// to be imperfect for nodes fed by more complex drivers.
func (it *Item) Settable() bool {
	if it.Type == Memory {
		return true
	}
	return it.Flags.Has(FlagDrivenSync) ||
		(it.Flags.Has(FlagUndriven) && it.Flags.Has(FlagInput))
}

// ElementWords returns the Chunks(Width)-sized word slice for element
// index of a (possibly multi-element) item, with the unused high bits of
// the top word masked to zero per the mask law.
func (it *Item) ElementWords(index int) []uint32 {
	chunks := it.Chunks()
	start := index * chunks
	words := make([]uint32, chunks)
	copy(words, it.Value[start:start+chunks])

	if rem := it.Width % ChunkBits; rem != 0 {
		words[chunks-1] &= (uint32(1) << uint32(rem)) - 1
	}
	return words
}

// SetElementWords writes words into element index of it's backing store.
func (it *Item) SetElementWords(index int, words []uint32) {
	chunks := it.Chunks()
	start := index * chunks
	copy(it.Value[start:start+chunks], words)
}

// Scope is a hierarchical path with definition (module) and instantiation
// (cell) attributes. Either may be nil when no enclosing module record
// exists for the path.
type Scope struct {
	Name          string
	Type          string // module type name, empty if unknown
	Definition    *AttrSet
	Instantiation *AttrSet
}

// Model is the arena of items and scopes populated once at server start
// from the top-level module.
type Model struct {
	Items  map[string]*Item
	Scopes map[string]*Scope
}

// New returns an empty Model.
func New() *Model {
	return &Model{Items: map[string]*Item{}, Scopes: map[string]*Scope{}}
}

// AddItem registers an item under its hierarchical name.
func (m *Model) AddItem(it *Item) {
	m.Items[it.Name] = it
}

// AddScope registers a scope under its hierarchical name.
func (m *Model) AddScope(s *Scope) {
	m.Scopes[s.Name] = s
}

// Item looks up an item by exact name.
func (m *Model) Item(name string) (*Item, bool) {
	it, ok := m.Items[name]
	return it, ok
}
