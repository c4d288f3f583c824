// Package spool implements the replayable sample store: an append-only
// timeline of complete snapshots interleaved with incremental deltas,
// tagged with weakly monotonic simulated timestamps, plus the diagnostics
// emitted at each recorded instant. It owns the recorded bytes and can
// rewind to or before an arbitrary timestamp and replay forward from
// there, reconstructing exactly the item values the original forward
// pass held at that time.
package spool

import (
	"fmt"
	"sort"
	"sync"

	"github.com/hwdebug/rtlserver/diag"
	"github.com/hwdebug/rtlserver/model"
	"github.com/hwdebug/rtlserver/vtime"
)

// Sample is one recorded instant: either a complete snapshot (every item's
// value) or an incremental delta (only the items that changed), plus any
// diagnostics raised at that timestamp.
type Sample struct {
	Time        vtime.Time
	Complete    bool
	Values      map[string][]uint32
	Diagnostics []diag.Diagnostic
}

// Spool is the append-only timeline store. It mutates the backing Model in
// place as it replays, so reading an item's current value after a replay
// is simply reading the Model's Item.
//
// The embedded mutex follows sim.EventQueueImpl's pattern: one lock
// guards every field, since the agent's simulation loop appends samples
// concurrently with the server's dispatch loop querying them.
type Spool struct {
	sync.Mutex

	model   *model.Model
	records []Sample

	// completeIdx holds, in order, the indices of every complete record.
	completeIdx []int

	// cursor is the index of the last applied record, -1 before anything
	// has been replayed.
	cursor int

	// backend, if set, receives every appended sample for durable storage.
	backend *SQLiteBackend
}

// New returns an empty Spool bound to m.
func New(m *model.Model) *Spool {
	return &Spool{model: m, cursor: -1}
}

// NewDurable returns a Spool bound to m that persists every appended
// sample to backend, first reloading whatever timeline backend already
// holds from a previous run into the spool; item values in m are not
// restored until a rewind replays them.
func NewDurable(m *model.Model, backend *SQLiteBackend) (*Spool, error) {
	s := New(m)
	s.backend = backend

	samples, err := backend.LoadAll()
	if err != nil {
		return nil, err
	}
	for _, sample := range samples {
		if err := s.appendLocal(sample); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Append records a new sample, persisting it to the durable backend if
// one is attached. Callers must ensure timestamps are weakly monotonic
// across successive Append calls.
func (s *Spool) Append(sample Sample) error {
	s.Lock()
	defer s.Unlock()

	if err := s.appendLocal(sample); err != nil {
		return err
	}
	if s.backend != nil {
		return s.backend.Append(sample)
	}
	return nil
}

func (s *Spool) appendLocal(sample Sample) error {
	if len(s.records) > 0 {
		last := s.records[len(s.records)-1].Time
		if sample.Time < last {
			return fmt.Errorf("spool: timestamp %s precedes last recorded %s", sample.Time, last)
		}
	}

	idx := len(s.records)
	s.records = append(s.records, sample)
	if sample.Complete {
		s.completeIdx = append(s.completeIdx, idx)
	}

	// A freshly appended record is, by construction, the live state of the
	// model: track the cursor as pointing at it without replaying.
	s.cursor = idx

	return nil
}

// Len returns the number of recorded samples.
func (s *Spool) Len() int {
	s.Lock()
	defer s.Unlock()
	return len(s.records)
}

// CurrentTime returns the timestamp of the record the cursor is parked
// on, or vtime.Zero if nothing has been recorded or replayed yet.
func (s *Spool) CurrentTime() vtime.Time {
	s.Lock()
	defer s.Unlock()
	return s.currentTime()
}

func (s *Spool) currentTime() vtime.Time {
	if s.cursor < 0 {
		return vtime.Zero
	}
	return s.records[s.cursor].Time
}

// NextTime returns the timestamp of the record immediately after the
// cursor, if any.
func (s *Spool) NextTime() (vtime.Time, bool) {
	s.Lock()
	defer s.Unlock()
	return s.nextTime()
}

func (s *Spool) nextTime() (vtime.Time, bool) {
	next := s.cursor + 1
	if next >= len(s.records) {
		return 0, false
	}
	return s.records[next].Time, true
}

// CurrentDiagnostics returns the diagnostics attached to the record the
// cursor is parked on.
func (s *Spool) CurrentDiagnostics() []diag.Diagnostic {
	s.Lock()
	defer s.Unlock()
	return s.currentDiagnostics()
}

func (s *Spool) currentDiagnostics() []diag.Diagnostic {
	if s.cursor < 0 {
		return nil
	}
	return s.records[s.cursor].Diagnostics
}

func (s *Spool) apply(idx int) {
	rec := s.records[idx]
	for name, vals := range rec.Values {
		if it, ok := s.model.Item(name); ok {
			copy(it.Value, vals)
		}
	}
	s.cursor = idx
}

// RewindToOrBefore rewinds the replay position to the largest recorded
// time at or before t, restarting from the nearest preceding complete
// snapshot and replaying every delta up to that point into the model.
func (s *Spool) RewindToOrBefore(t vtime.Time) error {
	s.Lock()
	defer s.Unlock()
	return s.rewindToOrBefore(t)
}

func (s *Spool) rewindToOrBefore(t vtime.Time) error {
	if len(s.records) == 0 {
		return fmt.Errorf("spool: empty")
	}

	anchor := s.anchorFor(t)
	if anchor < 0 {
		return fmt.Errorf("spool: no recorded sample at or before %s", t)
	}

	s.apply(anchor)
	for s.cursor+1 < len(s.records) && s.records[s.cursor+1].Time <= t {
		s.apply(s.cursor + 1)
	}

	return nil
}

// anchorFor returns the index of the last complete record with a
// timestamp at or before t, or -1 if none exists.
func (s *Spool) anchorFor(t vtime.Time) int {
	// completeIdx is sorted by construction (records are appended in
	// timestamp order); binary search for the rightmost complete index
	// whose timestamp is <= t.
	n := sort.Search(len(s.completeIdx), func(i int) bool {
		return s.records[s.completeIdx[i]].Time > t
	})
	if n == 0 {
		return -1
	}
	return s.completeIdx[n-1]
}

// ReplayStep advances the cursor by exactly one recorded sample, applying
// its deltas into the model. It reports false if already at the end of
// the timeline.
func (s *Spool) ReplayStep() bool {
	s.Lock()
	defer s.Unlock()
	return s.replayStep()
}

func (s *Spool) replayStep() bool {
	if s.cursor+1 >= len(s.records) {
		return false
	}
	s.apply(s.cursor + 1)
	return true
}
