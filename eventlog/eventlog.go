// Package eventlog implements the two peripheral-level file formats
// outside the debug core's scope but referenced by it: the event log a
// peripheral model appends to on every pin change, and the input-command
// file that drives those peripherals during an offline replay, enforcing
// its action/wait barriers.
package eventlog

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/hwdebug/rtlserver/vtime"
)

// Record is one logged peripheral event.
type Record struct {
	Timestamp  uint64          `json:"timestamp"`
	Peripheral string          `json:"peripheral"`
	Event      string          `json:"event"`
	Payload    json.RawMessage `json:"payload"`
}

// logFile is the on-disk shape of an event log.
type logFile struct {
	Events []Record `json:"events"`
}

// Logger accumulates Records in memory and writes them out as a single
// JSON document on Close, matching the event-log file format.
type Logger struct {
	path string

	mu      sync.Mutex
	records []Record
	closed  bool
}

// NewLogger returns a Logger that will write to path on Close.
func NewLogger(path string) *Logger {
	return &Logger{path: path}
}

// LogEvent appends one record. payload is marshalled as-is; pass any
// JSON-marshallable value (typically a string or small struct).
func (l *Logger) LogEvent(timestamp vtime.Time, peripheral, event string, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("eventlog: marshal payload for %s/%s: %w", peripheral, event, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, Record{
		Timestamp: uint64(timestamp), Peripheral: peripheral, Event: event, Payload: raw,
	})
	return nil
}

// Close writes the accumulated records to disk as the event-log file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true

	f, err := os.Create(l.path)
	if err != nil {
		return fmt.Errorf("eventlog: create %s: %w", l.path, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	return enc.Encode(logFile{Events: l.records})
}
