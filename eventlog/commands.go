package eventlog

import (
	"encoding/json"
	"fmt"
	"os"
)

// Command is one line of an input-command file: either an action to
// inject into a peripheral, or a wait barrier that blocks all later
// actions until the named peripheral event is observed.
type Command struct {
	Type       string          `json:"type"` // "action" or "wait"
	Peripheral string          `json:"peripheral"`
	Event      string          `json:"event"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// Action is an action.Command stripped of its Type tag, queued for a
// peripheral to pick up on its next step.
type Action struct {
	Event   string
	Payload json.RawMessage
}

type commandFile struct {
	Commands []Command `json:"commands"`
}

// Player replays a command file against a running simulation, holding
// actions back from their peripheral until any preceding wait barrier
// has been satisfied by an observed event.
type Player struct {
	commands []Command
	cursor   int
	pending  map[string][]Action
}

// LoadPlayer reads the command file at path and primes the initial burst
// of actions preceding the first wait barrier (if any).
func LoadPlayer(path string) (*Player, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("eventlog: read %s: %w", path, err)
	}

	var file commandFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("eventlog: parse %s: %w", path, err)
	}

	p := &Player{commands: file.Commands, pending: map[string][]Action{}}
	p.advance()
	return p, nil
}

// advance enqueues every contiguous run of action commands starting at
// the cursor, stopping at the next wait barrier or end of file.
func (p *Player) advance() {
	for p.cursor < len(p.commands) {
		cmd := p.commands[p.cursor]
		if cmd.Type != "action" {
			return
		}
		p.pending[cmd.Peripheral] = append(p.pending[cmd.Peripheral], Action{
			Event: cmd.Event, Payload: cmd.Payload,
		})
		p.cursor++
	}
}

// GetPendingActions drains and returns every action currently queued for
// peripheral, matching the step-time action poll a peripheral model
// makes of the command stream.
func (p *Player) GetPendingActions(peripheral string) []Action {
	actions := p.pending[peripheral]
	delete(p.pending, peripheral)
	return actions
}

// Observe reports that peripheral just emitted event. If the command at
// the cursor is a wait for exactly this peripheral/event pair, the
// barrier is cleared and the next burst of actions is queued.
func (p *Player) Observe(peripheral, event string) {
	if p.cursor >= len(p.commands) {
		return
	}
	cmd := p.commands[p.cursor]
	if cmd.Type == "wait" && cmd.Peripheral == peripheral && cmd.Event == event {
		p.cursor++
		p.advance()
	}
}

// Done reports whether every command, including the final wait, has
// been consumed.
func (p *Player) Done() bool {
	return p.cursor >= len(p.commands)
}
