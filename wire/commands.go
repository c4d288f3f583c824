package wire

import (
	"encoding/json"

	"github.com/hwdebug/rtlserver/model"
	"github.com/hwdebug/rtlserver/vtime"
)

// CommandName extracts and validates the "command" field of a
// {type:"command"} packet.
func CommandName(fields map[string]json.RawMessage) (string, error) {
	raw, ok := fields["command"]
	if !ok {
		return "", Errorf(ErrInvalidCommand, "missing command")
	}

	var name string
	if err := json.Unmarshal(raw, &name); err != nil {
		return "", Errorf(ErrInvalidCommand, "command must be a string")
	}

	for _, c := range Commands {
		if c == name {
			return name, nil
		}
	}
	return "", Errorf(ErrInvalidCommand, "unknown command %q", name)
}

// ListArgs is the shared argument shape of list_scopes and list_items:
// an optional, possibly-null scope prefix.
type ListArgs struct {
	Scope *string
}

func parseListArgs(fields map[string]json.RawMessage) (ListArgs, error) {
	if err := checkKeys(fields, "type", "command", "scope"); err != nil {
		return ListArgs{}, err
	}

	scope, _, err := optionalNullableString(fields, "scope")
	if err != nil {
		return ListArgs{}, err
	}
	return ListArgs{Scope: scope}, nil
}

// ParseListScopes parses a list_scopes command's arguments.
func ParseListScopes(fields map[string]json.RawMessage) (ListArgs, error) {
	return parseListArgs(fields)
}

// ParseListItems parses a list_items command's arguments.
func ParseListItems(fields map[string]json.RawMessage) (ListArgs, error) {
	return parseListArgs(fields)
}

// ReferenceItemsArgs is the parsed argument set of reference_items.
type ReferenceItemsArgs struct {
	Reference string
	// Items is nil, and Erase is true, when the wire value was null.
	Items []model.Designator
	Erase bool
}

// ParseReferenceItems parses a reference_items command's arguments.
func ParseReferenceItems(fields map[string]json.RawMessage) (ReferenceItemsArgs, error) {
	if err := checkKeys(fields, "type", "command", "reference", "items"); err != nil {
		return ReferenceItemsArgs{}, err
	}

	ref, err := requireString(fields, "reference")
	if err != nil {
		return ReferenceItemsArgs{}, err
	}
	if ref == "" {
		return ReferenceItemsArgs{}, Errorf(ErrInvalidArgs, "reference must be non-empty")
	}

	raw, ok := fields["items"]
	if !ok {
		return ReferenceItemsArgs{}, Errorf(ErrInvalidArgs, "missing argument %q", "items")
	}
	if string(raw) == "null" {
		return ReferenceItemsArgs{Reference: ref, Erase: true}, nil
	}

	var rawItems []json.RawMessage
	if err := json.Unmarshal(raw, &rawItems); err != nil {
		return ReferenceItemsArgs{}, Errorf(ErrInvalidArgs, "items must be an array or null")
	}

	designators := make([]model.Designator, 0, len(rawItems))
	for _, r := range rawItems {
		var parts []interface{}
		if err := json.Unmarshal(r, &parts); err != nil {
			return ReferenceItemsArgs{}, Errorf(ErrInvalidArgs, "each item designator must be an array")
		}

		switch len(parts) {
		case 1:
			name, ok := parts[0].(string)
			if !ok {
				return ReferenceItemsArgs{}, Errorf(ErrInvalidArgs, "designator name must be a string")
			}
			designators = append(designators, model.Designator{Name: name})
		case 3:
			name, ok := parts[0].(string)
			if !ok {
				return ReferenceItemsArgs{}, Errorf(ErrInvalidArgs, "designator name must be a string")
			}
			first, ok1 := parts[1].(float64)
			last, ok2 := parts[2].(float64)
			if !ok1 || !ok2 {
				return ReferenceItemsArgs{}, Errorf(ErrInvalidArgs, "designator indices must be numbers")
			}
			designators = append(designators, model.Designator{
				Name: name, HasRange: true, First: int(first), Last: int(last),
			})
		default:
			return ReferenceItemsArgs{}, Errorf(ErrInvalidArgs, "designator must have 1 or 3 elements")
		}
	}

	return ReferenceItemsArgs{Reference: ref, Items: designators}, nil
}

// QueryIntervalArgs is the parsed argument set of query_interval.
type QueryIntervalArgs struct {
	Begin, End        vtime.Time
	Collapse          bool
	Reference         *string
	ItemValuesEncoding *string
	Diagnostics       bool
}

// ParseQueryInterval parses a query_interval command's arguments.
func ParseQueryInterval(fields map[string]json.RawMessage) (QueryIntervalArgs, error) {
	if err := checkKeys(fields, "type", "command",
		"interval", "collapse", "items", "item_values_encoding", "diagnostics"); err != nil {
		return QueryIntervalArgs{}, err
	}

	raw, ok := fields["interval"]
	if !ok {
		return QueryIntervalArgs{}, Errorf(ErrInvalidArgs, "missing argument %q", "interval")
	}
	var bounds [2]string
	if err := json.Unmarshal(raw, &bounds); err != nil {
		return QueryIntervalArgs{}, Errorf(ErrInvalidArgs, "interval must be a [begin,end] array")
	}
	begin, err := vtime.Parse(bounds[0])
	if err != nil {
		return QueryIntervalArgs{}, Errorf(ErrInvalidArgs, "invalid interval begin: %v", err)
	}
	end, err := vtime.Parse(bounds[1])
	if err != nil {
		return QueryIntervalArgs{}, Errorf(ErrInvalidArgs, "invalid interval end: %v", err)
	}

	collapse, err := requireBool(fields, "collapse")
	if err != nil {
		return QueryIntervalArgs{}, err
	}

	items, _, err := optionalNullableString(fields, "items")
	if err != nil {
		return QueryIntervalArgs{}, err
	}

	encoding, _, err := optionalNullableString(fields, "item_values_encoding")
	if err != nil {
		return QueryIntervalArgs{}, err
	}

	diagnostics, err := requireBool(fields, "diagnostics")
	if err != nil {
		return QueryIntervalArgs{}, err
	}

	return QueryIntervalArgs{
		Begin: begin, End: end, Collapse: collapse,
		Reference: items, ItemValuesEncoding: encoding, Diagnostics: diagnostics,
	}, nil
}

// RunSimulationArgs is the parsed argument set of run_simulation.
type RunSimulationArgs struct {
	UntilTime        *vtime.Time
	UntilDiagnostics []string
	SampleItemValues bool
}

// ParseRunSimulation parses a run_simulation command's arguments.
func ParseRunSimulation(fields map[string]json.RawMessage) (RunSimulationArgs, error) {
	if err := checkKeys(fields, "type", "command",
		"until_time", "until_diagnostics", "sample_item_values"); err != nil {
		return RunSimulationArgs{}, err
	}

	untilStr, _, err := optionalNullableString(fields, "until_time")
	if err != nil {
		return RunSimulationArgs{}, err
	}

	var until *vtime.Time
	if untilStr != nil {
		t, err := vtime.Parse(*untilStr)
		if err != nil {
			return RunSimulationArgs{}, Errorf(ErrInvalidArgs, "invalid until_time: %v", err)
		}
		until = &t
	}

	diagnostics, err := requireStringArray(fields, "until_diagnostics")
	if err != nil {
		return RunSimulationArgs{}, err
	}

	sample, err := requireBool(fields, "sample_item_values")
	if err != nil {
		return RunSimulationArgs{}, err
	}

	return RunSimulationArgs{
		UntilTime: until, UntilDiagnostics: diagnostics, SampleItemValues: sample,
	}, nil
}

// ParsePauseSimulation validates that a pause_simulation command carries
// no arguments beyond the envelope.
func ParsePauseSimulation(fields map[string]json.RawMessage) error {
	return checkKeys(fields, "type", "command")
}

// ParseGetSimulationStatus validates that a get_simulation_status command
// carries no arguments beyond the envelope.
func ParseGetSimulationStatus(fields map[string]json.RawMessage) error {
	return checkKeys(fields, "type", "command")
}
