// Package wire implements the JSON wire protocol: greeting handshake,
// commands, responses, errors and asynchronous events, each framed as one
// JSON object per packet (framing itself is the transport package's
// concern). Parsing is strict about argument keys — every command
// rejects unknown fields before any side effect is taken — but tolerant
// of surrounding whitespace, since that is handled by encoding/json
// itself.
package wire

import (
	"encoding/json"
	"fmt"
)

// Type is the packet discriminator carried by every packet's "type" field.
type Type string

// The five packet types the protocol exchanges.
const (
	TypeGreeting Type = "greeting"
	TypeCommand  Type = "command"
	TypeResponse Type = "response"
	TypeError    Type = "error"
	TypeEvent    Type = "event"
)

// ErrorCode enumerates the protocol-level error codes a {type:"error"}
// packet may carry.
type ErrorCode string

// The error codes named by the protocol.
const (
	ErrInvalidJSON             ErrorCode = "invalid_json"
	ErrInvalidPacket           ErrorCode = "invalid_packet"
	ErrInvalidCommand          ErrorCode = "invalid_command"
	ErrInvalidGreeting         ErrorCode = "invalid_greeting"
	ErrUnknownVersion          ErrorCode = "unknown_version"
	ErrProtocolError           ErrorCode = "protocol_error"
	ErrInvalidArgs             ErrorCode = "invalid_args"
	ErrInvalidReference        ErrorCode = "invalid_reference"
	ErrItemNotFound            ErrorCode = "item_not_found"
	ErrWrongItemType           ErrorCode = "wrong_item_type"
	ErrInvalidItemValuesEnc    ErrorCode = "invalid_item_values_encoding"
	ErrInvalidStatus           ErrorCode = "invalid_status"
)

// ProtocolError is a recoverable protocol error: it is reported to the
// debugger as a {type:"error"} packet and never terminates the session.
type ProtocolError struct {
	Code    ErrorCode
	Message string
}

// Error implements the error interface.
func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Errorf builds a ProtocolError with a formatted message.
func Errorf(code ErrorCode, format string, args ...interface{}) *ProtocolError {
	return &ProtocolError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Commands lists every command name the greeting advertises support for,
// in the table order of the protocol's command reference.
var Commands = []string{
	"list_scopes",
	"list_items",
	"reference_items",
	"query_interval",
	"get_simulation_status",
	"run_simulation",
	"pause_simulation",
}

// Events lists every event name the greeting advertises support for.
var Events = []string{
	"simulation_paused",
	"simulation_finished",
}

// ItemValuesEncoding is the sole supported item-value wire encoding.
const ItemValuesEncoding = "base64(u32)"

// ParsePacket decodes a raw packet body into a field map, preserving raw
// JSON for each field so callers can apply strict, per-command key
// validation before unmarshalling individual values.
func ParsePacket(raw []byte) (map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, Errorf(ErrInvalidJSON, "%v", err)
	}
	return fields, nil
}

// PacketType extracts and validates the "type" discriminator.
func PacketType(fields map[string]json.RawMessage) (Type, error) {
	raw, ok := fields["type"]
	if !ok {
		return "", Errorf(ErrInvalidPacket, "missing type")
	}

	var t string
	if err := json.Unmarshal(raw, &t); err != nil {
		return "", Errorf(ErrInvalidPacket, "type must be a string")
	}

	switch Type(t) {
	case TypeGreeting, TypeCommand, TypeResponse, TypeError, TypeEvent:
		return Type(t), nil
	default:
		return "", Errorf(ErrInvalidPacket, "unknown packet type %q", t)
	}
}

// checkKeys fails with invalid_args if fields carries any key not listed
// in allowed.
func checkKeys(fields map[string]json.RawMessage, allowed ...string) error {
	permitted := make(map[string]bool, len(allowed))
	for _, k := range allowed {
		permitted[k] = true
	}
	for k := range fields {
		if !permitted[k] {
			return Errorf(ErrInvalidArgs, "unknown argument %q", k)
		}
	}
	return nil
}

func requireString(fields map[string]json.RawMessage, key string) (string, error) {
	raw, ok := fields[key]
	if !ok {
		return "", Errorf(ErrInvalidArgs, "missing argument %q", key)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", Errorf(ErrInvalidArgs, "argument %q must be a string", key)
	}
	return s, nil
}

func requireBool(fields map[string]json.RawMessage, key string) (bool, error) {
	raw, ok := fields[key]
	if !ok {
		return false, Errorf(ErrInvalidArgs, "missing argument %q", key)
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err != nil {
		return false, Errorf(ErrInvalidArgs, "argument %q must be a boolean", key)
	}
	return b, nil
}

// optionalNullableString parses a key whose value is either a JSON string
// or JSON null. present reports whether the key existed at all; when it
// did and was non-null, value holds the string.
func optionalNullableString(fields map[string]json.RawMessage, key string) (value *string, present bool, err error) {
	raw, ok := fields[key]
	if !ok {
		return nil, false, nil
	}
	if string(raw) == "null" {
		return nil, true, nil
	}
	var s string
	if jsonErr := json.Unmarshal(raw, &s); jsonErr != nil {
		return nil, true, Errorf(ErrInvalidArgs, "argument %q must be a string or null", key)
	}
	return &s, true, nil
}

func requireStringArray(fields map[string]json.RawMessage, key string) ([]string, error) {
	raw, ok := fields[key]
	if !ok {
		return nil, Errorf(ErrInvalidArgs, "missing argument %q", key)
	}
	var arr []string
	if err := json.Unmarshal(raw, &arr); err != nil {
		return nil, Errorf(ErrInvalidArgs, "argument %q must be an array of strings", key)
	}
	return arr, nil
}

// Response builds a {type:"response", command:<name>, ...extra} packet.
func Response(command string, extra map[string]interface{}) map[string]interface{} {
	out := map[string]interface{}{"type": string(TypeResponse), "command": command}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

// ErrorPacket builds a {type:"error", error:<code>, message:<string>}
// packet, optionally with extra context fields.
func ErrorPacket(code ErrorCode, message string, extra map[string]interface{}) map[string]interface{} {
	out := map[string]interface{}{
		"type":    string(TypeError),
		"error":   string(code),
		"message": message,
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

// EventPacket builds a {type:"event", event:<name>, ...extra} packet.
func EventPacket(event string, extra map[string]interface{}) map[string]interface{} {
	out := map[string]interface{}{"type": string(TypeEvent), "event": event}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

// Marshal serialises a built packet value to its JSON bytes.
func Marshal(packet map[string]interface{}) ([]byte, error) {
	return json.Marshal(packet)
}
