package wire

import "encoding/json"

// GreetingVersion is the only protocol version this server accepts.
const GreetingVersion = 0

// ParseGreeting validates a {type:"greeting", version:0} packet and
// returns the advertised version.
func ParseGreeting(fields map[string]json.RawMessage) (int, error) {
	for k := range fields {
		if k != "type" && k != "version" {
			return 0, Errorf(ErrInvalidGreeting, "unknown argument %q", k)
		}
	}

	raw, ok := fields["version"]
	if !ok {
		return 0, Errorf(ErrInvalidGreeting, "missing version")
	}

	var version int
	if err := json.Unmarshal(raw, &version); err != nil {
		return 0, Errorf(ErrInvalidGreeting, "version must be an integer")
	}

	if version != GreetingVersion {
		return version, Errorf(ErrUnknownVersion, "unsupported version %d", version)
	}

	return version, nil
}

// BuildGreeting builds the server's greeting reply, advertising every
// supported command, event and the sole item-values wire encoding.
func BuildGreeting() map[string]interface{} {
	return map[string]interface{}{
		"type":     string(TypeGreeting),
		"version":  GreetingVersion,
		"commands": append([]string{}, Commands...),
		"events":   append([]string{}, Events...),
		"features": map[string]interface{}{
			"item_values_encoding": []string{ItemValuesEncoding},
		},
	}
}
