package server

import (
	"encoding/json"
	"errors"

	"github.com/hwdebug/rtlserver/agent"
	"github.com/hwdebug/rtlserver/diag"
	"github.com/hwdebug/rtlserver/model"
	"github.com/hwdebug/rtlserver/vtime"
	"github.com/hwdebug/rtlserver/wire"
)

func untilTimeOrMax(t *vtime.Time) vtime.Time {
	if t == nil {
		return vtime.Maximum()
	}
	return *t
}

// handlePacket parses and dispatches one raw packet, returning the bytes
// of the reply to send back, or nil when no reply is warranted.
func (s *Server) handlePacket(raw []byte) []byte {
	fields, err := wire.ParsePacket(raw)
	if err != nil {
		return s.marshalError(err)
	}

	typ, err := wire.PacketType(fields)
	if err != nil {
		return s.marshalError(err)
	}

	switch typ {
	case wire.TypeGreeting:
		return s.handleGreeting(fields)
	case wire.TypeCommand:
		return s.handleCommand(fields)
	default:
		return s.marshalError(wire.Errorf(wire.ErrProtocolError, "unexpected packet type %q", typ))
	}
}

func (s *Server) handleGreeting(fields map[string]json.RawMessage) []byte {
	if _, err := wire.ParseGreeting(fields); err != nil {
		return s.marshalError(err)
	}
	s.greeted = true
	raw, _ := wire.Marshal(wire.BuildGreeting())
	return raw
}

func (s *Server) handleCommand(fields map[string]json.RawMessage) []byte {
	if !s.greeted {
		return s.marshalError(wire.Errorf(wire.ErrProtocolError, "command before greeting"))
	}

	name, err := wire.CommandName(fields)
	if err != nil {
		return s.marshalError(err)
	}

	var resp map[string]interface{}
	var respErr error

	switch name {
	case "list_scopes":
		resp, respErr = s.doListScopes(fields)
	case "list_items":
		resp, respErr = s.doListItems(fields)
	case "reference_items":
		resp, respErr = s.doReferenceItems(fields)
	case "query_interval":
		resp, respErr = s.doQueryInterval(fields)
	case "get_simulation_status":
		resp, respErr = s.doGetSimulationStatus(fields)
	case "run_simulation":
		resp, respErr = s.doRunSimulation(fields)
	case "pause_simulation":
		resp, respErr = s.doPauseSimulation(fields)
	default:
		respErr = wire.Errorf(wire.ErrInvalidCommand, "unknown command %q", name)
	}

	if respErr != nil {
		return s.marshalError(respErr)
	}

	raw, _ := wire.Marshal(wire.Response(name, resp))
	return raw
}

func (s *Server) marshalError(err error) []byte {
	var pe *wire.ProtocolError
	if !errors.As(err, &pe) {
		pe = wire.Errorf(wire.ErrProtocolError, "%v", err)
	}
	raw, _ := wire.Marshal(wire.ErrorPacket(pe.Code, pe.Message, nil))
	return raw
}

// attrsToWire renders an attribute map the way the typed attribute
// builder wraps each value: {attr_name: {type, value}}.
func attrsToWire(attrs map[string]model.Attr) map[string]interface{} {
	out := make(map[string]interface{}, len(attrs))
	for k, v := range attrs {
		out[k] = map[string]interface{}{"type": v.Kind.String(), "value": v.Marshal()}
	}
	return out
}

// definitionToWire renders a scope's definition record: the module type
// name (not the scope's hierarchical path), its src attribute if
// present, and its wrapped attribute map.
func definitionToWire(moduleName string, set *model.AttrSet) interface{} {
	if set == nil {
		return nil
	}
	out := map[string]interface{}{"name": moduleName, "attributes": attrsToWire(set.Attrs)}
	if set.HasSrc {
		out["src"] = set.Src
	}
	return out
}

// instantiationToWire renders a scope's instantiation (cell) record: its
// src attribute if present and its wrapped attribute map, with no name
// (a cell is identified by its path, not a separate name field).
func instantiationToWire(set *model.AttrSet) interface{} {
	if set == nil {
		return nil
	}
	out := map[string]interface{}{"attributes": attrsToWire(set.Attrs)}
	if set.HasSrc {
		out["src"] = set.Src
	}
	return out
}

func (s *Server) doListScopes(fields map[string]json.RawMessage) (map[string]interface{}, error) {
	args, err := wire.ParseListScopes(fields)
	if err != nil {
		return nil, err
	}

	scopes := s.ag.Model().ListScopes(args.Scope)
	out := map[string]interface{}{}
	for path, sc := range scopes {
		out[path] = map[string]interface{}{
			"type":          "module",
			"definition":    definitionToWire(sc.Type, sc.Definition),
			"instantiation": instantiationToWire(sc.Instantiation),
		}
	}
	return map[string]interface{}{"scopes": out}, nil
}

func (s *Server) doListItems(fields map[string]json.RawMessage) (map[string]interface{}, error) {
	args, err := wire.ParseListItems(fields)
	if err != nil {
		return nil, err
	}

	items := s.ag.Model().ListItems(args.Scope)
	out := map[string]interface{}{}
	for path, it := range items {
		desc := map[string]interface{}{
			"type":     it.Type.String(),
			"lsb_at":   it.LsbAt,
			"width":    it.Width,
			"settable": it.Settable(),
		}
		if it.Type == model.Memory {
			desc["depth"] = it.Depth
			desc["zero_at"] = it.ZeroAt
		} else {
			desc["input"] = it.Flags.Has(model.FlagInput)
			desc["output"] = it.Flags.Has(model.FlagOutput)
		}
		out[path] = desc
	}
	return map[string]interface{}{"items": out}, nil
}

func (s *Server) doReferenceItems(fields map[string]json.RawMessage) (map[string]interface{}, error) {
	args, err := wire.ParseReferenceItems(fields)
	if err != nil {
		return nil, err
	}

	if args.Erase {
		s.refs.Erase(args.Reference)
		return map[string]interface{}{}, nil
	}

	m := s.ag.Model()
	windows := make([]model.Window, 0, len(args.Items))
	for _, d := range args.Items {
		w, err := d.Resolve(m)
		if err != nil {
			return nil, mapModelError(err)
		}
		windows = append(windows, w)
	}

	s.refs.Define(args.Reference, windows)
	return map[string]interface{}{}, nil
}

func mapModelError(err error) error {
	switch {
	case errors.Is(err, model.ErrItemNotFound):
		return wire.Errorf(wire.ErrItemNotFound, "%v", err)
	case errors.Is(err, model.ErrWrongItemType):
		return wire.Errorf(wire.ErrWrongItemType, "%v", err)
	default:
		return wire.Errorf(wire.ErrInvalidArgs, "%v", err)
	}
}

func diagnosticsToWire(diags []diag.Diagnostic) []interface{} {
	out := make([]interface{}, 0, len(diags))
	for _, d := range diags {
		out = append(out, map[string]interface{}{
			"kind": d.Kind.String(), "message": d.Message,
			"file": d.Loc.File, "line": d.Loc.Line, "time": d.Time.String(),
		})
	}
	return out
}

func (s *Server) doQueryInterval(fields map[string]json.RawMessage) (map[string]interface{}, error) {
	args, err := wire.ParseQueryInterval(fields)
	if err != nil {
		return nil, err
	}

	var ref *model.Reference
	if args.Reference != nil {
		r, ok := s.refs.Lookup(*args.Reference)
		if !ok {
			return nil, wire.Errorf(wire.ErrInvalidReference, "no such reference %q", *args.Reference)
		}
		ref = r

		if args.ItemValuesEncoding != nil && *args.ItemValuesEncoding != wire.ItemValuesEncoding {
			return nil, wire.Errorf(wire.ErrInvalidItemValuesEnc,
				"unsupported item_values_encoding %q", *args.ItemValuesEncoding)
		}
	}

	// The refresher is nil here: re-evaluating the top level to refresh
	// non-stored computed items belongs on the simulation thread the
	// agent drives, not this one, and QueryInterval has no synchronous
	// path back onto it. See DESIGN.md's "server" section for the
	// deliberate deviation this causes from the full three-step query.
	results, err := s.ag.Spool().QueryInterval(
		args.Begin, args.End, args.Collapse, ref, args.Diagnostics, nil,
	)
	if err != nil {
		return nil, wire.Errorf(wire.ErrInvalidArgs, "%v", err)
	}

	samples := make([]interface{}, 0, len(results))
	for _, r := range results {
		sample := map[string]interface{}{"time": r.Time.String()}
		if args.Diagnostics {
			sample["diagnostics"] = diagnosticsToWire(r.Diagnostics)
		}
		if r.HasWords {
			sample["item_values"] = wire.EncodeItemValues(r.Words)
		}
		samples = append(samples, sample)
	}

	return map[string]interface{}{"samples": samples}, nil
}

func (s *Server) doGetSimulationStatus(fields map[string]json.RawMessage) (map[string]interface{}, error) {
	if err := wire.ParseGetSimulationStatus(fields); err != nil {
		return nil, err
	}

	snap := s.ag.Shared.Read()
	if snap.Status == agent.Initializing {
		return map[string]interface{}{}, nil
	}

	out := map[string]interface{}{"status": snap.Status.String(), "latest_time": snap.LatestTime.String()}
	if snap.Status == agent.Paused {
		out["next_sample_time"] = snap.NextSampleTime.String()
	}
	return out, nil
}

func (s *Server) doRunSimulation(fields map[string]json.RawMessage) (map[string]interface{}, error) {
	args, err := wire.ParseRunSimulation(fields)
	if err != nil {
		return nil, err
	}

	if !args.SampleItemValues {
		return nil, wire.Errorf(wire.ErrInvalidArgs, "sample_item_values=false is not supported")
	}

	until := args.UntilTime
	mask, err := diag.ParseMask(args.UntilDiagnostics)
	if err != nil {
		return nil, wire.Errorf(wire.ErrInvalidArgs, "%v", err)
	}

	untilTime := untilTimeOrMax(until)

	if reqErr := s.ag.Shared.RequestRun(untilTime, mask); reqErr != nil {
		if agent.IsInvalidStatus(reqErr) {
			return nil, wire.Errorf(wire.ErrInvalidStatus, "run_simulation requires a paused agent")
		}
		return nil, wire.Errorf(wire.ErrInvalidArgs, "%v", reqErr)
	}

	// An unconditional free run (until_time:null, until_diagnostics:[])
	// has nothing bounding it, so pause_simulation ending it is not a
	// newsworthy pause: only a bounded run arms the event.
	s.pendingArmed = untilTime < vtime.Maximum() || !mask.Empty()
	return map[string]interface{}{}, nil
}

func (s *Server) doPauseSimulation(fields map[string]json.RawMessage) (map[string]interface{}, error) {
	if err := wire.ParsePauseSimulation(fields); err != nil {
		return nil, err
	}

	at := s.ag.Shared.RequestPause()
	return map[string]interface{}{"time": at.String()}, nil
}
