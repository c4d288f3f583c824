package wire_test

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hwdebug/rtlserver/wire"
)

func TestGreetingRoundTrip(t *testing.T) {
	greeting := wire.BuildGreeting()
	raw, err := wire.Marshal(greeting)
	require.NoError(t, err)

	fields, err := wire.ParsePacket(raw)
	require.NoError(t, err)

	typ, err := wire.PacketType(fields)
	require.NoError(t, err)
	assert.Equal(t, wire.TypeGreeting, typ)

	version, err := wire.ParseGreeting(fields)
	require.NoError(t, err)
	assert.Equal(t, 0, version)
}

func TestParseGreetingRejectsUnknownVersion(t *testing.T) {
	fields, _ := wire.ParsePacket([]byte(`{"type":"greeting","version":7}`))
	_, err := wire.ParseGreeting(fields)
	require.Error(t, err)
	assert.Equal(t, wire.ErrUnknownVersion, err.(*wire.ProtocolError).Code)
}

func TestCommandNameRejectsUnknown(t *testing.T) {
	fields, _ := wire.ParsePacket([]byte(`{"type":"command","command":"nonexistent"}`))
	_, err := wire.CommandName(fields)
	require.Error(t, err)
	assert.Equal(t, wire.ErrInvalidCommand, err.(*wire.ProtocolError).Code)
}

func TestParseListArgsRejectsUnknownKeys(t *testing.T) {
	fields, _ := wire.ParsePacket([]byte(`{"type":"command","command":"list_scopes","scope":"top","bogus":1}`))
	_, err := wire.ParseListScopes(fields)
	require.Error(t, err)
	assert.Equal(t, wire.ErrInvalidArgs, err.(*wire.ProtocolError).Code)
}

func TestParseReferenceItemsErase(t *testing.T) {
	fields, _ := wire.ParsePacket([]byte(`{"type":"command","command":"reference_items","reference":"A","items":null}`))
	args, err := wire.ParseReferenceItems(fields)
	require.NoError(t, err)
	assert.True(t, args.Erase)
}

func TestParseReferenceItemsDesignators(t *testing.T) {
	fields, _ := wire.ParsePacket([]byte(
		`{"type":"command","command":"reference_items","reference":"A","items":[["top clk"],["top mem",0,3]]}`))
	args, err := wire.ParseReferenceItems(fields)
	require.NoError(t, err)
	require.Len(t, args.Items, 2)
	assert.Equal(t, "top clk", args.Items[0].Name)
	assert.False(t, args.Items[0].HasRange)
	assert.Equal(t, "top mem", args.Items[1].Name)
	assert.True(t, args.Items[1].HasRange)
	assert.Equal(t, 3, args.Items[1].Last)
}

func TestParseQueryInterval(t *testing.T) {
	fields, _ := wire.ParsePacket([]byte(
		`{"type":"command","command":"query_interval","interval":["0s","10ns"],"collapse":true,"items":"A","item_values_encoding":"base64(u32)","diagnostics":false}`))
	args, err := wire.ParseQueryInterval(fields)
	require.NoError(t, err)
	assert.True(t, args.Collapse)
	assert.False(t, args.Diagnostics)
	require.NotNil(t, args.Reference)
	assert.Equal(t, "A", *args.Reference)
}

func TestParseRunSimulationNullUntilTime(t *testing.T) {
	fields, _ := wire.ParsePacket([]byte(
		`{"type":"command","command":"run_simulation","until_time":null,"until_diagnostics":["assert"],"sample_item_values":true}`))
	args, err := wire.ParseRunSimulation(fields)
	require.NoError(t, err)
	assert.Nil(t, args.UntilTime)
	assert.Equal(t, []string{"assert"}, args.UntilDiagnostics)
}

func TestBase64RoundTrip(t *testing.T) {
	words := []uint32{0x12345678, 0xDEADBEEF, 1}
	encoded := wire.EncodeItemValues(words)
	decoded, err := wire.DecodeItemValues(encoded)
	require.NoError(t, err)
	assert.Equal(t, words, decoded)

	reencoded := wire.EncodeItemValues(decoded)
	assert.Equal(t, encoded, reencoded)
}

func TestBase64RoundTripByteCount(t *testing.T) {
	for bits := 1; bits <= 96; bits++ {
		chunks := (bits + 31) / 32
		words := make([]uint32, chunks)
		for i := range words {
			words[i] = math.MaxUint32
		}
		encoded := wire.EncodeItemValues(words)
		decoded, err := wire.DecodeItemValues(encoded)
		require.NoError(t, err)
		assert.Len(t, decoded, chunks)
	}
}

func TestErrorPacketShape(t *testing.T) {
	packet := wire.ErrorPacket(wire.ErrInvalidReference, "no such reference", nil)
	raw, err := json.Marshal(packet)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "error", decoded["type"])
	assert.Equal(t, "invalid_reference", decoded["error"])
}
