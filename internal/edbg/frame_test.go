package edbg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAvrCommandFrameBytes(t *testing.T) {
	frame := AvrCommandFrame{
		SequenceID: 0x0001,
		HandlerID:  HandlerHouseKeeping,
		Payload:    []byte{0x10, 0x00, 0x00, 0x00},
	}

	got := frame.Bytes()
	want := []byte{0x0E, 0x00, 0x01, 0x00, 0x01, 0x10, 0x00, 0x00, 0x00}
	assert.Equal(t, want, got, "HouseKeeping START_SESSION frame should serialise SOF/version/seq/handler/payload in order")
}

func TestGenerateAvrCommandsSingleFragment(t *testing.T) {
	raw := []byte{0x0E, 0x00, 0x01, 0x00, 0x01, 0x10, 0x00, 0x00, 0x00}

	commands := GenerateAvrCommands(raw, 60)
	require.Len(t, commands, 1, "a 9-byte frame fits in one fragment when F=60")

	cmd := commands[0]
	assert.Equal(t, 1, cmd.FragmentNumber)
	assert.Equal(t, 1, cmd.FragmentCount)

	data := cmd.Data()
	assert.Equal(t, byte(0x11), data[0], "fragment-info byte packs (fragmentNumber<<4)|fragmentCount, both 1-based")
	assert.Equal(t, byte(0x00), data[1], "size high byte")
	assert.Equal(t, byte(0x09), data[2], "size low byte: 9 packet bytes follow")
	assert.Equal(t, raw, data[3:], "packet bytes follow the 3-byte fragment header unchanged")
}

// TestGenerateAvrCommandsMultiFragment exercises spec §8 property 2:
// fragment_count == ceil(len/F), every fragment but the last has exactly F
// packet bytes, and fragment_number runs 1..=count.
func TestGenerateAvrCommandsMultiFragment(t *testing.T) {
	raw := make([]byte, 25)
	for i := range raw {
		raw[i] = byte(i)
	}

	commands := GenerateAvrCommands(raw, 10)
	require.Len(t, commands, 3)

	for i, cmd := range commands {
		assert.Equal(t, i+1, cmd.FragmentNumber)
		assert.Equal(t, 3, cmd.FragmentCount)
	}
	assert.Len(t, commands[0].Packet, 10)
	assert.Len(t, commands[1].Packet, 10)
	assert.Len(t, commands[2].Packet, 5, "last fragment carries the remainder")

	var reassembled []byte
	for _, cmd := range commands {
		reassembled = append(reassembled, cmd.Packet...)
	}
	assert.Equal(t, raw, reassembled)
}

func TestParseAvrResponseFrame(t *testing.T) {
	raw := []byte{0x0E, 0x00, 0x01, 0x00, 0x01, 0x80}

	resp, err := parseAvrResponseFrame(raw)
	require.NoError(t, err)
	assert.Equal(t, uint16(1), resp.SequenceID)
	assert.Equal(t, HandlerHouseKeeping, resp.HandlerID)

	id, err := resp.ResponseID()
	require.NoError(t, err)
	assert.Equal(t, ResponseOK, id)
}

func TestParseAvrResponseFrameRejectsBadSOF(t *testing.T) {
	raw := []byte{0xFF, 0x00, 0x01, 0x00, 0x01, 0x80}
	_, err := parseAvrResponseFrame(raw)
	assert.Error(t, err, "a response with the wrong SOF byte must be rejected as a communication failure")
}

func TestParseAvrResponseFragmentEndOfStream(t *testing.T) {
	fragment, err := parseAvrResponseFragment([]byte{0x00})
	require.NoError(t, err)
	assert.True(t, fragment.EndOfStream)
}

// TestParseAvrResponseFragmentEndOfStreamIgnoresFragmentCount exercises the
// genuine mid-stream end-of-stream case: fragmentNumber == 0 terminates the
// response regardless of a nonzero fragmentCount nibble (spec's fragment
// reassembly rule; matches requestAvrResponses() breaking on fragmentNumber
// alone).
func TestParseAvrResponseFragmentEndOfStreamIgnoresFragmentCount(t *testing.T) {
	data := []byte{0x03, 0x00, 0x03, 0xAA, 0xBB, 0xCC}
	fragment, err := parseAvrResponseFragment(data)
	require.NoError(t, err)
	assert.True(t, fragment.EndOfStream, "fragmentNumber 0 ends the stream even though fragmentCount is 3")
	assert.Nil(t, fragment.Packet)
}

func TestParseAvrResponseFragmentData(t *testing.T) {
	data := []byte{0x11, 0x00, 0x03, 0xAA, 0xBB, 0xCC}
	fragment, err := parseAvrResponseFragment(data)
	require.NoError(t, err)
	assert.Equal(t, 1, fragment.FragmentNumber)
	assert.Equal(t, 1, fragment.FragmentCount)
	assert.Equal(t, []byte{0xAA, 0xBB, 0xCC}, fragment.Packet)
}

func TestParseAvrEvent(t *testing.T) {
	event, ok := parseAvrEvent([]byte{0x40, 0x01, 0x02})
	require.True(t, ok)
	assert.True(t, event.IsBreak())
	assert.Equal(t, []byte{0x01, 0x02}, event.Data)

	_, ok = parseAvrEvent(nil)
	assert.False(t, ok, "an empty AVR_EVT response means no event is pending")
}
