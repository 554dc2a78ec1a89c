package wchlink

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"debugtool/internal/toolerrors"
)

type fakeBulkDevice struct {
	writes [][]byte

	reads    [][]byte
	readErrs []error
}

func (f *fakeBulkDevice) BulkWrite(ifaceNum, epAddr int, buf []byte, maxPacketSize int) error {
	cp := make([]byte, len(buf))
	copy(cp, buf)
	f.writes = append(f.writes, cp)
	return nil
}

func (f *fakeBulkDevice) BulkRead(ifaceNum, epAddr int, timeout time.Duration, transferSize int) ([]byte, error) {
	if len(f.reads) == 0 {
		return nil, nil
	}
	raw := f.reads[0]
	f.reads = f.reads[1:]
	var err error
	if len(f.readErrs) > 0 {
		err = f.readErrs[0]
		f.readErrs = f.readErrs[1:]
	}
	return raw, err
}

func successResponse(cmdID byte, payload ...byte) []byte {
	out := []byte{responseCodeSuccess, cmdID, byte(len(payload))}
	return append(out, payload...)
}

func errorResponse(cmdID byte) []byte {
	return []byte{responseCodeError, cmdID, 0x01, 0x00}
}

func TestSendCommandWritesFramedRequestAndParsesResponse(t *testing.T) {
	dev := &fakeBulkDevice{reads: [][]byte{successResponse(0x01, 0xAA, 0xBB)}}
	framer := NewFramer(dev, 0, 64, time.Second)

	resp, err := framer.SendCommand(Command{ID: 0x01, Payload: []byte{0x01, 0x02}})
	require.NoError(t, err)
	assert.Equal(t, byte(0x01), resp.ID)
	assert.Equal(t, []byte{0xAA, 0xBB}, resp.Payload)

	require.Len(t, dev.writes, 1)
	assert.Equal(t, []byte{commandFramePrefix, 0x01, 0x02, 0x01, 0x02}, dev.writes[0])
}

func TestSendCommandReturnsProtocolErrorOnErrorResponseCode(t *testing.T) {
	dev := &fakeBulkDevice{reads: [][]byte{errorResponse(0x05)}}
	framer := NewFramer(dev, 0, 64, time.Second)

	_, err := framer.SendCommand(Command{ID: 0x05})
	require.Error(t, err)
	assert.Equal(t, toolerrors.KindProtocolError, toolerrors.KindOf(err))
}

func TestParseResponseRejectsShortFrame(t *testing.T) {
	_, err := parseResponse([]byte{0x82, 0x01}, 0x01)
	require.Error(t, err)
}

func TestParseResponseRejectsInvalidLeadingByte(t *testing.T) {
	_, err := parseResponse([]byte{0x55, 0x01, 0x01, 0xAA}, 0x01)
	require.Error(t, err)
}

func TestParseResponseRejectsMismatchedCommandID(t *testing.T) {
	_, err := parseResponse([]byte{0x82, 0x02, 0x01, 0xAA}, 0x01)
	require.Error(t, err)
}

func TestParseResponseRejectsPayloadLengthMismatch(t *testing.T) {
	_, err := parseResponse([]byte{0x82, 0x01, 0x05, 0xAA}, 0x01)
	require.Error(t, err)
}
