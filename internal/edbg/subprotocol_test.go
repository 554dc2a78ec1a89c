package edbg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"debugtool/internal/cmsisdap"
)

// fakeFramer is a scripted cmsisFramer: each call to SendAndReceive for a
// given command ID pops the next queued response for that ID.
type fakeFramer struct {
	reportSize int
	responses  map[byte][]cmsisdap.Response
	sent       []cmsisdap.Command
}

func newFakeFramer(reportSize int) *fakeFramer {
	return &fakeFramer{reportSize: reportSize, responses: map[byte][]cmsisdap.Response{}}
}

func (f *fakeFramer) queue(id byte, resp cmsisdap.Response) {
	f.responses[id] = append(f.responses[id], resp)
}

func (f *fakeFramer) ReportSize() int { return f.reportSize }

func (f *fakeFramer) SendAndReceive(cmd cmsisdap.Command) (cmsisdap.Response, error) {
	f.sent = append(f.sent, cmd)
	queue := f.responses[cmd.ID]
	require_NotEmpty(queue)
	resp := queue[0]
	f.responses[cmd.ID] = queue[1:]
	return resp, nil
}

func require_NotEmpty(queue []cmsisdap.Response) {
	if len(queue) == 0 {
		panic("fakeFramer: no scripted response queued for command")
	}
}

// TestSubProtocolStartSessionE1 implements spec §8 scenario E1: Atmel-ICE
// HouseKeeping START_SESSION with sequence id 1, a single-fragment command,
// an immediate fragment acknowledgement, and an OK response.
func TestSubProtocolStartSessionE1(t *testing.T) {
	fake := newFakeFramer(64)

	// AVR_CMD fragment ack: first data byte 0x01.
	fake.queue(CmsisAvrCommand, cmsisdap.Response{ID: CmsisAvrCommand, Data: []byte{0x01}})
	// AVR_RSP poll: one fragment (1/1), response payload is AvrResponseFrame
	// bytes [SOF, ver, seq_lo, seq_hi, handler, ResponseOK].
	responseFrame := AvrCommandFrame{SequenceID: 1, HandlerID: HandlerHouseKeeping, Payload: []byte{byte(ResponseOK)}}.Bytes()
	rspData := append([]byte{0x11, 0x00, byte(len(responseFrame))}, responseFrame...)
	fake.queue(CmsisAvrResponse, cmsisdap.Response{ID: CmsisAvrResponse, Data: rspData})

	sp := NewSubProtocol(&cmsisdap.Framer{})
	sp.framer = fake

	err := sp.StartSession()
	require.NoError(t, err)

	require.Len(t, fake.sent, 2, "StartSession should send one AVR_CMD fragment and poll AVR_RSP once")
	assert.Equal(t, CmsisAvrCommand, fake.sent[0].ID)

	cmdPayload := fake.sent[0].Data
	assert.Equal(t, byte(0x11), cmdPayload[0], "single-fragment command packs fragmentNumber=1, fragmentCount=1 into (1<<4)|1")
	frameBytes := cmdPayload[3:]
	assert.Equal(t, byte(0x0E), frameBytes[0], "AvrCommandFrame SOF")
	assert.Equal(t, byte(0x01), frameBytes[2], "sequence id low byte is 1 for the first command issued")
	assert.Equal(t, byte(HandlerHouseKeeping), frameBytes[4])
	assert.Equal(t, byte(0x10), frameBytes[5], "HouseKeeping START_SESSION command token")
}

func TestSubProtocolSequenceIDsMonotonic(t *testing.T) {
	sp := &SubProtocol{}
	first := sp.nextSequenceID()
	second := sp.nextSequenceID()
	assert.Equal(t, first+1, second)
}

func TestSubProtocolSequenceWrapsAt16Bit(t *testing.T) {
	sp := &SubProtocol{sequence: 0xFFFF}
	next := sp.nextSequenceID()
	assert.Equal(t, uint16(0), next, "the sequence counter wraps at 16-bit overflow back to 0")
}

func TestSubProtocolCollectResponseHandlesEndOfStreamPolls(t *testing.T) {
	fake := newFakeFramer(64)
	fake.queue(CmsisAvrCommand, cmsisdap.Response{ID: CmsisAvrCommand, Data: []byte{0x01}})

	// First poll: device has nothing yet (end-of-stream sentinel).
	fake.queue(CmsisAvrResponse, cmsisdap.Response{ID: CmsisAvrResponse, Data: []byte{0x00}})
	responseFrame := AvrCommandFrame{SequenceID: 1, HandlerID: HandlerEdbgControl, Payload: []byte{byte(ResponseOK)}}.Bytes()
	rspData := append([]byte{0x11, 0x00, byte(len(responseFrame))}, responseFrame...)
	fake.queue(CmsisAvrResponse, cmsisdap.Response{ID: CmsisAvrResponse, Data: rspData})

	sp := &SubProtocol{framer: fake, sequence: 0}
	resp, err := sp.Exec(HandlerEdbgControl, []byte{byte(ResponseOK)})
	require.NoError(t, err)
	id, err := resp.ResponseID()
	require.NoError(t, err)
	assert.Equal(t, ResponseOK, id)
}

// TestSubProtocolCollectResponseEndOfStreamIgnoresFragmentCount exercises a
// genuine mid-stream end-of-stream fragment whose fragmentCount nibble is
// nonzero (e.g. 0x03: count 3, number 0) - it must still terminate the poll
// loop rather than being appended as a data fragment.
func TestSubProtocolCollectResponseEndOfStreamIgnoresFragmentCount(t *testing.T) {
	fake := newFakeFramer(64)
	fake.queue(CmsisAvrCommand, cmsisdap.Response{ID: CmsisAvrCommand, Data: []byte{0x01}})

	fake.queue(CmsisAvrResponse, cmsisdap.Response{ID: CmsisAvrResponse, Data: []byte{0x03, 0x00, 0x03, 0xAA, 0xBB, 0xCC}})
	responseFrame := AvrCommandFrame{SequenceID: 1, HandlerID: HandlerEdbgControl, Payload: []byte{byte(ResponseOK)}}.Bytes()
	rspData := append([]byte{0x11, 0x00, byte(len(responseFrame))}, responseFrame...)
	fake.queue(CmsisAvrResponse, cmsisdap.Response{ID: CmsisAvrResponse, Data: rspData})

	sp := &SubProtocol{framer: fake, sequence: 0}
	resp, err := sp.Exec(HandlerEdbgControl, []byte{byte(ResponseOK)})
	require.NoError(t, err)
	id, err := resp.ResponseID()
	require.NoError(t, err)
	assert.Equal(t, ResponseOK, id)
}

func TestSubProtocolExecRejectsUnacknowledgedFragment(t *testing.T) {
	fake := newFakeFramer(64)
	fake.queue(CmsisAvrCommand, cmsisdap.Response{ID: CmsisAvrCommand, Data: []byte{0x00}})

	sp := &SubProtocol{framer: fake}
	_, err := sp.Exec(HandlerHouseKeeping, []byte{0x10})
	assert.Error(t, err, "a fragment acknowledgement whose first byte isn't 0x01 must fail")
}
