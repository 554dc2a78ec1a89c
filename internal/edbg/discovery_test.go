package edbg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"debugtool/internal/cmsisdap"
)

func TestSupportsHandlerTrue(t *testing.T) {
	fake := newFakeFramer(64)
	frame := AvrCommandFrame{
		SequenceID: 1,
		HandlerID:  HandlerDiscovery,
		Payload:    []byte{byte(ResponseOK), byte(HandlerHouseKeeping), byte(HandlerAVR8Generic)},
	}.Bytes()
	fake.queue(CmsisAvrCommand, cmsisdap.Response{ID: CmsisAvrCommand, Data: []byte{0x01}})
	rspData := append([]byte{0x11, 0x00, byte(len(frame))}, frame...)
	fake.queue(CmsisAvrResponse, cmsisdap.Response{ID: CmsisAvrResponse, Data: rspData})

	sp := &SubProtocol{framer: fake}
	ok, err := sp.SupportsHandler(HandlerAVR8Generic)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSupportsHandlerFalse(t *testing.T) {
	fake := newFakeFramer(64)
	frame := AvrCommandFrame{
		SequenceID: 1,
		HandlerID:  HandlerDiscovery,
		Payload:    []byte{byte(ResponseOK), byte(HandlerHouseKeeping)},
	}.Bytes()
	fake.queue(CmsisAvrCommand, cmsisdap.Response{ID: CmsisAvrCommand, Data: []byte{0x01}})
	rspData := append([]byte{0x11, 0x00, byte(len(frame))}, frame...)
	fake.queue(CmsisAvrResponse, cmsisdap.Response{ID: CmsisAvrResponse, Data: rspData})

	sp := &SubProtocol{framer: fake}
	ok, err := sp.SupportsHandler(HandlerAVR8Generic)
	require.NoError(t, err)
	assert.False(t, ok)
}
