package avrisp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"debugtool/internal/edbg"
	"debugtool/internal/target"
	"debugtool/internal/toolerrors"
)

type fakeSubProtocol struct {
	responses    []edbg.AvrResponseFrame
	sentHandlers []edbg.ProtocolHandlerID
	sentPayloads [][]byte
}

func (f *fakeSubProtocol) Exec(handler edbg.ProtocolHandlerID, payload []byte) (edbg.AvrResponseFrame, error) {
	f.sentHandlers = append(f.sentHandlers, handler)
	f.sentPayloads = append(f.sentPayloads, payload)
	if len(f.responses) == 0 {
		panic("fakeSubProtocol: no scripted response queued for Exec")
	}
	resp := f.responses[0]
	f.responses = f.responses[1:]
	return resp, nil
}

func okResponse() edbg.AvrResponseFrame {
	return edbg.AvrResponseFrame{Payload: []byte{byte(edbg.ResponseOK)}}
}

func okResponseWithByte(b byte) edbg.AvrResponseFrame {
	return edbg.AvrResponseFrame{Payload: []byte{byte(edbg.ResponseOK), b}}
}

func okResponses(n int) []edbg.AvrResponseFrame {
	resp := make([]edbg.AvrResponseFrame, n)
	for i := range resp {
		resp[i] = okResponse()
	}
	return resp
}

func TestActivatePushesParameterBlockThenEntersProgrammingMode(t *testing.T) {
	sub := &fakeSubProtocol{responses: okResponses(13)} // 12 params + ENTER_PROGMODE
	d := NewDriver(sub, ParameterBlock{ProgramModeTimeout: 5})

	err := d.Activate()
	require.NoError(t, err)
	assert.True(t, d.active)

	last := sub.sentPayloads[len(sub.sentPayloads)-1]
	assert.Equal(t, cmdIspEnterProgMode, last[0])

	first := sub.sentPayloads[0]
	assert.Equal(t, cmdIspSetParameter, first[0])
	assert.Equal(t, byte(5), first[len(first)-1], "first pushed parameter should carry ProgramModeTimeout's value")
}

func TestDeactivateLeavesProgrammingMode(t *testing.T) {
	sub := &fakeSubProtocol{responses: []edbg.AvrResponseFrame{okResponse()}}
	d := NewDriver(sub, ParameterBlock{})
	d.active = true

	err := d.Deactivate()
	require.NoError(t, err)
	assert.False(t, d.active)
	assert.Equal(t, cmdIspLeaveProgMode, sub.sentPayloads[0][0])
}

func TestReadSignatureReadsThreeBytesOneAtATime(t *testing.T) {
	sub := &fakeSubProtocol{responses: []edbg.AvrResponseFrame{
		okResponseWithByte(0x1E),
		okResponseWithByte(0x95),
		okResponseWithByte(0x0F),
	}}
	d := NewDriver(sub, ParameterBlock{})

	sig, err := d.ReadSignature()
	require.NoError(t, err)
	assert.Equal(t, target.Signature{Byte0: 0x1E, Byte1: 0x95, Byte2: 0x0F}, sig)
	require.Len(t, sub.sentPayloads, 3)
	assert.Equal(t, byte(0), sub.sentPayloads[0][2])
	assert.Equal(t, byte(1), sub.sentPayloads[1][2])
	assert.Equal(t, byte(2), sub.sentPayloads[2][2])
}

func TestReadFuseReturnsSingleByte(t *testing.T) {
	sub := &fakeSubProtocol{responses: []edbg.AvrResponseFrame{okResponseWithByte(0xD9)}}
	d := NewDriver(sub, ParameterBlock{})

	value, err := d.ReadFuse(FuseLow)
	require.NoError(t, err)
	assert.Equal(t, byte(0xD9), value)
}

func TestProgramFuseSendsFuseTypeAndValue(t *testing.T) {
	sub := &fakeSubProtocol{responses: []edbg.AvrResponseFrame{okResponse()}}
	d := NewDriver(sub, ParameterBlock{})

	err := d.ProgramFuse(FuseHigh, 0xD7)
	require.NoError(t, err)
	payload := sub.sentPayloads[0]
	assert.Equal(t, byte(FuseHigh), payload[2])
	assert.Equal(t, byte(0xD7), payload[3])
}

func TestRequireOKRaisesProtocolErrorOnFailedResponse(t *testing.T) {
	sub := &fakeSubProtocol{responses: []edbg.AvrResponseFrame{
		{Payload: []byte{byte(edbg.ResponseFailed)}},
	}}
	d := NewDriver(sub, ParameterBlock{})

	err := d.Deactivate()
	require.Error(t, err)
	assert.Equal(t, toolerrors.KindProtocolError, toolerrors.KindOf(err))
}

func TestResolveFuseTypeMapsDescriptorName(t *testing.T) {
	assert.Equal(t, FuseHigh, ResolveFuseType(target.RegisterDescriptor{Name: "hfuse"}))
	assert.Equal(t, FuseExtended, ResolveFuseType(target.RegisterDescriptor{Name: "efuse"}))
	assert.Equal(t, FuseLow, ResolveFuseType(target.RegisterDescriptor{Name: "lfuse"}))
}
