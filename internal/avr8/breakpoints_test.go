package avr8

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"debugtool/internal/edbg"
	"debugtool/internal/target"
	"debugtool/internal/toolerrors"
)

func TestSetSoftwareBreakpointRecordsAddress(t *testing.T) {
	sub := &fakeSubProtocol{responses: []edbg.AvrResponseFrame{okResponse()}}
	d := newDriverForTest(sub)

	err := d.SetSoftwareBreakpoint(0x1000)
	require.NoError(t, err)
	assert.True(t, d.softwareBreakpoints[0x1000])
}

func TestClearAllSoftwareBreakpointsDropsSessionBookkeeping(t *testing.T) {
	sub := &fakeSubProtocol{responses: []edbg.AvrResponseFrame{okResponse(), okResponse()}}
	d := newDriverForTest(sub)
	require.NoError(t, d.SetSoftwareBreakpoint(0x1000))

	err := d.ClearAllSoftwareBreakpoints()
	require.NoError(t, err)
	assert.Empty(t, d.softwareBreakpoints)
}

func TestSetHardwareBreakpointAllocatesLowestFreeSlot(t *testing.T) {
	sub := &fakeSubProtocol{responses: []edbg.AvrResponseFrame{okResponse(), okResponse()}}
	d := newDriverForTest(sub)
	d.SetHardwareBreakpointCapacity(2)

	require.NoError(t, d.SetHardwareBreakpoint(0x2000))
	assert.Equal(t, 1, d.hardwareBreakpoints[0x2000])

	require.NoError(t, d.SetHardwareBreakpoint(0x3000))
	assert.Equal(t, 2, d.hardwareBreakpoints[0x3000])
}

func TestSetHardwareBreakpointFailsWhenCapacityExhausted(t *testing.T) {
	sub := &fakeSubProtocol{responses: []edbg.AvrResponseFrame{okResponse()}}
	d := newDriverForTest(sub)
	d.SetHardwareBreakpointCapacity(1)
	require.NoError(t, d.SetHardwareBreakpoint(0x1000))

	err := d.SetHardwareBreakpoint(0x2000)
	require.Error(t, err)
	assert.Equal(t, toolerrors.KindOutOfHardwareBreakpoints, toolerrors.KindOf(err))
}

func TestClearHardwareBreakpointFreesSlotForReuse(t *testing.T) {
	sub := &fakeSubProtocol{responses: []edbg.AvrResponseFrame{okResponse(), okResponse(), okResponse()}}
	d := newDriverForTest(sub)
	d.SetHardwareBreakpointCapacity(1)
	require.NoError(t, d.SetHardwareBreakpoint(0x1000))
	require.NoError(t, d.ClearHardwareBreakpoint(0x1000))

	require.NoError(t, d.SetHardwareBreakpoint(0x2000))
	assert.Equal(t, 1, d.hardwareBreakpoints[0x2000], "freed slot 1 should be reused")
}

func TestClearHardwareBreakpointErrorsWhenNoneSetAtAddress(t *testing.T) {
	d := newDriverForTest(&fakeSubProtocol{})

	err := d.ClearHardwareBreakpoint(0x9999)
	require.Error(t, err)
	assert.Equal(t, toolerrors.KindProtocolError, toolerrors.KindOf(err))
}

func TestSetSoftwareBreakpointRejectedWhileRunning(t *testing.T) {
	sub := &fakeSubProtocol{}
	d := newDriverForTest(sub)
	d.state = StateRunning

	err := d.SetSoftwareBreakpoint(0x1000)
	require.Error(t, err)
	assert.Equal(t, toolerrors.KindProtocolError, toolerrors.KindOf(err))
	assert.Empty(t, sub.sentPayloads, "no command should be issued once rejected by the state check")
}

func TestSetSoftwareBreakpointRejectedInProgrammingMode(t *testing.T) {
	sub := &fakeSubProtocol{}
	d := newDriverForTest(sub)
	d.state = StateProgrammingMode

	err := d.SetSoftwareBreakpoint(0x1000)
	require.Error(t, err)
	assert.Equal(t, toolerrors.KindProtocolError, toolerrors.KindOf(err))
	assert.Empty(t, sub.sentPayloads)
}

func TestAddressBytesLittleEndian(t *testing.T) {
	b := addressBytes(target.MemoryAddress(0x01020304))
	assert.Equal(t, []byte{0x04, 0x03, 0x02, 0x01}, b)
}
