package wchlink

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"debugtool/internal/target"
)

type fakeFramer struct {
	responses []Response
	errs      []error

	sentCommands []Command
	dataBlocks   [][]byte
}

func (f *fakeFramer) SendCommand(cmd Command) (Response, error) {
	f.sentCommands = append(f.sentCommands, cmd)

	var resp Response
	if len(f.responses) > 0 {
		resp = f.responses[0]
		f.responses = f.responses[1:]
	}
	var err error
	if len(f.errs) > 0 {
		err = f.errs[0]
		f.errs = f.errs[1:]
	}
	return resp, err
}

func (f *fakeFramer) SendDataBlock(buf []byte) error {
	cp := make([]byte, len(buf))
	copy(cp, buf)
	f.dataBlocks = append(f.dataBlocks, cp)
	return nil
}

func TestGetDeviceInfoParsesFirmwareVersionAndVariant(t *testing.T) {
	framer := &fakeFramer{responses: []Response{{ID: cmdGetDeviceInfo, Payload: []byte{0x02, 0x09, 0x02, 0x00}}}}
	d := NewDriver(framer)

	info, err := d.GetDeviceInfo()
	require.NoError(t, err)
	assert.Equal(t, FirmwareVersion{Major: 2, Minor: 9}, info.FirmwareVersion)
	assert.Equal(t, VariantLinkECH32V307, info.Variant)
}

func TestCheckFirmwareVersionFlagsBelowMinimum(t *testing.T) {
	framer := &fakeFramer{responses: []Response{{ID: cmdGetDeviceInfo, Payload: []byte{0x02, 0x05, 0x01}}}}
	d := NewDriver(framer)

	_, err := d.GetDeviceInfo()
	require.NoError(t, err)

	version, belowMinimum := d.CheckFirmwareVersion()
	assert.Equal(t, FirmwareVersion{Major: 2, Minor: 5}, version)
	assert.True(t, belowMinimum)
}

func TestCheckFirmwareVersionAcceptsAtOrAboveMinimum(t *testing.T) {
	framer := &fakeFramer{responses: []Response{{ID: cmdGetDeviceInfo, Payload: []byte{0x02, 0x09, 0x01}}}}
	d := NewDriver(framer)

	_, err := d.GetDeviceInfo()
	require.NoError(t, err)

	_, belowMinimum := d.CheckFirmwareVersion()
	assert.False(t, belowMinimum)
}

func TestActivateCachesGroupIdAndTargetId(t *testing.T) {
	framer := &fakeFramer{responses: []Response{{ID: cmdActivate, Payload: []byte{0x07, 0xDE, 0xAD, 0xBE, 0xEF}}}}
	d := NewDriver(framer)

	require.NoError(t, d.Activate())
	assert.True(t, d.active)
	assert.Equal(t, byte(0x07), d.cachedGroupID)
	assert.Equal(t, [4]byte{0xDE, 0xAD, 0xBE, 0xEF}, d.cachedTargetID)
}

func TestSetClockSpeedRequiresPriorActivate(t *testing.T) {
	d := NewDriver(&fakeFramer{})

	err := d.SetClockSpeed(ClockSpeedHigh)
	require.Error(t, err)
}

func TestSetClockSpeedSendsCachedIdsAndSpeed(t *testing.T) {
	framer := &fakeFramer{responses: []Response{
		{ID: cmdActivate, Payload: []byte{0x07, 0xDE, 0xAD, 0xBE, 0xEF}},
		{ID: cmdSetClockSpeed},
	}}
	d := NewDriver(framer)
	require.NoError(t, d.Activate())

	require.NoError(t, d.SetClockSpeed(ClockSpeedHigh))

	sent := framer.sentCommands[len(framer.sentCommands)-1]
	assert.Equal(t, cmdSetClockSpeed, sent.ID)
	assert.Equal(t, []byte{0x07, 0xDE, 0xAD, 0xBE, 0xEF, byte(ClockSpeedHigh)}, sent.Payload)
}

func TestDeactivateClearsActiveFlag(t *testing.T) {
	framer := &fakeFramer{responses: []Response{
		{ID: cmdActivate, Payload: []byte{0x00, 0x00, 0x00, 0x00, 0x01}},
		{ID: cmdDeactivate},
	}}
	d := NewDriver(framer)
	require.NoError(t, d.Activate())
	require.NoError(t, d.Deactivate())
	assert.False(t, d.active)
}

func TestPassthroughForwardsHandlerAndPayload(t *testing.T) {
	framer := &fakeFramer{responses: []Response{{ID: 0x2A, Payload: []byte{0x01, 0x02}}}}
	d := NewDriver(framer)

	resp, err := d.Passthrough(target.PassthroughCommand{Handler: 0x2A, Payload: []byte{0x55}})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x02}, resp.Payload)
	assert.Equal(t, byte(0x2A), framer.sentCommands[0].ID)
	assert.Equal(t, []byte{0x55}, framer.sentCommands[0].Payload)
}
