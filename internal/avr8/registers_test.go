package avr8

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"debugtool/internal/edbg"
	"debugtool/internal/target"
)

func TestProgramCounterParsesLittleEndian(t *testing.T) {
	sub := &fakeSubProtocol{
		responses: []edbg.AvrResponseFrame{
			{Payload: []byte{byte(edbg.ResponseOK), 0x04, 0x03, 0x02, 0x01}},
		},
	}
	d := newDriverForTest(sub)

	pc, err := d.ProgramCounter()
	require.NoError(t, err)
	assert.Equal(t, target.ProgramCounter(0x01020304), pc)
}

func TestDeviceIDParsesThreeByteSignature(t *testing.T) {
	sub := &fakeSubProtocol{
		responses: []edbg.AvrResponseFrame{
			{Payload: []byte{byte(edbg.ResponseOK), 0x1E, 0x95, 0x0F}},
		},
	}
	d := newDriverForTest(sub)

	sig, err := d.DeviceID()
	require.NoError(t, err)
	assert.Equal(t, target.Signature{Byte0: 0x1E, Byte1: 0x95, Byte2: 0x0F}, sig)
}

func TestRegisterMemoryTypeRoutesByConfigVariant(t *testing.T) {
	d := newDriverForTest(&fakeSubProtocol{})

	d.configVariant = ConfigVariantMegaJTAG
	assert.Equal(t, MemoryTypeSRAM, d.registerMemoryType())

	d.configVariant = ConfigVariantUPDI
	assert.Equal(t, MemoryTypeRegisterFile, d.registerMemoryType())

	d.configVariant = ConfigVariantXMEGA
	assert.Equal(t, MemoryTypeRegisterFile, d.registerMemoryType())
}

func TestReadRegistersReadsEachDescriptor(t *testing.T) {
	sub := &fakeSubProtocol{
		responses: []edbg.AvrResponseFrame{
			{Payload: []byte{byte(edbg.ResponseOK), 0xAA}},
			{Payload: []byte{byte(edbg.ResponseOK), 0xBB}},
		},
	}
	d := newDriverForTest(sub)

	regs, err := d.ReadRegisters([]target.RegisterDescriptor{
		{Name: "r0", Address: 0x00, Size: 1},
		{Name: "r1", Address: 0x01, Size: 1},
	})
	require.NoError(t, err)
	require.Len(t, regs, 2)
	assert.Equal(t, target.MemoryBuffer{0xAA}, regs[0].Value)
	assert.Equal(t, target.MemoryBuffer{0xBB}, regs[1].Value)
}
