package wchlink

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"debugtool/internal/target"
)

func TestWriteFlashFullBlockUploadsStubThenStreamsAlignedBlocks(t *testing.T) {
	framer := &fakeFramer{responses: []Response{{ID: cmdWriteFlashFullBlock}}}
	d := NewDriver(framer)

	buffer := make([]byte, 128)
	for i := range buffer {
		buffer[i] = byte(i)
	}
	stub := FlashStub{Opcodes: []byte{0xAA, 0xBB}}

	require.NoError(t, d.WriteFlashFullBlock(target.MemoryAddress(0x0000), buffer, 64, stub))

	require.Len(t, framer.sentCommands, 1)
	assert.Equal(t, cmdWriteFlashFullBlock, framer.sentCommands[0].ID)
	assert.Equal(t, []byte{0x00, 0x00, 0x00, 0x00, 0xAA, 0xBB}, framer.sentCommands[0].Payload)

	require.Len(t, framer.dataBlocks, 2)
	assert.Equal(t, buffer[0:64], framer.dataBlocks[0])
	assert.Equal(t, buffer[64:128], framer.dataBlocks[1])
}

func TestWriteFlashFullBlockRejectsUnalignedStart(t *testing.T) {
	d := NewDriver(&fakeFramer{})
	err := d.WriteFlashFullBlock(target.MemoryAddress(0x0001), make([]byte, 64), 64, FlashStub{})
	require.Error(t, err)
}

func TestWriteFlashFullBlockRejectsBufferShorterThanBlockSize(t *testing.T) {
	d := NewDriver(&fakeFramer{})
	err := d.WriteFlashFullBlock(target.MemoryAddress(0x0000), make([]byte, 32), 64, FlashStub{})
	require.Error(t, err)
}

func TestWriteFlashPartialBlockSendsAddressAndTail(t *testing.T) {
	framer := &fakeFramer{responses: []Response{{ID: cmdWriteFlashPartialBlock}}}
	d := NewDriver(framer)

	require.NoError(t, d.WriteFlashPartialBlock(target.MemoryAddress(0x0100), []byte{0x01, 0x02, 0x03}))

	sent := framer.sentCommands[0]
	assert.Equal(t, cmdWriteFlashPartialBlock, sent.ID)
	assert.Equal(t, []byte{0x00, 0x01, 0x00, 0x00, 0x01, 0x02, 0x03}, sent.Payload)
}

func TestWriteFlashPartialBlockRejectsOversizedBuffer(t *testing.T) {
	d := NewDriver(&fakeFramer{})
	err := d.WriteFlashPartialBlock(target.MemoryAddress(0x0000), make([]byte, maxPartialFlashBlock+1))
	require.Error(t, err)
}

func TestEraseProgramMemorySendsEraseCommand(t *testing.T) {
	framer := &fakeFramer{responses: []Response{{ID: cmdEraseProgramMemory}}}
	d := NewDriver(framer)

	require.NoError(t, d.EraseProgramMemory())
	assert.Equal(t, cmdEraseProgramMemory, framer.sentCommands[0].ID)
}
