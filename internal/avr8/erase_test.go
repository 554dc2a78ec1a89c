package avr8

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"debugtool/internal/edbg"
)

func TestEraseProgramMemorySetsEesaveFuseWhenPreservingEeprom(t *testing.T) {
	sub := &fakeSubProtocol{
		responses: []edbg.AvrResponseFrame{
			{Payload: []byte{byte(edbg.ResponseOK), 0x00}}, // fuse read
			okResponse(),                                   // fuse write
			okResponse(),                                   // ERASE
		},
		events: []*edbg.AvrEvent{{EventID: 0x40}},
	}
	d := newDriverForTest(sub)
	d.config.PreserveEeprom = true

	err := d.EraseProgramMemory(EraseChip)
	require.NoError(t, err)
	require.Len(t, sub.sentPayloads, 3)

	fuseWritePayload := sub.sentPayloads[1]
	assert.Equal(t, cmdWriteMemory, fuseWritePayload[0])
	assert.Equal(t, byte(eesaveBitMask), fuseWritePayload[len(fuseWritePayload)-1], "fuse byte 0x00 with EESAVE set should just be the mask itself")
}

func TestEraseProgramMemorySkipsFuseWriteForNonChipErase(t *testing.T) {
	sub := &fakeSubProtocol{
		responses: []edbg.AvrResponseFrame{okResponse()},
		events:    []*edbg.AvrEvent{{EventID: 0x40}},
	}
	d := newDriverForTest(sub)
	d.config.PreserveEeprom = true

	err := d.EraseProgramMemory(EraseApplicationSection)
	require.NoError(t, err)
	require.Len(t, sub.sentPayloads, 1)
	assert.Equal(t, cmdErase, sub.sentPayloads[0][0])
}
