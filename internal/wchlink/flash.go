package wchlink

import (
	"debugtool/internal/target"
	"debugtool/internal/toolerrors"
)

// FlashStub carries the family-specific program-counter-agnostic code stub
// uploaded ahead of a full-block flash write (spec §4.7: "uploads a small
// program-counter-agnostic code stub (family-specific opcodes)").
type FlashStub struct {
	Opcodes []byte
}

// WriteFlashFullBlock uploads the stub, then streams block-size-aligned
// data over the data endpoint. Used when len(buffer) >= blockSize and start
// is block-aligned (spec §4.7).
func (d *Driver) WriteFlashFullBlock(start target.MemoryAddress, buffer []byte, blockSize int, stub FlashStub) error {
	if blockSize <= 0 {
		return toolerrors.New(toolerrors.KindInvalidConfig, "blockSize must be positive")
	}
	if len(buffer) < blockSize {
		return toolerrors.Newf(toolerrors.KindInvalidConfig, "buffer shorter than blockSize: %d < %d", len(buffer), blockSize)
	}
	if int(start)%blockSize != 0 {
		return toolerrors.Newf(toolerrors.KindInvalidConfig, "start address 0x%x is not aligned to block size %d", start, blockSize)
	}

	stubPayload := make([]byte, 0, 4+len(stub.Opcodes))
	stubPayload = append(stubPayload, byte(start), byte(start>>8), byte(start>>16), byte(start>>24))
	stubPayload = append(stubPayload, stub.Opcodes...)
	if _, err := d.framer.SendCommand(Command{ID: cmdWriteFlashFullBlock, Payload: stubPayload}); err != nil {
		return err
	}

	for offset := 0; offset+blockSize <= len(buffer); offset += blockSize {
		if err := d.framer.SendDataBlock(buffer[offset : offset+blockSize]); err != nil {
			return err
		}
	}
	return nil
}

// WriteFlashPartialBlock writes the unaligned tail (up to 64 bytes) via the
// command endpoint rather than the bulk data path (spec §4.7).
func (d *Driver) WriteFlashPartialBlock(start target.MemoryAddress, buffer []byte) error {
	if len(buffer) > maxPartialFlashBlock {
		return toolerrors.Newf(toolerrors.KindInvalidConfig, "partial flash block of %d bytes exceeds the %d-byte cap", len(buffer), maxPartialFlashBlock)
	}

	payload := make([]byte, 0, 4+len(buffer))
	payload = append(payload, byte(start), byte(start>>8), byte(start>>16), byte(start>>24))
	payload = append(payload, buffer...)

	_, err := d.framer.SendCommand(Command{ID: cmdWriteFlashPartialBlock, Payload: payload})
	return err
}

// EraseProgramMemory issues a full-chip erase via the vendor path (spec
// §4.7).
func (d *Driver) EraseProgramMemory() error {
	_, err := d.framer.SendCommand(Command{ID: cmdEraseProgramMemory})
	return err
}
