package avr8

import (
	"debugtool/internal/edbg"
	"debugtool/internal/target"
)

// eesaveFuseAddress is the byte offset within FUSES memory of the EESAVE
// bit's containing fuse byte. This varies by device in reality (it's
// typically the high fuse byte); modelled here as a single configurable
// offset since the exact per-device fuse map is target-description data
// (out of scope per spec §1).
const eesaveFuseAddress target.MemoryAddress = 0x01

// eesaveBitMask is the bit position of EESAVE within its fuse byte (most
// ATmega/ATtiny parts: bit 3 of the high fuse byte).
const eesaveBitMask byte = 0x08

// EraseProgramMemory issues an Erase command with the given scope. If
// PreserveEeprom is configured, EESAVE is set in fuses before a chip erase;
// fuse restore is not needed afterwards since fuses persist across erase
// (spec §4.4 "Chip erase / programming mode").
func (d *Driver) EraseProgramMemory(mode EraseMode) error {
	if d.config.PreserveEeprom && mode == EraseChip {
		if err := d.setEESAVEFuse(); err != nil {
			return err
		}
	}

	resp, err := d.sub.Exec(edbg.HandlerAVR8Generic, buildCommand(cmdErase, byte(mode)))
	if err != nil {
		return err
	}
	if err := requireOK(resp, "AVR8-Generic ERASE"); err != nil {
		return err
	}

	return d.waitForBreakEvent()
}

// setEESAVEFuse performs a read-modify-write of the fuse byte containing
// EESAVE, setting the bit so a chip erase doesn't clear EEPROM.
func (d *Driver) setEESAVEFuse() error {
	current, err := d.readMemoryRaw(MemoryTypeFuses, eesaveFuseAddress, 1)
	if err != nil {
		return err
	}
	updated := current[0] | eesaveBitMask
	return d.writeMemoryRaw(MemoryTypeFuses, eesaveFuseAddress, []byte{updated})
}

// ReadPadStates reads a GPIO pad's pin states via memory-mapped I/O
// register access, using the same SRAM-access path as ordinary memory
// reads (SPEC_FULL.md §4.6, grounded on Insight's
// ReadTargetGpioPadStates task).
func (d *Driver) ReadPadStates(pad target.PadState, registerAddress target.MemoryAddress) (target.PadState, error) {
	data, err := d.ReadMemory(MemoryTypeSRAM, registerAddress, 1, nil)
	if err != nil {
		return target.PadState{}, err
	}

	value := data[0]
	pins := make([]target.PinState, len(pad.Pins))
	for i := range pad.Pins {
		bit := byte(1) << uint(i)
		pins[i] = target.PinState{
			Direction: pad.Pins[i].Direction,
			High:      value&bit != 0,
		}
	}

	return target.PadState{Name: pad.Name, Pins: pins}, nil
}

// SetPinState writes a single GPIO pin's level via a read-modify-write on
// the pad's port register (SPEC_FULL.md §4.6, grounded on Insight's
// SetTargetPinState task).
func (d *Driver) SetPinState(registerAddress target.MemoryAddress, pinIndex int, high bool) error {
	data, err := d.ReadMemory(MemoryTypeSRAM, registerAddress, 1, nil)
	if err != nil {
		return err
	}

	bit := byte(1) << uint(pinIndex)
	value := data[0]
	if high {
		value |= bit
	} else {
		value &^= bit
	}

	return d.WriteMemory(MemoryTypeSRAM, registerAddress, []byte{value})
}

// Passthrough issues a raw AvrCommandFrame payload against the
// AVR8-Generic handler without a dedicated method (SPEC_FULL.md §4.7).
func (d *Driver) Passthrough(cmd target.PassthroughCommand) (target.PassthroughResponse, error) {
	resp, err := d.sub.Exec(edbg.ProtocolHandlerID(cmd.Handler), cmd.Payload)
	if err != nil {
		return target.PassthroughResponse{}, err
	}
	return target.PassthroughResponse{Payload: resp.Payload}, nil
}
