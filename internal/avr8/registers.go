package avr8

import (
	"debugtool/internal/edbg"
	"debugtool/internal/target"
	"debugtool/internal/toolerrors"
)

// ProgramCounter issues the "PC Read" command (SPEC_FULL.md §4.3).
func (d *Driver) ProgramCounter() (target.ProgramCounter, error) {
	resp, err := d.sub.Exec(edbg.HandlerAVR8Generic, buildCommand(cmdReadPC))
	if err != nil {
		return 0, err
	}
	if err := requireOK(resp, "AVR8-Generic PC_READ"); err != nil {
		return 0, err
	}
	data := resp.Data()
	if len(data) < 4 {
		return 0, toolerrors.New(toolerrors.KindDeviceCommunicationFailure, "PC_READ response too short")
	}
	pc := uint32(data[0]) | uint32(data[1])<<8 | uint32(data[2])<<16 | uint32(data[3])<<24
	return target.ProgramCounter(pc), nil
}

// SetProgramCounter issues the "PC Write" command (SPEC_FULL.md §4.3).
func (d *Driver) SetProgramCounter(pc target.ProgramCounter) error {
	value := uint32(pc)
	resp, err := d.sub.Exec(edbg.HandlerAVR8Generic, buildCommand(
		cmdWritePC, byte(value), byte(value>>8), byte(value>>16), byte(value>>24),
	))
	if err != nil {
		return err
	}
	return requireOK(resp, "AVR8-Generic PC_WRITE")
}

// DeviceID issues the "Get ID" command to extract the 3-byte device
// signature. On debugWIRE, the response carries a leading pad byte ahead
// of the 3 signature bytes (spec E2).
func (d *Driver) DeviceID() (target.Signature, error) {
	resp, err := d.sub.Exec(edbg.HandlerAVR8Generic, buildCommand(cmdGetID))
	if err != nil {
		return target.Signature{}, err
	}
	if err := requireOK(resp, "AVR8-Generic GET_ID"); err != nil {
		return target.Signature{}, err
	}
	data := resp.Data()

	if d.configVariant == ConfigVariantDebugWire {
		if len(data) < 4 {
			return target.Signature{}, toolerrors.New(toolerrors.KindDeviceCommunicationFailure, "GET_ID response too short for debugWIRE pad byte")
		}
		data = data[1:]
	}

	if len(data) < 3 {
		return target.Signature{}, toolerrors.New(toolerrors.KindDeviceCommunicationFailure, "GET_ID response too short")
	}
	return target.Signature{Byte0: data[0], Byte1: data[1], Byte2: data[2]}, nil
}

// ReadRegisters reads a set of general-purpose registers. For
// XMEGA/UPDI, registers are addressed via MemoryTypeRegisterFile; for
// other variants, via SRAM at the register-file base (spec §4.4 rule 6).
// The public API hides this distinction from the caller.
func (d *Driver) ReadRegisters(descriptors []target.RegisterDescriptor) ([]target.Register, error) {
	registers := make([]target.Register, 0, len(descriptors))
	for _, desc := range descriptors {
		buf, err := d.ReadMemory(d.registerMemoryType(), desc.Address, target.MemorySize(desc.Size), nil)
		if err != nil {
			return nil, err
		}
		registers = append(registers, target.Register{Descriptor: desc, Value: buf})
	}
	return registers, nil
}

// WriteRegisters writes a set of general-purpose registers, using the same
// memory-type routing rule as ReadRegisters.
func (d *Driver) WriteRegisters(registers []target.Register) error {
	for _, reg := range registers {
		if err := d.WriteMemory(d.registerMemoryType(), reg.Descriptor.Address, reg.Value); err != nil {
			return err
		}
	}
	return nil
}

// registerMemoryType resolves the memory type used for general-purpose
// register access under the active config variant (spec §4.4 rule 6).
func (d *Driver) registerMemoryType() MemoryType {
	if d.configVariant == ConfigVariantXMEGA || d.configVariant == ConfigVariantUPDI {
		return MemoryTypeRegisterFile
	}
	return MemoryTypeSRAM
}
