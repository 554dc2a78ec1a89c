// Package target holds the session-scope and packet-scope value types shared
// across the driver stack: memory addresses/sizes/buffers, register
// descriptors, breakpoint types, pad/pin state, and the passthrough
// command/response escape hatch (spec §3, C9).
package target

import "fmt"

// MemoryAddress is a byte address on the target. Word-address translation,
// where a variant needs it, is the concern of the component issuing the
// command (spec §3 invariant 4) - this type is always byte-addressed.
type MemoryAddress uint32

// MemorySize is a byte count.
type MemorySize uint32

// MemoryBuffer is a buffer of target memory bytes.
type MemoryBuffer []byte

// MemoryType is an abstract memory type, independent of any wire-level
// protocol encoding. Drivers map this onto their own protocol-specific
// memory-type codes (e.g. AVR8 0x20/0x22/0xB0/...).
type MemoryType int

const (
	MemoryTypeSRAM MemoryType = iota
	MemoryTypeEEPROM
	MemoryTypeFlash
	MemoryTypeFuses
	MemoryTypeLockBits
	MemoryTypeRegisterFile
	MemoryTypeSignature
)

func (t MemoryType) String() string {
	switch t {
	case MemoryTypeSRAM:
		return "SRAM"
	case MemoryTypeEEPROM:
		return "EEPROM"
	case MemoryTypeFlash:
		return "Flash"
	case MemoryTypeFuses:
		return "Fuses"
	case MemoryTypeLockBits:
		return "LockBits"
	case MemoryTypeRegisterFile:
		return "RegisterFile"
	case MemoryTypeSignature:
		return "Signature"
	default:
		return "Unknown"
	}
}

// AddressRange is an inclusive [Start, End] byte address range, used to
// describe gaps a caller wants excluded from a read (spec §4.4 rule 4).
type AddressRange struct {
	Start MemoryAddress
	End   MemoryAddress
}

// Contains reports whether addr falls within the inclusive range.
func (r AddressRange) Contains(addr MemoryAddress) bool {
	return addr >= r.Start && addr <= r.End
}

// RegisterDescriptor names one target register for read/write access.
type RegisterDescriptor struct {
	Name    string
	Address MemoryAddress
	Size    MemorySize
}

// Register pairs a descriptor with a value read from, or to be written to,
// the target.
type Register struct {
	Descriptor RegisterDescriptor
	Value      MemoryBuffer
}

// ProgramCounter is the target's byte-addressed program counter.
type ProgramCounter uint32

// Signature is the 3-byte AVR device signature (spec E2).
type Signature struct {
	Byte0, Byte1, Byte2 byte
}

func (s Signature) String() string {
	return fmt.Sprintf("0x%02X%02X%02X", s.Byte0, s.Byte1, s.Byte2)
}

// BreakpointType distinguishes software from hardware breakpoints.
type BreakpointType int

const (
	BreakpointSoftware BreakpointType = iota
	BreakpointHardware
)

// PinDirection describes the direction of a GPIO pad/pin (spec §4.6 supplement).
type PinDirection int

const (
	PinDirectionInput PinDirection = iota
	PinDirectionOutput
)

// PinState describes the state of a single target pin.
type PinState struct {
	Direction PinDirection
	High      bool
}

// PadState describes the state of a physical pad, which may multiplex
// several pins (spec §4.6 supplement, grounded on Insight's GPIO pad tasks).
type PadState struct {
	Name string
	Pins []PinState
}

// PassthroughCommand is the typed escape hatch for issuing a raw protocol
// command that doesn't warrant a dedicated method (spec §3, §4.7 supplement).
type PassthroughCommand struct {
	// Handler identifies the sub-protocol handler the command targets
	// (interpretation is driver-specific: an EDBG handler ID for AVR8
	// tools, an opcode for WCH-Link tools).
	Handler byte
	Payload []byte
}

// PassthroughResponse is the raw response to a PassthroughCommand.
type PassthroughResponse struct {
	Payload []byte
}
