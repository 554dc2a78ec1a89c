package tool

import (
	"debugtool/internal/avr8"
	"debugtool/internal/avrisp"
	"debugtool/internal/riscv"
	"debugtool/internal/target"
	"debugtool/internal/wchlink"
)

// PowerManagement is returned by power_management() for tools whose
// identity record sets SupportsTargetPower (spec §4.8, §4.6).
type PowerManagement interface {
	EnableTargetPower() error
	DisableTargetPower() error
}

// Avr8Debug is returned by avr8_debug() for EDBG tools talking to an AVR8
// target (spec §4.8, §4.4). *avr8.Driver satisfies it.
type Avr8Debug interface {
	Activate() error
	Deactivate() error
	State() avr8.ExecutionState
	DeviceID() (target.Signature, error)
	ReadMemory(memType avr8.MemoryType, start target.MemoryAddress, size target.MemorySize, excludedRanges []target.AddressRange) ([]byte, error)
	WriteMemory(memType avr8.MemoryType, start target.MemoryAddress, buf []byte) error
	Stop() error
	Run() error
	Step() error
	SetSoftwareBreakpoint(address target.MemoryAddress) error
	ClearSoftwareBreakpoint(address target.MemoryAddress) error
	EraseProgramMemory(mode avr8.EraseMode) error
	Passthrough(cmd target.PassthroughCommand) (target.PassthroughResponse, error)
}

// AvrISP is returned by avr_isp() for tools with an ISP path, when the
// caller requests it (spec §4.8, §4.5). *avrisp.Driver satisfies it.
type AvrISP interface {
	Activate() error
	Deactivate() error
	ReadSignature() (target.Signature, error)
	ReadFuse(fuseType avrisp.FuseType) (byte, error)
	ReadLockBits() (byte, error)
	ProgramFuse(fuseType avrisp.FuseType, value byte) error
}

// RiscVDebug is returned by riscv_debug() for WCH-Link variants (spec
// §4.8, §4.7). *wchlink.Driver satisfies it; embedding riscv.DebugModule
// is what a generic RISC-V Debug-Module translator actually drives.
type RiscVDebug interface {
	riscv.DebugModule

	Activate() error
	Deactivate() error
	SetClockSpeed(speed wchlink.ClockSpeed) error
	WriteFlashFullBlock(start target.MemoryAddress, buffer []byte, blockSize int, stub wchlink.FlashStub) error
	WriteFlashPartialBlock(start target.MemoryAddress, buffer []byte) error
	EraseProgramMemory() error
	Passthrough(cmd target.PassthroughCommand) (target.PassthroughResponse, error)
}

var (
	_ Avr8Debug  = (*avr8.Driver)(nil)
	_ AvrISP     = (*avrisp.Driver)(nil)
	_ RiscVDebug = (*wchlink.Driver)(nil)
)
