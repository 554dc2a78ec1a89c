// Package avr8 implements C4, the AVR8-Generic EDBG driver: activation,
// execution control, memory access, breakpoints, event polling and
// programming-mode transitions, riding the HandlerAVR8Generic sub-protocol
// of internal/edbg. Grounded on original_source's
// DebugToolDrivers/Microchip/Protocols/Edbg/Avr/EdbgAvr8Interface.hpp and
// Avr8Generic.hpp.
package avr8

import "debugtool/internal/target"

// ConfigVariant selects which AVR8-Generic parameter set the debug tool
// expects, derived from (family, physical interface) (spec §4.4).
type ConfigVariant byte

const (
	ConfigVariantLoopback  ConfigVariant = 0x00
	ConfigVariantDebugWire ConfigVariant = 0x01
	ConfigVariantMegaJTAG  ConfigVariant = 0x02
	ConfigVariantXMEGA     ConfigVariant = 0x03
	ConfigVariantUPDI      ConfigVariant = 0x05
	ConfigVariantNone      ConfigVariant = 0xFF
)

// ConfigFunction selects whether the AVR8-Generic protocol is configured
// for programming or debugging (spec §4.4).
type ConfigFunction byte

const (
	ConfigFunctionNone        ConfigFunction = 0x00
	ConfigFunctionProgramming ConfigFunction = 0x01
	ConfigFunctionDebugging   ConfigFunction = 0x02
)

// PhysicalInterface is the AVR8-Generic wire-level physical interface code
// (distinct from toolconfig.PhysicalInterface, which is the user-facing
// selector; this is what gets pushed to the tool as a parameter value).
type PhysicalInterface byte

const (
	PhysicalInterfaceNone      PhysicalInterface = 0x00
	PhysicalInterfaceJTAG     PhysicalInterface = 0x04
	PhysicalInterfaceDebugWire PhysicalInterface = 0x05
	PhysicalInterfacePDI      PhysicalInterface = 0x06
	PhysicalInterfacePDI1W    PhysicalInterface = 0x08
)

// MemoryType is the AVR8-Generic protocol memory-type code (spec §4.4 rule
// 1).
type MemoryType byte

const (
	MemoryTypeSRAM             MemoryType = 0x20
	MemoryTypeEEPROM           MemoryType = 0x22
	MemoryTypeEEPROMAtomic     MemoryType = 0xC4
	MemoryTypeEEPROMPage       MemoryType = 0xB1
	MemoryTypeFlashPage        MemoryType = 0xB0
	MemoryTypeApplFlash        MemoryType = 0xC0
	MemoryTypeBootFlash        MemoryType = 0xC1
	MemoryTypeApplFlashAtomic  MemoryType = 0xC2
	MemoryTypeSPM              MemoryType = 0xA0
	MemoryTypeRegisterFile     MemoryType = 0xB8
	MemoryTypeFuses            MemoryType = 0xB2
)

// ResponseID mirrors edbg.ResponseID, scoped to the AVR8-Generic handler
// (spec §4.3/§6).
type ResponseID byte

const (
	ResponseOK     ResponseID = 0x80
	ResponseData   ResponseID = 0x84
	ResponseFailed ResponseID = 0xA0
)

// EraseMode selects the scope of an erase-program-memory command (spec
// §4.4 "Chip erase / programming mode").
type EraseMode byte

const (
	EraseChip                EraseMode = 0x00
	EraseApplicationSection  EraseMode = 0x01
	EraseBootSection         EraseMode = 0x02
	EraseEEPROM              EraseMode = 0x03
)

// ParameterID is a (context, id) pair identifying one AVR8-Generic
// SET_PARAMETER/GET_PARAMETER target, grounded on Avr8Generic.hpp's
// Avr8EdbgParameters table.
type ParameterID struct {
	Context byte
	ID      byte
}

var (
	ParamConfigVariant   = ParameterID{0x00, 0x00}
	ParamConfigFunction  = ParameterID{0x00, 0x01}
	ParamPhysicalInterface = ParameterID{0x01, 0x00}
	ParamDWClockDivision = ParameterID{0x01, 0x10}
	ParamPDIClockSpeed   = ParameterID{0x01, 0x31}
	ParamMegaDebugClock  = ParameterID{0x01, 0x21}

	ParamDeviceBootStartAddr  = ParameterID{0x02, 0x0A}
	ParamDeviceFlashBase      = ParameterID{0x02, 0x06}
	ParamDeviceSRAMStart      = ParameterID{0x02, 0x0E}
	ParamDeviceEEPROMSize     = ParameterID{0x02, 0x10}
	ParamDeviceEEPROMPageSize = ParameterID{0x02, 0x12}
	ParamDeviceFlashPageSize  = ParameterID{0x02, 0x00}
	ParamDeviceFlashSize      = ParameterID{0x02, 0x02}
	ParamDeviceOCDRevision    = ParameterID{0x02, 0x13}

	ParamXMEGAApplBaseAddr  = ParameterID{0x02, 0x00}
	ParamXMEGABootBaseAddr  = ParameterID{0x02, 0x04}
	ParamXMEGAEEPROMBase    = ParameterID{0x02, 0x08}
	ParamXMEGAFuseBaseAddr  = ParameterID{0x02, 0x0C}
	ParamXMEGANVMBase       = ParameterID{0x02, 0x2B}

	ParamUPDIProgmemBaseAddr = ParameterID{0x02, 0x00}
	ParamUPDIFlashPageSize   = ParameterID{0x02, 0x02}
	ParamUPDIEEPROMPageSize  = ParameterID{0x02, 0x03}
	ParamUPDINVMCtrlAddr     = ParameterID{0x02, 0x04}
	ParamUPDIOCDAddr         = ParameterID{0x02, 0x06}

	ParamRunTimersWhilstStopped = ParameterID{0x03, 0x00}
)

// Family is the abstract AVR8 target family, used with PhysicalInterface to
// resolve a ConfigVariant (spec §4.4).
type Family int

const (
	FamilyUnknown Family = iota
	FamilyMegaAVR
	FamilyTinyAVR
	FamilyXMEGA
	FamilyUPDI
)

// TargetParameters holds the per-variant parameter values derived from
// target-description data (spec §4.4: "Per-variant parameter block").
// Unused fields for a given variant are simply left zero.
type TargetParameters struct {
	FlashPageSize   uint16
	FlashSize       uint32
	FlashBase       target.MemoryAddress
	BootStartAddr   target.MemoryAddress
	SRAMStartAddr   target.MemoryAddress
	EEPROMSize      uint16
	EEPROMPageSize  uint16
	OCDRevision     byte

	// XMEGA/UPDI NVM controller + fuse/signature base addresses.
	NVMBaseAddr   target.MemoryAddress
	FuseBaseAddr  target.MemoryAddress
	OCDAddr       target.MemoryAddress
}

// resolveConfigVariant maps (family, physicalInterface) to a ConfigVariant,
// per the lookup table referenced (but not enumerated) by spec §4.4 and
// EdbgAvr8Interface.hpp's getConfigVariantsByFamilyAndPhysicalInterface().
func resolveConfigVariant(family Family, physicalInterface PhysicalInterface) ConfigVariant {
	switch physicalInterface {
	case PhysicalInterfaceDebugWire:
		return ConfigVariantDebugWire
	case PhysicalInterfaceJTAG:
		return ConfigVariantMegaJTAG
	case PhysicalInterfacePDI, PhysicalInterfacePDI1W:
		if family == FamilyUPDI {
			return ConfigVariantUPDI
		}
		return ConfigVariantXMEGA
	default:
		return ConfigVariantNone
	}
}
