package avr8

// AVR8-Generic command IDs (the first byte of an AvrCommandFrame payload
// addressed to HandlerAVR8Generic, followed by a 0x00 version byte; spec
// §4.3/§4.4). Values marked "confirmed" are taken directly from
// original_source's CommandFrames/Avr8Generic/*.hpp; values marked
// "assumed" were not present in the retrieved subset of original_source
// and are inferred from the confirmed values' sequential numbering
// (documented in DESIGN.md).
const (
	cmdSetParameter        byte = 0x01 // confirmed: SetParameter.hpp
	cmdGetParameter        byte = 0x02 // assumed: mirrors cmdSetParameter
	cmdActivatePhysical    byte = 0x10 // confirmed: ActivatePhysical.hpp
	cmdDeactivatePhysical  byte = 0x11 // confirmed: DeactivatePhysical.hpp
	cmdAttach              byte = 0x13 // assumed: fits the gap before Detach
	cmdDetach              byte = 0x14 // confirmed: Detach.hpp
	cmdEnterProgrammingMode byte = 0x15 // assumed: fits the gap before LeaveProgrammingMode
	cmdLeaveProgrammingMode byte = 0x16 // confirmed: LeaveProgrammingMode.hpp
	cmdReset               byte = 0x20 // assumed
	cmdStop                byte = 0x21 // assumed
	cmdRun                 byte = 0x22 // assumed
	cmdRunToAddress        byte = 0x23 // assumed
	cmdStep                byte = 0x24 // assumed
	cmdReadMemory          byte = 0x30 // assumed: ReadMemory.hpp exists but its .cpp (with the literal ID) wasn't retrieved
	cmdWriteMemory         byte = 0x31 // assumed
	cmdReadPC              byte = 0x35 // assumed
	cmdWritePC             byte = 0x36 // assumed
	cmdGetID               byte = 0x12 // confirmed: spec.md E2 literal command payload [0x12, 0x00]
	cmdSoftwareBPSet       byte = 0x40 // assumed
	cmdSoftwareBPClear     byte = 0x41 // assumed
	cmdSoftwareBPClearAll  byte = 0x42 // assumed
	cmdHardwareBPSet       byte = 0x43 // assumed
	cmdHardwareBPClear     byte = 0x44 // assumed
	cmdErase               byte = 0x50 // assumed
)

const avr8ProtocolVersion byte = 0x00

// buildCommand prepends the command ID and protocol version byte to args,
// matching the [commandID, version, args...] shape seen in every
// Avr8GenericCommandFrame payload (e.g. ActivatePhysical.hpp).
func buildCommand(cmdID byte, args ...byte) []byte {
	out := make([]byte, 0, 2+len(args))
	out = append(out, cmdID, avr8ProtocolVersion)
	out = append(out, args...)
	return out
}
