// Package avrisp implements C5, the AVR ISP (in-system-programming, SPI)
// driver: activation, byte-at-a-time signature read, fuse/lock-bit
// access, one parameter-block push on activation (spec.md §4.5,
// SPEC_FULL.md §4.4).
package avrisp

import "debugtool/internal/target"

// FuseType identifies which fuse byte a ReadFuse/ProgramFuse call targets.
// AVR parts expose up to three fuse bytes.
type FuseType byte

const (
	FuseLow FuseType = iota
	FuseHigh
	FuseExtended
)

// ParameterBlock is the per-target ISP timing/poll-index block pushed once
// on activation, grounded on original_source's Targets::Microchip::Avr::
// IspParameters (SPEC_FULL.md §4.4 supplement). Every field is target-
// description data the caller extracts from a TDF; this module only
// transports it.
type ParameterBlock struct {
	ProgramModeTimeout              byte
	ProgramModeStabilizationDelay   byte
	ProgramModeCommandExecutionDelay byte
	ProgramModeSyncLoops             byte
	ProgramModeByteDelay             byte
	ProgramModePollValue             byte
	ProgramModePollIndex             byte
	ProgramModePreDelay              byte
	ProgramModePostDelay             byte

	ReadSignaturePollIndex byte
	ReadFusePollIndex      byte
	ReadLockPollIndex      byte
}

// ResolveFuseType derives the FuseType from a fuse register descriptor's
// name, mirroring original_source's EdbgAvrIspInterface::resolveFuseType
// (which switches on the descriptor rather than a raw byte, since the TDF
// is the source of truth for which fuse byte a given bit lives in).
func ResolveFuseType(descriptor target.RegisterDescriptor) FuseType {
	switch descriptor.Name {
	case "high", "hfuse":
		return FuseHigh
	case "extended", "efuse":
		return FuseExtended
	default:
		return FuseLow
	}
}
