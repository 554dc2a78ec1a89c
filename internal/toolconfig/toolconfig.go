// Package toolconfig is the populated value bag the subsystem receives from
// its owning collaborator (project/YAML configuration loading is explicitly
// out of scope - spec §1). Modeled after guiperry-HASHER's
// internal/config/config.go, but holding only defaults (Default) and bounds
// checking (Validate): there is no loader, no env-var override and no YAML
// parser of its own, since the real parsing already happened upstream.
package toolconfig

import (
	"time"

	"debugtool/internal/toolerrors"
)

// PhysicalInterface identifies the physical debug interface used to reach
// an AVR8 target (spec §6).
type PhysicalInterface int

const (
	PhysicalInterfaceISP PhysicalInterface = iota
	PhysicalInterfaceJTAG
	PhysicalInterfaceDebugWire
	PhysicalInterfacePDI
	PhysicalInterfaceUPDI
	PhysicalInterfaceSDI
)

// RiscVDebugTranslatorConfig carries the options consumed by the (external,
// out-of-scope) generic RISC-V Debug-Module translator.
type RiscVDebugTranslatorConfig struct {
	// TargetResponseTimeout bounds how long the translator waits for a DMI
	// operation. Default 100us (spec §6).
	TargetResponseTimeout time.Duration
}

// AvrTargetConfig carries the per-AVR-target options of spec §6.
type AvrTargetConfig struct {
	PhysicalInterface PhysicalInterface

	DisableDebugWireOnDeactivate bool
	ManageDwenFuseBit            bool
	CycleTargetPowerPostDwenUpdate bool
	TargetPowerCycleDelay          time.Duration
	ManageOcdenFuseBit              bool
	PreserveEeprom                  bool
	SignatureValidation              bool
	StopAllTimers                    bool
}

// DefaultAvrTargetConfig returns the documented defaults from spec §6.
func DefaultAvrTargetConfig() AvrTargetConfig {
	return AvrTargetConfig{
		PhysicalInterface:              PhysicalInterfaceISP,
		CycleTargetPowerPostDwenUpdate: true,
		TargetPowerCycleDelay:          250 * time.Millisecond,
		PreserveEeprom:                 true,
		SignatureValidation:            true,
		StopAllTimers:                  true,
	}
}

// ToolConfig is the full configuration surface recognised per-tool (spec §6).
type ToolConfig struct {
	// CmsisCommandDelay imposes a minimum wall-clock interval between
	// successive framer writes. Must be in [0, 200ms]; 0 disables it.
	CmsisCommandDelay time.Duration

	// ExitIapMode controls whether a WCH-Link tool found only in IAP mode
	// is automatically recovered into its normal mode. Default true.
	ExitIapMode bool

	RiscVDebugTranslator RiscVDebugTranslatorConfig

	AvrTarget AvrTargetConfig
}

// Default returns the documented defaults of spec §6.
func Default() ToolConfig {
	return ToolConfig{
		ExitIapMode: true,
		RiscVDebugTranslator: RiscVDebugTranslatorConfig{
			TargetResponseTimeout: 100 * time.Microsecond,
		},
		AvrTarget: DefaultAvrTargetConfig(),
	}
}

// Validate checks the configuration against the bounds in spec §6 and §7
// (InvalidConfig is fatal at init).
func (c ToolConfig) Validate() error {
	if c.CmsisCommandDelay < 0 || c.CmsisCommandDelay > 200*time.Millisecond {
		return toolerrors.Newf(
			toolerrors.KindInvalidConfig,
			"cmsis_command_delay_ms must be within [0, 200ms], got %s",
			c.CmsisCommandDelay,
		)
	}
	return nil
}
