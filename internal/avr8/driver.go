package avr8

import (
	"time"

	"debugtool/internal/edbg"
	"debugtool/internal/target"
	"debugtool/internal/toolconfig"
	"debugtool/internal/toolerrors"
)

// subProtocol is the narrow slice of *edbg.SubProtocol the driver needs, so
// tests can supply a fake instead of a real HID-backed sub-protocol session.
type subProtocol interface {
	Exec(handler edbg.ProtocolHandlerID, payload []byte) (edbg.AvrResponseFrame, error)
	PollEvent() (*edbg.AvrEvent, error)
}

// Clock abstracts time.Sleep so the event-polling loop is testable without
// real wall-clock delay.
type Clock interface {
	Sleep(d time.Duration)
}

type realClock struct{}

func (realClock) Sleep(d time.Duration) { time.Sleep(d) }

// ExecutionState is the driver's view of target execution state (spec
// §4.4 "Execution control state machine").
type ExecutionState int

const (
	StateUnknown ExecutionState = iota
	StateRunning
	StateStopped
	StateProgrammingMode
	StateDetached
)

func (s ExecutionState) String() string {
	switch s {
	case StateRunning:
		return "Running"
	case StateStopped:
		return "Stopped"
	case StateProgrammingMode:
		return "ProgrammingMode"
	case StateDetached:
		return "Detached"
	default:
		return "Unknown"
	}
}

// eventPollInterval is the fixed AVR_EVT poll interval (spec §4.4 "Event
// polling and BREAK delivery").
const eventPollInterval = 50 * time.Millisecond

// defaultMaxEventPollAttempts is wait_for_event's default max_attempts
// (spec §4.4).
const defaultMaxEventPollAttempts = 20

// Driver implements C4, the AVR8-Generic EDBG driver.
type Driver struct {
	sub    subProtocol
	clock  Clock
	config toolconfig.AvrTargetConfig

	family           Family
	configVariant    ConfigVariant
	configFunction   ConfigFunction
	targetParameters TargetParameters

	avoidMaskedRead                   bool
	maximumMemoryAccessSizePerRequest *target.MemorySize
	reactivateJtagPostProgrammingMode bool

	state                       ExecutionState
	physicalInterfaceActivated bool
	targetAttached              bool

	softwareBreakpoints map[target.MemoryAddress]bool
	hardwareBreakpoints map[target.MemoryAddress]int
	hwBreakpointSlotsUsed map[int]bool
	hwBreakpointCapacity  int

	maxEventPollAttempts int
}

// NewDriver constructs a Driver bound to an open AVR8-Generic sub-protocol
// session, with the documented defaults: avoidMaskedRead=true (spec §4.4
// rule 5), hwBreakpointCapacity defaulting to 1 (the common case; tool
// shells override via SetHardwareBreakpointCapacity for models with more
// slots).
func NewDriver(sub subProtocol, cfg toolconfig.AvrTargetConfig) *Driver {
	return &Driver{
		sub:                   sub,
		clock:                 realClock{},
		config:                cfg,
		avoidMaskedRead:       true,
		state:                 StateUnknown,
		softwareBreakpoints:   map[target.MemoryAddress]bool{},
		hardwareBreakpoints:   map[target.MemoryAddress]int{},
		hwBreakpointSlotsUsed: map[int]bool{},
		hwBreakpointCapacity:  1,
		maxEventPollAttempts:  defaultMaxEventPollAttempts,
	}
}

// SetClock overrides the event-polling clock; used by tests.
func (d *Driver) SetClock(clock Clock) { d.clock = clock }

// SetAvoidMaskedMemoryRead toggles the masked-SRAM-read workaround (spec
// §4.4 rule 5).
func (d *Driver) SetAvoidMaskedMemoryRead(avoid bool) { d.avoidMaskedRead = avoid }

// SetMaximumMemoryAccessSizePerRequest imposes a soft per-request byte
// limit (spec §4.4 rule 3).
func (d *Driver) SetMaximumMemoryAccessSizePerRequest(max target.MemorySize) {
	d.maximumMemoryAccessSizePerRequest = &max
}

// SetReactivateJtagTargetPostProgrammingMode controls whether leaving
// programming mode on a JTAG target re-issues ActivatePhysical+Attach
// (spec §4.4 "Chip erase / programming mode").
func (d *Driver) SetReactivateJtagTargetPostProgrammingMode(reactivate bool) {
	d.reactivateJtagPostProgrammingMode = reactivate
}

// SetHardwareBreakpointCapacity sets the number of hardware breakpoint
// slots this tool/target combination supports (spec §4.4 "Breakpoints").
func (d *Driver) SetHardwareBreakpointCapacity(capacity int) {
	d.hwBreakpointCapacity = capacity
}

// SetFamily records the target family, consulted by resolveConfigVariant.
func (d *Driver) SetFamily(family Family) { d.family = family }

// SetTargetParameters records the per-variant parameter block derived from
// target-description data (spec §4.4).
func (d *Driver) SetTargetParameters(params TargetParameters) {
	d.targetParameters = params
}

// State returns the driver's cached execution state.
func (d *Driver) State() ExecutionState { return d.state }

// setParameter issues AVR8-Generic SET_PARAMETER(context, id, value).
func (d *Driver) setParameter(param ParameterID, value []byte) error {
	args := make([]byte, 0, 3+len(value))
	args = append(args, param.Context, param.ID, byte(len(value)))
	args = append(args, value...)

	resp, err := d.sub.Exec(edbg.HandlerAVR8Generic, buildCommand(cmdSetParameter, args...))
	if err != nil {
		return err
	}
	return requireOK(resp, "AVR8-Generic SET_PARAMETER")
}

func (d *Driver) setParameterByte(param ParameterID, value byte) error {
	return d.setParameter(param, []byte{value})
}

func (d *Driver) setParameterUint16(param ParameterID, value uint16) error {
	return d.setParameter(param, []byte{byte(value), byte(value >> 8)})
}

func (d *Driver) setParameterUint32(param ParameterID, value uint32) error {
	return d.setParameter(param, []byte{byte(value), byte(value >> 8), byte(value >> 16), byte(value >> 24)})
}

// requireOK raises DeviceCommunicationFailure/ProtocolError unless resp is
// a plain OK response.
func requireOK(resp edbg.AvrResponseFrame, what string) error {
	id, err := resp.ResponseID()
	if err != nil {
		return err
	}
	switch edbg.ResponseID(id) {
	case edbg.ResponseOK:
		return nil
	case edbg.ResponseFailed, edbg.ResponseFailedWithData:
		return toolerrors.Newf(toolerrors.KindProtocolError, "%s failed (response data: % x)", what, resp.Data())
	default:
		return toolerrors.Newf(toolerrors.KindDeviceCommunicationFailure, "%s: unexpected response id 0x%02x", what, id)
	}
}

// pushParameterBlock sends the variant-appropriate parameter block, per
// spec §4.4: "Three distinct parameter-push routines exist - debugWIRE/
// JTAG share one, PDI one, UPDI one."
func (d *Driver) pushParameterBlock() error {
	p := d.targetParameters

	switch d.configVariant {
	case ConfigVariantDebugWire, ConfigVariantMegaJTAG:
		if err := d.setParameterUint32(ParamDeviceFlashBase, uint32(p.FlashBase)); err != nil {
			return err
		}
		if err := d.setParameterUint16(ParamDeviceFlashPageSize, p.FlashPageSize); err != nil {
			return err
		}
		if err := d.setParameterUint32(ParamDeviceFlashSize, p.FlashSize); err != nil {
			return err
		}
		if err := d.setParameterUint32(ParamDeviceBootStartAddr, uint32(p.BootStartAddr)); err != nil {
			return err
		}
		if err := d.setParameterUint32(ParamDeviceSRAMStart, uint32(p.SRAMStartAddr)); err != nil {
			return err
		}
		if err := d.setParameterUint16(ParamDeviceEEPROMSize, p.EEPROMSize); err != nil {
			return err
		}
		if err := d.setParameterUint16(ParamDeviceEEPROMPageSize, p.EEPROMPageSize); err != nil {
			return err
		}
		return d.setParameterByte(ParamDeviceOCDRevision, p.OCDRevision)

	case ConfigVariantXMEGA:
		if err := d.setParameterUint32(ParamXMEGAApplBaseAddr, uint32(p.FlashBase)); err != nil {
			return err
		}
		if err := d.setParameterUint32(ParamXMEGABootBaseAddr, uint32(p.BootStartAddr)); err != nil {
			return err
		}
		if err := d.setParameterUint32(ParamXMEGAEEPROMBase, 0); err != nil {
			return err
		}
		if err := d.setParameterUint32(ParamXMEGAFuseBaseAddr, uint32(p.FuseBaseAddr)); err != nil {
			return err
		}
		return d.setParameterUint32(ParamXMEGANVMBase, uint32(p.NVMBaseAddr))

	case ConfigVariantUPDI:
		if err := d.setParameterUint32(ParamUPDIProgmemBaseAddr, uint32(p.FlashBase)); err != nil {
			return err
		}
		if err := d.setParameterByte(ParamUPDIFlashPageSize, byte(p.FlashPageSize)); err != nil {
			return err
		}
		if err := d.setParameterByte(ParamUPDIEEPROMPageSize, byte(p.EEPROMPageSize)); err != nil {
			return err
		}
		return d.setParameterUint32(ParamUPDINVMCtrlAddr, uint32(p.NVMBaseAddr))

	default:
		return nil
	}
}

// Activate performs, in order: set PHYSICAL_INTERFACE, push the
// variant-appropriate parameter block, ActivatePhysical(reset=false),
// Attach (spec §4.4 "Configuration & activation").
func (d *Driver) Activate() error {
	d.configVariant = resolveConfigVariant(d.family, physicalInterfaceFor(d.config.PhysicalInterface))

	if err := d.setParameterByte(ParamConfigVariant, byte(d.configVariant)); err != nil {
		return err
	}
	if err := d.setParameterByte(ParamConfigFunction, byte(d.configFunction)); err != nil {
		return err
	}
	if err := d.setParameterByte(ParamPhysicalInterface, byte(physicalInterfaceFor(d.config.PhysicalInterface))); err != nil {
		return err
	}

	if err := d.pushParameterBlock(); err != nil {
		return err
	}

	resp, err := d.sub.Exec(edbg.HandlerAVR8Generic, buildCommand(cmdActivatePhysical, 0x00))
	if err != nil {
		return d.wrapActivationError(err)
	}
	if err := requireOK(resp, "AVR8-Generic ACTIVATE_PHYSICAL"); err != nil {
		return d.wrapActivationError(err)
	}
	d.physicalInterfaceActivated = true

	resp, err = d.sub.Exec(edbg.HandlerAVR8Generic, buildCommand(cmdAttach))
	if err != nil {
		return d.wrapActivationError(err)
	}
	if err := requireOK(resp, "AVR8-Generic ATTACH"); err != nil {
		return d.wrapActivationError(err)
	}
	d.targetAttached = true
	d.state = StateStopped

	return nil
}

// wrapActivationError re-tags activation failures as
// DebugWirePhysicalInterfaceError when the config variant is debugWIRE, so
// the outer shell can opportunistically fall back to ISP to fix the DWEN
// fuse bit (spec §4.4).
func (d *Driver) wrapActivationError(err error) error {
	if d.configVariant != ConfigVariantDebugWire {
		return err
	}
	return toolerrors.Wrap(toolerrors.KindDebugWirePhysicalInterfaceError, "debugWIRE physical interface activation failed", err)
}

// physicalInterfaceFor maps the user-facing toolconfig.PhysicalInterface
// onto the wire-level AVR8-Generic PhysicalInterface code.
func physicalInterfaceFor(p toolconfig.PhysicalInterface) PhysicalInterface {
	switch p {
	case toolconfig.PhysicalInterfaceJTAG:
		return PhysicalInterfaceJTAG
	case toolconfig.PhysicalInterfaceDebugWire:
		return PhysicalInterfaceDebugWire
	case toolconfig.PhysicalInterfacePDI:
		return PhysicalInterfacePDI
	case toolconfig.PhysicalInterfaceUPDI:
		return PhysicalInterfacePDI1W
	default:
		return PhysicalInterfaceNone
	}
}

// Deactivate sends Detach, then DeactivatePhysical. When
// DisableDebugWireOnDeactivate is set, it first issues the debugWIRE
// temporary-disable command so ISP operations on the same target can
// succeed without a power cycle; fuse bits are never altered (spec §4.4).
func (d *Driver) Deactivate() error {
	if d.config.DisableDebugWireOnDeactivate && d.configVariant == ConfigVariantDebugWire {
		if err := d.temporarilyDisableDebugWire(); err != nil {
			return err
		}
	}

	if d.targetAttached {
		resp, err := d.sub.Exec(edbg.HandlerAVR8Generic, buildCommand(cmdDetach))
		if err != nil {
			return err
		}
		if err := requireOK(resp, "AVR8-Generic DETACH"); err != nil {
			return err
		}
		d.targetAttached = false
	}

	if d.physicalInterfaceActivated {
		resp, err := d.sub.Exec(edbg.HandlerAVR8Generic, buildCommand(cmdDeactivatePhysical))
		if err != nil {
			return err
		}
		if err := requireOK(resp, "AVR8-Generic DEACTIVATE_PHYSICAL"); err != nil {
			return err
		}
		d.physicalInterfaceActivated = false
	}

	d.state = StateDetached
	return nil
}

// temporarilyDisableDebugWire issues the debugWIRE temporary-disable
// command. Fuse bits are left untouched (spec §4.4).
func (d *Driver) temporarilyDisableDebugWire() error {
	resp, err := d.sub.Exec(edbg.HandlerAVR8Generic, buildCommand(cmdDeactivatePhysical, 0x01))
	if err != nil {
		return err
	}
	return requireOK(resp, "AVR8-Generic debugWIRE temporary disable")
}

// EnableProgrammingMode transitions Stopped -> ProgrammingMode; rejected
// unless the driver is currently Stopped (spec §4.4).
func (d *Driver) EnableProgrammingMode() error {
	if d.state != StateStopped {
		return toolerrors.Newf(toolerrors.KindProtocolError, "cannot enter programming mode from state %s", d.state)
	}

	resp, err := d.sub.Exec(edbg.HandlerAVR8Generic, buildCommand(cmdEnterProgrammingMode))
	if err != nil {
		return err
	}
	if err := requireOK(resp, "AVR8-Generic ENTER_PROGMODE"); err != nil {
		return err
	}
	d.state = StateProgrammingMode
	return nil
}

// DisableProgrammingMode transitions ProgrammingMode -> Stopped; rejected
// unless the driver is currently in ProgrammingMode. On JTAG targets, if
// ReactivateJtagTargetPostProgrammingMode is set, re-issues
// ActivatePhysical+Attach to restore debug access (spec §4.4).
func (d *Driver) DisableProgrammingMode() error {
	if d.state != StateProgrammingMode {
		return toolerrors.Newf(toolerrors.KindProtocolError, "cannot leave programming mode from state %s", d.state)
	}

	resp, err := d.sub.Exec(edbg.HandlerAVR8Generic, buildCommand(cmdLeaveProgrammingMode))
	if err != nil {
		return err
	}
	if err := requireOK(resp, "AVR8-Generic LEAVE_PROGMODE"); err != nil {
		return err
	}
	d.state = StateStopped

	if d.configVariant == ConfigVariantMegaJTAG && d.reactivateJtagPostProgrammingMode {
		resp, err := d.sub.Exec(edbg.HandlerAVR8Generic, buildCommand(cmdActivatePhysical, 0x00))
		if err != nil {
			return err
		}
		if err := requireOK(resp, "AVR8-Generic re-ACTIVATE_PHYSICAL post-programming"); err != nil {
			return err
		}

		resp, err = d.sub.Exec(edbg.HandlerAVR8Generic, buildCommand(cmdAttach))
		if err != nil {
			return err
		}
		if err := requireOK(resp, "AVR8-Generic re-ATTACH post-programming"); err != nil {
			return err
		}
	}

	return nil
}
