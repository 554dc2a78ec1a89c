package avr8

import (
	"debugtool/internal/edbg"
	"debugtool/internal/target"
	"debugtool/internal/toolerrors"
)

func addressBytes(addr target.MemoryAddress) []byte {
	return []byte{byte(addr), byte(addr >> 8), byte(addr >> 16), byte(addr >> 24)}
}

// SetSoftwareBreakpoint dispatches the SW_BP_SET command. The driver keeps
// no bookkeeping beyond what's needed for ClearAllSoftwareBreakpoints
// (spec §4.4 "Breakpoints"). Rejected while Running or in ProgrammingMode
// (spec invariants 5 and 9).
func (d *Driver) SetSoftwareBreakpoint(addr target.MemoryAddress) error {
	if d.state == StateRunning || d.state == StateProgrammingMode {
		return toolerrors.Newf(toolerrors.KindProtocolError, "cannot set software breakpoint from state %s", d.state)
	}

	resp, err := d.sub.Exec(edbg.HandlerAVR8Generic, buildCommand(cmdSoftwareBPSet, addressBytes(addr)...))
	if err != nil {
		return err
	}
	if err := requireOK(resp, "AVR8-Generic SW_BP_SET"); err != nil {
		return err
	}
	d.softwareBreakpoints[addr] = true
	return nil
}

// ClearSoftwareBreakpoint dispatches SW_BP_CLEAR for addr.
func (d *Driver) ClearSoftwareBreakpoint(addr target.MemoryAddress) error {
	resp, err := d.sub.Exec(edbg.HandlerAVR8Generic, buildCommand(cmdSoftwareBPClear, addressBytes(addr)...))
	if err != nil {
		return err
	}
	if err := requireOK(resp, "AVR8-Generic SW_BP_CLEAR"); err != nil {
		return err
	}
	delete(d.softwareBreakpoints, addr)
	return nil
}

// ClearAllSoftwareBreakpoints clears only the breakpoints set in the
// current session (spec §4.4: "If the debug session ended before any of
// the set breakpoints were cleared, this will not clear them").
func (d *Driver) ClearAllSoftwareBreakpoints() error {
	resp, err := d.sub.Exec(edbg.HandlerAVR8Generic, buildCommand(cmdSoftwareBPClearAll))
	if err != nil {
		return err
	}
	if err := requireOK(resp, "AVR8-Generic SW_BP_CLEAR_ALL"); err != nil {
		return err
	}
	d.softwareBreakpoints = map[target.MemoryAddress]bool{}
	return nil
}

// SetHardwareBreakpoint allocates the lowest unused slot n in
// [1, hwBreakpointCapacity], sends "set hw bp slot n to addr", and records
// {addr -> n}. Raises OutOfHardwareBreakpoints if no slot is free (spec
// §4.4 "Breakpoints").
func (d *Driver) SetHardwareBreakpoint(addr target.MemoryAddress) error {
	slot, err := d.allocateHardwareBreakpointSlot()
	if err != nil {
		return err
	}

	resp, err := d.sub.Exec(edbg.HandlerAVR8Generic, buildCommand(cmdHardwareBPSet, append([]byte{byte(slot)}, addressBytes(addr)...)...))
	if err != nil {
		return err
	}
	if err := requireOK(resp, "AVR8-Generic HW_BP_SET"); err != nil {
		return err
	}

	d.hardwareBreakpoints[addr] = slot
	d.hwBreakpointSlotsUsed[slot] = true
	return nil
}

// ClearHardwareBreakpoint looks up the slot allocated to addr and sends the
// slot-clear command.
func (d *Driver) ClearHardwareBreakpoint(addr target.MemoryAddress) error {
	slot, ok := d.hardwareBreakpoints[addr]
	if !ok {
		return toolerrors.Newf(toolerrors.KindProtocolError, "no hardware breakpoint set at address 0x%08x", uint32(addr))
	}

	resp, err := d.sub.Exec(edbg.HandlerAVR8Generic, buildCommand(cmdHardwareBPClear, byte(slot)))
	if err != nil {
		return err
	}
	if err := requireOK(resp, "AVR8-Generic HW_BP_CLEAR"); err != nil {
		return err
	}

	delete(d.hardwareBreakpoints, addr)
	delete(d.hwBreakpointSlotsUsed, slot)
	return nil
}

func (d *Driver) allocateHardwareBreakpointSlot() (int, error) {
	for slot := 1; slot <= d.hwBreakpointCapacity; slot++ {
		if !d.hwBreakpointSlotsUsed[slot] {
			return slot, nil
		}
	}
	return 0, toolerrors.New(toolerrors.KindOutOfHardwareBreakpoints, "no free hardware breakpoint slot")
}
