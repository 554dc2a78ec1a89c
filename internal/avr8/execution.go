package avr8

import (
	"debugtool/internal/edbg"
	"debugtool/internal/target"
	"debugtool/internal/toolerrors"
)

// breakEventTimeout equals defaultMaxEventPollAttempts, the poll budget a
// new Driver starts with. waitForBreakEvent reads the per-driver
// d.maxEventPollAttempts, not this constant.
const breakEventTimeout = defaultMaxEventPollAttempts

// refreshState polls once for a BREAK event if, and only if, the cached
// state is Running - per spec §4.4's caching rule: "the driver assumes a
// Stopped target cannot transition to Running without a driver-issued
// command. Therefore state refresh is performed only when the cached
// state is Running."
func (d *Driver) refreshState() error {
	if d.state != StateRunning {
		return nil
	}

	event, err := d.sub.PollEvent()
	if err != nil {
		return err
	}
	if event != nil && event.IsBreak() {
		d.state = StateStopped
	}
	return nil
}

// waitForBreakEvent polls AVR_EVT at 50ms intervals for up to
// maxEventPollAttempts, returning once a BREAK event arrives (spec §4.4
// "Event polling and BREAK delivery").
func (d *Driver) waitForBreakEvent() error {
	for attempt := 0; attempt < d.maxEventPollAttempts; attempt++ {
		event, err := d.sub.PollEvent()
		if err != nil {
			return err
		}
		if event != nil && event.IsBreak() {
			d.state = StateStopped
			return nil
		}
		d.clock.Sleep(eventPollInterval)
	}
	return toolerrors.New(toolerrors.KindTimeout, "timed out waiting for AVR BREAK event")
}

// Stop issues the "stop" command, halting target execution:
// Running -> Stopped (spec §4.4).
func (d *Driver) Stop() error {
	resp, err := d.sub.Exec(edbg.HandlerAVR8Generic, buildCommand(cmdStop))
	if err != nil {
		return err
	}
	if err := requireOK(resp, "AVR8-Generic STOP"); err != nil {
		return err
	}
	d.state = StateStopped
	return nil
}

// Run issues the "run" command, resuming execution: Stopped -> Running
// (spec §4.4). Rejected while already Running or in ProgrammingMode (spec
// invariants 5 and 9).
func (d *Driver) Run() error {
	if d.state == StateRunning || d.state == StateProgrammingMode {
		return toolerrors.Newf(toolerrors.KindProtocolError, "cannot run from state %s", d.state)
	}

	resp, err := d.sub.Exec(edbg.HandlerAVR8Generic, buildCommand(cmdRun))
	if err != nil {
		return err
	}
	if err := requireOK(resp, "AVR8-Generic RUN"); err != nil {
		return err
	}
	d.state = StateRunning
	return nil
}

// RunTo issues the "run to" command with a target-side temporary
// breakpoint at address, resuming execution and blocking until the target
// reports BREAK at that address (spec §4.4). Rejected while already
// Running or in ProgrammingMode (spec invariants 5 and 9).
func (d *Driver) RunTo(address target.MemoryAddress) error {
	if d.state == StateRunning || d.state == StateProgrammingMode {
		return toolerrors.Newf(toolerrors.KindProtocolError, "cannot run to address from state %s", d.state)
	}

	addrBytes := []byte{
		byte(address), byte(address >> 8), byte(address >> 16), byte(address >> 24),
	}
	resp, err := d.sub.Exec(edbg.HandlerAVR8Generic, buildCommand(cmdRunToAddress, addrBytes...))
	if err != nil {
		return err
	}
	if err := requireOK(resp, "AVR8-Generic RUN_TO_ADDRESS"); err != nil {
		return err
	}
	d.state = StateRunning
	return d.waitForBreakEvent()
}

// Step issues the "step" command; the target signals BREAK on the next
// instruction retirement and the driver blocks until that event arrives
// (spec §4.4). Rejected while already Running or in ProgrammingMode (spec
// invariants 5 and 9).
func (d *Driver) Step() error {
	if d.state == StateRunning || d.state == StateProgrammingMode {
		return toolerrors.Newf(toolerrors.KindProtocolError, "cannot step from state %s", d.state)
	}

	resp, err := d.sub.Exec(edbg.HandlerAVR8Generic, buildCommand(cmdStep))
	if err != nil {
		return err
	}
	if err := requireOK(resp, "AVR8-Generic STEP"); err != nil {
		return err
	}
	d.state = StateRunning
	return d.waitForBreakEvent()
}

// Reset issues the "reset" command, resetting target execution.
func (d *Driver) Reset() error {
	resp, err := d.sub.Exec(edbg.HandlerAVR8Generic, buildCommand(cmdReset))
	if err != nil {
		return err
	}
	return requireOK(resp, "AVR8-Generic RESET")
}

// TargetState refreshes (if Running) and returns the driver's current
// execution-state view.
func (d *Driver) TargetState() (ExecutionState, error) {
	if err := d.refreshState(); err != nil {
		return d.state, err
	}
	return d.state, nil
}
