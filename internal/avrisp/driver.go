package avrisp

import (
	"debugtool/internal/edbg"
	"debugtool/internal/target"
	"debugtool/internal/toolerrors"
)

// subProtocol is the narrow slice of *edbg.SubProtocol this driver needs,
// so tests can supply a fake instead of a real HID-backed session (the same
// pattern as internal/avr8's subProtocol).
type subProtocol interface {
	Exec(handler edbg.ProtocolHandlerID, payload []byte) (edbg.AvrResponseFrame, error)
}

// Driver implements C5, the AVR ISP driver.
type Driver struct {
	sub    subProtocol
	params ParameterBlock
	active bool
}

// NewDriver constructs a Driver bound to an open AvrISP sub-protocol session
// and the target's ISP parameter block (spec §4.5, SPEC_FULL.md §4.4).
func NewDriver(sub subProtocol, params ParameterBlock) *Driver {
	return &Driver{sub: sub, params: params}
}

func (d *Driver) setParameter(param ParameterID, value byte) error {
	resp, err := d.sub.Exec(edbg.HandlerAvrISP, buildCommand(cmdIspSetParameter, param.Context, param.ID, 0x01, value))
	if err != nil {
		return err
	}
	return requireOK(resp, "AVRISP SET_PARAMETER")
}

func (d *Driver) pushParameterBlock() error {
	p := d.params
	params := []struct {
		id    ParameterID
		value byte
	}{
		{ParamProgramModeTimeout, p.ProgramModeTimeout},
		{ParamProgramModeStabilizationDelay, p.ProgramModeStabilizationDelay},
		{ParamProgramModeCommandExecutionDelay, p.ProgramModeCommandExecutionDelay},
		{ParamProgramModeSyncLoops, p.ProgramModeSyncLoops},
		{ParamProgramModeByteDelay, p.ProgramModeByteDelay},
		{ParamProgramModePollValue, p.ProgramModePollValue},
		{ParamProgramModePollIndex, p.ProgramModePollIndex},
		{ParamProgramModePreDelay, p.ProgramModePreDelay},
		{ParamProgramModePostDelay, p.ProgramModePostDelay},
		{ParamReadSignaturePollIndex, p.ReadSignaturePollIndex},
		{ParamReadFusePollIndex, p.ReadFusePollIndex},
		{ParamReadLockPollIndex, p.ReadLockPollIndex},
	}
	for _, entry := range params {
		if err := d.setParameter(entry.id, entry.value); err != nil {
			return err
		}
	}
	return nil
}

// Activate pushes the ISP parameter block, then enables programming mode
// (activating the SPI physical interface between tool and target) - spec
// §4.5: "activate() enters programming mode (SPI)".
func (d *Driver) Activate() error {
	if err := d.pushParameterBlock(); err != nil {
		return err
	}

	resp, err := d.sub.Exec(edbg.HandlerAvrISP, buildCommand(cmdIspEnterProgMode))
	if err != nil {
		return err
	}
	if err := requireOK(resp, "AVRISP ENTER_PROGMODE"); err != nil {
		return err
	}
	d.active = true
	return nil
}

// Deactivate leaves programming mode, deactivating the SPI interface (spec
// §4.5).
func (d *Driver) Deactivate() error {
	resp, err := d.sub.Exec(edbg.HandlerAvrISP, buildCommand(cmdIspLeaveProgMode))
	if err != nil {
		return err
	}
	if err := requireOK(resp, "AVRISP LEAVE_PROGMODE"); err != nil {
		return err
	}
	d.active = false
	return nil
}

// readSignatureByte reads one byte of the device signature at the given
// byte address - the EDBG AVRISP protocol only allows reading one
// signature byte per command (spec §4.5).
func (d *Driver) readSignatureByte(address byte) (byte, error) {
	resp, err := d.sub.Exec(edbg.HandlerAvrISP, buildCommand(cmdIspReadSignature, address))
	if err != nil {
		return 0, err
	}
	if err := requireOK(resp, "AVRISP READ_SIGNATURE"); err != nil {
		return 0, err
	}
	data := resp.Data()
	if len(data) < 1 {
		return 0, toolerrors.New(toolerrors.KindDeviceCommunicationFailure, "READ_SIGNATURE response carried no byte")
	}
	return data[0], nil
}

// ReadSignature reads the 3-byte AVR device signature, one byte at a time
// (spec §4.5).
func (d *Driver) ReadSignature() (target.Signature, error) {
	byte0, err := d.readSignatureByte(0)
	if err != nil {
		return target.Signature{}, err
	}
	byte1, err := d.readSignatureByte(1)
	if err != nil {
		return target.Signature{}, err
	}
	byte2, err := d.readSignatureByte(2)
	if err != nil {
		return target.Signature{}, err
	}
	return target.Signature{Byte0: byte0, Byte1: byte1, Byte2: byte2}, nil
}

// ReadFuse reads the fuse byte identified by fuseType (spec §4.5).
func (d *Driver) ReadFuse(fuseType FuseType) (byte, error) {
	resp, err := d.sub.Exec(edbg.HandlerAvrISP, buildCommand(cmdIspReadFuse, byte(fuseType)))
	if err != nil {
		return 0, err
	}
	if err := requireOK(resp, "AVRISP READ_FUSE"); err != nil {
		return 0, err
	}
	data := resp.Data()
	if len(data) < 1 {
		return 0, toolerrors.New(toolerrors.KindDeviceCommunicationFailure, "READ_FUSE response carried no byte")
	}
	return data[0], nil
}

// ReadLockBits reads the lock-bit byte (spec §4.5).
func (d *Driver) ReadLockBits() (byte, error) {
	resp, err := d.sub.Exec(edbg.HandlerAvrISP, buildCommand(cmdIspReadLockBits))
	if err != nil {
		return 0, err
	}
	if err := requireOK(resp, "AVRISP READ_LOCK_BITS"); err != nil {
		return 0, err
	}
	data := resp.Data()
	if len(data) < 1 {
		return 0, toolerrors.New(toolerrors.KindDeviceCommunicationFailure, "READ_LOCK_BITS response carried no byte")
	}
	return data[0], nil
}

// ProgramFuse writes value to the fuse byte identified by fuseType (spec
// §4.5).
func (d *Driver) ProgramFuse(fuseType FuseType, value byte) error {
	resp, err := d.sub.Exec(edbg.HandlerAvrISP, buildCommand(cmdIspProgramFuse, byte(fuseType), value))
	if err != nil {
		return err
	}
	return requireOK(resp, "AVRISP PROGRAM_FUSE")
}

// requireOK raises ProtocolError/DeviceCommunicationFailure unless resp is
// a plain OK response, mirroring avr8.requireOK.
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
