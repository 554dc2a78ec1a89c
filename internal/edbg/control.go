package edbg

import "debugtool/internal/toolerrors"

// EdbgControl command tokens (spec §4.6, SPEC_FULL.md §4.2).
const (
	edbgControlSetParameter byte = 0x01
	edbgControlGetParameter byte = 0x02
)

// ParameterContextID scopes a SetParameter/GetParameter call to a
// sub-system of the tool (power, firmware info, ...).
type ParameterContextID byte

const (
	ContextGeneral ParameterContextID = 0x00
	ContextPower   ParameterContextID = 0x20
)

// ParameterID selects the specific parameter within a context.
type ParameterID byte

const (
	// ParameterTargetPower is CONTROL_TARGET_POWER within ContextPower
	// (spec §4.6: enable/disable target power).
	ParameterTargetPower ParameterID = 0x10
	// ParameterFirmwareVersion is the firmware-version readback within
	// ContextGeneral (SPEC_FULL.md §4.2).
	ParameterFirmwareVersion ParameterID = 0x80
)

// SetParameter issues EdbgControl SET_PARAMETER(context, id, value),
// failing on anything but a plain OK response: ProtocolError for FAILED,
// DeviceCommunicationFailure for any other response id.
func (p *SubProtocol) SetParameter(context ParameterContextID, id ParameterID, value []byte) error {
	payload := make([]byte, 0, 2+len(value))
	payload = append(payload, edbgControlSetParameter, byte(context), byte(id))
	payload = append(payload, value...)

	resp, err := p.Exec(HandlerEdbgControl, payload)
	if err != nil {
		return err
	}
	return requireOK(resp, "EdbgControl SET_PARAMETER")
}

// GetParameter issues EdbgControl GET_PARAMETER(context, id) and returns the
// parameter's raw value bytes (SPEC_FULL.md §4.2).
func (p *SubProtocol) GetParameter(context ParameterContextID, id ParameterID) ([]byte, error) {
	resp, err := p.Exec(HandlerEdbgControl, []byte{edbgControlGetParameter, byte(context), byte(id)})
	if err != nil {
		return nil, err
	}
	if err := requireOK(resp, "EdbgControl GET_PARAMETER"); err != nil {
		return nil, err
	}
	return resp.Data(), nil
}

// EnableTargetPower maps to SetParameter(CONTROL_TARGET_POWER, 0x01) (spec
// §4.6). Callers are expected to have confirmed the tool's identity record
// sets SupportsTargetPower before calling.
func (p *SubProtocol) EnableTargetPower() error {
	return p.SetParameter(ContextPower, ParameterTargetPower, []byte{0x01})
}

// DisableTargetPower maps to SetParameter(CONTROL_TARGET_POWER, 0x00) (spec
// §4.6).
func (p *SubProtocol) DisableTargetPower() error {
	return p.SetParameter(ContextPower, ParameterTargetPower, []byte{0x00})
}

// FirmwareVersion is the tool firmware's {major, minor} readback via
// EdbgControl GET_PARAMETER (SPEC_FULL.md §4.2/§4.5).
type FirmwareVersion struct {
	Major byte
	Minor byte
}

// GetFirmwareVersion reads the tool's firmware version.
func (p *SubProtocol) GetFirmwareVersion() (FirmwareVersion, error) {
	data, err := p.GetParameter(ContextGeneral, ParameterFirmwareVersion)
	if err != nil {
		return FirmwareVersion{}, err
	}
	if len(data) < 2 {
		return FirmwareVersion{}, toolerrors.New(toolerrors.KindDeviceCommunicationFailure, "firmware version response too short")
	}
	return FirmwareVersion{Major: data[0], Minor: data[1]}, nil
}
